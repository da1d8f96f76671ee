package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/yourusername/verify-api/internal/config"
	"github.com/yourusername/verify-api/internal/handler"
	"github.com/yourusername/verify-api/internal/middleware"
	pgRepo "github.com/yourusername/verify-api/internal/repository/postgres"
	"github.com/yourusername/verify-api/internal/service"
	"github.com/yourusername/verify-api/pkg/auth"
	"github.com/yourusername/verify-api/pkg/database"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Loading configuration from %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Repositories.
	userRepo := pgRepo.NewUserRepo(db)
	otpRepo := pgRepo.NewOTPRepo(db)
	deviceRepo := pgRepo.NewTrustedDeviceRepo(db)
	eventRepo := pgRepo.NewVerificationEventRepo(db)

	// Mail transport. The noop provider logs instead of sending, which keeps
	// local development working without a Resend account.
	var emailService service.EmailService
	switch cfg.Email.Provider {
	case "resend":
		resendService, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Printf("Failed to initialize Resend email service: %v", err)
			os.Exit(1)
		}
		emailService = resendService
	default:
		log.Println("Email provider is 'noop': verification codes will only be logged")
		emailService = &service.NoopEmailService{}
	}

	// Services.
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	otpService, err := service.NewOTPService(otpRepo, eventRepo, emailService, cfg.OTP)
	if err != nil {
		log.Printf("Failed to initialize OTPService: %v", err)
		os.Exit(1)
	}

	deviceService, err := service.NewDeviceService(deviceRepo, cfg.Trust)
	if err != nil {
		log.Printf("Failed to initialize DeviceService: %v", err)
		os.Exit(1)
	}

	authService, err := service.NewAuthService(userRepo, otpService, deviceService, jwtService)
	if err != nil {
		log.Printf("Failed to initialize AuthService: %v", err)
		os.Exit(1)
	}

	// Handlers and middleware.
	authHandler := handler.NewAuthHandler(authService, otpService)
	deviceHandler := handler.NewDeviceHandler(deviceService)
	adminHandler := handler.NewAdminHandler(eventRepo)

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Retention sweep for superseded challenge records. Expiry itself is
	// checked lazily at read time; this only prunes rows that stopped
	// mattering a day ago.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				deleted, err := otpRepo.DeleteExpiredBefore(time.Now().Add(-24 * time.Hour))
				if err != nil {
					log.Printf("Failed to prune expired otp records: %v", err)
				} else if deleted > 0 {
					log.Printf("Pruned %d expired otp records", deleted)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	isProduction := gin.Mode() == gin.ReleaseMode

	router := gin.Default()

	// Trusted proxies matter here: c.ClientIP() feeds both the rate limiter
	// keys and the used_ip audit field.
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.Use(rateLimiter.LimitByIP(middleware.DefaultAuthRateLimitConfig()))
		{
			strict := rateLimiter.Limit(middleware.StrictAuthRateLimitConfig())

			authGroup.POST("/login", strict, authHandler.Login)
			authGroup.POST("/login/verify", strict, authHandler.VerifyLogin)
			authGroup.POST("/otp/resend", strict, authHandler.ResendCode)
			authGroup.GET("/otp/status", authHandler.ChallengeStatus)
			authGroup.POST("/password-reset/request", strict, authHandler.RequestPasswordReset)
			authGroup.POST("/password-reset/confirm", strict, authHandler.ConfirmPasswordReset)

			authed := authGroup.Group("/")
			authed.Use(authMiddleware.RequireAuth())
			{
				authed.GET("/devices", deviceHandler.ListDevices)
				authed.POST("/devices/revoke", deviceHandler.RevokeDevice)
			}

			admin := authGroup.Group("/admin")
			admin.Use(authMiddleware.RequireAuth(), authMiddleware.AdminOnly())
			{
				admin.GET("/audit/export", adminHandler.ExportAuditTrail)
			}
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}
