package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	OTP      OTPConfig
	Trust    TrustConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds unified Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	// Mode selects the Redis topology ("single", "sentinel", "cluster"). Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs lists Redis addresses (host:port), used in all modes.
	Addrs []string `mapstructure:"addrs"`

	// Addr is the single-mode address, used when Addrs is empty.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName names the master server (sentinel mode only).
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// OTPConfig holds verification challenge settings. The resend cap and
// cooldown are operator parameters, not hard-coded business logic.
type OTPConfig struct {
	// LifetimeSec is the challenge lifetime in seconds. Default 300 (5 minutes).
	LifetimeSec int `mapstructure:"lifetime_sec"`

	// MaxAttempts is the number of wrong submissions tolerated per challenge. Default 3.
	MaxAttempts int `mapstructure:"max_attempts"`

	// ResendCooldownSec is the minimum wait between issuances per email. Default 30.
	ResendCooldownSec int `mapstructure:"resend_cooldown_sec"`

	// MaxResends caps resends within one challenge window. Default 5.
	MaxResends int `mapstructure:"max_resends"`

	// Secret is the HMAC key used to hash codes at rest. Required.
	Secret string `mapstructure:"secret"`
}

// TrustConfig holds trusted-device settings.
type TrustConfig struct {
	// DurationHours is the trust window granted on successful verification. Default 720 (30 days).
	DurationHours int `mapstructure:"duration_hours"`

	// FingerprintVersion is stamped on new device rows so a fingerprinting
	// scheme change can invalidate old entries in bulk.
	FingerprintVersion int `mapstructure:"fingerprint_version"`
}

// EmailConfig holds mail transport settings.
type EmailConfig struct {
	// Provider selects the transport: "resend" or "noop". Default "noop".
	Provider string `mapstructure:"provider"`

	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// Lifetime returns the OTP lifetime as a duration.
func (o *OTPConfig) Lifetime() time.Duration {
	return time.Duration(o.LifetimeSec) * time.Second
}

// ResendCooldown returns the resend cooldown as a duration.
func (o *OTPConfig) ResendCooldown() time.Duration {
	return time.Duration(o.ResendCooldownSec) * time.Second
}

// Duration returns the trust window as a duration.
func (t *TrustConfig) Duration() time.Duration {
	return time.Duration(t.DurationHours) * time.Hour
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from the given file, with explicit environment
// variable bindings taking precedence over file values.
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	// Defaults for the operator-tunable verification parameters.
	vip.SetDefault("otp.lifetime_sec", 300)
	vip.SetDefault("otp.max_attempts", 3)
	vip.SetDefault("otp.resend_cooldown_sec", 30)
	vip.SetDefault("otp.max_resends", 5)
	vip.SetDefault("trust.duration_hours", 720)
	vip.SetDefault("trust.fingerprint_version", 1)
	vip.SetDefault("email.provider", "noop")
	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 15)
	vip.SetDefault("server.writetimeout", 15)

	// Database section.
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	// Redis section.
	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	// JWT section.
	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	// OTP section.
	vip.BindEnv("otp.lifetime_sec", "OTP_LIFETIME_SEC")
	vip.BindEnv("otp.max_attempts", "OTP_MAX_ATTEMPTS")
	vip.BindEnv("otp.resend_cooldown_sec", "OTP_RESEND_COOLDOWN_SEC")
	vip.BindEnv("otp.max_resends", "OTP_MAX_RESENDS")
	vip.BindEnv("otp.secret", "OTP_SECRET")

	// Trust section.
	vip.BindEnv("trust.duration_hours", "TRUST_DURATION_HOURS")
	vip.BindEnv("trust.fingerprint_version", "TRUST_FINGERPRINT_VERSION")

	// Email section.
	vip.BindEnv("email.provider", "EMAIL_PROVIDER")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	// Server section.
	vip.BindEnv("server.port", "SERVER_PORT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Config file '%s' not found, relying on environment variables and defaults.", configPath)
			} else {
				log.Printf("Warning: could not read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Loaded configuration ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("OTP Lifetime Sec: %d", cfg.OTP.LifetimeSec)
		log.Printf("OTP Max Attempts: %d", cfg.OTP.MaxAttempts)
		log.Printf("OTP Secret Set: %t", cfg.OTP.Secret != "")
		log.Printf("Trust Duration Hours: %d", cfg.Trust.DurationHours)
		log.Printf("Email Provider: %s", cfg.Email.Provider)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("----------------------------")
	}

	if cfg.OTP.Secret == "" {
		return nil, fmt.Errorf("OTP secret is required in config (check OTP_SECRET env var)")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Email.Provider == "resend" && cfg.Email.ResendAPIKey == "" {
		return nil, fmt.Errorf("resend api key is required when email provider is 'resend' (check RESEND_API_KEY env var)")
	}

	return &cfg, nil
}
