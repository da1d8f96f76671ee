package handler

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/verify-api/internal/domain/repository"
)

// AdminHandler exposes the verification audit trail to administrators.
type AdminHandler struct {
	eventRepo repository.VerificationEventRepository
}

func NewAdminHandler(eventRepo repository.VerificationEventRepository) *AdminHandler {
	return &AdminHandler{eventRepo: eventRepo}
}

// ExportAuditTrail streams the verification events of a date range as an
// XLSX workbook. Defaults to the last 30 days when no range is given.
// Query params: from, to (YYYY-MM-DD; to is exclusive).
func (h *AdminHandler) ExportAuditTrail(c *gin.Context) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' date, expected YYYY-MM-DD", "error_type": "validation_error"})
			return
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' date, expected YYYY-MM-DD", "error_type": "validation_error"})
			return
		}
		to = parsed
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'from' must be before 'to'", "error_type": "validation_error"})
		return
	}

	events, err := h.eventRepo.ListBetween(from, to)
	if err != nil {
		log.Printf("[AdminHandler] failed to load verification events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit trail", "error_type": "internal_error"})
		return
	}

	filename := fmt.Sprintf("verification-audit-%s-%s", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Verification Events"
	f.SetSheetName("Sheet1", sheetName)

	// StreamWriter keeps memory flat for large date ranges.
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[AdminHandler] failed to create stream writer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_error"})
		return
	}

	headers := []interface{}{"Time (UTC)", "Email", "Purpose", "Outcome", "Source IP"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[AdminHandler] failed to write header row: %v", err)
	}

	for i, e := range events {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			e.Email,
			e.Purpose,
			e.Outcome,
			e.SourceIP,
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[AdminHandler] failed to write row %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[AdminHandler] failed to flush stream writer: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to finalize Excel file", "error_type": "internal_error"})
		return
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[AdminHandler] failed to write workbook to response: %v", err)
	}
}
