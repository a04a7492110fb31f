package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ocrpur/ocr-gateway/internal/api/rest/middleware"
	"github.com/ocrpur/ocr-gateway/internal/integration/ocrbackend"
	"github.com/ocrpur/ocr-gateway/internal/service"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// Extractor forwards uploads to the OCR backend. Implemented by
// ocrbackend.Client.
type Extractor interface {
	Extract(ctx context.Context, contentType string, body io.Reader) (ocrbackend.ProxyResult, error)
}

// OCRHandler serves the scan surface: limit checks and the extraction proxy
type OCRHandler struct {
	gate      service.ScanGate
	extractor Extractor
	log       *logger.Logger
}

// NewOCRHandler creates a new OCR handler
func NewOCRHandler(gate service.ScanGate, extractor Extractor, log *logger.Logger) *OCRHandler {
	return &OCRHandler{
		gate:      gate,
		extractor: extractor,
		log:       log,
	}
}

// ScanLimit answers whether the caller may scan right now
func (h *OCRHandler) ScanLimit(c *gin.Context) {
	decision, err := h.gate.CheckScanLimit(c.Request.Context(), middleware.UserID(c), newGuestCounter(c))
	if err != nil {
		h.log.Error("Scan limit check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check scan limit"})
		return
	}

	c.JSON(http.StatusOK, decision)
}

// Extract proxies a multipart upload to the OCR backend after passing
// the scan gate, and records the scan once the backend accepted it
func (h *OCRHandler) Extract(c *gin.Context) {
	userID := middleware.UserID(c)
	guests := newGuestCounter(c)

	decision, err := h.gate.CheckScanLimit(c.Request.Context(), userID, guests)
	if err != nil {
		h.log.Error("Scan limit check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check scan limit"})
		return
	}

	if !decision.Allowed {
		c.JSON(http.StatusForbidden, gin.H{
			"error":            "Scan limit reached",
			"tier":             decision.Tier,
			"remaining":        decision.Remaining,
			"requires_login":   decision.RequiresLogin,
			"requires_upgrade": decision.RequiresUpgrade,
		})
		return
	}

	result, err := h.extractor.Extract(c.Request.Context(), c.GetHeader("Content-Type"), c.Request.Body)
	if err != nil {
		h.log.Error("Extract proxy failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to connect to backend",
			"details": err.Error(),
		})
		return
	}

	// The scan already happened; a failed increment undercounts usage
	// but never retracts the result from the caller
	if result.StatusCode < http.StatusMultipleChoices {
		if err := h.gate.RecordScan(c.Request.Context(), userID, guests); err != nil {
			h.log.Error("Failed to record scan for user %q: %v", userID, err)
		}
	}

	c.Data(result.StatusCode, "application/json", result.Body)
}
