package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ocrpur/ocr-gateway/internal/api/rest/middleware"
	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/service"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// UserHandler serves the authenticated dashboard endpoints
type UserHandler struct {
	service service.UserService
	log     *logger.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(svc service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{
		service: svc,
		log:     log,
	}
}

// GenerateAPIKey returns the caller's OCR API key, issuing one on first call
func (h *UserHandler) GenerateAPIKey(c *gin.Context) {
	userID := middleware.UserID(c)

	result, err := h.service.EnsureAPIKey(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrProRequired) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Active Pro subscription required"})
			return
		}

		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
			return
		}

		h.log.Error("Failed to ensure API key for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate API key"})
		return
	}

	message := "API key already exists"
	if result.Created {
		message = "API key generated successfully"
	}

	c.JSON(http.StatusOK, gin.H{
		"api_key": result.APIKey,
		"message": message,
	})
}

// History returns the caller's OCR request history
func (h *UserHandler) History(c *gin.Context) {
	result, err := h.service.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.log.Error("Failed to get history: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get history"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Stats returns the caller's OCR usage stats
func (h *UserHandler) Stats(c *gin.Context) {
	result, err := h.service.Stats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.log.Error("Failed to get stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, result)
}
