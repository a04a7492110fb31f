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

// PaymentHandler serves checkout creation for authenticated users
type PaymentHandler struct {
	service service.PaymentService
	log     *logger.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(svc service.PaymentService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: svc,
		log:     log,
	}
}

// CreateTransaction opens a provider checkout for the caller's plan choice
func (h *PaymentHandler) CreateTransaction(c *gin.Context) {
	var req domain.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn("Invalid create-transaction request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	userID := middleware.UserID(c)

	resp, err := h.service.CreateTransaction(c.Request.Context(), userID, req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPlan) {
			h.log.Warn("Unknown plan requested by user %s: %s/%s", userID, req.Plan, req.BillingCycle)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan or billing cycle"})
			return
		}

		h.log.Error("Failed to create transaction for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create transaction"})
		return
	}

	c.JSON(http.StatusOK, resp)
}
