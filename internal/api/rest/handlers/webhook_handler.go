package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/service"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
	"github.com/ocrpur/ocr-gateway/pkg/req"
	"github.com/ocrpur/ocr-gateway/pkg/res"
)

// WebhookHandler receives payment-provider notifications
type WebhookHandler struct {
	reconciler service.SubscriptionReconciler
	log        *logger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(reconciler service.SubscriptionReconciler, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		log:        log,
	}
}

// HandleNotification processes one provider delivery. Midtrans retries any
// non-2xx response, so only authentication and lookup failures reject the
// delivery; everything past that point answers 200.
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	notification, err := req.Decode[domain.ProviderNotification](c.Request.Body)
	if err != nil {
		h.log.Warn("Malformed webhook payload: %v", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid notification payload"}, http.StatusBadRequest)
		return
	}
	if err := req.IsValid(notification); err != nil {
		h.log.Warn("Incomplete webhook payload: %v", err)
		res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Invalid notification payload", Details: err.Error()}, http.StatusBadRequest)
		return
	}

	result, err := h.reconciler.HandleWebhook(c.Request.Context(), notification)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureMismatch) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid signature"})
			return
		}

		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
			return
		}

		h.log.Error("Webhook processing failed for order %s: %v", notification.OrderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  result.Status,
	})
}
