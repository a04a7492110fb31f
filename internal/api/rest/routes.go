package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/ocrpur/ocr-gateway/internal/api/rest/handlers"
	"github.com/ocrpur/ocr-gateway/internal/api/rest/middleware"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps carries the wired handlers and middleware into SetupRouter
type RouterDeps struct {
	OCR     *handlers.OCRHandler
	Payment *handlers.PaymentHandler
	Webhook *handlers.WebhookHandler
	User    *handlers.UserHandler
	Auth    *middleware.JWTMiddleware
}

// SetupRouter configures the Gin router with routes and middleware
func SetupRouter(log *logger.Logger, registry *prometheus.Registry, deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.LoggerMiddleware(log))
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck)

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		// Scan surface. Auth is optional: anonymous callers get the
		// guest allowance, signed-in callers their tier's.
		ocr := v1.Group("/ocr", deps.Auth.OptionalAuth())
		{
			ocr.GET("/scan-limit", deps.OCR.ScanLimit)
			ocr.POST("/extract", deps.OCR.Extract)
		}

		payment := v1.Group("/payment", deps.Auth.RequireAuth())
		{
			payment.POST("/create-transaction", deps.Payment.CreateTransaction)
		}

		user := v1.Group("/user", deps.Auth.RequireAuth())
		{
			user.POST("/generate-api-key", deps.User.GenerateAPIKey)
			user.GET("/history", deps.User.History)
			user.GET("/stats", deps.User.Stats)
		}
	}

	// Webhooks stay at the router root; the provider authenticates with
	// its signature, not a bearer token
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/midtrans", deps.Webhook.HandleNotification)
	}

	return r
}
