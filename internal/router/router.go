// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/config"
	"github.com/modelmint/modelmint-backend/internal/handlers"
	"github.com/modelmint/modelmint-backend/internal/middleware"
	"github.com/modelmint/modelmint-backend/internal/services"
	"github.com/modelmint/modelmint-backend/internal/utils"
)

// Initialize wires services, handlers, and routes. The returned retry service
// is also used by the server's background ticker.
func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, *services.WebhookRetryService) {
	// Services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize storage service")
	}
	watermarkService := services.NewWatermarkService(cfg)
	payoutClient := services.NewStripePayoutClient(cfg)

	webhookService := services.NewWebhookService(db, notificationService)
	revenueService := services.NewRevenueService(db, cfg, payoutClient)
	licensingService := services.NewLicensingService(db)

	dispatcher := services.NewWebhookDispatcher(webhookService,
		services.NewStripeWebhookProcessor(db, revenueService),
		services.NewFalWebhookProcessor(db, notificationService),
		services.NewReplicateWebhookProcessor(db, storageService, watermarkService),
	)
	retryService := services.NewWebhookRetryService(db, webhookService, dispatcher)

	orderService := services.NewOrderService(db, cfg)
	productService := services.NewProductService(db, licensingService)
	adminService := services.NewAdminService(db, cfg, webhookService, revenueService)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(cfg, dispatcher)
	orderHandler := handlers.NewOrderHandler(orderService)
	productHandler := handlers.NewProductHandler(productService)
	creatorHandler := handlers.NewCreatorHandler(licensingService, revenueService)
	adminHandler := handlers.NewAdminHandler(adminService, webhookService, retryService, notificationService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// Webhook ingress. Providers authenticate with signatures, not JWTs, so
	// these stay outside the auth middleware and the general rate limit.
	webhooks := r.Group("/webhooks")
	webhooks.Use(middleware.WebhookRateLimit())
	{
		webhooks.POST("/stripe", webhookHandler.HandleStripeWebhook)
		webhooks.POST("/fal", webhookHandler.HandleFalWebhook)
		webhooks.POST("/replicate", webhookHandler.HandleReplicateWebhook)
	}

	// API v1 routes
	v1 := r.Group("/v1")
	v1.Use(middleware.GeneralRateLimit())
	{
		// Product routes
		products := v1.Group("/products")
		{
			products.GET("", middleware.OptionalAuth(), productHandler.ListProducts)
			products.GET("/:id", middleware.OptionalAuth(), productHandler.GetProduct)

			protected := products.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", productHandler.CreateProduct)
				protected.DELETE("/:id", productHandler.ArchiveProduct)
			}
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.POST("/checkout", orderHandler.CreateCheckout)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.POST("/:id/cancel", orderHandler.CancelOrder)
		}

		// Creator licensing routes
		creators := v1.Group("/creators")
		{
			creators.POST("/licensing/validate", creatorHandler.ValidateLicensing)

			protected := creators.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.PUT("/me/licensing", creatorHandler.UpdateLicensing)
				protected.POST("/me/onboarding/refresh", creatorHandler.RefreshOnboarding)
			}
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(),
			middleware.AdminRateLimit(), middleware.AuditLogMiddleware(db))
		{
			admin.GET("/dashboard", adminHandler.GetDashboard)
			admin.GET("/notifications", adminHandler.GetNotifications)

			adminWebhooks := admin.Group("/webhooks")
			{
				adminWebhooks.GET("/stats", adminHandler.GetWebhookStats)
				adminWebhooks.GET("/failures", adminHandler.GetRecentFailures)
				adminWebhooks.GET("/dead-letter", adminHandler.GetDeadLetterQueue)
				adminWebhooks.POST("/dead-letter/:id/review", adminHandler.ReviewDeadLetter)
				adminWebhooks.POST("/retry-all", adminHandler.RetryAllWebhooks)
				adminWebhooks.POST("/:id/retry", adminHandler.RetryWebhook)
			}
		}
	}

	return r, retryService
}
