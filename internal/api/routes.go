package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/middleware"
)

// SetupRoutesConfig holds everything SetupRoutes wires into the router.
type SetupRoutesConfig struct {
	Logger             *zap.Logger
	Verifier           middleware.TokenVerifier
	RateLimiter        *middleware.RateLimiter
	UserService        core.UserService
	AuditService       core.AuditService
	BillingService     core.BillingService
	ReconcileService   core.ReconcileService
	AssistantService   core.AssistantService
	PhoneNumberService core.PhoneNumberService
	StatsService       core.StatsService
}

// SetupRoutes configures all application routes. Global middleware (logging,
// recovery, CORS, metrics) is expected to be applied to router by the caller.
func SetupRoutes(router *gin.Engine, cfg SetupRoutesConfig) {
	logger := cfg.Logger
	if err := RegisterValidators(); err != nil {
		logger.Fatal("Failed to register request validators", zap.Error(err))
	}
	authMW := middleware.NewAuthMiddleware(cfg.Verifier, logger)

	authHandler := NewAuthHandler(cfg.UserService, logger)
	profileHandler := NewProfileHandler(cfg.UserService, cfg.AuditService, logger)
	billingHandler := NewBillingHandler(cfg.BillingService, cfg.ReconcileService, logger)
	assistantHandler := NewAssistantHandler(cfg.AssistantService, logger)
	phoneNumberHandler := NewPhoneNumberHandler(cfg.PhoneNumberService, logger)
	statsHandler := NewStatsHandler(cfg.StatsService, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	apiGroup.POST("/webhook/stripe", billingHandler.HandleStripeWebhook)

	authed := []gin.HandlerFunc{authMW.VerifyToken()}
	if cfg.RateLimiter != nil {
		authed = append(authed, cfg.RateLimiter.Handler())
	}

	withAuth := func(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
		out := make([]gin.HandlerFunc, 0, len(authed)+len(handlers))
		return append(append(out, authed...), handlers...)
	}

	apiGroup.POST("/users/initialize", withAuth(authHandler.InitializeUserProfile)...)

	dashboard := apiGroup.Group("/dashboard", withAuth(requireUser(cfg.UserService, logger))...)
	{
		dashboard.GET("/profile", profileHandler.GetProfile)
		dashboard.PATCH("/profile", profileHandler.UpdateProfile)
		dashboard.DELETE("/profile", profileHandler.DeleteAccount)
		dashboard.GET("/activity", profileHandler.ListActivity)
		dashboard.GET("/stats", statsHandler.GetOverview)

		assistants := dashboard.Group("/assistants")
		{
			assistants.GET("", assistantHandler.ListAssistants)
			assistants.POST("", assistantHandler.CreateAssistant)
			assistants.GET("/:id", assistantHandler.GetAssistant)
			assistants.PATCH("/:id", assistantHandler.UpdateAssistant)
			assistants.DELETE("/:id", assistantHandler.DeleteAssistant)
			assistants.POST("/:id/toggle", assistantHandler.ToggleAssistant)
			assistants.GET("/:id/stats", assistantHandler.GetAssistantStats)
		}

		phoneNumbers := dashboard.Group("/phone-numbers")
		{
			phoneNumbers.GET("", phoneNumberHandler.ListPhoneNumbers)
			phoneNumbers.POST("", phoneNumberHandler.CreatePhoneNumber)
			phoneNumbers.DELETE("/:id", phoneNumberHandler.DeletePhoneNumber)
			phoneNumbers.POST("/:id/assign", phoneNumberHandler.AssignPhoneNumber)
		}

		dashboard.GET("/invoices", billingHandler.ListInvoices)
		dashboard.GET("/payment-methods", billingHandler.ListPaymentMethods)
		dashboard.GET("/subscription", billingHandler.GetSubscription)
		dashboard.POST("/subscription/cancel", billingHandler.CancelSubscription)
		dashboard.POST("/billing/checkout", billingHandler.CreateCheckoutSession)
		dashboard.POST("/billing/portal", billingHandler.CreatePortalSession)
	}

	logger.Info("API routes configured under /api, /health and /metrics")
}
