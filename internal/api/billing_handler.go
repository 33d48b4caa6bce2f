package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/payments"
)

const maxWebhookBody = 1 << 20

// BillingHandler handles the Stripe webhook and the billing views of the dashboard.
type BillingHandler struct {
	billingService   core.BillingService
	reconcileService core.ReconcileService
	logger           *zap.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(bs core.BillingService, rs core.ReconcileService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billingService: bs, reconcileService: rs, logger: logger}
}

// HandleStripeWebhook handles POST /api/webhook/stripe. It is public; Stripe
// authenticates with the Stripe-Signature header.
func (h *BillingHandler) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Webhook payload too large"})
			return
		}
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read webhook payload"})
		return
	}

	if err := h.billingService.HandleStripeWebhook(c.Request.Context(), signature, payload); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, WebhookAck{Received: true})
}

// CreateCheckoutSession handles POST /api/dashboard/billing/checkout.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	var req models.CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	session, err := h.billingService.CreateCheckoutSession(c.Request.Context(), currentUser(c), req.PriceID)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// CreatePortalSession handles POST /api/dashboard/billing/portal.
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	url, err := h.billingService.CreatePortalSession(c.Request.Context(), currentUser(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, PortalSessionResponse{URL: url})
}

// ListInvoices handles GET /api/dashboard/invoices. Missing invoices are rebuilt
// from payment history before answering.
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.reconcileService.ListInvoices(c.Request.Context(), currentUser(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if invoices == nil {
		invoices = []*models.Invoice{}
	}
	c.JSON(http.StatusOK, invoices)
}

// ListPaymentMethods handles GET /api/dashboard/payment-methods.
func (h *BillingHandler) ListPaymentMethods(c *gin.Context) {
	cards, err := h.reconcileService.ListPaymentMethods(c.Request.Context(), currentUser(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if cards == nil {
		cards = []payments.Card{}
	}
	c.JSON(http.StatusOK, cards)
}

// GetSubscription handles GET /api/dashboard/subscription.
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	view, err := h.reconcileService.GetSubscription(c.Request.Context(), currentUser(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// CancelSubscription handles POST /api/dashboard/subscription/cancel. The
// subscription stays active until the end of the current period.
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	sub, err := h.billingService.CancelSubscription(c.Request.Context(), currentUser(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
