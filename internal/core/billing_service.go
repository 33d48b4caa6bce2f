package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/metrics"
	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/payments"
	"voicedesk-backend-go/pkg/cache"
)

var (
	ErrPlanNotFound         = errors.New("plan or price ID not found")
	ErrUserStripeNotLinked  = errors.New("user does not have a Stripe customer ID")
	ErrNoActiveSubscription = errors.New("user has no active subscription")
	// ErrWebhookPayload is returned for verified events whose object cannot be decoded.
	ErrWebhookPayload = errors.New("stripe webhook payload is malformed")
)

const (
	webhookClaimTTL    = 24 * time.Hour
	webhookClaimPrefix = "webhook:event:"

	subscriptionStatusActive   = "active"
	subscriptionStatusPastDue  = "past_due"
	subscriptionStatusCanceled = "canceled"

	invoiceStatusPaid       = "paid"
	transactionStatusFailed = "failed"
)

// NewBillingServiceConfig holds the collaborators of the billing service.
// Publisher may be nil when no message broker is configured.
type NewBillingServiceConfig struct {
	Users        db.UserRepository
	Invoices     db.InvoiceRepository
	Transactions db.TransactionRepository
	Clients      db.ClientRepository
	Gateway      payments.Gateway
	Cache        cache.Cache
	Publisher    EventPublisher
	EventsQueue  string
	Audit        AuditService
	Plans        *PlanCatalog
	ClientURL    string
	Logger       *zap.Logger
}

// billingService implements the BillingService interface.
type billingService struct {
	NewBillingServiceConfig
	now func() time.Time
}

// NewBillingService creates a new BillingService.
func NewBillingService(cfg NewBillingServiceConfig) BillingService {
	if cfg.Cache == nil {
		cfg.Logger.Warn("No cache configured, duplicate webhook deliveries rely on idempotent writes only")
	}
	return &billingService{NewBillingServiceConfig: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func (s *billingService) CreateCheckoutSession(ctx context.Context, user *models.User, priceID string) (*payments.CheckoutSession, error) {
	if _, ok := s.Plans.ByPriceID(priceID); !ok {
		return nil, fmt.Errorf("%w: price '%s'", ErrPlanNotFound, priceID)
	}
	base := strings.TrimRight(s.ClientURL, "/")
	session, err := s.Gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		UserID:     user.ID.Hex(),
		Email:      user.Email,
		CustomerID: user.CustomerID,
		PriceID:    priceID,
		SuccessURL: base + "/dashboard/billing?checkout=success",
		CancelURL:  base + "/dashboard/billing?checkout=cancel",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session for user '%s': %w", user.ID.Hex(), err)
	}
	return session, nil
}

func (s *billingService) CreatePortalSession(ctx context.Context, user *models.User) (string, error) {
	if user.CustomerID == "" {
		return "", fmt.Errorf("%w for user %s", ErrUserStripeNotLinked, user.ID.Hex())
	}
	url, err := s.Gateway.CreatePortalSession(ctx, user.CustomerID, strings.TrimRight(s.ClientURL, "/")+"/dashboard/billing")
	if err != nil {
		return "", fmt.Errorf("failed to create portal session for user '%s': %w", user.ID.Hex(), err)
	}
	return url, nil
}

// CancelSubscription cancels at the end of the current period; access is kept until
// Stripe sends customer.subscription.deleted.
func (s *billingService) CancelSubscription(ctx context.Context, user *models.User) (*models.Subscription, error) {
	if user.Subscription.ID == "" || !isRenewing(user.Subscription) {
		return nil, ErrNoActiveSubscription
	}
	remote, err := s.Gateway.CancelAtPeriodEnd(ctx, user.Subscription.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel subscription '%s': %w", user.Subscription.ID, err)
	}
	sub := user.Subscription
	sub.CancelAtPeriodEnd = true
	if remote.Status != "" {
		sub.Status = remote.Status
	}
	if start, end := remote.Period(); end != nil {
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd = start, end
	}
	if err := s.Users.UpdateSubscription(ctx, user.ID, sub); err != nil {
		return nil, fmt.Errorf("failed to store cancelled subscription for user '%s': %w", user.ID.Hex(), err)
	}
	s.Audit.Record(ctx, user.ID.Hex(), ActionSubscriptionCancel, "subscription", sub.ID, nil)
	return &sub, nil
}

// HandleStripeWebhook verifies the delivery, claims the event id and dispatches on its type.
func (s *billingService) HandleStripeWebhook(ctx context.Context, signature string, payload []byte) error {
	event, err := s.Gateway.ConstructEvent(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("unknown", metrics.OutcomeRejected).Inc()
		return err
	}
	log := s.Logger.With(zap.String("eventID", event.ID), zap.String("eventType", event.Type))

	claimed, err := s.claimEvent(ctx, event.ID)
	switch {
	case errors.Is(err, errNoClaimStore):
	case err != nil:
		log.Warn("Webhook claim unavailable, processing without it", zap.Error(err))
	case !claimed:
		log.Info("Duplicate webhook delivery skipped")
		metrics.WebhookEvents.WithLabelValues(event.Type, metrics.OutcomeDuplicate).Inc()
		return nil
	}

	outcome, err := s.dispatch(ctx, event, log)
	if err != nil {
		if claimed {
			if delErr := s.Cache.Delete(ctx, webhookClaimPrefix+event.ID); delErr != nil {
				log.Warn("Failed to release webhook claim", zap.Error(delErr))
			}
		}
		if errors.Is(err, ErrWebhookPayload) {
			outcome = metrics.OutcomeRejected
		} else {
			outcome = metrics.OutcomeFailed
		}
		log.Error("Webhook processing failed", zap.Error(err))
	}
	metrics.WebhookEvents.WithLabelValues(event.Type, outcome).Inc()
	return err
}

// errNoClaimStore means deliveries are not deduplicated up front.
var errNoClaimStore = errors.New("no webhook claim store")

func (s *billingService) claimEvent(ctx context.Context, eventID string) (bool, error) {
	if s.Cache == nil || eventID == "" {
		return false, errNoClaimStore
	}
	return s.Cache.SetNX(ctx, webhookClaimPrefix+eventID, "1", webhookClaimTTL)
}

func (s *billingService) dispatch(ctx context.Context, event *payments.Event, log *zap.Logger) (string, error) {
	switch event.Type {
	case payments.EventInvoicePaid, payments.EventInvoicePaymentSucceeded:
		inv, err := payments.DecodeInvoice(event.Raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrWebhookPayload, err)
		}
		return s.handleInvoicePaid(ctx, inv, event, log)
	case payments.EventInvoicePaymentFailed:
		inv, err := payments.DecodeInvoice(event.Raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrWebhookPayload, err)
		}
		return s.handleInvoiceFailed(ctx, inv, event, log)
	case payments.EventCheckoutCompleted:
		cs, err := payments.DecodeCheckoutSession(event.Raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrWebhookPayload, err)
		}
		return s.handleCheckoutCompleted(ctx, cs, log)
	case payments.EventSubscriptionUpdated, payments.EventSubscriptionDeleted:
		sub, err := payments.DecodeSubscription(event.Raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrWebhookPayload, err)
		}
		return s.handleSubscriptionChange(ctx, sub, event.Type == payments.EventSubscriptionDeleted, log)
	default:
		log.Debug("Ignoring unhandled webhook event type")
		return metrics.OutcomeIgnored, nil
	}
}

// userByCustomer returns (nil, nil) when no user owns customerID.
func (s *billingService) userByCustomer(ctx context.Context, customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, nil
	}
	user, err := s.Users.GetByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up customer '%s': %w", customerID, err)
	}
	return user, nil
}

// handleInvoicePaid runs the reconciliation pipeline. Once the user is known, each
// step is isolated: a failure is logged and the remaining steps still run.
func (s *billingService) handleInvoicePaid(ctx context.Context, inv *payments.InvoicePayload, event *payments.Event, log *zap.Logger) (string, error) {
	user, err := s.userByCustomer(ctx, string(inv.Customer))
	if err != nil {
		return "", err
	}
	if user == nil {
		log.Info("No user for invoice customer, acknowledging", zap.String("customer", string(inv.Customer)))
		return metrics.OutcomeNoUser, nil
	}
	log = log.With(zap.String("userID", user.ID.Hex()), zap.String("invoice", inv.ID))

	now := s.now()
	issuedAt := event.Created
	if inv.Created > 0 {
		issuedAt = time.Unix(inv.Created, 0).UTC()
	}
	if issuedAt.IsZero() {
		issuedAt = now
	}
	currency := strings.ToLower(inv.Currency)
	priceID := inv.PriceID()
	planName := s.Plans.PlanName(priceID)
	description := inv.LineDescription()
	failed := 0

	if priceID != "" && priceID == user.PriceID {
		if err := s.grantAccess(ctx, user, inv); err != nil {
			failed++
			log.Error("Failed to grant access", zap.Error(err))
		}
	} else {
		log.Debug("Invoice price does not match user price, access unchanged",
			zap.String("invoicePrice", priceID), zap.String("userPrice", user.PriceID))
	}

	if _, err := s.Transactions.Upsert(ctx, &models.Transaction{
		ExternalID:  inv.ID,
		UserID:      user.ID,
		CustomerID:  string(inv.Customer),
		PriceID:     priceID,
		AmountCents: inv.AmountPaid,
		Currency:    currency,
		Status:      invoiceStatusPaid,
		Description: description,
		InvoiceURL:  inv.HostedInvoiceURL,
		InvoicePDF:  inv.InvoicePDF,
		OccurredAt:  issuedAt,
		CreatedAt:   now,
	}); err != nil {
		failed++
		log.Error("Failed to upsert transaction", zap.Error(err))
	}

	if err := s.appendLegacyTransaction(ctx, user, models.ClientTransaction{
		ID:          inv.ID,
		Date:        issuedAt,
		Amount:      toMajorUnits(inv.AmountPaid, currency),
		Currency:    currency,
		Status:      invoiceStatusPaid,
		Description: description,
		PriceID:     priceID,
		ReceiptURL:  inv.HostedInvoiceURL,
		InvoiceURL:  inv.HostedInvoiceURL,
		InvoicePDF:  inv.InvoicePDF,
	}); err != nil {
		failed++
		log.Error("Failed to append transaction to client document", zap.Error(err))
	}

	created, err := s.Invoices.Upsert(ctx, &models.Invoice{
		InvoiceID:        newInvoiceNumber(issuedAt),
		UserID:           user.ID,
		StripeInvoiceID:  inv.ID,
		AmountCents:      inv.AmountPaid,
		Amount:           toMajorUnits(inv.AmountPaid, currency),
		Currency:         currency,
		Status:           invoiceStatusPaid,
		Description:      description,
		PlanName:         planName,
		HostedInvoiceURL: inv.HostedInvoiceURL,
		InvoicePDF:       inv.InvoicePDF,
		Source:           models.InvoiceSourceWebhook,
		IssuedAt:         issuedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		failed++
		log.Error("Failed to upsert invoice", zap.Error(err))
	} else if created {
		metrics.InvoicesUpserted.WithLabelValues(models.InvoiceSourceWebhook).Inc()
		s.publish(ctx, BillingEvent{
			Type:        BillingEventPaymentSucceeded,
			UserID:      user.ID.Hex(),
			Email:       user.Email,
			AmountCents: inv.AmountPaid,
			Currency:    currency,
			PlanName:    planName,
			InvoiceURL:  inv.HostedInvoiceURL,
			OccurredAt:  issuedAt,
		}, log)
	}

	if failed > 0 {
		return metrics.OutcomePartial, nil
	}
	log.Info("Invoice reconciled", zap.Bool("invoiceCreated", created))
	return metrics.OutcomeProcessed, nil
}

func (s *billingService) grantAccess(ctx context.Context, user *models.User, inv *payments.InvoicePayload) error {
	if err := s.Users.SetAccess(ctx, user.ID, true); err != nil {
		return err
	}
	sub := user.Subscription
	sub.Status = subscriptionStatusActive
	if id := inv.SubscriptionID(); id != "" {
		sub.ID = id
	}
	if name := s.Plans.PlanName(user.PriceID); name != "" {
		sub.Plan = name
	}
	if start, end := inv.Period(); end != nil {
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd = start, end
	}
	return s.Users.UpdateSubscription(ctx, user.ID, sub)
}

func (s *billingService) appendLegacyTransaction(ctx context.Context, user *models.User, entry models.ClientTransaction) error {
	if err := s.Clients.EnsureDocument(ctx, user.ID, user.Email); err != nil {
		return err
	}
	_, err := s.Clients.AppendTransaction(ctx, user.ID, user.Email, entry)
	return err
}

func (s *billingService) handleInvoiceFailed(ctx context.Context, inv *payments.InvoicePayload, event *payments.Event, log *zap.Logger) (string, error) {
	user, err := s.userByCustomer(ctx, string(inv.Customer))
	if err != nil {
		return "", err
	}
	if user == nil {
		return metrics.OutcomeNoUser, nil
	}
	log = log.With(zap.String("userID", user.ID.Hex()), zap.String("invoice", inv.ID))
	now := s.now()
	currency := strings.ToLower(inv.Currency)
	failed := 0

	sub := user.Subscription
	sub.Status = subscriptionStatusPastDue
	if err := s.Users.UpdateSubscription(ctx, user.ID, sub); err != nil {
		failed++
		log.Error("Failed to mark subscription past due", zap.Error(err))
	}
	occurredAt := event.Created
	if occurredAt.IsZero() {
		occurredAt = now
	}
	// Keyed apart from the invoice id so a later successful retry of the same
	// invoice still records its own transaction.
	if _, err := s.Transactions.Upsert(ctx, &models.Transaction{
		ExternalID:  event.ID,
		UserID:      user.ID,
		CustomerID:  string(inv.Customer),
		PriceID:     inv.PriceID(),
		AmountCents: inv.AmountDue,
		Currency:    currency,
		Status:      transactionStatusFailed,
		Description: inv.LineDescription(),
		InvoiceURL:  inv.HostedInvoiceURL,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
	}); err != nil {
		failed++
		log.Error("Failed to record failed payment", zap.Error(err))
	}

	s.Audit.Record(ctx, user.ID.Hex(), ActionPaymentFailed, "invoice", inv.ID, map[string]interface{}{
		"amountDue": inv.AmountDue,
		"currency":  currency,
	})
	s.publish(ctx, BillingEvent{
		Type:        BillingEventPaymentFailed,
		UserID:      user.ID.Hex(),
		Email:       user.Email,
		AmountCents: inv.AmountDue,
		Currency:    currency,
		InvoiceURL:  inv.HostedInvoiceURL,
		OccurredAt:  occurredAt,
	}, log)

	if failed > 0 {
		return metrics.OutcomePartial, nil
	}
	return metrics.OutcomeProcessed, nil
}

func (s *billingService) handleCheckoutCompleted(ctx context.Context, cs *payments.CheckoutSessionPayload, log *zap.Logger) (string, error) {
	user, err := s.checkoutUser(ctx, cs)
	if err != nil {
		return "", err
	}
	if user == nil {
		log.Info("No user for checkout session, acknowledging", zap.String("session", cs.ID))
		return metrics.OutcomeNoUser, nil
	}
	log = log.With(zap.String("userID", user.ID.Hex()))

	priceID := cs.Metadata["priceId"]
	if priceID == "" {
		priceID = user.PriceID
	}
	planName := s.Plans.PlanName(priceID)
	if planName == "" {
		planName = user.Subscription.Plan
	}

	if err := s.Users.SetBillingCustomer(ctx, user.ID, string(cs.Customer), priceID, planName); err != nil {
		return "", fmt.Errorf("failed to link customer for user '%s': %w", user.ID.Hex(), err)
	}
	failed := 0
	if err := s.Users.SetAccess(ctx, user.ID, true); err != nil {
		failed++
		log.Error("Failed to grant access", zap.Error(err))
	}
	sub := user.Subscription
	sub.Plan = planName
	sub.Status = subscriptionStatusActive
	sub.CancelAtPeriodEnd = false
	if cs.Subscription != "" {
		sub.ID = string(cs.Subscription)
	}
	if err := s.Users.UpdateSubscription(ctx, user.ID, sub); err != nil {
		failed++
		log.Error("Failed to update subscription snapshot", zap.Error(err))
	}
	s.Audit.Record(ctx, user.ID.Hex(), ActionSubscriptionStart, "subscription", sub.ID, map[string]interface{}{
		"priceId": priceID,
		"plan":    planName,
	})

	if failed > 0 {
		return metrics.OutcomePartial, nil
	}
	log.Info("Checkout completed", zap.String("plan", planName))
	return metrics.OutcomeProcessed, nil
}

// checkoutUser resolves the buyer by client_reference_id, then customer, then e-mail.
func (s *billingService) checkoutUser(ctx context.Context, cs *payments.CheckoutSessionPayload) (*models.User, error) {
	if oid, err := bson.ObjectIDFromHex(cs.ClientReferenceID); err == nil {
		user, err := s.Users.GetByID(ctx, oid)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("failed to get user '%s': %w", cs.ClientReferenceID, err)
		}
	}
	user, err := s.userByCustomer(ctx, string(cs.Customer))
	if err != nil || user != nil {
		return user, err
	}
	email := cs.Email()
	if email == "" {
		return nil, nil
	}
	user, err = s.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by e-mail '%s': %w", email, err)
	}
	return user, nil
}

func (s *billingService) handleSubscriptionChange(ctx context.Context, remote *payments.SubscriptionPayload, deleted bool, log *zap.Logger) (string, error) {
	user, err := s.userByCustomer(ctx, string(remote.Customer))
	if err != nil {
		return "", err
	}
	if user == nil {
		return metrics.OutcomeNoUser, nil
	}
	log = log.With(zap.String("userID", user.ID.Hex()), zap.String("subscription", remote.ID))
	failed := 0

	sub := user.Subscription
	sub.ID = remote.ID
	sub.Status = remote.Status
	sub.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	if start, end := remote.Period(); end != nil {
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd = start, end
	}
	if priceID := remote.PriceID(); priceID != "" {
		if name := s.Plans.PlanName(priceID); name != "" {
			sub.Plan = name
		}
		if priceID != user.PriceID && !deleted {
			if err := s.Users.SetBillingCustomer(ctx, user.ID, user.CustomerID, priceID, sub.Plan); err != nil {
				failed++
				log.Error("Failed to record plan change", zap.Error(err))
			}
		}
	}
	if deleted {
		sub.Status = subscriptionStatusCanceled
		sub.Plan = s.Plans.Free().Name
		if err := s.Users.SetAccess(ctx, user.ID, false); err != nil {
			failed++
			log.Error("Failed to revoke access", zap.Error(err))
		}
	}
	if err := s.Users.UpdateSubscription(ctx, user.ID, sub); err != nil {
		failed++
		log.Error("Failed to update subscription snapshot", zap.Error(err))
	}

	if deleted {
		s.Audit.Record(ctx, user.ID.Hex(), ActionSubscriptionEnded, "subscription", remote.ID, nil)
		s.publish(ctx, BillingEvent{
			Type:       BillingEventSubscriptionCanceled,
			UserID:     user.ID.Hex(),
			Email:      user.Email,
			PlanName:   user.Subscription.Plan,
			OccurredAt: s.now(),
		}, log)
	}
	if failed > 0 {
		return metrics.OutcomePartial, nil
	}
	return metrics.OutcomeProcessed, nil
}

func (s *billingService) publish(ctx context.Context, ev BillingEvent, log *zap.Logger) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishJSON(ctx, s.EventsQueue, ev); err != nil {
		log.Warn("Failed to publish billing event", zap.String("type", ev.Type), zap.Error(err))
	}
}

// newInvoiceNumber returns a display number like INV-202410-3F2A9C1B.
func newInvoiceNumber(issuedAt time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("INV-%s-%s", issuedAt.Format("200601"), id[:8])
}
