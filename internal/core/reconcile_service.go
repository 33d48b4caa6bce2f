package core

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"voicedesk-backend-go/internal/db"
	"voicedesk-backend-go/internal/metrics"
	"voicedesk-backend-go/internal/models"
	"voicedesk-backend-go/internal/payments"
)

const (
	viewInvoices       = "invoices"
	viewPaymentMethods = "payment_methods"
	viewSubscription   = "subscription"

	subscriptionSourceSnapshot = "snapshot"
	subscriptionSourceRepair   = "read_repair"
)

// NewReconcileServiceConfig holds the collaborators of the reconcile service.
type NewReconcileServiceConfig struct {
	Users        db.UserRepository
	Invoices     db.InvoiceRepository
	Transactions db.TransactionRepository
	Clients      db.ClientRepository
	Gateway      payments.Gateway
	Plans        *PlanCatalog
	// EmailDomainFallback enables matching legacy documents by the user's e-mail domain.
	EmailDomainFallback bool
	Logger              *zap.Logger
}

type reconcileService struct {
	NewReconcileServiceConfig
	now func() time.Time
}

// NewReconcileService creates a new ReconcileService.
func NewReconcileService(cfg NewReconcileServiceConfig) ReconcileService {
	return &reconcileService{NewReconcileServiceConfig: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// legacySource is a matched client document. inherit is true when entries without
// their own owner fields belong to the user through the document itself.
type legacySource struct {
	record  *models.ClientRecord
	inherit bool
}

func (s *reconcileService) ListInvoices(ctx context.Context, user *models.User) ([]*models.Invoice, error) {
	invoices, err := s.Invoices.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices for user '%s': %w", user.ID.Hex(), err)
	}
	if len(invoices) > 0 {
		return invoices, nil
	}

	rebuilt, err := s.repairInvoices(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(rebuilt) == 0 {
		return []*models.Invoice{}, nil
	}
	invoices, err = s.Invoices.ListByUser(ctx, user.ID)
	if err != nil || len(invoices) == 0 {
		// Write-back failed; serve what was reconstructed.
		sortInvoices(rebuilt)
		return rebuilt, nil
	}
	return invoices, nil
}

func (s *reconcileService) RebuildInvoices(ctx context.Context, user *models.User) (int, error) {
	rebuilt, err := s.repairInvoices(ctx, user)
	if err != nil {
		return 0, err
	}
	return len(rebuilt), nil
}

// repairInvoices reconstructs invoices from normalized transactions, falling back to the
// legacy client documents, and upserts them. Upsert failures are logged per invoice.
func (s *reconcileService) repairInvoices(ctx context.Context, user *models.User) ([]*models.Invoice, error) {
	log := s.Logger.With(zap.String("userID", user.ID.Hex()), zap.String("view", viewInvoices))
	now := s.now()

	txs, err := s.Transactions.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user '%s': %w", user.ID.Hex(), err)
	}
	var rebuilt []*models.Invoice
	for _, tx := range txs {
		if !isPaidStatus(tx.Status) {
			continue
		}
		rebuilt = append(rebuilt, s.invoiceFromTransaction(user, tx, now))
	}

	if len(rebuilt) == 0 {
		sources, err := s.legacySources(ctx, user)
		if err != nil {
			return nil, err
		}
		rebuilt = s.invoicesFromLegacy(user, sources, now, log)
	}
	if len(rebuilt) == 0 {
		return nil, nil
	}

	created := 0
	for _, inv := range rebuilt {
		ok, err := s.Invoices.Upsert(ctx, inv)
		if err != nil {
			log.Warn("Read repair upsert failed", zap.String("stripeInvoiceId", inv.StripeInvoiceID), zap.Error(err))
			continue
		}
		if ok {
			created++
		}
	}
	if created > 0 {
		metrics.InvoicesUpserted.WithLabelValues(models.InvoiceSourceRepair).Add(float64(created))
	}
	metrics.ReadRepairs.WithLabelValues(viewInvoices).Inc()
	log.Info("Invoices rebuilt", zap.Int("reconstructed", len(rebuilt)), zap.Int("created", created))
	return rebuilt, nil
}

func (s *reconcileService) invoiceFromTransaction(user *models.User, tx *models.Transaction, now time.Time) *models.Invoice {
	return &models.Invoice{
		InvoiceID:        newInvoiceNumber(tx.OccurredAt),
		UserID:           user.ID,
		StripeInvoiceID:  tx.ExternalID,
		AmountCents:      tx.AmountCents,
		Amount:           toMajorUnits(tx.AmountCents, tx.Currency),
		Currency:         tx.Currency,
		Status:           invoiceStatusPaid,
		Description:      tx.Description,
		PlanName:         s.Plans.PlanName(tx.PriceID),
		HostedInvoiceURL: tx.InvoiceURL,
		InvoicePDF:       tx.InvoicePDF,
		ReceiptURL:       tx.ReceiptURL,
		Source:           models.InvoiceSourceRepair,
		IssuedAt:         tx.OccurredAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *reconcileService) invoicesFromLegacy(user *models.User, sources []legacySource, now time.Time, log *zap.Logger) []*models.Invoice {
	seen := make(map[string]bool)
	var out []*models.Invoice
	for _, src := range sources {
		for i, entry := range src.record.Transactions {
			if !ownsEntry(user, entry.UserID, entry.Email, src.inherit) || !isPaidStatus(entry.Status) {
				continue
			}
			externalID := entry.ID
			if externalID == "" {
				externalID = "legacy_" + src.record.ID.Hex() + "_" + strconv.Itoa(i)
			}
			if seen[externalID] {
				continue
			}
			seen[externalID] = true

			issuedAt, ok := parseLegacyTime(entry.Date)
			if !ok {
				log.Warn("Malformed legacy date, using current time",
					zap.String("entry", externalID), zap.Any("date", entry.Date))
				issuedAt = now
			}
			currency := strings.ToLower(entry.Currency)
			if currency == "" {
				currency = "usd"
			}
			amount, ok := parseLegacyAmount(entry.Amount)
			if !ok {
				log.Warn("Malformed legacy amount, skipping entry", zap.String("entry", externalID), zap.Any("amount", entry.Amount))
				continue
			}
			cents := toMinorUnits(amount, currency)
			out = append(out, &models.Invoice{
				InvoiceID:        newInvoiceNumber(issuedAt),
				UserID:           user.ID,
				StripeInvoiceID:  externalID,
				AmountCents:      cents,
				Amount:           toMajorUnits(cents, currency),
				Currency:         currency,
				Status:           invoiceStatusPaid,
				Description:      entry.Description,
				PlanName:         s.Plans.PlanName(entry.PriceID),
				HostedInvoiceURL: entry.InvoiceURL,
				InvoicePDF:       entry.InvoicePDF,
				ReceiptURL:       entry.ReceiptURL,
				Source:           models.InvoiceSourceRepair,
				IssuedAt:         issuedAt,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}
	}
	return out
}

// legacySources finds the user's client documents by key, then by e-mail domain when enabled.
func (s *reconcileService) legacySources(ctx context.Context, user *models.User) ([]legacySource, error) {
	records, err := s.Clients.FindForUser(ctx, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find client documents for user '%s': %w", user.ID.Hex(), err)
	}
	sources := make([]legacySource, 0, len(records))
	for _, r := range records {
		sources = append(sources, legacySource{record: r, inherit: true})
	}
	if len(sources) > 0 || !s.EmailDomainFallback {
		return sources, nil
	}

	domain := db.EmailDomain(user.Email)
	if domain == "" {
		return nil, nil
	}
	records, err = s.Clients.FindByEmailDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to find client documents for domain '%s': %w", domain, err)
	}
	for _, r := range records {
		// Documents of other users in the same domain only contribute entries the
		// user explicitly owns.
		sources = append(sources, legacySource{record: r, inherit: false})
	}
	return sources, nil
}

// ListPaymentMethods returns the Stripe cards of the customer, or cards reconstructed
// from legacy purchases when Stripe has none.
func (s *reconcileService) ListPaymentMethods(ctx context.Context, user *models.User) ([]payments.Card, error) {
	if user.CustomerID != "" {
		cards, err := s.Gateway.ListCards(ctx, user.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list cards for user '%s': %w", user.ID.Hex(), err)
		}
		if len(cards) > 0 {
			return cards, nil
		}
	}

	purchases, err := s.legacyPurchases(ctx, user)
	if err != nil {
		return nil, err
	}
	cards := cardsFromPurchases(purchases)
	if len(cards) > 0 {
		metrics.ReadRepairs.WithLabelValues(viewPaymentMethods).Inc()
	}
	return cards, nil
}

type datedPurchase struct {
	models.ClientPurchase
	at time.Time
}

// legacyPurchases returns the user's legacy purchases, newest first.
func (s *reconcileService) legacyPurchases(ctx context.Context, user *models.User) ([]datedPurchase, error) {
	sources, err := s.legacySources(ctx, user)
	if err != nil {
		return nil, err
	}
	var out []datedPurchase
	for _, src := range sources {
		for _, p := range src.record.Purchases {
			if !ownsEntry(user, p.UserID, p.Email, src.inherit) {
				continue
			}
			at, _ := parseLegacyTime(p.Date)
			out = append(out, datedPurchase{ClientPurchase: p, at: at})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].at.After(out[j].at) })
	return out, nil
}

// cardsFromPurchases de-duplicates cards by brand, last4 and expiry. The card of the
// newest purchase is the default.
func cardsFromPurchases(purchases []datedPurchase) []payments.Card {
	seen := make(map[string]bool)
	var cards []payments.Card
	for _, p := range purchases {
		if p.CardLast4 == "" {
			continue
		}
		month, year := parseLegacyInt(p.CardExpMonth), parseLegacyInt(p.CardExpYear)
		brand := strings.ToLower(p.CardBrand)
		key := fmt.Sprintf("%s:%s:%d:%d", brand, p.CardLast4, month, year)
		if seen[key] {
			continue
		}
		seen[key] = true
		cards = append(cards, payments.Card{
			ID:        "legacy_" + brand + "_" + p.CardLast4,
			Brand:     brand,
			Last4:     p.CardLast4,
			ExpMonth:  month,
			ExpYear:   year,
			IsDefault: len(cards) == 0,
		})
	}
	return cards
}

// GetSubscription returns the stored snapshot. Users without one get a snapshot rebuilt
// from their latest legacy purchase, which is written back.
func (s *reconcileService) GetSubscription(ctx context.Context, user *models.User) (*SubscriptionView, error) {
	view := &SubscriptionView{
		Subscription: user.Subscription,
		HasAccess:    user.HasAccess,
		Usage:        user.Usage,
		Source:       subscriptionSourceSnapshot,
	}
	if !hasSnapshot(user.Subscription) {
		purchases, err := s.legacyPurchases(ctx, user)
		if err != nil {
			return nil, err
		}
		if sub, ok := s.subscriptionFromPurchases(purchases); ok {
			if err := s.Users.UpdateSubscription(ctx, user.ID, sub); err != nil {
				s.Logger.Warn("Subscription read repair write-back failed",
					zap.String("userID", user.ID.Hex()), zap.Error(err))
			} else {
				metrics.ReadRepairs.WithLabelValues(viewSubscription).Inc()
			}
			view.Subscription = sub
			view.Source = subscriptionSourceRepair
		}
	}

	plan, ok := s.Plans.ByName(view.Subscription.Plan)
	if !ok {
		plan = s.Plans.ForUser(user)
	}
	view.PlanDetails = planDetails(plan)
	if view.Usage.MinutesLimit == 0 {
		view.Usage.MinutesLimit = plan.MinutesLimit
	}
	return view, nil
}

func (s *reconcileService) subscriptionFromPurchases(purchases []datedPurchase) (models.Subscription, bool) {
	for _, p := range purchases {
		if p.Plan == "" && p.PriceID == "" {
			continue
		}
		sub := models.Subscription{
			ID:     p.ID,
			Plan:   p.Plan,
			Status: strings.ToLower(p.Status),
		}
		if name := s.Plans.PlanName(p.PriceID); name != "" {
			sub.Plan = name
		}
		if sub.Status == "" || sub.Status == "paid" || sub.Status == "succeeded" || sub.Status == "complete" {
			sub.Status = subscriptionStatusActive
		}
		if !p.at.IsZero() {
			start := p.at
			sub.CurrentPeriodStart = &start
		}
		if end, ok := parseLegacyTime(p.PeriodEnd); ok {
			sub.CurrentPeriodEnd = &end
			if end.Before(s.now()) && sub.Status == subscriptionStatusActive {
				sub.Status = subscriptionStatusCanceled
			}
		}
		return sub, true
	}
	return models.Subscription{}, false
}

func hasSnapshot(sub models.Subscription) bool {
	return sub.ID != "" || (sub.Status != "" && sub.Status != subscriptionStatusInactive)
}

// ownsEntry decides whether an array entry belongs to user. Entries with their own
// userId or e-mail are matched on those; bare entries follow the document.
func ownsEntry(user *models.User, entryUserID any, entryEmail string, inherit bool) bool {
	if entryUserID != nil {
		if db.MatchUserKey(entryUserID, user.ID) {
			return true
		}
		if s, ok := entryUserID.(string); ok && strings.EqualFold(strings.TrimSpace(s), user.Email) {
			return true
		}
		return false
	}
	if entryEmail != "" {
		return strings.EqualFold(strings.TrimSpace(entryEmail), user.Email)
	}
	return inherit
}

func isPaidStatus(status string) bool {
	switch strings.ToLower(status) {
	case "", "paid", "succeeded", "success", "complete", "completed":
		return true
	}
	return false
}

func sortInvoices(invoices []*models.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool { return invoices[i].IssuedAt.After(invoices[j].IssuedAt) })
}
