package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/db"
)

type notificationService struct {
	users     db.UserRepository
	sender    EmailSender
	clientURL string
	logger    *zap.Logger
}

// NewNotificationService creates a NotificationService that e-mails billing alerts
// to users who opted in.
func NewNotificationService(users db.UserRepository, sender EmailSender, clientURL string, logger *zap.Logger) NotificationService {
	return &notificationService{users: users, sender: sender, clientURL: strings.TrimRight(clientURL, "/"), logger: logger}
}

// HandleBillingEvent is the billing events queue handler. Malformed messages are
// returned as errors so the consumer drops them; unknown users are skipped.
func (s *notificationService) HandleBillingEvent(ctx context.Context, body []byte) error {
	var ev BillingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("decode billing event: %w", err)
	}
	oid, err := bson.ObjectIDFromHex(ev.UserID)
	if err != nil {
		return fmt.Errorf("billing event has invalid user id '%s'", ev.UserID)
	}
	user, err := s.users.GetByID(ctx, oid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Info("Billing event for unknown user skipped", zap.String("userID", ev.UserID))
			return nil
		}
		return fmt.Errorf("failed to load user '%s': %w", ev.UserID, err)
	}
	if !user.Notifications.EmailNotifications || !user.Notifications.BillingAlerts {
		return nil
	}

	subject, text, ok := s.render(ev)
	if !ok {
		s.logger.Debug("No template for billing event", zap.String("type", ev.Type))
		return nil
	}
	if err := s.sender.Send(user.Email, subject, text); err != nil {
		return fmt.Errorf("failed to send %s e-mail to '%s': %w", ev.Type, user.Email, err)
	}
	s.logger.Info("Billing e-mail sent", zap.String("userID", ev.UserID), zap.String("type", ev.Type))
	return nil
}

func (s *notificationService) render(ev BillingEvent) (subject, body string, ok bool) {
	amount := formatAmount(ev.AmountCents, ev.Currency)
	billingURL := s.clientURL + "/dashboard/billing"
	switch ev.Type {
	case BillingEventPaymentSucceeded:
		subject = "Payment received"
		body = fmt.Sprintf("We received your payment of %s.", amount)
		if ev.InvoiceURL != "" {
			body += "\n\nInvoice: " + ev.InvoiceURL
		}
	case BillingEventPaymentFailed:
		subject = "Payment failed"
		body = fmt.Sprintf("Your payment of %s could not be processed. Please update your payment method:\n%s", amount, billingURL)
	case BillingEventSubscriptionCanceled:
		subject = "Subscription ended"
		body = "Your subscription has ended and your account is back on the free plan.\n\nResubscribe at " + billingURL
	default:
		return "", "", false
	}
	return subject, body, true
}

func formatAmount(minor int64, currency string) string {
	code := strings.ToUpper(currency)
	if code == "" {
		code = "USD"
	}
	if zeroDecimalCurrencies[strings.ToLower(code)] {
		return fmt.Sprintf("%d %s", minor, code)
	}
	return fmt.Sprintf("%.2f %s", toMajorUnits(minor, currency), code)
}
