// Package payments wraps the Stripe API behind a small Gateway interface so the
// billing flows can be exercised without network access.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	// ErrSignature is returned when a webhook payload fails verification.
	ErrSignature = errors.New("stripe webhook signature verification failed")
	// ErrProvider wraps any failed Stripe API call.
	ErrProvider = errors.New("stripe client operation failed")
)

// Event is a verified webhook event. Raw holds data.object.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	Raw     json.RawMessage
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	UserID     string // sent as client_reference_id
	Email      string
	CustomerID string // reused when the user already has one
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the part of the created session the client needs.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// Card is a stored card payment method.
type Card struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int64  `json:"expMonth"`
	ExpYear   int64  `json:"expYear"`
	IsDefault bool   `json:"isDefault"`
}

// Gateway is the subset of Stripe used by the billing services.
type Gateway interface {
	ConstructEvent(payload []byte, signature string) (*Event, error)
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ListCards(ctx context.Context, customerID string) ([]Card, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*SubscriptionPayload, error)
}

// StripeGateway implements Gateway with stripe-go.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway creates a gateway authenticated with secretKey.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

// ConstructEvent verifies the Stripe-Signature header against the shared secret.
// API version mismatches are tolerated because payloads are decoded into local types.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	return constructEvent(payload, signature, g.webhookSecret)
}

func constructEvent(payload []byte, signature, secret string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignature, err)
	}
	e := &Event{ID: evt.ID, Type: string(evt.Type), Created: time.Unix(evt.Created, 0).UTC()}
	if evt.Data != nil {
		e.Raw = evt.Data.Raw
	}
	return e, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.UserID),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	params.Context = ctx
	params.AddMetadata("priceId", p.PriceID)
	params.AddMetadata("userId", p.UserID)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %v", ErrProvider, err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	s, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create portal session: %v", ErrProvider, err)
	}
	return s.URL, nil
}

func (g *StripeGateway) ListCards(ctx context.Context, customerID string) ([]Card, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	cards := []Card{}
	it := g.api.PaymentMethods.List(params)
	for it.Next() {
		pm := it.PaymentMethod()
		if pm.Card == nil {
			continue
		}
		cards = append(cards, Card{
			ID:       pm.ID,
			Brand:    string(pm.Card.Brand),
			Last4:    pm.Card.Last4,
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
		})
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("%w: list payment methods: %v", ErrProvider, err)
	}
	if len(cards) > 0 {
		cards[0].IsDefault = true
	}
	return cards, nil
}

func (g *StripeGateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*SubscriptionPayload, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: cancel subscription: %v", ErrProvider, err)
	}
	return subscriptionFromStripe(sub), nil
}
