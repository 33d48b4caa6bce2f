package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// Event types handled by the billing service.
const (
	EventCheckoutCompleted       = "checkout.session.completed"
	EventInvoicePaid             = "invoice.paid"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
)

// Payloads are decoded with stripe-go's types for the API version the account
// is pinned to. Events rendered with the pre-2025 layout still carry a few
// fields those types no longer have (invoice.subscription, line price and the
// subscription's own period); they are read from a second, narrow decode.

// ExpandableID decodes a field that Stripe sends either as an id string or as an
// expanded object with an "id".
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

// InvoicePayload is data.object of invoice.* events.
type InvoicePayload struct {
	ID               string
	Number           string
	Customer         ExpandableID
	CustomerEmail    string
	AmountPaid       int64
	AmountDue        int64
	Currency         string
	Status           string
	Description      string
	HostedInvoiceURL string
	InvoicePDF       string
	Created          int64
	Subscription     ExpandableID
	Lines            []InvoiceLine
}

// InvoiceLine is one line item of an invoice.
type InvoiceLine struct {
	Description string
	PriceID     string
	PeriodStart int64
	PeriodEnd   int64
}

// PriceID returns the price of the first line that carries one.
func (p *InvoicePayload) PriceID() string {
	for _, l := range p.Lines {
		if l.PriceID != "" {
			return l.PriceID
		}
	}
	return ""
}

// SubscriptionID returns the subscription the invoice belongs to, if any.
func (p *InvoicePayload) SubscriptionID() string {
	return string(p.Subscription)
}

// LineDescription is the description of the first line, falling back to the invoice's.
func (p *InvoicePayload) LineDescription() string {
	for _, l := range p.Lines {
		if l.Description != "" {
			return l.Description
		}
	}
	return p.Description
}

// Period returns the billing period of the first line.
func (p *InvoicePayload) Period() (start, end *time.Time) {
	if len(p.Lines) == 0 {
		return nil, nil
	}
	return unixPtr(p.Lines[0].PeriodStart), unixPtr(p.Lines[0].PeriodEnd)
}

func invoiceFromStripe(inv *stripe.Invoice) *InvoicePayload {
	p := &InvoicePayload{
		ID:               inv.ID,
		Number:           inv.Number,
		CustomerEmail:    inv.CustomerEmail,
		AmountPaid:       inv.AmountPaid,
		AmountDue:        inv.AmountDue,
		Currency:         string(inv.Currency),
		Status:           string(inv.Status),
		Description:      inv.Description,
		HostedInvoiceURL: inv.HostedInvoiceURL,
		InvoicePDF:       inv.InvoicePDF,
		Created:          inv.Created,
	}
	if inv.Customer != nil {
		p.Customer = ExpandableID(inv.Customer.ID)
	}
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
		p.Subscription = ExpandableID(inv.Parent.SubscriptionDetails.Subscription.ID)
	}
	if inv.Lines != nil {
		for _, l := range inv.Lines.Data {
			if l == nil {
				continue
			}
			line := InvoiceLine{Description: l.Description}
			if l.Pricing != nil && l.Pricing.PriceDetails != nil {
				line.PriceID = l.Pricing.PriceDetails.Price
			}
			if l.Period != nil {
				line.PeriodStart, line.PeriodEnd = l.Period.Start, l.Period.End
			}
			p.Lines = append(p.Lines, line)
		}
	}
	return p
}

// legacyInvoice holds the invoice fields that only exist in the old layout.
type legacyInvoice struct {
	Subscription ExpandableID `json:"subscription"`
	Lines        struct {
		Data []struct {
			Price *struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"lines"`
}

func (p *InvoicePayload) fillLegacy(old *legacyInvoice) {
	if p.Subscription == "" {
		p.Subscription = old.Subscription
	}
	for i, l := range old.Lines.Data {
		if i >= len(p.Lines) {
			break
		}
		if p.Lines[i].PriceID == "" && l.Price != nil {
			p.Lines[i].PriceID = l.Price.ID
		}
	}
}

// CheckoutSessionPayload is data.object of checkout.session.completed.
type CheckoutSessionPayload struct {
	ID                string
	Mode              string
	Customer          ExpandableID
	CustomerEmail     string
	DetailsEmail      string
	ClientReferenceID string
	Subscription      ExpandableID
	AmountTotal       int64
	Currency          string
	PaymentStatus     string
	Metadata          map[string]string
}

// Email returns the best known e-mail of the paying customer.
func (c *CheckoutSessionPayload) Email() string {
	if c.DetailsEmail != "" {
		return c.DetailsEmail
	}
	return c.CustomerEmail
}

func checkoutSessionFromStripe(cs *stripe.CheckoutSession) *CheckoutSessionPayload {
	p := &CheckoutSessionPayload{
		ID:                cs.ID,
		Mode:              string(cs.Mode),
		CustomerEmail:     cs.CustomerEmail,
		ClientReferenceID: cs.ClientReferenceID,
		AmountTotal:       cs.AmountTotal,
		Currency:          string(cs.Currency),
		PaymentStatus:     string(cs.PaymentStatus),
		Metadata:          cs.Metadata,
	}
	if cs.Customer != nil {
		p.Customer = ExpandableID(cs.Customer.ID)
	}
	if cs.Subscription != nil {
		p.Subscription = ExpandableID(cs.Subscription.ID)
	}
	if cs.CustomerDetails != nil {
		p.DetailsEmail = cs.CustomerDetails.Email
	}
	return p
}

// SubscriptionPayload is data.object of customer.subscription.* events.
type SubscriptionPayload struct {
	ID                 string
	Customer           ExpandableID
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	Items              []SubscriptionItem
}

// SubscriptionItem is a single priced item of a subscription.
type SubscriptionItem struct {
	PriceID            string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
}

// PriceID returns the price of the first item.
func (s *SubscriptionPayload) PriceID() string {
	for _, it := range s.Items {
		if it.PriceID != "" {
			return it.PriceID
		}
	}
	return ""
}

// Period returns the current period, from the subscription or its first item.
func (s *SubscriptionPayload) Period() (start, end *time.Time) {
	st, en := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if st == 0 && en == 0 && len(s.Items) > 0 {
		st, en = s.Items[0].CurrentPeriodStart, s.Items[0].CurrentPeriodEnd
	}
	return unixPtr(st), unixPtr(en)
}

func subscriptionFromStripe(sub *stripe.Subscription) *SubscriptionPayload {
	p := &SubscriptionPayload{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		p.Customer = ExpandableID(sub.Customer.ID)
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil {
				continue
			}
			si := SubscriptionItem{
				CurrentPeriodStart: item.CurrentPeriodStart,
				CurrentPeriodEnd:   item.CurrentPeriodEnd,
			}
			if item.Price != nil {
				si.PriceID = item.Price.ID
			}
			p.Items = append(p.Items, si)
		}
	}
	return p
}

// legacySubscription holds the period the old layout kept on the subscription itself.
type legacySubscription struct {
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
}

// DecodeInvoice decodes an invoice event payload.
func DecodeInvoice(raw json.RawMessage) (*InvoicePayload, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	if inv.ID == "" {
		return nil, fmt.Errorf("decode invoice: missing id")
	}
	var old legacyInvoice
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, fmt.Errorf("decode invoice: %w", err)
	}
	p := invoiceFromStripe(&inv)
	p.fillLegacy(&old)
	return p, nil
}

// DecodeCheckoutSession decodes a checkout session event payload.
func DecodeCheckoutSession(raw json.RawMessage) (*CheckoutSessionPayload, error) {
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	return checkoutSessionFromStripe(&cs), nil
}

// DecodeSubscription decodes a subscription event payload.
func DecodeSubscription(raw json.RawMessage) (*SubscriptionPayload, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	var old legacySubscription
	if err := json.Unmarshal(raw, &old); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	p := subscriptionFromStripe(&sub)
	p.CurrentPeriodStart, p.CurrentPeriodEnd = old.CurrentPeriodStart, old.CurrentPeriodEnd
	return p, nil
}

func unixPtr(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
