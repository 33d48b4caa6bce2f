package core

import (
	"voicedesk-backend-go/configs"
	"voicedesk-backend-go/internal/models"
)

const freePlanName = "free"

// PlanCatalog indexes the configured plans by name and Stripe price.
type PlanCatalog struct {
	plans   []configs.Plan
	byName  map[string]int
	byPrice map[string]int
}

// NewPlanCatalog builds a catalog. The first plan without a price is the free plan.
func NewPlanCatalog(plans []configs.Plan) *PlanCatalog {
	c := &PlanCatalog{
		plans:   plans,
		byName:  make(map[string]int, len(plans)),
		byPrice: make(map[string]int, len(plans)),
	}
	for i, p := range plans {
		c.byName[p.Name] = i
		if p.PriceID != "" {
			c.byPrice[p.PriceID] = i
		}
	}
	return c
}

func (c *PlanCatalog) ByPriceID(priceID string) (configs.Plan, bool) {
	i, ok := c.byPrice[priceID]
	if !ok {
		return configs.Plan{}, false
	}
	return c.plans[i], true
}

func (c *PlanCatalog) ByName(name string) (configs.Plan, bool) {
	i, ok := c.byName[name]
	if !ok {
		return configs.Plan{}, false
	}
	return c.plans[i], true
}

// Free returns the plan applied to users without access.
func (c *PlanCatalog) Free() configs.Plan {
	if p, ok := c.ByName(freePlanName); ok {
		return p
	}
	for _, p := range c.plans {
		if p.PriceID == "" {
			return p
		}
	}
	return configs.Plan{Name: freePlanName, DisplayName: "Free"}
}

// ForUser returns the plan whose limits apply to user.
func (c *PlanCatalog) ForUser(user *models.User) configs.Plan {
	if user == nil || !user.HasAccess {
		return c.Free()
	}
	if p, ok := c.ByPriceID(user.PriceID); ok {
		return p
	}
	if p, ok := c.ByName(user.Subscription.Plan); ok {
		return p
	}
	return c.Free()
}

// PlanName returns the name of the plan sold at priceID, or "" when unknown.
func (c *PlanCatalog) PlanName(priceID string) string {
	if p, ok := c.ByPriceID(priceID); ok {
		return p.Name
	}
	return ""
}

func (c *PlanCatalog) All() []configs.Plan {
	out := make([]configs.Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

func planDetails(p configs.Plan) PlanDetails {
	return PlanDetails{
		Name:              p.Name,
		DisplayName:       p.DisplayName,
		MonthlyPriceCents: p.MonthlyPriceCents,
		MaxAssistants:     p.MaxAssistants,
		MaxPhoneNumbers:   p.MaxPhoneNumbers,
		MinutesLimit:      p.MinutesLimit,
	}
}

// withinLimit reports whether one more item fits under limit. Negative limits are unlimited.
func withinLimit(limit int, count int64) bool {
	return limit < 0 || count < int64(limit)
}
