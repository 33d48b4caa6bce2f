package configs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Plan is one subscription tier. Negative limits mean unlimited.
type Plan struct {
	Name              string  `yaml:"name" json:"name"`
	DisplayName       string  `yaml:"display_name" json:"displayName"`
	PriceID           string  `yaml:"price_id" json:"priceId,omitempty"`
	MonthlyPriceCents int64   `yaml:"monthly_price_cents" json:"monthlyPriceCents"`
	MaxAssistants     int     `yaml:"max_assistants" json:"maxAssistants"`
	MaxPhoneNumbers   int     `yaml:"max_phone_numbers" json:"maxPhoneNumbers"`
	MinutesLimit      float64 `yaml:"minutes_limit" json:"minutesLimit"`
}

type planFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadPlans reads the plan catalog from a YAML file. An empty path returns DefaultPlans.
func LoadPlans(path string) ([]Plan, error) {
	if path == "" {
		return DefaultPlans(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog %s: %w", path, err)
	}
	return ParsePlans(data)
}

// ParsePlans decodes and validates a plan catalog document.
func ParsePlans(data []byte) ([]Plan, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog has no plans")
	}
	seen := make(map[string]bool, len(f.Plans))
	for _, p := range f.Plans {
		if p.Name == "" {
			return nil, fmt.Errorf("plan catalog: plan without name")
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("plan catalog: duplicate plan %q", p.Name)
		}
		seen[p.Name] = true
	}
	return f.Plans, nil
}

// DefaultPlans is used when no PLANS_FILE is configured. Price ids are Stripe
// test-mode placeholders.
func DefaultPlans() []Plan {
	return []Plan{
		{Name: "free", DisplayName: "Free", MaxAssistants: 1, MaxPhoneNumbers: 0, MinutesLimit: 30},
		{Name: "starter", DisplayName: "Starter", PriceID: "price_starter_monthly", MonthlyPriceCents: 4900, MaxAssistants: 3, MaxPhoneNumbers: 1, MinutesLimit: 300},
		{Name: "pro", DisplayName: "Pro", PriceID: "price_pro_monthly", MonthlyPriceCents: 24900, MaxAssistants: 10, MaxPhoneNumbers: 5, MinutesLimit: 2000},
		{Name: "enterprise", DisplayName: "Enterprise", PriceID: "price_enterprise_monthly", MonthlyPriceCents: 99900, MaxAssistants: -1, MaxPhoneNumbers: -1, MinutesLimit: 10000},
	}
}
