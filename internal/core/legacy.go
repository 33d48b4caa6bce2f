package core

import (
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Legacy client documents were written by several generations of code, so dates
// and amounts arrive as whatever BSON type the writer happened to use.

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// zeroDecimalCurrencies are charged in their major unit by Stripe.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// parseLegacyTime decodes a stored date. ok is false for missing or malformed values.
func parseLegacyTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t.UTC(), !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return t.UTC(), !t.IsZero()
	case bson.DateTime:
		return t.Time().UTC(), true
	case bson.Timestamp:
		return time.Unix(int64(t.T), 0).UTC(), true
	case int32:
		return unixAuto(int64(t)), t > 0
	case int64:
		return unixAuto(t), t > 0
	case int:
		return unixAuto(int64(t)), t > 0
	case float64:
		return unixAuto(int64(t)), t > 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return unixAuto(n), n > 0
		}
		for _, layout := range legacyTimeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
		return time.Time{}, false
	case bson.D:
		for _, e := range t {
			if e.Key == "$date" {
				return parseLegacyTime(e.Value)
			}
		}
	case bson.M:
		return parseLegacyTime(t["$date"])
	case map[string]any:
		return parseLegacyTime(t["$date"])
	}
	return time.Time{}, false
}

// unixAuto treats values past 1e12 as milliseconds.
func unixAuto(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// parseLegacyAmount decodes a stored major-unit amount such as 249, "249.00" or "$1,249.00".
func parseLegacyAmount(v any) (float64, bool) {
	switch a := v.(type) {
	case nil:
		return 0, false
	case float64:
		return a, true
	case float32:
		return float64(a), true
	case int32:
		return float64(a), true
	case int64:
		return float64(a), true
	case int:
		return float64(a), true
	case bson.Decimal128:
		f, err := strconv.ParseFloat(a.String(), 64)
		return f, err == nil
	case string:
		s := strings.Map(func(r rune) rune {
			switch r {
			case '$', '€', '£', ',', ' ':
				return -1
			}
			return r
		}, strings.TrimSpace(a))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case bson.D:
		for _, e := range a {
			if e.Key == "$numberDecimal" || e.Key == "$numberDouble" || e.Key == "$numberInt" || e.Key == "$numberLong" {
				return parseLegacyAmount(e.Value)
			}
		}
	}
	return 0, false
}

// parseLegacyInt decodes small integers such as card expiry months.
func parseLegacyInt(v any) int64 {
	f, ok := parseLegacyAmount(v)
	if !ok {
		return 0
	}
	return int64(f)
}

// toMinorUnits converts a major-unit amount to the smallest currency unit.
func toMinorUnits(amount float64, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return int64(math.Round(amount))
	}
	return int64(math.Round(amount * 100))
}

// toMajorUnits converts Stripe's smallest currency unit to a display amount.
func toMajorUnits(minor int64, currency string) float64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return float64(minor)
	}
	return float64(minor) / 100
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
