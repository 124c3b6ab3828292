// Package pricing converts supplier cost and freight cost into a shelf
// price in the storefront's reference currency.
package pricing

import (
	"math"
	"sort"
)

// Rule is one pricing rule: a margin, a minimum absolute profit, a
// payment-fee pass-through and the smart-rounding target list. Rules are
// resolved per category with an injected default, never read from ambient
// state.
type Rule struct {
	MarginPercent     float64   `json:"marginPercent"`
	MinProfit         float64   `json:"minProfit"`
	PaymentFeePercent float64   `json:"paymentFeePercent"`
	SmartRounding     bool      `json:"smartRounding"`
	RoundingTargets   []float64 `json:"roundingTargets,omitempty"`
}

// DefaultRule returns the global fallback rule
func DefaultRule() Rule {
	return Rule{
		MarginPercent:     35,
		MinProfit:         10,
		PaymentFeePercent: 2.9,
		SmartRounding:     true,
		RoundingTargets:   []float64{9.99, 14.99, 19.99, 29.99, 39.99, 49.99, 69.99, 89.99, 119.99, 149.99, 199.99, 249.99, 299.99, 399.99, 499.99},
	}
}

// ResolveRule looks up the category-specific rule, falling back to the
// supplied default. The default is passed by the caller on purpose: the
// engine has no process-wide rule singleton.
func ResolveRule(category string, rules map[string]Rule, fallback Rule) Rule {
	if category != "" {
		if rule, ok := rules[category]; ok {
			return rule
		}
	}
	return fallback
}

// Quote is the priced outcome for one variant
type Quote struct {
	ShelfPrice    float64 `json:"shelfPrice"`
	Profit        float64 `json:"profit"`
	MarginApplied float64 `json:"marginApplied"`
	Landed        float64 `json:"landed"`
}

// PriceVariant computes the shelf price for one variant. cost and shipping
// are in the supplier's currency; rate converts into the reference
// currency and must come from configuration, never assumed 1.
//
// The sequence is margin, then profit floor, then rounding, then a
// re-check of the floor: sparse rounding targets can pull a rounded price
// back below landed+minProfit, and skipping the re-check would silently
// sell below the configured minimum margin.
func PriceVariant(cost, shipping float64, rule Rule, rate float64) Quote {
	landed := (cost + shipping) * rate * (1 + rule.PaymentFeePercent/100)
	target := landed * (1 + rule.MarginPercent/100)

	floor := landed + rule.MinProfit
	withFloor := math.Max(target, floor)

	var price float64
	if rule.SmartRounding && len(rule.RoundingTargets) > 0 {
		price = snapUp(withFloor, rule.RoundingTargets)
		if price < floor {
			price = snapUp(floor, rule.RoundingTargets)
		}
	} else {
		price = math.Ceil(withFloor*100) / 100
	}

	return Quote{
		ShelfPrice:    price,
		Profit:        round2(price - landed),
		MarginApplied: rule.MarginPercent,
		Landed:        round2(landed),
	}
}

// snapUp picks the smallest target >= value; when every target is below
// the value the largest target is returned, preferring an upward clamp to
// silently undercutting the profit floor.
func snapUp(value float64, targets []float64) float64 {
	sorted := make([]float64, len(targets))
	copy(sorted, targets)
	sort.Float64s(sorted)

	for _, t := range sorted {
		if t >= value {
			return t
		}
	}
	return sorted[len(sorted)-1]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
