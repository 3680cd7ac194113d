package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/logiserv/billing/internal/domain/shared"
)

// ResolveTier selects the single applicable pricing tier for a service type
// and quantity from a contract's tier list.
//
// A tier is a candidate if its service name matches the usage service type
// (case-insensitive substring in either direction). Among candidates the
// first whose quantity range contains the quantity wins; ties between
// overlapping candidates go to the first list match, which callers rely on.
// If no range contains the quantity, the last candidate whose MinQuantity the
// quantity meets or exceeds is treated as open-ended; failing that, the last
// candidate overall. A missing candidate set is a configuration defect and
// returns NO_PRICING_TIER so the caller aborts instead of billing at zero.
func ResolveTier(serviceType string, quantity decimal.Decimal, tiers []PricingTier) (*PricingTier, error) {
	var candidates []*PricingTier
	for i := range tiers {
		if tiers[i].MatchesService(serviceType) {
			candidates = append(candidates, &tiers[i])
		}
	}
	if len(candidates) == 0 {
		return nil, shared.NewDomainError("NO_PRICING_TIER",
			fmt.Sprintf("No pricing tier matches service type %q", serviceType))
	}

	for _, t := range candidates {
		if t.Contains(quantity) {
			return t, nil
		}
	}

	var fallback *PricingTier
	for _, t := range candidates {
		if quantity.GreaterThanOrEqual(t.MinQuantity) {
			fallback = t
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return candidates[len(candidates)-1], nil
}
