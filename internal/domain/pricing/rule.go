package pricing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/logiserv/billing/internal/domain/shared"
)

// RuleType classifies how a pricing rule's eligibility is derived
type RuleType string

const (
	RuleTypeVolumeDiscount RuleType = "volume_discount"
	RuleTypeTimeBased      RuleType = "time_based"
	RuleTypeServiceBundle  RuleType = "service_bundle"
	RuleTypeLoyalty        RuleType = "loyalty"
	RuleTypeSeasonal       RuleType = "seasonal"
	RuleTypePromotional    RuleType = "promotional"
)

// IsValid returns true if the rule type is known
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeVolumeDiscount, RuleTypeTimeBased, RuleTypeServiceBundle,
		RuleTypeLoyalty, RuleTypeSeasonal, RuleTypePromotional:
		return true
	}
	return false
}

// RuleAction determines how an eligible rule's discount is computed
type RuleAction string

const (
	ActionDiscountPercentage RuleAction = "discount_percentage"
	ActionDiscountFixed      RuleAction = "discount_fixed"
	ActionPriceOverride      RuleAction = "price_override"
	ActionWaiveFee           RuleAction = "waive_fee"
)

// IsValid returns true if the action is known
func (a RuleAction) IsValid() bool {
	switch a {
	case ActionDiscountPercentage, ActionDiscountFixed, ActionPriceOverride, ActionWaiveFee:
		return true
	}
	return false
}

// RuleConditions carries the typed condition payload for a rule. Each rule
// type reads exactly one shape out of it; ValidateFor rejects malformed
// payloads at construction time instead of silently treating them as
// non-matching at evaluation time.
type RuleConditions struct {
	MinMonthlySpend   *decimal.Decimal `json:"min_monthly_spend,omitempty"`
	MinContractMonths *int             `json:"min_contract_months,omitempty"`
	Months            []int            `json:"months,omitempty"`
	Hours             []int            `json:"hours,omitempty"`
	Services          []string         `json:"services,omitempty"`
}

// ValidateFor checks that the conditions carry the payload the rule type needs
func (c RuleConditions) ValidateFor(ruleType RuleType) error {
	switch ruleType {
	case RuleTypeVolumeDiscount:
		if c.MinMonthlySpend == nil {
			return shared.NewDomainError("INVALID_RULE_CONDITIONS", "volume_discount rule requires min_monthly_spend")
		}
		if c.MinMonthlySpend.IsNegative() {
			return shared.NewDomainError("INVALID_RULE_CONDITIONS", "min_monthly_spend cannot be negative")
		}
	case RuleTypeLoyalty:
		if c.MinContractMonths == nil {
			return shared.NewDomainError("INVALID_RULE_CONDITIONS", "loyalty rule requires min_contract_months")
		}
		if *c.MinContractMonths < 0 {
			return shared.NewDomainError("INVALID_RULE_CONDITIONS", "min_contract_months cannot be negative")
		}
	case RuleTypeSeasonal:
		if len(c.Months) == 0 {
			return shared.NewDomainError("INVALID_RULE_CONDITIONS", "seasonal rule requires at least one month")
		}
		for _, m := range c.Months {
			if m < 1 || m > 12 {
				return shared.NewDomainError("INVALID_RULE_CONDITIONS", fmt.Sprintf("invalid month %d in seasonal rule", m))
			}
		}
	case RuleTypeTimeBased:
		if len(c.Hours) == 0 {
			return shared.NewDomainError("INVALID_RULE_CONDITIONS", "time_based rule requires at least one hour")
		}
		for _, h := range c.Hours {
			if h < 0 || h > 23 {
				return shared.NewDomainError("INVALID_RULE_CONDITIONS", fmt.Sprintf("invalid hour %d in time_based rule", h))
			}
		}
	case RuleTypeServiceBundle, RuleTypePromotional:
		// No required payload; Services is an extension point for bundles.
	default:
		return shared.NewDomainError("INVALID_RULE_TYPE", fmt.Sprintf("unknown rule type %q", ruleType))
	}
	return nil
}

// Value implements driver.Valuer for database storage
func (c RuleConditions) Value() (driver.Value, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval
func (c *RuleConditions) Scan(value any) error {
	if value == nil {
		*c = RuleConditions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RuleConditions", value)
	}
	return json.Unmarshal(data, c)
}

// PricingRule is a conditional discount/override applied on top of tier
// pricing. Rules are immutable per evaluation; eligibility is re-derived each
// run from conditions against current usage/contract state and never cached
// across billing periods.
type PricingRule struct {
	shared.TenantAggregateRoot
	Name       string
	Type       RuleType
	Conditions RuleConditions
	Action     RuleAction
	Value      decimal.Decimal
	Priority   int
	Active     bool
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// NewPricingRule creates a pricing rule with validation
func NewPricingRule(
	tenantID uuid.UUID,
	name string,
	ruleType RuleType,
	conditions RuleConditions,
	action RuleAction,
	value decimal.Decimal,
	priority int,
) (*PricingRule, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_RULE_NAME", "Rule name cannot be empty")
	}
	if !ruleType.IsValid() {
		return nil, shared.NewDomainError("INVALID_RULE_TYPE", fmt.Sprintf("unknown rule type %q", ruleType))
	}
	if !action.IsValid() {
		return nil, shared.NewDomainError("INVALID_RULE_ACTION", fmt.Sprintf("unknown rule action %q", action))
	}
	if value.IsNegative() {
		return nil, shared.NewDomainError("INVALID_RULE_VALUE", "Rule value cannot be negative")
	}
	if err := conditions.ValidateFor(ruleType); err != nil {
		return nil, err
	}
	return &PricingRule{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Type:                ruleType,
		Conditions:          conditions,
		Action:              action,
		Value:               value,
		Priority:            priority,
		Active:              true,
	}, nil
}

// InScopeAt returns true if the rule is active and the evaluation date falls
// within its validity window. Absent bounds are unbounded on that side.
func (r *PricingRule) InScopeAt(at time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ValidFrom != nil && at.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && at.After(*r.ValidUntil) {
		return false
	}
	return true
}

// FilterRulesInScope returns the rules in scope at the given time, sorted by
// ascending priority. Scope filtering happens once per calculation run; the
// per-record eligibility checks happen inside the calculator.
func FilterRulesInScope(rules []PricingRule, at time.Time) []PricingRule {
	scoped := make([]PricingRule, 0, len(rules))
	for _, r := range rules {
		if r.InScopeAt(at) {
			scoped = append(scoped, r)
		}
	}
	sort.SliceStable(scoped, func(i, j int) bool {
		return scoped[i].Priority < scoped[j].Priority
	})
	return scoped
}
