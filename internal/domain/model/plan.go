package model

import "qarzdaftari/internal/domain"

// PlanType is a subscription tier. FREE is the default tier and is never
// purchasable; only PLUS and PRO appear in payment flows.
type PlanType string

const (
	PlanFree PlanType = "FREE"
	PlanPlus PlanType = "PLUS"
	PlanPro  PlanType = "PRO"
)

// rank orders tiers for downgrade checks.
func (p PlanType) rank() int {
	switch p {
	case PlanPlus:
		return 1
	case PlanPro:
		return 2
	default:
		return 0
	}
}

// IsPaid reports whether the plan is one of the purchasable tiers.
func (p PlanType) IsPaid() bool { return p == PlanPlus || p == PlanPro }

// IsDowngradeFrom reports whether switching from current to p would lower the tier.
func (p PlanType) IsDowngradeFrom(current PlanType) bool { return p.rank() < current.rank() }

// ParsePlanType validates a plan string coming from a client or a provider callback.
func ParsePlanType(s string) (PlanType, error) {
	p := PlanType(s)
	if !p.IsPaid() {
		return "", domain.ErrUnknownPlan
	}
	return p, nil
}

// BillingCycle is the purchased duration unit. It affects price and discount
// but, per current behavior, not the subscription expiry window.
type BillingCycle string

const (
	CycleMonthly    BillingCycle = "monthly"
	CycleSemiAnnual BillingCycle = "semi_annual"
	CycleAnnual     BillingCycle = "annual"
)

// ParseBillingCycle validates a billing cycle string.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch BillingCycle(s) {
	case CycleMonthly, CycleSemiAnnual, CycleAnnual:
		return BillingCycle(s), nil
	default:
		return "", domain.ErrUnknownBillingCycle
	}
}

// Months returns how many months of service the cycle buys.
func (c BillingCycle) Months() int {
	switch c {
	case CycleSemiAnnual:
		return 6
	case CycleAnnual:
		return 12
	default:
		return 1
	}
}

// DiscountPercent returns the discount applied to the cycle's total price.
func (c BillingCycle) DiscountPercent() int {
	switch c {
	case CycleSemiAnnual:
		return 10
	case CycleAnnual:
		return 20
	default:
		return 0
	}
}

// Pricing holds per-tier base monthly prices in UZS (major units).
type Pricing struct {
	PlusMonthlyUZS int64
	ProMonthlyUZS  int64
}

// DefaultPricing is used when config does not override prices.
func DefaultPricing() Pricing {
	return Pricing{PlusMonthlyUZS: 29000, ProMonthlyUZS: 49000}
}

// Quote computes the total price for a plan over a billing cycle,
// with the cycle discount applied.
func (p Pricing) Quote(plan PlanType, cycle BillingCycle) (int64, error) {
	var monthly int64
	switch plan {
	case PlanPlus:
		monthly = p.PlusMonthlyUZS
	case PlanPro:
		monthly = p.ProMonthlyUZS
	default:
		return 0, domain.ErrUnknownPlan
	}
	total := monthly * int64(cycle.Months())
	total -= total * int64(cycle.DiscountPercent()) / 100
	return total, nil
}
