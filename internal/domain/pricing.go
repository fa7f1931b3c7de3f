package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	DefaultFreeShippingThreshold int64 = 2000
	DefaultFlatShippingFee       int64 = 200
	DefaultTaxRate                     = "0.18"
)

// PricingPolicy holds the shipping and tax constants applied to a cart.
// Amounts are in minor currency units.
type PricingPolicy struct {
	FreeShippingThreshold int64
	FlatShippingFee       int64
	TaxRate               decimal.Decimal
}

func NewPricingPolicy(threshold, fee int64, taxRate string) (PricingPolicy, error) {
	rate, err := decimal.NewFromString(taxRate)
	if err != nil {
		return PricingPolicy{}, fmt.Errorf("invalid tax rate %q: %w", taxRate, err)
	}
	if rate.IsNegative() {
		return PricingPolicy{}, fmt.Errorf("tax rate must not be negative: %s", taxRate)
	}
	if threshold < 0 || fee < 0 {
		return PricingPolicy{}, fmt.Errorf("shipping threshold and fee must not be negative")
	}
	return PricingPolicy{
		FreeShippingThreshold: threshold,
		FlatShippingFee:       fee,
		TaxRate:               rate,
	}, nil
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		FlatShippingFee:       DefaultFlatShippingFee,
		TaxRate:               decimal.RequireFromString(DefaultTaxRate),
	}
}

// FreeShippingRemaining is how much more the subtotal must grow before
// shipping becomes free, or 0 when it already is.
func (p PricingPolicy) FreeShippingRemaining(subtotal int64) int64 {
	if subtotal > p.FreeShippingThreshold {
		return 0
	}
	return p.FreeShippingThreshold - subtotal + 1
}

type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// ComputeTotals is a pure function of the policy and the lines.
func ComputeTotals(policy PricingPolicy, items []CartLineItem) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
	}

	shipping := policy.FlatShippingFee
	if subtotal > policy.FreeShippingThreshold {
		shipping = 0
	}

	// Round rounds half away from zero, which is half-up for non-negative amounts.
	tax := decimal.NewFromInt(subtotal).Mul(policy.TaxRate).Round(0).IntPart()

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}
}
