package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotals_OverThreshold(t *testing.T) {
	items := []CartLineItem{
		{ProductID: "a", UnitPrice: 1999, Quantity: 1},
		{ProductID: "b", UnitPrice: 3999, Quantity: 1},
	}

	got := ComputeTotals(DefaultPricingPolicy(), items)

	assert.Equal(t, Totals{Subtotal: 5998, Shipping: 0, Tax: 1080, Total: 7078}, got)
}

func TestComputeTotals_UnderThreshold(t *testing.T) {
	items := []CartLineItem{{ProductID: "a", UnitPrice: 500, Quantity: 1}}

	got := ComputeTotals(DefaultPricingPolicy(), items)

	assert.Equal(t, Totals{Subtotal: 500, Shipping: 200, Tax: 90, Total: 790}, got)
}

func TestComputeTotals_ThresholdIsExclusive(t *testing.T) {
	items := []CartLineItem{{ProductID: "a", UnitPrice: 1000, Quantity: 2}}

	got := ComputeTotals(DefaultPricingPolicy(), items)

	assert.Equal(t, int64(2000), got.Subtotal)
	assert.Equal(t, int64(200), got.Shipping)
}

func TestFreeShippingRemaining(t *testing.T) {
	policy := DefaultPricingPolicy()

	assert.Equal(t, int64(1501), policy.FreeShippingRemaining(500))
	// the threshold itself still pays shipping
	assert.Equal(t, int64(1), policy.FreeShippingRemaining(2000))
	assert.Zero(t, policy.FreeShippingRemaining(2001))

	items := []CartLineItem{{ProductID: "a", UnitPrice: 500, Quantity: 1}}
	totals := ComputeTotals(policy, items)
	items[0].UnitPrice += policy.FreeShippingRemaining(totals.Subtotal)
	assert.Zero(t, ComputeTotals(policy, items).Shipping)
}

func TestComputeTotals_RoundsHalfUp(t *testing.T) {
	policy, err := NewPricingPolicy(2000, 200, "0.5")
	require.NoError(t, err)

	// 5 * 0.5 = 2.5 -> 3
	got := ComputeTotals(policy, []CartLineItem{{ProductID: "a", UnitPrice: 5, Quantity: 1}})
	assert.Equal(t, int64(3), got.Tax)

	// 2.4 -> 2
	policy, err = NewPricingPolicy(2000, 200, "0.3")
	require.NoError(t, err)
	got = ComputeTotals(policy, []CartLineItem{{ProductID: "a", UnitPrice: 8, Quantity: 1}})
	assert.Equal(t, int64(2), got.Tax)
}

func TestComputeTotals_EmptyCartPaysShipping(t *testing.T) {
	got := ComputeTotals(DefaultPricingPolicy(), nil)

	assert.Equal(t, Totals{Subtotal: 0, Shipping: 200, Tax: 0, Total: 200}, got)
}

func TestComputeTotals_Idempotent(t *testing.T) {
	items := []CartLineItem{
		{ProductID: "a", UnitPrice: 1234, Quantity: 3},
		{ProductID: "b", UnitPrice: 99, Quantity: 7},
	}
	policy := DefaultPricingPolicy()

	first := ComputeTotals(policy, items)
	second := ComputeTotals(policy, items)

	assert.Equal(t, first, second)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestNewPricingPolicy_Invalid(t *testing.T) {
	_, err := NewPricingPolicy(2000, 200, "abc")
	require.Error(t, err)

	_, err = NewPricingPolicy(2000, 200, "-0.1")
	require.Error(t, err)

	_, err = NewPricingPolicy(-1, 200, "0.1")
	require.Error(t, err)
}
