package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
)

func item(id string, price cart.Money, qty int) cart.LineItem {
	return cart.LineItem{ProductID: id, Name: id, UnitPrice: price, Quantity: qty}
}

func TestSubtotal(t *testing.T) {
	tests := []struct {
		name  string
		items []cart.LineItem
		want  Money
	}{
		{name: "empty", items: nil, want: 0},
		{name: "single", items: []cart.LineItem{item("a", 12000, 1)}, want: 12000},
		{name: "multiple", items: []cart.LineItem{item("a", 1000, 2), item("b", 2500, 3)}, want: 9500},
		{name: "negative price ignored", items: []cart.LineItem{item("a", -500, 2), item("b", 100, 1)}, want: 100},
		{name: "zero quantity ignored", items: []cart.LineItem{item("a", 500, 0), item("b", 100, 1)}, want: 100},
		{name: "line overflow ignored", items: []cart.LineItem{item("a", math.MaxInt64/2, 3), item("b", 7, 1)}, want: 7},
		{name: "sum overflow ignored", items: []cart.LineItem{item("a", math.MaxInt64-1, 1), item("b", 10, 1)}, want: math.MaxInt64 - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Subtotal(tt.items))
		})
	}
}

func TestShipping_Threshold(t *testing.T) {
	assert.Equal(t, Money(3500), Shipping(49999, 50000, 3500))
	assert.Equal(t, Money(0), Shipping(50000, 50000, 3500))
	assert.Equal(t, Money(0), Shipping(50001, 50000, 3500))
	assert.Equal(t, Money(3500), Shipping(0, 50000, 3500))
	assert.Equal(t, Money(0), Shipping(10, 50000, -1), "negative fee clamps to zero")
}

func TestTotal(t *testing.T) {
	assert.Equal(t, Money(15500), Total(12000, 3500))
	assert.Equal(t, Money(60000), Total(60000, 0))
	assert.Equal(t, Money(math.MaxInt64), Total(math.MaxInt64-1, 3500))
}

func TestCompute_Scenarios(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name  string
		items []cart.LineItem
		want  Result
	}{
		{
			name:  "empty cart still pays shipping",
			items: nil,
			want:  Result{Subtotal: 0, ShippingFee: 3500, Total: 3500},
		},
		{
			name:  "single item below threshold",
			items: []cart.LineItem{item("p1", 12000, 1)},
			want:  Result{Subtotal: 12000, ShippingFee: 3500, Total: 15500},
		},
		{
			name:  "five items reach free shipping",
			items: []cart.LineItem{item("p1", 12000, 5)},
			want:  Result{Subtotal: 60000, ShippingFee: 0, Total: 60000},
		},
		{
			name:  "one peso short",
			items: []cart.LineItem{item("p1", 49999, 1)},
			want:  Result{Subtotal: 49999, ShippingFee: 3500, Total: 53499},
		},
		{
			name:  "exactly at threshold",
			items: []cart.LineItem{item("p1", 25000, 2)},
			want:  Result{Subtotal: 50000, ShippingFee: 0, Total: 50000},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.Compute(tt.items))
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	items := []cart.LineItem{item("a", 1000, 2), item("b", 333, 7), item("c", -1, 1)}

	first := cfg.Compute(items)
	second := cfg.Compute(items)

	assert.Equal(t, first, second)
}

func TestCompute_NeverNegative(t *testing.T) {
	cfg := Config{FreeShippingThreshold: 50000, StandardShippingFee: -10}
	sets := [][]cart.LineItem{
		nil,
		{item("a", 0, 1)},
		{item("a", 1, 1), item("b", -100, 5)},
		{item("a", math.MaxInt64, 1), item("b", math.MaxInt64, 1)},
		{item("a", 49999, 1)},
	}

	for _, items := range sets {
		r := cfg.Compute(items)
		assert.GreaterOrEqual(t, r.Subtotal, Money(0))
		assert.GreaterOrEqual(t, r.Total, r.Subtotal)
	}
}

func TestConfig_Remaining(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, Money(38000), cfg.Remaining(12000))
	assert.Equal(t, Money(0), cfg.Remaining(50000))
	assert.Equal(t, Money(50000), cfg.Remaining(-3))
}

func TestResult_FreeShipping(t *testing.T) {
	assert.True(t, Result{Subtotal: 60000, Total: 60000}.FreeShipping())
	assert.False(t, Result{Subtotal: 1, ShippingFee: 3500, Total: 3501}.FreeShipping())
}
