// Package pricing computes cart totals from line items.
//
// All functions are pure: they take explicit inputs and keep no state, so
// the same items always price identically.
package pricing

import (
	"math"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
)

// Money is an amount in the currency's smallest unit.
type Money = cart.Money

// Defaults for the storefront's shipping policy, in COP pesos.
const (
	DefaultFreeShippingThreshold Money = 50000
	DefaultStandardShippingFee   Money = 3500
)

// Config holds the shipping policy shared by every surface that prices a
// cart (cart view, checkout, order submission).
type Config struct {
	FreeShippingThreshold Money `default:"50000" usage:"Subtotal at or above which shipping is free (minor units)" flag:"free-shipping-threshold"`
	StandardShippingFee   Money `default:"3500"  usage:"Shipping fee charged below the threshold (minor units)" flag:"standard-shipping-fee"`
}

// DefaultConfig returns the storefront's standard shipping policy.
func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: DefaultFreeShippingThreshold,
		StandardShippingFee:   DefaultStandardShippingFee,
	}
}

// Result is the derived pricing of a set of items. It is recomputed on every
// read and never persisted.
type Result struct {
	Subtotal    Money
	ShippingFee Money
	Total       Money
}

// FreeShipping reports whether the result qualifies for free shipping.
func (r Result) FreeShipping() bool {
	return r.ShippingFee == 0
}

// Compute prices items under the configured shipping policy.
func (c Config) Compute(items []cart.LineItem) Result {
	subtotal := Subtotal(items)
	shipping := Shipping(subtotal, c.FreeShippingThreshold, c.StandardShippingFee)
	return Result{
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Total:       Total(subtotal, shipping),
	}
}

// Remaining returns how much more the subtotal needs to reach free
// shipping, or 0 when it already qualifies.
func (c Config) Remaining(subtotal Money) Money {
	if subtotal >= c.FreeShippingThreshold {
		return 0
	}
	return c.FreeShippingThreshold - max(subtotal, 0)
}

// Subtotal returns Σ(unitPrice × quantity). A line whose contribution is
// not representable (negative price, quantity below one, overflow) counts as
// zero so that one corrupt item cannot corrupt the whole total.
func Subtotal(items []cart.LineItem) Money {
	var sum Money
	for _, it := range items {
		line, ok := lineTotal(it)
		if !ok || sum > math.MaxInt64-line {
			continue
		}
		sum += line
	}
	return sum
}

// Shipping returns 0 when subtotal reaches threshold, otherwise fee. A
// negative fee is treated as 0.
func Shipping(subtotal, threshold, fee Money) Money {
	if subtotal >= threshold {
		return 0
	}
	return max(fee, 0)
}

// Total returns subtotal + shipping, saturating at the largest
// representable amount.
func Total(subtotal, shipping Money) Money {
	if shipping > 0 && subtotal > math.MaxInt64-shipping {
		return math.MaxInt64
	}
	return subtotal + shipping
}

func lineTotal(it cart.LineItem) (Money, bool) {
	if it.UnitPrice < 0 || it.Quantity < 1 {
		return 0, false
	}
	qty := Money(it.Quantity)
	if it.UnitPrice > math.MaxInt64/qty {
		return 0, false
	}
	return it.UnitPrice * qty, true
}
