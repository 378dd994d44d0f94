package cart

import (
	"math"

	"github.com/shopspring/decimal"
)

// PlaceholderName is used when a raw item carries no usable name.
const PlaceholderName = "Producto"

// DropReason explains why Normalize discarded a raw item.
type DropReason string

const (
	DropMalformed       DropReason = "malformed"
	DropMissingID       DropReason = "missing_id"
	DropInvalidPrice    DropReason = "invalid_price"
	DropInvalidQuantity DropReason = "invalid_quantity"
)

// Report summarizes one Normalize run.
type Report struct {
	Total   int
	Kept    int
	Merged  int
	Dropped map[DropReason]int
}

// DroppedCount returns the number of discarded raw items.
func (r Report) DroppedCount() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// maxExponent bounds the decimal exponent accepted from raw input. Rounding
// or comparing a value rescales it to exponent 0, which for literals like
// 1e999999999 means building a billion-digit integer.
const maxExponent = 32

var (
	maxMoney       = decimal.NewFromInt(math.MaxInt64)
	maxQuantityDec = decimal.NewFromInt(maxQuantity)
)

// Normalize converts raw items into canonical line items. Items that cannot
// be priced or identified are dropped and counted in the report rather than
// failing the whole batch. Entries sharing a product ID are merged by adding
// their quantities. The result is deterministic for a given input.
func Normalize(raw []RawItem) ([]LineItem, Report) {
	rep := Report{Total: len(raw)}
	out := make([]LineItem, 0, len(raw))
	index := make(map[string]int, len(raw))

	for _, r := range raw {
		it, reason, ok := normalizeItem(r)
		if !ok {
			if rep.Dropped == nil {
				rep.Dropped = make(map[DropReason]int)
			}
			rep.Dropped[reason]++
			continue
		}
		if i, dup := index[it.ProductID]; dup {
			out[i].Quantity = min(out[i].Quantity+it.Quantity, maxQuantity)
			rep.Merged++
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}

	rep.Kept = len(out)
	return out, rep
}

func normalizeItem(r RawItem) (LineItem, DropReason, bool) {
	switch {
	case r.Server != nil:
		s := r.Server
		price := s.Product.Price
		if !price.IsSet() {
			price = s.Price
		}
		return build(
			s.Product.ID,
			firstNonEmpty(s.Product.Title, s.Product.Name, s.Name),
			s.Product.Category,
			price,
			s.Quantity,
		)
	case r.Local != nil:
		l := r.Local
		return build(
			firstNonEmpty(l.ID, l.ProductID, l.LegacyID),
			firstNonEmpty(l.Name, l.Title, l.ProductName),
			l.Category,
			l.Price,
			l.Quantity,
		)
	default:
		return LineItem{}, DropMalformed, false
	}
}

func build(id, name, category string, price, quantity Scalar) (LineItem, DropReason, bool) {
	if id == "" {
		return LineItem{}, DropMissingID, false
	}

	unitPrice, ok := coercePrice(price)
	if !ok {
		return LineItem{}, DropInvalidPrice, false
	}

	qty, ok := coerceQuantity(quantity)
	if !ok {
		return LineItem{}, DropInvalidQuantity, false
	}

	if name == "" {
		name = PlaceholderName
	}
	return LineItem{
		ProductID: id,
		Name:      name,
		UnitPrice: unitPrice,
		Quantity:  qty,
		Category:  category,
	}, "", true
}

// coercePrice rounds to whole minor units and rejects negative or
// unrepresentable values.
func coercePrice(s Scalar) (Money, bool) {
	d, ok := s.Decimal()
	if !ok {
		return 0, false
	}
	if !boundedExponent(d) {
		return 0, false
	}
	d = d.Round(0)
	if d.IsNegative() || d.GreaterThan(maxMoney) {
		return 0, false
	}
	return d.IntPart(), true
}

// coerceQuantity defaults to 1 when the value is missing or non-numeric and
// truncates fractions toward zero.
func coerceQuantity(s Scalar) (int, bool) {
	d, ok := s.Decimal()
	if !ok {
		return 1, true
	}
	if !boundedExponent(d) {
		return 0, false
	}
	d = d.Truncate(0)
	if d.Sign() <= 0 || d.GreaterThan(maxQuantityDec) {
		return 0, false
	}
	return int(d.IntPart()), true
}

func boundedExponent(d decimal.Decimal) bool {
	e := d.Exponent()
	return e >= -maxExponent && e <= maxExponent
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
