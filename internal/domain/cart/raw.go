package cart

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RawItem is one cart entry as received from the remote cart service or the
// local fallback store, before normalization. Exactly one of Server or Local
// is set; an item with neither (for example a JSON scalar inside the items
// array) is malformed and gets dropped by Normalize.
type RawItem struct {
	Server *ServerItem
	Local  *LocalItem
}

// ServerItem is the server-shaped entry, whose product is a nested object
// under "productId".
type ServerItem struct {
	Product  ProductRef
	Name     string
	Price    Scalar
	Quantity Scalar
}

// ProductRef is the populated product document of a server cart entry.
type ProductRef struct {
	ID       string
	Title    string
	Name     string
	Category string
	Price    Scalar
}

// LocalItem is the flat entry kept in browser storage and written by the
// fallback store.
type LocalItem struct {
	ID          string
	ProductID   string
	LegacyID    string
	Name        string
	Title       string
	ProductName string
	Category    string
	Price       Scalar
	Quantity    Scalar
}

// ScalarKind is the JSON kind a Scalar was decoded from.
type ScalarKind uint8

const (
	ScalarMissing ScalarKind = iota
	ScalarNull
	ScalarNumber
	ScalarString
	ScalarBool
	ScalarOther
)

// Scalar keeps a loosely typed JSON value verbatim so numeric coercion
// happens in one place.
type Scalar struct {
	Kind ScalarKind
	Text string
}

// Number returns a Scalar holding a JSON number literal.
func Number(text string) Scalar {
	return Scalar{Kind: ScalarNumber, Text: text}
}

// Int returns a Scalar holding an integer.
func Int(v int64) Scalar {
	return Scalar{Kind: ScalarNumber, Text: decimal.NewFromInt(v).String()}
}

// String returns a Scalar holding a JSON string.
func String(text string) Scalar {
	return Scalar{Kind: ScalarString, Text: text}
}

// Null returns a Scalar holding JSON null.
func Null() Scalar {
	return Scalar{Kind: ScalarNull}
}

// IsSet reports whether the field was present with a non-null value.
func (s Scalar) IsSet() bool {
	return s.Kind != ScalarMissing && s.Kind != ScalarNull
}

// Decimal coerces the scalar to a number. Numbers and numeric strings
// succeed; everything else (missing, null, blank, booleans, containers,
// text such as "abc" or "Infinity") does not.
func (s Scalar) Decimal() (decimal.Decimal, bool) {
	switch s.Kind {
	case ScalarNumber, ScalarString:
		text := strings.TrimSpace(s.Text)
		if text == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// LocalItems converts line items into the flat raw shape written to the
// local fallback store.
func LocalItems(items []LineItem) []RawItem {
	out := make([]RawItem, len(items))
	for i, it := range items {
		out[i] = RawItem{Local: &LocalItem{
			ID:       it.ProductID,
			Name:     it.Name,
			Category: it.Category,
			Price:    Int(it.UnitPrice),
			Quantity: Int(int64(it.Quantity)),
		}}
	}
	return out
}
