package cart

import (
	"fmt"
	"math"

	"github.com/go-faster/errors"
)

// Money is an amount in the currency's smallest unit (COP pesos).
type Money = int64

// maxQuantity bounds a single line so that quantity arithmetic never
// overflows on 32-bit platforms.
const maxQuantity = math.MaxInt32

// Sentinel errors for cart mutations.
var (
	ErrInvalidQuantity  = errors.New("quantity must be greater than 0")
	ErrNotFound         = errors.New("item not in cart")
	ErrMissingProductID = errors.New("product id required")
	ErrInvalidPrice     = errors.New("unit price must not be negative")
)

// InvalidQuantityError indicates a mutation requested a non-positive (or
// overflowing) quantity for a product.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Quantity, e.ProductID)
}

// Is reports ErrInvalidQuantity so callers can match on the sentinel.
func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}

// NotFoundError indicates a mutation referenced a product absent from the cart.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not in cart", e.ProductID)
}

// Is reports ErrNotFound so callers can match on the sentinel.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Source records which store last authoritatively supplied the cart state.
type Source string

const (
	// SourceServer means the state was confirmed by the remote cart service.
	SourceServer Source = "server"
	// SourceLocalFallback means the state comes from (or degraded to) the
	// local persisted copy.
	SourceLocalFallback Source = "local_fallback"
)

// LineItem is the canonical cart or order entry.
type LineItem struct {
	ProductID string
	Name      string
	UnitPrice Money
	Quantity  int
	Category  string
}

// ProductMeta carries the display and pricing data supplied when a product
// is first added to the cart.
type ProductMeta struct {
	Name      string
	UnitPrice Money
	Category  string
}

// Cart owns the line items of one session. Product IDs are unique within a
// cart and items keep insertion order. Every mutation validates its input
// before touching state, so a failed call leaves the cart unchanged.
//
// Cart is not safe for concurrent use; the owning session serializes access.
type Cart struct {
	items []LineItem
}

// New returns a cart holding a copy of items.
func New(items ...LineItem) *Cart {
	c := &Cart{}
	c.Replace(items)
	return c
}

// Add puts quantity units of productID into the cart. An existing entry has
// its quantity incremented and keeps its original metadata.
func (c *Cart) Add(productID string, meta ProductMeta, quantity int) error {
	if productID == "" {
		return ErrMissingProductID
	}
	if quantity < 1 || quantity > maxQuantity {
		return &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}

	if i := c.find(productID); i >= 0 {
		next := c.items[i].Quantity + quantity
		if next > maxQuantity {
			return &InvalidQuantityError{ProductID: productID, Quantity: next}
		}
		c.items[i].Quantity = next
		return nil
	}

	if meta.UnitPrice < 0 {
		return errors.Wrapf(ErrInvalidPrice, "product %s", productID)
	}
	c.items = append(c.items, LineItem{
		ProductID: productID,
		Name:      meta.Name,
		UnitPrice: meta.UnitPrice,
		Quantity:  quantity,
		Category:  meta.Category,
	})
	return nil
}

// SetQuantity overwrites the quantity of productID. A quantity below 1
// removes the entry.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	i := c.find(productID)
	if i < 0 {
		return &NotFoundError{ProductID: productID}
	}
	if quantity < 1 {
		c.removeAt(i)
		return nil
	}
	if quantity > maxQuantity {
		return &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	c.items[i].Quantity = quantity
	return nil
}

// Remove deletes productID from the cart. Removing an absent product is a
// no-op; the return value reports whether anything was removed.
func (c *Cart) Remove(productID string) bool {
	i := c.find(productID)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Replace installs items as the new cart content. Items are expected to be
// normalized already; entries with an empty ID or non-positive quantity are
// skipped and duplicate IDs are merged.
func (c *Cart) Replace(items []LineItem) {
	c.items = make([]LineItem, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" || it.Quantity < 1 {
			continue
		}
		if i := c.find(it.ProductID); i >= 0 {
			c.items[i].Quantity = min(c.items[i].Quantity+it.Quantity, maxQuantity)
			continue
		}
		c.items = append(c.items, it)
	}
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	return Clone(c.items)
}

// Get returns the line item for productID.
func (c *Cart) Get(productID string) (LineItem, bool) {
	if i := c.find(productID); i >= 0 {
		return c.items[i], true
	}
	return LineItem{}, false
}

// Len returns the number of distinct products in the cart.
func (c *Cart) Len() int {
	return len(c.items)
}

// Units returns the total quantity across all lines.
func (c *Cart) Units() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) find(productID string) int {
	for i := range c.items {
		if c.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// Clone returns a deep copy of items. A nil slice stays nil.
func Clone(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
