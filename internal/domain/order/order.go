package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/pricing"
)

// ErrEmptyCart is returned when checkout is attempted with no items.
var ErrEmptyCart = errors.New("cart is empty")

// SubmissionError indicates the remote service rejected or failed an order
// submission. The cart is left intact so the attempt can be retried.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit order: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// Status is the server-driven fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// PaymentMethod identifies how the buyer pays.
type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "card"
	PaymentTransfer       PaymentMethod = "transfer"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// Address is the shipping destination of an order.
type Address struct {
	FullName   string `validate:"required,max=120"`
	Phone      string `validate:"required,max=30"`
	Street     string `validate:"required,max=200"`
	City       string `validate:"required,max=80"`
	Department string `validate:"required,max=80"`
	PostalCode string `validate:"omitempty,max=12"`
	Notes      string `validate:"omitempty,max=500"`
}

// Order is an immutable snapshot of a cart taken at successful checkout.
type Order struct {
	Code            string
	SessionKey      string
	Items           []cart.LineItem
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	Subtotal        cart.Money
	ShippingFee     cart.Money
	Total           cart.Money
	Status          Status
	PlacedAt        time.Time
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = cart.Clone(o.Items)
	return &c
}

// Submission is the payload sent to the remote service to place an order.
type Submission struct {
	IdempotencyKey  string
	Items           []cart.LineItem
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	Pricing         pricing.Result
}

// Repository records placed orders for the order history view.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	List(ctx context.Context, sessionKey string) ([]Order, error)
}
