package session

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
)

// ErrCheckoutInProgress is returned when a checkout is already running for
// the session.
var ErrCheckoutInProgress = errors.New("checkout already in progress")

// Checkout places an order for the current cart.
//
// A failed submission returns *order.SubmissionError and leaves the cart
// untouched so the shopper can retry. Retries of an unchanged cart reuse the
// same idempotency key. The submission outlives a cancelled request and is
// bounded by the sync timeout. On success the cart is cleared and the
// returned order holds its own copy of the items.
func (s *Session) Checkout(ctx context.Context, addr order.Address, payment order.PaymentMethod) (*order.Order, error) {
	if len(s.Items()) == 0 {
		return nil, order.ErrEmptyCart
	}
	if err := order.Validate(addr, payment); err != nil {
		return nil, err
	}

	s.mu.Lock()
	items := s.cart.Items()
	if len(items) == 0 {
		s.mu.Unlock()
		return nil, order.ErrEmptyCart
	}
	if s.checkingOut {
		s.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	s.checkingOut = true
	if s.checkoutKey == "" || s.checkoutSeq != s.seq {
		s.checkoutKey = s.newKey()
		s.checkoutSeq = s.seq
	}
	key := s.checkoutKey
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.checkingOut = false
		s.mu.Unlock()
	}()

	ctx = context.WithoutCancel(ctx)
	totals := s.pricing.Compute(items)
	sub := order.Submission{
		IdempotencyKey:  key,
		Items:           cart.Clone(items),
		ShippingAddress: addr,
		PaymentMethod:   payment,
		Pricing:         totals,
	}

	lg := s.logger(ctx)
	submitCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	code, err := s.remote.SubmitOrder(submitCtx, sub)
	cancel()
	if err != nil {
		lg.Warn("Order submission failed", zap.Error(err), zap.String("idempotency_key", key))
		return nil, &order.SubmissionError{Err: err}
	}

	placed := &order.Order{
		Code:            code,
		SessionKey:      s.key,
		Items:           cart.Clone(items),
		ShippingAddress: addr,
		PaymentMethod:   payment,
		Subtotal:        totals.Subtotal,
		ShippingFee:     totals.ShippingFee,
		Total:           totals.Total,
		Status:          order.StatusPending,
		PlacedAt:        s.now(),
	}

	s.mu.Lock()
	seq := s.clearLocked(ctx)
	s.mu.Unlock()
	s.persist(ctx, seq, []cart.RawItem{})

	if s.orders != nil {
		if err := s.orders.Create(ctx, placed.Clone()); err != nil {
			lg.Error("Record order", zap.Error(err), zap.String("code", code))
		}
	}
	s.metrics.orderPlaced(ctx)

	lg.Info("Order placed",
		zap.String("code", code),
		zap.Int64("total", placed.Total),
		zap.Int("items", len(placed.Items)),
	)
	return placed, nil
}
