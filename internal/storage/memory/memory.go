// Package memory provides in-process cart and order stores.
package memory

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
	"github.com/xenking/artesjac-cart/internal/storage"
)

var (
	_ storage.Carts    = (*Carts)(nil)
	_ order.Repository = (*Orders)(nil)
)

// ErrDuplicateOrder is returned when an order code is recorded twice.
var ErrDuplicateOrder = errors.New("order already recorded")

// Carts keeps encoded cart snapshots in a map. Snapshots are stored as JSON
// so callers never share item memory with the store.
type Carts struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

// NewCarts returns an empty store.
func NewCarts() *Carts {
	return &Carts{carts: make(map[string][]byte)}
}

func (s *Carts) Read(_ context.Context, key string) ([]cart.RawItem, error) {
	s.mu.RLock()
	data, ok := s.carts[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	items, err := cart.DecodeRawItems(data)
	if err != nil {
		return nil, errors.Wrapf(err, "read cart %q", key)
	}
	return items, nil
}

func (s *Carts) Write(_ context.Context, key string, items []cart.RawItem) error {
	data := cart.EncodeRawItems(items)

	s.mu.Lock()
	s.carts[key] = data
	s.mu.Unlock()
	return nil
}

// Orders keeps placed orders per session in placement order.
type Orders struct {
	mu     sync.RWMutex
	orders map[string][]*order.Order
	codes  map[string]struct{}
}

// NewOrders returns an empty order repository.
func NewOrders() *Orders {
	return &Orders{
		orders: make(map[string][]*order.Order),
		codes:  make(map[string]struct{}),
	}
}

func (r *Orders) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.codes[o.Code]; dup {
		return errors.Wrapf(ErrDuplicateOrder, "code %q", o.Code)
	}
	r.codes[o.Code] = struct{}{}
	r.orders[o.SessionKey] = append(r.orders[o.SessionKey], o.Clone())
	return nil
}

func (r *Orders) List(_ context.Context, sessionKey string) ([]order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.orders[sessionKey]
	out := make([]order.Order, len(list))
	for i, o := range list {
		out[i] = *o.Clone()
	}
	return out, nil
}
