// Package storage defines the keyed local cart store shared by the memory,
// file, redis and postgres backends.
package storage

import (
	"context"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/session"
)

// Carts persists raw cart snapshots by session key. Read returns nil, nil
// when nothing is stored under key.
type Carts interface {
	Read(ctx context.Context, key string) ([]cart.RawItem, error)
	Write(ctx context.Context, key string, items []cart.RawItem) error
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ session.Store = Bound{}

// Bound is a Carts store fixed to one session key.
type Bound struct {
	carts Carts
	key   string
}

// Bind returns the session.Store view of carts for key.
func Bind(carts Carts, key string) Bound {
	return Bound{carts: carts, key: key}
}

// ReadCart implements session.Store.
func (b Bound) ReadCart(ctx context.Context) ([]cart.RawItem, error) {
	return b.carts.Read(ctx, b.key)
}

// WriteCart implements session.Store.
func (b Bound) WriteCart(ctx context.Context, items []cart.RawItem) error {
	return b.carts.Write(ctx, b.key, items)
}
