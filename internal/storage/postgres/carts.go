package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/storage"
)

const (
	getCartSQL = `SELECT items FROM cart_snapshots WHERE session_key = $1`

	upsertCartSQL = `INSERT INTO cart_snapshots (session_key, items, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_key) DO UPDATE SET items = EXCLUDED.items, updated_at = now()`
)

var (
	_ storage.Carts  = (*CartRepository)(nil)
	_ storage.Pinger = (*CartRepository)(nil)
)

// CartRepository stores cart snapshots in the cart_snapshots table.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Read returns the stored snapshot, or nil when the session has none.
func (r *CartRepository) Read(ctx context.Context, key string) ([]cart.RawItem, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, getCartSQL, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cart %q: %w", key, err)
	}

	items, err := cart.DecodeRawItems(data)
	if err != nil {
		return nil, fmt.Errorf("decoding cart %q: %w", key, err)
	}
	return items, nil
}

// Write replaces the session's snapshot.
func (r *CartRepository) Write(ctx context.Context, key string, items []cart.RawItem) error {
	if _, err := r.pool.Exec(ctx, upsertCartSQL, key, cart.EncodeRawItems(items)); err != nil {
		return fmt.Errorf("writing cart %q: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
