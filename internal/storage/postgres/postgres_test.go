//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("artesjac"),
		tcpostgres.WithUsername("artesjac"),
		tcpostgres.WithPassword("artesjac"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestPostgres(t *testing.T) {
	pool := setupTestDB(t)

	t.Run("Carts", func(t *testing.T) {
		repo := NewCartRepository(pool)
		ctx := context.Background()
		require.NoError(t, repo.Ping(ctx))

		raw, err := repo.Read(ctx, "absent")
		require.NoError(t, err)
		assert.Nil(t, raw)

		lines := []cart.LineItem{{ProductID: "p1", Name: "Mochila", UnitPrice: 12000, Quantity: 2, Category: "tejidos"}}
		require.NoError(t, repo.Write(ctx, "s1", cart.LocalItems(lines)))
		require.NoError(t, repo.Write(ctx, "s1", cart.LocalItems(append(lines, cart.LineItem{ProductID: "p2", UnitPrice: 1, Quantity: 1, Name: "Aretes"}))))

		raw, err = repo.Read(ctx, "s1")
		require.NoError(t, err)
		got, _ := cart.Normalize(raw)
		require.Len(t, got, 2)
		assert.Equal(t, lines[0], got[0])

		require.NoError(t, repo.Write(ctx, "s1", []cart.RawItem{}))
		raw, err = repo.Read(ctx, "s1")
		require.NoError(t, err)
		assert.NotNil(t, raw)
		assert.Empty(t, raw)
	})

	t.Run("Orders", func(t *testing.T) {
		repo := NewOrderRepository(pool)
		ctx := context.Background()
		base := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)

		first := &order.Order{
			Code:       "ART-100",
			SessionKey: "s2",
			Items:      []cart.LineItem{{ProductID: "p1", Name: "Mochila", UnitPrice: 12000, Quantity: 5}},
			ShippingAddress: order.Address{
				FullName: "Luisa", Phone: "311", Street: "Calle 1", City: "Pasto", Department: "Nariño",
			},
			PaymentMethod: order.PaymentCard,
			Subtotal:      60000,
			ShippingFee:   0,
			Total:         60000,
			Status:        order.StatusPending,
			PlacedAt:      base,
		}
		second := first.Clone()
		second.Code = "ART-101"
		second.PlacedAt = base.Add(time.Hour)
		second.Total = 1

		require.NoError(t, repo.Create(ctx, first))
		require.NoError(t, repo.Create(ctx, second))
		require.Error(t, repo.Create(ctx, first), "duplicate code")

		list, err := repo.List(ctx, "s2")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "ART-101", list[0].Code)
		assert.Equal(t, *first, list[1])

		none, err := repo.List(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
