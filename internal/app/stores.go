package app

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/artesjac-cart/internal/domain/order"
	"github.com/xenking/artesjac-cart/internal/storage"
	"github.com/xenking/artesjac-cart/internal/storage/file"
	"github.com/xenking/artesjac-cart/internal/storage/memory"
	"github.com/xenking/artesjac-cart/internal/storage/postgres"
	"github.com/xenking/artesjac-cart/internal/storage/redis"
	"github.com/xenking/artesjac-cart/pkg/health"
)

// Stores bundles the local cart store and the order history.
type Stores struct {
	Carts  storage.Carts
	Orders order.Repository

	closers []func()
	checks  map[string]health.Pinger
}

// Close releases every connection pool, last opened first.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// RegisterChecks adds a readiness check for every reachable backend.
func (s *Stores) RegisterChecks(h *health.Health) {
	for name, p := range s.checks {
		h.AddReadinessCheck(name, 5*time.Second, health.PingCheck(p))
	}
}

// OpenStores connects the configured cart store. Orders are kept in
// PostgreSQL whenever a database URL is set, regardless of the cart store,
// and in memory otherwise.
func OpenStores(ctx context.Context, lg *zap.Logger, cfg StoreConfig) (_ *Stores, rerr error) {
	s := &Stores{checks: make(map[string]health.Pinger)}
	defer func() {
		if rerr != nil {
			s.Close()
		}
	}()

	var repo *postgres.OrderRepository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		s.closers = append(s.closers, pool.Close)
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return nil, errors.Wrap(err, "run migrations")
		}
		s.checks["postgres"] = pool
		repo = postgres.NewOrderRepository(pool)

		if cfg.Kind == StorePostgres {
			s.Carts = postgres.NewCartRepository(pool)
		}
	}

	switch cfg.Kind {
	case StoreMemory:
		s.Carts = memory.NewCarts()
	case StoreFile:
		fs, err := file.New(cfg.Dir)
		if err != nil {
			return nil, errors.Wrap(err, "open file store")
		}
		s.Carts = fs
		s.checks["file-store"] = fs
	case StoreRedis:
		rs, closeFn, err := redis.Connect(ctx, redis.Config{
			URL:    cfg.Redis.URL,
			Addr:   cfg.Redis.Addr,
			TTL:    cfg.Redis.TTL,
			Jitter: cfg.Redis.Jitter,
		})
		if err != nil {
			return nil, errors.Wrap(err, "connect redis")
		}
		s.closers = append(s.closers, func() {
			if err := closeFn(); err != nil {
				lg.Warn("Close redis", zap.Error(err))
			}
		})
		s.Carts = rs
		s.checks["redis"] = rs
	case StorePostgres:
		if s.Carts == nil {
			return nil, errors.New("postgres store requires a database URL")
		}
	default:
		return nil, errors.Errorf("unknown store kind %q", cfg.Kind)
	}

	if repo != nil {
		s.Orders = repo
	} else {
		s.Orders = memory.NewOrders()
	}

	lg.Info("Stores ready",
		zap.String("carts", cfg.Kind),
		zap.Bool("persistent_orders", repo != nil),
	)
	return s, nil
}
