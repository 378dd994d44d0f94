// Package redis stores cart snapshots in Redis with a sliding TTL: every
// read or write pushes the expiry out again.
package redis

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/storage"
)

const keyPrefix = "artesjac:cart:"

var (
	_ storage.Carts  = (*Carts)(nil)
	_ storage.Pinger = (*Carts)(nil)
)

type cmdable interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetEx(ctx context.Context, key string, expiration time.Duration) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// Config holds the connection and retention settings.
type Config struct {
	URL  string
	Addr string
	TTL  time.Duration
	// Jitter is the maximum random extension added to TTL so that carts
	// written together do not expire together.
	Jitter time.Duration
}

// Carts is a Redis-backed cart store.
type Carts struct {
	client cmdable
	ttl    time.Duration
	jitter time.Duration
}

// Connect dials Redis from cfg and verifies connectivity. The returned close
// function releases the connection pool.
func Connect(ctx context.Context, cfg Config) (*Carts, func() error, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse redis url")
		}
		opts = parsed
	case cfg.Addr != "":
		opts = &redis.Options{Addr: cfg.Addr}
	default:
		return nil, nil, errors.New("redis url or address is required")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "ping redis")
	}
	return New(client, cfg.TTL, cfg.Jitter), client.Close, nil
}

// New wraps an existing client. A zero ttl keeps carts forever.
func New(client cmdable, ttl, jitter time.Duration) *Carts {
	return &Carts{client: client, ttl: ttl, jitter: jitter}
}

func cacheKey(key string) string {
	return keyPrefix + key
}

// expiry returns the retention for a touched cart, 0 meaning forever.
func (s *Carts) expiry() time.Duration {
	ttl := s.ttl
	if ttl > 0 && s.jitter > 0 {
		ttl += rand.N(s.jitter)
	}
	return ttl
}

func (s *Carts) Read(ctx context.Context, key string) ([]cart.RawItem, error) {
	var cmd *redis.StringCmd
	if ttl := s.expiry(); ttl > 0 {
		cmd = s.client.GetEx(ctx, cacheKey(key), ttl)
	} else {
		cmd = s.client.Get(ctx, cacheKey(key))
	}
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "redis get %q", key)
	}
	items, err := cart.DecodeRawItems(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode cart %q", key)
	}
	return items, nil
}

func (s *Carts) Write(ctx context.Context, key string, items []cart.RawItem) error {
	if err := s.client.Set(ctx, cacheKey(key), cart.EncodeRawItems(items), s.expiry()).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

func (s *Carts) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
