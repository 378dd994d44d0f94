package handler

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/artesjac-cart/internal/session"
)

// Factory builds an unloaded session for a session key and bearer token.
type Factory func(key, token string) *session.Session

// RegistryConfig tunes session caching.
type RegistryConfig struct {
	IdleTTL     time.Duration `default:"30m" usage:"Evict cart sessions unused for this long" flag:"session-idle-ttl"`
	LoadTimeout time.Duration `default:"5s"  usage:"Timeout of the initial remote cart fetch" flag:"session-load-timeout"`
}

type entry struct {
	sess     *session.Session
	token    string
	lastUsed time.Time
}

// Registry keeps one live session per shopper. Concurrent first requests for
// the same shopper share a single load.
type Registry struct {
	factory Factory
	cfg     RegistryConfig
	now     func() time.Time

	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*entry
}

// NewRegistry creates a registry using factory for new sessions.
func NewRegistry(factory Factory, cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 5 * time.Second
	}
	return &Registry{
		factory:  factory,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Get returns the loaded session for key. A different token than the cached
// session was built with means the shopper logged in or out, so the session
// is rebuilt and reloaded.
func (r *Registry) Get(ctx context.Context, key, token string) *session.Session {
	if s := r.lookup(key, token); s != nil {
		return s
	}

	v, _, _ := r.group.Do(key+"\x00"+token, func() (any, error) {
		if s := r.lookup(key, token); s != nil {
			return s, nil
		}
		r.retire(key)
		s := r.factory(key, token)

		// The load outlives a cancelled request: other waiters share it.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.LoadTimeout)
		defer cancel()
		s.Load(loadCtx)

		r.mu.Lock()
		r.sessions[key] = &entry{sess: s, token: token, lastUsed: r.now()}
		r.mu.Unlock()
		return s, nil
	})
	return v.(*session.Session)
}

func (r *Registry) lookup(key, token string) *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[key]
	if !ok || e.token != token {
		return nil
	}
	e.lastUsed = r.now()
	return e.sess
}

// retire drops the cached session for key, if any, and detaches it from the
// shared local fallback before its replacement starts using it.
func (r *Registry) retire(key string) {
	r.mu.Lock()
	e, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()
	if ok {
		e.sess.Close()
	}
}

// Len returns the number of cached sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle since before now-IdleTTL and returns how many
// were dropped. Their pending syncs still reach the remote service but no
// longer write the local fallback.
func (r *Registry) Sweep(now time.Time) int {
	var evicted []*session.Session

	r.mu.Lock()
	for key, e := range r.sessions {
		if now.Sub(e.lastUsed) >= r.cfg.IdleTTL {
			delete(r.sessions, key)
			evicted = append(evicted, e.sess)
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	return len(evicted)
}

// Run sweeps idle sessions until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.IdleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				zctx.From(ctx).Debug("Evicted idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Wait blocks until every cached session has finished its pending syncs.
func (r *Registry) Wait(ctx context.Context) error {
	r.mu.Lock()
	list := make([]*session.Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		list = append(list, e.sess)
	}
	r.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, s := range list {
		g.Go(func() error { return s.Wait(ctx) })
	}
	return g.Wait()
}
