// Package session reconciles a shopper's cart between the remote cart service
// and a local persisted fallback.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
	"github.com/xenking/artesjac-cart/internal/domain/pricing"
)

// CartService is the remote cart API. Every cart call returns the server's
// resulting cart; a nil slice means the response carried no cart.
type CartService interface {
	FetchCart(ctx context.Context) ([]cart.RawItem, error)
	AddItem(ctx context.Context, productID string, quantity int) ([]cart.RawItem, error)
	UpdateItem(ctx context.Context, productID string, quantity int) ([]cart.RawItem, error)
	RemoveItem(ctx context.Context, productID string) ([]cart.RawItem, error)
	ClearCart(ctx context.Context) ([]cart.RawItem, error)
	SubmitOrder(ctx context.Context, sub order.Submission) (string, error)
}

// Store is the local persisted fallback of a single cart. ReadCart returns
// nil when nothing has been stored.
type Store interface {
	ReadCart(ctx context.Context) ([]cart.RawItem, error)
	WriteCart(ctx context.Context, items []cart.RawItem) error
}

// State is the lifecycle state of a session.
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
)

// DefaultSyncTimeout bounds a single background sync call.
const DefaultSyncTimeout = 10 * time.Second

// Snapshot is a consistent read-only view of a session.
type Snapshot struct {
	Items   []cart.LineItem
	Pricing pricing.Result
	Source  cart.Source
	State   State
}

// Session owns one shopper's cart. Mutations are applied optimistically and
// synced to the remote service in the background, in issue order.
type Session struct {
	key     string
	remote  CartService
	store   Store
	pricing pricing.Config
	orders  order.Repository
	metrics *Metrics
	notify  func(Notice)
	now     func() time.Time
	newKey  func() string

	syncTimeout time.Duration

	mu       sync.Mutex
	cart     *cart.Cart
	state    State
	source   cart.Source
	seq      uint64
	lastSync chan struct{}
	notices  []Notice

	// checkoutKey is reused while the cart is unchanged since checkoutSeq,
	// so a retried submission carries the same idempotency key.
	checkoutKey string
	checkoutSeq uint64
	checkingOut bool

	// persistMu orders writes to the local fallback and guards closed.
	persistMu sync.Mutex
	closed    bool
}

// Option configures a Session.
type Option func(*Session)

// WithPricing sets the shipping configuration used for totals.
func WithPricing(cfg pricing.Config) Option {
	return func(s *Session) { s.pricing = cfg }
}

// WithOrders records placed orders in repo.
func WithOrders(repo order.Repository) Option {
	return func(s *Session) { s.orders = repo }
}

// WithMetrics enables otel counters.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithNotifier registers fn to receive every notice as it is queued.
// fn is called without session locks held.
func WithNotifier(fn func(Notice)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithSyncTimeout bounds each background sync call.
func WithSyncTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.syncTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session in the Loading state. key identifies the session in
// logs and in the order history.
func New(key string, remote CartService, store Store, opts ...Option) *Session {
	s := &Session{
		key:         key,
		remote:      remote,
		store:       store,
		pricing:     pricing.DefaultConfig(),
		now:         time.Now,
		newKey:      uuid.NewString,
		syncTimeout: DefaultSyncTimeout,
		cart:        cart.New(),
		state:       StateLoading,
		source:      cart.SourceServer,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Key returns the session key.
func (s *Session) Key() string { return s.key }

// MaxKeyLength bounds session keys accepted from clients and imports.
const MaxKeyLength = 128

// ValidKey reports whether key can identify a session: 1 to MaxKeyLength
// characters from [A-Za-z0-9._-].
func ValidKey(key string) bool {
	if key == "" || len(key) > MaxKeyLength {
		return false
	}
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

func (s *Session) logger(ctx context.Context) *zap.Logger {
	return zctx.From(ctx).With(zap.String("session", s.key))
}

// Load resolves the initial cart. The remote cart wins when it has items;
// otherwise the local fallback is used. Remote and local failures degrade
// the session instead of failing it, so Load always ends in StateReady.
func (s *Session) Load(ctx context.Context) {
	lg := s.logger(ctx)

	s.mu.Lock()
	startSeq := s.seq
	s.mu.Unlock()

	var (
		items  []cart.LineItem
		source cart.Source
	)
	raw, err := s.remote.FetchCart(ctx)
	switch {
	case err != nil:
		lg.Warn("Remote cart unavailable, using local fallback", zap.Error(err))
		s.metrics.syncFailed(ctx, "fetch")
		s.queue(Notice{Kind: NoticeRemoteFetchFailure, Op: "fetch", Err: err, At: s.now()})
		items = s.readLocal(ctx)
		source = cart.SourceLocalFallback
	default:
		items = s.normalize(ctx, raw)
		source = cart.SourceServer
		if len(items) == 0 {
			if local := s.readLocal(ctx); len(local) > 0 {
				items = local
				source = cart.SourceLocalFallback
			}
		}
	}

	s.mu.Lock()
	applied := s.seq == startSeq
	if applied {
		s.cart.Replace(items)
		s.source = source
	}
	s.state = StateReady
	s.mu.Unlock()

	if !applied {
		lg.Debug("Cart mutated while loading, keeping local state")
		return
	}
	if source == cart.SourceServer && len(items) > 0 {
		s.persist(ctx, startSeq, cart.LocalItems(items))
	}
	lg.Debug("Cart loaded",
		zap.String("source", string(source)),
		zap.Int("items", len(items)),
	)
}

func (s *Session) readLocal(ctx context.Context) []cart.LineItem {
	raw, err := s.store.ReadCart(ctx)
	if err != nil {
		s.logger(ctx).Warn("Read local cart", zap.Error(err))
		return nil
	}
	return s.normalize(ctx, raw)
}

func (s *Session) normalize(ctx context.Context, raw []cart.RawItem) []cart.LineItem {
	items, rep := cart.Normalize(raw)
	if n := rep.DroppedCount(); n > 0 {
		s.logger(ctx).Debug("Dropped malformed cart items",
			zap.Int("dropped", n),
			zap.Int("total", rep.Total),
			zap.Any("reasons", rep.Dropped),
		)
		s.metrics.dropped(ctx, rep)
	}
	return items
}

// Add adds quantity units of a product, merging with an existing line.
func (s *Session) Add(ctx context.Context, productID string, meta cart.ProductMeta, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cart.Add(productID, meta, quantity); err != nil {
		return err
	}
	s.enqueueLocked(ctx, "add", productID, func(ctx context.Context) ([]cart.RawItem, error) {
		return s.remote.AddItem(ctx, productID, quantity)
	})
	return nil
}

// SetQuantity overwrites a line's quantity; quantity < 1 removes the line.
func (s *Session) SetQuantity(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cart.SetQuantity(productID, quantity); err != nil {
		return err
	}
	if quantity < 1 {
		s.enqueueLocked(ctx, "remove", productID, func(ctx context.Context) ([]cart.RawItem, error) {
			return s.remote.RemoveItem(ctx, productID)
		})
		return nil
	}
	s.enqueueLocked(ctx, "update", productID, func(ctx context.Context) ([]cart.RawItem, error) {
		return s.remote.UpdateItem(ctx, productID, quantity)
	})
	return nil
}

// Remove deletes a line. Removing an absent product is a no-op and reports
// false.
func (s *Session) Remove(ctx context.Context, productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cart.Remove(productID) {
		return false
	}
	s.enqueueLocked(ctx, "remove", productID, func(ctx context.Context) ([]cart.RawItem, error) {
		return s.remote.RemoveItem(ctx, productID)
	})
	return true
}

// Clear empties the cart.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked(ctx)
}

func (s *Session) clearLocked(ctx context.Context) uint64 {
	s.cart.Clear()
	return s.enqueueLocked(ctx, "clear", "", s.remote.ClearCart)
}

// Items returns a snapshot of the cart lines.
func (s *Session) Items() []cart.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cart.Items()
}

// Pricing computes totals for the current cart.
func (s *Session) Pricing() pricing.Result {
	return s.pricing.Compute(s.Items())
}

// Source reports where the current state was last confirmed.
func (s *Session) Source() cart.Source {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.source
}

// State reports the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Snapshot returns items, totals, source and state read under one lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	items := s.cart.Items()
	snap := Snapshot{Items: items, Source: s.source, State: s.state}
	s.mu.Unlock()

	snap.Pricing = s.pricing.Compute(items)
	return snap
}

// Logout clears the cart in memory and in the local fallback. The remote cart
// is left untouched; it belongs to the account, not the device.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.cart.Clear()
	s.seq++
	seq := s.seq
	s.source = cart.SourceServer
	s.notices = nil
	s.mu.Unlock()

	if err := s.writeLocal(ctx, seq, []cart.RawItem{}); err != nil {
		return errors.Wrap(err, "clear local cart")
	}
	return nil
}

// Close detaches the session from the local fallback. Syncs already issued
// still reach the remote service, but no longer write the fallback, which
// belongs to whichever session replaced this one. Close waits for an
// in-progress fallback write to finish.
func (s *Session) Close() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.closed = true
}

// Orders lists this session's recorded orders filtered and sorted by q.
func (s *Session) Orders(ctx context.Context, q order.Query) ([]order.Order, error) {
	if s.orders == nil {
		return []order.Order{}, nil
	}
	list, err := s.orders.List(ctx, s.key)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return q.Apply(list), nil
}
