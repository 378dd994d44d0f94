package session

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
)

const meterName = "github.com/xenking/artesjac-cart/internal/session"

// Metrics holds the cart counters shared by all sessions. A nil *Metrics
// records nothing.
type Metrics struct {
	normalizeDropped metric.Int64Counter
	syncFailures     metric.Int64Counter
	syncStaleCount   metric.Int64Counter
	ordersPlaced     metric.Int64Counter
}

// NewMetrics registers the cart counters on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var (
		m   Metrics
		err error
	)
	if m.normalizeDropped, err = meter.Int64Counter("cart.normalize.dropped",
		metric.WithDescription("Raw cart items dropped during normalization"),
	); err != nil {
		return nil, errors.Wrap(err, "cart.normalize.dropped")
	}
	if m.syncFailures, err = meter.Int64Counter("cart.sync.failures",
		metric.WithDescription("Failed remote cart calls"),
	); err != nil {
		return nil, errors.Wrap(err, "cart.sync.failures")
	}
	if m.syncStaleCount, err = meter.Int64Counter("cart.sync.stale",
		metric.WithDescription("Sync completions ignored because a newer mutation exists"),
	); err != nil {
		return nil, errors.Wrap(err, "cart.sync.stale")
	}
	if m.ordersPlaced, err = meter.Int64Counter("cart.checkout.orders",
		metric.WithDescription("Orders placed through checkout"),
	); err != nil {
		return nil, errors.Wrap(err, "cart.checkout.orders")
	}
	return &m, nil
}

func (m *Metrics) dropped(ctx context.Context, rep cart.Report) {
	if m == nil {
		return
	}
	for reason, n := range rep.Dropped {
		m.normalizeDropped.Add(ctx, int64(n),
			metric.WithAttributes(attribute.String("reason", string(reason))))
	}
}

func (m *Metrics) syncFailed(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.syncFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) syncStale(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.syncStaleCount.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) orderPlaced(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersPlaced.Add(ctx, 1)
}
