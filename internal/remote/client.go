// Package remote implements the ArtesJAC cart and order REST API client.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
	"github.com/xenking/artesjac-cart/internal/session"
)

const maxResponseBody = 1 << 20

var _ session.CartService = (*Client)(nil)

// ErrMissingOrderCode is returned when an order response carries no code.
var ErrMissingOrderCode = errors.New("order code missing in response")

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: status %d", e.Code)
	}
	return fmt.Sprintf("remote: status %d: %s", e.Code, e.Message)
}

// BreakerConfig controls the circuit breaker shared by all calls.
type BreakerConfig struct {
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests are allowed through while probing.
	HalfOpenRequests uint32
}

// Client calls the remote cart service. A Client without a token makes
// anonymous calls; use WithToken to act for a shopper.
type Client struct {
	base    *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	token   string
}

type options struct {
	httpClient     *http.Client
	timeout        time.Duration
	breaker        BreakerConfig
	lg             *zap.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient overrides the HTTP client. Its transport is still wrapped
// with otelhttp.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithBreaker configures the circuit breaker.
func WithBreaker(cfg BreakerConfig) Option {
	return func(o *options) { o.breaker = cfg }
}

// WithLogger sets the logger used for breaker state changes.
func WithLogger(lg *zap.Logger) Option {
	return func(o *options) { o.lg = lg }
}

// WithTracerProvider sets the tracer provider for outgoing requests.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider for outgoing requests.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	o := options{
		timeout: 10 * time.Second,
		breaker: BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second, HalfOpenRequests: 1},
		lg:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: o.timeout}
	} else {
		cp := *hc
		hc = &cp
	}
	transport := hc.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	var otelOpts []otelhttp.Option
	if o.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(o.tracerProvider))
	}
	if o.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(o.meterProvider))
	}
	hc.Transport = otelhttp.NewTransport(transport, otelOpts...)

	maxFailures := o.breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	lg := o.lg
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "artesjac-api",
		MaxRequests: o.breaker.HalfOpenRequests,
		Timeout:     o.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
		// Client errors mean the API is up.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Code < http.StatusInternalServerError
		},
	})

	return &Client{base: base, http: hc, breaker: cb}, nil
}

// WithToken returns a client that authenticates as the holder of token. The
// returned client shares the connection pool and breaker.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// FetchCart returns the shopper's server cart.
func (c *Client) FetchCart(ctx context.Context) ([]cart.RawItem, error) {
	return c.cartCall(ctx, http.MethodGet, nil, "cart")
}

// AddItem adds quantity units of a product to the server cart.
func (c *Client) AddItem(ctx context.Context, productID string, quantity int) ([]cart.RawItem, error) {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(productID) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(quantity) })
	})
	return c.cartCall(ctx, http.MethodPost, e.Bytes(), "cart", "items")
}

// UpdateItem overwrites a line's quantity on the server.
func (c *Client) UpdateItem(ctx context.Context, productID string, quantity int) ([]cart.RawItem, error) {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("quantity", func(e *jx.Encoder) { e.Int(quantity) })
	})
	return c.cartCall(ctx, http.MethodPut, e.Bytes(), "cart", "items", productID)
}

// RemoveItem deletes a line from the server cart.
func (c *Client) RemoveItem(ctx context.Context, productID string) ([]cart.RawItem, error) {
	return c.cartCall(ctx, http.MethodDelete, nil, "cart", "items", productID)
}

// ClearCart empties the server cart.
func (c *Client) ClearCart(ctx context.Context) ([]cart.RawItem, error) {
	return c.cartCall(ctx, http.MethodDelete, nil, "cart")
}

// SubmitOrder places an order and returns its server-assigned code.
func (c *Client) SubmitOrder(ctx context.Context, sub order.Submission) (string, error) {
	body := encodeSubmission(sub)

	resp, err := c.do(ctx, http.MethodPost, body, func(req *http.Request) {
		if sub.IdempotencyKey != "" {
			req.Header.Set("Idempotency-Key", sub.IdempotencyKey)
		}
	}, "orders")
	if err != nil {
		return "", errors.Wrap(err, "submit order")
	}
	code, err := decodeOrderCode(resp)
	if err != nil {
		return "", errors.Wrap(err, "decode order response")
	}
	if code == "" {
		return "", ErrMissingOrderCode
	}
	return code, nil
}

func (c *Client) cartCall(ctx context.Context, method string, body []byte, elems ...string) ([]cart.RawItem, error) {
	path := strings.Join(elems, "/")
	resp, err := c.do(ctx, method, body, nil, elems...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s /%s", method, path)
	}
	if len(bytes.TrimSpace(resp)) == 0 {
		return nil, nil
	}
	items, err := cart.DecodeCartEnvelope(resp)
	if err != nil {
		return nil, errors.Wrapf(err, "%s /%s", method, path)
	}
	return items, nil
}

func (c *Client) do(
	ctx context.Context,
	method string,
	body []byte,
	prepare func(*http.Request),
	elems ...string,
) ([]byte, error) {
	return c.breaker.Execute(func() ([]byte, error) {
		var r io.Reader
		if body != nil {
			r = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(elems...).String(), r)
		if err != nil {
			return nil, errors.Wrap(err, "create request")
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		if prepare != nil {
			prepare(req)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, errors.Wrap(err, "read body")
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(data)}
		}
		return data, nil
	})
}
