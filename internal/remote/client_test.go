package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
	"github.com/xenking/artesjac-cart/internal/domain/pricing"
)

type recorded struct {
	method string
	path   string
	body   string
	header http.Header
}

type apiStub struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	response string
}

func (s *apiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, recorded{
		method: r.Method,
		path:   r.URL.EscapedPath(),
		body:   string(body),
		header: r.Header.Clone(),
	})
	status, response := s.status, s.response
	s.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, response)
}

func (s *apiStub) last(t *testing.T) recorded {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.requests)
	return s.requests[len(s.requests)-1]
}

func newTestClient(t *testing.T, stub *apiStub, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api/", opts...)
	require.NoError(t, err)
	return c
}

const serverCart = `{"items":[{"productId":{"_id":"p1","title":"Mochila","price":12000},"quantity":2}]}`

func TestClient_FetchCart(t *testing.T) {
	stub := &apiStub{response: serverCart}
	c := newTestClient(t, stub).WithToken("tok-123")

	raw, err := c.FetchCart(context.Background())
	require.NoError(t, err)

	items, _ := cart.Normalize(raw)
	assert.Equal(t, []cart.LineItem{{ProductID: "p1", Name: "Mochila", UnitPrice: 12000, Quantity: 2}}, items)

	req := stub.last(t)
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/api/cart", req.path)
	assert.Equal(t, "Bearer tok-123", req.header.Get("Authorization"))
}

func TestClient_CartMutations(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *Client) ([]cart.RawItem, error)
		wantMethod string
		wantPath   string
		wantBody   string
	}{
		{
			name:       "add",
			call:       func(c *Client) ([]cart.RawItem, error) { return c.AddItem(context.Background(), "p1", 3) },
			wantMethod: http.MethodPost,
			wantPath:   "/api/cart/items",
			wantBody:   `{"productId":"p1","quantity":3}`,
		},
		{
			name:       "update",
			call:       func(c *Client) ([]cart.RawItem, error) { return c.UpdateItem(context.Background(), "p 1", 5) },
			wantMethod: http.MethodPut,
			wantPath:   "/api/cart/items/p%201",
			wantBody:   `{"quantity":5}`,
		},
		{
			name:       "remove",
			call:       func(c *Client) ([]cart.RawItem, error) { return c.RemoveItem(context.Background(), "p1") },
			wantMethod: http.MethodDelete,
			wantPath:   "/api/cart/items/p1",
		},
		{
			name:       "clear",
			call:       func(c *Client) ([]cart.RawItem, error) { return c.ClearCart(context.Background()) },
			wantMethod: http.MethodDelete,
			wantPath:   "/api/cart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &apiStub{response: serverCart}
			c := newTestClient(t, stub)

			raw, err := tt.call(c)
			require.NoError(t, err)
			assert.Len(t, raw, 1)

			req := stub.last(t)
			assert.Equal(t, tt.wantMethod, req.method)
			assert.Equal(t, tt.wantPath, req.path)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, req.body)
				assert.Equal(t, "application/json", req.header.Get("Content-Type"))
			} else {
				assert.Empty(t, req.body)
			}
		})
	}
}

func TestClient_EmptyBodyMeansNoEcho(t *testing.T) {
	stub := &apiStub{status: http.StatusNoContent}
	c := newTestClient(t, stub)

	raw, err := c.RemoveItem(context.Background(), "p1")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestClient_EmptyItemsIsEmptyCart(t *testing.T) {
	stub := &apiStub{response: `{"cart":{"items":[]}}`}
	c := newTestClient(t, stub)

	raw, err := c.ClearCart(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, raw)
	assert.Empty(t, raw)
}

func TestClient_StatusError(t *testing.T) {
	stub := &apiStub{status: http.StatusUnauthorized, response: `{"message":"token expired"}`}
	c := newTestClient(t, stub)

	_, err := c.FetchCart(context.Background())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.Code)
	assert.Equal(t, "token expired", se.Message)
}

func TestClient_MalformedCart(t *testing.T) {
	stub := &apiStub{response: `"nope"`}
	c := newTestClient(t, stub)

	_, err := c.FetchCart(context.Background())
	require.Error(t, err)
}

func TestClient_SubmitOrder(t *testing.T) {
	stub := &apiStub{status: http.StatusCreated, response: `{"orderCode":"ART-2026-0042"}`}
	c := newTestClient(t, stub)

	code, err := c.SubmitOrder(context.Background(), order.Submission{
		IdempotencyKey: "idem-7",
		Items:          []cart.LineItem{{ProductID: "p1", Name: "Mochila", UnitPrice: 12000, Quantity: 1}},
		ShippingAddress: order.Address{
			FullName: "Ana", Phone: "300", Street: "Cra 1", City: "Bogotá", Department: "Cundinamarca",
		},
		PaymentMethod: order.PaymentCard,
		Pricing:       pricing.Result{Subtotal: 12000, ShippingFee: 3500, Total: 15500},
	})
	require.NoError(t, err)
	assert.Equal(t, "ART-2026-0042", code)

	req := stub.last(t)
	assert.Equal(t, "/api/orders", req.path)
	assert.Equal(t, "idem-7", req.header.Get("Idempotency-Key"))
	assert.JSONEq(t, `{
		"items":[{"productId":"p1","name":"Mochila","price":12000,"quantity":1}],
		"shippingAddress":{"fullName":"Ana","phone":"300","street":"Cra 1","city":"Bogotá","department":"Cundinamarca"},
		"paymentMethod":"card",
		"subtotal":12000,"shippingFee":3500,"total":15500
	}`, req.body)
}

func TestDecodeOrderCode(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: `{"orderCode":"A1"}`, want: "A1"},
		{input: `{"code":"B2","extra":[1,2]}`, want: "B2"},
		{input: `{"order":{"_id":"x","code":"C3"}}`, want: "C3"},
		{input: `{"order":{"orderCode":"D4"}}`, want: "D4"},
		{input: `{"ok":true}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := decodeOrderCode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SubmitOrderMissingCode(t *testing.T) {
	stub := &apiStub{response: `{"ok":true}`}
	c := newTestClient(t, stub)

	_, err := c.SubmitOrder(context.Background(), order.Submission{})
	require.ErrorIs(t, err, ErrMissingOrderCode)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	stub := &apiStub{status: http.StatusServiceUnavailable, response: "upstream down"}
	c := newTestClient(t, stub, WithBreaker(BreakerConfig{
		MaxFailures:      2,
		OpenTimeout:      time.Minute,
		HalfOpenRequests: 1,
	}))
	ctx := context.Background()

	for range 2 {
		_, err := c.FetchCart(ctx)
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "upstream down", se.Message)
	}
	assert.Equal(t, gobreaker.StateOpen, c.BreakerState())

	_, err := c.FetchCart(ctx)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)

	stub.mu.Lock()
	assert.Len(t, stub.requests, 2, "open breaker short-circuits calls")
	stub.mu.Unlock()
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	stub := &apiStub{status: http.StatusNotFound}
	c := newTestClient(t, stub, WithBreaker(BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute}))

	for range 3 {
		_, err := c.RemoveItem(context.Background(), "gone")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState())
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url)
	require.NoError(t, err)

	_, err = c.FetchCart(context.Background())
	require.Error(t, err)
	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New("not a url")
	require.Error(t, err)

	_, err = New("/relative")
	require.Error(t, err)
}
