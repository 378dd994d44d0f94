package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, body []byte) (code int, message string) {
	t.Helper()
	err := jx.DecodeBytes(body).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "code":
			v, err := d.Int()
			code = v
			return err
		case "message":
			v, err := d.Str()
			message = v
			return err
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return code, message
}

func TestRateLimit_BurstThenDeny(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{Max: 3, Window: time.Hour})(okHandler())

	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set(SessionHeader, "cart-1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(SessionHeader, "cart-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	code, msg := decodeError(t, w.Body.Bytes())
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate limit exceeded", msg)
}

func TestRateLimit_SessionsAreIndependent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, RateLimitConfig{Max: 1, Window: time.Hour})(okHandler())

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1000"
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: session})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("a"))
	assert.Equal(t, http.StatusOK, send("b"))
	assert.Equal(t, http.StatusTooManyRequests, send("a"))
}

func TestRateLimit_Evict(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Minute})
	now := time.Now()

	_, _, ok := rl.reserve("a", now)
	require.True(t, ok)
	_, _, ok = rl.reserve("b", now.Add(50*time.Second))
	require.True(t, ok)

	rl.evict(now.Add(90 * time.Second))
	assert.Equal(t, 1, rl.size())
}

func TestRateLimit_Refill(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: 2 * time.Second})
	now := time.Now()

	for range 2 {
		_, _, ok := rl.reserve("k", now)
		require.True(t, ok)
	}
	_, wait, ok := rl.reserve("k", now)
	require.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	_, _, ok = rl.reserve("k", now.Add(time.Second))
	assert.True(t, ok)
}

func TestSessionKey(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    string
	}{
		{
			name:    "Header",
			prepare: func(r *http.Request) { r.Header.Set(SessionHeader, "h1") },
			want:    "s:h1",
		},
		{
			name: "Cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "c1"})
			},
			want: "s:c1",
		},
		{
			name:    "ForwardedFor",
			prepare: func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1") },
			want:    "ip:203.0.113.5",
		},
		{
			name:    "RealIP",
			prepare: func(r *http.Request) { r.Header.Set("X-Real-IP", "198.51.100.7") },
			want:    "ip:198.51.100.7",
		},
		{
			name:    "RemoteAddr",
			prepare: func(r *http.Request) { r.RemoteAddr = "192.0.2.1:4242" },
			want:    "ip:192.0.2.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			assert.Equal(t, tt.want, SessionKey(req))
		})
	}
}
