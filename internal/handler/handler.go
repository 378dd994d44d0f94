// Package handler serves the cart API consumed by the storefront SPA.
package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/artesjac-cart/internal/domain/pricing"
	"github.com/xenking/artesjac-cart/internal/session"
	"github.com/xenking/artesjac-cart/pkg/httpmiddleware"
)

// sessionCookieTTL keeps an anonymous cart for a month.
const sessionCookieTTL = 30 * 24 * time.Hour

// Config holds non-dependency configuration for the Handler.
type Config struct {
	Pricing pricing.Config
	// SecureCookie marks the session cookie Secure; enable behind HTTPS.
	SecureCookie bool
}

// Handler exposes cart sessions over HTTP.
type Handler struct {
	sessions *Registry
	pricing  pricing.Config
	secure   bool
	newKey   func() string
}

// New constructs a Handler backed by the session registry.
func New(cfg Config, sessions *Registry) *Handler {
	return &Handler{
		sessions: sessions,
		pricing:  cfg.Pricing,
		secure:   cfg.SecureCookie,
		newKey:   uuid.NewString,
	}
}

// Mount registers the API routes on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/cart", h.getCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/items", h.addItem)
		r.Put("/cart/items/{productId}", h.updateItem)
		r.Delete("/cart/items/{productId}", h.removeItem)
		r.Post("/checkout", h.checkout)
		r.Get("/orders", h.listOrders)
		r.Post("/logout", h.logout)
	})
}

// session resolves the caller's session, issuing a new identity when the
// request carries none.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	key := r.Header.Get(httpmiddleware.SessionHeader)
	if key == "" {
		if c, err := r.Cookie(httpmiddleware.SessionCookie); err == nil {
			key = c.Value
		}
	}
	switch {
	case key == "":
		key = h.newKey()
		http.SetCookie(w, &http.Cookie{
			Name:     httpmiddleware.SessionCookie,
			Value:    key,
			Path:     "/",
			MaxAge:   int(sessionCookieTTL.Seconds()),
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
	case !session.ValidKey(key):
		return nil, errInvalidSession
	}
	w.Header().Set(httpmiddleware.SessionHeader, key)

	return h.sessions.Get(r.Context(), key, bearerToken(r)), nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func (h *Handler) writeCart(w http.ResponseWriter, status int, s *session.Session) {
	snap := s.Snapshot()
	notices := s.Notices()
	remaining := h.pricing.Remaining(snap.Pricing.Subtotal)
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeCart(e, snap, remaining, notices)
	})
}
