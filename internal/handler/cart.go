package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, s)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeAddItem(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Add(r.Context(), req.ProductID, req.Meta, req.Quantity); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, s)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	qty, err := decodeQuantity(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.SetQuantity(r.Context(), chi.URLParam(r, "productId"), qty); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK, s)
}

// removeItem is idempotent: removing an absent product returns the cart
// unchanged.
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Remove(r.Context(), chi.URLParam(r, "productId"))
	h.writeCart(w, http.StatusOK, s)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.Clear(r.Context())
	h.writeCart(w, http.StatusOK, s)
}
