package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/artesjac-cart/internal/domain/order"
)

// checkout places the order and answers 201 with the placed order. The cart
// is only cleared when the remote service accepted the order.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
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
	req, err := decodeCheckout(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	placed, err := s.Checkout(r.Context(), req.Address, req.Payment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, placed)
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	sort, err := order.ParseSort(q.Get("sort"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	list, err := s.Orders(r.Context(), order.Query{
		Status: order.Status(q.Get("status")),
		Text:   q.Get("q"),
		Sort:   sort,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeOrder(e, &list[i])
			}
		})
	})
}

// logout clears the device's cart. The remote cart is kept for the account.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.Logout(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
