package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
	"github.com/xenking/artesjac-cart/internal/session"
)

var errInvalidSession = errors.New("invalid session identifier")

// writeError maps domain errors to the {"code","message"} body. Validation
// failures also list the rejected fields.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}

	var verr *order.ValidationError
	errors.As(err, &verr)

	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(message) })
			if verr == nil {
				return
			}
			e.Field("fields", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, f := range verr.Fields {
						e.Obj(func(e *jx.Encoder) {
							e.Field("field", func(e *jx.Encoder) { e.Str(f.Field) })
							e.Field("rule", func(e *jx.Encoder) { e.Str(f.Rule) })
						})
					}
				})
			})
		})
	})
}

func errorStatus(err error) (int, string) {
	var (
		subErr *order.SubmissionError
		nfErr  *cart.NotFoundError
		qtyErr *cart.InvalidQuantityError
	)
	switch {
	case errors.Is(err, errMalformed), errors.Is(err, errInvalidSession),
		errors.Is(err, cart.ErrMissingProductID), errors.Is(err, order.ErrUnknownSort):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &nfErr):
		return http.StatusNotFound, nfErr.Error()
	case errors.As(err, &qtyErr):
		return http.StatusUnprocessableEntity, qtyErr.Error()
	case errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidCheckout):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, session.ErrCheckoutInProgress):
		return http.StatusConflict, err.Error()
	case errors.As(err, &subErr):
		return http.StatusBadGateway, "order could not be placed, please try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
