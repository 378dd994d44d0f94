package handler

import (
	"io"
	"math"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
	"github.com/xenking/artesjac-cart/internal/domain/pricing"
	"github.com/xenking/artesjac-cart/internal/session"
)

// maxBodyBytes caps request bodies; a full checkout fits well below it.
const maxBodyBytes = 64 << 10

// errMalformed marks request bodies that are not the expected JSON shape.
var errMalformed = errors.New("malformed request body")

type addItemRequest struct {
	ProductID string
	Quantity  int
	Meta      cart.ProductMeta
}

type checkoutRequest struct {
	Address order.Address
	Payment order.PaymentMethod
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(errMalformed, err.Error())
	}
	return data, nil
}

func malformed(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errMalformed, err.Error())
}

func decodeAddItem(data []byte) (addItemRequest, error) {
	req := addItemRequest{Quantity: 1}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "productId":
			v, err := decodeID(d)
			req.ProductID = v
			return err
		case "quantity":
			v, err := d.Int()
			req.Quantity = v
			return err
		case "name":
			v, err := d.Str()
			req.Meta.Name = v
			return err
		case "price":
			v, err := d.Float64()
			if err != nil {
				return err
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt64/2 {
				return errors.Errorf("price %v out of range", v)
			}
			req.Meta.UnitPrice = cart.Money(math.Round(v))
			return nil
		case "category":
			v, err := d.Str()
			req.Meta.Category = v
			return err
		default:
			return d.Skip()
		}
	})
	return req, malformed(err)
}

// decodeID accepts string and numeric product IDs, as the storefront's
// catalog uses both.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		raw, err := d.Raw()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	default:
		return "", errors.New("productId must be a string or number")
	}
}

func decodeQuantity(data []byte) (int, error) {
	var (
		qty   int
		found bool
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		found = true
		v, err := d.Int()
		qty = v
		return err
	})
	if err == nil && !found {
		err = errors.New("quantity is required")
	}
	return qty, malformed(err)
}

func decodeCheckout(data []byte) (checkoutRequest, error) {
	var req checkoutRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "shippingAddress":
			return decodeAddress(d, &req.Address)
		case "paymentMethod":
			v, err := d.Str()
			req.Payment = order.PaymentMethod(v)
			return err
		default:
			return d.Skip()
		}
	})
	return req, malformed(err)
}

func decodeAddress(d *jx.Decoder, a *order.Address) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "fullName":
			dst = &a.FullName
		case "phone":
			dst = &a.Phone
		case "street":
			dst = &a.Street
		case "city":
			dst = &a.City
		case "department":
			dst = &a.Department
		case "postalCode":
			dst = &a.PostalCode
		case "notes":
			dst = &a.Notes
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*dst = v
		return err
	})
}

func encodeCart(e *jx.Encoder, snap session.Snapshot, remaining pricing.Money, notices []session.Notice) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) { encodeLines(e, snap.Items) })
		e.Field("itemCount", func(e *jx.Encoder) { e.Int(units(snap.Items)) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Int64(snap.Pricing.Subtotal) })
		e.Field("shippingFee", func(e *jx.Encoder) { e.Int64(snap.Pricing.ShippingFee) })
		e.Field("total", func(e *jx.Encoder) { e.Int64(snap.Pricing.Total) })
		e.Field("freeShipping", func(e *jx.Encoder) { e.Bool(snap.Pricing.FreeShipping()) })
		e.Field("remainingForFreeShipping", func(e *jx.Encoder) { e.Int64(remaining) })
		e.Field("source", func(e *jx.Encoder) { e.Str(string(snap.Source)) })
		e.Field("state", func(e *jx.Encoder) { e.Str(string(snap.State)) })
		e.Field("notices", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, n := range notices {
					encodeNotice(e, n)
				}
			})
		})
	})
}

func units(items []cart.LineItem) int {
	var n int
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

func encodeLines(e *jx.Encoder, items []cart.LineItem) {
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			e.Obj(func(e *jx.Encoder) {
				e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
				e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
				e.Field("price", func(e *jx.Encoder) { e.Int64(it.UnitPrice) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
				if it.Category != "" {
					e.Field("category", func(e *jx.Encoder) { e.Str(it.Category) })
				}
				e.Field("lineTotal", func(e *jx.Encoder) {
					e.Int64(pricing.Subtotal([]cart.LineItem{it}))
				})
			})
		}
	})
}

func encodeNotice(e *jx.Encoder, n session.Notice) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(n.Kind)) })
		e.Field("op", func(e *jx.Encoder) { e.Str(n.Op) })
		if n.ProductID != "" {
			e.Field("productId", func(e *jx.Encoder) { e.Str(n.ProductID) })
		}
		if n.Err != nil {
			e.Field("message", func(e *jx.Encoder) { e.Str(n.Err.Error()) })
		}
		e.Field("at", func(e *jx.Encoder) { e.Str(n.At.UTC().Format(time.RFC3339)) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(o.Code) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("items", func(e *jx.Encoder) { encodeLines(e, o.Items) })
		e.Field("shippingAddress", func(e *jx.Encoder) {
			a := o.ShippingAddress
			e.Obj(func(e *jx.Encoder) {
				e.Field("fullName", func(e *jx.Encoder) { e.Str(a.FullName) })
				e.Field("phone", func(e *jx.Encoder) { e.Str(a.Phone) })
				e.Field("street", func(e *jx.Encoder) { e.Str(a.Street) })
				e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
				e.Field("department", func(e *jx.Encoder) { e.Str(a.Department) })
				if a.PostalCode != "" {
					e.Field("postalCode", func(e *jx.Encoder) { e.Str(a.PostalCode) })
				}
				if a.Notes != "" {
					e.Field("notes", func(e *jx.Encoder) { e.Str(a.Notes) })
				}
			})
		})
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(o.PaymentMethod)) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Int64(o.Subtotal) })
		e.Field("shippingFee", func(e *jx.Encoder) { e.Int64(o.ShippingFee) })
		e.Field("total", func(e *jx.Encoder) { e.Int64(o.Total) })
		e.Field("placedAt", func(e *jx.Encoder) { e.Str(o.PlacedAt.UTC().Format(time.RFC3339)) })
	})
}
