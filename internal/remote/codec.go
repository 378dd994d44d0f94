package remote

import (
	"strings"

	"github.com/go-faster/jx"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
)

func encodeSubmission(sub order.Submission) []byte {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range sub.Items {
					encodeLine(e, it)
				}
			})
		})
		e.Field("shippingAddress", func(e *jx.Encoder) {
			encodeAddress(e, sub.ShippingAddress)
		})
		e.Field("paymentMethod", func(e *jx.Encoder) { e.Str(string(sub.PaymentMethod)) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Int64(sub.Pricing.Subtotal) })
		e.Field("shippingFee", func(e *jx.Encoder) { e.Int64(sub.Pricing.ShippingFee) })
		e.Field("total", func(e *jx.Encoder) { e.Int64(sub.Pricing.Total) })
	})
	return e.Bytes()
}

func encodeLine(e *jx.Encoder, it cart.LineItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(it.ProductID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Int64(it.UnitPrice) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
		if it.Category != "" {
			e.Field("category", func(e *jx.Encoder) { e.Str(it.Category) })
		}
	})
}

func encodeAddress(e *jx.Encoder, a order.Address) {
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
}

// decodeOrderCode extracts the order code from {"orderCode"}, {"code"} or
// {"order": {"code"}}.
func decodeOrderCode(data []byte) (string, error) {
	var code string
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "orderCode", "code":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			if code == "" {
				code = v
			}
			return nil
		case "order":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				k := string(key)
				if (k != "code" && k != "orderCode") || d.Next() != jx.String {
					return d.Skip()
				}
				v, err := d.Str()
				if err != nil {
					return err
				}
				if code == "" {
					code = v
				}
				return nil
			})
		default:
			return d.Skip()
		}
	})
	return strings.TrimSpace(code), err
}

// errorMessage extracts "message" or "error" from an error body, falling
// back to the trimmed raw text.
func errorMessage(data []byte) string {
	var msg string
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Object {
		_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			k := string(key)
			if (k == "message" || k == "error") && d.Next() == jx.String && msg == "" {
				v, err := d.Str()
				msg = v
				return err
			}
			return d.Skip()
		})
		if msg != "" {
			return msg
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
