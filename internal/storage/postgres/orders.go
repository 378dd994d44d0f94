package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(code, session_key, items, shipping_address, payment_method, subtotal, shipping_fee, total, status, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	listOrdersSQL = `SELECT code, session_key, items, shipping_address, payment_method,
		subtotal, shipping_fee, total, status, placed_at
		FROM orders WHERE session_key = $1 ORDER BY placed_at DESC, code`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a placed order. Items and address are stored as JSONB,
// amounts as NUMERIC.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.Code,
		o.SessionKey,
		cart.EncodeRawItems(cart.LocalItems(o.Items)),
		encodeAddress(o.ShippingAddress),
		string(o.PaymentMethod),
		decimal.NewFromInt(o.Subtotal),
		decimal.NewFromInt(o.ShippingFee),
		decimal.NewFromInt(o.Total),
		string(o.Status),
		o.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Code, err)
	}
	return nil
}

// List returns the session's orders, newest first.
func (r *OrderRepository) List(ctx context.Context, sessionKey string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                         order.Order
		items, address            []byte
		payment, status           string
		subtotal, shipping, total decimal.Decimal
		placedAt                  time.Time
	)
	if err := row.Scan(
		&o.Code, &o.SessionKey, &items, &address, &payment,
		&subtotal, &shipping, &total, &status, &placedAt,
	); err != nil {
		return order.Order{}, fmt.Errorf("scanning order: %w", err)
	}

	raw, err := cart.DecodeRawItems(items)
	if err != nil {
		return order.Order{}, fmt.Errorf("decoding items of order %q: %w", o.Code, err)
	}
	o.Items, _ = cart.Normalize(raw)
	if o.ShippingAddress, err = decodeAddress(address); err != nil {
		return order.Order{}, fmt.Errorf("decoding address of order %q: %w", o.Code, err)
	}
	o.PaymentMethod = order.PaymentMethod(payment)
	o.Status = order.Status(status)
	o.Subtotal = subtotal.IntPart()
	o.ShippingFee = shipping.IntPart()
	o.Total = total.IntPart()
	o.PlacedAt = placedAt.UTC()
	return o, nil
}

func encodeAddress(a order.Address) []byte {
	e := &jx.Encoder{}
	e.Obj(func(e *jx.Encoder) {
		e.Field("fullName", func(e *jx.Encoder) { e.Str(a.FullName) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(a.Phone) })
		e.Field("street", func(e *jx.Encoder) { e.Str(a.Street) })
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("department", func(e *jx.Encoder) { e.Str(a.Department) })
		e.Field("postalCode", func(e *jx.Encoder) { e.Str(a.PostalCode) })
		e.Field("notes", func(e *jx.Encoder) { e.Str(a.Notes) })
	})
	return e.Bytes()
}

func decodeAddress(data []byte) (order.Address, error) {
	var a order.Address
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var dst *string
		switch string(key) {
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
		if err != nil {
			return err
		}
		*dst = v
		return nil
	})
	return a, err
}
