package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
)

func validAddress() Address {
	return Address{
		FullName:   "Ana María Restrepo",
		Phone:      "+57 300 123 4567",
		Street:     "Cra 45 # 10-20",
		City:       "Medellín",
		Department: "Antioquia",
	}
}

func TestValidate_OK(t *testing.T) {
	for _, pm := range []PaymentMethod{PaymentCard, PaymentTransfer, PaymentCashOnDelivery} {
		require.NoError(t, Validate(validAddress(), pm), pm)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name      string
		addr      func(a *Address)
		payment   PaymentMethod
		wantField string
		wantRule  string
	}{
		{name: "missing name", addr: func(a *Address) { a.FullName = "" }, payment: PaymentCard, wantField: "Address.FullName", wantRule: "required"},
		{name: "blank city", addr: func(a *Address) { a.City = "   " }, payment: PaymentCard, wantField: "Address.City", wantRule: "required"},
		{name: "long postal code", addr: func(a *Address) { a.PostalCode = "0123456789012" }, payment: PaymentCard, wantField: "Address.PostalCode", wantRule: "max"},
		{name: "unknown payment", addr: func(*Address) {}, payment: "bitcoin", wantField: "Payment", wantRule: "oneof"},
		{name: "missing payment", addr: func(*Address) {}, payment: "", wantField: "Payment", wantRule: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := validAddress()
			tt.addr(&addr)

			err := Validate(addr, tt.payment)

			require.ErrorIs(t, err, ErrInvalidCheckout)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Fields, FieldError{Field: tt.wantField, Rule: tt.wantRule})
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := &Order{
		Code:  "ORD-1",
		Items: []cart.LineItem{{ProductID: "p1", Quantity: 1}},
	}

	c := o.Clone()
	c.Items[0].Quantity = 9
	c.Code = "changed"

	assert.Equal(t, 1, o.Items[0].Quantity)
	assert.Equal(t, "ORD-1", o.Code)
}

func TestSubmissionError(t *testing.T) {
	inner := assert.AnError
	err := &SubmissionError{Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "submit order")
}

func sampleOrders() []Order {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []Order{
		{Code: "ART-001", Status: StatusDelivered, Total: 90000, PlacedAt: base,
			Items: []cart.LineItem{{Name: "Mochila wayuu"}}},
		{Code: "ART-002", Status: StatusPending, Total: 15500, PlacedAt: base.Add(48 * time.Hour),
			Items: []cart.LineItem{{Name: "Jarrón de barro"}}},
		{Code: "ART-003", Status: StatusPending, Total: 60000, PlacedAt: base.Add(24 * time.Hour),
			Items: []cart.LineItem{{Name: "Sombrero vueltiao"}, {Name: "Mochila arhuaca"}}},
	}
}

func codes(orders []Order) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.Code
	}
	return out
}

func TestQuery_Apply(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{name: "default newest first", query: Query{}, want: []string{"ART-002", "ART-003", "ART-001"}},
		{name: "oldest first", query: Query{Sort: SortOldest}, want: []string{"ART-001", "ART-003", "ART-002"}},
		{name: "total ascending", query: Query{Sort: SortTotalAsc}, want: []string{"ART-002", "ART-003", "ART-001"}},
		{name: "total descending", query: Query{Sort: SortTotalDesc}, want: []string{"ART-001", "ART-003", "ART-002"}},
		{name: "status filter", query: Query{Status: StatusPending}, want: []string{"ART-002", "ART-003"}},
		{name: "text matches item", query: Query{Text: "MOCHILA"}, want: []string{"ART-003", "ART-001"}},
		{name: "text matches code", query: Query{Text: "art-002"}, want: []string{"ART-002"}},
		{name: "no match", query: Query{Status: StatusCancelled}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := sampleOrders()
			got := tt.query.Apply(orders)

			assert.Equal(t, tt.want, codes(got))
			assert.Equal(t, "ART-001", orders[0].Code, "input must not be reordered")
		})
	}
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("")
	require.NoError(t, err)
	assert.Equal(t, SortNewest, s)

	s, err = ParseSort(" Total_Desc ")
	require.NoError(t, err)
	assert.Equal(t, SortTotalDesc, s)

	_, err = ParseSort("price")
	require.ErrorIs(t, err, ErrUnknownSort)
}
