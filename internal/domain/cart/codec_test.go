package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serverCartJSON = `{
  "cart": {
    "_id": "c1",
    "items": [
      {"productId": {"_id": "64f0", "title": "Mochila arhuaca", "price": 180000, "category": "textil", "stock": 3}, "quantity": 2},
      {"productId": {"id": 77, "name": "Jarrón", "price": "45000"}, "quantity": "1"},
      {"productId": "p3", "name": "Plato", "price": 9000, "quantity": 1},
      42
    ]
  }
}`

func TestDecodeCartEnvelope_ServerPayload(t *testing.T) {
	raw, err := DecodeCartEnvelope([]byte(serverCartJSON))
	require.NoError(t, err)
	require.Len(t, raw, 4)

	require.NotNil(t, raw[0].Server)
	assert.Equal(t, "64f0", raw[0].Server.Product.ID)
	assert.Equal(t, Number("180000"), raw[0].Server.Product.Price)

	require.NotNil(t, raw[1].Server)
	assert.Equal(t, "77", raw[1].Server.Product.ID, "numeric id falls back to text")

	require.NotNil(t, raw[2].Local)
	assert.Equal(t, "p3", raw[2].Local.ProductID)

	assert.Nil(t, raw[3].Server)
	assert.Nil(t, raw[3].Local)

	items, rep := Normalize(raw)
	require.Len(t, items, 3)
	assert.Equal(t, LineItem{ProductID: "64f0", Name: "Mochila arhuaca", UnitPrice: 180000, Quantity: 2, Category: "textil"}, items[0])
	assert.Equal(t, LineItem{ProductID: "77", Name: "Jarrón", UnitPrice: 45000, Quantity: 1}, items[1])
	assert.Equal(t, LineItem{ProductID: "p3", Name: "Plato", UnitPrice: 9000, Quantity: 1}, items[2])
	assert.Equal(t, 1, rep.Dropped[DropMalformed])
}

func TestDecodeCartEnvelope_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantNil bool
		wantErr bool
	}{
		{name: "bare array", input: `[{"id":"a","price":1}]`, wantLen: 1},
		{name: "items object", input: `{"items":[{"id":"a","price":1},{"id":"b","price":2}],"total":3}`, wantLen: 2},
		{name: "empty items", input: `{"items":[]}`, wantLen: 0},
		{name: "null", input: `null`, wantNil: true},
		{name: "null items", input: `{"items":null}`, wantNil: true},
		{name: "no items key", input: `{"message":"ok"}`, wantNil: true},
		{name: "string payload", input: `"nope"`, wantErr: true},
		{name: "truncated", input: `{"items":[{"id":"a"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := DecodeCartEnvelope([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, raw)
				return
			}
			assert.NotNil(t, raw)
			assert.Len(t, raw, tt.wantLen)
		})
	}
}

func TestDecodeRawItems_ScalarKinds(t *testing.T) {
	raw, err := DecodeRawItems([]byte(`[
		{"id":"a","price":"abc","quantity":0},
		{"id":"b","price":true,"quantity":[1]},
		{"id":"c","price":null,"qty":2.5}
	]`))
	require.NoError(t, err)
	require.Len(t, raw, 3)

	assert.Equal(t, String("abc"), raw[0].Local.Price)
	assert.Equal(t, Number("0"), raw[0].Local.Quantity)
	assert.Equal(t, ScalarBool, raw[1].Local.Price.Kind)
	assert.Equal(t, ScalarOther, raw[1].Local.Quantity.Kind)
	assert.Equal(t, Null(), raw[2].Local.Price)
	assert.Equal(t, Number("2.5"), raw[2].Local.Quantity)

	items, rep := Normalize(raw)
	assert.Empty(t, items)
	assert.Equal(t, 3, rep.Dropped[DropInvalidPrice])
}

func TestDecodeRawItems_HugeExponent(t *testing.T) {
	raw, err := DecodeRawItems([]byte(`[
		{"id":"p1","price":1e999999999,"quantity":1},
		{"id":"p2","price":1000,"quantity":1e999999999},
		{"id":"p3","price":2500,"quantity":1}
	]`))
	require.NoError(t, err)
	require.Len(t, raw, 3)

	items, rep := Normalize(raw)
	require.Len(t, items, 1)
	assert.Equal(t, "p3", items[0].ProductID)
	assert.Equal(t, 1, rep.Dropped[DropInvalidPrice])
	assert.Equal(t, 1, rep.Dropped[DropInvalidQuantity])
}

func TestEncodeRawItems_RoundTrip(t *testing.T) {
	raw := []RawItem{
		{Server: &ServerItem{
			Product:  ProductRef{ID: "s1", Title: "Ruana", Category: "textil", Price: Number("150000")},
			Quantity: String("2"),
		}},
		{Local: &LocalItem{ID: "l1", Name: "Canasta", Price: Int(45000), Quantity: Null()}},
		{Local: &LocalItem{ProductID: "l2", Price: Scalar{Kind: ScalarBool, Text: "false"}}},
	}

	decoded, err := DecodeRawItems(EncodeRawItems(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestEncodeRawItems_LocalShape(t *testing.T) {
	data := EncodeRawItems(LocalItems([]LineItem{
		{ProductID: "p1", Name: "Ruana", UnitPrice: 150000, Quantity: 2},
	}))

	assert.JSONEq(t, `[{"id":"p1","name":"Ruana","price":150000,"quantity":2}]`, string(data))
}

func TestEncodeRawItems_Empty(t *testing.T) {
	assert.Equal(t, `[]`, string(EncodeRawItems(nil)))
}
