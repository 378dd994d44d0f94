package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/artesjac-cart/internal/domain/order"
)

func TestAddressCodec(t *testing.T) {
	a := order.Address{FullName: "Ana", Phone: "1", Street: "S", City: "C", Department: "D", Notes: "timbre \"2\""}

	got, err := decodeAddress(encodeAddress(a))
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestDecodeAddress_IgnoresUnknownFields(t *testing.T) {
	got, err := decodeAddress([]byte(`{"city":"Tunja","country":"CO","geo":{"lat":5.5}}`))
	require.NoError(t, err)
	assert.Equal(t, order.Address{City: "Tunja"}, got)
}

func TestDecodeAddress_Invalid(t *testing.T) {
	_, err := decodeAddress([]byte(`{"city":7}`))
	require.Error(t, err)
}
