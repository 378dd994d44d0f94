package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
)

func TestCarts_RoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	lines := []cart.LineItem{
		{ProductID: "p1", Name: "Sombrero vueltiao", UnitPrice: 85000, Quantity: 1, Category: "sombreros"},
		{ProductID: "p2", Name: "Hamaca", UnitPrice: 120000, Quantity: 2},
	}
	require.NoError(t, s.Write(ctx, "sess-1", cart.LocalItems(lines)))

	raw, err := s.Read(ctx, "sess-1")
	require.NoError(t, err)
	got, rep := cart.Normalize(raw)
	assert.Equal(t, lines, got)
	assert.Zero(t, rep.DroppedCount())
}

func TestCarts_Missing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	raw, err := s.Read(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestCarts_Overwrite(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "k", cart.LocalItems([]cart.LineItem{{ProductID: "a", Quantity: 1}})))
	require.NoError(t, s.Write(ctx, "k", []cart.RawItem{}))

	raw, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, raw)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestCarts_KeyCannotEscapeDir(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), "../../etc/passwd", []cart.RawItem{}))

	p := s.path("../../etc/passwd")
	assert.Equal(t, dir, filepath.Dir(p))
}

func TestCarts_CorruptFile(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path("bad"), []byte("{not json"), 0o600))

	_, err = s.Read(context.Background(), "bad")
	require.Error(t, err)
}

func TestCarts_Ping(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "carts")
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(dir))
	require.Error(t, s.Ping(context.Background()))
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}
