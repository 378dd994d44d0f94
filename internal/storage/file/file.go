// Package file stores cart snapshots as one JSON document per session in a
// directory.
package file

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/storage"
)

var (
	_ storage.Carts  = (*Carts)(nil)
	_ storage.Pinger = (*Carts)(nil)
)

// Carts is a directory-backed cart store.
type Carts struct {
	dir string
}

// New creates dir if needed and returns a store rooted there.
func New(dir string) (*Carts, error) {
	if dir == "" {
		return nil, errors.New("cart directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "create cart directory")
	}
	return &Carts{dir: dir}, nil
}

// path maps a key to a file name that cannot escape dir.
func (s *Carts) path(key string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+".json")
}

func (s *Carts) Read(_ context.Context, key string) ([]cart.RawItem, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read cart %q", key)
	}
	items, err := cart.DecodeRawItems(data)
	if err != nil {
		return nil, errors.Wrapf(err, "read cart %q", key)
	}
	return items, nil
}

// Write replaces the snapshot atomically: readers see either the old or the
// new document, never a partial one.
func (s *Carts) Write(_ context.Context, key string, items []cart.RawItem) error {
	tmp, err := os.CreateTemp(s.dir, ".cart-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(cart.EncodeRawItems(items)); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return errors.Wrapf(err, "write cart %q", key)
	}
	return nil
}

// Ping checks that the directory is still accessible.
func (s *Carts) Ping(context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return errors.Wrap(err, "stat cart directory")
	}
	return nil
}
