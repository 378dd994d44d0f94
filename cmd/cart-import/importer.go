package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"strings"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/artesjac-cart/internal/domain/cart"
	"github.com/xenking/artesjac-cart/internal/session"
	"github.com/xenking/artesjac-cart/internal/storage"
)

const (
	maxLineBytes  = 1 << 20
	progressEvery = 10_000
)

// record is one exported browser cart.
type record struct {
	Session string
	Items   []cart.RawItem
}

// stats counts import results across all files.
type stats struct {
	Lines        int
	Imported     int
	Skipped      int
	InvalidKeys  int
	DroppedItems int
	Written      int
}

func (s *stats) add(o stats) {
	s.Lines += o.Lines
	s.Imported += o.Imported
	s.Skipped += o.Skipped
	s.InvalidKeys += o.InvalidKeys
	s.DroppedItems += o.DroppedItems
	s.Written += o.Written
}

// carts maps a session key to its normalized cart in the local shape.
type carts map[string][]cart.RawItem

type importer struct {
	carts   storage.Carts
	workers int
}

// importFiles reads every file concurrently, then writes each session once.
// When a session appears more than once the last line wins, and files later
// on the command line win over earlier ones. Partial stats are returned when
// a file fails; nothing is written in that case.
func (imp *importer) importFiles(ctx context.Context, files []string) (stats, error) {
	var (
		total   stats
		results = make([]carts, len(files))
		perFile = make([]stats, len(files))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(imp.workers, 1))
	for i, f := range files {
		g.Go(func() error {
			found, st, err := imp.readFile(gctx, f)
			results[i], perFile[i] = found, st
			return err
		})
	}
	err := g.Wait()
	for _, st := range perFile {
		total.add(st)
	}
	if err != nil {
		return total, err
	}

	merged := make(carts)
	for _, found := range results {
		maps.Copy(merged, found)
	}
	written, err := imp.write(ctx, merged)
	total.Written = written
	return total, err
}

// write stores every cart using up to imp.workers concurrent writes.
func (imp *importer) write(ctx context.Context, all carts) (int, error) {
	var written atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(imp.workers, 1))
	for key, items := range all {
		g.Go(func() error {
			if err := imp.carts.Write(ctx, key, items); err != nil {
				return errors.Wrapf(err, "write cart %q", key)
			}
			written.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(written.Load()), err
}

func (imp *importer) readFile(ctx context.Context, path string) (carts, stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, stats{}, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, stats{}, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	found, st, err := imp.readStream(ctx, path, r)
	slog.Info("file complete",
		slog.String("file", path),
		slog.Int("imported", st.Imported),
		slog.Int("skipped", st.Skipped),
		slog.Int("invalid_keys", st.InvalidKeys),
	)
	return found, st, err
}

func (imp *importer) readStream(ctx context.Context, name string, r io.Reader) (carts, stats, error) {
	var (
		st    stats
		found = make(carts)
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return found, st, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		st.Lines++
		if st.Lines%progressEvery == 0 {
			slog.Info("import progress", slog.String("file", name), slog.Int("lines", st.Lines))
		}

		rec, err := decodeRecord(line)
		if err != nil {
			st.Skipped++
			slog.Warn("skip malformed line",
				slog.String("file", name),
				slog.Int("line", st.Lines),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !session.ValidKey(rec.Session) {
			st.InvalidKeys++
			slog.Warn("skip unusable session key",
				slog.String("file", name),
				slog.Int("line", st.Lines),
				slog.Int("key_length", len(rec.Session)),
			)
			continue
		}

		items, rep := cart.Normalize(rec.Items)
		st.DroppedItems += rep.DroppedCount()
		found[rec.Session] = cart.LocalItems(items)
		st.Imported++
	}
	if err := scanner.Err(); err != nil {
		return found, st, errors.Wrapf(err, "scan %s", name)
	}
	return found, st, nil
}

// decodeRecord parses one export line. The cart may be embedded JSON or the
// string value stored by the browser.
func decodeRecord(line []byte) (record, error) {
	var (
		rec     record
		hasCart bool
	)
	err := jx.DecodeBytes(line).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "session":
			v, err := d.Str()
			rec.Session = strings.TrimSpace(v)
			return err
		case "cart":
			hasCart = true
			if d.Next() == jx.String {
				s, err := d.Str()
				if err != nil {
					return err
				}
				rec.Items, err = cart.DecodeCartEnvelope([]byte(s))
				return err
			}
			items, err := cart.DecodeEnvelope(d)
			rec.Items = items
			return err
		default:
			return d.Skip()
		}
	})
	switch {
	case err != nil:
		return record{}, errors.Wrap(err, "decode record")
	case rec.Session == "":
		return record{}, errors.New("session is required")
	case !hasCart:
		return record{}, errors.New("cart is required")
	}
	return rec, nil
}
