// Command cart-import loads carts exported from the storefront's browser
// storage into the local cart store, so shoppers keep their carts after the
// move to server-side sessions.
//
// Input files hold one JSON object per line:
//
//	{"session": "<session key>", "cart": [...]}
//
// "cart" may also be the raw localStorage string. Files ending in .gz are
// decompressed on the fly. A session exported more than once keeps its last
// line, and files later on the command line win. Lines whose session key the
// storefront would reject are skipped.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/artesjac-cart/internal/app"
)

func main() {
	var (
		cfg     app.StoreConfig
		workers int
		dryRun  bool
	)

	flag.StringVar(&cfg.Kind, "store", app.StoreFile, "target store: file, redis or postgres")
	flag.StringVar(&cfg.Dir, "store-dir", "data/carts", "directory of the file store")
	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.Redis.URL, "redis-url", "", "Redis URL (or REDIS_URL env)")
	flag.DurationVar(&cfg.Redis.TTL, "redis-ttl", 720*time.Hour, "cart retention in redis")
	flag.IntVar(&workers, "workers", 4, "files imported concurrently")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and normalize without writing")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = os.Getenv("REDIS_URL")
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no input files: pass one or more export files as arguments")
		os.Exit(1)
	}
	if dryRun {
		cfg = app.StoreConfig{Kind: app.StoreMemory}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, files, workers); err != nil {
		slog.Error("cart import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("cart import completed successfully")
}

func run(ctx context.Context, cfg app.StoreConfig, files []string, workers int) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	stores, err := app.OpenStores(ctx, zap.NewNop(), cfg)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer stores.Close()

	imp := &importer{carts: stores.Carts, workers: workers}
	stats, err := imp.importFiles(ctx, files)
	slog.Info("import summary",
		slog.Int("lines", stats.Lines),
		slog.Int("imported", stats.Imported),
		slog.Int("skipped", stats.Skipped),
		slog.Int("invalid_keys", stats.InvalidKeys),
		slog.Int("dropped_items", stats.DroppedItems),
		slog.Int("written", stats.Written),
	)
	return err
}
