// Package app wires the cart service together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/xenking/artesjac-cart/internal/handler"
	"github.com/xenking/artesjac-cart/internal/remote"
	"github.com/xenking/artesjac-cart/internal/session"
	"github.com/xenking/artesjac-cart/internal/storage"
	"github.com/xenking/artesjac-cart/pkg/health"
	"github.com/xenking/artesjac-cart/pkg/httpmiddleware"
)

// errBreakerOpen is reported by the advisory remote API check.
var errBreakerOpen = errors.New("circuit breaker open, carts served from local fallback")

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("remote", cfg.Remote.BaseURL),
		zap.String("store", cfg.Store.Kind),
	)

	stores, err := OpenStores(ctx, lg, cfg.Store)
	if err != nil {
		return err
	}
	defer stores.Close()

	srv, err := newServer(ctx, lg, m, cfg, stores)
	if err != nil {
		return err
	}
	srv.health.Start(ctx, 10*time.Second)
	srv.health.SetReady(true)
	go srv.registry.Run(ctx)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Remote.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, flush pending
	// cart syncs, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := srv.registry.Wait(shutdownCtx); err != nil {
			lg.Warn("Pending cart syncs abandoned", zap.Error(err))
		}
		srv.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// server is the assembled HTTP surface. Background loops are started by Run.
type server struct {
	handler  http.Handler
	registry *handler.Registry
	health   *health.Health
}

func newServer(
	ctx context.Context,
	lg *zap.Logger,
	tel httpmiddleware.Telemetry,
	cfg *Config,
	stores *Stores,
) (*server, error) {
	client, err := remote.New(cfg.Remote.BaseURL,
		remote.WithTimeout(cfg.Remote.Timeout),
		remote.WithBreaker(remote.BreakerConfig{
			MaxFailures:      cfg.Remote.Breaker.MaxFailures,
			OpenTimeout:      cfg.Remote.Breaker.OpenTimeout,
			HalfOpenRequests: cfg.Remote.Breaker.HalfOpenRequests,
		}),
		remote.WithLogger(lg.Named("remote")),
		remote.WithTracerProvider(tel.TracerProvider()),
		remote.WithMeterProvider(tel.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create remote client")
	}

	metrics, err := session.NewMetrics(tel.MeterProvider())
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}

	// Health check service.
	healthSvc := health.New()
	stores.RegisterChecks(healthSvc)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddAdvisoryCheck("remote-api", time.Second, func(context.Context) error {
		if client.BreakerState() == gobreaker.StateOpen {
			return errBreakerOpen
		}
		return nil
	})

	registry := handler.NewRegistry(newSessionFactory(lg, client, stores, metrics, cfg), cfg.Sessions)
	h := handler.New(handler.Config{
		Pricing:      cfg.Pricing,
		SecureCookie: cfg.SecureCookie,
	}, registry)

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Mount(router)

	return &server{
		registry: registry,
		health:   healthSvc,
		handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins: cfg.CORS.Origins,
				AllowHeaders: []string{
					"Content-Type", "Authorization",
					httpmiddleware.SessionHeader, httpmiddleware.RequestIDHeader,
				},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("artesjac-cart", tel),
			httpmiddleware.LogRequests(),
		),
	}, nil
}

// newSessionFactory builds sessions that talk to the API as the shopper and
// fall back to the configured local store.
func newSessionFactory(
	lg *zap.Logger,
	client *remote.Client,
	stores *Stores,
	metrics *session.Metrics,
	cfg *Config,
) handler.Factory {
	return func(key, token string) *session.Session {
		return session.New(key, client.WithToken(token), storage.Bind(stores.Carts, key),
			session.WithPricing(cfg.Pricing),
			session.WithOrders(stores.Orders),
			session.WithMetrics(metrics),
			session.WithSyncTimeout(cfg.Sync.Timeout),
			session.WithNotifier(func(n session.Notice) {
				lg.Info("Cart degraded to local fallback",
					zap.String("session", key),
					zap.String("kind", string(n.Kind)),
					zap.String("op", n.Op),
					zap.Error(n.Err),
				)
			}),
		)
	}
}
