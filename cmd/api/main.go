package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/app"
	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/events"
	"github.com/noah-isme/toko-cart/internal/health"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/ratelimit"
	"github.com/noah-isme/toko-cart/internal/resilience"
	"github.com/noah-isme/toko-cart/internal/security"
	"github.com/noah-isme/toko-cart/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
		resilience.MustRegisterMetrics(cfg.MetricsNamespace, nil)
	}

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-cart",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	deps, err := app.Open(ctx, cfg, logger, app.Options{ApplicationName: "toko-cart", Metrics: cfg.MetricsEnabled})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Str("storage", cfg.Storage).Msg("open dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	bus := &events.Bus{Notifiers: []events.Notifier{
		events.LogNotifier{Logger: obs.Component(logger, "events")},
		events.MetricsNotifier{},
	}}
	registry := &cart.Registry{
		KV:             deps.KV,
		Key:            cfg.CartStorageKey,
		Logger:         obs.Component(logger, "cart"),
		Events:         bus,
		ClearOnConfirm: cfg.ClearOnConfirm,
	}
	cartHandler := cart.NewHandler(registry)

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitWindow)
	if deps.Redis != nil {
		limiter = ratelimit.RedisLimiter{Client: deps.Redis, Prefix: "cart:rl:"}
	}
	rateLimit := ratelimit.Handler{
		Limiter: limiter,
		Config:  ratelimit.Config{Key: ratelimit.BySessionOrIP, Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	resolver := session.NewResolver(cfg.SessionHeader)
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Scope: sessionScope}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(cfg.MetricsBuckets)
		r.Use(obs.HTTPObs{Metrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)}.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token", common.IdempotencyHeader, resolver.HeaderName},
		ExposedHeaders:   []string{resolver.HeaderName, "X-Request-ID"},
		AllowCredentials: len(cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production", NoStore: true}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{Probes: deps.Probes}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1/cart", func(c chi.Router) {
		c.Use(resolver.Middleware)
		c.Use(obs.RequestLogger{Logger: logger}.Middleware)
		c.Use(security.CSRF{SessionHeader: resolver.HeaderName, SessionCookie: resolver.CookieName}.Middleware)
		c.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		c.Use(rateLimit.Middleware)

		c.Get("/", cartHandler.Get)
		c.Delete("/", cartHandler.Clear)
		c.Post("/items", cartHandler.AddItem)
		c.Post("/items/{name}/adjust", cartHandler.AdjustItem)
		c.Delete("/items/{name}", cartHandler.RemoveItem)
		c.Post("/events", cartHandler.Event)
		c.With(idem.Middleware).Post("/confirm", cartHandler.Confirm)
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweep(sweepCtx, registry, cfg.CartIdleTTL, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

// sweep drops idle cart sessions from memory; their persisted state stays in
// storage and is reloaded on the next request.
func sweep(ctx context.Context, registry *cart.Registry, idle time.Duration, logger zerolog.Logger) {
	interval := idle / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Sweep(idle); n > 0 {
				logger.Debug().Int("evicted", n).Msg("swept idle cart sessions")
			}
		}
	}
}

func sessionScope(r *http.Request) string {
	id, _ := session.FromContext(r.Context())
	return id
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
