package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/option-engine/internal/budget"
	"github.com/atmx/option-engine/internal/config"
	"github.com/atmx/option-engine/internal/events"
	"github.com/atmx/option-engine/internal/metrics"
	"github.com/atmx/option-engine/internal/montecarlo"
	"github.com/atmx/option-engine/internal/pricing"
	"github.com/atmx/option-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	configFile := flag.String("config", "", "optional config file (yaml, json, toml)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.RedisTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.RedisTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (runs will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Event publisher ---
	var pub events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:    cfg.KafkaBrokers,
			Topic:      cfg.KafkaTopic,
			MaxRetries: 3,
		})
		if err != nil {
			slog.Error("kafka publisher failed", "err", err)
			os.Exit(1)
		}
		pub = kp
	} else {
		slog.Warn("KAFKA_BROKERS not set, run events will not be published")
	}
	cleanup = append(cleanup, func() {
		if err := pub.Close(); err != nil {
			slog.Error("publisher close error", "err", err)
		}
	})

	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Sample budget ---
	limiter := budget.NewSampleLimiter(cfg.Pricing.MaxSamples, cfg.Pricing.MaxInFlight)

	// --- WebSocket hub ---
	wsHub := pricing.NewWSHub()
	go wsHub.Run(ctx)

	// --- Pricing service ---
	pricingSvc := pricing.NewService(pricing.Options{
		Store:   st,
		Limiter: limiter,
		Estimator: &montecarlo.Estimator{
			Workers:   cfg.Pricing.Workers,
			BlockSize: cfg.Pricing.BlockSize,
		},
		Publisher:      pub,
		Hub:            wsHub,
		DefaultSamples: cfg.Pricing.DefaultSamples,
	})

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"option-engine","samples_in_flight":%d}`, limiter.InFlight())
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for completed runs. Registered outside the
		// timeout group so long-lived connections are not cut.
		r.Get("/ws", wsHub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.RequestTimeout))

			// Pricing.
			r.Post("/price", pricingSvc.Price)
			r.Post("/compare", pricingSvc.Compare)
			r.Get("/shift", pricingSvc.Shift)
			r.Get("/reference", pricingSvc.Reference)

			// Run history.
			r.Get("/runs", pricingSvc.ListRuns)
			r.Get("/runs/{runID}", pricingSvc.GetRun)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("option-engine listening",
			"port", cfg.Port,
			"workers", cfg.Pricing.Workers,
			"block_size", cfg.Pricing.BlockSize,
			"max_samples", cfg.Pricing.MaxSamples,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down option-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	cancel()
	fmt.Println("option-engine stopped")
}
