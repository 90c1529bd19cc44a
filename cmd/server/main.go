package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/koi-labs/koi-ledger/internal/api"
	"github.com/koi-labs/koi-ledger/internal/config"
	"github.com/koi-labs/koi-ledger/internal/ledger"
	"github.com/koi-labs/koi-ledger/internal/metrics"
	"github.com/koi-labs/koi-ledger/internal/notify"
	"github.com/koi-labs/koi-ledger/internal/relay"
	"github.com/koi-labs/koi-ledger/internal/simulate"
	"github.com/koi-labs/koi-ledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(config.NewLogger(cfg.LogLevel))

	economy, err := config.LoadEconomy(cfg.EconomyFile)
	if err != nil {
		slog.Error("invalid economy", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Ledger ---
	broker := notify.NewBroker()
	l, err := ledger.New(economy.ToLedger(), ledger.WithNotifier(broker))
	if err != nil {
		slog.Error("ledger init failed", "err", err)
		os.Exit(1)
	}
	view := l.Snapshot()
	slog.Info("ledger initialized",
		"wallets", len(view.Wallets),
		"policy", view.Policy,
		"supply", view.Supply.String(),
		"reserve", view.Reserve.String(),
	)

	// --- Sinks ---
	var cleanup []func()
	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	var journal store.Journal
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pj := store.NewPostgresJournal(pool)
		if err := pj.EnsureSchema(ctx); err != nil {
			slog.Error("database schema failed", "err", err)
			os.Exit(1)
		}
		journal = pj
		slog.Info("PostgreSQL journal enabled")
	}

	var publisher store.SnapshotPublisher
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		publisher = store.NewRedisPublisher(rdb, cfg.SnapshotTTL)
		slog.Info("Redis snapshot publisher enabled", "ttl", cfg.SnapshotTTL.String())
	}

	var rel *relay.Relay
	if journal != nil || publisher != nil {
		rel = relay.New(l, journal, publisher)
		sub := broker.Subscribe()
		cleanup = append(cleanup, sub.Close)
		if err := rel.Flush(ctx); err != nil {
			slog.Warn("initial relay flush failed", "err", err)
		}
		go rel.Run(ctx, sub.C())
	} else {
		slog.Warn("no sinks configured, ledger is memory-only")
	}

	// --- WebSocket hub ---
	hub := api.NewHub(l)
	hubSub := broker.Subscribe()
	cleanup = append(cleanup, hubSub.Close)
	go hub.Run(ctx, hubSub.C())

	// --- Activity driver ---
	var driver *simulate.Driver
	if cfg.SimulationEnabled() {
		driver = simulate.New(l, economy.Lottery.Wallet, economy.Simulation.Exclude,
			rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
		if err := driver.Start(cfg.SimSchedule); err != nil {
			slog.Error("invalid SIM_SCHEDULE", "schedule", cfg.SimSchedule, "err", err)
			os.Exit(1)
		}
	}

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
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"koi-ledger"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	// WebSocket push channel. Long-lived, so outside the request timeout.
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		api.NewHandler(l).Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:        cfg.Address(),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("koi-ledger listening", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down koi-ledger...")
	if driver != nil {
		driver.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	cancel()
	if rel != nil {
		if err := rel.Flush(shutdownCtx); err != nil {
			slog.Warn("final relay flush failed", "err", err)
		}
	}
	fmt.Println("koi-ledger stopped")
}
