package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fare-monitor/config"
	"fare-monitor/lookup"
	"fare-monitor/queue"
	"fare-monitor/queue/application"
	"fare-monitor/queue/infra"
	"fare-monitor/storage/sqlite"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// app agrupa os serviços de longa duração; Lookup é o ponto de entrada da
// camada de apresentação.
type app struct {
	Store  *sqlite.Store
	Queue  *queue.Queue
	Lookup *lookup.Service

	closers []func()
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("dotenv error: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := build(ctx, cfg)
	if err != nil {
		log.Fatalf("startup error: %v", err)
	}
	defer a.close()

	sweeper := sqlite.NewSweeper(a.Store, sqlite.SweepConfig{
		Retention:      cfg.RetentionWindow,
		PurgePastDates: cfg.PurgePastDates,
		Every:          cfg.SweepEvery,
		StartupDelay:   cfg.SweepStartupDelay,
	})
	sweeper.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := a.Store.DB().PingContext(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/debug/queue", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a.Queue.Snapshot())
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("farecore listening on %s db=%s", cfg.ListenAddr, cfg.DBPath)
	log.Printf("queue: rps=%.3f burst=%d concurrency=%d maxAttempts=%d backoff=%s..%s jitter=%.2f",
		cfg.Queue.RPS, cfg.Queue.Burst, cfg.Queue.Concurrency, cfg.Queue.MaxAttempts,
		cfg.Queue.BackoffBase, cfg.Queue.BackoffMax, cfg.Queue.Jitter)
	log.Printf("cache: freshness=%s retention=%s purgePast=%v sweepEvery=%s",
		cfg.FreshnessTTL, cfg.RetentionWindow, cfg.PurgePastDates, cfg.SweepEvery)
	log.Printf("stats-redis: enabled=%v addr=%q prefix=%q ttl=%s",
		cfg.Stats.RedisEnabled, cfg.Stats.RedisAddr, cfg.Stats.Prefix, cfg.Stats.TTL)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// build abre e migra o banco antes de qualquer outra coisa: falha aqui aborta o processo.
func build(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	store, err := sqlite.Open(ctx, cfg.DBPath, sqlite.WithFreshnessTTL(cfg.FreshnessTTL))
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, func() { _ = store.Close() })

	stats := infra.FanOut{infra.NewPromStatsStore(prometheus.DefaultRegisterer)}
	if cfg.Stats.RedisEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Stats.RedisAddr,
			Password: cfg.Stats.RedisPassword,
			DB:       cfg.Stats.RedisDB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			a.close()
			return nil, err
		}
		stats = append(stats, infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.Stats.Prefix),
			infra.WithStatsTTL(cfg.Stats.TTL),
		))
	}

	sessions := infra.NewSessions(infra.WithSessionTTL(cfg.Queue.SessionTTL))
	sessions.StartJanitor(ctx)

	q := queue.New(queue.Options{
		Limiter:  infra.NewBucket(cfg.Queue.RPS, cfg.Queue.Burst),
		Slots:    infra.NewChanPool(cfg.Queue.Concurrency),
		Sessions: sessions,
		Stats:    stats,
		Retry: application.RetryPolicy{
			MaxAttempts: cfg.Queue.MaxAttempts,
			Base:        cfg.Queue.BackoffBase,
			Max:         cfg.Queue.BackoffMax,
			Jitter:      cfg.Queue.Jitter,
		},
		Pending: cfg.Queue.Pending,
	})
	a.Queue = q
	a.closers = append(a.closers, q.Close)
	registerQueueGauges(q)

	a.Lookup = lookup.New(q, store.Cache(), store.History())
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func registerQueueGauges(q *queue.Queue) {
	gauge := func(name, help string, read func(queue.Counters) int64) {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(read(q.Snapshot()))
		})
	}
	gauge("farequeue_pending", "Requests waiting for admission", func(c queue.Counters) int64 { return c.Queued })
	gauge("farequeue_backing_off", "Requests waiting out a retry backoff", func(c queue.Counters) int64 { return c.BackingOff })
	gauge("farequeue_active", "Requests currently in flight upstream", func(c queue.Counters) int64 { return c.Active })
}
