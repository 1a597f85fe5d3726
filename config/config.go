// Package config carrega a configuração do processo a partir do ambiente.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":9090"`
	DBPath     string `env:"DB_PATH"     envDefault:"data/fares.db"`

	FreshnessTTL      time.Duration `env:"FRESHNESS_TTL"       envDefault:"60m"`
	RetentionWindow   time.Duration `env:"RETENTION_WINDOW"    envDefault:"720h"`
	PurgePastDates    bool          `env:"PURGE_PAST_DATES"    envDefault:"true"`
	SweepEvery        time.Duration `env:"SWEEP_EVERY"         envDefault:"1h"`
	SweepStartupDelay time.Duration `env:"SWEEP_STARTUP_DELAY" envDefault:"30s"`

	Queue QueueConfig
	Stats StatsConfig
}

type QueueConfig struct {
	// RPS é a taxa de reposição do token bucket; Burst a capacidade.
	RPS         float64       `env:"QUEUE_RPS"            envDefault:"1"`
	Burst       int           `env:"QUEUE_BURST"          envDefault:"5"`
	Concurrency int           `env:"QUEUE_CONCURRENCY"    envDefault:"2"`
	MaxAttempts int           `env:"QUEUE_MAX_ATTEMPTS"   envDefault:"4"`
	BackoffBase time.Duration `env:"QUEUE_BACKOFF_BASE"   envDefault:"1s"`
	BackoffMax  time.Duration `env:"QUEUE_BACKOFF_MAX"    envDefault:"30s"`
	Jitter      float64       `env:"QUEUE_BACKOFF_JITTER" envDefault:"0.5"`
	Pending     int           `env:"QUEUE_PENDING"        envDefault:"1024"`
	SessionTTL  time.Duration `env:"SESSION_TTL"          envDefault:"30m"`
}

// StatsConfig liga o espelhamento das estatísticas da fila no Redis.
type StatsConfig struct {
	RedisEnabled  bool          `env:"STATS_REDIS_ENABLED"  envDefault:"false"`
	RedisAddr     string        `env:"STATS_REDIS_ADDR"`
	RedisPassword string        `env:"STATS_REDIS_PASSWORD"`
	RedisDB       int           `env:"STATS_REDIS_DB"       envDefault:"0"`
	Prefix        string        `env:"STATS_REDIS_PREFIX"   envDefault:"farequeue:stats"`
	TTL           time.Duration `env:"STATS_REDIS_TTL"      envDefault:"24h"`
}

// Load lê do ambiente do processo.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom lê de um mapa explícito (testes, ferramentas).
func LoadFrom(vars map[string]string) (Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("DB_PATH is required"))
	}
	if c.FreshnessTTL <= 0 {
		errs = append(errs, errors.New("FRESHNESS_TTL must be > 0"))
	}
	if c.RetentionWindow < c.FreshnessTTL {
		errs = append(errs, errors.New("RETENTION_WINDOW must be >= FRESHNESS_TTL"))
	}
	if c.SweepEvery <= 0 {
		errs = append(errs, errors.New("SWEEP_EVERY must be > 0"))
	}
	if c.Queue.RPS <= 0 {
		errs = append(errs, errors.New("QUEUE_RPS must be > 0"))
	}
	if c.Queue.Burst <= 0 {
		errs = append(errs, errors.New("QUEUE_BURST must be > 0"))
	}
	if c.Queue.Concurrency <= 0 {
		errs = append(errs, errors.New("QUEUE_CONCURRENCY must be > 0"))
	}
	if c.Queue.MaxAttempts <= 0 {
		errs = append(errs, errors.New("QUEUE_MAX_ATTEMPTS must be > 0"))
	}
	if c.Queue.BackoffBase <= 0 || c.Queue.BackoffMax < c.Queue.BackoffBase {
		errs = append(errs, errors.New("QUEUE_BACKOFF_BASE must be > 0 and <= QUEUE_BACKOFF_MAX"))
	}
	if c.Queue.Jitter < 0 || c.Queue.Jitter > 1 {
		errs = append(errs, errors.New("QUEUE_BACKOFF_JITTER must be within [0, 1]"))
	}
	if c.Stats.RedisEnabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		errs = append(errs, errors.New("STATS_REDIS_ADDR is required when STATS_REDIS_ENABLED=true"))
	}
	return errors.Join(errs...)
}
