package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FreshnessTTL != time.Hour {
		t.Fatalf("expected 60m freshness, got %s", cfg.FreshnessTTL)
	}
	if cfg.RetentionWindow != 30*24*time.Hour || !cfg.PurgePastDates {
		t.Fatalf("unexpected retention defaults: %+v", cfg)
	}
	if cfg.Queue.RPS != 1 || cfg.Queue.Burst != 5 || cfg.Queue.Concurrency != 2 || cfg.Queue.MaxAttempts != 4 {
		t.Fatalf("unexpected queue defaults: %+v", cfg.Queue)
	}
	if cfg.Stats.RedisEnabled || cfg.Stats.Prefix != "farequeue:stats" {
		t.Fatalf("unexpected stats defaults: %+v", cfg.Stats)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"DB_PATH":              "/tmp/x.db",
		"QUEUE_RPS":            "0.5",
		"QUEUE_BACKOFF_BASE":   "250ms",
		"PURGE_PAST_DATES":     "false",
		"STATS_REDIS_ENABLED":  "true",
		"STATS_REDIS_ADDR":     "localhost:6379",
		"QUEUE_BACKOFF_JITTER": "0",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/x.db" || cfg.Queue.RPS != 0.5 || cfg.Queue.BackoffBase != 250*time.Millisecond {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.PurgePastDates || !cfg.Stats.RedisEnabled || cfg.Queue.Jitter != 0 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadFrom_ValidationErrors(t *testing.T) {
	_, err := LoadFrom(map[string]string{
		"QUEUE_RPS":           "0",
		"QUEUE_CONCURRENCY":   "0",
		"STATS_REDIS_ENABLED": "true",
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"QUEUE_RPS", "QUEUE_CONCURRENCY", "STATS_REDIS_ADDR"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in error, got %v", want, err)
		}
	}
}

func TestLoadFrom_BadDuration(t *testing.T) {
	if _, err := LoadFrom(map[string]string{"FRESHNESS_TTL": "soon"}); err == nil {
		t.Fatalf("expected parse error")
	}
}
