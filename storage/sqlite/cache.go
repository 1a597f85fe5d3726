package sqlite

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"fare-monitor/fare"
	"fare-monitor/faults"
)

// CacheStore guarda, por chave canônica, o conjunto completo (sem filtro) de
// dias de tarifa de uma consulta, comprimido em gzip.
type CacheStore struct {
	store   *Store
	history *HistoryStore
}

// Entry é o resultado de Get. Found=false indica ausência; com Found=true os
// dados são sempre devolvidos, mesmo quando NeedsRefresh.
type Entry struct {
	Days         fare.Days
	Found        bool
	NeedsRefresh bool
	RecordedAt   time.Time
	CreatedAt    time.Time
}

// PutMeta descreve a consulta de origem dos dados: de onde saem a data de viagem,
// os parâmetros de tarifa e a identidade de cada conexão.
type PutMeta struct {
	Query      fare.Query
	RecordedAt time.Time
}

func (c *CacheStore) Key(q fare.Query) string { return q.Key() }

func (c *CacheStore) Get(ctx context.Context, key string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	var (
		blob                 []byte
		created, lastFetched int64
	)
	err := c.store.db.QueryRowContext(ctx,
		`SELECT data, created_at, last_fetched_at FROM fare_cache WHERE cache_key = ?`, key,
	).Scan(&blob, &created, &lastFetched)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, nil
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get cache entry: %w", err)
	}

	days, err := decodeDays(blob)
	if err != nil {
		return Entry{}, err
	}
	recorded := fromMillis(lastFetched)
	return Entry{
		Days:         days,
		Found:        true,
		NeedsRefresh: c.store.clock.Now().Sub(recorded) > c.store.freshness,
		RecordedAt:   recorded,
		CreatedAt:    fromMillis(created),
	}, nil
}

// Put substitui a entrada da chave e grava um snapshot de preço por intervalo,
// tudo na mesma transação.
func (c *CacheStore) Put(ctx context.Context, key string, days fare.Days, meta PutMeta) error {
	if key == "" {
		return fmt.Errorf("cache key is required")
	}
	blob, err := encodeDays(days)
	if err != nil {
		return err
	}
	recordedAt := meta.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = c.store.clock.Now()
	}
	now := toMillis(recordedAt)
	q := meta.Query.Normalize()

	return c.store.write(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO fare_cache (cache_key, data, travel_date, created_at, last_fetched_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(cache_key) DO UPDATE SET
    data = excluded.data,
    travel_date = excluded.travel_date,
    last_fetched_at = excluded.last_fetched_at`,
			key, blob, q.Date, now, now,
		); err != nil {
			return fmt.Errorf("put cache entry: %w", err)
		}
		if q.OriginID == "" || q.DestinationID == "" {
			return nil
		}
		return c.history.recordDays(ctx, tx, q, days, now)
	})
}

func encodeDays(days fare.Days) ([]byte, error) {
	raw, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress cache entry: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress cache entry: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeDays: blob corrompido é erro de dados, nunca um miss silencioso.
func decodeDays(blob []byte) (fare.Days, error) {
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, faults.Decode("cache blob", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, faults.Decode("cache blob", err)
	}
	var days fare.Days
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, faults.Decode("cache blob", err)
	}
	return days, nil
}
