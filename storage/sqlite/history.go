package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fare-monitor/fare"
)

// HistoryStore é a série temporal de preços por (conexão, tarifa). Snapshots
// só são inseridos, nunca atualizados.
type HistoryStore struct {
	store *Store
}

// RecordSnapshot cria as dimensões se preciso e anexa uma observação. Repetir a
// mesma tupla (conexão, tarifa, recordedAt) não insere nada; o retorno indica se
// uma linha nova foi criada.
func (h *HistoryStore) RecordSnapshot(ctx context.Context, conn fare.ConnectionIdentity, fp fare.FareParams, price float64, recordedAt time.Time) (bool, error) {
	if recordedAt.IsZero() {
		recordedAt = h.store.clock.Now()
	}
	var inserted bool
	err := h.store.write(ctx, func(tx *sql.Tx) error {
		id, err := ensureConnection(ctx, tx, conn)
		if err != nil {
			return err
		}
		inserted, err = insertSnapshot(ctx, tx, id, fp, price, toMillis(recordedAt))
		return err
	})
	return inserted, err
}

func (h *HistoryStore) recordDays(ctx context.Context, tx *sql.Tx, q fare.Query, days fare.Days, recordedAt int64) error {
	fp := q.FareParams()
	for date, day := range days {
		for _, iv := range day.Intervals {
			if iv.Price <= 0 || iv.Departure == "" || iv.Arrival == "" {
				continue
			}
			conn := q.Connection(iv)
			conn.Date = date
			id, err := ensureConnection(ctx, tx, conn)
			if err != nil {
				return err
			}
			if _, err := insertSnapshot(ctx, tx, id, fp, iv.Price, recordedAt); err != nil {
				return err
			}
		}
	}
	return nil
}

// LookupConnectionID devolve o id substituto da conexão; ok=false se ela nunca foi vista.
func (h *HistoryStore) LookupConnectionID(ctx context.Context, conn fare.ConnectionIdentity) (int64, bool, error) {
	var id int64
	err := h.store.db.QueryRowContext(ctx,
		`SELECT id FROM connections WHERE route_hash = ?`, conn.RouteHash(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup connection: %w", err)
	}
	return id, true, nil
}

// DayHistory devolve, por instante de observação, o menor preço entre as
// conexões candidatas, em ordem crescente de tempo. Sem candidatas, devolve vazio.
func (h *HistoryStore) DayHistory(ctx context.Context, fp fare.FareParams, candidates []fare.ConnectionIdentity) ([]fare.PricePoint, error) {
	if len(candidates) == 0 {
		return []fare.PricePoint{}, nil
	}
	seen := make(map[string]bool, len(candidates))
	args := make([]any, 0, len(candidates)+4)
	args = append(args, fp.AgeCategory, fp.DiscountType, fp.DiscountClass, fp.FareClass)
	for _, c := range candidates {
		hash := c.RouteHash()
		if seen[hash] {
			continue
		}
		seen[hash] = true
		args = append(args, hash)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(seen)), ",")

	return h.points(ctx, `
SELECT s.recorded_at, MIN(s.price)
FROM price_snapshots s
JOIN connections c ON c.id = s.connection_id
WHERE s.age_category = ? AND s.discount_type = ? AND s.discount_class = ? AND s.fare_class = ?
  AND c.route_hash IN (`+placeholders+`)
GROUP BY s.recorded_at
ORDER BY s.recorded_at ASC`, args...)
}

// ConnectionHistory é a série completa de uma conexão + tarifa, crescente no tempo.
func (h *HistoryStore) ConnectionHistory(ctx context.Context, connectionID int64, fp fare.FareParams) ([]fare.PricePoint, error) {
	return h.points(ctx, `
SELECT recorded_at, price
FROM price_snapshots
WHERE connection_id = ? AND age_category = ? AND discount_type = ? AND discount_class = ? AND fare_class = ?
ORDER BY recorded_at ASC`,
		connectionID, fp.AgeCategory, fp.DiscountType, fp.DiscountClass, fp.FareClass)
}

// ConnectionHistoryFor resolve a identidade e devolve a série; conexão desconhecida dá vazio.
func (h *HistoryStore) ConnectionHistoryFor(ctx context.Context, conn fare.ConnectionIdentity, fp fare.FareParams) ([]fare.PricePoint, error) {
	id, ok, err := h.LookupConnectionID(ctx, conn)
	if err != nil || !ok {
		return []fare.PricePoint{}, err
	}
	return h.ConnectionHistory(ctx, id, fp)
}

func (h *HistoryStore) points(ctx context.Context, query string, args ...any) ([]fare.PricePoint, error) {
	rows, err := h.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	out := []fare.PricePoint{}
	for rows.Next() {
		var (
			at    int64
			price float64
		)
		if err := rows.Scan(&at, &price); err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		out = append(out, fare.PricePoint{Price: price, RecordedAt: fromMillis(at)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history: %w", err)
	}
	return out, nil
}
