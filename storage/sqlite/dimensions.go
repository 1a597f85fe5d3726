package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"fare-monitor/fare"
)

// As funções abaixo são usadas tanto pela escrita normal quanto pela migração v2,
// para que linhas antigas e novas caiam na mesma linha de dimensão.

func ensureStation(ctx context.Context, tx *sql.Tx, rawID string) (int64, error) {
	extID := fare.NormalizeStationID(rawID)
	if extID == "" {
		return 0, fmt.Errorf("station id is required")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stations (ext_id) VALUES (?) ON CONFLICT(ext_id) DO NOTHING`, extID,
	); err != nil {
		return 0, fmt.Errorf("insert station: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM stations WHERE ext_id = ?`, extID).Scan(&id); err != nil {
		return 0, fmt.Errorf("select station: %w", err)
	}
	return id, nil
}

func ensureConnection(ctx context.Context, tx *sql.Tx, c fare.ConnectionIdentity) (int64, error) {
	origin, err := ensureStation(ctx, tx, c.Origin)
	if err != nil {
		return 0, err
	}
	dest, err := ensureStation(ctx, tx, c.Destination)
	if err != nil {
		return 0, err
	}
	hash := c.RouteHash()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO connections (route_hash, origin_station_id, destination_station_id, travel_date, departure, arrival, transfers)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(route_hash) DO NOTHING`,
		hash, origin, dest, c.Date, c.Departure, c.Arrival, c.Transfers,
	); err != nil {
		return 0, fmt.Errorf("insert connection: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM connections WHERE route_hash = ?`, hash).Scan(&id); err != nil {
		return 0, fmt.Errorf("select connection: %w", err)
	}
	return id, nil
}

// insertSnapshot é idempotente para a mesma (conexão, tarifa, recorded_at).
func insertSnapshot(ctx context.Context, tx *sql.Tx, connID int64, fp fare.FareParams, price float64, recordedAt int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO price_snapshots
    (connection_id, age_category, discount_type, discount_class, fare_class, recorded_at, price)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		connID, fp.AgeCategory, fp.DiscountType, fp.DiscountClass, fp.FareClass, recordedAt, price,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
