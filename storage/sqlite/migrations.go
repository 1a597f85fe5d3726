package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"fare-monitor/fare"
	"fare-monitor/storage/migrate"
)

// LegacyBackupTable guarda a tabela plana de histórico depois da v2.
const LegacyBackupTable = "price_history_backup_v1"

// Steps é a lista ordenada de migrações do banco.
func Steps() []migrate.Step {
	return []migrate.Step{
		{Version: 1, Name: "flat layout", Apply: flatLayout},
		{Version: 2, Name: "normalized history", Apply: normalizedHistory},
	}
}

// v1: uma linha por observação com os ids completos das estações.
func flatLayout(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS fare_cache (
    cache_key TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    travel_date TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    last_fetched_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fare_cache_last_fetched ON fare_cache(last_fetched_at);

CREATE TABLE IF NOT EXISTS price_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    origin_id TEXT NOT NULL,
    destination_id TEXT NOT NULL,
    travel_date TEXT NOT NULL,
    departure TEXT NOT NULL,
    arrival TEXT NOT NULL,
    transfers INTEGER NOT NULL DEFAULT 0,
    age_category TEXT NOT NULL DEFAULT '',
    discount_type TEXT NOT NULL DEFAULT '',
    discount_class TEXT NOT NULL DEFAULT '',
    fare_class TEXT NOT NULL DEFAULT '',
    price REAL NOT NULL,
    recorded_at INTEGER NOT NULL
);`)
	return err
}

// v2: dimensões de estação/conexão + fatos de preço. As linhas antigas são
// transformadas com o mesmo RouteHash da escrita normal e a tabela plana vira backup.
func normalizedHistory(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS stations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ext_id TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS connections (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    route_hash TEXT NOT NULL UNIQUE,
    origin_station_id INTEGER NOT NULL REFERENCES stations(id),
    destination_station_id INTEGER NOT NULL REFERENCES stations(id),
    travel_date TEXT NOT NULL,
    departure TEXT NOT NULL,
    arrival TEXT NOT NULL,
    transfers INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_connections_travel_date ON connections(travel_date);

CREATE TABLE IF NOT EXISTS price_snapshots (
    connection_id INTEGER NOT NULL REFERENCES connections(id) ON DELETE CASCADE,
    age_category TEXT NOT NULL,
    discount_type TEXT NOT NULL,
    discount_class TEXT NOT NULL,
    fare_class TEXT NOT NULL,
    recorded_at INTEGER NOT NULL,
    price REAL NOT NULL,
    PRIMARY KEY (connection_id, age_category, discount_type, discount_class, fare_class, recorded_at)
);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_recorded_at ON price_snapshots(recorded_at);`); err != nil {
		return fmt.Errorf("create normalized tables: %w", err)
	}

	ok, err := migrate.TableExists(ctx, tx, "price_history")
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var legacyRows int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM price_history`).Scan(&legacyRows); err != nil {
		return fmt.Errorf("count legacy history: %w", err)
	}
	// banco novo: a tabela plana está vazia e não há o que preservar
	if legacyRows == 0 {
		_, err := tx.ExecContext(ctx, `DROP TABLE price_history`)
		return err
	}
	if err := copyLegacyHistory(ctx, tx); err != nil {
		return err
	}
	_, err = migrate.RenameToBackup(ctx, tx, "price_history", LegacyBackupTable)
	return err
}

type legacyRow struct {
	conn       fare.ConnectionIdentity
	fp         fare.FareParams
	price      float64
	recordedAt int64
}

func copyLegacyHistory(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, `
SELECT origin_id, destination_id, travel_date, departure, arrival, transfers,
       age_category, discount_type, discount_class, fare_class, price, recorded_at
FROM price_history ORDER BY id`)
	if err != nil {
		return fmt.Errorf("read legacy history: %w", err)
	}
	// lê tudo antes de escrever: o cursor aberto e os inserts dividem a mesma conexão
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(
			&r.conn.Origin, &r.conn.Destination, &r.conn.Date, &r.conn.Departure, &r.conn.Arrival, &r.conn.Transfers,
			&r.fp.AgeCategory, &r.fp.DiscountType, &r.fp.DiscountClass, &r.fp.FareClass, &r.price, &r.recordedAt,
		); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan legacy row: %w", err)
		}
		legacy = append(legacy, r)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// linhas que colidem após normalizar o id (mesma conexão, tarifa e instante)
	// viram um snapshot só; as demais continuam na tabela de backup
	var copied, collapsed, skipped int
	for _, r := range legacy {
		if fare.NormalizeStationID(strings.TrimSpace(r.conn.Origin)) == "" ||
			fare.NormalizeStationID(strings.TrimSpace(r.conn.Destination)) == "" {
			skipped++
			continue
		}
		connID, err := ensureConnection(ctx, tx, r.conn)
		if err != nil {
			return err
		}
		inserted, err := insertSnapshot(ctx, tx, connID, r.fp, r.price, r.recordedAt)
		if err != nil {
			return err
		}
		if inserted {
			copied++
		} else {
			collapsed++
		}
	}
	log.Printf("storage: legacy history migrated rows=%d snapshots=%d collapsed=%d skipped_no_station=%d backup=%s",
		len(legacy), copied, collapsed, skipped, LegacyBackupTable)
	return nil
}
