package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fare-monitor/storage/migrate"
)

func TestMigration_LegacyRowsAreNormalized(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/legacy.db"

	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := migrate.New(db, Steps()[:1]).ApplyPending(ctx); err != nil {
		t.Fatalf("apply v1: %v", err)
	}
	// 10 observações de 2 conexões; o token @p= varia entre as linhas
	for i := 0; i < 10; i++ {
		dep, arr := "2026-11-02T06:10:00", "2026-11-02T10:21:00"
		if i%2 == 1 {
			dep, arr = "2026-11-02T08:10:00", "2026-11-02T12:40:00"
		}
		if _, err := db.Exec(`
INSERT INTO price_history (origin_id, destination_id, travel_date, departure, arrival, transfers,
    age_category, discount_type, discount_class, fare_class, price, recorded_at)
VALUES (?, ?, '2026-11-02', ?, ?, 0, 'ERWACHSENER', 'KEINE_ERMAESSIGUNG', 'KLASSENLOS', 'KLASSE_2', ?, ?)`,
			fmt.Sprintf("A=1@L=8000105@p=17590000%02d@", i), "A=1@L=8011160@", dep, arr, 20.0+float64(i), int64(1000*(i+1)),
		); err != nil {
			t.Fatalf("seed legacy row %d: %v", i, err)
		}
	}
	_ = db.Close()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open with migration: %v", err)
	}
	defer s.Close()

	if n := countRows(t, s, "connections"); n != 2 {
		t.Fatalf("expected 2 connections, got %d", n)
	}
	if n := countRows(t, s, "price_snapshots"); n != 10 {
		t.Fatalf("expected 10 snapshots, got %d", n)
	}
	if n := countRows(t, s, LegacyBackupTable); n != 10 {
		t.Fatalf("expected legacy rows preserved in backup, got %d", n)
	}
	if ok, _ := migrate.TableExists(ctx, s.DB(), "price_history"); ok {
		t.Fatalf("expected flat table to be renamed")
	}

	// escrita ao vivo cai na mesma linha de conexão migrada
	conn := connAt("2026-11-02T06:10:00", "2026-11-02T10:21:00")
	points, err := s.History().ConnectionHistoryFor(ctx, conn, adult2nd)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("expected 5 migrated points for the early connection, got %d", len(points))
	}
	if _, err := s.History().RecordSnapshot(ctx, conn, adult2nd, 19, points[4].RecordedAt.Add(time.Second)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if n := countRows(t, s, "connections"); n != 2 {
		t.Fatalf("expected live write to reuse migrated connection, got %d connections", n)
	}
}

func TestMigration_CollidingAndStationlessLegacyRows(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/legacy.db"

	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := migrate.New(db, Steps()[:1]).ApplyPending(ctx); err != nil {
		t.Fatalf("apply v1: %v", err)
	}
	rows := []struct {
		origin string
		price  float64
	}{
		{"A=1@L=8000105@p=1759000001@", 20},
		{"A=1@L=8000105@p=1759000002@", 21}, // mesma conexão e instante depois de normalizar
		{"", 22},
	}
	for i, r := range rows {
		if _, err := db.Exec(`
INSERT INTO price_history (origin_id, destination_id, travel_date, departure, arrival, transfers,
    age_category, discount_type, discount_class, fare_class, price, recorded_at)
VALUES (?, 'A=1@L=8011160@', '2026-11-02', '2026-11-02T06:10:00', '2026-11-02T10:21:00', 0,
    'ERWACHSENER', 'KEINE_ERMAESSIGUNG', 'KLASSENLOS', 'KLASSE_2', ?, 5000)`, r.origin, r.price,
		); err != nil {
			t.Fatalf("seed legacy row %d: %v", i, err)
		}
	}
	_ = db.Close()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("a row without station must not block the migration: %v", err)
	}
	defer s.Close()

	if n := countRows(t, s, "price_snapshots"); n != 1 {
		t.Fatalf("expected colliding rows to collapse into 1 snapshot, got %d", n)
	}
	if n := countRows(t, s, LegacyBackupTable); n != 3 {
		t.Fatalf("expected every legacy row kept in backup, got %d", n)
	}
}

func TestMigration_FreshStoreHasNoLegacyTables(t *testing.T) {
	s := openTestStore(t, newFakeClock())
	ctx := context.Background()
	for _, table := range []string{"price_history", LegacyBackupTable} {
		ok, err := migrate.TableExists(ctx, s.DB(), table)
		if err != nil {
			t.Fatalf("table exists: %v", err)
		}
		if ok {
			t.Fatalf("expected fresh store without %s", table)
		}
	}
}
