package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"fare-monitor/fare"
)

const (
	DefaultRetention    = 30 * 24 * time.Hour
	DefaultSweepEvery   = time.Hour
	DefaultStartupDelay = 30 * time.Second
)

type SweepConfig struct {
	Retention time.Duration
	// PurgePastDates também remove cache e conexões cuja data de viagem já passou.
	PurgePastDates bool
	Every          time.Duration
	StartupDelay   time.Duration
}

// Sweeper é a coleta de lixo periódica do banco. Nunca roda no caminho da requisição.
type Sweeper struct {
	store *Store
	cfg   SweepConfig
}

type SweepReport struct {
	CacheEntries int64
	PastCache    int64
	Snapshots    int64
	Connections  int64
	Stations     int64
}

func (r SweepReport) Total() int64 {
	return r.CacheEntries + r.PastCache + r.Snapshots + r.Connections + r.Stations
}

func NewSweeper(store *Store, cfg SweepConfig) *Sweeper {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Every <= 0 {
		cfg.Every = DefaultSweepEvery
	}
	if cfg.StartupDelay < 0 {
		cfg.StartupDelay = 0
	}
	return &Sweeper{store: store, cfg: cfg}
}

// RunOnce executa uma passada completa em uma transação.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	now := s.store.clock.Now()
	cutoff := toMillis(now.Add(-s.cfg.Retention))
	today := now.Format(fare.DateLayout)

	err := s.store.write(ctx, func(tx *sql.Tx) error {
		var err error
		if rep.CacheEntries, err = exec(ctx, tx,
			`DELETE FROM fare_cache WHERE last_fetched_at < ?`, cutoff); err != nil {
			return err
		}
		if rep.Snapshots, err = exec(ctx, tx,
			`DELETE FROM price_snapshots WHERE recorded_at < ?`, cutoff); err != nil {
			return err
		}
		if s.cfg.PurgePastDates {
			if rep.PastCache, err = exec(ctx, tx,
				`DELETE FROM fare_cache WHERE travel_date <> '' AND travel_date < ?`, today); err != nil {
				return err
			}
			n, err := exec(ctx, tx,
				`DELETE FROM price_snapshots WHERE connection_id IN (SELECT id FROM connections WHERE travel_date < ?)`, today)
			if err != nil {
				return err
			}
			rep.Snapshots += n
		}
		// conexões e estações sem referência (inclui as de datas passadas, já sem snapshots)
		if rep.Connections, err = exec(ctx, tx, `
DELETE FROM connections
WHERE NOT EXISTS (SELECT 1 FROM price_snapshots s WHERE s.connection_id = connections.id)`); err != nil {
			return err
		}
		if rep.Stations, err = exec(ctx, tx, `
DELETE FROM stations
WHERE NOT EXISTS (
    SELECT 1 FROM connections c
    WHERE c.origin_station_id = stations.id OR c.destination_station_id = stations.id
)`); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return SweepReport{}, fmt.Errorf("retention sweep: %w", err)
	}
	return rep, nil
}

// Start roda uma passada após StartupDelay e depois a cada Every, até ctx terminar.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		timer := time.NewTimer(s.cfg.StartupDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		s.runLogged(ctx)

		ticker := time.NewTicker(s.cfg.Every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runLogged(ctx)
			}
		}
	}()
}

func (s *Sweeper) runLogged(ctx context.Context) {
	rep, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("sweep: failed: %v", err)
		}
		return
	}
	if rep.Total() > 0 {
		log.Printf("sweep: cache=%d past_cache=%d snapshots=%d connections=%d stations=%d",
			rep.CacheEntries, rep.PastCache, rep.Snapshots, rep.Connections, rep.Stations)
	}
}

func exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
