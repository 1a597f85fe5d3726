package sqlite

import (
	"context"
	"testing"
	"time"

	"fare-monitor/fare"
)

func TestSweep_DeletesOnlyExpiredCacheEntry(t *testing.T) {
	clk := newFakeClock()
	s := openTestStore(t, clk)
	c := s.Cache()
	ctx := context.Background()
	days := fare.Days{"2027-01-10": {Info: "no intervals found"}}

	old := fare.Query{Date: "2027-01-10", AgeCategory: "ERWACHSENER"}
	fresh := fare.Query{Date: "2027-01-10", AgeCategory: "KIND"}
	if err := c.Put(ctx, old.Key(), days, PutMeta{Query: old, RecordedAt: clk.Now().Add(-31 * 24 * time.Hour)}); err != nil {
		t.Fatalf("put old: %v", err)
	}
	if err := c.Put(ctx, fresh.Key(), days, PutMeta{Query: fresh}); err != nil {
		t.Fatalf("put fresh: %v", err)
	}

	rep, err := NewSweeper(s, SweepConfig{Retention: 30 * 24 * time.Hour}).RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.CacheEntries != 1 {
		t.Fatalf("expected 1 expired cache entry, got %+v", rep)
	}
	if e, _ := c.Get(ctx, old.Key()); e.Found {
		t.Fatalf("expected expired entry to be gone")
	}
	if e, _ := c.Get(ctx, fresh.Key()); !e.Found {
		t.Fatalf("expected fresh entry to survive")
	}
}

func TestSweep_RemovesOldSnapshotsAndOrphans(t *testing.T) {
	clk := newFakeClock()
	s := openTestStore(t, clk)
	h := s.History()
	ctx := context.Background()

	stale := fare.ConnectionIdentity{Origin: "A=1@L=1@", Destination: "A=1@L=2@", Date: "2026-12-01", Departure: "2026-12-01T06:00:00", Arrival: "2026-12-01T08:00:00"}
	kept := fare.ConnectionIdentity{Origin: "A=1@L=1@", Destination: "A=1@L=3@", Date: "2026-12-01", Departure: "2026-12-01T09:00:00", Arrival: "2026-12-01T11:00:00"}
	if _, err := h.RecordSnapshot(ctx, stale, adult2nd, 10, clk.Now().Add(-40*24*time.Hour)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := h.RecordSnapshot(ctx, kept, adult2nd, 12, clk.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}

	rep, err := NewSweeper(s, SweepConfig{Retention: 30 * 24 * time.Hour}).RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.Snapshots != 1 || rep.Connections != 1 || rep.Stations != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if n := countRows(t, s, "stations"); n != 2 {
		t.Fatalf("expected shared origin station to survive, got %d stations", n)
	}
}

func TestSweep_PurgesPastTravelDates(t *testing.T) {
	clk := newFakeClock()
	s := openTestStore(t, clk)
	ctx := context.Background()

	past := fare.Query{OriginID: "A=1@L=1@", DestinationID: "A=1@L=2@", Date: "2026-09-20"}
	future := fare.Query{OriginID: "A=1@L=1@", DestinationID: "A=1@L=2@", Date: "2026-10-20"}
	iv := func(date string) fare.Days {
		return fare.Days{date: {Intervals: []fare.Interval{{Price: 9.99, Departure: date + "T07:00:00", Arrival: date + "T09:00:00"}}}}
	}
	if err := s.Cache().Put(ctx, past.Key(), iv(past.Date), PutMeta{Query: past}); err != nil {
		t.Fatalf("put past: %v", err)
	}
	if err := s.Cache().Put(ctx, future.Key(), iv(future.Date), PutMeta{Query: future}); err != nil {
		t.Fatalf("put future: %v", err)
	}

	without, err := NewSweeper(s, SweepConfig{}).RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if without.Total() != 0 {
		t.Fatalf("expected nothing deleted without past-date purge, got %+v", without)
	}

	rep, err := NewSweeper(s, SweepConfig{PurgePastDates: true}).RunOnce(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if rep.PastCache != 1 || rep.Snapshots != 1 || rep.Connections != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if n := countRows(t, s, "connections"); n != 1 {
		t.Fatalf("expected only the future connection to remain, got %d", n)
	}
}

func TestSweeper_StartRunsAfterDelay(t *testing.T) {
	clk := newFakeClock()
	s := openTestStore(t, clk)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := fare.Query{Date: "2027-01-10"}
	if err := s.Cache().Put(ctx, q.Key(), fare.Days{}, PutMeta{Query: q, RecordedAt: clk.Now().Add(-60 * 24 * time.Hour)}); err != nil {
		t.Fatalf("put: %v", err)
	}

	NewSweeper(s, SweepConfig{StartupDelay: 10 * time.Millisecond, Every: time.Hour}).Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if countRows(t, s, "fare_cache") == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected startup sweep to remove the expired entry")
}
