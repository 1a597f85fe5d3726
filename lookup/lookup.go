// Package lookup orquestra cache, fila e histórico para a camada de apresentação.
//
// BestPrice: cache fresco -> devolve; ausente ou velho -> busca pela fila, grava
// (cache + snapshots) e filtra; se a busca falhar e houver dado velho, serve o velho.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"fare-monitor/fare"
	"fare-monitor/faults"
	"fare-monitor/queue/domain"
	"fare-monitor/storage/sqlite"

	"github.com/google/uuid"
)

const (
	InfoNoConnections = "no connections for the selected window/transfers"

	// StationSession é o prefixo das sessões de busca de estação na fila. Cada
	// busca tem a sua: cancelar uma não derruba as outras.
	StationSession = "station-search"

	DefaultStationTTL = 72 * time.Hour
)

type Submitter interface {
	Submit(ctx context.Context, requestID, sessionID string, work domain.Work) (domain.Result, error)
}

type Cache interface {
	Get(ctx context.Context, key string) (sqlite.Entry, error)
	Put(ctx context.Context, key string, days fare.Days, meta sqlite.PutMeta) error
}

type History interface {
	DayHistory(ctx context.Context, fp fare.FareParams, candidates []fare.ConnectionIdentity) ([]fare.PricePoint, error)
	ConnectionHistoryFor(ctx context.Context, conn fare.ConnectionIdentity, fp fare.FareParams) ([]fare.PricePoint, error)
}

type Source int

const (
	SourceCache Source = iota
	SourceUpstream
	// SourceStale: a atualização falhou e o dado velho do cache foi servido.
	SourceStale
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceUpstream:
		return "upstream"
	case SourceStale:
		return "stale"
	default:
		return "unknown"
	}
}

type Answer struct {
	Day        fare.Day
	Source     Source
	RecordedAt time.Time
}

type Service struct {
	queue   Submitter
	cache   Cache
	history History
	now     func() time.Time

	stationTTL time.Duration
	stMu       sync.RWMutex
	stations   map[string]stationEntry
}

type stationEntry struct {
	list []fare.Station
	at   time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithStationTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.stationTTL = d
		}
	}
}

func New(q Submitter, cache Cache, history History, opts ...Option) *Service {
	s := &Service{
		queue:      q,
		cache:      cache,
		history:    history,
		now:        time.Now,
		stationTTL: DefaultStationTTL,
		stations:   make(map[string]stationEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BestPrice devolve o melhor preço do dia de q já filtrado por f. fetch faz uma
// única chamada HTTP ao upstream; ela só roda quando o cache não está fresco.
func (s *Service) BestPrice(ctx context.Context, q fare.Query, f fare.Filter, sessionID string, fetch domain.Work) (Answer, error) {
	q = q.Normalize()
	key := q.Key()

	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		return Answer{}, err
	}
	if entry.Found && !entry.NeedsRefresh {
		return Answer{Day: s.shape(ctx, q, f, entry.Days[q.Date]), Source: SourceCache, RecordedAt: entry.RecordedAt}, nil
	}

	day, err := s.fetch(ctx, q, sessionID, fetch)
	if err != nil {
		if errors.Is(err, faults.ErrSessionCancelled) || !entry.Found {
			return Answer{}, err
		}
		log.Printf("lookup: serving stale date=%s kind=%s err=%v", q.Date, faults.KindOf(err), err)
		return Answer{Day: s.shape(ctx, q, f, entry.Days[q.Date]), Source: SourceStale, RecordedAt: entry.RecordedAt}, nil
	}

	recordedAt := s.now()
	if err := s.cache.Put(ctx, key, fare.Days{q.Date: day}, sqlite.PutMeta{Query: q, RecordedAt: recordedAt}); err != nil {
		log.Printf("lookup: cache write failed date=%s: %v", q.Date, err)
	}
	return Answer{Day: s.shape(ctx, q, f, day), Source: SourceUpstream, RecordedAt: recordedAt}, nil
}

func (s *Service) fetch(ctx context.Context, q fare.Query, sessionID string, work domain.Work) (fare.Day, error) {
	res, err := s.queue.Submit(ctx, "", sessionID, work)
	if err != nil {
		return fare.Day{}, err
	}
	if res.Kind != domain.ResultOK {
		return fare.Day{}, fmt.Errorf("best price %s: unexpected result %s", q.Date, res.Kind)
	}
	return fare.ParseBestPrice(res.Payload)
}

// shape aplica o filtro sobre o dia completo e anexa o histórico apenas das
// conexões que sobraram.
func (s *Service) shape(ctx context.Context, q fare.Query, f fare.Filter, day fare.Day) fare.Day {
	if len(day.Intervals) == 0 {
		if day.Info == "" {
			day.Info = fare.InfoNoIntervals
		}
		return day
	}
	filtered := f.Apply(day.Intervals)
	if len(filtered) == 0 {
		return fare.Day{Info: InfoNoConnections}
	}

	fp := q.FareParams()
	candidates := make([]fare.ConnectionIdentity, 0, len(filtered))
	for i := range filtered {
		iv := &filtered[i]
		conn := q.Connection(*iv)
		candidates = append(candidates, conn)
		if s.history == nil {
			continue
		}
		hist, err := s.history.ConnectionHistoryFor(ctx, conn, fp)
		if err != nil {
			log.Printf("lookup: connection history failed: %v", err)
			continue
		}
		iv.History = hist
	}

	best := 0
	for i := range filtered {
		if filtered[i].Price < filtered[best].Price {
			best = i
		}
	}
	for i := range filtered {
		filtered[i].CheapestInSlot = filtered[i].Price == filtered[best].Price
	}
	out := fare.Day{
		Price:     filtered[best].Price,
		Info:      filtered[best].Info,
		Departure: filtered[best].Departure,
		Arrival:   filtered[best].Arrival,
		Intervals: filtered,
	}
	if s.history != nil {
		hist, err := s.history.DayHistory(ctx, fp, candidates)
		if err != nil {
			log.Printf("lookup: day history failed: %v", err)
		} else {
			out.History = hist
		}
	}
	return out
}

// Station busca estações pelo nome passando pela mesma fila. Resultados ficam
// em memória por stationTTL.
func (s *Service) Station(ctx context.Context, query string, fetch domain.Work) ([]fare.Station, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if key == "" {
		return []fare.Station{}, nil
	}

	s.stMu.RLock()
	ent, ok := s.stations[key]
	s.stMu.RUnlock()
	if ok && s.now().Sub(ent.at) < s.stationTTL {
		return ent.list, nil
	}

	res, err := s.queue.Submit(ctx, "", StationSession+":"+uuid.NewString(), fetch)
	if err != nil {
		return nil, err
	}
	list, err := fare.ParseStations(res.Payload)
	if err != nil {
		return nil, err
	}

	s.stMu.Lock()
	s.stations[key] = stationEntry{list: list, at: s.now()}
	for k, e := range s.stations {
		if s.now().Sub(e.at) >= s.stationTTL {
			delete(s.stations, k)
		}
	}
	s.stMu.Unlock()
	return list, nil
}
