// Package sqlite é o armazenamento embutido: cache de dias de tarifa, série
// histórica de preços e a limpeza por retenção.
//
// Um único escritor por processo (writeMu + _txlock=immediate); leituras em WAL
// não bloqueiam entre si nem o escritor.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fare-monitor/storage/migrate"

	_ "modernc.org/sqlite"
)

const DefaultFreshnessTTL = 60 * time.Minute

// Clock permite simular o tempo nos testes.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
	clock   Clock

	freshness time.Duration
}

type Option func(*Store)

func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithFreshnessTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.freshness = d
		}
	}
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// OpenDB abre o arquivo sem migrar.
func OpenDB(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// Open abre e migra o banco. Erro aqui deve derrubar o processo: nenhuma
// requisição pode ser atendida contra um banco migrado pela metade.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, clock: SystemClock{}, freshness: DefaultFreshnessTTL}
	for _, opt := range opts {
		opt(s)
	}

	r := migrate.New(db, Steps(), migrate.WithClock(s.clock.Now))
	n, err := r.ApplyPending(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if n > 0 {
		v, _ := r.CurrentVersion(ctx)
		log.Printf("storage: applied %d migration(s) path=%s version=%d", n, path, v)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB expõe o handle para leituras administrativas.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Cache() *CacheStore { return &CacheStore{store: s, history: s.History()} }

func (s *Store) History() *HistoryStore { return &HistoryStore{store: s} }

// write roda fn em uma transação sob o mutex de escrita.
func (s *Store) write(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
