// Package migrate aplica passos de migração versionados sobre um banco SQL.
//
// Cada passo roda em uma única transação (tudo ou nada) e o livro de versões
// só passa a refletir o passo quando a transação confirma. Rodar de novo é seguro:
// passos já registrados são pulados.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"fare-monitor/faults"
)

const ledgerTable = "schema_version"

// Step é um passo de migração: versão alvo + transformação.
type Step struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

type Runner struct {
	db    *sql.DB
	steps []Step
	now   func() time.Time
}

type Option func(*Runner)

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New ordena os passos por versão. Versões duplicadas ou não positivas fazem
// ApplyPending falhar.
func New(db *sql.DB, steps []Step, opts ...Option) *Runner {
	sorted := append([]Step(nil), steps...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	r := &Runner{db: db, steps: sorted, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) ensureLedger(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+ledgerTable+` (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at INTEGER NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("ensure version ledger: %w", err)
	}
	return nil
}

// CurrentVersion devolve a maior versão aplicada (0 = banco novo).
func (r *Runner) CurrentVersion(ctx context.Context) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("sql db is required")
	}
	if err := r.ensureLedger(ctx); err != nil {
		return 0, err
	}
	var v sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(version) FROM "+ledgerTable).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(v.Int64), nil
}

// Pending devolve os passos com versão acima da atual, em ordem crescente.
func (r *Runner) Pending(ctx context.Context) ([]Step, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	current, err := r.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	var out []Step
	for _, s := range r.steps {
		if s.Version > current {
			out = append(out, s)
		}
	}
	return out, nil
}

// ApplyPending aplica os passos pendentes e devolve quantos foram aplicados.
// Qualquer falha casa com faults.ErrSchemaMigration e deve ser fatal para o processo.
func (r *Runner) ApplyPending(ctx context.Context) (int, error) {
	pending, err := r.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", faults.ErrSchemaMigration, err)
	}
	for i, s := range pending {
		if err := r.apply(ctx, s); err != nil {
			return i, fmt.Errorf("%w: step %d (%s): %w", faults.ErrSchemaMigration, s.Version, s.Name, err)
		}
	}
	return len(pending), nil
}

func (r *Runner) apply(ctx context.Context, s Step) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.Apply(ctx, tx); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO "+ledgerTable+" (version, name, applied_at) VALUES (?, ?, ?)",
		s.Version, s.Name, r.now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Runner) validate() error {
	seen := make(map[int]bool, len(r.steps))
	for _, s := range r.steps {
		if s.Version <= 0 {
			return fmt.Errorf("step %q has non-positive version %d", s.Name, s.Version)
		}
		if seen[s.Version] {
			return fmt.Errorf("duplicate step version %d", s.Version)
		}
		if s.Apply == nil {
			return fmt.Errorf("step %d has no transform", s.Version)
		}
		seen[s.Version] = true
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TableExists consulta sqlite_master.
func TableExists(ctx context.Context, q queryer, name string) (bool, error) {
	var found int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&found)
	if err != nil {
		return false, err
	}
	return found > 0, nil
}

// RenameToBackup renomeia table para backup em vez de apagá-la. Se backup já
// existir, usa backup_2, backup_3, ... Devolve o nome usado ("" se table não existe).
func RenameToBackup(ctx context.Context, tx *sql.Tx, table, backup string) (string, error) {
	ok, err := TableExists(ctx, tx, table)
	if err != nil || !ok {
		return "", err
	}
	name := backup
	for n := 2; ; n++ {
		taken, err := TableExists(ctx, tx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			break
		}
		name = fmt.Sprintf("%s_%d", backup, n)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE "%s" RENAME TO "%s"`, table, name)); err != nil {
		return "", fmt.Errorf("rename %s to %s: %w", table, name, err)
	}
	return name, nil
}
