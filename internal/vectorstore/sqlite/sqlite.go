// Package sqlite persists the requirement index in a SQLite file. Each clause
// is one row, so upserts and deletes touch single rows; queries are served
// from an in-memory mirror hydrated on open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	_ "modernc.org/sqlite"

	"regaudit/internal/domain"
	"regaudit/internal/vectorstore"
	"regaudit/internal/vectorstore/memory"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS clauses (
    id TEXT PRIMARY KEY,
    source_standard TEXT NOT NULL,
    text TEXT NOT NULL,
    version INTEGER NOT NULL,
    vector BLOB NOT NULL
);
`

// Storage is a SQLite-backed Index.
type Storage struct {
	db      *sql.DB
	path    string
	writeMu sync.Mutex
	mem     *memory.Storage
}

// Open creates or opens the index at path. An index created with another
// metric fails with ErrMetricMismatch.
func Open(ctx context.Context, path string, metric vectorstore.Metric) (*Storage, error) {
	if metric == "" {
		metric = vectorstore.Cosine
	}
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and serializes writes
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging index database: %w", err)
	}
	s := &Storage{db: db, path: path, mem: memory.NewStorage(metric)}
	if err := s.init(ctx, metric); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Storage) init(ctx context.Context, metric vectorstore.Metric) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	stored, err := s.meta(ctx, "metric")
	if err != nil {
		return err
	}
	switch {
	case stored == "":
		if _, err := s.db.ExecContext(ctx, `INSERT INTO index_meta(key, value) VALUES ('metric', ?)`, string(metric)); err != nil {
			return fmt.Errorf("recording metric: %w", err)
		}
	case vectorstore.Metric(stored) != metric:
		return fmt.Errorf("%w: index at %s was built with %s, configured %s", domain.ErrMetricMismatch, s.path, stored, metric)
	}

	dimension := 0
	if v, err := s.meta(ctx, "dimension"); err != nil {
		return err
	} else if v != "" {
		if dimension, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("corrupt dimension %q: %w", v, err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, source_standard, text, version, vector FROM clauses ORDER BY id`)
	if err != nil {
		return fmt.Errorf("loading clauses: %w", err)
	}
	defer rows.Close()
	var clauses []domain.RequirementClause
	for rows.Next() {
		var (
			c    domain.RequirementClause
			std  string
			blob []byte
		)
		if err := rows.Scan(&c.ID, &std, &c.Text, &c.Version, &blob); err != nil {
			return fmt.Errorf("scanning clause: %w", err)
		}
		c.SourceStandard = domain.Standard(std)
		if c.Vector, err = decodeVector(blob); err != nil {
			return fmt.Errorf("clause %s: %w", c.ID, err)
		}
		if len(c.Vector) != dimension {
			return fmt.Errorf("clause %s: %w", c.ID, domain.DimensionError("stored vector", dimension, len(c.Vector)))
		}
		clauses = append(clauses, c)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading clauses: %w", err)
	}
	s.mem.Restore(dimension, clauses)
	return nil
}

func (s *Storage) meta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading index meta %s: %w", key, err)
	}
	return v, nil
}

func (s *Storage) Upsert(ctx context.Context, clause domain.RequirementClause) error {
	return s.Apply(ctx, vectorstore.Batch{Upserts: []domain.RequirementClause{clause}})
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.Apply(ctx, vectorstore.Batch{Deletes: []string{id}})
}

// Apply writes the batch in one transaction and mirrors it in memory only
// after the commit succeeded.
func (s *Storage) Apply(ctx context.Context, batch vectorstore.Batch) error {
	if err := domain.ContextErr(ctx); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dim, err := s.mem.Validate(batch)
	if err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range batch.Deletes {
		if _, err := tx.ExecContext(ctx, `DELETE FROM clauses WHERE id = ?`, id); err != nil {
			return fmt.Errorf("sqlite delete %s: %w", id, err)
		}
	}
	for _, c := range batch.Upserts {
		_, err := tx.ExecContext(ctx, `
INSERT INTO clauses(id, source_standard, text, version, vector) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    source_standard = excluded.source_standard,
    text = excluded.text,
    version = excluded.version,
    vector = excluded.vector`,
			c.ID, string(c.SourceStandard), c.Text, c.Version, encodeVector(c.Vector))
		if err != nil {
			return fmt.Errorf("sqlite upsert %s: %w", c.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO index_meta(key, value) VALUES ('dimension', ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(dim)); err != nil {
		return fmt.Errorf("recording dimension: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index transaction: %w", err)
	}
	return s.mem.Commit(batch)
}

func (s *Storage) Query(ctx context.Context, vector []float64, k int, metric vectorstore.Metric) ([]vectorstore.Hit, error) {
	return s.mem.Query(ctx, vector, k, metric)
}

func (s *Storage) Get(ctx context.Context, id string) (domain.RequirementClause, bool, error) {
	return s.mem.Get(ctx, id)
}

func (s *Storage) List(ctx context.Context) ([]domain.RequirementClause, error) {
	return s.mem.List(ctx)
}

func (s *Storage) Dimension() int             { return s.mem.Dimension() }
func (s *Storage) Metric() vectorstore.Metric { return s.mem.Metric() }
func (s *Storage) Len() int                   { return s.mem.Len() }

// Reset removes all clauses and the recorded dimension. The metric stays.
func (s *Storage) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM clauses`); err != nil {
		return fmt.Errorf("clearing clauses: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_meta WHERE key = 'dimension'`); err != nil {
		return fmt.Errorf("clearing dimension: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index transaction: %w", err)
	}
	return s.mem.Reset(ctx)
}

func (s *Storage) Close() error { return s.db.Close() }

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("vector blob of %d bytes is not a float64 array", len(buf))
	}
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v, nil
}

var _ vectorstore.Index = (*Storage)(nil)
