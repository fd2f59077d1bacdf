// Package postgres keeps permit documents in a warehouse table with their
// embeddings encoded as JSON arrays. Scoring runs either inside the database
// or in application memory; the mode is chosen explicitly at construction.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
)

type Scoring string

const (
	ScoringDatabase    Scoring = "database"
	ScoringApplication Scoring = "application"
)

func ParseScoring(raw string) (Scoring, error) {
	switch Scoring(strings.ToLower(strings.TrimSpace(raw))) {
	case ScoringDatabase:
		return ScoringDatabase, nil
	case ScoringApplication:
		return ScoringApplication, nil
	default:
		return "", fmt.Errorf("unknown scoring mode %q", raw)
	}
}

type Store struct {
	db        *sql.DB
	metric    domain.Metric
	scoring   Scoring
	dimension atomic.Int64
	now       func() time.Time
}

func New(db *sql.DB, metric domain.Metric, scoring Scoring) *Store {
	return &Store{
		db:      db,
		metric:  metric,
		scoring: scoring,
		now:     time.Now,
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS permit_documents (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding JSONB NOT NULL,
	dimension INTEGER NOT NULL,
	norm DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Ping runs the warehouse smoke query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return storeError(ctx, "ping", err)
	}
	if one != 1 {
		return domain.WrapError(domain.ErrStore, "ping", fmt.Errorf("unexpected result %d", one))
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, doc domain.Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return domain.InvalidArgument("upsert", "document id is blank")
	}
	if len(doc.Vector) == 0 {
		return domain.InvalidArgument("upsert", "document %s has no vector", doc.ID)
	}
	dim, err := s.knownDimension(ctx)
	if err != nil {
		return err
	}
	if dim > 0 && dim != len(doc.Vector) {
		return domain.DimensionMismatch("upsert", dim, len(doc.Vector))
	}

	embedding, err := json.Marshal(doc.Vector)
	if err != nil {
		return domain.WrapError(domain.ErrStore, "upsert", fmt.Errorf("encode embedding: %w", err))
	}
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return domain.WrapError(domain.ErrStore, "upsert", fmt.Errorf("encode metadata: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO permit_documents (id, text, metadata, embedding, dimension, norm, updated_at)
VALUES ($1, $2, $3::jsonb, $4::jsonb, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
	text = EXCLUDED.text,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding,
	dimension = EXCLUDED.dimension,
	norm = EXCLUDED.norm,
	updated_at = EXCLUDED.updated_at
`, doc.ID, doc.Text, string(metaJSON), string(embedding), len(doc.Vector), domain.Norm(doc.Vector), s.now().UTC())
	if err != nil {
		return storeError(ctx, "upsert", err)
	}
	s.dimension.CompareAndSwap(0, int64(len(doc.Vector)))
	return nil
}

func (s *Store) Nearest(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, domain.InvalidArgument("nearest", "k must be positive, got %d", k)
	}
	dim, err := s.knownDimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if dim != len(vector) {
		return nil, domain.DimensionMismatch("nearest", dim, len(vector))
	}

	var results []domain.RetrievalResult
	if s.scoring == ScoringDatabase {
		results, err = s.nearestInDatabase(ctx, vector, k)
	} else {
		results, err = s.nearestInApplication(ctx, vector, k)
	}
	if err != nil {
		return nil, err
	}
	domain.SortResults(results)
	return results, nil
}

// knownDimension returns the stored vector length, 0 for an empty table.
func (s *Store) knownDimension(ctx context.Context) (int, error) {
	if dim := s.dimension.Load(); dim > 0 {
		return int(dim), nil
	}
	var dim int
	err := s.db.QueryRowContext(ctx, `SELECT dimension FROM permit_documents LIMIT 1`).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storeError(ctx, "read dimension", err)
	}
	s.dimension.CompareAndSwap(0, int64(dim))
	return dim, nil
}

func storeError(ctx context.Context, operation string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.WrapCallError(ctx, domain.ErrStore, operation, err)
	}
	if isTransient(err) {
		err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
	}
	return domain.WrapError(domain.ErrStore, operation, err)
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
