// Package store persists synthesis runs to SQLite so past feature
// matrices can be listed and re-exported without recomputation.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/marcin-laskowski/Feature-Engineering/synth"
)

// Run is one persisted synthesis run.
type Run struct {
	ID          string
	EntitySet   string
	Target      string
	MaxDepth    int
	NumRows     int
	NumFeatures int
	MatrixCSV   string
	CreatedAt   time.Time
	Features    []RunFeature
}

// RunFeature is one feature definition of a persisted run.
type RunFeature struct {
	Name      string
	Entity    string
	Kind      string
	Depth     int
	Primitive string
}

// Store wraps the runs database.
type Store struct {
	db *sql.DB
}

// Open creates a Store at the given database path. It creates the
// parent directories and runs migrations automatically.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun persists a computed feature matrix and its feature
// definitions. Returns the generated run id.
func (s *Store) SaveRun(ctx context.Context, entitySet string, maxDepth int, m *synth.FeatureMatrix) (string, error) {
	var buf bytes.Buffer
	if err := m.WriteCSV(&buf); err != nil {
		return "", fmt.Errorf("failed to render matrix: %w", err)
	}

	id := uuid.New().String()
	createdAt := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, entityset, target, max_depth, num_rows, num_features, matrix_csv, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		id, entitySet, m.Target, maxDepth, m.NumRows(), m.NumFeatures(), buf.String(), createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for i, f := range m.Features() {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO run_features (run_id, position, name, entity, kind, depth, primitive) VALUES (?, ?, ?, ?, ?, ?, ?)",
			id, i, f.Name(), f.Entity, f.Kind.String(), f.Depth, f.PrimitiveName(),
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert run feature: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return id, nil
}

// GetRun retrieves a run by id, including its feature definitions.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, entityset, target, max_depth, num_rows, num_features, matrix_csv, created_at FROM runs WHERE id = ?",
		id,
	).Scan(&run.ID, &run.EntitySet, &run.Target, &run.MaxDepth, &run.NumRows, &run.NumFeatures, &run.MatrixCSV, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.CreatedAt = time.Unix(createdAt, 0)

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, entity, kind, depth, primitive FROM run_features WHERE run_id = ? ORDER BY position",
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f RunFeature
		if err := rows.Scan(&f.Name, &f.Entity, &f.Kind, &f.Depth, &f.Primitive); err != nil {
			return nil, fmt.Errorf("failed to scan run feature: %w", err)
		}
		run.Features = append(run.Features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run features: %w", err)
	}
	return run, nil
}

// ListRuns returns run summaries newest first, without matrices or
// feature lists.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, entityset, target, max_depth, num_rows, num_features, created_at FROM runs ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var createdAt int64
		if err := rows.Scan(&run.ID, &run.EntitySet, &run.Target, &run.MaxDepth, &run.NumRows, &run.NumFeatures, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its features.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}
