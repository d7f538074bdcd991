// Package storage implements the durable checkpoint store on SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ordertalk/tagflow/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements service.CheckpointStore. A batch commit is a single
// SQL transaction, so a crash leaves either the whole batch recorded or none
// of it. Settled documents are never overwritten: an id already present in
// the store is permanently done.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if necessary) the checkpoint database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath must not be empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Load reads the full checkpoint. A fresh database yields an empty checkpoint.
func (s *SQLiteStore) Load(ctx context.Context) (*model.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, tags, explanations FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	checkpoint := model.NewCheckpoint()

	for rows.Next() {
		var id, status string
		var tagsJSON, explanationsJSON sql.NullString

		if err := rows.Scan(&id, &status, &tagsJSON, &explanationsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}

		checkpoint.Attempted[id] = true

		if model.DocumentStatus(status) != model.StatusAnnotated {
			continue
		}

		var annotation model.Annotation
		if tagsJSON.Valid {
			if err := json.Unmarshal([]byte(tagsJSON.String), &annotation.Tags); err != nil {
				return nil, fmt.Errorf("corrupt tags for document %s: %w", id, err)
			}
		}
		if explanationsJSON.Valid {
			if err := json.Unmarshal([]byte(explanationsJSON.String), &annotation.Explanations); err != nil {
				return nil, fmt.Errorf("corrupt explanations for document %s: %w", id, err)
			}
		}

		checkpoint.Results[id] = annotation
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return checkpoint, nil
}

// CommitBatch durably records a settled batch as one atomic unit.
func (s *SQLiteStore) CommitBatch(ctx context.Context, runID string, batch int, results []model.DocumentResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO documents (id, status, tags, explanations, error, run_id, batch)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, result := range results {
		var tagsJSON, explanationsJSON, errText sql.NullString

		if result.Status == model.StatusAnnotated {
			tags, marshalErr := json.Marshal(result.Annotation.Tags)
			if marshalErr != nil {
				return fmt.Errorf("failed to marshal tags for %s: %w", result.DocumentID, marshalErr)
			}
			explanations, marshalErr := json.Marshal(result.Annotation.Explanations)
			if marshalErr != nil {
				return fmt.Errorf("failed to marshal explanations for %s: %w", result.DocumentID, marshalErr)
			}
			tagsJSON = sql.NullString{String: string(tags), Valid: true}
			explanationsJSON = sql.NullString{String: string(explanations), Valid: true}
		}
		if result.Error != "" {
			errText = sql.NullString{String: result.Error, Valid: true}
		}

		if _, execErr := stmt.ExecContext(ctx,
			result.DocumentID,
			string(result.Status),
			tagsJSON,
			explanationsJSON,
			errText,
			runID,
			batch,
		); execErr != nil {
			return fmt.Errorf("failed to record document %s: %w", result.DocumentID, execErr)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO batch_commits (run_id, batch, document_count)
		VALUES (?, ?, ?)`, runID, batch, len(results)); err != nil {
		return fmt.Errorf("failed to record batch commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch %d: %w", batch, err)
	}

	return nil
}

// Counts returns the number of annotated and permanently failed documents.
func (s *SQLiteStore) Counts(ctx context.Context) (annotated, failed int, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN status = ? THEN 1 END),
			COUNT(CASE WHEN status = ? THEN 1 END)
		FROM documents`,
		string(model.StatusAnnotated), string(model.StatusFailed))
	if err := row.Scan(&annotated, &failed); err != nil {
		return 0, 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return annotated, failed, nil
}

// Reset discards all recorded progress.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_commits`); err != nil {
		return fmt.Errorf("failed to clear batch commits: %w", err)
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
