package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

// SQLiteStore persists samples in a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path and runs migrations
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, storeError("failed to open usage database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storeError("failed to ping usage database", err)
	}

	s := newSQLiteStoreFromDB(db)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func newSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// migrate creates the schema in a single transaction
func (s *SQLiteStore) migrate(ctx context.Context) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("failed to begin migration transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS usage_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at INTEGER NOT NULL,
			claude_tokens INTEGER NOT NULL DEFAULT 0,
			codex_tokens INTEGER NOT NULL DEFAULT 0,
			api_calls INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0
		)`); err != nil {
		return storeError("failed to create usage_samples table", err)
	}

	if _, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_usage_samples_recorded_at ON usage_samples(recorded_at)`); err != nil {
		return storeError("failed to create usage index", err)
	}

	if err = tx.Commit(); err != nil {
		return storeError("failed to commit migration transaction", err)
	}
	return nil
}

// Append stores one sample
func (s *SQLiteStore) Append(ctx context.Context, sample models.UsageSample) error {
	query := `INSERT INTO usage_samples (recorded_at, claude_tokens, codex_tokens, api_calls, cost) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		sample.Date.UnixNano(), sample.ClaudeTokens, sample.CodexTokens, sample.APICalls, sample.Cost)
	if err != nil {
		return storeError("failed to save usage sample", err)
	}
	return nil
}

// LoadAll returns every stored sample ordered by date
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]models.UsageSample, error) {
	query := `SELECT recorded_at, claude_tokens, codex_tokens, api_calls, cost FROM usage_samples ORDER BY recorded_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeError("failed to query usage samples", err)
	}
	defer rows.Close()

	var samples []models.UsageSample
	for rows.Next() {
		var sample models.UsageSample
		var recordedAt int64
		if err := rows.Scan(&recordedAt, &sample.ClaudeTokens, &sample.CodexTokens, &sample.APICalls, &sample.Cost); err != nil {
			return nil, storeError("failed to scan usage sample", err)
		}
		sample.Date = time.Unix(0, recordedAt)
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to read usage samples", err)
	}
	return samples, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func storeError(msg string, err error) error {
	return apperrors.Wrap(err, apperrors.ErrCodeUsageStore, fmt.Sprintf("%s: %v", msg, err))
}
