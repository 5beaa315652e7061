package usage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/d1childress/ccmanager/pkg/errors"
	"github.com/d1childress/ccmanager/pkg/models"
)

func TestSQLiteStoreMigrate(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantErr   bool
	}{
		{
			name: "creates schema",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS usage_samples").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_usage_samples_recorded_at").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
		},
		{
			name: "rolls back on failure",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS usage_samples").WillReturnError(errors.New("readonly database"))
				mock.ExpectRollback()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.setupMock(mock)

			err = newSQLiteStoreFromDB(db).migrate(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, apperrors.ErrCodeUsageStore, apperrors.GetErrorCode(err))
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLiteStoreAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	date := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	mock.ExpectExec("INSERT INTO usage_samples").
		WithArgs(date.UnixNano(), 120, 0, 1, 0.0036).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := newSQLiteStoreFromDB(db)
	err = store.Append(context.Background(), models.UsageSample{Date: date, ClaudeTokens: 120, APICalls: 1, Cost: 0.0036})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreAppendError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO usage_samples").WillReturnError(errors.New("disk I/O error"))

	err = newSQLiteStoreFromDB(db).Append(context.Background(), models.UsageSample{Date: time.Now()})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUsageStore, apperrors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreLoadAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	rows := sqlmock.NewRows([]string{"recorded_at", "claude_tokens", "codex_tokens", "api_calls", "cost"}).
		AddRow(first.UnixNano(), 10, 0, 1, 0.0003).
		AddRow(second.UnixNano(), 0, 20, 1, 0.0002)
	mock.ExpectQuery("SELECT recorded_at, claude_tokens, codex_tokens, api_calls, cost FROM usage_samples").WillReturnRows(rows)

	samples, err := newSQLiteStoreFromDB(db).LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.True(t, samples[0].Date.Equal(first))
	assert.Equal(t, 10, samples[0].ClaudeTokens)
	assert.Equal(t, 20, samples[1].CodexTokens)
	assert.InDelta(t, 0.0002, samples[1].Cost, 1e-12)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage.db")

	store, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)

	date := time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC)
	require.NoError(t, store.Append(ctx, models.UsageSample{Date: date, ClaudeTokens: 42, APICalls: 1, Cost: 0.00126}))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	samples, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Date.Equal(date))
	assert.Equal(t, 42, samples[0].ClaudeTokens)
	assert.Equal(t, 1, samples[0].APICalls)
}
