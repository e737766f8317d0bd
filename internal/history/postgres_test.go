package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genotype-insight-server/internal/domain"
)

var analysisColumns = []string{
	"id", "source", "filename",
	"total_lines", "interpreted", "malformed_lines", "unknown_variants",
	"reports", "created_at",
}

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Save(t *testing.T) {
	store, mock := setupMockStore(t)
	rec := NewAnalysisRecord(SourceUpload, "genome.txt", sampleResult())

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(rec.ID, SourceUpload, "genome.txt", 4, 2, 0, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec("INSERT INTO analyses").WillReturnError(errors.New("duplicate key"))

	err := store.Save(context.Background(), NewAnalysisRecord(SourceText, "", sampleResult()))
	assert.ErrorContains(t, err, "duplicate key")
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := setupMockStore(t)
	reports, err := json.Marshal(sampleResult().Reports)
	require.NoError(t, err)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("SELECT id, source, filename").
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(analysisColumns).
			AddRow("abc", SourceText, "", 4, 2, 0, 1, reports, created))

	rec, err := store.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", rec.ID)
	assert.Equal(t, sampleResult().Reports, rec.Reports)
	assert.Equal(t, created, rec.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT id, source, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_List(t *testing.T) {
	store, mock := setupMockStore(t)
	reports, _ := json.Marshal(sampleResult().Reports)
	now := time.Now().UTC()

	mock.ExpectQuery("ORDER BY seq DESC LIMIT").
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(analysisColumns).
			AddRow("b", SourceText, "", 1, 1, 0, 0, reports, now).
			AddRow("a", SourceText, "", 1, 1, 0, 0, reports, now))

	page, err := store.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAndDelete(t *testing.T) {
	store, mock := setupMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	mock.ExpectExec("DELETE FROM analyses").WithArgs("abc").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Delete(ctx, "abc"))

	mock.ExpectExec("DELETE FROM analyses").WithArgs("gone").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.Delete(ctx, "gone"), domain.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresStore_Live runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresStore_Live(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL tests")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			filename TEXT DEFAULT '',
			total_lines INTEGER NOT NULL DEFAULT 0,
			interpreted INTEGER NOT NULL DEFAULT 0,
			malformed_lines INTEGER NOT NULL DEFAULT 0,
			unknown_variants INTEGER NOT NULL DEFAULT 0,
			reports JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	require.NoError(t, err)
	_, err = db.Exec("DELETE FROM analyses")
	require.NoError(t, err)

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	ctx := context.Background()

	rec := NewAnalysisRecord(SourceUpload, "genome.txt", sampleResult())
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Reports, got.Reports)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
