package history

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genotype-insight-server/internal/domain"
)

func sampleResult() *domain.BatchResult {
	return &domain.BatchResult{
		Reports: []domain.InterpretationReport{
			{
				VariantID:  "rs9939609",
				Gene:       "FTO",
				Genotype:   "AA",
				Category:   domain.HOMOZYGOUS_RISK,
				Condition:  "Higher obesity risk",
				RiskFactor: 1.67,
				HealthRisk: &domain.HealthRiskNote{Domain: "obesity", Level: domain.RISK_HIGH, Score: 167, Message: "High"},
			},
			{
				VariantID:  "rs9939609",
				Gene:       "FTO",
				Genotype:   "TT",
				Category:   domain.NORMAL,
				Condition:  "Typical obesity risk",
				RiskFactor: 1.0,
			},
		},
		Stats: domain.BatchStats{TotalLines: 4, BlankLines: 1, UnknownVariants: 1, Interpreted: 2},
	}
}

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "history.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}

func TestSQLiteStore_SaveAndGet(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	rec := NewAnalysisRecord(SourceUpload, "genome.txt", sampleResult())
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, SourceUpload, got.Source)
	assert.Equal(t, "genome.txt", got.Filename)
	assert.Equal(t, rec.Reports, got.Reports)
	assert.Equal(t, domain.BatchStats{TotalLines: 4, UnknownVariants: 1, Interpreted: 2}, got.Stats())
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Second)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	store := createTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStore_SaveRequiresID(t *testing.T) {
	store := createTestStore(t)
	assert.Error(t, store.Save(context.Background(), &AnalysisRecord{}))
}

func TestSQLiteStore_ListAndCount(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		rec := NewAnalysisRecord(SourceText, "", sampleResult())
		require.NoError(t, store.Save(ctx, rec))
		ids = append(ids, rec.ID)
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID, "newest first")
	assert.Equal(t, ids[3], page[1].ID)

	page, err = store.List(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	all, err := store.List(ctx, 0, -3)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	rec := NewAnalysisRecord(SourceMCP, "", sampleResult())
	require.NoError(t, store.Save(ctx, rec))

	require.NoError(t, store.Delete(ctx, rec.ID))
	_, err := store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, rec.ID), domain.ErrNotFound)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, NewAnalysisRecord(SourceCLI, "a.txt", sampleResult())))
	require.NoError(t, store.Save(ctx, NewAnalysisRecord(SourceCLI, "b.txt", sampleResult())))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	var export Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 2, export.Count)
	assert.Equal(t, "b.txt", export.Analyses[0].Filename)
}

func TestOpen(t *testing.T) {
	store, err := Open(domain.HistoryConfig{Driver: domain.HistoryDriverNone}, "")
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = Open(domain.HistoryConfig{Driver: domain.HistoryDriverSQLite, DSN: filepath.Join(t.TempDir(), "h.db")}, "")
	require.NoError(t, err)
	require.NotNil(t, store)
	store.Close()

	_, err = Open(domain.HistoryConfig{Driver: "mongo"}, "")
	assert.Error(t, err)
}

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name                   string
		limit, offset          int
		wantLimit, wantOffset  int
	}{
		{"defaults", 0, 0, defaultPageSize, 0},
		{"negative offset", 10, -5, 10, 0},
		{"within range", 25, 50, 25, 50},
		{"capped", MaxPageSize + 1, 0, MaxPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := normalizePage(tt.limit, tt.offset)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}
