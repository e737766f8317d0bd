// Package history stores completed batch interpretations so callers can retrieve an
// analysis after the request that produced it.
package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/genotype-insight-server/internal/domain"
)

// Analysis sources
const (
	SourceUpload    = "upload"
	SourceText      = "text"
	SourceStream    = "websocket"
	SourceMCP       = "mcp"
	SourceCLI       = "cli"
	maxExportLimit  = 1000000
	exportVersion   = "1.0"
	defaultPageSize = 50
)

// MaxPageSize caps the number of analyses returned by one List call.
const MaxPageSize = 500

// AnalysisRecord is one stored batch interpretation.
type AnalysisRecord struct {
	ID              string                        `json:"id"`
	Source          string                        `json:"source"`
	Filename        string                        `json:"filename,omitempty"`
	TotalLines      int                           `json:"total_lines"`
	Interpreted     int                           `json:"interpreted"`
	MalformedLines  int                           `json:"malformed_lines"`
	UnknownVariants int                           `json:"unknown_variants"`
	Reports         []domain.InterpretationReport `json:"results"`
	CreatedAt       time.Time                     `json:"created_at"`
}

// NewAnalysisRecord captures result under a fresh id.
func NewAnalysisRecord(source, filename string, result *domain.BatchResult) *AnalysisRecord {
	return &AnalysisRecord{
		ID:              uuid.NewString(),
		Source:          source,
		Filename:        filename,
		TotalLines:      result.Stats.TotalLines,
		Interpreted:     result.Stats.Interpreted,
		MalformedLines:  result.Stats.MalformedLines,
		UnknownVariants: result.Stats.UnknownVariants,
		Reports:         append([]domain.InterpretationReport(nil), result.Reports...),
		CreatedAt:       time.Now().UTC(),
	}
}

// Stats rebuilds the batch statistics. Blank lines are not stored.
func (r *AnalysisRecord) Stats() domain.BatchStats {
	return domain.BatchStats{
		TotalLines:      r.TotalLines,
		MalformedLines:  r.MalformedLines,
		UnknownVariants: r.UnknownVariants,
		Interpreted:     r.Interpreted,
	}
}

// Store defines the interface for analysis history storage.
type Store interface {
	// Save stores a new analysis. The record's ID must be set.
	Save(ctx context.Context, record *AnalysisRecord) error

	// Get retrieves an analysis by id; domain.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*AnalysisRecord, error)

	// List returns analyses newest first with pagination.
	List(ctx context.Context, limit, offset int) ([]*AnalysisRecord, error)

	// Count returns the total number of stored analyses.
	Count(ctx context.Context) (int64, error)

	// Delete removes an analysis; domain.ErrNotFound when absent.
	Delete(ctx context.Context, id string) error

	// ExportJSON writes every stored analysis as a single JSON document.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// Export is the JSON export format.
type Export struct {
	Version    string            `json:"version"`
	ExportedAt time.Time         `json:"exported_at"`
	Count      int               `json:"count"`
	Analyses   []*AnalysisRecord `json:"analyses"`
}

// Open creates the store selected by cfg. It returns a nil Store for the "none" driver.
// postgresURL is used when the postgres driver has no DSN of its own.
func Open(cfg domain.HistoryConfig, postgresURL string) (Store, error) {
	switch cfg.Driver {
	case "", domain.HistoryDriverNone:
		return nil, nil
	case domain.HistoryDriverSQLite:
		store, err := NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case domain.HistoryDriverPostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = postgresURL
		}
		store, err := NewPostgresStoreFromURL(dsn)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history driver: %s", cfg.Driver)
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
