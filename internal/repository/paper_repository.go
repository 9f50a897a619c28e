package repository

import (
	"context"

	"github.com/helixir/paper-search-service/internal/domain"
)

// PaperRepository persists paper records discovered by source searches.
// Records are keyed by (source, paper_id): the same paper found again in the
// same source updates the stored record rather than duplicating it.
type PaperRepository interface {
	// Upsert inserts a paper or updates an existing one matched by
	// (source, paper_id). Scalar fields prefer the incoming value when it is
	// non-empty; the citation count keeps the maximum seen.
	// Returns domain.ErrInvalidInput if the paper has no source or paper ID.
	Upsert(ctx context.Context, paper *domain.Paper) error

	// BulkUpsert upserts multiple papers in a single batched roundtrip with
	// the same matching and merge semantics as Upsert.
	// Returns domain.ErrInvalidInput if any paper has no source or paper ID.
	BulkUpsert(ctx context.Context, papers []*domain.Paper) error

	// Get retrieves a stored paper by its source and source-native ID.
	// Returns domain.ErrNotFound if no matching paper exists.
	Get(ctx context.Context, source domain.SourceType, paperID string) (*domain.Paper, error)

	// GetByDOI retrieves a stored paper by DOI. When multiple sources stored
	// the same DOI the most recently updated record wins.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByDOI(ctx context.Context, doi string) (*domain.Paper, error)

	// List retrieves stored papers matching the filter criteria.
	// Returns the matching papers and total count for pagination.
	// The total count reflects all matching records regardless of limit/offset.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error)
}

// PaperFilter specifies criteria for listing stored papers.
type PaperFilter struct {
	// Source filters to papers from a specific source (optional).
	Source *domain.SourceType

	// TitleQuery filters to papers whose title contains the given text,
	// case-insensitively (optional).
	TitleQuery string

	// HasDOI filters by DOI presence (optional).
	// When true, only papers with a DOI are returned.
	// When false, only papers without a DOI are returned.
	// When nil, no filtering is applied.
	HasDOI *bool

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PaperFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
