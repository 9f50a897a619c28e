// Package papersources provides clients for searching academic paper databases.
//
// Each source (arXiv, PubMed, OpenAlex, Crossref, DBLP, Europe PMC, HAL)
// implements the PaperSource interface. The Registry fans a query out to
// several sources concurrently and the dedup engine collapses the combined
// results.
//
//	source := arxiv.New(cfg, httpClient)
//	result, err := source.Search(ctx, papersources.SearchParams{
//		Query:      "quantum error correction",
//		MaxResults: 50,
//	})
package papersources

import (
	"context"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
)

// SearchParams defines the parameters for searching academic papers.
// Only Query is required; query syntax varies by source.
type SearchParams struct {
	// Query is the search query string.
	Query string

	// DateFrom filters papers published on or after this date. Nil means no
	// lower bound. Not every source supports date filtering; sources without
	// it ignore these fields.
	DateFrom *time.Time

	// DateTo filters papers published on or before this date.
	DateTo *time.Time

	// MaxResults caps the number of papers returned in one request. Sources
	// enforce their own hard maximums on top. Zero uses the source default.
	MaxResults int

	// Offset is the starting position for paginated results.
	Offset int
}

// SearchResult contains the results of one source search.
type SearchResult struct {
	// Papers returned by the search, in source ranking order.
	Papers []*domain.Paper

	// TotalResults is the source-reported total match count, which may be an
	// estimate. Sources that do not report a total set it to len(Papers).
	TotalResults int

	// HasMore indicates additional pages beyond this one.
	HasMore bool

	// NextOffset is the offset of the next page. Meaningful only when
	// HasMore is true.
	NextOffset int

	// Source identifies the client that produced these results.
	Source domain.SourceType

	// SearchDuration covers the request and response parsing.
	SearchDuration time.Duration
}

// PaperSource is implemented by every paper database client.
type PaperSource interface {
	// Search queries the source for papers matching the parameters.
	// Implementations respect context cancellation, apply their rate limits,
	// and map source responses to domain.Paper with the zero time sentinel
	// for unknown publication dates.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// GetByID retrieves one paper by its source-specific identifier
	// (arXiv ID, PMID, OpenAlex ID, DOI, ...). Returns an error wrapping
	// domain.ErrNotFound when the paper does not exist.
	GetByID(ctx context.Context, id string) (*domain.Paper, error)

	// SourceType returns the type tag for this source, used for attribution
	// and routing.
	SourceType() domain.SourceType

	// Name returns a human-readable source name for logs and metrics.
	Name() string

	// IsEnabled reports whether the source is available for searches.
	// A source may be disabled by configuration or a missing API key.
	IsEnabled() bool
}
