package httpserver

import (
	"github.com/helixir/paper-search-service/internal/dedup"
	"github.com/helixir/paper-search-service/internal/domain"
)

// Request types. Papers travel in their serialized dictionary form and are
// converted to domain records at the boundary.

type dedupOptions struct {
	Strategy string `json:"strategy" validate:"omitempty,oneof=none keep merge"`
	Keep     string `json:"keep" validate:"omitempty,oneof=first last best"`
}

type searchRequest struct {
	Query      string        `json:"query" validate:"required,min=2,max=1000"`
	MaxResults int           `json:"max_results" validate:"omitempty,min=1,max=1000"`
	Sources    []string      `json:"sources" validate:"omitempty,max=10"`
	DateFrom   *string       `json:"date_from,omitempty"`
	DateTo     *string       `json:"date_to,omitempty"`
	Dedup      *dedupOptions `json:"dedup,omitempty"`
}

type deduplicateRequest struct {
	Papers []map[string]any `json:"papers" validate:"required,min=1"`
	Keep   string           `json:"keep" validate:"omitempty,oneof=first last best"`
}

type mergeRequest struct {
	Papers []map[string]any `json:"papers" validate:"required,min=1"`
}

type duplicatesRequest struct {
	Papers []map[string]any `json:"papers" validate:"required,min=1"`
}

type clustersRequest struct {
	Papers    []map[string]any `json:"papers" validate:"required,min=1"`
	Threshold float64          `json:"threshold" validate:"omitempty,gt=0,lte=1"`
}

// Response types.

type sourceStatsResponse struct {
	Source       string `json:"source"`
	Count        int    `json:"count"`
	TotalResults int    `json:"total_results"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

type searchResponse struct {
	Papers            []map[string]any      `json:"papers"`
	TotalCount        int                   `json:"total_count"`
	DuplicatesRemoved int                   `json:"duplicates_removed"`
	Sources           []sourceStatsResponse `json:"sources"`
}

type deduplicateResponse struct {
	Papers            []map[string]any `json:"papers"`
	TotalCount        int              `json:"total_count"`
	DuplicatesRemoved int              `json:"duplicates_removed"`
}

type mergeResponse struct {
	Papers     []map[string]any `json:"papers"`
	TotalCount int              `json:"total_count"`
	Merged     int              `json:"merged"`
}

type duplicateGroupResponse struct {
	Anchor     map[string]any   `json:"anchor"`
	Duplicates []map[string]any `json:"duplicates"`
}

type duplicatesResponse struct {
	Groups []duplicateGroupResponse `json:"groups"`
}

type clustersResponse struct {
	Clusters [][]map[string]any `json:"clusters"`
}

// papersToMaps serializes domain records back to their dictionary form.
func papersToMaps(papers []*domain.Paper) []map[string]any {
	maps := make([]map[string]any, len(papers))
	for i, p := range papers {
		maps[i] = dedup.PaperToMap(p)
	}
	return maps
}
