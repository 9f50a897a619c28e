package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/dedup"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/observability"
	"github.com/helixir/paper-search-service/internal/papersources"
)

// Request body and validation constants.
const (
	maxRequestBodySize = 4 << 20 // 4 MB limit for request bodies (paper batches)
)

// Dedup strategies accepted by the search endpoint.
const (
	strategyNone  = "none"
	strategyKeep  = "keep"
	strategyMerge = "merge"
)

// requestDateLayouts are tried in order when parsing request date bounds.
var requestDateLayouts = []string{time.RFC3339, "2006-01-02"}

// handleSearch handles POST /api/v1/search. It fans the query out to the
// requested sources, flattens the results in deterministic source order, and
// optionally deduplicates them.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	sourceTypes, err := parseSourceTypes(req.Sources)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := papersources.SearchParams{
		Query:      req.Query,
		MaxResults: req.MaxResults,
	}
	if req.DateFrom != nil {
		t, parseErr := parseRequestDate(*req.DateFrom)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid date_from format: expected RFC3339 or YYYY-MM-DD")
			return
		}
		params.DateFrom = &t
	}
	if req.DateTo != nil {
		t, parseErr := parseRequestDate(*req.DateTo)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid date_to format: expected RFC3339 or YYYY-MM-DD")
			return
		}
		params.DateTo = &t
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SearchTimeout)
	defer cancel()

	if s.metrics != nil {
		for _, st := range searchedSources(s.registry, sourceTypes) {
			s.metrics.RecordSearchStarted(string(st))
		}
	}

	results := s.registry.SearchSources(ctx, params, sourceTypes)

	stats := make([]sourceStatsResponse, 0, len(results))
	for _, result := range results {
		stat := sourceStatsResponse{Source: string(result.Source)}
		if result.Error != nil {
			stat.Error = result.Error.Error()
			if s.metrics != nil {
				s.metrics.RecordSearchFailed(string(result.Source), 0)
				s.recordSourceFailure(result.Source, result.Error)
			}
		} else {
			stat.Count = len(result.Result.Papers)
			stat.TotalResults = result.Result.TotalResults
			stat.DurationMs = result.Result.SearchDuration.Milliseconds()
			if s.metrics != nil {
				s.metrics.RecordSearchCompleted(string(result.Source), stat.Count, result.Result.SearchDuration.Seconds())
				s.metrics.RecordPapersReturned(string(result.Source), stat.Count)
				s.metrics.RecordSourceRequest(string(result.Source), "search", result.Result.SearchDuration.Seconds())
			}
		}
		stats = append(stats, stat)
	}
	sortSourceStats(stats)

	papers := papersources.FlattenResults(results)

	strategy := strategyNone
	keep := s.cfg.DefaultKeep
	if req.Dedup != nil {
		if req.Dedup.Strategy != "" {
			strategy = req.Dedup.Strategy
		}
		if req.Dedup.Keep != "" {
			keep = dedup.KeepPolicy(req.Dedup.Keep)
		}
	}

	inputCount := len(papers)
	start := time.Now()
	switch strategy {
	case strategyKeep:
		papers = s.deduper.Deduplicate(papers, keep)
	case strategyMerge:
		papers = s.deduper.MergeDuplicates(papers)
	}
	duplicatesRemoved := inputCount - len(papers)

	if s.metrics != nil && strategy != strategyNone {
		s.metrics.RecordDedupBatch(strategy, inputCount, duplicatesRemoved, time.Since(start).Seconds())
	}

	s.storePapers(r.Context(), papers)

	writeJSON(w, http.StatusOK, searchResponse{
		Papers:            papersToMaps(papers),
		TotalCount:        len(papers),
		DuplicatesRemoved: duplicatesRemoved,
		Sources:           stats,
	})
}

// handleDeduplicate handles POST /api/v1/papers/deduplicate.
func (s *Server) handleDeduplicate(w http.ResponseWriter, r *http.Request) {
	var req deduplicateRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	keep := s.cfg.DefaultKeep
	if req.Keep != "" {
		keep = dedup.KeepPolicy(req.Keep)
	}

	papers := dedup.PapersFromMaps(req.Papers)
	start := time.Now()
	deduped := s.deduper.Deduplicate(papers, keep)
	removed := len(papers) - len(deduped)

	if s.metrics != nil {
		s.metrics.RecordDedupBatch(strategyKeep, len(papers), removed, time.Since(start).Seconds())
	}

	writeJSON(w, http.StatusOK, deduplicateResponse{
		Papers:            papersToMaps(deduped),
		TotalCount:        len(deduped),
		DuplicatesRemoved: removed,
	})
}

// handleMerge handles POST /api/v1/papers/merge.
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	papers := dedup.PapersFromMaps(req.Papers)
	start := time.Now()
	merged := s.deduper.MergeDuplicates(papers)
	collapsed := len(papers) - len(merged)

	if s.metrics != nil {
		s.metrics.RecordDedupBatch(strategyMerge, len(papers), collapsed, time.Since(start).Seconds())
	}

	writeJSON(w, http.StatusOK, mergeResponse{
		Papers:     papersToMaps(merged),
		TotalCount: len(merged),
		Merged:     collapsed,
	})
}

// handleDuplicates handles POST /api/v1/papers/duplicates. It reports
// duplicate clusters without removing anything.
func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	var req duplicatesRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	papers := dedup.PapersFromMaps(req.Papers)
	groups := s.deduper.FindDuplicates(papers)

	resp := duplicatesResponse{Groups: make([]duplicateGroupResponse, 0, len(groups))}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, duplicateGroupResponse{
			Anchor:     dedup.PaperToMap(g.Anchor),
			Duplicates: papersToMaps(g.Duplicates),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleClusters handles POST /api/v1/papers/clusters. It groups papers by
// loose title similarity for topical clustering.
func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	var req clustersRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	papers := dedup.PapersFromMaps(req.Papers)
	clusters := s.deduper.ClusterSimilar(papers, req.Threshold)

	resp := clustersResponse{Clusters: make([][]map[string]any, 0, len(clusters))}
	for _, cluster := range clusters {
		resp.Clusters = append(resp.Clusters, papersToMaps(cluster))
	}

	writeJSON(w, http.StatusOK, resp)
}

// recordSourceFailure classifies a per-source search error for metric labels.
func (s *Server) recordSourceFailure(source domain.SourceType, err error) {
	var rateErr *domain.RateLimitError
	if errors.As(err, &rateErr) {
		s.metrics.RecordSourceRateLimited(string(source))
		return
	}

	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) {
		s.metrics.RecordSourceRequestFailed(string(source), "search", fmt.Sprintf("http_%d", apiErr.StatusCode))
		return
	}

	s.metrics.RecordSourceRequestFailed(string(source), "search", "error")
}

// requestLogger returns the server logger enriched with the correlation and
// trace identifiers carried by the request context.
func (s *Server) requestLogger(ctx context.Context) zerolog.Logger {
	logger := s.logger
	rc := observability.RequestContextFromContext(ctx)
	if rc.RequestID != "" {
		logger = observability.WithRequestContext(logger, rc.RequestID)
	}
	if rc.TraceID != "" {
		logger = observability.WithTraceContext(logger, rc.TraceID, rc.SpanID)
	}
	return logger
}

// storePapers persists the final paper list when persistence is configured.
// Failures are logged and never fail the request.
func (s *Server) storePapers(ctx context.Context, papers []*domain.Paper) {
	if s.paperRepo == nil {
		return
	}

	logger := s.requestLogger(ctx)
	for _, paper := range papers {
		if err := s.paperRepo.Upsert(ctx, paper); err != nil {
			logger.Warn().
				Err(err).
				Str("paper_id", paper.ID).
				Str("source", string(paper.Source)).
				Msg("failed to store paper")
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordPaperStored()
		}
	}
}

// decodeAndValidate reads the request body into dst and validates it. It
// writes the error response and returns false on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid field %q: failed %q constraint", fe.Field(), fe.Tag()))
		} else {
			writeError(w, http.StatusBadRequest, "invalid request")
		}
		return false
	}

	return true
}

// parseSourceTypes converts source names to source types, rejecting any name
// without a bundled search client.
func parseSourceTypes(names []string) ([]domain.SourceType, error) {
	if len(names) == 0 {
		return nil, nil
	}

	clients := make(map[domain.SourceType]bool)
	for _, st := range domain.ClientSourceTypes() {
		clients[st] = true
	}

	types := make([]domain.SourceType, 0, len(names))
	for _, name := range names {
		st := domain.SourceType(name)
		if !clients[st] {
			return nil, fmt.Errorf("unsupported source: %s", name)
		}
		types = append(types, st)
	}
	return types, nil
}

// parseRequestDate accepts RFC3339 timestamps and plain dates.
func parseRequestDate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range requestDateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// searchedSources resolves which sources a fan-out will actually hit, for
// metric labels.
func searchedSources(registry *papersources.Registry, sourceTypes []domain.SourceType) []domain.SourceType {
	if len(sourceTypes) > 0 {
		return sourceTypes
	}
	enabled := registry.EnabledSources()
	types := make([]domain.SourceType, 0, len(enabled))
	for _, source := range enabled {
		types = append(types, source.SourceType())
	}
	return types
}

// sortSourceStats orders per-source stats in the deterministic client source
// order so responses do not depend on goroutine completion order.
func sortSourceStats(stats []sourceStatsResponse) {
	rank := make(map[string]int)
	for i, st := range domain.ClientSourceTypes() {
		rank[string(st)] = i
	}
	sort.SliceStable(stats, func(i, j int) bool {
		ri, iKnown := rank[stats[i].Source]
		rj, jKnown := rank[stats[j].Source]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return stats[i].Source < stats[j].Source
		}
	})
}
