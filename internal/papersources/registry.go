package papersources

import (
	"context"
	"sync"

	"github.com/helixir/paper-search-service/internal/domain"
)

// SourceResult holds the outcome of one source's search. Exactly one of
// Result and Error is non-nil.
type SourceResult struct {
	Source domain.SourceType
	Result *SearchResult
	Error  error
}

// Registry manages paper sources and coordinates concurrent searches.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[domain.SourceType]PaperSource
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[domain.SourceType]PaperSource),
	}
}

// Register adds a source, replacing any existing source of the same type.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns the source for the given type, or nil if none is registered.
func (r *Registry) Get(sourceType domain.SourceType) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// AllSources returns a snapshot of every registered source.
func (r *Registry) AllSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		sources = append(sources, source)
	}
	return sources
}

// EnabledSources returns a snapshot of the sources whose IsEnabled reports true.
func (r *Registry) EnabledSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// SearchAll searches every enabled source concurrently. Per-source errors are
// returned alongside successes, never filtered.
func (r *Registry) SearchAll(ctx context.Context, params SearchParams) []SourceResult {
	return r.SearchSources(ctx, params, nil)
}

// SearchSources searches the named sources concurrently. A nil or empty
// sourceTypes searches all enabled sources; unknown source types are skipped.
// Cancellation of ctx interrupts in-flight searches and surfaces their errors
// in the corresponding SourceResult.
func (r *Registry) SearchSources(ctx context.Context, params SearchParams, sourceTypes []domain.SourceType) []SourceResult {
	var sources []PaperSource

	if len(sourceTypes) == 0 {
		sources = r.EnabledSources()
	} else {
		r.mu.RLock()
		sources = make([]PaperSource, 0, len(sourceTypes))
		for _, st := range sourceTypes {
			if source, ok := r.sources[st]; ok {
				sources = append(sources, source)
			}
		}
		r.mu.RUnlock()
	}

	if len(sources) == 0 {
		return nil
	}

	resultChan := make(chan SourceResult, len(sources))
	var wg sync.WaitGroup

	for _, source := range sources {
		wg.Add(1)
		go func(s PaperSource) {
			defer wg.Done()

			result, err := s.Search(ctx, params)
			resultChan <- SourceResult{
				Source: s.SourceType(),
				Result: result,
				Error:  err,
			}
		}(source)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]SourceResult, 0, len(sources))
	for result := range resultChan {
		results = append(results, result)
	}

	return results
}

// FlattenResults concatenates successful source results into a single paper
// list in the deterministic source order of domain.ClientSourceTypes, with
// results from unlisted sources appended in encounter order. Goroutine
// completion order never affects the output.
func FlattenResults(results []SourceResult) []*domain.Paper {
	bySource := make(map[domain.SourceType][]*domain.Paper, len(results))
	var extraOrder []domain.SourceType

	known := make(map[domain.SourceType]bool)
	for _, st := range domain.ClientSourceTypes() {
		known[st] = true
	}

	for _, r := range results {
		if r.Error != nil || r.Result == nil {
			continue
		}
		if _, seen := bySource[r.Source]; !seen && !known[r.Source] {
			extraOrder = append(extraOrder, r.Source)
		}
		bySource[r.Source] = append(bySource[r.Source], r.Result.Papers...)
	}

	var papers []*domain.Paper
	for _, st := range domain.ClientSourceTypes() {
		papers = append(papers, bySource[st]...)
	}
	for _, st := range extraOrder {
		papers = append(papers, bySource[st]...)
	}
	return papers
}
