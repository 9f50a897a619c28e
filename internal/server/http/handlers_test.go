package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/dedup"
	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/papersources"
)

// stubSource is a controllable PaperSource for handler tests.
type stubSource struct {
	sourceType domain.SourceType
	papers     []*domain.Paper
	total      int
	err        error
	enabled    bool
}

func (s *stubSource) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &papersources.SearchResult{
		Papers:         s.papers,
		TotalResults:   s.total,
		Source:         s.sourceType,
		SearchDuration: 5 * time.Millisecond,
	}, nil
}

func (s *stubSource) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	return nil, domain.NewNotFoundError("paper", id)
}

func (s *stubSource) SourceType() domain.SourceType { return s.sourceType }
func (s *stubSource) Name() string                  { return string(s.sourceType) }
func (s *stubSource) IsEnabled() bool               { return s.enabled }

func testPaper(id, title, doi string, source domain.SourceType) *domain.Paper {
	return &domain.Paper{
		ID:      id,
		Title:   title,
		Authors: []string{"Ada Lovelace"},
		DOI:     doi,
		Source:  source,
	}
}

func newTestServer(t *testing.T, sources ...papersources.PaperSource) *Server {
	t.Helper()

	registry := papersources.NewRegistry()
	for _, source := range sources {
		registry.Register(source)
	}

	return NewServer(Config{
		Address:       "127.0.0.1:0",
		SearchTimeout: 5 * time.Second,
		DefaultKeep:   dedup.KeepFirst,
	}, registry, dedup.New(dedup.Config{}), nil, nil, nil, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestReadinessHandler(t *testing.T) {
	t.Run("ready with an enabled source", func(t *testing.T) {
		s := newTestServer(t, &stubSource{sourceType: domain.SourceTypeArXiv, enabled: true})

		rec := doRequest(t, s, http.MethodGet, "/readyz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready without enabled sources", func(t *testing.T) {
		s := newTestServer(t, &stubSource{sourceType: domain.SourceTypeArXiv, enabled: false})

		rec := doRequest(t, s, http.MethodGet, "/readyz", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleSearch(t *testing.T) {
	t.Run("fans out and flattens in source order", func(t *testing.T) {
		// openalex completes instantly but arxiv papers must still come first.
		arxiv := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			enabled:    true,
			papers:     []*domain.Paper{testPaper("2301.00001", "Paper A", "10.1000/a", domain.SourceTypeArXiv)},
			total:      1,
		}
		openalex := &stubSource{
			sourceType: domain.SourceTypeOpenAlex,
			enabled:    true,
			papers:     []*domain.Paper{testPaper("W123", "Paper B", "10.1000/b", domain.SourceTypeOpenAlex)},
			total:      1,
		}
		s := newTestServer(t, arxiv, openalex)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{
			"query": "test query",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp searchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		require.Len(t, resp.Papers, 2)
		assert.Equal(t, "2301.00001", resp.Papers[0]["paper_id"])
		assert.Equal(t, "W123", resp.Papers[1]["paper_id"])
		assert.Equal(t, 2, resp.TotalCount)
		assert.Equal(t, 0, resp.DuplicatesRemoved)

		require.Len(t, resp.Sources, 2)
		assert.Equal(t, "arxiv", resp.Sources[0].Source)
		assert.Equal(t, "openalex", resp.Sources[1].Source)
		assert.Equal(t, 1, resp.Sources[0].Count)
	})

	t.Run("dedup keep strategy removes duplicates", func(t *testing.T) {
		arxiv := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			enabled:    true,
			papers:     []*domain.Paper{testPaper("2301.00001", "Same Paper", "10.1000/same", domain.SourceTypeArXiv)},
			total:      1,
		}
		openalex := &stubSource{
			sourceType: domain.SourceTypeOpenAlex,
			enabled:    true,
			papers:     []*domain.Paper{testPaper("W123", "Same Paper", "10.1000/same", domain.SourceTypeOpenAlex)},
			total:      1,
		}
		s := newTestServer(t, arxiv, openalex)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{
			"query": "same paper",
			"dedup": map[string]any{"strategy": "keep"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp searchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		require.Len(t, resp.Papers, 1)
		// KeepFirst keeps the arxiv record: arxiv precedes openalex in flatten order.
		assert.Equal(t, "2301.00001", resp.Papers[0]["paper_id"])
		assert.Equal(t, 1, resp.DuplicatesRemoved)
	})

	t.Run("dedup merge strategy synthesizes records", func(t *testing.T) {
		withAbstract := testPaper("2301.00001", "Same Paper", "10.1000/same", domain.SourceTypeArXiv)
		withAbstract.Abstract = "An abstract."
		withCitations := testPaper("W123", "Same Paper", "10.1000/same", domain.SourceTypeOpenAlex)
		withCitations.Citations = 42

		s := newTestServer(t,
			&stubSource{sourceType: domain.SourceTypeArXiv, enabled: true, papers: []*domain.Paper{withAbstract}, total: 1},
			&stubSource{sourceType: domain.SourceTypeOpenAlex, enabled: true, papers: []*domain.Paper{withCitations}, total: 1},
		)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{
			"query": "same paper",
			"dedup": map[string]any{"strategy": "merge"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp searchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		require.Len(t, resp.Papers, 1)
		assert.Equal(t, float64(42), resp.Papers[0]["citations"])
	})

	t.Run("restricts fan-out to requested sources", func(t *testing.T) {
		arxiv := &stubSource{
			sourceType: domain.SourceTypeArXiv,
			enabled:    true,
			papers:     []*domain.Paper{testPaper("2301.00001", "Paper A", "", domain.SourceTypeArXiv)},
			total:      1,
		}
		openalex := &stubSource{
			sourceType: domain.SourceTypeOpenAlex,
			enabled:    true,
			papers:     []*domain.Paper{testPaper("W123", "Paper B", "", domain.SourceTypeOpenAlex)},
			total:      1,
		}
		s := newTestServer(t, arxiv, openalex)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{
			"query":   "test",
			"sources": []string{"arxiv"},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp searchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Papers, 1)
		assert.Equal(t, "2301.00001", resp.Papers[0]["paper_id"])
	})

	t.Run("per-source errors surface in stats", func(t *testing.T) {
		s := newTestServer(t,
			&stubSource{sourceType: domain.SourceTypeArXiv, enabled: true, err: fmt.Errorf("upstream timeout")},
			&stubSource{
				sourceType: domain.SourceTypeDBLP,
				enabled:    true,
				papers:     []*domain.Paper{testPaper("conf/x/y", "Paper", "", domain.SourceTypeDBLP)},
				total:      1,
			},
		)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{"query": "test"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp searchResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		require.Len(t, resp.Papers, 1)
		require.Len(t, resp.Sources, 2)
		assert.Equal(t, "arxiv", resp.Sources[0].Source)
		assert.Contains(t, resp.Sources[0].Error, "upstream timeout")
		assert.Equal(t, "dblp", resp.Sources[1].Source)
		assert.Empty(t, resp.Sources[1].Error)
	})

	t.Run("rejects missing query", func(t *testing.T) {
		s := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown source", func(t *testing.T) {
		s := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{
			"query":   "test",
			"sources": []string{"scholarpedia"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "unsupported source")
	})

	t.Run("rejects unknown dedup strategy", func(t *testing.T) {
		s := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{
			"query": "test",
			"dedup": map[string]any{"strategy": "fuzzy"},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects malformed date", func(t *testing.T) {
		s := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", map[string]any{
			"query":     "test",
			"date_from": "June 2020",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		s := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/search", "{not json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleDeduplicate(t *testing.T) {
	t.Run("removes duplicates with keep policy", func(t *testing.T) {
		s := newTestServer(t)

		body := map[string]any{
			"papers": []map[string]any{
				{"paper_id": "a", "title": "Deep Learning", "doi": "10.1000/x", "source": "arxiv"},
				{"paper_id": "b", "title": "Deep Learning", "doi": "10.1000/x", "source": "openalex", "citations": 10},
			},
			"keep": "best",
		}

		rec := doRequest(t, s, http.MethodPost, "/api/v1/papers/deduplicate", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp deduplicateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		require.Len(t, resp.Papers, 1)
		assert.Equal(t, 1, resp.DuplicatesRemoved)
	})

	t.Run("rejects empty batch", func(t *testing.T) {
		s := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/papers/deduplicate", map[string]any{
			"papers": []map[string]any{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects invalid keep policy", func(t *testing.T) {
		s := newTestServer(t)

		rec := doRequest(t, s, http.MethodPost, "/api/v1/papers/deduplicate", map[string]any{
			"papers": []map[string]any{{"paper_id": "a", "title": "T"}},
			"keep":   "newest",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleMerge(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{
		"papers": []map[string]any{
			{"paper_id": "a", "title": "Deep Learning", "doi": "10.1000/x", "source": "arxiv", "abstract": "An abstract."},
			{"paper_id": "b", "title": "Deep Learning", "doi": "10.1000/x", "source": "openalex", "citations": 10},
			{"paper_id": "c", "title": "Something Else", "source": "dblp"},
		},
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/papers/merge", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp mergeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Papers, 2)
	assert.Equal(t, 1, resp.Merged)
	assert.Equal(t, "An abstract.", resp.Papers[0]["abstract"])
	assert.Equal(t, float64(10), resp.Papers[0]["citations"])
}

func TestHandleDuplicates(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{
		"papers": []map[string]any{
			{"paper_id": "a", "title": "Deep Learning", "doi": "10.1000/x", "source": "arxiv"},
			{"paper_id": "b", "title": "Deep Learning", "doi": "10.1000/x", "source": "openalex"},
			{"paper_id": "c", "title": "Unrelated Work", "source": "dblp"},
		},
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/papers/duplicates", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp duplicatesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Groups, 1)
	assert.Equal(t, "a", resp.Groups[0].Anchor["paper_id"])
	require.Len(t, resp.Groups[0].Duplicates, 1)
	assert.Equal(t, "b", resp.Groups[0].Duplicates[0]["paper_id"])
}

func TestHandleClusters(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{
		"papers": []map[string]any{
			{"paper_id": "a", "title": "Graph Neural Networks for Molecules", "source": "arxiv"},
			{"paper_id": "b", "title": "Graph Neural Networks for Proteins", "source": "arxiv"},
			{"paper_id": "c", "title": "A Completely Different Topic", "source": "dblp"},
		},
		"threshold": 0.6,
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/papers/clusters", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp clustersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Clusters, 2)
	assert.Len(t, resp.Clusters[0], 2)
	assert.Len(t, resp.Clusters[1], 1)
}

func TestParseSourceTypes(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		types, err := parseSourceTypes(nil)
		require.NoError(t, err)
		assert.Nil(t, types)
	})

	t.Run("valid client sources", func(t *testing.T) {
		types, err := parseSourceTypes([]string{"arxiv", "europepmc"})
		require.NoError(t, err)
		assert.Equal(t, []domain.SourceType{domain.SourceTypeArXiv, domain.SourceTypeEuropePMC}, types)
	})

	t.Run("known source without a client is rejected", func(t *testing.T) {
		_, err := parseSourceTypes([]string{"ssrn"})
		require.Error(t, err)
	})
}

func TestParseRequestDate(t *testing.T) {
	t.Run("RFC3339", func(t *testing.T) {
		parsed, err := parseRequestDate("2023-06-01T12:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, 2023, parsed.Year())
	})

	t.Run("plain date", func(t *testing.T) {
		parsed, err := parseRequestDate("2023-06-01")
		require.NoError(t, err)
		assert.Equal(t, time.June, parsed.Month())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := parseRequestDate("yesterday")
		require.Error(t, err)
	})
}
