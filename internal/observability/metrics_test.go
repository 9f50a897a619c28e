package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: prometheus/promauto registers metrics globally, so we need to use
// unique namespaces per test to avoid registration conflicts.

func TestNewMetrics(t *testing.T) {
	// Use unique namespace to avoid conflicts with other tests
	m := NewMetrics("test_paper_search_new")

	assert.NotNil(t, m.SearchesStarted)
	assert.NotNil(t, m.SearchesCompleted)
	assert.NotNil(t, m.SearchesFailed)
	assert.NotNil(t, m.SearchDuration)
	assert.NotNil(t, m.PapersPerSearch)
	assert.NotNil(t, m.PapersReturned)
	assert.NotNil(t, m.PapersBySource)
	assert.NotNil(t, m.PapersStored)
	assert.NotNil(t, m.DedupBatches)
	assert.NotNil(t, m.DedupDuration)
	assert.NotNil(t, m.DuplicatesFound)
	assert.NotNil(t, m.DedupBatchSize)
	assert.NotNil(t, m.SourceRequestsTotal)
	assert.NotNil(t, m.SourceRequestsFailed)
	assert.NotNil(t, m.SourceRequestDuration)
	assert.NotNil(t, m.SourceRateLimited)
}

func TestRecordSearchStarted(t *testing.T) {
	m := NewMetrics("test_search_started")

	m.RecordSearchStarted("arxiv")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesStarted.WithLabelValues("arxiv")))
}

func TestRecordSearchCompleted(t *testing.T) {
	m := NewMetrics("test_search_completed")

	m.RecordSearchCompleted("openalex", 42, 2.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesCompleted.WithLabelValues("openalex")))
}

func TestRecordSearchFailed(t *testing.T) {
	m := NewMetrics("test_search_failed")

	m.RecordSearchFailed("pubmed", 1.0)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesFailed.WithLabelValues("pubmed")))
}

func TestRecordPapersReturned(t *testing.T) {
	m := NewMetrics("test_papers_returned")

	initial := testutil.ToFloat64(m.PapersReturned)
	m.RecordPapersReturned("crossref", 25)
	assert.Equal(t, initial+25, testutil.ToFloat64(m.PapersReturned))
	assert.Equal(t, float64(25), testutil.ToFloat64(m.PapersBySource.WithLabelValues("crossref")))
}

func TestRecordPaperStored(t *testing.T) {
	m := NewMetrics("test_paper_stored")

	initial := testutil.ToFloat64(m.PapersStored)
	m.RecordPaperStored()
	assert.Equal(t, initial+1, testutil.ToFloat64(m.PapersStored))
}

func TestRecordDedupBatch(t *testing.T) {
	m := NewMetrics("test_dedup_batch")

	m.RecordDedupBatch("merge", 100, 12, 0.05)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DedupBatches.WithLabelValues("merge")))
	assert.Equal(t, float64(12), testutil.ToFloat64(m.DuplicatesFound))

	histCount, err := getHistogramSampleCount(m.DedupBatchSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), histCount)
}

func TestRecordSourceRequest(t *testing.T) {
	m := NewMetrics("test_source_request")

	m.RecordSourceRequest("arxiv", "search", 0.5)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsTotal.WithLabelValues("arxiv", "search")))
}

func TestRecordSourceRequestFailed(t *testing.T) {
	m := NewMetrics("test_source_request_failed")

	m.RecordSourceRequestFailed("openalex", "search", "timeout")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRequestsFailed.WithLabelValues("openalex", "search", "timeout")))
}

func TestRecordSourceRateLimited(t *testing.T) {
	m := NewMetrics("test_source_rate_limited")

	m.RecordSourceRateLimited("pubmed")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SourceRateLimited.WithLabelValues("pubmed")))
}

// Helper to get histogram sample count
func getHistogramSampleCount(h prometheus.Histogram) (uint64, error) {
	ch := make(chan prometheus.Metric, 1)
	h.Collect(ch)
	close(ch)

	var m prometheus.Metric
	for m = range ch {
		break
	}

	var dto = &dto.Metric{}
	if err := m.Write(dto); err != nil {
		return 0, err
	}

	return dto.Histogram.GetSampleCount(), nil
}
