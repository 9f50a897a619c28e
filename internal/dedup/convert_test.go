package dedup

import (
	"reflect"
	"testing"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
)

func TestPaperFromMap(t *testing.T) {
	t.Parallel()

	m := map[string]any{
		"paper_id":       "2301.00001",
		"title":          "Graph Attention Networks",
		"authors":        []any{"Jane Smith", "Robert Miles"},
		"abstract":       "We propose attention over graphs.",
		"doi":            "10.1234/x",
		"published_date": "2023-05-01T00:00:00Z",
		"pdf_url":        "https://arxiv.org/pdf/2301.00001",
		"url":            "https://arxiv.org/abs/2301.00001",
		"source":         "arxiv",
		"categories":     "cs.LG; cs.AI",
		"citations":      float64(42),
		"extra":          map[string]any{"version": "v2"},
	}

	p, err := PaperFromMap(m)
	if err != nil {
		t.Fatalf("PaperFromMap returned error: %v", err)
	}
	if p.ID != "2301.00001" || p.Title != "Graph Attention Networks" {
		t.Errorf("identity fields wrong: %+v", p)
	}
	if !reflect.DeepEqual(p.Authors, []string{"Jane Smith", "Robert Miles"}) {
		t.Errorf("authors = %v", p.Authors)
	}
	if p.PublishedDate.Year() != 2023 || p.PublishedDate.Month() != time.May {
		t.Errorf("published date = %v", p.PublishedDate)
	}
	if !reflect.DeepEqual(p.Categories, []string{"cs.LG", "cs.AI"}) {
		t.Errorf("semicolon-joined categories should split, got %v", p.Categories)
	}
	if p.Citations != 42 {
		t.Errorf("citations = %d, want 42", p.Citations)
	}
	if p.Source != domain.SourceTypeArXiv {
		t.Errorf("source = %q, want arxiv", p.Source)
	}
	if p.Extra["version"] != "v2" {
		t.Errorf("extra = %v", p.Extra)
	}
}

func TestPaperFromMap_MalformedDateFallsBack(t *testing.T) {
	t.Parallel()

	m := map[string]any{
		"paper_id":       "1",
		"title":          "T",
		"published_date": "not a date",
	}

	p, err := PaperFromMap(m)
	if err != nil {
		t.Fatalf("malformed date should not be an error: %v", err)
	}
	if !p.PublishedDate.IsZero() {
		t.Errorf("malformed date should fall back to the sentinel, got %v", p.PublishedDate)
	}
}

func TestPaperFromMap_DateOnlyLayout(t *testing.T) {
	t.Parallel()

	m := map[string]any{"paper_id": "1", "published_date": "2021-11-30"}
	p, err := PaperFromMap(m)
	if err != nil {
		t.Fatalf("PaperFromMap returned error: %v", err)
	}
	if p.PublishedDate.Year() != 2021 || p.PublishedDate.Day() != 30 {
		t.Errorf("published date = %v, want 2021-11-30", p.PublishedDate)
	}
}

func TestPaperFromMap_MissingFields(t *testing.T) {
	t.Parallel()

	p, err := PaperFromMap(map[string]any{})
	if err != nil {
		t.Fatalf("empty map should convert: %v", err)
	}
	if p.ID != "" || p.Title != "" || len(p.Authors) != 0 || p.Citations != 0 {
		t.Errorf("empty map should produce a zero-valued record, got %+v", p)
	}
	if !p.PublishedDate.IsZero() {
		t.Errorf("missing date should be the sentinel, got %v", p.PublishedDate)
	}
}

func TestPaperFromMap_NilMap(t *testing.T) {
	t.Parallel()

	if _, err := PaperFromMap(nil); err == nil {
		t.Error("nil map should be an error")
	}
}

func TestPaperFromMap_BadCitations(t *testing.T) {
	t.Parallel()

	m := map[string]any{"paper_id": "1", "citations": "many"}
	if _, err := PaperFromMap(m); err == nil {
		t.Error("non-numeric citations should be an error")
	}
}

func TestPaperFromMap_NumericStringCitations(t *testing.T) {
	t.Parallel()

	m := map[string]any{"paper_id": "1", "citations": " 17 "}
	p, err := PaperFromMap(m)
	if err != nil {
		t.Fatalf("numeric string citations should coerce: %v", err)
	}
	if p.Citations != 17 {
		t.Errorf("citations = %d, want 17", p.Citations)
	}
}

func TestPaperFromMap_ExtraAsJSONString(t *testing.T) {
	t.Parallel()

	m := map[string]any{"paper_id": "1", "extra": `{"venue":"NeurIPS"}`}
	p, err := PaperFromMap(m)
	if err != nil {
		t.Fatalf("PaperFromMap returned error: %v", err)
	}
	if p.Extra["venue"] != "NeurIPS" {
		t.Errorf("extra = %v", p.Extra)
	}
}

func TestPapersFromMaps_SkipsBadRecords(t *testing.T) {
	t.Parallel()

	maps := []map[string]any{
		{"paper_id": "good-1", "title": "First"},
		{"paper_id": "bad", "citations": "not-a-number"},
		nil,
		{"paper_id": "good-2", "title": "Second"},
	}

	papers := PapersFromMaps(maps)
	if len(papers) != 2 {
		t.Fatalf("expected 2 converted records, got %d", len(papers))
	}
	if papers[0].ID != "good-1" || papers[1].ID != "good-2" {
		t.Errorf("surviving records = %v", ids(papers))
	}
}

func TestPaperToMap_RoundTrip(t *testing.T) {
	t.Parallel()

	p := &domain.Paper{
		ID:            "2301.00001",
		Title:         "Graph Attention Networks",
		Authors:       []string{"Jane Smith"},
		DOI:           "10.1234/x",
		PublishedDate: time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC),
		Source:        domain.SourceTypeArXiv,
		Citations:     42,
	}

	back, err := PaperFromMap(PaperToMap(p))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if back.ID != p.ID || back.Title != p.Title || back.DOI != p.DOI {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if !back.PublishedDate.Equal(p.PublishedDate) {
		t.Errorf("round trip date = %v, want %v", back.PublishedDate, p.PublishedDate)
	}
	if back.Citations != 42 || back.Source != domain.SourceTypeArXiv {
		t.Errorf("round trip metadata: %+v", back)
	}
}

func TestPaperToMap_SentinelDateSerializesEmpty(t *testing.T) {
	t.Parallel()

	m := PaperToMap(&domain.Paper{ID: "1"})
	if m["published_date"] != "" {
		t.Errorf("sentinel date should serialize as empty string, got %v", m["published_date"])
	}
}
