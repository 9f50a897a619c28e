package dedup

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
)

// dateLayouts are tried in order when parsing serialized dates.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// PaperFromMap converts the serialized dictionary form of a paper record into
// a domain.Paper. The conversion is tolerant: missing or malformed date
// strings fall back to the unknown-date sentinel, and list fields serialized
// as ";"-joined strings are split. It returns an error only when a field is
// too malformed to coerce (for example a non-numeric citation count), so that
// callers can skip the record and keep processing the batch.
func PaperFromMap(m map[string]any) (*domain.Paper, error) {
	if m == nil {
		return nil, fmt.Errorf("nil paper map")
	}

	citations, err := intValue(m["citations"])
	if err != nil {
		return nil, fmt.Errorf("citations: %w", err)
	}

	p := &domain.Paper{
		ID:            stringValue(m["paper_id"]),
		Title:         stringValue(m["title"]),
		Authors:       listValue(m["authors"]),
		Abstract:      stringValue(m["abstract"]),
		DOI:           stringValue(m["doi"]),
		PublishedDate: dateValue(m["published_date"]),
		PDFURL:        stringValue(m["pdf_url"]),
		URL:           stringValue(m["url"]),
		Source:        domain.SourceType(stringValue(m["source"])),
		Categories:    listValue(m["categories"]),
		Keywords:      listValue(m["keywords"]),
		References:    listValue(m["references"]),
		Citations:     citations,
		Extra:         extraValue(m["extra"]),
	}

	return p, nil
}

// PapersFromMaps converts a batch of serialized records, silently skipping
// entries that fail conversion. A single bad record never aborts the batch.
func PapersFromMaps(maps []map[string]any) []*domain.Paper {
	papers := make([]*domain.Paper, 0, len(maps))
	for _, m := range maps {
		p, err := PaperFromMap(m)
		if err != nil {
			continue
		}
		papers = append(papers, p)
	}
	return papers
}

// PaperToMap converts a domain.Paper back to its serialized dictionary form.
// The sentinel date serializes as an empty string.
func PaperToMap(p *domain.Paper) map[string]any {
	published := ""
	if !p.PublishedDate.IsZero() {
		published = p.PublishedDate.Format(time.RFC3339)
	}
	return map[string]any{
		"paper_id":       p.ID,
		"title":          p.Title,
		"authors":        p.Authors,
		"abstract":       p.Abstract,
		"doi":            p.DOI,
		"published_date": published,
		"pdf_url":        p.PDFURL,
		"url":            p.URL,
		"source":         string(p.Source),
		"categories":     p.Categories,
		"keywords":       p.Keywords,
		"references":     p.References,
		"citations":      p.Citations,
		"extra":          p.Extra,
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// dateValue parses a serialized date, falling back to the sentinel zero time
// on anything it cannot parse.
func dateValue(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// listValue accepts a list of strings, a list of arbitrary values (as decoded
// from JSON), or a ";"-joined string.
func listValue(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		out := make([]string, 0, len(val))
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		parts := strings.Split(val, ";")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

// intValue coerces JSON numbers, integers, and numeric strings.
func intValue(v any) (int, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case string:
		if val == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("parsing %q: %w", val, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// extraValue accepts a map or a JSON-encoded string of a map.
func extraValue(v any) map[string]any {
	switch val := v.(type) {
	case map[string]any:
		return val
	case string:
		if val == "" {
			return nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(val), &m); err != nil {
			return nil
		}
		return m
	default:
		return nil
	}
}
