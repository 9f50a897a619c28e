package domain

import (
	"time"
)

// Paper represents an academic paper record as produced by a source client.
//
// Records from different sources describing the same publication are collapsed
// by the dedup engine; see internal/dedup. ID is source-assigned and only
// unique together with Source within one fetch batch.
type Paper struct {
	// ID is the source-assigned identifier (arXiv ID, PMID, DOI, ...).
	ID string

	// Title is the paper title. May be empty for degenerate records.
	Title string

	// Authors holds display names in source order. Formats vary by source
	// ("Last F." vs "First Last").
	Authors []string

	// Abstract may be empty; length capping is the source client's concern.
	Abstract string

	// DOI may be bare, URL-prefixed, or "doi:"-prefixed. Compare only after
	// normalization (dedup.NormalizeDOI).
	DOI string

	// PublishedDate is the publication date, or the zero time.Time sentinel
	// when unknown. The sentinel must never be treated as a real date.
	PublishedDate time.Time

	// PDFURL points at the full-text PDF when the source exposes one.
	PDFURL string

	// URL is the paper's landing page at the source.
	URL string

	// Source tags the origin client.
	Source SourceType

	Categories []string
	Keywords   []string
	References []string

	// Citations is the citation count reported by the source.
	Citations int

	// Extra carries source-specific metadata opaquely through dedup merges.
	Extra map[string]any
}

// Year returns the publication year, or 0 when the date is the unknown
// sentinel. A zero year must never be treated as equal to another zero year.
func (p *Paper) Year() int {
	if p.PublishedDate.IsZero() {
		return 0
	}
	return p.PublishedDate.Year()
}

// HasDOI returns true if the record carries a (possibly unnormalized) DOI.
func (p *Paper) HasDOI() bool {
	return p.DOI != ""
}

// Clone returns a deep copy of the paper. Dedup and merge operations never
// mutate records in place; they work on copies or build new records.
func (p *Paper) Clone() *Paper {
	c := *p
	c.Authors = cloneStrings(p.Authors)
	c.Categories = cloneStrings(p.Categories)
	c.Keywords = cloneStrings(p.Keywords)
	c.References = cloneStrings(p.References)
	if p.Extra != nil {
		c.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
