package dedup

import (
	"strings"

	"github.com/helixir/paper-search-service/internal/domain"
)

// SamePaper decides whether two records denote the same publication. The
// decision is tiered, short-circuiting on the first tier that fires:
//
//  1. DOI match: both normalized DOIs non-empty and equal.
//  2. Title + author: titles similar at the configured threshold, both
//     author lists non-empty, and at least one author name of one record is
//     a case-insensitive substring of an author name of the other.
//  3. Author + year: at least two matching author pairs and an equal, known
//     publication year on both sides.
//
// A record with an empty DOI never matches via tier 1, an empty title never
// satisfies tier 2, and the unknown-year sentinel never equals another
// unknown year in tier 3.
func (d *Deduplicator) SamePaper(a, b *domain.Paper) bool {
	doiA := NormalizeDOI(a.DOI)
	doiB := NormalizeDOI(b.DOI)
	if doiA != "" && doiB != "" && doiA == doiB {
		return true
	}

	authorsA := normalizeAuthors(a.Authors)
	authorsB := normalizeAuthors(b.Authors)

	if AreTitlesSimilar(a.Title, b.Title, d.cfg.TitleThreshold) {
		if len(authorsA) > 0 && len(authorsB) > 0 && countAuthorMatches(authorsA, authorsB) >= 1 {
			return true
		}
	}

	if len(authorsA) > 0 && len(authorsB) > 0 {
		if countAuthorMatches(authorsA, authorsB) >= minAuthorMatches {
			yearA := a.Year()
			yearB := b.Year()
			// Year 0 is the unknown sentinel; two unknowns must not match.
			if yearA != 0 && yearB != 0 && yearA == yearB {
				return true
			}
		}
	}

	return false
}

// normalizeAuthors lowercases and trims author names, dropping names that end
// up empty so they cannot trivially satisfy the substring check.
func normalizeAuthors(authors []string) []string {
	out := make([]string, 0, len(authors))
	for _, a := range authors {
		name := strings.ToLower(strings.TrimSpace(a))
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

// countAuthorMatches counts pairs (a, b) across the two lists where one name
// contains the other. Containment covers the "Last F." vs "First Last"
// formatting variation across sources well enough for the matcher's purposes.
func countAuthorMatches(authorsA, authorsB []string) int {
	matches := 0
	for _, a := range authorsA {
		for _, b := range authorsB {
			if strings.Contains(a, b) || strings.Contains(b, a) {
				matches++
			}
		}
	}
	return matches
}
