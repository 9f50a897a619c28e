// Package dedup identifies and collapses duplicate paper records fetched from
// multiple sources. The same publication routinely appears in several source
// APIs (arXiv, OpenAlex, CrossRef, ...) with inconsistently formatted metadata.
// Matching is tiered: DOI equality first, then title similarity corroborated by
// author overlap, then author+year overlap as a fallback.
package dedup

import (
	"strings"
)

// doiPrefixes are stripped from DOIs before comparison, checked in this order.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"doi:",
	"doi.org/",
}

// titlePunctuation is the punctuation replaced by spaces in NormalizeTitle.
const titlePunctuation = ".,!?;:-()[]{}"

// NormalizeDOI normalizes a DOI string for comparison: lowercases, strips any
// known URL or scheme prefix, and trims surrounding whitespace and trailing
// slashes. Idempotent; empty input yields an empty string.
func NormalizeDOI(doi string) string {
	if doi == "" {
		return ""
	}
	doi = strings.ToLower(doi)
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(doi, prefix) {
			doi = doi[len(prefix):]
		}
	}
	return strings.TrimRight(strings.TrimSpace(doi), "/")
}

// NormalizeTitle normalizes a title for comparison: lowercases, replaces
// common punctuation with spaces, and collapses runs of whitespace.
// Empty input yields an empty string.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}
	title = strings.ToLower(title)
	title = strings.Map(func(r rune) rune {
		if strings.ContainsRune(titlePunctuation, r) {
			return ' '
		}
		return r
	}, title)
	return strings.Join(strings.Fields(title), " ")
}
