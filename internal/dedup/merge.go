package dedup

import (
	"github.com/helixir/paper-search-service/internal/domain"
)

// Completeness score weights. Carried over unchanged for behavioral
// compatibility; tunable constants rather than a principled scoring function.
const (
	scoreTitle      = 1
	scoreAbstract   = 2
	scoreDOI        = 2
	scoreAuthors    = 1
	scorePDFURL     = 2
	scoreCategories = 1
)

// mergedFromKey is the Extra key recording the source tags that contributed
// to a merged record.
const mergedFromKey = "merged_from"

// SelectRepresentative picks one record from a cluster according to the keep
// policy. KeepBest maximizes the completeness score with ties broken by
// earliest input position; unknown policies fall back to KeepFirst.
// The cluster must be non-empty.
func SelectRepresentative(cluster []*domain.Paper, keep KeepPolicy) *domain.Paper {
	switch keep {
	case KeepLast:
		return cluster[len(cluster)-1]
	case KeepBest:
		best := cluster[0]
		bestScore := completenessScore(best)
		for _, p := range cluster[1:] {
			// Strictly greater keeps the earliest record on ties.
			if s := completenessScore(p); s > bestScore {
				best, bestScore = p, s
			}
		}
		return best
	default:
		return cluster[0]
	}
}

// completenessScore is a heuristic for how complete a record's metadata is.
func completenessScore(p *domain.Paper) int {
	score := 0
	if p.Title != "" {
		score += scoreTitle
	}
	if p.Abstract != "" {
		score += scoreAbstract
	}
	if p.DOI != "" {
		score += scoreDOI
	}
	if len(p.Authors) > 0 {
		score += scoreAuthors
	}
	if p.PDFURL != "" {
		score += scorePDFURL
	}
	if len(p.Categories) > 0 {
		score += scoreCategories
	}
	return score
}

// MergeCluster synthesizes a single record from a cluster of duplicates:
//
//   - scalar fields take the first non-empty value in cluster order, falling
//     back to the anchor's value;
//   - the published date is the earliest non-sentinel date, or the sentinel
//     if no member has a known date;
//   - list fields concatenate in first-seen order with exact-value dedup;
//   - citations take the maximum across members;
//   - Extra maps are shallow-unioned in cluster order (last write wins), with
//     a "merged_from" key listing every contributing source tag;
//   - ID and Source come from the anchor.
//
// The cluster must be non-empty; its members are not mutated.
func MergeCluster(cluster []*domain.Paper) *domain.Paper {
	anchor := cluster[0]

	merged := &domain.Paper{
		ID:     anchor.ID,
		Source: anchor.Source,
	}

	merged.Title = firstNonEmpty(cluster, func(p *domain.Paper) string { return p.Title })
	merged.Abstract = firstNonEmpty(cluster, func(p *domain.Paper) string { return p.Abstract })
	merged.DOI = firstNonEmpty(cluster, func(p *domain.Paper) string { return p.DOI })
	merged.PDFURL = firstNonEmpty(cluster, func(p *domain.Paper) string { return p.PDFURL })
	merged.URL = firstNonEmpty(cluster, func(p *domain.Paper) string { return p.URL })

	merged.PublishedDate = anchor.PublishedDate
	for _, p := range cluster[1:] {
		if p.PublishedDate.IsZero() {
			continue
		}
		if merged.PublishedDate.IsZero() || p.PublishedDate.Before(merged.PublishedDate) {
			merged.PublishedDate = p.PublishedDate
		}
	}

	merged.Authors = mergeLists(cluster, func(p *domain.Paper) []string { return p.Authors })
	merged.Categories = mergeLists(cluster, func(p *domain.Paper) []string { return p.Categories })
	merged.Keywords = mergeLists(cluster, func(p *domain.Paper) []string { return p.Keywords })
	merged.References = mergeLists(cluster, func(p *domain.Paper) []string { return p.References })

	for _, p := range cluster {
		if p.Citations > merged.Citations {
			merged.Citations = p.Citations
		}
	}

	extra := make(map[string]any)
	for _, p := range cluster {
		for k, v := range p.Extra {
			extra[k] = v
		}
	}
	sources := make([]string, len(cluster))
	for i, p := range cluster {
		sources[i] = string(p.Source)
	}
	extra[mergedFromKey] = sources
	merged.Extra = extra

	return merged
}

// firstNonEmpty returns the first non-empty value of the field across the
// cluster, or the anchor's value (possibly empty) if none is set.
func firstNonEmpty(cluster []*domain.Paper, field func(*domain.Paper) string) string {
	for _, p := range cluster {
		if v := field(p); v != "" {
			return v
		}
	}
	return field(cluster[0])
}

// mergeLists concatenates the field across the cluster in first-seen order,
// dropping exact duplicates and empty entries.
func mergeLists(cluster []*domain.Paper, field func(*domain.Paper) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range cluster {
		for _, item := range field(p) {
			if item == "" {
				continue
			}
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
