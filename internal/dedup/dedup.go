package dedup

import (
	"github.com/helixir/paper-search-service/internal/domain"
)

// Default thresholds.
const (
	// DefaultTitleThreshold is the title similarity required for the
	// title+author match tier.
	DefaultTitleThreshold = 0.9

	// DefaultClusterThreshold is the loose title similarity used by
	// ClusterSimilar for topical grouping.
	DefaultClusterThreshold = 0.3

	// minAuthorMatches is the number of matching author pairs required by
	// the author+year fallback tier.
	minAuthorMatches = 2
)

// KeepPolicy selects which record of a duplicate cluster survives.
type KeepPolicy string

const (
	// KeepFirst keeps the earliest record in input order.
	KeepFirst KeepPolicy = "first"

	// KeepLast keeps the latest record in input order.
	KeepLast KeepPolicy = "last"

	// KeepBest keeps the record with the highest completeness score.
	KeepBest KeepPolicy = "best"
)

// IsValid reports whether the policy is one of the supported values.
func (k KeepPolicy) IsValid() bool {
	switch k {
	case KeepFirst, KeepLast, KeepBest:
		return true
	default:
		return false
	}
}

// Config holds the thresholds for the deduplicator.
type Config struct {
	// TitleThreshold is the similarity above which two titles are treated
	// as the same title (default 0.9).
	TitleThreshold float64

	// ClusterThreshold is the default similarity for ClusterSimilar
	// (default 0.3).
	ClusterThreshold float64
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.TitleThreshold == 0 {
		c.TitleThreshold = DefaultTitleThreshold
	}
	if c.ClusterThreshold == 0 {
		c.ClusterThreshold = DefaultClusterThreshold
	}
}

// Deduplicator groups and collapses duplicate paper records. All methods are
// pure over their inputs: records are never mutated, and merge operations
// build new records.
type Deduplicator struct {
	cfg Config
}

// New creates a Deduplicator with the given configuration.
func New(cfg Config) *Deduplicator {
	cfg.applyDefaults()
	return &Deduplicator{cfg: cfg}
}

// DuplicateGroup pairs a cluster anchor with the later records that matched it.
type DuplicateGroup struct {
	Anchor     *domain.Paper
	Duplicates []*domain.Paper
}

// Deduplicate removes duplicate papers from the list, keeping one record per
// cluster according to the keep policy. An unknown policy falls back to
// keeping the first record. The input order of surviving records is preserved.
func (d *Deduplicator) Deduplicate(papers []*domain.Paper, keep KeepPolicy) []*domain.Paper {
	if len(papers) == 0 {
		return nil
	}

	groups := d.GroupDuplicates(papers)
	result := make([]*domain.Paper, 0, len(groups))
	for _, group := range groups {
		result = append(result, SelectRepresentative(group, keep))
	}
	return result
}

// MergeDuplicates collapses each duplicate cluster into a single synthesized
// record combining the most complete fields of all members. Singleton
// clusters pass through unchanged.
func (d *Deduplicator) MergeDuplicates(papers []*domain.Paper) []*domain.Paper {
	if len(papers) == 0 {
		return nil
	}

	groups := d.GroupDuplicates(papers)
	result := make([]*domain.Paper, 0, len(groups))
	for _, group := range groups {
		if len(group) == 1 {
			result = append(result, group[0])
			continue
		}
		result = append(result, MergeCluster(group))
	}
	return result
}

// FindDuplicates reports duplicate clusters without removing or merging
// anything. Only clusters with at least one duplicate are returned.
func (d *Deduplicator) FindDuplicates(papers []*domain.Paper) []DuplicateGroup {
	if len(papers) == 0 {
		return nil
	}

	var groups []DuplicateGroup
	for _, cluster := range d.GroupDuplicates(papers) {
		if len(cluster) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{
			Anchor:     cluster[0],
			Duplicates: cluster[1:],
		})
	}
	return groups
}

// GroupDuplicates partitions papers into clusters of records judged to denote
// the same publication.
//
// The grouping is a single left-to-right sweep: each unclaimed record opens a
// cluster and claims every later unclaimed record that matches it directly.
// This is deliberately NOT a transitive closure -- if record 0 matches record
// 1 and record 1 matches record 2, but 0 does not match 2, then 2 ends up in
// its own cluster. The sweep order determines which record anchors each
// cluster and is part of the observable contract.
func (d *Deduplicator) GroupDuplicates(papers []*domain.Paper) [][]*domain.Paper {
	return d.sweep(papers, d.SamePaper)
}

// ClusterSimilar groups papers whose titles are loosely similar, for topical
// clustering rather than strict duplicate detection. A threshold of 0 uses
// the configured cluster threshold.
func (d *Deduplicator) ClusterSimilar(papers []*domain.Paper, threshold float64) [][]*domain.Paper {
	if threshold == 0 {
		threshold = d.cfg.ClusterThreshold
	}
	return d.sweep(papers, func(a, b *domain.Paper) bool {
		return TitleSimilarity(a.Title, b.Title) >= threshold
	})
}

// sweep runs the shared single-pass grouping algorithm with the given
// pairwise predicate.
func (d *Deduplicator) sweep(papers []*domain.Paper, same func(a, b *domain.Paper) bool) [][]*domain.Paper {
	if len(papers) == 0 {
		return nil
	}

	claimed := make([]bool, len(papers))
	var groups [][]*domain.Paper

	for i, paper := range papers {
		if claimed[i] {
			continue
		}
		claimed[i] = true
		group := []*domain.Paper{paper}

		for j := i + 1; j < len(papers); j++ {
			if claimed[j] {
				continue
			}
			if same(paper, papers[j]) {
				group = append(group, papers[j])
				claimed[j] = true
			}
		}

		groups = append(groups, group)
	}

	return groups
}
