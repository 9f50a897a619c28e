package dedup

import (
	"testing"

	"github.com/helixir/paper-search-service/internal/domain"
)

func doiPaper(id, doi string) *domain.Paper {
	return &domain.Paper{
		ID:     id,
		Title:  "Title " + id,
		DOI:    doi,
		Source: domain.SourceTypeArXiv,
	}
}

func TestGroupDuplicates_AllSameDOI(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		doiPaper("1", "10.1/x"),
		doiPaper("2", "https://doi.org/10.1/x"),
		doiPaper("3", "doi:10.1/x"),
		doiPaper("4", "10.1/X"),
	}

	groups := d.GroupDuplicates(papers)
	if len(groups) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(groups))
	}
	if len(groups[0]) != len(papers) {
		t.Fatalf("expected cluster of size %d, got %d", len(papers), len(groups[0]))
	}
	if groups[0][0].ID != "1" {
		t.Errorf("cluster anchor should be the first record, got %s", groups[0][0].ID)
	}
}

func TestGroupDuplicates_AllDistinct(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		{ID: "1", Title: "Quantum Error Correction", DOI: "10.1/a"},
		{ID: "2", Title: "Medieval Agriculture Patterns", DOI: "10.1/b"},
		{ID: "3", Title: "Protein Folding Dynamics", DOI: "10.1/c"},
	}

	groups := d.GroupDuplicates(papers)
	if len(groups) != len(papers) {
		t.Fatalf("expected %d singleton clusters, got %d", len(papers), len(groups))
	}
	for i, g := range groups {
		if len(g) != 1 {
			t.Errorf("cluster %d: expected singleton, got size %d", i, len(g))
		}
	}
}

// The grouping sweep is intentionally not a transitive closure: record 0
// matches record 1 (shared DOI) and record 1 would match record 2 (title and
// author), but record 0 does not match record 2 directly. Record 1 is claimed
// by record 0's cluster before it can anchor its own, so record 2 stays a
// singleton. A union-find implementation would merge all three; that would
// change observable results and must not be introduced silently.
func TestGroupDuplicates_NotTransitive(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	p0 := &domain.Paper{
		ID:      "0",
		Title:   "An Entirely Unrelated Subject",
		Authors: []string{"Somebody Else"},
		DOI:     "10.1/x",
	}
	p1 := &domain.Paper{
		ID:      "1",
		Title:   "Graph Neural Networks for Molecules",
		Authors: []string{"Jane Doe"},
		DOI:     "10.1/x",
	}
	p2 := &domain.Paper{
		ID:      "2",
		Title:   "Graph Neural Networks for Molecules",
		Authors: []string{"Jane Doe"},
	}

	if !d.SamePaper(p0, p1) || !d.SamePaper(p1, p2) {
		t.Fatal("test setup: expected 0~1 and 1~2 to match")
	}
	if d.SamePaper(p0, p2) {
		t.Fatal("test setup: expected 0 and 2 not to match directly")
	}

	groups := d.GroupDuplicates([]*domain.Paper{p0, p1, p2})
	if len(groups) != 2 {
		t.Fatalf("expected 2 clusters (non-transitive sweep), got %d", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][0].ID != "0" || groups[0][1].ID != "1" {
		t.Errorf("first cluster should be [0 1], got %v", ids(groups[0]))
	}
	if len(groups[1]) != 1 || groups[1][0].ID != "2" {
		t.Errorf("second cluster should be [2], got %v", ids(groups[1]))
	}
}

func TestDeduplicate_KeepFirst(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		doiPaper("first", "10.1/x"),
		doiPaper("second", "10.1/x"),
	}

	got := d.Deduplicate(papers, KeepFirst)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].ID != "first" {
		t.Errorf("keep=first should return the first record, got %s", got[0].ID)
	}
}

func TestDeduplicate_KeepLast(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		doiPaper("first", "10.1/x"),
		doiPaper("second", "10.1/x"),
		doiPaper("third", "10.1/x"),
	}

	got := d.Deduplicate(papers, KeepLast)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].ID != "third" {
		t.Errorf("keep=last should return the last record, got %s", got[0].ID)
	}
}

func TestDeduplicate_KeepBest(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	sparse := doiPaper("sparse", "10.1/x")
	complete := doiPaper("complete", "10.1/x")
	complete.Abstract = "An abstract."
	complete.Authors = []string{"Jane Doe"}
	complete.PDFURL = "https://example.org/paper.pdf"
	complete.Categories = []string{"cs.LG"}

	got := d.Deduplicate([]*domain.Paper{sparse, complete}, KeepBest)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].ID != "complete" {
		t.Errorf("keep=best should return the most complete record, got %s", got[0].ID)
	}
}

func TestDeduplicate_KeepBest_TieKeepsEarliest(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		doiPaper("first", "10.1/x"),
		doiPaper("second", "10.1/x"),
	}

	got := d.Deduplicate(papers, KeepBest)
	if len(got) != 1 || got[0].ID != "first" {
		t.Errorf("equal completeness scores should keep the earliest record, got %v", ids(got))
	}
}

func TestDeduplicate_UnknownPolicyFallsBackToFirst(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		doiPaper("first", "10.1/x"),
		doiPaper("second", "10.1/x"),
	}

	got := d.Deduplicate(papers, KeepPolicy("bogus"))
	if len(got) != 1 || got[0].ID != "first" {
		t.Errorf("unknown keep policy should fall back to first, got %v", ids(got))
	}
}

func TestDeduplicate_EmptyInput(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	if got := d.Deduplicate(nil, KeepFirst); len(got) != 0 {
		t.Errorf("empty input should yield empty output, got %d records", len(got))
	}
	if got := d.MergeDuplicates(nil); len(got) != 0 {
		t.Errorf("empty input should yield empty output, got %d records", len(got))
	}
	if got := d.FindDuplicates(nil); len(got) != 0 {
		t.Errorf("empty input should yield no groups, got %d", len(got))
	}
}

func TestFindDuplicates(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		doiPaper("1", "10.1/x"),
		{ID: "2", Title: "Something Unrelated Entirely"},
		doiPaper("3", "10.1/x"),
	}

	groups := d.FindDuplicates(papers)
	if len(groups) != 1 {
		t.Fatalf("expected 1 duplicate group, got %d", len(groups))
	}
	if groups[0].Anchor.ID != "1" {
		t.Errorf("anchor should be record 1, got %s", groups[0].Anchor.ID)
	}
	if len(groups[0].Duplicates) != 1 || groups[0].Duplicates[0].ID != "3" {
		t.Errorf("duplicates should be [3], got %v", ids(groups[0].Duplicates))
	}
}

func TestClusterSimilar(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		{ID: "1", Title: "Deep Learning for Protein Structures"},
		{ID: "2", Title: "Deep Learning for Protein Folding"},
		{ID: "3", Title: "Medieval Trade Routes in the Baltic"},
	}

	clusters := d.ClusterSimilar(papers, 0.6)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 topical clusters, got %d", len(clusters))
	}
	if len(clusters[0]) != 2 {
		t.Errorf("first cluster should contain both protein papers, got %v", ids(clusters[0]))
	}
}

func TestClusterSimilar_DefaultThreshold(t *testing.T) {
	t.Parallel()
	d := New(Config{})

	papers := []*domain.Paper{
		{ID: "1", Title: "Learning Representations of Graphs"},
		{ID: "2", Title: "Representations of Graphs via Learning"},
	}

	// Threshold 0 uses the configured default (0.3), loose enough here.
	clusters := d.ClusterSimilar(papers, 0)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster at the default threshold, got %d", len(clusters))
	}
}

func ids(papers []*domain.Paper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.ID
	}
	return out
}
