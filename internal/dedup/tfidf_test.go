package dedup

import (
	"math"
	"testing"

	"github.com/helixir/paper-search-service/internal/domain"
)

func TestContentSimilarity_IdenticalText(t *testing.T) {
	t.Parallel()

	a := &domain.Paper{
		Title:    "Graph Neural Networks",
		Abstract: "We study message passing on molecular graphs.",
	}
	b := a.Clone()

	got := ContentSimilarity(a, b)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("ContentSimilarity of identical text = %v, want 1.0", got)
	}
}

func TestContentSimilarity_DisjointText(t *testing.T) {
	t.Parallel()

	a := &domain.Paper{Title: "Quantum Error Correction"}
	b := &domain.Paper{Title: "Medieval Baltic Trade"}

	if got := ContentSimilarity(a, b); got != 0.0 {
		t.Errorf("ContentSimilarity of disjoint text = %v, want 0.0", got)
	}
}

func TestContentSimilarity_PartialOverlap(t *testing.T) {
	t.Parallel()

	a := &domain.Paper{
		Title:    "Deep Learning for Protein Folding",
		Abstract: "Neural networks predict protein structure.",
	}
	b := &domain.Paper{
		Title:    "Protein Structure Prediction",
		Abstract: "A deep learning approach to folding.",
	}

	got := ContentSimilarity(a, b)
	if got <= 0.0 || got >= 1.0 {
		t.Errorf("ContentSimilarity of overlapping text = %v, want strictly between 0 and 1", got)
	}
}

func TestContentSimilarity_Symmetric(t *testing.T) {
	t.Parallel()

	a := &domain.Paper{Title: "Attention Mechanisms", Keywords: []string{"transformers", "attention"}}
	b := &domain.Paper{Title: "Transformers Explained", Abstract: "Attention layers in sequence models."}

	ab := ContentSimilarity(a, b)
	ba := ContentSimilarity(b, a)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("ContentSimilarity not symmetric: %v vs %v", ab, ba)
	}
}

func TestContentSimilarity_EmptyRecords(t *testing.T) {
	t.Parallel()

	empty := &domain.Paper{}
	full := &domain.Paper{Title: "Some Title"}

	if got := ContentSimilarity(empty, full); got != 0.0 {
		t.Errorf("ContentSimilarity with empty record = %v, want 0.0", got)
	}
	if got := ContentSimilarity(empty, empty); got != 0.0 {
		t.Errorf("ContentSimilarity of two empty records = %v, want 0.0", got)
	}
}

func TestContentSimilarity_KeywordsContribute(t *testing.T) {
	t.Parallel()

	a := &domain.Paper{Title: "Study One", Keywords: []string{"genomics", "sequencing"}}
	b := &domain.Paper{Title: "Study Two", Keywords: []string{"genomics", "sequencing"}}

	if got := ContentSimilarity(a, b); got <= 0.0 {
		t.Errorf("shared keywords should contribute similarity, got %v", got)
	}
}
