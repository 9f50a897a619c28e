package dedup

import (
	"math"
	"strings"

	"github.com/helixir/paper-search-service/internal/domain"
)

// ContentSimilarity computes a TF-IDF cosine similarity in [0,1] over the
// combined textual fields (title, abstract, keywords) of exactly two records.
// The corpus consists of just these two documents; document frequencies are
// smoothed so terms shared by both documents still contribute weight.
// Returns 0.0 when either record has no usable text.
func ContentSimilarity(a, b *domain.Paper) float64 {
	docA := tokenize(recordText(a))
	docB := tokenize(recordText(b))
	if len(docA) == 0 || len(docB) == 0 {
		return 0.0
	}

	tfA := termFrequencies(docA)
	tfB := termFrequencies(docB)

	// Smoothed IDF over the two-document corpus: idf = ln((1+N)/(1+df)) + 1.
	// Without smoothing every shared term would get zero weight, making two
	// identical documents score 0.
	const numDocs = 2.0
	idf := func(term string) float64 {
		df := 0.0
		if _, ok := tfA[term]; ok {
			df++
		}
		if _, ok := tfB[term]; ok {
			df++
		}
		return math.Log((1+numDocs)/(1+df)) + 1
	}

	var dot, normA, normB float64
	for term, fa := range tfA {
		w := idf(term)
		wa := fa * w
		normA += wa * wa
		if fb, ok := tfB[term]; ok {
			dot += wa * fb * w
		}
	}
	for term, fb := range tfB {
		wb := fb * idf(term)
		normB += wb * wb
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// recordText concatenates the textual fields used for content comparison.
func recordText(p *domain.Paper) string {
	parts := make([]string, 0, 2+len(p.Keywords))
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	if p.Abstract != "" {
		parts = append(parts, p.Abstract)
	}
	parts = append(parts, p.Keywords...)
	return strings.Join(parts, " ")
}

// tokenize lowercases the text, strips punctuation, and splits on whitespace.
func tokenize(text string) []string {
	return strings.Fields(NormalizeTitle(text))
}

// termFrequencies returns relative term frequencies for a token list.
func termFrequencies(tokens []string) map[string]float64 {
	counts := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	total := float64(len(tokens))
	for t := range counts {
		counts[t] /= total
	}
	return counts
}
