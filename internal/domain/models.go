// Package domain provides domain models and business logic for the Paper Search Service.
package domain

// SourceType identifies the source API or scraper that produced a paper record.
type SourceType string

const (
	SourceTypeArXiv     SourceType = "arxiv"
	SourceTypePubMed    SourceType = "pubmed"
	SourceTypeOpenAlex  SourceType = "openalex"
	SourceTypeCrossRef  SourceType = "crossref"
	SourceTypeDBLP      SourceType = "dblp"
	SourceTypeEuropePMC SourceType = "europepmc"
	SourceTypeHAL       SourceType = "hal"

	// Sources accepted in serialized input but without a bundled client.
	SourceTypeSSRN SourceType = "ssrn"
	SourceTypeCORE SourceType = "core"
	SourceTypePMC  SourceType = "pmc"
)

// ClientSourceTypes lists the sources this service ships a search client for,
// in the deterministic order used when flattening multi-source results.
func ClientSourceTypes() []SourceType {
	return []SourceType{
		SourceTypeArXiv,
		SourceTypePubMed,
		SourceTypeOpenAlex,
		SourceTypeCrossRef,
		SourceTypeDBLP,
		SourceTypeEuropePMC,
		SourceTypeHAL,
	}
}

// IsKnown returns true if the source type is one the service recognizes,
// either as a bundled client or as an accepted record producer.
func (s SourceType) IsKnown() bool {
	switch s {
	case SourceTypeArXiv, SourceTypePubMed, SourceTypeOpenAlex, SourceTypeCrossRef,
		SourceTypeDBLP, SourceTypeEuropePMC, SourceTypeHAL, SourceTypeSSRN,
		SourceTypeCORE, SourceTypePMC:
		return true
	default:
		return false
	}
}
