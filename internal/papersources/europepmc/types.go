// Package europepmc provides a client for the Europe PMC REST API.
//
// Europe PMC aggregates PubMed abstracts, PMC full-text articles and
// preprints from bioRxiv, medRxiv and others. This package implements the
// PaperSource interface for searching and retrieving papers.
//
// API Documentation: https://europepmc.org/RestfulWebService
package europepmc

// SearchResponse represents the top-level response from the search endpoint.
type SearchResponse struct {
	Version        string     `json:"version"`
	HitCount       int        `json:"hitCount"`
	NextCursorMark string     `json:"nextCursorMark"`
	ResultList     ResultList `json:"resultList"`
}

// ResultList wraps the matched articles.
type ResultList struct {
	Result []Article `json:"result"`
}

// ArticleResponse represents the response from the single-article endpoint.
type ArticleResponse struct {
	Version  string   `json:"version"`
	HitCount int      `json:"hitCount"`
	Result   *Article `json:"result"`
}

// Article represents a single Europe PMC record.
type Article struct {
	ID                   string           `json:"id"`
	Source               string           `json:"source"`
	PMID                 string           `json:"pmid"`
	PMCID                string           `json:"pmcid"`
	DOI                  string           `json:"doi"`
	Title                string           `json:"title"`
	AuthorString         string           `json:"authorString"`
	AuthorList           *AuthorList      `json:"authorList"`
	AbstractText         string           `json:"abstractText"`
	JournalTitle         string           `json:"journalTitle"`
	JournalInfo          *JournalInfo     `json:"journalInfo"`
	PubYear              string           `json:"pubYear"`
	FirstPublicationDate string           `json:"firstPublicationDate"`
	PubType              string           `json:"pubType"`
	IsOpenAccess         string           `json:"isOpenAccess"`
	CitedByCount         int              `json:"citedByCount"`
	KeywordList          *KeywordList     `json:"keywordList"`
	MeshHeadingList      *MeshHeadingList `json:"meshHeadingList"`
	FullTextURLList      *FullTextURLList `json:"fullTextUrlList"`
}

// AuthorList wraps the structured author entries.
type AuthorList struct {
	Author []Author `json:"author"`
}

// Author is a single structured author entry.
type Author struct {
	FullName       string `json:"fullName"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Initials       string `json:"initials"`
	CollectiveName string `json:"collectiveName"`
}

// JournalInfo carries the journal block of a core-result record.
type JournalInfo struct {
	Volume  string   `json:"volume"`
	Issue   string   `json:"issue"`
	Journal *Journal `json:"journal"`
}

// Journal identifies the publication venue.
type Journal struct {
	Title         string `json:"title"`
	ISOAbbrev     string `json:"isoabbreviation"`
	MedlineAbbrev string `json:"medlineAbbreviation"`
}

// KeywordList wraps author-supplied keywords.
type KeywordList struct {
	Keyword []string `json:"keyword"`
}

// MeshHeadingList wraps the MeSH annotations.
type MeshHeadingList struct {
	MeshHeading []MeshHeading `json:"meshHeading"`
}

// MeshHeading is a single MeSH descriptor.
type MeshHeading struct {
	DescriptorName string `json:"descriptorName"`
	MajorTopicYN   string `json:"majorTopic_YN"`
}

// FullTextURLList wraps the full-text links of a record.
type FullTextURLList struct {
	FullTextURL []FullTextURL `json:"fullTextUrl"`
}

// FullTextURL is a single full-text link.
type FullTextURL struct {
	URL           string `json:"url"`
	DocumentStyle string `json:"documentStyle"`
	Availability  string `json:"availability"`
	Site          string `json:"site"`
}
