// Package crossref provides a client for the CrossRef REST API.
//
// CrossRef is the DOI registration agency for scholarly publishing and
// exposes metadata for over 150 million works. This package implements the
// PaperSource interface for searching and retrieving works from CrossRef.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorksResponse represents the top-level response from the /works endpoint.
type WorksResponse struct {
	Status      string       `json:"status"`
	MessageType string       `json:"message-type"`
	Message     WorksMessage `json:"message"`
}

// WorksMessage contains the search results and pagination info.
type WorksMessage struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// WorkResponse represents the response for a single work lookup.
type WorkResponse struct {
	Status      string `json:"status"`
	MessageType string `json:"message-type"`
	Message     Work   `json:"message"`
}

// Work represents a single work (paper) in CrossRef.
type Work struct {
	DOI             string      `json:"DOI"`
	Title           []string    `json:"title"`
	Subtitle        []string    `json:"subtitle"`
	Author          []Author    `json:"author"`
	Abstract        string      `json:"abstract"`
	Issued          DateParts   `json:"issued"`
	PublishedPrint  *DateParts  `json:"published-print"`
	PublishedOnline *DateParts  `json:"published-online"`
	URL             string      `json:"URL"`
	Link            []Link      `json:"link"`
	ContainerTitle  []string    `json:"container-title"`
	Subject         []string    `json:"subject"`
	Type            string      `json:"type"`
	Publisher       string      `json:"publisher"`
	Volume          string      `json:"volume"`
	Issue           string      `json:"issue"`
	Page            string      `json:"page"`
	ReferenceCount  int         `json:"reference-count"`
	CitedByCount    int         `json:"is-referenced-by-count"`
	Reference       []Reference `json:"reference"`
}

// Author represents a work author.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
	ORCID  string `json:"ORCID"`
}

// DateParts holds a CrossRef date as nested [[year, month, day]] parts.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Link represents a full-text link attached to a work.
type Link struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
	Application string `json:"intended-application"`
}

// Reference represents a cited reference.
type Reference struct {
	Key          string `json:"key"`
	DOI          string `json:"DOI"`
	Unstructured string `json:"unstructured"`
}
