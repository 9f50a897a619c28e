// Package hal provides a client for HAL, the French multi-disciplinary open
// archive of scientific documents (theses, preprints, articles, reports).
//
// HAL exposes a Solr-backed JSON search API; single documents are fetched
// through the document endpoint, which returns the same response shape.
//
// API Documentation: https://api.archives-ouvertes.fr/docs
package hal

import "encoding/json"

// SearchResponse is the top-level JSON envelope of the search API.
type SearchResponse struct {
	Response Response `json:"response"`
}

// Response wraps the matched documents and their counters.
type Response struct {
	NumFound int   `json:"numFound"`
	Start    int   `json:"start"`
	Docs     []Doc `json:"docs"`
}

// Doc holds the Solr fields of one HAL document. Several fields come back
// either as a single string or as a list depending on the record, so they
// decode through StringList.
type Doc struct {
	DocID       json.Number `json:"docid"`
	HalID       string      `json:"halId_s"`
	Titles      StringList  `json:"title_s"`
	AuthorNames StringList  `json:"authFullName_s"`
	Authors     StringList  `json:"author_s"`
	Abstracts   StringList  `json:"abstract_s"`
	DOI         string      `json:"doiId_s"`
	URL         string      `json:"uri_s"`
	FileURL     string      `json:"fileMain_s"`
	Produced    string      `json:"producedDate_s"`
	DocType     string      `json:"docType_s"`
	Journal     string      `json:"journalTitle_s"`
	BookTitle   string      `json:"bookTitle_s"`
	Conference  string      `json:"conferenceTitle_s"`
	Institution StringList  `json:"instStructName_s"`
	Keywords    StringList  `json:"keyword_s"`
	Language    StringList  `json:"language_s"`
	Domains     StringList  `json:"domain_s"`
	Pages       string      `json:"page_s"`
}

// StringList handles Solr's habit of encoding single-valued fields as a bare
// string and multi-valued fields as an array.
type StringList []string

// UnmarshalJSON accepts both "value" and ["value", ...].
func (l *StringList) UnmarshalJSON(data []byte) error {
	var multi []string
	if err := json.Unmarshal(data, &multi); err == nil {
		*l = multi
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = StringList{single}
	return nil
}

// First returns the first element or the empty string.
func (l StringList) First() string {
	if len(l) == 0 {
		return ""
	}
	return l[0]
}
