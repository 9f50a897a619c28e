// Package dblp provides a client for the DBLP computer science bibliography.
//
// DBLP indexes major computer science conference papers, journal articles,
// book chapters and theses. Searching uses the publication search API; single
// records are fetched as XML by their DBLP key.
//
// API Documentation: https://dblp.org/faq/How+to+use+the+dblp+API.html
package dblp

import (
	"encoding/json"
	"encoding/xml"
)

// SearchResponse represents the top-level JSON response from the publication
// search API.
type SearchResponse struct {
	Result Result `json:"result"`
}

// Result wraps the hit list and its counters.
type Result struct {
	Hits Hits `json:"hits"`
}

// Hits carries the matched publications. DBLP encodes the counters as
// string-valued attributes.
type Hits struct {
	Total string `json:"@total"`
	First string `json:"@first"`
	Sent  string `json:"@sent"`
	Hit   []Hit  `json:"hit"`
}

// Hit is a single search match.
type Hit struct {
	ID   string `json:"@id"`
	Info Info   `json:"info"`
}

// Info holds the bibliographic fields of a hit.
type Info struct {
	Authors AuthorList `json:"authors"`
	Title   string     `json:"title"`
	Venue   string     `json:"venue"`
	Volume  string     `json:"volume"`
	Number  string     `json:"number"`
	Pages   string     `json:"pages"`
	Year    string     `json:"year"`
	Type    string     `json:"type"`
	Access  string     `json:"access"`
	Key     string     `json:"key"`
	DOI     string     `json:"doi"`
	EE      string     `json:"ee"`
	URL     string     `json:"url"`
}

// AuthorList handles DBLP's habit of encoding a single author as an object
// and multiple authors as an array.
type AuthorList struct {
	Author []Author `json:"author"`
}

// Author is a single publication author.
type Author struct {
	PID  string `json:"@pid"`
	Name string `json:"text"`
}

// UnmarshalJSON accepts both {"author": {...}} and {"author": [{...}]}.
func (l *AuthorList) UnmarshalJSON(data []byte) error {
	var multi struct {
		Author []Author `json:"author"`
	}
	if err := json.Unmarshal(data, &multi); err == nil {
		l.Author = multi.Author
		return nil
	}

	var single struct {
		Author Author `json:"author"`
	}
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	l.Author = []Author{single.Author}
	return nil
}

// RecordResponse represents the XML record returned by /rec/{key}.xml. The
// child element name depends on the publication type.
type RecordResponse struct {
	XMLName       xml.Name `xml:"dblp"`
	Article       *Record  `xml:"article"`
	InProceedings *Record  `xml:"inproceedings"`
	Proceedings   *Record  `xml:"proceedings"`
	Book          *Record  `xml:"book"`
	InCollection  *Record  `xml:"incollection"`
	PhDThesis     *Record  `xml:"phdthesis"`
}

// Record holds the bibliographic fields of a single DBLP record.
type Record struct {
	Key       string   `xml:"key,attr"`
	Title     string   `xml:"title"`
	Authors   []string `xml:"author"`
	Year      string   `xml:"year"`
	Journal   string   `xml:"journal"`
	BookTitle string   `xml:"booktitle"`
	School    string   `xml:"school"`
	Volume    string   `xml:"volume"`
	Number    string   `xml:"number"`
	Pages     string   `xml:"pages"`
	EE        []string `xml:"ee"`
	URL       string   `xml:"url"`
	Publisher string   `xml:"publisher"`
	ISBN      string   `xml:"isbn"`
}

// publication returns whichever record variant the response carries.
func (r *RecordResponse) publication() *Record {
	for _, rec := range []*Record{r.Article, r.InProceedings, r.Proceedings, r.Book, r.InCollection, r.PhDThesis} {
		if rec != nil {
			return rec
		}
	}
	return nil
}
