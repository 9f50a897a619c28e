package hal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default HAL API base URL.
	DefaultBaseURL = "https://api.archives-ouvertes.fr"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 20

	// MaxRows is the HAL API limit for rows per request.
	MaxRows = 1000

	// abstractLimit caps stored abstract length in runes.
	abstractLimit = 5000

	// maxKeywords caps the keywords carried over per document.
	maxKeywords = 10

	// sourceName is the human-readable name for this source.
	sourceName = "HAL"
)

// docTypeNames maps HAL document type codes to readable names.
var docTypeNames = map[string]string{
	"THESE":    "thesis",
	"PREPRINT": "preprint",
	"ART":      "article",
	"COMM":     "communication",
	"REPORT":   "report",
	"OUV":      "book",
	"COUV":     "chapter",
}

// Config holds configuration for the HAL client.
type Config struct {
	// BaseURL is the HAL API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements the papersources.PaperSource interface for HAL.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new HAL client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new HAL client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries HAL for documents matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("hal source is disabled")
	}

	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var searchResp SearchResponse
	if err := c.getJSON(ctx, searchURL, &searchResp); err != nil {
		return nil, err
	}

	papers := make([]*domain.Paper, 0, len(searchResp.Response.Docs))
	for i := range searchResp.Response.Docs {
		paper := docToPaper(&searchResp.Response.Docs[i])
		if paper != nil {
			papers = append(papers, paper)
		}
	}

	nextOffset := params.Offset + len(papers)
	hasMore := nextOffset < searchResp.Response.NumFound

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   searchResp.Response.NumFound,
		HasMore:        hasMore,
		NextOffset:     nextOffset,
		Source:         domain.SourceTypeHAL,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a specific document by its HAL identifier.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("hal source is disabled")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/search/"
	query := url.Values{}
	query.Set("q", "halId_s:"+quoteSolrValue(id))
	query.Set("rows", "1")
	query.Set("wt", "json")
	baseURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.NewNotFoundError("paper", id)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(searchResp.Response.Docs) == 0 {
		return nil, domain.NewNotFoundError("paper", id)
	}

	paper := docToPaper(&searchResp.Response.Docs[0])
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}

	return paper, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeHAL
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// getJSON executes a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// buildSearchURL constructs the Solr search URL.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/search/"

	query := url.Values{}
	q := params.Query
	if q == "" {
		q = "*"
	}
	query.Set("q", q)
	query.Set("wt", "json")

	// producedDate_s holds ISO dates, so a lexical range filter works.
	if params.DateFrom != nil || params.DateTo != nil {
		from, to := "*", "*"
		if params.DateFrom != nil {
			from = params.DateFrom.Format("2006-01-02")
		}
		if params.DateTo != nil {
			to = params.DateTo.Format("2006-01-02")
		}
		query.Set("fq", fmt.Sprintf("producedDate_s:[%s TO %s]", from, to))
	}

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxRows {
		maxResults = MaxRows
	}
	query.Set("rows", strconv.Itoa(maxResults))

	if params.Offset > 0 {
		query.Set("start", strconv.Itoa(params.Offset))
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// docToPaper converts a HAL document to a domain Paper. Documents without a
// title or identifier are dropped.
func docToPaper(doc *Doc) *domain.Paper {
	if doc == nil {
		return nil
	}

	halID := doc.HalID
	if halID == "" {
		halID = doc.DocID.String()
	}
	title := strings.TrimSpace(doc.Titles.First())
	if halID == "" || title == "" {
		return nil
	}

	authors := collectAuthors(doc)

	pageURL := doc.URL
	if pageURL == "" {
		pageURL = "https://hal.science/" + halID
	}

	keywords := []string(doc.Keywords)
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}

	extra := map[string]any{
		"hal_id": halID,
	}
	if name := docTypeName(doc.DocType); name != "" {
		extra["type"] = name
	}
	journal := doc.Journal
	if journal == "" {
		journal = doc.BookTitle
	}
	if journal != "" {
		extra["journal"] = journal
	}
	if doc.Conference != "" {
		extra["conference"] = doc.Conference
	}
	if inst := doc.Institution.First(); inst != "" {
		extra["institution"] = inst
	}
	if lang := doc.Language.First(); lang != "" {
		extra["language"] = lang
	}
	if doc.Pages != "" {
		extra["pages"] = doc.Pages
	}

	return &domain.Paper{
		ID:            halID,
		Title:         title,
		Authors:       authors,
		Abstract:      truncateRunes(strings.TrimSpace(doc.Abstracts.First()), abstractLimit),
		DOI:           strings.ToLower(strings.TrimSpace(doc.DOI)),
		PublishedDate: parseProducedDate(doc.Produced),
		PDFURL:        doc.FileURL,
		URL:           pageURL,
		Source:        domain.SourceTypeHAL,
		Categories:    doc.Domains,
		Keywords:      keywords,
		Extra:         extra,
	}
}

// collectAuthors merges the full-name and plain author fields, keeping the
// first occurrence of each name.
func collectAuthors(doc *Doc) []string {
	seen := make(map[string]bool)
	authors := make([]string, 0, len(doc.AuthorNames)+len(doc.Authors))
	for _, list := range []StringList{doc.AuthorNames, doc.Authors} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			authors = append(authors, name)
		}
	}
	return authors
}

// parseProducedDate accepts full ISO dates and bare years; anything else
// yields the sentinel.
func parseProducedDate(s string) time.Time {
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return t
		}
	}
	if len(s) >= 4 {
		if year, err := strconv.Atoi(s[:4]); err == nil && year > 0 {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// docTypeName maps a HAL document type code to a readable name. Unknown
// codes pass through lowercased.
func docTypeName(code string) string {
	if code == "" {
		return ""
	}
	if name, ok := docTypeNames[strings.ToUpper(code)]; ok {
		return name
	}
	return strings.ToLower(code)
}

// truncateRunes shortens s to at most limit runes.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// quoteSolrValue wraps a value in quotes, escaping embedded quotes, for use
// in a Solr field query.
func quoteSolrValue(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}
