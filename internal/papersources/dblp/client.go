package dblp

import (
	"context"
	"encoding/json"
	"encoding/xml"
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
	// DefaultBaseURL is the default DBLP base URL.
	DefaultBaseURL = "https://dblp.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// DBLP throttles aggressive clients, so the default stays low.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 30

	// MaxHits is the DBLP API limit for hits per request.
	MaxHits = 1000

	// sourceName is the human-readable name for this source.
	sourceName = "DBLP"
)

// Config holds configuration for the DBLP client.
type Config struct {
	// BaseURL is the DBLP base URL.
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

// Client implements the papersources.PaperSource interface for DBLP.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new DBLP client with the given configuration.
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

// NewWithHTTPClient creates a new DBLP client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries the DBLP publication search API.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("dblp source is disabled")
	}

	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	// DBLP answers an out-of-range or empty query with 204.
	if resp.StatusCode == http.StatusNoContent {
		return &papersources.SearchResult{
			Papers:         []*domain.Paper{},
			Source:         domain.SourceTypeDBLP,
			SearchDuration: time.Since(startTime),
		}, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	hits := searchResp.Result.Hits
	papers := make([]*domain.Paper, 0, len(hits.Hit))
	for i := range hits.Hit {
		paper := hitToPaper(&hits.Hit[i])
		if paper != nil {
			papers = append(papers, paper)
		}
	}

	total, _ := strconv.Atoi(hits.Total)
	nextOffset := params.Offset + len(papers)

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   total,
		HasMore:        nextOffset < total,
		NextOffset:     nextOffset,
		Source:         domain.SourceTypeDBLP,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a record by its DBLP key (e.g. "conf/icml/GuptaM20").
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("dblp source is disabled")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/rec/" + id + ".xml"

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

	var record RecordResponse
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&record); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	paper := recordToPaper(record.publication())
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}

	return paper, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeDBLP
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the publication search API URL.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/search/publ/api"

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxHits {
		maxResults = MaxHits
	}

	query := url.Values{}
	query.Set("q", params.Query)
	query.Set("format", "json")
	query.Set("h", strconv.Itoa(maxResults))
	if params.Offset > 0 {
		query.Set("f", strconv.Itoa(params.Offset))
	}
	if params.DateFrom != nil {
		query.Set("yearMin", strconv.Itoa(params.DateFrom.Year()))
	}
	if params.DateTo != nil {
		query.Set("yearMax", strconv.Itoa(params.DateTo.Year()))
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// hitToPaper converts a search hit to a domain Paper. Hits without a title or
// key are dropped.
func hitToPaper(hit *Hit) *domain.Paper {
	if hit == nil {
		return nil
	}

	info := hit.Info
	title := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(info.Title), "."))
	if title == "" || info.Key == "" {
		return nil
	}

	authors := make([]string, 0, len(info.Authors.Author))
	for _, a := range info.Authors.Author {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, name)
	}

	doi := strings.ToLower(strings.TrimSpace(info.DOI))
	if doi == "" && strings.Contains(info.EE, "doi.org/") {
		doi = strings.ToLower(info.EE[strings.Index(info.EE, "doi.org/")+len("doi.org/"):])
	}

	var categories []string
	if info.Venue != "" {
		categories = []string{info.Venue}
	}

	extra := map[string]any{
		"dblp_key": info.Key,
	}
	if info.Type != "" {
		extra["type"] = info.Type
	}
	if info.Venue != "" {
		extra["venue"] = info.Venue
	}
	if abbrev := venueAbbrev(info.Key); abbrev != "" {
		extra["venue_abbrev"] = abbrev
	}
	if info.Volume != "" {
		extra["volume"] = info.Volume
	}
	if info.Number != "" {
		extra["number"] = info.Number
	}
	if info.Pages != "" {
		extra["pages"] = info.Pages
	}
	if info.EE != "" {
		extra["ee"] = info.EE
	}

	return &domain.Paper{
		ID:            info.Key,
		Title:         title,
		Authors:       authors,
		DOI:           doi,
		PublishedDate: yearToDate(info.Year),
		URL:           "https://dblp.org/rec/" + info.Key + ".html",
		Source:        domain.SourceTypeDBLP,
		Categories:    categories,
		Extra:         extra,
	}
}

// recordToPaper converts an XML record to a domain Paper.
func recordToPaper(rec *Record) *domain.Paper {
	if rec == nil || rec.Key == "" {
		return nil
	}

	title := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rec.Title), "."))

	authors := make([]string, 0, len(rec.Authors))
	for _, a := range rec.Authors {
		name := strings.TrimSpace(a)
		if name == "" {
			continue
		}
		authors = append(authors, name)
	}

	venue := rec.Journal
	if venue == "" {
		venue = rec.BookTitle
	}
	if venue == "" {
		venue = rec.School
	}

	var doi string
	for _, ee := range rec.EE {
		if idx := strings.Index(ee, "doi.org/"); idx >= 0 {
			doi = strings.ToLower(ee[idx+len("doi.org/"):])
			break
		}
	}

	var categories []string
	if venue != "" {
		categories = []string{venue}
	}

	extra := map[string]any{
		"dblp_key": rec.Key,
	}
	if venue != "" {
		extra["venue"] = venue
	}
	if abbrev := venueAbbrev(rec.Key); abbrev != "" {
		extra["venue_abbrev"] = abbrev
	}
	if rec.Volume != "" {
		extra["volume"] = rec.Volume
	}
	if rec.Pages != "" {
		extra["pages"] = rec.Pages
	}
	if rec.Publisher != "" {
		extra["publisher"] = rec.Publisher
	}
	if rec.ISBN != "" {
		extra["isbn"] = rec.ISBN
	}

	return &domain.Paper{
		ID:            rec.Key,
		Title:         title,
		Authors:       authors,
		DOI:           doi,
		PublishedDate: yearToDate(rec.Year),
		URL:           "https://dblp.org/rec/" + rec.Key + ".html",
		Source:        domain.SourceTypeDBLP,
		Categories:    categories,
		Extra:         extra,
	}
}

// yearToDate maps a DBLP year string to January 1 of that year. Anything
// unparseable stays the sentinel.
func yearToDate(year string) time.Time {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y <= 0 {
		return time.Time{}
	}
	return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// venueAbbrev extracts the venue segment from a DBLP key.
// "conf/icml/GuptaM20" yields "icml".
func venueAbbrev(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
