package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default CrossRef API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// CrossRef asks polite-pool users to stay around 50 req/sec; we default
	// far below that.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 20

	// MaxRows is the CrossRef API limit for rows per request.
	MaxRows = 1000

	// sourceName is the human-readable name for this source.
	sourceName = "CrossRef"
)

// jatsTagRegex strips JATS markup from CrossRef abstracts.
var jatsTagRegex = regexp.MustCompile(`<[^>]+>`)

// Config holds configuration for the CrossRef client.
type Config struct {
	// BaseURL is the CrossRef API base URL.
	BaseURL string

	// Email is the contact email for the polite pool. CrossRef routes
	// requests carrying a mailto to better-provisioned servers.
	Email string

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

// Client implements the papersources.PaperSource interface for CrossRef.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new CrossRef client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	userAgent := "Helixir-PaperSearch/1.0"
	if cfg.Email != "" {
		userAgent += " (mailto:" + cfg.Email + ")"
	}

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: userAgent,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new CrossRef client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries CrossRef for works matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("crossref source is disabled")
	}

	startTime := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	var worksResp WorksResponse
	if err := c.getJSON(ctx, searchURL, &worksResp); err != nil {
		return nil, err
	}

	papers := make([]*domain.Paper, 0, len(worksResp.Message.Items))
	for i := range worksResp.Message.Items {
		paper := workToPaper(&worksResp.Message.Items[i])
		if paper != nil {
			papers = append(papers, paper)
		}
	}

	nextOffset := params.Offset + len(papers)
	hasMore := nextOffset < worksResp.Message.TotalResults

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   worksResp.Message.TotalResults,
		HasMore:        hasMore,
		NextOffset:     nextOffset,
		Source:         domain.SourceTypeCrossRef,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a specific work by its DOI.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("crossref source is disabled")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	doi := strings.TrimPrefix(strings.TrimPrefix(id, "https://doi.org/"), "doi:")
	baseURL.Path = "/works/" + doi

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

	var workResp WorkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&workResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	paper := workToPaper(&workResp.Message)
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}

	return paper, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeCrossRef
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

// buildSearchURL constructs the /works search URL.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = "/works"

	query := url.Values{}
	if params.Query != "" {
		query.Set("query", params.Query)
	}

	var filters []string
	if params.DateFrom != nil {
		filters = append(filters, "from-pub-date:"+params.DateFrom.Format("2006-01-02"))
	}
	if params.DateTo != nil {
		filters = append(filters, "until-pub-date:"+params.DateTo.Format("2006-01-02"))
	}
	if len(filters) > 0 {
		query.Set("filter", strings.Join(filters, ","))
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
		query.Set("offset", strconv.Itoa(params.Offset))
	}

	if c.config.Email != "" {
		query.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// workToPaper converts a CrossRef work to a domain Paper. Works without a DOI
// are dropped since the DOI is the only identifier CrossRef guarantees.
func workToPaper(work *Work) *domain.Paper {
	if work == nil {
		return nil
	}

	doi := strings.ToLower(strings.TrimSpace(work.DOI))
	if doi == "" {
		return nil
	}

	title := ""
	if len(work.Title) > 0 {
		title = strings.TrimSpace(work.Title[0])
	}

	authors := make([]string, 0, len(work.Author))
	for _, a := range work.Author {
		name := authorName(a)
		if name == "" {
			continue
		}
		authors = append(authors, name)
	}

	var pdfURL string
	for _, link := range work.Link {
		if link.ContentType == "application/pdf" {
			pdfURL = link.URL
			break
		}
	}

	pageURL := work.URL
	if pageURL == "" {
		pageURL = "https://doi.org/" + doi
	}

	references := make([]string, 0, len(work.Reference))
	for _, ref := range work.Reference {
		switch {
		case ref.DOI != "":
			references = append(references, ref.DOI)
		case ref.Unstructured != "":
			references = append(references, ref.Unstructured)
		}
	}

	extra := map[string]any{
		"crossref_type": work.Type,
	}
	if work.Publisher != "" {
		extra["publisher"] = work.Publisher
	}
	if len(work.ContainerTitle) > 0 {
		extra["journal"] = work.ContainerTitle[0]
	}
	if work.Volume != "" {
		extra["volume"] = work.Volume
	}
	if work.Issue != "" {
		extra["issue"] = work.Issue
	}
	if work.Page != "" {
		extra["pages"] = work.Page
	}

	return &domain.Paper{
		ID:            doi,
		Title:         title,
		Authors:       authors,
		Abstract:      stripJATS(work.Abstract),
		DOI:           doi,
		PublishedDate: publicationDate(work),
		PDFURL:        pdfURL,
		URL:           pageURL,
		Source:        domain.SourceTypeCrossRef,
		Categories:    work.Subject,
		References:    references,
		Citations:     work.CitedByCount,
		Extra:         extra,
	}
}

// authorName assembles a display name from CrossRef author fields. Corporate
// authors carry only Name.
func authorName(a Author) string {
	if a.Name != "" {
		return strings.TrimSpace(a.Name)
	}
	return strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
}

// publicationDate picks the best available date for a work, preferring the
// issued date. Missing parts default to January 1; a missing year leaves the
// sentinel.
func publicationDate(work *Work) time.Time {
	for _, dp := range []*DateParts{&work.Issued, work.PublishedPrint, work.PublishedOnline} {
		if dp == nil {
			continue
		}
		if t, ok := datePartsToTime(dp.DateParts); ok {
			return t
		}
	}
	return time.Time{}
}

// datePartsToTime converts CrossRef [[year, month, day]] parts to a time.
func datePartsToTime(parts [][]int) (time.Time, bool) {
	if len(parts) == 0 || len(parts[0]) == 0 {
		return time.Time{}, false
	}

	p := parts[0]
	year := p[0]
	if year <= 0 {
		return time.Time{}, false
	}

	month := 1
	if len(p) > 1 && p[1] >= 1 && p[1] <= 12 {
		month = p[1]
	}
	day := 1
	if len(p) > 2 && p[2] >= 1 && p[2] <= 31 {
		day = p[2]
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// stripJATS removes JATS XML markup that CrossRef embeds in abstracts.
func stripJATS(abstract string) string {
	if abstract == "" {
		return ""
	}
	stripped := jatsTagRegex.ReplaceAllString(abstract, " ")
	return strings.Join(strings.Fields(stripped), " ")
}
