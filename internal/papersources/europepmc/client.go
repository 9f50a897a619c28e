package europepmc

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
	// DefaultBaseURL is the default Europe PMC REST API base URL.
	DefaultBaseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 5.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 5

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 25

	// MaxPageSize is the Europe PMC API limit for pageSize.
	MaxPageSize = 1000

	// sourceName is the human-readable name for this source.
	sourceName = "Europe PMC"
)

// Config holds configuration for the Europe PMC client.
type Config struct {
	// BaseURL is the Europe PMC REST API base URL.
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

// Client implements the papersources.PaperSource interface for Europe PMC.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new Europe PMC client with the given configuration.
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

// NewWithHTTPClient creates a new Europe PMC client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Europe PMC for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("europepmc source is disabled")
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

	papers := make([]*domain.Paper, 0, len(searchResp.ResultList.Result))
	for i := range searchResp.ResultList.Result {
		paper := articleToPaper(&searchResp.ResultList.Result[i])
		if paper != nil {
			papers = append(papers, paper)
		}
	}

	nextOffset := params.Offset + len(papers)

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   searchResp.HitCount,
		HasMore:        nextOffset < searchResp.HitCount,
		NextOffset:     nextOffset,
		Source:         domain.SourceTypeEuropePMC,
		SearchDuration: time.Since(startTime),
	}, nil
}

// GetByID retrieves a paper by its PMC ID (e.g. "PMC1234567") or PubMed ID.
func (c *Client) GetByID(ctx context.Context, id string) (*domain.Paper, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("europepmc source is disabled")
	}

	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	if strings.HasPrefix(id, "PMC") {
		baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/article/PMC/" + strings.TrimPrefix(id, "PMC")
	} else {
		baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/article/MED/" + id
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("resultType", "core")
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

	var articleResp ArticleResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&articleResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	paper := articleToPaper(articleResp.Result)
	if paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}

	return paper, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceTypeEuropePMC
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

// buildSearchURL constructs the search endpoint URL. Date bounds go into the
// query itself using the FIRST_PDATE field syntax.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/search"

	searchQuery := params.Query
	if params.DateFrom != nil || params.DateTo != nil {
		from := "1900-01-01"
		if params.DateFrom != nil {
			from = params.DateFrom.Format("2006-01-02")
		}
		to := time.Now().Format("2006-01-02")
		if params.DateTo != nil {
			to = params.DateTo.Format("2006-01-02")
		}
		searchQuery = fmt.Sprintf("(%s) AND FIRST_PDATE:[%s TO %s]", searchQuery, from, to)
	}

	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = c.config.MaxResults
	}
	if maxResults > MaxPageSize {
		maxResults = MaxPageSize
	}

	query := url.Values{}
	query.Set("query", searchQuery)
	query.Set("format", "json")
	query.Set("resultType", "core")
	query.Set("pageSize", strconv.Itoa(maxResults))
	query.Set("cursorMark", "*")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// articleToPaper converts a Europe PMC record to a domain Paper. Records
// without any usable identifier are dropped.
func articleToPaper(article *Article) *domain.Paper {
	if article == nil {
		return nil
	}

	pmcid := article.PMCID
	if pmcid != "" && !strings.HasPrefix(pmcid, "PMC") {
		pmcid = "PMC" + pmcid
	}

	id := firstNonEmpty(pmcid, article.PMID, article.DOI, article.ID)
	if id == "" {
		return nil
	}

	authors := extractAuthors(article)

	// firstPublicationDate is a plain date; a bare pubYear maps to January 1.
	var published time.Time
	if article.FirstPublicationDate != "" {
		if t, err := time.Parse("2006-01-02", article.FirstPublicationDate); err == nil {
			published = t
		}
	}
	if published.IsZero() && article.PubYear != "" {
		if y, err := strconv.Atoi(article.PubYear); err == nil && y > 0 {
			published = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
		}
	}

	var pageURL string
	switch {
	case pmcid != "":
		pageURL = "https://europepmc.org/article/PMC/" + strings.TrimPrefix(pmcid, "PMC")
	case article.PMID != "":
		pageURL = "https://europepmc.org/abstract/MED/" + article.PMID
	case article.DOI != "":
		pageURL = "https://doi.org/" + article.DOI
	default:
		pageURL = "https://europepmc.org/article/MED/" + id
	}

	var pdfURL string
	if pmcid != "" {
		pdfURL = "https://europepmc.org/articles/" + pmcid + "?pdf=render"
	}
	if pdfURL == "" && article.FullTextURLList != nil {
		for _, ft := range article.FullTextURLList.FullTextURL {
			if ft.DocumentStyle == "pdf" {
				pdfURL = ft.URL
				break
			}
		}
	}

	var categories []string
	if article.MeshHeadingList != nil {
		for _, mh := range article.MeshHeadingList.MeshHeading {
			if mh.DescriptorName != "" {
				categories = append(categories, mh.DescriptorName)
			}
		}
	}

	var keywords []string
	if article.KeywordList != nil {
		keywords = article.KeywordList.Keyword
	}

	journal := article.JournalTitle
	if journal == "" && article.JournalInfo != nil && article.JournalInfo.Journal != nil {
		journal = article.JournalInfo.Journal.Title
	}

	extra := map[string]any{
		"europepmc_id": article.ID,
		"open_access":  article.IsOpenAccess == "Y",
	}
	if pmcid != "" {
		extra["pmcid"] = pmcid
	}
	if article.PMID != "" {
		extra["pmid"] = article.PMID
	}
	if journal != "" {
		extra["journal"] = journal
	}
	if article.PubType != "" {
		extra["article_type"] = article.PubType
	}

	return &domain.Paper{
		ID:            id,
		Title:         strings.TrimSpace(article.Title),
		Authors:       authors,
		Abstract:      strings.TrimSpace(article.AbstractText),
		DOI:           strings.ToLower(strings.TrimSpace(article.DOI)),
		PublishedDate: published,
		PDFURL:        pdfURL,
		URL:           pageURL,
		Source:        domain.SourceTypeEuropePMC,
		Categories:    categories,
		Keywords:      keywords,
		Citations:     article.CitedByCount,
		Extra:         extra,
	}
}

// extractAuthors prefers the structured author list and falls back to the
// comma-joined authorString.
func extractAuthors(article *Article) []string {
	if article.AuthorList != nil && len(article.AuthorList.Author) > 0 {
		authors := make([]string, 0, len(article.AuthorList.Author))
		for _, a := range article.AuthorList.Author {
			name := a.FullName
			if name == "" {
				name = a.CollectiveName
			}
			if name == "" && a.LastName != "" {
				name = strings.TrimSpace(a.FirstName + " " + a.LastName)
			}
			if name == "" {
				continue
			}
			authors = append(authors, name)
		}
		return authors
	}

	if article.AuthorString == "" {
		return nil
	}
	raw := strings.Split(strings.TrimSuffix(article.AuthorString, "."), ",")
	authors := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		authors = append(authors, name)
	}
	return authors
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
