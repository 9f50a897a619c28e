package europepmc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-search-service/internal/domain"
	"github.com/helixir/paper-search-service/internal/papersources"
)

const searchResponseJSON = `{
	"version": "6.9",
	"hitCount": 321,
	"nextCursorMark": "AoIIQJ1...",
	"resultList": {
		"result": [
			{
				"id": "34567890",
				"source": "MED",
				"pmid": "34567890",
				"pmcid": "PMC8765432",
				"doi": "10.1016/j.cell.2021.05.001",
				"title": "Base editing of haematopoietic stem cells",
				"authorString": "Newby GA, Yen JS, Woodard KJ.",
				"authorList": {
					"author": [
						{"fullName": "Newby GA", "firstName": "Gregory A", "lastName": "Newby"},
						{"fullName": "Yen JS", "firstName": "Jonathan S", "lastName": "Yen"},
						{"collectiveName": "Base Editing Consortium"}
					]
				},
				"abstractText": "Base editing corrects pathogenic point mutations without double-strand breaks.",
				"journalTitle": "Cell",
				"pubYear": "2021",
				"firstPublicationDate": "2021-06-02",
				"pubType": "research-article",
				"isOpenAccess": "Y",
				"citedByCount": 412,
				"keywordList": {
					"keyword": ["base editing", "sickle cell disease"]
				},
				"meshHeadingList": {
					"meshHeading": [
						{"descriptorName": "Gene Editing"},
						{"descriptorName": "Hematopoietic Stem Cells"}
					]
				}
			},
			{
				"id": "PPR341234",
				"source": "PPR",
				"doi": "10.1101/2021.01.01.425001",
				"title": "A preprint without a PMID",
				"authorString": "Doe J.",
				"pubYear": "2021",
				"pubType": "preprint",
				"isOpenAccess": "N",
				"citedByCount": 3
			}
		]
	}
}`

const articleResponseJSON = `{
	"version": "6.9",
	"hitCount": 1,
	"result": {
		"id": "34567890",
		"source": "MED",
		"pmid": "34567890",
		"pmcid": "PMC8765432",
		"doi": "10.1016/j.cell.2021.05.001",
		"title": "Base editing of haematopoietic stem cells",
		"authorString": "Newby GA, Yen JS.",
		"journalTitle": "Cell",
		"pubYear": "2021",
		"firstPublicationDate": "2021-06-02",
		"citedByCount": 412
	}
}`

const emptySearchResponseJSON = `{
	"version": "6.9",
	"hitCount": 0,
	"resultList": {"result": []}
}`

func createTestClient(baseURL string, enabled bool) *Client {
	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		RateLimit: 100,
		BurstSize: 10,
	})

	return NewWithHTTPClient(Config{
		BaseURL: baseURL,
		Enabled: enabled,
	}, httpClient)
}

func TestNewClient(t *testing.T) {
	t.Run("creates client with default config", func(t *testing.T) {
		client := New(Config{Enabled: true})

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
		assert.Equal(t, DefaultMaxResults, client.config.MaxResults)
		assert.True(t, client.IsEnabled())
	})

	t.Run("creates disabled client", func(t *testing.T) {
		client := New(Config{Enabled: false})
		assert.False(t, client.IsEnabled())
	})
}

func TestClient_SourceType(t *testing.T) {
	client := New(Config{Enabled: true})
	assert.Equal(t, domain.SourceTypeEuropePMC, client.SourceType())
}

func TestClient_Name(t *testing.T) {
	client := New(Config{Enabled: true})
	assert.Equal(t, "Europe PMC", client.Name())
}

func TestClient_Search(t *testing.T) {
	t.Run("successful search with results", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search", r.URL.Path)
			assert.Equal(t, "base editing", r.URL.Query().Get("query"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			assert.Equal(t, "core", r.URL.Query().Get("resultType"))

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(searchResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		result, err := client.Search(context.Background(), papersources.SearchParams{
			Query:      "base editing",
			MaxResults: 25,
		})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, 321, result.TotalResults)
		assert.True(t, result.HasMore)
		assert.Equal(t, domain.SourceTypeEuropePMC, result.Source)
		require.Len(t, result.Papers, 2)

		paper1 := result.Papers[0]
		assert.Equal(t, "PMC8765432", paper1.ID)
		assert.Equal(t, "Base editing of haematopoietic stem cells", paper1.Title)
		assert.Equal(t, "10.1016/j.cell.2021.05.001", paper1.DOI)
		assert.Equal(t, domain.SourceTypeEuropePMC, paper1.Source)
		assert.Equal(t, []string{"Newby GA", "Yen JS", "Base Editing Consortium"}, paper1.Authors)
		assert.Contains(t, paper1.Abstract, "pathogenic point mutations")
		assert.Equal(t, 2021, paper1.PublishedDate.Year())
		assert.Equal(t, time.June, paper1.PublishedDate.Month())
		assert.Equal(t, "https://europepmc.org/article/PMC/8765432", paper1.URL)
		assert.Equal(t, "https://europepmc.org/articles/PMC8765432?pdf=render", paper1.PDFURL)
		assert.Equal(t, []string{"Gene Editing", "Hematopoietic Stem Cells"}, paper1.Categories)
		assert.Equal(t, []string{"base editing", "sickle cell disease"}, paper1.Keywords)
		assert.Equal(t, 412, paper1.Citations)

		assert.Equal(t, "34567890", paper1.Extra["pmid"])
		assert.Equal(t, "PMC8765432", paper1.Extra["pmcid"])
		assert.Equal(t, "Cell", paper1.Extra["journal"])
		assert.Equal(t, true, paper1.Extra["open_access"])

		// The preprint has no PMCID or PMID; the DOI becomes the ID and the
		// authorString is the author fallback.
		paper2 := result.Papers[1]
		assert.Equal(t, "10.1101/2021.01.01.425001", paper2.ID)
		assert.Equal(t, []string{"Doe J"}, paper2.Authors)
		assert.Equal(t, "https://doi.org/10.1101/2021.01.01.425001", paper2.URL)
		assert.Empty(t, paper2.PDFURL)
		assert.Equal(t, 2021, paper2.PublishedDate.Year())
		assert.Equal(t, time.January, paper2.PublishedDate.Month())
		assert.Equal(t, false, paper2.Extra["open_access"])
	})

	t.Run("search with date filters", func(t *testing.T) {
		var receivedQuery string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedQuery = r.URL.Query().Get("query")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(emptySearchResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC)

		_, err := client.Search(context.Background(), papersources.SearchParams{
			Query:    "crispr",
			DateFrom: &from,
			DateTo:   &to,
		})
		require.NoError(t, err)

		assert.Equal(t, "(crispr) AND FIRST_PDATE:[2020-01-01 TO 2022-12-31]", receivedQuery)
	})

	t.Run("search returns empty results", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(emptySearchResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		result, err := client.Search(context.Background(), papersources.SearchParams{Query: "zzz"})
		require.NoError(t, err)

		assert.Equal(t, 0, result.TotalResults)
		assert.Empty(t, result.Papers)
		assert.False(t, result.HasMore)
	})

	t.Run("search fails when disabled", func(t *testing.T) {
		client := New(Config{Enabled: false})

		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "test"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})

	t.Run("search handles API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("bad request"))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.Search(context.Background(), papersources.SearchParams{Query: "test"})
		require.Error(t, err)

		var apiErr *domain.ExternalAPIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})
}

func TestClient_GetByID(t *testing.T) {
	t.Run("get by PMC ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/article/PMC/8765432", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(articleResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		paper, err := client.GetByID(context.Background(), "PMC8765432")
		require.NoError(t, err)
		require.NotNil(t, paper)

		assert.Equal(t, "PMC8765432", paper.ID)
		assert.Equal(t, "Base editing of haematopoietic stem cells", paper.Title)
		assert.Equal(t, []string{"Newby GA", "Yen JS"}, paper.Authors)
	})

	t.Run("get by PubMed ID", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/article/MED/34567890", r.URL.Path)

			w.WriteHeader(http.StatusOK)
			w.Write([]byte(articleResponseJSON))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		paper, err := client.GetByID(context.Background(), "34567890")
		require.NoError(t, err)
		require.NotNil(t, paper)
	})

	t.Run("get by ID not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.GetByID(context.Background(), "99999999")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("empty result means not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "6.9", "hitCount": 0}`))
		}))
		defer server.Close()

		client := createTestClient(server.URL, true)

		_, err := client.GetByID(context.Background(), "99999999")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("get by ID fails when disabled", func(t *testing.T) {
		client := New(Config{Enabled: false})

		_, err := client.GetByID(context.Background(), "PMC123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})
}

func TestArticleToPaper(t *testing.T) {
	t.Run("nil article returns nil", func(t *testing.T) {
		assert.Nil(t, articleToPaper(nil))
	})

	t.Run("article without identifiers is dropped", func(t *testing.T) {
		assert.Nil(t, articleToPaper(&Article{Title: "Orphan"}))
	})

	t.Run("bare PMCID gets prefixed", func(t *testing.T) {
		article := Article{PMCID: "123456", Title: "Test"}

		paper := articleToPaper(&article)
		require.NotNil(t, paper)
		assert.Equal(t, "PMC123456", paper.ID)
		assert.Equal(t, "PMC123456", paper.Extra["pmcid"])
	})

	t.Run("missing dates yield the sentinel", func(t *testing.T) {
		article := Article{PMID: "123", Title: "No Date"}

		paper := articleToPaper(&article)
		require.NotNil(t, paper)
		assert.True(t, paper.PublishedDate.IsZero())
		assert.Equal(t, 0, paper.Year())
	})

	t.Run("malformed first publication date falls back to pubYear", func(t *testing.T) {
		article := Article{
			PMID:                 "123",
			Title:                "Bad Date",
			FirstPublicationDate: "June 2021",
			PubYear:              "2021",
		}

		paper := articleToPaper(&article)
		require.NotNil(t, paper)
		assert.Equal(t, 2021, paper.PublishedDate.Year())
		assert.Equal(t, time.January, paper.PublishedDate.Month())
	})

	t.Run("falls back to full text PDF link", func(t *testing.T) {
		article := Article{
			PMID:  "123",
			Title: "Preprint",
			FullTextURLList: &FullTextURLList{
				FullTextURL: []FullTextURL{
					{URL: "https://example.com/view", DocumentStyle: "html"},
					{URL: "https://example.com/paper.pdf", DocumentStyle: "pdf"},
				},
			},
		}

		paper := articleToPaper(&article)
		require.NotNil(t, paper)
		assert.Equal(t, "https://example.com/paper.pdf", paper.PDFURL)
	})
}

func TestExtractAuthors(t *testing.T) {
	t.Run("prefers structured list", func(t *testing.T) {
		article := Article{
			AuthorString: "Ignored A.",
			AuthorList: &AuthorList{
				Author: []Author{
					{FullName: "Smith J"},
					{FirstName: "Jane", LastName: "Doe"},
				},
			},
		}

		assert.Equal(t, []string{"Smith J", "Jane Doe"}, extractAuthors(&article))
	})

	t.Run("falls back to author string", func(t *testing.T) {
		article := Article{AuthorString: "Smith J, Doe J, Roe R."}
		assert.Equal(t, []string{"Smith J", "Doe J", "Roe R"}, extractAuthors(&article))
	})

	t.Run("no authors", func(t *testing.T) {
		assert.Nil(t, extractAuthors(&Article{}))
	})
}
