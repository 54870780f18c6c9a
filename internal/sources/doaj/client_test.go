package doaj

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/sources"
)

func TestNew(t *testing.T) {
	t.Run("creates client with default values", func(t *testing.T) {
		client := New(Config{Enabled: true})

		require.NotNil(t, client)
		assert.Equal(t, DefaultBaseURL, client.config.BaseURL)
		assert.Equal(t, DefaultTimeout, client.config.Timeout)
		assert.Equal(t, DefaultRateLimit, client.config.RateLimit)
		assert.Equal(t, DefaultBurstSize, client.config.BurstSize)
		assert.Equal(t, DefaultMaxResults, client.config.MaxResults)
	})

	t.Run("implements Source interface", func(t *testing.T) {
		client := New(Config{Enabled: true})

		assert.Equal(t, domain.SourceDOAJ, client.SourceType())
		assert.Equal(t, "DOAJ", client.Name())
		assert.True(t, client.IsEnabled())
	})

	t.Run("disabled client returns false for IsEnabled", func(t *testing.T) {
		client := New(Config{Enabled: false})
		assert.False(t, client.IsEnabled())
	})
}

func TestClient_Search(t *testing.T) {
	t.Run("successful search returns candidates", func(t *testing.T) {
		response := SearchResponse{
			Total:    1,
			Page:     1,
			PageSize: 10,
			Results: []Result{
				{
					ID: "article123",
					BibJSON: BibJSON{
						Title:     "Open Access Publishing Trends",
						Year:      "2021",
						Abstract:  "A survey of open access publishing.",
						StartPage: "15",
						EndPage:   "30",
						Author: []Author{
							{Name: "Maria Garcia"},
							{Name: "Wei Chen"},
						},
						Journal: Journal{
							Title:     "Journal of Scholarly Communication",
							Volume:    "8",
							Number:    "2",
							Publisher: "Open Books Press",
						},
						Identifier: []Identifier{
							{Type: "eissn", ID: "2234-5678"},
							{Type: "doi", ID: "10.5555/jsc.2021.015"},
						},
						Link: []Link{
							{Type: "fulltext", URL: "https://example.org/article/123"},
						},
					},
				},
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.True(t, strings.HasPrefix(r.URL.Path, "/search/articles/"))
			assert.Contains(t, r.URL.Path, "open access publishing")
			assert.Equal(t, "10", r.URL.Query().Get("pageSize"))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		candidates, err := client.Search(context.Background(), sources.Query{
			Text:       "open access publishing",
			MaxResults: 10,
		})

		require.NoError(t, err)
		require.Len(t, candidates, 1)

		rec := candidates[0]
		assert.Equal(t, domain.SourceDOAJ, rec.Source)
		assert.Equal(t, "Open Access Publishing Trends", rec.Title)
		assert.Equal(t, 2021, rec.Year)
		assert.Equal(t, "Journal of Scholarly Communication", rec.Journal)
		assert.Equal(t, "8", rec.Volume)
		assert.Equal(t, "2", rec.Issue)
		assert.Equal(t, "15-30", rec.Pages)
		assert.Equal(t, "10.5555/jsc.2021.015", rec.DOI)
		assert.Equal(t, "https://example.org/article/123", rec.URL)
		assert.Equal(t, "Open Books Press", rec.Publisher)
		assert.Equal(t, "A survey of open access publishing.", rec.Abstract)

		require.Len(t, rec.Authors, 2)
		assert.Equal(t, "Maria Garcia", rec.Authors[0].FullName)
		assert.Equal(t, "Wei Chen", rec.Authors[1].FullName)
	})

	t.Run("DOI query searches identifier term", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Path, `doi:`)
			assert.Contains(t, r.URL.Path, "10.5555/jsc.2021.015")

			json.NewEncoder(w).Encode(SearchResponse{
				Results: []Result{
					{BibJSON: BibJSON{Title: "DOI Match"}},
				},
			})
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		candidates, err := client.Search(context.Background(), sources.Query{
			Text: "ignored",
			DOI:  "https://doi.org/10.5555/jsc.2021.015",
		})

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "DOI Match", candidates[0].Title)
	})

	t.Run("skips results without a title", func(t *testing.T) {
		response := SearchResponse{
			Results: []Result{
				{BibJSON: BibJSON{Year: "2020"}},
				{BibJSON: BibJSON{Title: "Titled Article"}},
			},
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		candidates, err := client.Search(context.Background(), sources.Query{Text: "test"})

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "Titled Article", candidates[0].Title)
	})

	t.Run("search handles API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("malformed query"))
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		candidates, err := client.Search(context.Background(), sources.Query{Text: "test"})

		require.Error(t, err)
		assert.Nil(t, candidates)

		var apiErr *domain.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})

	t.Run("search respects context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
			json.NewEncoder(w).Encode(SearchResponse{})
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.Search(ctx, sources.Query{Text: "test"})

		require.Error(t, err)
	})
}

func TestResultToCandidate(t *testing.T) {
	t.Run("non-numeric year yields zero", func(t *testing.T) {
		result := Result{BibJSON: BibJSON{Title: "Yearless", Year: "n.d."}}

		rec, ok := resultToCandidate(&result)

		require.True(t, ok)
		assert.Zero(t, rec.Year)
	})

	t.Run("single page article keeps single page", func(t *testing.T) {
		result := Result{BibJSON: BibJSON{Title: "One Pager", StartPage: "7", EndPage: "7"}}

		rec, ok := resultToCandidate(&result)

		require.True(t, ok)
		assert.Equal(t, "7", rec.Pages)
	})

	t.Run("identifier type matching is case insensitive", func(t *testing.T) {
		result := Result{BibJSON: BibJSON{
			Title: "Case Test",
			Identifier: []Identifier{
				{Type: "DOI", ID: "10.1234/case"},
			},
		}}

		rec, ok := resultToCandidate(&result)

		require.True(t, ok)
		assert.Equal(t, "10.1234/case", rec.DOI)
	})

	t.Run("skips authors with empty names", func(t *testing.T) {
		result := Result{BibJSON: BibJSON{
			Title:  "Authors",
			Author: []Author{{Name: "Real Author"}, {Name: "  "}},
		}}

		rec, ok := resultToCandidate(&result)

		require.True(t, ok)
		require.Len(t, rec.Authors, 1)
	})
}
