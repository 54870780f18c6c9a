package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/sources"
)

const esearchResponseXML = `<?xml version="1.0" encoding="UTF-8"?>
<eSearchResult>
  <Count>2</Count>
  <RetMax>2</RetMax>
  <IdList>
    <Id>35000001</Id>
    <Id>35000002</Id>
  </IdList>
</eSearchResult>`

const esearchEmptyXML = `<?xml version="1.0" encoding="UTF-8"?>
<eSearchResult>
  <Count>0</Count>
  <RetMax>0</RetMax>
  <IdList></IdList>
</eSearchResult>`

const esearchPhraseNotFoundXML = `<?xml version="1.0" encoding="UTF-8"?>
<eSearchResult>
  <Count>0</Count>
  <RetMax>0</RetMax>
  <IdList></IdList>
  <ErrorList>
    <PhraseNotFound>10.9999/nonexistent[doi]</PhraseNotFound>
  </ErrorList>
</eSearchResult>`

const efetchResponseXML = `<?xml version="1.0" encoding="UTF-8"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>35000001</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <Volume>12</Volume>
            <Issue>3</Issue>
            <PubDate>
              <Year>2022</Year>
            </PubDate>
          </JournalIssue>
          <Title>Nature Medicine</Title>
        </Journal>
        <ArticleTitle>Immune responses to mRNA vaccines.</ArticleTitle>
        <Pagination>
          <StartPage>401</StartPage>
          <EndPage>410</EndPage>
        </Pagination>
        <ELocationID EIdType="doi">10.1038/s41591-022-00001-1</ELocationID>
        <Abstract>
          <AbstractText Label="BACKGROUND">Vaccines work.</AbstractText>
          <AbstractText Label="METHODS">We measured titers.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author>
            <LastName>Nguyen</LastName>
            <ForeName>Linh</ForeName>
            <Initials>L</Initials>
          </Author>
          <Author>
            <CollectiveName>Vaccine Study Group</CollectiveName>
          </Author>
        </AuthorList>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">35000001</ArticleId>
        <ArticleId IdType="doi">10.1038/s41591-022-00001-1</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>35000002</PMID>
      <Article>
        <Journal>
          <JournalIssue>
            <PubDate>
              <MedlineDate>2019 Nov-Dec</MedlineDate>
            </PubDate>
          </JournalIssue>
          <ISOAbbreviation>J Test Abbrev</ISOAbbreviation>
        </Journal>
        <ArticleTitle>A minimal record</ArticleTitle>
        <Pagination>
          <MedlinePgn>22-30</MedlinePgn>
        </Pagination>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList></ArticleIdList>
    </PubmedData>
  </PubmedArticle>
</PubmedArticleSet>`

// newTestServer routes esearch and efetch requests to canned XML payloads.
func newTestServer(t *testing.T, esearchXML, efetchXML string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
		switch {
		case r.URL.Path == "/esearch.fcgi":
			assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
			w.Write([]byte(esearchXML))
		case r.URL.Path == "/efetch.fcgi":
			assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
			w.Write([]byte(efetchXML))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

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

		assert.Equal(t, domain.SourcePubMed, client.SourceType())
		assert.Equal(t, "PubMed", client.Name())
		assert.True(t, client.IsEnabled())
	})

	t.Run("disabled client returns false for IsEnabled", func(t *testing.T) {
		client := New(Config{Enabled: false})
		assert.False(t, client.IsEnabled())
	})
}

func TestClient_Search(t *testing.T) {
	t.Run("two-step search returns candidates", func(t *testing.T) {
		server := newTestServer(t, esearchResponseXML, efetchResponseXML)
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		candidates, err := client.Search(context.Background(), sources.Query{
			Text:       "mRNA vaccine immune response",
			MaxResults: 10,
		})

		require.NoError(t, err)
		require.Len(t, candidates, 2)

		rec := candidates[0]
		assert.Equal(t, domain.SourcePubMed, rec.Source)
		// Trailing period is trimmed from the title
		assert.Equal(t, "Immune responses to mRNA vaccines", rec.Title)
		assert.Equal(t, 2022, rec.Year)
		assert.Equal(t, "Nature Medicine", rec.Journal)
		assert.Equal(t, "12", rec.Volume)
		assert.Equal(t, "3", rec.Issue)
		assert.Equal(t, "401-410", rec.Pages)
		assert.Equal(t, "10.1038/s41591-022-00001-1", rec.DOI)
		assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/35000001/", rec.URL)
		assert.Equal(t, "BACKGROUND: Vaccines work. METHODS: We measured titers.", rec.Abstract)

		require.Len(t, rec.Authors, 2)
		assert.Equal(t, "Linh", rec.Authors[0].GivenName)
		assert.Equal(t, "Nguyen", rec.Authors[0].Surname)
		assert.Equal(t, "Vaccine Study Group", rec.Authors[1].FullName)

		rec2 := candidates[1]
		assert.Equal(t, "A minimal record", rec2.Title)
		// MedlineDate fallback takes the leading year token
		assert.Equal(t, 2019, rec2.Year)
		assert.Equal(t, "J Test Abbrev", rec2.Journal)
		assert.Equal(t, "22-30", rec2.Pages)
		assert.Empty(t, rec2.DOI)
		assert.Empty(t, rec2.Abstract)
	})

	t.Run("DOI query uses fielded term", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/esearch.fcgi" {
				assert.Equal(t, "10.1038/s41591-022-00001-1[doi]", r.URL.Query().Get("term"))
				w.Write([]byte(esearchEmptyXML))
				return
			}
			t.Errorf("unexpected path: %s", r.URL.Path)
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
			DOI:  "https://doi.org/10.1038/s41591-022-00001-1",
		})

		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("phrase not found returns empty result without error", func(t *testing.T) {
		server := newTestServer(t, esearchPhraseNotFoundXML, efetchResponseXML)
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		candidates, err := client.Search(context.Background(), sources.Query{
			DOI: "10.9999/nonexistent",
		})

		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("no matches skips efetch", func(t *testing.T) {
		efetchCalled := false
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/esearch.fcgi":
				w.Write([]byte(esearchEmptyXML))
			case "/efetch.fcgi":
				efetchCalled = true
				w.Write([]byte(efetchResponseXML))
			}
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		candidates, err := client.Search(context.Background(), sources.Query{Text: "no hits"})

		require.NoError(t, err)
		assert.Empty(t, candidates)
		assert.False(t, efetchCalled)
	})

	t.Run("sends API key when configured", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret-key", r.URL.Query().Get("api_key"))
			w.Write([]byte(esearchEmptyXML))
		}))
		defer server.Close()

		client := New(Config{
			BaseURL:   server.URL,
			APIKey:    "secret-key",
			Enabled:   true,
			RateLimit: 100,
			BurstSize: 10,
		})

		_, err := client.Search(context.Background(), sources.Query{Text: "test"})
		require.NoError(t, err)
	})

	t.Run("search handles API error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("bad request"))
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
			w.Write([]byte(esearchEmptyXML))
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

func TestExtractYear(t *testing.T) {
	tests := []struct {
		name     string
		pubDate  PubDate
		expected int
	}{
		{"structured year", PubDate{Year: "2021"}, 2021},
		{"medline date range", PubDate{MedlineDate: "2019 Nov-Dec"}, 2019},
		{"medline date season", PubDate{MedlineDate: "2020 Spring"}, 2020},
		{"empty date", PubDate{}, 0},
		{"unparseable medline date", PubDate{MedlineDate: "Winter 2020"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractYear(&tt.pubDate))
		})
	}
}

func TestExtractPages(t *testing.T) {
	tests := []struct {
		name     string
		p        *Pagination
		expected string
	}{
		{"nil pagination", nil, ""},
		{"start and end", &Pagination{StartPage: "10", EndPage: "20"}, "10-20"},
		{"single page", &Pagination{StartPage: "5", EndPage: "5"}, "5"},
		{"start only", &Pagination{StartPage: "7"}, "7"},
		{"medline pgn fallback", &Pagination{MedlinePgn: "33-41"}, "33-41"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPages(tt.p))
		})
	}
}

func TestArticleToCandidate(t *testing.T) {
	t.Run("rejects untitled article", func(t *testing.T) {
		article := PubmedArticle{}

		_, ok := articleToCandidate(&article)

		assert.False(t, ok)
	})

	t.Run("falls back to article id list for DOI", func(t *testing.T) {
		article := PubmedArticle{
			MedlineCitation: MedlineCitation{
				Article: Article{ArticleTitle: "DOI from ID list"},
			},
			PubmedData: PubmedData{
				ArticleIdList: ArticleIdList{
					ArticleIds: []ArticleId{
						{IdType: "pubmed", Value: "123"},
						{IdType: "doi", Value: "10.1234/from-id-list"},
					},
				},
			},
		}

		rec, ok := articleToCandidate(&article)

		require.True(t, ok)
		assert.Equal(t, "10.1234/from-id-list", rec.DOI)
	})

	t.Run("uses initials when forename missing", func(t *testing.T) {
		article := PubmedArticle{
			MedlineCitation: MedlineCitation{
				Article: Article{
					ArticleTitle: "Initials Only",
					AuthorList: &AuthorList{
						Authors: []Author{
							{LastName: "Watson", Initials: "JD"},
						},
					},
				},
			},
		}

		rec, ok := articleToCandidate(&article)

		require.True(t, ok)
		require.Len(t, rec.Authors, 1)
		assert.Equal(t, "JD", rec.Authors[0].GivenName)
		assert.Equal(t, "Watson", rec.Authors[0].Surname)
	})
}
