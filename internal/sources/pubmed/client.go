package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/sources"
)

const (
	// DefaultBaseURL is the default NCBI E-utilities base URL.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the default rate limit (3 req/sec without API key).
	// With an API key, NCBI allows 10 req/sec.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 10

	// sourceName is the human-readable name for this source.
	sourceName = "PubMed"
)

// Config holds configuration for the PubMed client.
type Config struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string

	// APIKey is the optional NCBI API key for higher rate limits.
	APIKey string

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

// Client implements the sources.Source interface for PubMed.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new PubMed client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "CiteMend-ReferenceEnrichment/1.0",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new PubMed client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries PubMed for articles matching the given query.
// It performs a two-step search:
//  1. esearch.fcgi - retrieves PMIDs matching the query
//  2. efetch.fcgi - retrieves full article metadata for the PMIDs
//
// When the query carries a DOI, the search term is the fielded DOI lookup.
func (c *Client) Search(ctx context.Context, query sources.Query) ([]domain.CandidateRecord, error) {
	term := query.Text
	if doi := domain.NormalizeDOI(query.DOI); doi != "" {
		term = doi + "[doi]"
	}

	searchResult, err := c.esearch(ctx, term, query.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("esearch failed: %w", err)
	}

	// Phrases not found are empty results, not errors.
	if searchResult.ErrorList != nil && len(searchResult.ErrorList.PhraseNotFound) > 0 {
		return nil, nil
	}
	if len(searchResult.IDList.IDs) == 0 {
		return nil, nil
	}

	articles, err := c.efetch(ctx, searchResult.IDList.IDs)
	if err != nil {
		return nil, fmt.Errorf("efetch failed: %w", err)
	}

	candidates := make([]domain.CandidateRecord, 0, len(articles.Articles))
	for i := range articles.Articles {
		if rec, ok := articleToCandidate(&articles.Articles[i]); ok {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourcePubMed
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether the source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// esearch performs a search query and returns matching PMIDs.
func (c *Client) esearch(ctx context.Context, term string, maxResults int) (*ESearchResult, error) {
	u, err := url.Parse(c.config.BaseURL + "/esearch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("term", term)
	q.Set("retmode", "xml")
	q.Set("usehistory", "n")

	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}
	q.Set("retmax", strconv.Itoa(maxResults))

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result ESearchResult
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	return &result, nil
}

// efetch retrieves full article metadata for the given PMIDs.
func (c *Client) efetch(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	if len(pmids) == 0 {
		return &PubmedArticleSet{}, nil
	}

	u, err := url.Parse(c.config.BaseURL + "/efetch.fcgi")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	q := u.Query()
	q.Set("db", "pubmed")
	q.Set("id", strings.Join(pmids, ","))
	q.Set("retmode", "xml")
	q.Set("rettype", "abstract")

	if c.config.APIKey != "" {
		q.Set("api_key", c.config.APIKey)
	}

	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result PubmedArticleSet
	if err := xml.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse XML response: %w", err)
	}

	return &result, nil
}

// articleToCandidate converts a PubmedArticle to a candidate record.
func articleToCandidate(article *PubmedArticle) (domain.CandidateRecord, bool) {
	citation := &article.MedlineCitation

	title := strings.TrimSpace(strings.TrimSuffix(citation.Article.ArticleTitle, "."))
	if title == "" {
		return domain.CandidateRecord{}, false
	}

	journal := citation.Article.Journal.Title
	if journal == "" {
		journal = citation.Article.Journal.ISOAbbreviation
	}

	var pageURL string
	if pmid := strings.TrimSpace(citation.PMID.Value); pmid != "" {
		pageURL = "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/"
	}

	return domain.CandidateRecord{
		Source:   domain.SourcePubMed,
		Title:    title,
		Authors:  extractAuthors(citation.Article.AuthorList),
		Year:     extractYear(&citation.Article.Journal.JournalIssue.PubDate),
		Journal:  journal,
		Volume:   citation.Article.Journal.JournalIssue.Volume,
		Issue:    citation.Article.Journal.JournalIssue.Issue,
		Pages:    extractPages(citation.Article.Pagination),
		DOI:      extractDOI(&citation.Article, &article.PubmedData),
		URL:      pageURL,
		Abstract: extractAbstract(citation.Article.Abstract),
	}, true
}

// extractDOI finds the DOI in ELocationID entries or the article ID list.
func extractDOI(article *Article, pubmedData *PubmedData) string {
	for _, loc := range article.ELocationID {
		if strings.EqualFold(loc.EIdType, "doi") {
			if doi := domain.NormalizeDOI(loc.Value); doi != "" {
				return doi
			}
		}
	}
	for _, aid := range pubmedData.ArticleIdList.ArticleIds {
		if strings.EqualFold(aid.IdType, "doi") {
			if doi := domain.NormalizeDOI(aid.Value); doi != "" {
				return doi
			}
		}
	}
	return ""
}

// extractYear parses the publication year, falling back to the leading year
// of a MedlineDate range such as "2019 Nov-Dec".
func extractYear(pubDate *PubDate) int {
	if y, err := strconv.Atoi(strings.TrimSpace(pubDate.Year)); err == nil {
		return y
	}
	fields := strings.Fields(pubDate.MedlineDate)
	if len(fields) > 0 {
		if y, err := strconv.Atoi(fields[0]); err == nil {
			return y
		}
	}
	return 0
}

// extractPages returns the page range, preferring the structured start/end
// pages over the raw Medline pagination string.
func extractPages(p *Pagination) string {
	if p == nil {
		return ""
	}
	if p.StartPage != "" {
		if p.EndPage != "" && p.EndPage != p.StartPage {
			return p.StartPage + "-" + p.EndPage
		}
		return p.StartPage
	}
	return p.MedlinePgn
}

// extractAbstract concatenates the abstract sections, labeling structured
// sections the way PubMed renders them.
func extractAbstract(abstract *Abstract) string {
	if abstract == nil || len(abstract.AbstractTexts) == 0 {
		return ""
	}

	parts := make([]string, 0, len(abstract.AbstractTexts))
	for _, at := range abstract.AbstractTexts {
		text := strings.TrimSpace(at.Value)
		if text == "" {
			continue
		}
		if at.Label != "" {
			text = at.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// extractAuthors converts the PubMed author list to domain authors.
// Collective (group) authors become full-name-only entries.
func extractAuthors(list *AuthorList) []domain.Author {
	if list == nil {
		return nil
	}

	authors := make([]domain.Author, 0, len(list.Authors))
	for _, a := range list.Authors {
		switch {
		case a.LastName != "":
			given := a.ForeName
			if given == "" {
				given = a.Initials
			}
			authors = append(authors, domain.Author{GivenName: given, Surname: a.LastName})
		case a.CollectiveName != "":
			authors = append(authors, domain.Author{FullName: a.CollectiveName})
		}
	}
	return authors
}
