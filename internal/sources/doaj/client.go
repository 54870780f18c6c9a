package doaj

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

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/sources"
)

const (
	// DefaultBaseURL is the default DOAJ API base URL.
	DefaultBaseURL = "https://doaj.org/api"

	// DefaultRateLimit is the default rate limit for requests per second.
	DefaultRateLimit = 2.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 2

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 10

	// sourceName is the human-readable name for this source.
	sourceName = "DOAJ"
)

// Config holds configuration for the DOAJ client.
type Config struct {
	// BaseURL is the DOAJ API base URL.
	// Defaults to https://doaj.org/api
	BaseURL string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 2 req/sec per DOAJ guidelines.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 2.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	// Defaults to 10.
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

// Client implements the sources.Source interface for DOAJ.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new DOAJ client with the given configuration.
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

// NewWithHTTPClient creates a new DOAJ client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries DOAJ for articles matching the given query.
// DOAJ supports fielded Lucene syntax; a query DOI is searched as an
// identifier term, otherwise the text is searched as-is.
func (c *Client) Search(ctx context.Context, query sources.Query) ([]domain.CandidateRecord, error) {
	searchURL, err := c.buildSearchURL(query)
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

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	candidates := make([]domain.CandidateRecord, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if rec, ok := resultToCandidate(&searchResp.Results[i]); ok {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceDOAJ
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the article search URL.
// The query string is part of the path in the DOAJ API.
func (c *Client) buildSearchURL(query sources.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	term := query.Text
	if doi := domain.NormalizeDOI(query.DOI); doi != "" {
		term = `doi:"` + doi + `"`
	}

	searchURL := baseURL.JoinPath("search", "articles", term)

	q := searchURL.Query()
	pageSize := query.MaxResults
	if pageSize <= 0 || pageSize > c.config.MaxResults {
		pageSize = c.config.MaxResults
	}
	q.Set("pageSize", strconv.Itoa(pageSize))

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// resultToCandidate converts a DOAJ article to a candidate record.
func resultToCandidate(result *Result) (domain.CandidateRecord, bool) {
	bib := &result.BibJSON

	title := strings.TrimSpace(bib.Title)
	if title == "" {
		return domain.CandidateRecord{}, false
	}

	authors := make([]domain.Author, 0, len(bib.Author))
	for _, a := range bib.Author {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, domain.Author{FullName: name})
		}
	}

	year, _ := strconv.Atoi(strings.TrimSpace(bib.Year))

	var doi string
	for _, id := range bib.Identifier {
		if strings.EqualFold(id.Type, "doi") {
			doi = domain.NormalizeDOI(id.ID)
			break
		}
	}

	var pageURL string
	for _, link := range bib.Link {
		if strings.EqualFold(link.Type, "fulltext") {
			pageURL = link.URL
			break
		}
	}

	pages := bib.StartPage
	if pages != "" && bib.EndPage != "" && bib.EndPage != pages {
		pages += "-" + bib.EndPage
	}

	return domain.CandidateRecord{
		Source:    domain.SourceDOAJ,
		Title:     title,
		Authors:   authors,
		Year:      year,
		Journal:   bib.Journal.Title,
		Volume:    bib.Journal.Volume,
		Issue:     bib.Journal.Number,
		Pages:     pages,
		DOI:       doi,
		URL:       pageURL,
		Publisher: bib.Journal.Publisher,
		Abstract:  bib.Abstract,
	}, true
}
