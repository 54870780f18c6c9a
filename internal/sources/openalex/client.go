package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/sources"
)

const (
	// DefaultBaseURL is the default OpenAlex API base URL.
	DefaultBaseURL = "https://api.openalex.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// OpenAlex polite pool (with email) allows higher rates.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 10

	// sourceName is the human-readable name for this source.
	sourceName = "OpenAlex"
)

// Config holds configuration for the OpenAlex client.
type Config struct {
	// BaseURL is the OpenAlex API base URL.
	// Defaults to https://api.openalex.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// Providing an email grants access to higher rate limits.
	// See: https://docs.openalex.org/how-to-use-the-api/rate-limits-and-authentication
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 10 req/sec (polite pool with email gets higher).
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 10.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	// Defaults to 10, maximum is 200 per OpenAlex API.
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

// Client implements the sources.Source interface for OpenAlex.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new OpenAlex client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()

	httpClient := sources.NewHTTPClient(sources.HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "CiteMend-ReferenceEnrichment/1.0 (mailto:" + cfg.Email + ")",
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// NewWithHTTPClient creates a new OpenAlex client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries OpenAlex for works matching the given query.
// A query DOI is translated into an OpenAlex filter so a known identifier
// resolves directly instead of going through relevance ranking.
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

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	// Parse the response (limit body to 10MB to prevent resource exhaustion).
	var searchResp SearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	candidates := make([]domain.CandidateRecord, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if rec, ok := workToCandidate(&searchResp.Results[i]); ok {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceOpenAlex
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(query sources.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works"

	q := url.Values{}

	if doi := domain.NormalizeDOI(query.DOI); doi != "" {
		q.Set("filter", "doi:"+doi)
	} else if query.Text != "" {
		q.Set("search", query.Text)
	}

	perPage := query.MaxResults
	if perPage <= 0 || perPage > c.config.MaxResults {
		perPage = c.config.MaxResults
	}
	if perPage > 200 {
		perPage = 200 // OpenAlex API limit
	}
	q.Set("per_page", strconv.Itoa(perPage))

	// Add mailto for polite pool
	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = q.Encode()
	return baseURL.String(), nil
}

// workToCandidate converts an OpenAlex work to a candidate record.
func workToCandidate(work *Work) (domain.CandidateRecord, bool) {
	// Prefer display_name as it is usually cleaner
	title := strings.TrimSpace(work.DisplayName)
	if title == "" {
		title = strings.TrimSpace(work.Title)
	}
	if title == "" {
		return domain.CandidateRecord{}, false
	}

	authors := make([]domain.Author, 0, len(work.Authorships))
	for _, authorship := range work.Authorships {
		if name := strings.TrimSpace(authorship.Author.DisplayName); name != "" {
			authors = append(authors, domain.Author{FullName: name})
		}
	}

	doi := domain.NormalizeDOI(work.DOI)
	if doi == "" {
		doi = domain.NormalizeDOI(work.IDs.DOI)
	}

	var journal, pageURL string
	if work.PrimaryLocation != nil {
		if work.PrimaryLocation.Source != nil {
			journal = work.PrimaryLocation.Source.DisplayName
		}
		pageURL = work.PrimaryLocation.LandingPage
		if pageURL == "" {
			pageURL = work.PrimaryLocation.PDFURL
		}
	}

	pages := work.Biblio.FirstPage
	if pages != "" && work.Biblio.LastPage != "" && work.Biblio.LastPage != pages {
		pages += "-" + work.Biblio.LastPage
	}

	return domain.CandidateRecord{
		Source:   domain.SourceOpenAlex,
		Title:    title,
		Authors:  authors,
		Year:     work.PublicationYear,
		Journal:  journal,
		Volume:   work.Biblio.Volume,
		Issue:    work.Biblio.Issue,
		Pages:    pages,
		DOI:      doi,
		URL:      pageURL,
		Abstract: reconstructAbstract(work.AbstractInvertedIndex),
	}, true
}

// reconstructAbstract reconstructs the abstract text from OpenAlex's inverted
// index format, which maps words to their positions in the text.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	// Guard against malicious payloads with excessive position entries.
	if totalPairs > maxAbstractWords {
		return ""
	}
	pairs := make([]posWord, 0, totalPairs)

	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}

	return builder.String()
}
