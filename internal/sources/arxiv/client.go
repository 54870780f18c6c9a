package arxiv

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
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit (3 requests per second).
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 10

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
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

// Client implements the sources.Source interface for arXiv.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
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

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries arXiv for papers matching the given query.
// arXiv has no DOI resolution endpoint, so a query DOI is ignored and the
// text query is used.
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

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	candidates := make([]domain.CandidateRecord, 0, len(feed.Entries))
	for i := range feed.Entries {
		if rec, ok := entryToCandidate(&feed.Entries[i]); ok {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the query API URL.
func (c *Client) buildSearchURL(query sources.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	maxResults := query.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}

	q := url.Values{}
	q.Set("search_query", "all:"+query.Text)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(maxResults))

	baseURL.RawQuery = q.Encode()
	return baseURL.String(), nil
}

// entryToCandidate converts an arXiv Atom entry to a candidate record.
func entryToCandidate(entry *Entry) (domain.CandidateRecord, bool) {
	// arXiv wraps long titles across lines in the Atom feed.
	title := strings.Join(strings.Fields(entry.Title), " ")
	if title == "" {
		return domain.CandidateRecord{}, false
	}

	authors := make([]domain.Author, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, domain.Author{FullName: name})
		}
	}

	var year int
	if len(entry.Published) >= 4 {
		year, _ = strconv.Atoi(entry.Published[:4])
	}

	pageURL := entry.ID
	for _, link := range entry.Links {
		if link.Rel == "alternate" && link.Href != "" {
			pageURL = link.Href
			break
		}
	}

	// The journal_ref field carries the published venue when one exists.
	journal := strings.Join(strings.Fields(entry.JournalRef), " ")

	return domain.CandidateRecord{
		Source:   domain.SourceArXiv,
		Title:    title,
		Authors:  authors,
		Year:     year,
		Journal:  journal,
		DOI:      domain.NormalizeDOI(entry.DOI),
		URL:      pageURL,
		Abstract: strings.TrimSpace(entry.Summary),
	}, true
}
