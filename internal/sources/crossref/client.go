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

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/sources"
)

const (
	// DefaultBaseURL is the default Crossref REST API base URL.
	DefaultBaseURL = "https://api.crossref.org"

	// DefaultRateLimit is the default rate limit for requests per second.
	// The polite pool (with mailto) tolerates sustained traffic better.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search request.
	DefaultMaxResults = 10

	// sourceName is the human-readable name for this source.
	sourceName = "Crossref"
)

// jatsTagRegex strips JATS markup that Crossref embeds in abstracts.
var jatsTagRegex = regexp.MustCompile(`</?jats:[^>]+>|</?[a-z]+[^>]*>`)

// Config holds configuration for the Crossref client.
type Config struct {
	// BaseURL is the Crossref API base URL.
	// Defaults to https://api.crossref.org
	BaseURL string

	// Email is the contact email for the polite pool.
	// See: https://api.crossref.org/swagger-ui/index.html#etiquette
	Email string

	// Timeout is the request timeout.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to 10 req/sec.
	RateLimit float64

	// BurstSize is the maximum burst of requests allowed.
	// Defaults to 10.
	BurstSize int

	// MaxResults is the maximum results to return per search request.
	// Defaults to 10, maximum is 1000 per Crossref API.
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

// Client implements the sources.Source interface for Crossref.
type Client struct {
	config     Config
	httpClient *sources.HTTPClient
}

// Ensure Client implements Source interface.
var _ sources.Source = (*Client)(nil)

// New creates a new Crossref client with the given configuration.
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

// NewWithHTTPClient creates a new Crossref client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *sources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search queries Crossref for works matching the given query.
// When the query carries a DOI, a direct /works/{doi} lookup is performed
// instead of a bibliographic search; a resolved DOI yields exactly one
// candidate.
func (c *Client) Search(ctx context.Context, query sources.Query) ([]domain.CandidateRecord, error) {
	if doi := domain.NormalizeDOI(query.DOI); doi != "" {
		return c.lookupDOI(ctx, doi)
	}

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
	var worksResp WorksResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&worksResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	candidates := make([]domain.CandidateRecord, 0, len(worksResp.Message.Items))
	for i := range worksResp.Message.Items {
		if rec, ok := workToCandidate(&worksResp.Message.Items[i]); ok {
			candidates = append(candidates, rec)
		}
	}
	return candidates, nil
}

// lookupDOI resolves a single DOI via the /works/{doi} endpoint.
// A missing DOI is not an error: it returns an empty candidate list.
func (c *Client) lookupDOI(ctx context.Context, doi string) ([]domain.CandidateRecord, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works/" + doi

	if c.config.Email != "" {
		q := url.Values{}
		q.Set("mailto", c.config.Email)
		baseURL.RawQuery = q.Encode()
	}

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
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
	}

	var workResp WorkResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&workResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	rec, ok := workToCandidate(&workResp.Message)
	if !ok {
		return nil, nil
	}
	return []domain.CandidateRecord{rec}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() domain.SourceType {
	return domain.SourceCrossref
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the /works search URL with query parameters.
func (c *Client) buildSearchURL(query sources.Query) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works"

	q := url.Values{}
	q.Set("query.bibliographic", query.Text)

	rows := query.MaxResults
	if rows <= 0 || rows > c.config.MaxResults {
		rows = c.config.MaxResults
	}
	q.Set("rows", strconv.Itoa(rows))
	q.Set("select", "DOI,title,author,issued,container-title,volume,issue,page,publisher,URL,abstract")

	if c.config.Email != "" {
		q.Set("mailto", c.config.Email)
	}

	baseURL.RawQuery = q.Encode()
	return baseURL.String(), nil
}

// workToCandidate converts a Crossref work to a candidate record.
// Works without a title are dropped: they can never clear title matching.
func workToCandidate(work *Work) (domain.CandidateRecord, bool) {
	var title string
	if len(work.Title) > 0 {
		title = strings.TrimSpace(work.Title[0])
	}
	if title == "" {
		return domain.CandidateRecord{}, false
	}

	authors := make([]domain.Author, 0, len(work.Author))
	for _, a := range work.Author {
		switch {
		case a.Family != "":
			authors = append(authors, domain.Author{GivenName: a.Given, Surname: a.Family})
		case a.Name != "":
			authors = append(authors, domain.Author{FullName: a.Name})
		}
	}

	year := work.Issued.Year()
	if year == 0 && work.PublishedPrint != nil {
		year = work.PublishedPrint.Year()
	}

	var journal string
	if len(work.ContainerTitle) > 0 {
		journal = strings.TrimSpace(work.ContainerTitle[0])
	}

	return domain.CandidateRecord{
		Source:    domain.SourceCrossref,
		Title:     title,
		Authors:   authors,
		Year:      year,
		Journal:   journal,
		Volume:    work.Volume,
		Issue:     work.Issue,
		Pages:     work.Page,
		DOI:       domain.NormalizeDOI(work.DOI),
		URL:       work.URL,
		Publisher: work.Publisher,
		Abstract:  cleanAbstract(work.Abstract),
	}, true
}

// cleanAbstract strips JATS markup from Crossref abstract payloads.
func cleanAbstract(abstract string) string {
	if abstract == "" {
		return ""
	}
	cleaned := jatsTagRegex.ReplaceAllString(abstract, " ")
	return strings.Join(strings.Fields(cleaned), " ")
}
