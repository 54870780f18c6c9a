package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/citemend/reference-enrichment/internal/domain"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultRateLimit = 10
	defaultBurstSize = 10
	defaultUserAgent = "CiteMend-ReferenceEnrichment/1.0"

	// maxAttempts bounds one logical request: the initial attempt plus
	// retries on throttling, server errors, and network failures.
	maxAttempts = 4

	// defaultBackoff is the wait between retries when the provider sends no
	// Retry-After header.
	defaultBackoff = time.Second
)

// HTTPClientConfig configures the transport shared by the provider clients.
type HTTPClientConfig struct {
	// Timeout bounds a single request attempt.
	Timeout time.Duration

	// RateLimit is the sustained request rate in requests per second.
	RateLimit float64

	// BurstSize is the short-term allowance on top of RateLimit.
	BurstSize int

	// UserAgent identifies this engine to the provider. Polite pools
	// (Crossref, OpenAlex) expect a contact address embedded here.
	UserAgent string

	// APIKey and APIKeyHeader carry optional provider credentials. Both
	// must be set for the header to be sent.
	APIKey       string
	APIKeyHeader string
}

// HTTPClient is the transport behind every bibliographic provider client:
// token-bucket rate limiting before each attempt, a bounded retry budget for
// throttling and server errors, and credential headers. Providers are
// queried with body-less GET requests, so a failed attempt is always safe to
// resend as-is. Safe for concurrent use.
type HTTPClient struct {
	client  *http.Client
	limiter *RateLimiter
	config  HTTPClientConfig

	// backoff is the between-retry wait used when the provider gives no
	// Retry-After. Overridable in tests.
	backoff time.Duration
}

// NewHTTPClient creates a rate-limited provider transport. Zero config
// fields fall back to conservative defaults.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = defaultBurstSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &HTTPClient{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:  cfg,
		backoff: defaultBackoff,
	}
}

// Do executes one provider request. Each attempt waits for the rate limiter
// first; 429 and 5xx responses are retried within the attempt budget,
// honoring Retry-After when the provider sends it. Other statuses are
// returned to the caller untouched, including 4xx.
//
// When the budget runs out the error unwraps to domain.ErrRateLimited (the
// provider kept throttling) or domain.ErrSourceUnavailable (persistent
// server or network failure), so the registry can classify it per source.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	var (
		lastStatus int
		lastDelay  time.Duration
		lastErr    error
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastStatus, lastErr = 0, err
			lastDelay = c.backoff
		} else if retryableStatus(resp.StatusCode) {
			lastStatus, lastErr = resp.StatusCode, nil
			lastDelay = c.backoff
			if d, ok := retryAfterDelay(resp); ok {
				lastDelay = d
			}
			drainBody(resp)
		} else {
			return resp, nil
		}

		if attempt < maxAttempts {
			if err := c.sleep(req.Context(), lastDelay); err != nil {
				return nil, err
			}
		}
	}

	host := req.URL.Host
	switch {
	case lastStatus == http.StatusTooManyRequests:
		return nil, domain.NewRateLimitError(host, lastDelay)
	case lastStatus != 0:
		return nil, domain.NewExternalAPIError(host, lastStatus,
			fmt.Sprintf("still failing after %d attempts", maxAttempts), nil)
	default:
		return nil, domain.NewExternalAPIError(host, 0,
			fmt.Sprintf("unreachable after %d attempts", maxAttempts), lastErr)
	}
}

// retryableStatus reports whether a response status is worth another
// attempt: throttling and server-side failures only. Client errors like 404
// are provider answers, not transport failures.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// retryAfterDelay parses the Retry-After header as either delay seconds or
// an HTTP date. Absent, unparseable, and non-positive values report false.
func retryAfterDelay(resp *http.Response) (time.Duration, bool) {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second, true
		}
		return 0, false
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

// drainBody consumes and closes a response body that will not be returned,
// keeping the underlying connection reusable.
func drainBody(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func (c *HTTPClient) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
