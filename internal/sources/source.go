// Package sources provides clients for querying external bibliographic
// databases.
//
// Each provider (Crossref, OpenAlex, Semantic Scholar, DOAJ, PubMed, arXiv)
// implements the Source interface, allowing the enrichment service to fan a
// query out to multiple providers concurrently and collect uniform candidate
// records.
//
// Example usage:
//
//	src := crossref.New(cfg)
//	query := sources.Query{Text: "attention is all you need", MaxResults: 5}
//	candidates, err := src.Search(ctx, query)
package sources

import (
	"context"
	"time"

	"github.com/citemend/reference-enrichment/internal/domain"
)

// Query describes one search request against a bibliographic source.
type Query struct {
	// Text is the search string (required). Providers interpret it with
	// their own relevance ranking; some support fielded syntax.
	Text string

	// DOI, when set, requests a direct identifier lookup. Providers that
	// support DOI resolution should prefer it over text search; providers
	// that do not may ignore it.
	DOI string

	// MaxResults limits the number of candidates returned.
	// A value of 0 uses the source's default limit.
	MaxResults int
}

// Source is implemented by every bibliographic provider client.
type Source interface {
	// Search queries the provider and returns normalized candidate records.
	// Implementations must respect context cancellation, apply their own
	// rate limiting, and wrap errors with source context. An empty result
	// with a nil error means the provider answered but found nothing.
	Search(ctx context.Context, query Query) ([]domain.CandidateRecord, error)

	// SourceType returns the type identifier for this source.
	// Used for attribution, adjudication, and routing.
	SourceType() domain.SourceType

	// Name returns a human-readable name for logging and metrics.
	Name() string

	// IsEnabled reports whether this source is available for searches.
	// A source may be disabled by configuration or a missing API key.
	IsEnabled() bool
}

// SourceResult holds the outcome of one source's search during a fan-out.
type SourceResult struct {
	// Source identifies which provider produced the result.
	Source domain.SourceType

	// Candidates contains the normalized hits. Nil when Err is non-nil.
	Candidates []domain.CandidateRecord

	// Err contains the error if the search failed.
	Err error

	// Duration is the wall-clock time the source took to answer,
	// including network latency and response parsing.
	Duration time.Duration
}
