// Package main provides the entry point for the reference enrichment CLI.
//
// It reads parsed references as JSON lines from a file or stdin, reconciles
// them against the configured bibliographic sources, and writes enriched
// references as JSON lines to stdout.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/citemend/reference-enrichment/internal/config"
	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/enrich"
	"github.com/citemend/reference-enrichment/internal/observability"
	"github.com/citemend/reference-enrichment/internal/sources"
	"github.com/citemend/reference-enrichment/internal/sources/arxiv"
	"github.com/citemend/reference-enrichment/internal/sources/crossref"
	"github.com/citemend/reference-enrichment/internal/sources/doaj"
	"github.com/citemend/reference-enrichment/internal/sources/openalex"
	"github.com/citemend/reference-enrichment/internal/sources/pubmed"
	"github.com/citemend/reference-enrichment/internal/sources/semanticscholar"
)

// inputRecord is one JSON line of input: the parsed reference plus the raw
// citation text it was extracted from, when available.
type inputRecord struct {
	domain.ParsedReference
	OriginalText string `json:"original_text,omitempty"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		inputPath   = flag.String("input", "-", "input file of JSON-line parsed references, or - for stdin")
		aggressive  = flag.Bool("aggressive", false, "query every enabled source regardless of triage")
		fillMissing = flag.Bool("fill-missing", false, "allow corrective merging below the aggressive band")
		noForce     = flag.Bool("no-force", false, "skip references already above the quality gate")
		sourceList  = flag.String("sources", "", "comma-separated source list overriding triage (e.g. crossref,openalex)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "enrich").Logger()
	logger.Info().Msg("reference enrichment starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics, logger)
	}

	registry := sources.NewRegistry(cfg.Enrichment.PerSourceTimeout)
	registerSources(registry, cfg)
	logger.Info().Int("sources", len(registry.EnabledSources())).Msg("bibliographic sources registered")

	var cache enrich.Cache
	if cfg.Cache.Enabled {
		cache = enrich.NewLRUCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	svc := enrich.NewService(enrich.ServiceConfig{
		Registry:         registry,
		Policy:           enrichmentPolicy(cfg),
		Cache:            cache,
		BatchConcurrency: cfg.Batch.Concurrency,
		Logger:           logger,
		Metrics:          metrics,
	})

	refs, texts, err := readReferences(*inputPath)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		logger.Warn().Msg("no references to enrich")
		return nil
	}
	logger.Info().Int("references", len(refs)).Msg("input loaded")

	opts := enrich.Options{
		ForceEnrichment:   !*noForce,
		AggressiveSearch:  *aggressive,
		FillMissingFields: *fillMissing,
		SelectedSources:   parseSourceList(*sourceList),
	}

	start := time.Now()
	results := svc.EnrichBatch(ctx, refs, texts, opts)

	enrichedCount := 0
	out := bufio.NewWriter(os.Stdout)
	enc := json.NewEncoder(out)
	for _, result := range results {
		if result.APIEnrichmentUsed {
			enrichedCount++
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	logger.Info().
		Int("references", len(results)).
		Int("enriched", enrichedCount).
		Dur("duration", time.Since(start)).
		Msg("batch completed")
	return nil
}

// registerSources builds a client per configured source and registers it.
// Disabled sources are registered too so an explicit -sources selection can
// still reach them.
func registerSources(registry *sources.Registry, cfg *config.Config) {
	src := cfg.Sources

	registry.Register(crossref.New(crossref.Config{
		BaseURL:    src.Crossref.BaseURL,
		Email:      src.ContactEmail,
		Timeout:    src.Crossref.Timeout,
		RateLimit:  src.Crossref.RateLimit,
		BurstSize:  src.Crossref.BurstSize,
		MaxResults: src.Crossref.MaxResults,
		Enabled:    src.Crossref.Enabled,
	}))
	registry.Register(openalex.New(openalex.Config{
		BaseURL:    src.OpenAlex.BaseURL,
		Email:      src.ContactEmail,
		Timeout:    src.OpenAlex.Timeout,
		RateLimit:  src.OpenAlex.RateLimit,
		BurstSize:  src.OpenAlex.BurstSize,
		MaxResults: src.OpenAlex.MaxResults,
		Enabled:    src.OpenAlex.Enabled,
	}))
	registry.Register(semanticscholar.New(semanticscholar.Config{
		BaseURL:    src.SemanticScholar.BaseURL,
		APIKey:     src.SemanticScholar.APIKey,
		Timeout:    src.SemanticScholar.Timeout,
		RateLimit:  src.SemanticScholar.RateLimit,
		BurstSize:  src.SemanticScholar.BurstSize,
		MaxResults: src.SemanticScholar.MaxResults,
		Enabled:    src.SemanticScholar.Enabled,
	}))
	registry.Register(doaj.New(doaj.Config{
		BaseURL:    src.DOAJ.BaseURL,
		Timeout:    src.DOAJ.Timeout,
		RateLimit:  src.DOAJ.RateLimit,
		BurstSize:  src.DOAJ.BurstSize,
		MaxResults: src.DOAJ.MaxResults,
		Enabled:    src.DOAJ.Enabled,
	}))
	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:    src.PubMed.BaseURL,
		APIKey:     src.PubMed.APIKey,
		Timeout:    src.PubMed.Timeout,
		RateLimit:  src.PubMed.RateLimit,
		BurstSize:  src.PubMed.BurstSize,
		MaxResults: src.PubMed.MaxResults,
		Enabled:    src.PubMed.Enabled,
	}))
	registry.Register(arxiv.New(arxiv.Config{
		BaseURL:    src.ArXiv.BaseURL,
		Timeout:    src.ArXiv.Timeout,
		RateLimit:  src.ArXiv.RateLimit,
		BurstSize:  src.ArXiv.BurstSize,
		MaxResults: src.ArXiv.MaxResults,
		Enabled:    src.ArXiv.Enabled,
	}))
}

// enrichmentPolicy maps the enrichment section of the configuration onto the
// service policy.
func enrichmentPolicy(cfg *config.Config) enrich.Policy {
	e := cfg.Enrichment
	return enrich.Policy{
		TitleSimilarityFloor:  e.TitleSimilarityFloor,
		ConservativeThreshold: e.ConservativeThreshold,
		AggressiveThreshold:   e.AggressiveThreshold,
		YearTolerance:         e.YearTolerance,
		ConflictMargin:        e.ConflictMargin,
		AuthorOverlapFloor:    e.AuthorOverlapFloor,
		QualityGate:           e.QualityGate,
		DOIAuthority:          domain.SourceType(strings.ToLower(e.DOIAuthority)),
		OverallTimeout:        e.OverallTimeout,
	}
}

// readReferences parses one JSON reference per line, skipping blank lines.
func readReferences(path string) ([]domain.ParsedReference, []string, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var refs []domain.ParsedReference
	var texts []string

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec inputRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, nil, fmt.Errorf("parse input line %d: %w", line, err)
		}
		refs = append(refs, rec.ParsedReference)
		texts = append(texts, rec.OriginalText)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}
	return refs, texts, nil
}

// parseSourceList parses a comma-separated source override.
func parseSourceList(raw string) []domain.SourceType {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []domain.SourceType
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, domain.SourceType(part))
		}
	}
	return out
}

// serveMetrics exposes the Prometheus endpoint. Failures are logged, not
// fatal: a broken metrics listener must not block enrichment.
func serveMetrics(cfg config.MetricsConfig, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info().Str("addr", addr).Str("path", cfg.Path).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}
