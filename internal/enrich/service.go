package enrich

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/normalize"
	"github.com/citemend/reference-enrichment/internal/observability"
	"github.com/citemend/reference-enrichment/internal/sources"
)

// DefaultBatchConcurrency caps how many references are reconciled in
// parallel, to respect third-party rate limits.
const DefaultBatchConcurrency = 5

// Options control one enrichment call.
type Options struct {
	// ForceEnrichment runs the pass even when the record is already above
	// the quality gate.
	ForceEnrichment bool

	// AggressiveSearch queries every enabled source regardless of triage.
	AggressiveSearch bool

	// FillMissingFields opts in to corrective merging below the aggressive
	// band. Never the default.
	FillMissingFields bool

	// SelectedSources restricts the pass to specific sources, overriding
	// triage. Nil uses triage.
	SelectedSources []domain.SourceType
}

// DefaultOptions returns the standard enrichment options.
func DefaultOptions() Options {
	return Options{ForceEnrichment: true}
}

// Service is the reconciliation entry point: it runs query strategies
// against the selected sources, matches, adjudicates, and merges, producing
// an enriched reference. A pass always returns a valid (possibly unchanged)
// record; partial enrichment is the normal terminal state, not an error.
type Service struct {
	orchestrator *Orchestrator
	matcher      *Matcher
	adjudicator  *Adjudicator
	merger       *Merger
	scorer       *QualityScorer
	norm         *normalize.Normalizer
	cache        Cache
	policy       Policy
	logger       zerolog.Logger
	metrics      *observability.Metrics

	batchConcurrency int64
}

// ServiceConfig holds the Service's injected collaborators.
type ServiceConfig struct {
	Registry *sources.Registry
	Policy   Policy

	// Cache is optional; nil disables caching.
	Cache Cache

	// AuthorPolicy is optional; nil uses the default heuristic policy.
	AuthorPolicy normalize.AuthorPlausibilityPolicy

	// BatchConcurrency caps parallel reconciliations in EnrichBatch.
	// Zero uses DefaultBatchConcurrency.
	BatchConcurrency int

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// NewService creates an enrichment service.
func NewService(cfg ServiceConfig) *Service {
	norm := normalize.New()
	scorer := NewQualityScorer(cfg.AuthorPolicy)

	cache := cfg.Cache
	if cache == nil {
		cache = NoopCache{}
	}
	concurrency := int64(cfg.BatchConcurrency)
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	return &Service{
		orchestrator:     NewOrchestrator(cfg.Registry, cfg.Policy, cfg.Logger, cfg.Metrics),
		matcher:          NewMatcher(norm, scorer, cfg.Policy),
		adjudicator:      NewAdjudicator(cfg.Policy),
		merger:           NewMerger(cfg.Policy, cfg.AuthorPolicy),
		scorer:           scorer,
		norm:             norm,
		cache:            cache,
		policy:           cfg.Policy,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		batchConcurrency: concurrency,
	}
}

// Enrich reconciles one parsed reference against external sources. It never
// returns an error: failures short-circuit to the unchanged record with
// APIEnrichmentUsed false.
func (s *Service) Enrich(ctx context.Context, ref domain.ParsedReference, originalText string, opts Options) domain.EnrichedReference {
	passID := uuid.NewString()
	ctx = observability.WithPassID(ctx, passID)
	logger := observability.WithPassContext(s.logger, passID)

	s.metrics.RecordPassStarted()
	start := time.Now()

	initialScore := s.scorer.Score(&ref)

	if !opts.ForceEnrichment && initialScore >= s.policy.QualityGate {
		logger.Debug().Float64("quality_score", initialScore).Msg("reference already above quality gate, skipping")
		s.metrics.RecordPassSkipped()
		return passthrough(&ref, initialScore)
	}

	cacheKey := CacheKey(&ref)
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.RecordCacheHit()
		logger.Debug().Msg("enrichment cache hit")
		return cached
	}
	s.metrics.RecordCacheMiss()

	enriched := s.reconcile(ctx, logger, &ref, originalText, initialScore, opts)

	duration := time.Since(start).Seconds()
	if enriched.APIEnrichmentUsed && len(enriched.Changes) > 0 {
		s.metrics.RecordPassEnriched(duration, enriched.QualityImprovement)
	} else {
		s.metrics.RecordPassUnchanged(duration)
	}

	s.cache.Set(cacheKey, enriched)
	return enriched
}

// reconcile runs the strategy loop, matching, adjudication, and merge.
func (s *Service) reconcile(ctx context.Context, logger zerolog.Logger, ref *domain.ParsedReference, originalText string, initialScore float64, opts Options) domain.EnrichedReference {
	strategies, err := BuildQueries(s.norm, ref, originalText)
	if err != nil {
		logger.Info().Msg("no viable search query, returning record unchanged")
		return passthrough(ref, initialScore)
	}

	sourceTypes := s.orchestrator.SelectSources(ref, opts.SelectedSources, opts.AggressiveSearch)
	if len(sourceTypes) == 0 {
		logger.Warn().Msg("no sources available")
		return passthrough(ref, initialScore)
	}

	doi := domain.NormalizeDOI(ref.DOI)

	var accepted []APIResult
	for i, strategy := range strategies {
		// Direct DOI lookup only on the first attempt; later strategies
		// fall back to text search.
		lookupDOI := ""
		if i == 0 {
			lookupDOI = doi
		}
		accepted = s.matchStrategy(ctx, logger, ref, strategy, lookupDOI, sourceTypes)
		if len(accepted) > 0 {
			break
		}
	}

	if len(accepted) == 0 {
		// Final retry with title-only, defending against transient source
		// errors on the earlier attempts.
		if retry, ok := titleOnlyRetry(s.norm, ref); ok {
			accepted = s.matchStrategy(ctx, logger, ref, retry, "", sourceTypes)
		}
	}

	if len(accepted) == 0 {
		logger.Info().Msg("no accepted match from any source")
		return passthrough(ref, initialScore)
	}

	data, conflicts, score := s.adjudicate(logger, accepted)

	outcome := s.merger.Merge(ref, &data, score, opts.FillMissingFields)
	s.metrics.RecordMergeOutcome(outcome.Band)
	if len(conflicts) > 0 {
		s.metrics.RecordConflicts(len(conflicts))
	}

	finalScore := s.scorer.Score(&outcome.Record)
	logger.Info().
		Str("band", outcome.Band).
		Float64("match_score", score).
		Int("changes", len(outcome.Changes)).
		Float64("quality_improvement", finalScore-initialScore).
		Msg("reconciliation completed")

	return domain.EnrichedReference{
		ParsedReference:    outcome.Record,
		APIEnrichmentUsed:  outcome.Band != BandRejected,
		EnrichmentSources:  sourceNames(accepted),
		QualityImprovement: finalScore - initialScore,
		FinalQualityScore:  finalScore,
		Conflicts:          conflicts,
		Changes:            outcome.Changes,
	}
}

// matchStrategy retrieves one strategy's candidates and selects at most one
// accepted match per source.
func (s *Service) matchStrategy(ctx context.Context, logger zerolog.Logger, ref *domain.ParsedReference, strategy QueryStrategy, doi string, sourceTypes []domain.SourceType) []APIResult {
	retrieved := s.orchestrator.Retrieve(ctx, strategy, doi, sourceTypes)

	var accepted []APIResult
	for _, res := range retrieved {
		match, ok := s.matcher.BestMatch(ref, res.source, res.candidates, res.duration)
		if !ok {
			continue
		}
		s.metrics.RecordMatchAccepted(string(res.source), match.Confidence)
		srcLogger := observability.WithSourceContext(logger, string(res.source), strategy.Name)
		srcLogger.Debug().Float64("score", match.Confidence).Msg("match accepted")
		accepted = append(accepted, match)
	}
	return accepted
}

// adjudicate resolves the accepted matches into one record. A single match
// is used directly; two or more go through the multi-source adjudicator.
// The merge score is the best composite score among the accepted matches.
func (s *Service) adjudicate(logger zerolog.Logger, accepted []APIResult) (domain.CandidateRecord, []domain.AdjudicationConflict, float64) {
	score := accepted[0].Confidence
	for _, r := range accepted[1:] {
		if r.Confidence > score {
			score = r.Confidence
		}
	}

	if len(accepted) == 1 {
		return accepted[0].Data, nil, score
	}

	data, conflicts := s.adjudicator.Adjudicate(accepted)
	if len(conflicts) > 0 {
		logger.Info().Int("conflicts", len(conflicts)).Msg("adjudication recorded conflicts")
	}
	return data, conflicts, score
}

// EnrichBatch reconciles a batch of references concurrently, bounded by the
// batch concurrency cap. Results are associated to inputs by index, never by
// completion order. One reference's failure never aborts its siblings: a
// panicking pass degrades to the unchanged record.
//
// originalTexts is index-aligned with refs; it may be shorter, in which case
// missing entries are treated as empty.
func (s *Service) EnrichBatch(ctx context.Context, refs []domain.ParsedReference, originalTexts []string, opts Options) []domain.EnrichedReference {
	batchID := uuid.NewString()
	results := make([]domain.EnrichedReference, len(refs))

	// Most incomplete references first, so rate-limit budget goes to the
	// records with the most to gain.
	order := make([]int, len(refs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return PriorityScore(&refs[order[a]]) > PriorityScore(&refs[order[b]])
	})

	sem := semaphore.NewWeighted(s.batchConcurrency)
	var wg sync.WaitGroup

	for _, idx := range order {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context canceled: pass the remaining references through.
			ref := refs[idx]
			results[idx] = passthrough(&ref, s.scorer.Score(&ref))
			continue
		}

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer sem.Release(1)

			refCtx := observability.WithBatch(ctx, batchID, idx)
			logger := observability.WithReferenceContext(s.logger, idx, refs[idx].Title)

			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Msg("reconciliation panicked, passing reference through")
					ref := refs[idx]
					results[idx] = passthrough(&ref, s.scorer.Score(&ref))
				}
			}()

			var text string
			if idx < len(originalTexts) {
				text = originalTexts[idx]
			}
			results[idx] = s.Enrich(refCtx, refs[idx], text, opts)
		}(idx)
	}

	wg.Wait()
	return results
}

// passthrough wraps an unmodified record as a valid enrichment result.
func passthrough(ref *domain.ParsedReference, score float64) domain.EnrichedReference {
	return domain.EnrichedReference{
		ParsedReference:   ref.Clone(),
		APIEnrichmentUsed: false,
		FinalQualityScore: score,
	}
}

func sourceNames(results []APIResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, string(r.Source))
	}
	return out
}
