package enrich

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/observability"
	"github.com/citemend/reference-enrichment/internal/sources"
)

// doiOrientedSources answer DOI lookups directly: cheap, high precision.
var doiOrientedSources = []domain.SourceType{domain.SourceCrossref, domain.SourceOpenAlex}

// topPrioritySources are queried when the parsed reference is too sparse to
// justify fanning out to every provider.
var topPrioritySources = []domain.SourceType{domain.SourceCrossref, domain.SourceOpenAlex}

// retrievalResult is one source's deduplicated contribution to a strategy
// attempt.
type retrievalResult struct {
	source     domain.SourceType
	candidates []domain.CandidateRecord
	duration   time.Duration
}

// Orchestrator fans one query strategy out to the selected sources
// concurrently, bounded by an overall timeout on top of the registry's
// per-source timeout. Source failures degrade to empty contributions; they
// never abort the reconciliation.
type Orchestrator struct {
	registry *sources.Registry
	policy   Policy
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(registry *sources.Registry, policy Policy, logger zerolog.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		policy:   policy,
		logger:   logger,
		metrics:  metrics,
	}
}

// SelectSources triages which sources to query for a reference. A DOI routes
// to the DOI-oriented sources only; a strong title+author pair justifies the
// full fan-out; sparse data is sent to the top-priority sources so scarce
// signal is not diluted across six noisy lookups. An explicit selection or
// the aggressive flag overrides triage.
func (o *Orchestrator) SelectSources(ref *domain.ParsedReference, selected []domain.SourceType, aggressive bool) []domain.SourceType {
	if len(selected) > 0 {
		return selected
	}
	if aggressive {
		return o.enabledSourceTypes()
	}
	if domain.NormalizeDOI(ref.DOI) != "" {
		return doiOrientedSources
	}
	if strings.TrimSpace(ref.Title) != "" && ref.HasAuthors() {
		return o.enabledSourceTypes()
	}
	return topPrioritySources
}

// Retrieve runs one query strategy against the given sources concurrently
// and returns each source's deduplicated candidates. Failed and timed-out
// sources are logged and omitted. A non-empty doi requests direct identifier
// lookup from sources that support it; callers pass it on the first attempt
// only, so later strategies fall back to text search when the DOI does not
// resolve.
func (o *Orchestrator) Retrieve(ctx context.Context, strategy QueryStrategy, doi string, sourceTypes []domain.SourceType) []retrievalResult {
	ctx, cancel := context.WithTimeout(ctx, o.policy.OverallTimeout)
	defer cancel()

	query := sources.Query{Text: strategy.Text, DOI: doi}

	for _, st := range sourceTypes {
		o.metrics.RecordSearchStarted(string(st))
	}

	results := o.registry.SearchSources(ctx, query, sourceTypes)

	out := make([]retrievalResult, 0, len(results))
	for _, res := range results {
		logger := observability.WithSourceContext(o.logger, string(res.Source), strategy.Name)
		seconds := res.Duration.Seconds()

		if res.Err != nil {
			if errors.Is(res.Err, context.DeadlineExceeded) {
				o.metrics.RecordSearchTimedOut(string(res.Source), seconds)
				logger.Warn().Dur("duration", res.Duration).Msg("source search timed out")
			} else {
				o.metrics.RecordSearchFailed(string(res.Source), seconds)
				logger.Warn().Err(res.Err).Msg("source search failed")
			}
			continue
		}

		candidates, removed := dedupeCandidates(res.Candidates)
		if removed > 0 {
			o.metrics.RecordDuplicateCandidates(removed)
		}
		o.metrics.RecordSearchCompleted(string(res.Source), len(candidates), seconds)
		logger.Debug().Int("candidates", len(candidates)).Dur("duration", res.Duration).Msg("source search completed")

		if len(candidates) == 0 {
			continue
		}
		out = append(out, retrievalResult{
			source:     res.Source,
			candidates: candidates,
			duration:   res.Duration,
		})
	}
	return out
}

func (o *Orchestrator) enabledSourceTypes() []domain.SourceType {
	enabled := o.registry.EnabledSources()
	out := make([]domain.SourceType, 0, len(enabled))
	for _, s := range enabled {
		out = append(out, s.SourceType())
	}
	return out
}

// dedupeCandidates removes duplicate candidates (same title and year) from
// one source's results, keeping the first occurrence. Returns the surviving
// candidates and the number removed.
func dedupeCandidates(candidates []domain.CandidateRecord) ([]domain.CandidateRecord, int) {
	if len(candidates) < 2 {
		return candidates, 0
	}

	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0:0]
	removed := 0
	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c.Title)) + "|" + strconv.Itoa(c.Year)
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out, removed
}
