package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the reference enrichment
// service. Metrics are organized by subsystem: reconciliation passes, source
// searches, matching/merging, and the enrichment cache. All counters and
// histograms are registered via promauto for automatic registration with the
// default Prometheus registry.
type Metrics struct {
	// PassesStarted counts reconciliation passes initiated.
	PassesStarted prometheus.Counter

	// PassesEnriched counts passes that merged at least one external field.
	PassesEnriched prometheus.Counter

	// PassesUnchanged counts passes that returned the record unmodified
	// (no viable query, no accepted match, or merge rejected).
	PassesUnchanged prometheus.Counter

	// PassesSkipped counts passes skipped because the record already
	// exceeded the quality gate.
	PassesSkipped prometheus.Counter

	// PassDuration observes the end-to-end duration of passes in seconds.
	PassDuration prometheus.Histogram

	// QualityImprovement observes the quality score delta per enriched pass.
	QualityImprovement prometheus.Histogram

	// SearchesStarted counts source searches initiated, labeled by source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful source searches, labeled by source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed source searches, labeled by source.
	SearchesFailed *prometheus.CounterVec

	// SearchesTimedOut counts source searches abandoned at a deadline,
	// labeled by source. Distinguished from SearchesFailed for visibility
	// into slow providers versus broken ones.
	SearchesTimedOut *prometheus.CounterVec

	// SearchDuration observes source search duration in seconds.
	SearchDuration *prometheus.HistogramVec

	// CandidatesPerSearch observes the distribution of candidates returned
	// per source search.
	CandidatesPerSearch *prometheus.HistogramVec

	// CandidatesDuplicate counts duplicate candidates removed before matching.
	CandidatesDuplicate prometheus.Counter

	// MatchesAccepted counts accepted matches, labeled by source.
	MatchesAccepted *prometheus.CounterVec

	// MatchScore observes the composite score of accepted matches.
	MatchScore prometheus.Histogram

	// MergeOutcomes counts merge decisions by band (rejected, conservative,
	// aggressive).
	MergeOutcomes *prometheus.CounterVec

	// ConflictsRecorded counts adjudication conflicts surfaced to callers.
	ConflictsRecorded prometheus.Counter

	// CacheHits counts enrichment cache hits.
	CacheHits prometheus.Counter

	// CacheMisses counts enrichment cache misses.
	CacheMisses prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		PassesStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_started_total",
			Help:      "Total number of reconciliation passes started",
		}),
		PassesEnriched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_enriched_total",
			Help:      "Total number of passes that merged external data",
		}),
		PassesUnchanged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_unchanged_total",
			Help:      "Total number of passes that returned the record unmodified",
		}),
		PassesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_skipped_total",
			Help:      "Total number of passes skipped by the quality gate",
		}),
		PassDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of reconciliation passes in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		QualityImprovement: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quality_improvement",
			Help:      "Quality score improvement per enriched pass",
			Buckets:   []float64{0, 0.05, 0.1, 0.2, 0.3, 0.5, 0.75, 1},
		}),

		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of source searches started by source",
		}, []string{"source"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of source searches completed by source",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of source searches that failed by source",
		}, []string{"source"}),
		SearchesTimedOut: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_timed_out_total",
			Help:      "Total number of source searches abandoned at a deadline by source",
		}, []string{"source"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of source searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		CandidatesPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_per_search",
			Help:      "Number of candidates returned per source search",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50},
		}, []string{"source"}),
		CandidatesDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_duplicate_total",
			Help:      "Total number of duplicate candidates removed before matching",
		}),

		MatchesAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_accepted_total",
			Help:      "Total number of accepted matches by source",
		}, []string{"source"}),
		MatchScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_score",
			Help:      "Composite score of accepted matches",
			Buckets:   []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		MergeOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_outcomes_total",
			Help:      "Total number of merge decisions by score band",
		}, []string{"band"}),
		ConflictsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjudication_conflicts_total",
			Help:      "Total number of adjudication conflicts recorded",
		}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of enrichment cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of enrichment cache misses",
		}),
	}
}

// RecordPassStarted records that a reconciliation pass has started.
func (m *Metrics) RecordPassStarted() {
	m.PassesStarted.Inc()
}

// RecordPassEnriched records a pass that merged external data.
func (m *Metrics) RecordPassEnriched(durationSeconds, qualityImprovement float64) {
	m.PassesEnriched.Inc()
	m.PassDuration.Observe(durationSeconds)
	m.QualityImprovement.Observe(qualityImprovement)
}

// RecordPassUnchanged records a pass that returned the record unmodified.
func (m *Metrics) RecordPassUnchanged(durationSeconds float64) {
	m.PassesUnchanged.Inc()
	m.PassDuration.Observe(durationSeconds)
}

// RecordPassSkipped records a pass skipped by the quality gate.
func (m *Metrics) RecordPassSkipped() {
	m.PassesSkipped.Inc()
}

// RecordSearchStarted records that a source search has started.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchCompleted records a successful source search.
func (m *Metrics) RecordSearchCompleted(source string, candidateCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.CandidatesPerSearch.WithLabelValues(source).Observe(float64(candidateCount))
}

// RecordSearchFailed records a failed source search.
func (m *Metrics) RecordSearchFailed(source string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSearchTimedOut records a source search abandoned at a deadline.
func (m *Metrics) RecordSearchTimedOut(source string, durationSeconds float64) {
	m.SearchesTimedOut.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordDuplicateCandidates records duplicate candidates removed before
// matching.
func (m *Metrics) RecordDuplicateCandidates(count int) {
	m.CandidatesDuplicate.Add(float64(count))
}

// RecordMatchAccepted records an accepted match and its composite score.
func (m *Metrics) RecordMatchAccepted(source string, score float64) {
	m.MatchesAccepted.WithLabelValues(source).Inc()
	m.MatchScore.Observe(score)
}

// RecordMergeOutcome records a merge decision by score band.
func (m *Metrics) RecordMergeOutcome(band string) {
	m.MergeOutcomes.WithLabelValues(band).Inc()
}

// RecordConflicts records adjudication conflicts surfaced to a caller.
func (m *Metrics) RecordConflicts(count int) {
	m.ConflictsRecorded.Add(float64(count))
}

// RecordCacheHit records an enrichment cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records an enrichment cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}
