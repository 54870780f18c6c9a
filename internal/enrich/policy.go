package enrich

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/citemend/reference-enrichment/internal/domain"
)

// Policy holds the matching, adjudication, and merge thresholds for one
// enrichment service instance. The defaults encode an empirically chosen
// precision/recall tradeoff; deployments may tune them through configuration
// but the merge-band semantics do not change.
type Policy struct {
	// TitleSimilarityFloor is the minimum title similarity for a candidate
	// to stay in consideration. Deliberately permissive: abbreviated and
	// translated titles diverge lexically while denoting the same work, and
	// the composite score still penalizes weak title matches.
	TitleSimilarityFloor float64 `validate:"gte=0,lte=1"`

	// ConservativeThreshold is the composite score at which fill-only
	// merging begins.
	ConservativeThreshold float64 `validate:"gte=0,lte=1"`

	// AggressiveThreshold is the composite score at which corrective
	// merging begins. Must be >= ConservativeThreshold.
	AggressiveThreshold float64 `validate:"gte=0,lte=1,gtefield=ConservativeThreshold"`

	// YearTolerance is the maximum publication year difference still
	// treated as agreement.
	YearTolerance int `validate:"gte=0"`

	// ConflictMargin is the relative confidence margin below which a field
	// disagreement between sources is recorded as an AdjudicationConflict.
	ConflictMargin float64 `validate:"gte=0,lte=1"`

	// AuthorOverlapFloor is the minimum surname overlap required for the
	// DOI authority's author list to win adjudication.
	AuthorOverlapFloor float64 `validate:"gte=0,lte=1"`

	// QualityGate is the quality score above which a reference is not
	// enriched unless the caller forces it.
	QualityGate float64 `validate:"gte=0,lte=1"`

	// DOIAuthority is the source treated as canonical for identifiers
	// during adjudication. Configuration, not a hardcoded provider: when no
	// accepted match comes from this source, adjudication degrades to pure
	// confidence weighting.
	DOIAuthority domain.SourceType `validate:"required"`

	// OverallTimeout bounds one full retrieval round across all selected
	// sources. Individual source calls are additionally bounded by the
	// registry's per-source timeout.
	OverallTimeout time.Duration `validate:"gt=0"`
}

// DefaultPolicy returns the standard enrichment policy.
func DefaultPolicy() Policy {
	return Policy{
		TitleSimilarityFloor:  0.30,
		ConservativeThreshold: 0.60,
		AggressiveThreshold:   0.80,
		YearTolerance:         2,
		ConflictMargin:        0.20,
		AuthorOverlapFloor:    0.60,
		QualityGate:           0.80,
		DOIAuthority:          domain.SourceCrossref,
		OverallTimeout:        60 * time.Second,
	}
}

// Validate checks the policy's threshold ranges and ordering.
func (p Policy) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid enrichment policy: %w", err)
	}
	return nil
}
