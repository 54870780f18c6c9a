package enrich

import (
	"strconv"
	"strings"
	"time"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/normalize"
)

// Composite score weights. Year agreement and author overlap are fixed
// bonuses; when one signal is absent from the parsed reference its weight is
// redistributed so title similarity alone can still reach an acceptable
// score.
const (
	weightTitleSim   = 0.55
	weightYearBonus  = 0.20
	weightAuthorSim  = 0.20
	weightDOIPresent = 0.05
)

// APIResult wraps one source's accepted match for a reconciliation pass.
type APIResult struct {
	// Source identifies the provider that produced the match.
	Source domain.SourceType

	// Data is the accepted candidate record.
	Data domain.CandidateRecord

	// QualityScore is the completeness score of the candidate itself.
	QualityScore float64

	// Confidence is the composite match score against the parsed reference.
	Confidence float64

	// FieldsFound lists the candidate's populated fields.
	FieldsFound []string

	// ResponseTime is how long the source took to answer.
	ResponseTime time.Duration
}

// MatchSignals holds the per-candidate comparison snapshot behind a
// composite score.
type MatchSignals struct {
	TitleSimilarity float64
	AuthorOverlap   float64
	YearMatch       bool
	DOIPresent      bool
	Composite       float64
}

// Matcher selects at most one accepted candidate per source using blocking
// and composite similarity scoring. Read-only over the parsed reference.
type Matcher struct {
	norm   *normalize.Normalizer
	scorer *QualityScorer
	policy Policy
}

// NewMatcher creates a matcher.
func NewMatcher(norm *normalize.Normalizer, scorer *QualityScorer, policy Policy) *Matcher {
	return &Matcher{norm: norm, scorer: scorer, policy: policy}
}

// BestMatch returns the accepted match for one source's candidates, or false
// when every candidate was rejected.
//
// Blocking runs first as cheap elimination: a candidate is rejected only
// when both its author and year components disagree with the parsed
// reference. When the parsed reference lacks authors and a year, blocking is
// skipped entirely. If blocking eliminates every candidate, the match is
// retried once with blocking disabled, so over-aggressive blocking cannot
// hide a true match.
//
// There is no hard minimum on the composite score beyond the title floor:
// precision control is deferred to the merge engine's score-gated policy, so
// conservative rejection here would only cost enrichment of sparse records.
func (m *Matcher) BestMatch(ref *domain.ParsedReference, source domain.SourceType, candidates []domain.CandidateRecord, responseTime time.Duration) (APIResult, bool) {
	if len(candidates) == 0 {
		return APIResult{}, false
	}

	useBlocking := ref.HasAuthors() && ref.Year != 0

	best, signals, found := m.selectBest(ref, candidates, useBlocking)
	if !found && useBlocking {
		// Blocking eliminated everything; retry without it.
		best, signals, found = m.selectBest(ref, candidates, false)
	}
	if !found {
		return APIResult{}, false
	}

	return APIResult{
		Source:       source,
		Data:         best,
		QualityScore: m.candidateQuality(&best),
		Confidence:   signals.Composite,
		FieldsFound:  best.FieldsFound(),
		ResponseTime: responseTime,
	}, true
}

// Score computes the match signals for a single candidate without the
// blocking step. Exposed for observability and tests.
func (m *Matcher) Score(ref *domain.ParsedReference, candidate *domain.CandidateRecord) MatchSignals {
	return m.score(ref, candidate)
}

func (m *Matcher) selectBest(ref *domain.ParsedReference, candidates []domain.CandidateRecord, useBlocking bool) (domain.CandidateRecord, MatchSignals, bool) {
	var (
		best        domain.CandidateRecord
		bestSignals MatchSignals
		found       bool
	)

	for _, cand := range candidates {
		if useBlocking && m.blockingRejects(ref, &cand) {
			continue
		}

		signals := m.score(ref, &cand)
		if ref.Title != "" && signals.TitleSimilarity < m.policy.TitleSimilarityFloor {
			continue
		}

		if !found || signals.Composite > bestSignals.Composite {
			best = cand
			bestSignals = signals
			found = true
		}
	}

	return best, bestSignals, found
}

// blockingRejects reports whether the candidate's blocking key disagrees
// with the parsed reference on both the author and year components. Key
// disagreement on a single component is never disqualifying.
func (m *Matcher) blockingRejects(ref *domain.ParsedReference, cand *domain.CandidateRecord) bool {
	refKey := m.norm.BlockingKey(ref.FamilyNames, ref.Year, ref.Journal)
	candKey := m.norm.BlockingKey(cand.Surnames(), cand.Year, cand.Journal)

	refSurname, refYear := blockingComponents(refKey)
	candSurname, candYear := blockingComponents(candKey)

	authorDisagrees := refSurname != "" && candSurname != "" && refSurname != candSurname
	yearDisagrees := refYear != 0 && candYear != 0 && absInt(refYear-candYear) > m.policy.YearTolerance

	return authorDisagrees && yearDisagrees
}

// blockingComponents splits a blocking key into its author and year parts.
// The venue part is never compared: venue naming is too noisy to disqualify
// a candidate over.
func blockingComponents(key string) (surname string, year int) {
	if key == "unknown" {
		return "", 0
	}
	parts := strings.SplitN(key, "_", 3)
	surname = parts[0]
	if len(parts) > 1 {
		year, _ = strconv.Atoi(parts[1])
	}
	return surname, year
}

func (m *Matcher) score(ref *domain.ParsedReference, cand *domain.CandidateRecord) MatchSignals {
	signals := MatchSignals{
		TitleSimilarity: m.titleSimilarity(ref.Title, cand.Title),
		DOIPresent:      cand.DOI != "",
	}

	hasYear := ref.Year != 0
	hasAuthors := ref.HasAuthors()

	if hasYear {
		signals.YearMatch = cand.Year != 0 && absInt(ref.Year-cand.Year) <= m.policy.YearTolerance
	} else {
		// Vacuously true: title-only matching must remain possible.
		signals.YearMatch = true
	}

	if hasAuthors {
		signals.AuthorOverlap = normalize.SurnameOverlap(ref.FamilyNames, cand.Surnames())
	} else {
		signals.AuthorOverlap = 1.0
	}

	// Redistribute absent signals' weight onto title similarity.
	titleW, yearW, authorW := weightTitleSim, weightYearBonus, weightAuthorSim
	switch {
	case !hasYear && !hasAuthors:
		titleW += yearW + authorW
		yearW, authorW = 0, 0
	case !hasYear:
		titleW += yearW
		yearW = 0
	case !hasAuthors:
		titleW += authorW
		authorW = 0
	}

	composite := titleW * signals.TitleSimilarity
	if signals.YearMatch {
		composite += yearW
	}
	composite += authorW * signals.AuthorOverlap
	if signals.DOIPresent {
		composite += weightDOIPresent
	}

	signals.Composite = clamp01(composite)
	return signals
}

// titleSimilarity takes the maximum similarity across every comparable
// representation, the main recall lever against bibliographic noise.
func (m *Matcher) titleSimilarity(refTitle, candTitle string) float64 {
	if refTitle == "" || candTitle == "" {
		return 0
	}

	refForms := m.norm.Title(refTitle)
	candForms := m.norm.Title(candTitle)

	best := m.norm.Similarity(refForms.Basic, candForms.Basic, normalize.Jaccard)
	if s := m.norm.Similarity(refForms.NoStopwords, candForms.NoStopwords, normalize.Jaccard); s > best {
		best = s
	}
	if s := m.norm.Similarity(refForms.TokenSorted, candForms.TokenSorted, normalize.Jaccard); s > best {
		best = s
	}
	if s := normalize.SetSimilarity(refForms.Bigrams, candForms.Bigrams); s > best {
		best = s
	}
	if s := normalize.SetSimilarity(refForms.Trigrams, candForms.Trigrams); s > best {
		best = s
	}
	if s := normalize.SetSimilarity(refForms.Acronyms, candForms.Acronyms); s > best {
		best = s
	}
	return best
}

// candidateQuality scores the candidate record's own completeness.
func (m *Matcher) candidateQuality(cand *domain.CandidateRecord) float64 {
	ref := candidateToReference(cand)
	return m.scorer.Score(&ref)
}

// candidateToReference reshapes a candidate into the parsed-reference form
// used by the quality scorer.
func candidateToReference(cand *domain.CandidateRecord) domain.ParsedReference {
	ref := domain.ParsedReference{
		Title:     cand.Title,
		Year:      cand.Year,
		Journal:   cand.Journal,
		Volume:    cand.Volume,
		Issue:     cand.Issue,
		Pages:     cand.Pages,
		DOI:       cand.DOI,
		URL:       cand.URL,
		Publisher: cand.Publisher,
		Abstract:  cand.Abstract,
	}
	for _, a := range cand.Authors {
		surname := a.Surname
		if surname == "" {
			if parts := strings.Fields(a.FullName); len(parts) > 0 {
				surname = parts[len(parts)-1]
			}
		}
		if surname == "" {
			continue
		}
		ref.FamilyNames = append(ref.FamilyNames, surname)
		ref.GivenNames = append(ref.GivenNames, a.GivenName)
	}
	ref.RebuildFullNames()
	return ref
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
