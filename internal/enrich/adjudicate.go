package enrich

import (
	"strconv"
	"strings"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/normalize"
)

// Adjudicator resolves per-field disagreements between multiple sources'
// accepted matches into a single record. No single provider is authoritative
// for every field, so resolution is field-scoped and confidence-weighted
// rather than picking one winning provider globally. Conflicts are advisory:
// a value is always chosen, never blocked.
type Adjudicator struct {
	policy Policy
}

// NewAdjudicator creates an adjudicator.
func NewAdjudicator(policy Policy) *Adjudicator {
	return &Adjudicator{policy: policy}
}

// fieldValue is one source's vote for a field.
type fieldValue struct {
	source     domain.SourceType
	value      string
	confidence float64
}

// Adjudicate merges two or more accepted matches into one candidate record,
// recording a conflict for each field where the winning confidence was not
// decisively higher than the runner-up's.
func (a *Adjudicator) Adjudicate(results []APIResult) (domain.CandidateRecord, []domain.AdjudicationConflict) {
	var conflicts []domain.AdjudicationConflict
	record := func(c *domain.AdjudicationConflict) {
		if c != nil {
			conflicts = append(conflicts, *c)
		}
	}

	merged := domain.CandidateRecord{Source: a.chosenSource(results)}

	merged.DOI = a.adjudicateDOI(results)
	merged.Year = a.adjudicateYear(results, record)

	var c *domain.AdjudicationConflict
	merged.Title, c = a.adjudicateAuthoritative("title", collect(results, func(r *APIResult) string { return r.Data.Title }))
	record(c)
	merged.Journal, c = a.adjudicateAuthoritative("journal", collect(results, func(r *APIResult) string { return r.Data.Journal }))
	record(c)

	merged.Authors = a.adjudicateAuthors(results)

	merged.URL = a.highestConfidence(collect(results, func(r *APIResult) string { return r.Data.URL }))
	merged.Publisher = a.highestConfidence(collect(results, func(r *APIResult) string { return r.Data.Publisher }))
	merged.Abstract = a.highestConfidence(collect(results, func(r *APIResult) string { return r.Data.Abstract }))
	merged.Volume = a.highestConfidence(collect(results, func(r *APIResult) string { return r.Data.Volume }))
	merged.Issue = a.highestConfidence(collect(results, func(r *APIResult) string { return r.Data.Issue }))
	merged.Pages = a.highestConfidence(collect(results, func(r *APIResult) string { return r.Data.Pages }))

	return merged, conflicts
}

// chosenSource attributes the merged record to the DOI authority when it
// participated, otherwise to the highest-confidence source.
func (a *Adjudicator) chosenSource(results []APIResult) domain.SourceType {
	best := results[0].Source
	bestConf := results[0].Confidence
	for _, r := range results {
		if r.Source == a.policy.DOIAuthority {
			return r.Source
		}
		if r.Confidence > bestConf {
			best, bestConf = r.Source, r.Confidence
		}
	}
	return best
}

// adjudicateDOI prefers the DOI authority's well-formed value, then the
// highest-confidence well-formed value.
func (a *Adjudicator) adjudicateDOI(results []APIResult) string {
	var best string
	var bestConf float64

	for _, r := range results {
		doi := domain.NormalizeDOI(r.Data.DOI)
		if doi == "" {
			continue
		}
		if r.Source == a.policy.DOIAuthority {
			return doi
		}
		if best == "" || r.Confidence > bestConf {
			best, bestConf = doi, r.Confidence
		}
	}
	return best
}

// adjudicateYear uses 2+ source consensus when available, even when a third
// source disagrees; otherwise the highest-confidence year wins, with a
// conflict recorded when the margin is indecisive. Years are never averaged.
func (a *Adjudicator) adjudicateYear(results []APIResult, record func(*domain.AdjudicationConflict)) int {
	votes := make(map[int]int)
	var values []fieldValue
	for _, r := range results {
		if r.Data.Year == 0 {
			continue
		}
		votes[r.Data.Year]++
		values = append(values, fieldValue{r.Source, strconv.Itoa(r.Data.Year), r.Confidence})
	}
	if len(values) == 0 {
		return 0
	}

	for year, count := range votes {
		if count >= 2 {
			return year
		}
	}

	chosen, conflict := a.pickByConfidence("year", values)
	record(conflict)
	year, _ := strconv.Atoi(chosen)
	return year
}

// adjudicateAuthoritative implements the title/journal rule: the DOI
// authority wins when its confidence is at least the best of the others;
// otherwise the highest-confidence value is taken, with a conflict recorded
// when the winner is not decisively ahead of the runner-up.
func (a *Adjudicator) adjudicateAuthoritative(field string, values []fieldValue) (string, *domain.AdjudicationConflict) {
	if len(values) == 0 {
		return "", nil
	}
	if unanimous(values) {
		return values[0].value, nil
	}

	var authority *fieldValue
	bestOther := 0.0
	for i := range values {
		if values[i].source == a.policy.DOIAuthority {
			authority = &values[i]
		} else if values[i].confidence > bestOther {
			bestOther = values[i].confidence
		}
	}
	if authority != nil && authority.confidence >= bestOther {
		return authority.value, nil
	}

	return a.pickByConfidence(field, values)
}

// adjudicateAuthors prefers the DOI authority's author list when at least
// one other source's surname set overlaps it sufficiently; otherwise the
// highest-confidence source's list is used.
func (a *Adjudicator) adjudicateAuthors(results []APIResult) []domain.Author {
	var authority *APIResult
	for i := range results {
		if results[i].Source == a.policy.DOIAuthority && len(results[i].Data.Authors) > 0 {
			authority = &results[i]
			break
		}
	}

	if authority != nil {
		authSurnames := authority.Data.Surnames()
		for i := range results {
			if results[i].Source == a.policy.DOIAuthority {
				continue
			}
			overlap := normalize.SurnameOverlap(authSurnames, results[i].Data.Surnames())
			if overlap >= a.policy.AuthorOverlapFloor {
				return authority.Data.Authors
			}
		}
	}

	var best []domain.Author
	bestConf := -1.0
	for _, r := range results {
		if len(r.Data.Authors) > 0 && r.Confidence > bestConf {
			best, bestConf = r.Data.Authors, r.Confidence
		}
	}
	return best
}

// pickByConfidence chooses the highest-confidence value and records a
// conflict when the winner's confidence is within the relative margin of the
// runner-up's.
func (a *Adjudicator) pickByConfidence(field string, values []fieldValue) (string, *domain.AdjudicationConflict) {
	winner := values[0]
	for _, v := range values[1:] {
		if v.confidence > winner.confidence {
			winner = v
		}
	}

	var runnerUp *fieldValue
	for i := range values {
		if values[i] == winner {
			continue
		}
		if values[i].value == winner.value {
			continue
		}
		if runnerUp == nil || values[i].confidence > runnerUp.confidence {
			runnerUp = &values[i]
		}
	}
	if runnerUp == nil {
		return winner.value, nil
	}

	// Decisive when winner >= runnerUp * (1 + margin).
	if winner.confidence >= runnerUp.confidence*(1+a.policy.ConflictMargin) {
		return winner.value, nil
	}

	conflict := &domain.AdjudicationConflict{
		Field:            field,
		ChosenValue:      winner.value,
		ChosenSource:     winner.source,
		ChosenConfidence: winner.confidence,
	}
	for _, v := range values {
		if v == winner {
			continue
		}
		conflict.Alternatives = append(conflict.Alternatives, domain.ConflictAlternative{
			Source:     v.source,
			Value:      v.value,
			Confidence: v.confidence,
		})
	}
	return winner.value, conflict
}

// highestConfidence returns the highest-confidence value, silently. Used for
// the low-risk fields where disagreement is not worth surfacing.
func (a *Adjudicator) highestConfidence(values []fieldValue) string {
	if len(values) == 0 {
		return ""
	}
	best := values[0]
	for _, v := range values[1:] {
		if v.confidence > best.confidence {
			best = v
		}
	}
	return best.value
}

func collect(results []APIResult, get func(*APIResult) string) []fieldValue {
	var out []fieldValue
	for i := range results {
		if v := strings.TrimSpace(get(&results[i])); v != "" {
			out = append(out, fieldValue{results[i].Source, v, results[i].Confidence})
		}
	}
	return out
}

func unanimous(values []fieldValue) bool {
	for _, v := range values[1:] {
		if v.value != values[0].value {
			return false
		}
	}
	return true
}
