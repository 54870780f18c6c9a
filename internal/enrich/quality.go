package enrich

import (
	"strings"
	"time"
	"unicode"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/normalize"
)

// Field weights for the quality score. Title and authors dominate because
// they identify the work; identifiers and locators contribute smaller shares.
const (
	weightTitle     = 0.30
	weightAuthors   = 0.25
	weightYear      = 0.15
	weightJournal   = 0.15
	weightDOI       = 0.08
	weightPages     = 0.03
	weightPublisher = 0.02
	weightURL       = 0.02
	bonusAbstract   = 0.02
)

// Missing-field priority weights, used to order batch work so the most
// incomplete references are enriched first.
var fieldPriorities = []struct {
	weight  int
	missing func(*domain.ParsedReference) bool
}{
	{10, func(r *domain.ParsedReference) bool { return r.DOI == "" }},
	{8, func(r *domain.ParsedReference) bool { return r.Abstract == "" }},
	{6, func(r *domain.ParsedReference) bool { return r.URL == "" }},
	{5, func(r *domain.ParsedReference) bool { return r.Publisher == "" }},
	{4, func(r *domain.ParsedReference) bool { return r.Journal == "" }},
	{2, func(r *domain.ParsedReference) bool { return r.Volume == "" }},
	{2, func(r *domain.ParsedReference) bool { return r.Pages == "" }},
}

// QualityScorer computes a weighted completeness/well-formedness score over
// a record's fields. Each field's sub-score is graded by completeness
// heuristics rather than binary presence: a truncated or all-caps title is a
// signal of poor extraction even though the field is non-empty.
type QualityScorer struct {
	authorPolicy normalize.AuthorPlausibilityPolicy
}

// NewQualityScorer creates a scorer using the given author plausibility
// policy. A nil policy falls back to the default heuristic policy.
func NewQualityScorer(authorPolicy normalize.AuthorPlausibilityPolicy) *QualityScorer {
	if authorPolicy == nil {
		authorPolicy = normalize.NewHeuristicAuthorPolicy()
	}
	return &QualityScorer{authorPolicy: authorPolicy}
}

// Score returns the record's quality score in [0,1].
func (s *QualityScorer) Score(ref *domain.ParsedReference) float64 {
	score := weightTitle * titleSubScore(ref.Title)
	score += weightAuthors * s.authorSubScore(ref.FamilyNames, ref.GivenNames)
	score += weightYear * yearSubScore(ref.Year)
	score += weightJournal * journalSubScore(ref.Journal)
	score += weightDOI * doiSubScore(ref.DOI)

	if strings.TrimSpace(ref.Pages) != "" {
		score += weightPages
	}
	if strings.TrimSpace(ref.Publisher) != "" {
		score += weightPublisher
	}
	if strings.TrimSpace(ref.URL) != "" {
		score += weightURL
	}
	if strings.TrimSpace(ref.Abstract) != "" {
		score += bonusAbstract
	}

	return clamp01(score)
}

// PriorityScore returns the missing-field priority of a record. Higher means
// more incomplete; the batch runner enriches high-priority references first.
func PriorityScore(ref *domain.ParsedReference) int {
	total := 0
	for _, p := range fieldPriorities {
		if p.missing(ref) {
			total += p.weight
		}
	}
	return total
}

// titleSubScore grades a title by length tier and case mix. All-caps titles
// are penalized: they usually come from headers mis-parsed as titles.
func titleSubScore(title string) float64 {
	title = strings.TrimSpace(title)
	if title == "" {
		return 0
	}

	var sub float64
	switch {
	case len(title) >= 20:
		sub = 1.0
	case len(title) >= 10:
		sub = 0.7
	case len(title) >= 5:
		sub = 0.4
	default:
		sub = 0.2
	}

	if isAllCaps(title) {
		sub *= 0.7
	}
	return sub
}

// authorSubScore averages per-author completeness: a surname with a full
// given name scores 1.0, with an initial 0.8, surname alone 0.5, and an
// implausible surname 0.2.
func (s *QualityScorer) authorSubScore(familyNames, givenNames []string) float64 {
	var total float64
	count := 0

	for i, family := range familyNames {
		if strings.TrimSpace(family) == "" {
			continue
		}
		count++

		if !s.authorPolicy.PlausibleSurname(family) {
			total += 0.2
			continue
		}

		var given string
		if i < len(givenNames) {
			given = strings.TrimSpace(givenNames[i])
		}
		switch {
		case len(strings.Trim(given, ".")) > 1:
			total += 1.0
		case given != "":
			total += 0.8
		default:
			total += 0.5
		}
	}

	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// yearSubScore accepts years in [1900, current+1]; anything else scores
// zero, since implausible years indicate extraction errors.
func yearSubScore(year int) float64 {
	if year >= 1900 && year <= time.Now().Year()+1 {
		return 1.0
	}
	return 0
}

func journalSubScore(journal string) float64 {
	journal = strings.TrimSpace(journal)
	switch {
	case journal == "":
		return 0
	case len(journal) >= 5:
		return 1.0
	default:
		return 0.5
	}
}

// doiSubScore gives full credit for a well-formed DOI and partial credit for
// a present but malformed one.
func doiSubScore(doi string) float64 {
	switch {
	case strings.TrimSpace(doi) == "":
		return 0
	case domain.NormalizeDOI(doi) != "":
		return 1.0
	default:
		return 0.3
	}
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
