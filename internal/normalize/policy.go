package normalize

import (
	"strings"
	"unicode"
)

// AuthorPlausibilityPolicy decides whether a string plausibly denotes a real
// author surname. Upstream extractors occasionally emit venue fragments,
// section headings, or suffixes as author names; the policy keeps those
// heuristics in one replaceable place instead of scattering string checks
// through the matcher and merge engine.
type AuthorPlausibilityPolicy interface {
	// PlausibleSurname reports whether s could be an author surname.
	PlausibleSurname(s string) bool
}

// nonAuthorWords are tokens frequently mis-extracted as surnames.
var nonAuthorWords = map[string]struct{}{
	"journal": {}, "proceedings": {}, "conference": {}, "press": {},
	"university": {}, "institute": {}, "department": {}, "abstract": {},
	"introduction": {}, "references": {}, "appendix": {}, "available": {},
	"online": {}, "retrieved": {}, "accessed": {}, "anonymous": {},
	"editor": {}, "editors": {}, "eds": {}, "et": {}, "al": {},
	"and": {}, "the": {}, "of": {}, "in": {},
}

// nameSuffixes are generational/credential suffixes, not surnames.
var nameSuffixes = map[string]struct{}{
	"jr": {}, "sr": {}, "ii": {}, "iii": {}, "iv": {},
	"phd": {}, "md": {}, "msc": {}, "bsc": {},
}

// HeuristicAuthorPolicy is the default AuthorPlausibilityPolicy, built on
// word lists and shape checks.
type HeuristicAuthorPolicy struct{}

// NewHeuristicAuthorPolicy creates the default policy.
func NewHeuristicAuthorPolicy() *HeuristicAuthorPolicy {
	return &HeuristicAuthorPolicy{}
}

// PlausibleSurname implements AuthorPlausibilityPolicy.
func (p *HeuristicAuthorPolicy) PlausibleSurname(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return false
	}

	lower := strings.ToLower(s)
	if _, ok := nonAuthorWords[lower]; ok {
		return false
	}
	if _, ok := nameSuffixes[strings.Trim(lower, ".")]; ok {
		return false
	}

	// Surnames are letters, possibly with internal hyphens or apostrophes.
	letters := 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == '-' || r == '\'' || r == ' ':
		default:
			return false
		}
	}
	return letters >= 2
}
