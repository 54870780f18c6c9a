// Package normalize provides text canonicalization and set-based similarity
// scoring for bibliographic matching. Titles, author names, and venue names
// are expanded into several comparable representations up front so the
// matcher can take the maximum similarity across methods instead of relying
// on a single brittle metric.
package normalize

import (
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// stopWords are common English words removed before token comparison.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "up": {}, "about": {}, "into": {}, "through": {}, "during": {},
	"before": {}, "after": {}, "above": {}, "below": {}, "between": {},
	"among": {}, "against": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "can": {}, "shall": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "i": {}, "you": {},
	"he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "me": {}, "him": {},
	"her": {}, "us": {}, "them": {},
}

// academicStopWords are boilerplate terms stripped from venue names.
var academicStopWords = map[string]struct{}{
	"journal": {}, "proceedings": {}, "conference": {}, "workshop": {},
	"symposium": {}, "volume": {}, "vol": {}, "issue": {}, "no": {},
	"number": {}, "pages": {}, "pp": {}, "page": {}, "doi": {}, "isbn": {},
	"issn": {}, "url": {}, "http": {}, "https": {}, "www": {},
	"published": {}, "publication": {}, "publisher": {}, "press": {},
	"academic": {}, "international": {}, "annual": {}, "biennial": {},
	"edition": {}, "ed": {}, "eds": {}, "editor": {}, "editors": {},
	"author": {}, "authors": {}, "editorial": {}, "committee": {},
}

// encodingReplacer maps typographic characters that differ between provider
// payloads and PDF-extracted text onto their ASCII equivalents.
var encodingReplacer = strings.NewReplacer(
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"–", "-", // en dash
	"—", "-", // em dash
	"…", "...", // ellipsis
)

// TitleForms holds the comparable representations of a title.
type TitleForms struct {
	Basic       string
	NoStopwords string
	TokenSorted string
	Bigrams     map[string]struct{}
	Trigrams    map[string]struct{}
	Acronyms    map[string]struct{}
	Original    string
}

// IsZero reports whether the forms were produced from empty input.
func (f TitleForms) IsZero() bool {
	return f.Original == ""
}

// VenueForms holds the comparable representations of a journal/venue name.
type VenueForms struct {
	Basic    string
	Cleaned  string
	KeyTerms string
	Acronym  string
	Original string
}

// NameForms holds the comparable representations of an author name.
type NameForms struct {
	Basic     string
	Variants  []string
	Initials  []string
	FullNames []string
	Original  string
}

// SimilarityMethod selects the token-set metric used by Similarity.
type SimilarityMethod string

// Supported similarity methods.
const (
	Jaccard      SimilarityMethod = "jaccard"
	TokenOverlap SimilarityMethod = "token_overlap"
)

// Normalizer canonicalizes bibliographic text. The zero value is not usable;
// construct with New. Safe for concurrent use.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Text performs comprehensive normalization: Unicode NFKC composition,
// typographic character fixes, punctuation cleanup, whitespace collapsing,
// and lowercasing unless preserveCase is set. Empty input yields "".
func (n *Normalizer) Text(s string, preserveCase bool) string {
	if s == "" {
		return ""
	}

	// NFKC so visually-identical titles with different code points compare equal.
	out := norm.NFKC.String(s)
	out = encodingReplacer.Replace(out)
	out = cleanSpecialCharacters(out)
	out = strings.Join(strings.Fields(out), " ")

	if !preserveCase {
		out = strings.ToLower(out)
	}
	return out
}

// Title normalizes a title into multiple matching representations.
// Empty input returns a zero TitleForms, never an error.
func (n *Normalizer) Title(title string) TitleForms {
	if title == "" {
		return TitleForms{}
	}

	basic := n.Text(title, false)
	noStop := removeWords(basic, stopWords)

	tokens := strings.Fields(noStop)
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)

	return TitleForms{
		Basic:       basic,
		NoStopwords: noStop,
		TokenSorted: strings.Join(sorted, " "),
		Bigrams:     ngrams(noStop, 2),
		Trigrams:    ngrams(noStop, 3),
		Acronyms:    extractAcronyms(title),
		Original:    title,
	}
}

// AuthorName normalizes an author name and generates common variants.
func (n *Normalizer) AuthorName(name string) NameForms {
	if name == "" {
		return NameForms{}
	}

	basic := n.Text(name, false)
	initials, fullNames := splitNameComponents(basic)

	return NameForms{
		Basic:     basic,
		Variants:  authorVariants(basic),
		Initials:  initials,
		FullNames: fullNames,
		Original:  name,
	}
}

// Venue normalizes a journal or venue name.
func (n *Normalizer) Venue(venue string) VenueForms {
	if venue == "" {
		return VenueForms{}
	}

	basic := n.Text(venue, false)
	cleaned := removeWords(basic, academicStopWords)

	return VenueForms{
		Basic:    basic,
		Cleaned:  cleaned,
		KeyTerms: keyTerms(cleaned),
		Acronym:  venueAcronym(basic),
		Original: venue,
	}
}

// BlockingKey builds a cheap candidate pre-filter signature from the first
// author's surname, the year, and the first venue words. The key is only a
// filter: key disagreement alone never decides a match.
func (n *Normalizer) BlockingKey(authors []string, year int, venue string) string {
	var firstAuthor string
	if len(authors) > 0 {
		normalized := n.Text(authors[0], false)
		if fields := strings.Fields(normalized); len(fields) > 0 {
			firstAuthor = fields[len(fields)-1]
		}
	}

	var yearPart string
	if year != 0 {
		yearPart = strconv.Itoa(year)
	}

	var venueKey string
	if venue != "" {
		words := strings.Fields(n.Text(venue, false))
		if len(words) > 3 {
			words = words[:3]
		}
		venueKey = strings.Join(words, "_")
	}

	parts := []string{firstAuthor, yearPart}
	if venueKey != "" {
		parts = append(parts, venueKey)
	}

	key := strings.Join(parts, "_")
	if strings.Trim(key, "_") == "" {
		return "unknown"
	}
	return key
}

// Similarity computes a token-set similarity in [0,1] between two normalized
// strings. Jaccard is the default; unknown methods fall back to Jaccard.
// Symmetric: Similarity(a, b, m) == Similarity(b, a, m).
func (n *Normalizer) Similarity(a, b string, method SimilarityMethod) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	switch method {
	case TokenOverlap:
		return tokenOverlapSimilarity(a, b)
	default:
		return jaccardSimilarity(a, b)
	}
}

// SetSimilarity computes Jaccard similarity between two string sets, used
// for n-gram and acronym comparison.
func SetSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func jaccardSimilarity(a, b string) float64 {
	return SetSimilarity(tokenSet(a), tokenSet(b))
}

func tokenOverlapSimilarity(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			intersection++
		}
	}
	minLen := len(setA)
	if len(setB) < minLen {
		minLen = len(setB)
	}
	return float64(intersection) / float64(minLen)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

// cleanSpecialCharacters keeps alphanumerics, spaces, hyphens, and
// parentheses; everything else becomes a space.
func cleanSpecialCharacters(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			sb.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '(' || r == ')':
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}
	return sb.String()
}

func removeWords(s string, words map[string]struct{}) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, w := range fields {
		if _, ok := words[w]; !ok {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

func ngrams(s string, n int) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{})
	for i := 0; i+n <= len(words); i++ {
		set[strings.Join(words[i:i+n], " ")] = struct{}{}
	}
	return set
}

// extractAcronyms finds short uppercase or mixed-case words in the original
// (case-preserved) title that are likely acronyms.
func extractAcronyms(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(title) {
		clean := stripNonAlnum(word)
		if clean == "" {
			continue
		}

		upper := clean == strings.ToUpper(clean) && strings.IndexFunc(clean, unicode.IsLetter) >= 0
		hasUpper := strings.IndexFunc(clean, unicode.IsUpper) >= 0

		if len(clean) <= 6 && upper {
			set[strings.ToLower(clean)] = struct{}{}
		} else if len(clean) <= 4 && hasUpper {
			set[strings.ToLower(clean)] = struct{}{}
		}
	}
	return set
}

func stripNonAlnum(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func authorVariants(basic string) []string {
	variants := map[string]struct{}{basic: {}}

	parts := strings.Fields(basic)
	if len(parts) >= 2 {
		first, last := parts[0], parts[len(parts)-1]
		variants[last+", "+first] = struct{}{}
		variants[first+" "+last] = struct{}{}

		if len(parts) > 2 {
			var mid []string
			for _, p := range parts[1 : len(parts)-1] {
				mid = append(mid, p[:1])
			}
			middle := strings.Join(mid, ".")
			variants[first+" "+middle+". "+last] = struct{}{}
			variants[last+", "+first+" "+middle+"."] = struct{}{}
		}
	}

	out := make([]string, 0, len(variants))
	for v := range variants {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func splitNameComponents(basic string) (initials, fullNames []string) {
	for _, part := range strings.Fields(basic) {
		if len(part) == 1 {
			initials = append(initials, part)
		} else {
			fullNames = append(fullNames, part)
		}
	}
	return initials, fullNames
}

func keyTerms(s string) string {
	var kept []string
	for _, w := range strings.Fields(s) {
		if len(w) <= 2 {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// venueAcronym builds an acronym from the significant words of a venue name.
// Venues of two words or fewer are returned unchanged.
func venueAcronym(basic string) string {
	words := strings.Fields(basic)
	if len(words) <= 2 {
		return basic
	}

	var sb strings.Builder
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, ok := academicStopWords[w]; ok {
			continue
		}
		sb.WriteString(strings.ToUpper(w[:1]))
	}
	if sb.Len() == 0 {
		return basic
	}
	return sb.String()
}
