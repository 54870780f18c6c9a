package enrich

import (
	"strconv"
	"strings"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/normalize"
)

// Strategy names, from most to least discriminating.
const (
	StrategyTitleAuthorYear = "title_author_year"
	StrategyTitleAuthor     = "title_author"
	StrategyAuthorYearVenue = "author_year_venue"
	StrategyTitleOnly       = "title_only"
	StrategyRawText         = "raw_text"
)

// rawTextLimit caps the raw-text fallback query length.
const rawTextLimit = 200

// QueryStrategy is one search attempt: a named strategy and the query text
// it produced from the parsed reference.
type QueryStrategy struct {
	Name string
	Text string
}

// BuildQueries produces the ordered list of search strategies for a parsed
// reference, most discriminating first. Only strategies whose required
// fields are present are emitted. The raw-text fallback exists because
// upstream parsing sometimes extracts nothing useful, and a raw-text search
// is strictly better than no search.
//
// Returns ErrNoViableQuery when no strategy can be built.
func BuildQueries(n *normalize.Normalizer, ref *domain.ParsedReference, originalText string) ([]QueryStrategy, error) {
	title := n.Text(ref.Title, false)
	surname := firstSurname(n, ref)
	venue := n.Text(ref.Journal, false)
	year := ""
	if ref.Year != 0 {
		year = strconv.Itoa(ref.Year)
	}

	var strategies []QueryStrategy
	add := func(name string, parts ...string) {
		strategies = append(strategies, QueryStrategy{
			Name: name,
			Text: strings.Join(parts, " "),
		})
	}

	if title != "" && surname != "" && year != "" {
		add(StrategyTitleAuthorYear, title, surname, year)
	}
	if title != "" && surname != "" {
		add(StrategyTitleAuthor, title, surname)
	}
	if surname != "" && year != "" && venue != "" {
		add(StrategyAuthorYearVenue, surname, year, venue)
	}
	if title != "" {
		add(StrategyTitleOnly, title)
	}
	if raw := truncateRunes(strings.TrimSpace(originalText), rawTextLimit); raw != "" {
		add(StrategyRawText, raw)
	}

	if len(strategies) == 0 {
		return nil, domain.ErrNoViableQuery
	}
	return strategies, nil
}

// titleOnlyRetry returns the final title-only retry strategy, used after all
// strategies exhaust with zero accepted matches. Defends against transient
// provider errors on the first attempt. Returns false when the reference has
// no title.
func titleOnlyRetry(n *normalize.Normalizer, ref *domain.ParsedReference) (QueryStrategy, bool) {
	title := n.Text(ref.Title, false)
	if title == "" {
		return QueryStrategy{}, false
	}
	return QueryStrategy{Name: StrategyTitleOnly, Text: title}, true
}

// firstSurname extracts the normalized surname of the first author, keeping
// the last token when the family-name field carries a full name.
func firstSurname(n *normalize.Normalizer, ref *domain.ParsedReference) string {
	raw := ref.FirstAuthorSurname()
	if raw == "" {
		return ""
	}
	normalized := n.Text(raw, false)
	fields := strings.Fields(normalized)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
