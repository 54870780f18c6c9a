// Package domain defines the core types shared across the reference
// enrichment service: parsed references, provider candidates, enrichment
// results, and the error taxonomy.
package domain

import "strings"

// SourceType identifies an external bibliographic source.
type SourceType string

// Known bibliographic sources.
const (
	SourceCrossref        SourceType = "crossref"
	SourceOpenAlex        SourceType = "openalex"
	SourceSemanticScholar SourceType = "semantic_scholar"
	SourceDOAJ            SourceType = "doaj"
	SourcePubMed          SourceType = "pubmed"
	SourceArXiv           SourceType = "arxiv"
)

// Author represents one author of a work.
type Author struct {
	GivenName string `json:"given_name,omitempty"`
	Surname   string `json:"surname,omitempty"`
	FullName  string `json:"full_name,omitempty"`
}

// DisplayName returns the best printable form of the author name.
func (a Author) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	if a.GivenName != "" && a.Surname != "" {
		return a.GivenName + " " + a.Surname
	}
	if a.Surname != "" {
		return a.Surname
	}
	return a.GivenName
}

// ParsedReference is a citation as extracted by the upstream parser.
// All fields are optional; FamilyNames and GivenNames are index-aligned
// lists that may differ in length when upstream parsing is incomplete.
type ParsedReference struct {
	Title       string   `json:"title,omitempty"`
	FamilyNames []string `json:"family_names,omitempty"`
	GivenNames  []string `json:"given_names,omitempty"`
	FullNames   []string `json:"full_names,omitempty"`
	Year        int      `json:"year,omitempty"`
	Journal     string   `json:"journal,omitempty"`
	Volume      string   `json:"volume,omitempty"`
	Issue       string   `json:"issue,omitempty"`
	Pages       string   `json:"pages,omitempty"`
	DOI         string   `json:"doi,omitempty"`
	URL         string   `json:"url,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Abstract    string   `json:"abstract,omitempty"`
}

// FirstAuthorSurname returns the surname of the first author, or an empty
// string when no authors are present.
func (r *ParsedReference) FirstAuthorSurname() string {
	if len(r.FamilyNames) == 0 {
		return ""
	}
	return r.FamilyNames[0]
}

// GivenNameAt returns the given name aligned with FamilyNames[i].
// The lists may differ in length; out-of-range access returns "".
func (r *ParsedReference) GivenNameAt(i int) string {
	if i < 0 || i >= len(r.GivenNames) {
		return ""
	}
	return r.GivenNames[i]
}

// HasAuthors reports whether at least one non-empty family name is present.
func (r *ParsedReference) HasAuthors() bool {
	for _, f := range r.FamilyNames {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}

// RebuildFullNames regenerates the FullNames display list from the
// family/given name lists. Downstream consumers rely on this list being in
// sync with the structured name fields after every merge.
func (r *ParsedReference) RebuildFullNames() {
	full := make([]string, 0, len(r.FamilyNames))
	for i, family := range r.FamilyNames {
		if given := r.GivenNameAt(i); given != "" {
			full = append(full, given+" "+family)
		} else {
			full = append(full, family)
		}
	}
	r.FullNames = full
}

// Clone returns a deep copy. The merge engine mutates its own copy so the
// caller's record is never changed when a merge is rejected.
func (r *ParsedReference) Clone() ParsedReference {
	out := *r
	out.FamilyNames = append([]string(nil), r.FamilyNames...)
	out.GivenNames = append([]string(nil), r.GivenNames...)
	out.FullNames = append([]string(nil), r.FullNames...)
	return out
}

// CandidateRecord is a single search hit returned by a provider client,
// normalized to a uniform shape. Candidates are immutable for the duration
// of one reconciliation pass.
type CandidateRecord struct {
	Source    SourceType `json:"source"`
	Title     string     `json:"title,omitempty"`
	Authors   []Author   `json:"authors,omitempty"`
	Year      int        `json:"year,omitempty"`
	Journal   string     `json:"journal,omitempty"`
	Volume    string     `json:"volume,omitempty"`
	Issue     string     `json:"issue,omitempty"`
	Pages     string     `json:"pages,omitempty"`
	DOI       string     `json:"doi,omitempty"`
	URL       string     `json:"url,omitempty"`
	Publisher string     `json:"publisher,omitempty"`
	Abstract  string     `json:"abstract,omitempty"`
}

// Surnames returns the non-empty surnames of the candidate's authors,
// falling back to the last token of the full name when the surname field
// was not populated by the provider.
func (c *CandidateRecord) Surnames() []string {
	out := make([]string, 0, len(c.Authors))
	for _, a := range c.Authors {
		switch {
		case a.Surname != "":
			out = append(out, a.Surname)
		case a.FullName != "":
			parts := strings.Fields(a.FullName)
			if len(parts) > 0 {
				out = append(out, parts[len(parts)-1])
			}
		}
	}
	return out
}

// FieldsFound lists the names of the candidate's populated fields.
func (c *CandidateRecord) FieldsFound() []string {
	var fields []string
	add := func(name, value string) {
		if value != "" {
			fields = append(fields, name)
		}
	}
	add("title", c.Title)
	if len(c.Authors) > 0 {
		fields = append(fields, "authors")
	}
	if c.Year != 0 {
		fields = append(fields, "year")
	}
	add("journal", c.Journal)
	add("volume", c.Volume)
	add("issue", c.Issue)
	add("pages", c.Pages)
	add("doi", c.DOI)
	add("url", c.URL)
	add("publisher", c.Publisher)
	add("abstract", c.Abstract)
	return fields
}

// ConflictAlternative is a per-source value that lost adjudication.
type ConflictAlternative struct {
	Source     SourceType `json:"source"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
}

// AdjudicationConflict records a field where the accepted sources disagreed
// and the winning confidence was not decisively higher than the runner-up.
// Conflicts are advisory: a value is always chosen, never blocked.
type AdjudicationConflict struct {
	Field            string                `json:"field"`
	ChosenValue      string                `json:"chosen_value"`
	ChosenSource     SourceType            `json:"chosen_source"`
	ChosenConfidence float64               `json:"chosen_confidence"`
	Alternatives     []ConflictAlternative `json:"alternatives,omitempty"`
}

// FieldChange records one field modification made by the merge engine.
type FieldChange struct {
	Field  string `json:"field"`
	Type   string `json:"type"` // "added" or "updated"
	Before string `json:"before,omitempty"`
	After  string `json:"after"`
}

// EnrichedReference is the result of one reconciliation pass: the original
// record with any merged fields, plus enrichment metadata. A pass always
// produces a valid EnrichedReference even when every provider failed.
type EnrichedReference struct {
	ParsedReference

	APIEnrichmentUsed  bool                   `json:"api_enrichment_used"`
	EnrichmentSources  []string               `json:"enrichment_sources,omitempty"`
	QualityImprovement float64                `json:"quality_improvement"`
	FinalQualityScore  float64                `json:"final_quality_score"`
	Conflicts          []AdjudicationConflict `json:"adjudication_conflicts,omitempty"`
	Changes            []FieldChange          `json:"validation_changes,omitempty"`
}
