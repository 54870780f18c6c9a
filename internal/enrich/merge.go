package enrich

import (
	"strconv"
	"strings"

	"github.com/citemend/reference-enrichment/internal/domain"
	"github.com/citemend/reference-enrichment/internal/normalize"
)

// Merge bands, from weakest to strongest match.
const (
	BandRejected     = "rejected"
	BandConservative = "conservative"
	BandAggressive   = "aggressive"
)

// correctionLengthRatio is how much longer an external string value must be
// before it is considered a material improvement over the existing value.
const correctionLengthRatio = 1.2

// conservativeFields are the low-risk fields that may be filled in the
// conservative band. Critical fields (title, authors, year, journal) are
// never touched below the aggressive band. Volume and issue sit alongside
// the core five (doi, url, pages, publisher, abstract) because a wrong
// volume or issue carries the same low cost as wrong pages: it never
// changes which work the record identifies.
var conservativeFields = []string{"doi", "url", "pages", "publisher", "abstract", "volume", "issue"}

// MergeOutcome is the result of applying the score-gated merge policy.
type MergeOutcome struct {
	// Record is the merged reference. Equal to the original when the merge
	// was rejected.
	Record domain.ParsedReference

	// Band is the score band that governed the merge.
	Band string

	// Changes lists every field modification, in application order.
	Changes []domain.FieldChange
}

// Merger applies the score-gated merge policy: the central
// failure-containment mechanism of the subsystem. Without the score gate,
// noisy or partially-mismatched candidates would silently overwrite correct
// locally-parsed data, a worse failure mode than failing to enrich.
type Merger struct {
	policy       Policy
	authorPolicy normalize.AuthorPlausibilityPolicy
}

// NewMerger creates a merger. A nil author policy falls back to the default
// heuristic policy.
func NewMerger(policy Policy, authorPolicy normalize.AuthorPlausibilityPolicy) *Merger {
	if authorPolicy == nil {
		authorPolicy = normalize.NewHeuristicAuthorPolicy()
	}
	return &Merger{policy: policy, authorPolicy: authorPolicy}
}

// Merge applies external data to a copy of the original record according to
// the match score's band. fillMissing is the caller's explicit opt-in to
// corrective merging below the aggressive band; it must never be defaulted
// on. The original record is never mutated.
func (m *Merger) Merge(original *domain.ParsedReference, data *domain.CandidateRecord, score float64, fillMissing bool) MergeOutcome {
	if score < m.policy.ConservativeThreshold {
		// Too weak to trust even for gap filling. Strict no-op.
		return MergeOutcome{Record: original.Clone(), Band: BandRejected}
	}

	out := MergeOutcome{Record: original.Clone()}
	if score >= m.policy.AggressiveThreshold {
		out.Band = BandAggressive
	} else {
		out.Band = BandConservative
	}

	allowCorrection := out.Band == BandAggressive || fillMissing

	if out.Band == BandAggressive || fillMissing {
		m.mergeCritical(&out, data, allowCorrection)
	}
	m.mergeLowRisk(&out, data, allowCorrection)

	// Downstream consumers must never see a stale derived field.
	out.Record.RebuildFullNames()
	return out
}

// mergeCritical fills and, when correction is allowed, corrects the critical
// fields: title, authors, year, journal.
func (m *Merger) mergeCritical(out *MergeOutcome, data *domain.CandidateRecord, allowCorrection bool) {
	rec := &out.Record

	if data.Title != "" {
		switch {
		case rec.Title == "":
			out.change("title", "", data.Title)
			rec.Title = data.Title
		case allowCorrection && betterString(rec.Title, data.Title):
			out.change("title", rec.Title, data.Title)
			rec.Title = data.Title
		}
	}

	if data.Year != 0 && rec.Year == 0 {
		out.change("year", "", strconv.Itoa(data.Year))
		rec.Year = data.Year
	}

	if data.Journal != "" {
		switch {
		case rec.Journal == "":
			out.change("journal", "", data.Journal)
			rec.Journal = data.Journal
		case allowCorrection && betterString(rec.Journal, data.Journal):
			out.change("journal", rec.Journal, data.Journal)
			rec.Journal = data.Journal
		}
	}

	m.mergeAuthors(out, data, allowCorrection)
}

// mergeAuthors fills an empty author list, or replaces it wholesale when the
// external list has a higher internal quality score or simply more entries.
func (m *Merger) mergeAuthors(out *MergeOutcome, data *domain.CandidateRecord, allowCorrection bool) {
	if len(data.Authors) == 0 {
		return
	}
	rec := &out.Record

	family, given := splitAuthors(data.Authors)
	if len(family) == 0 {
		return
	}

	if !rec.HasAuthors() {
		out.change("authors", joinNames(rec.FamilyNames), joinNames(family))
		rec.FamilyNames, rec.GivenNames = family, given
		return
	}
	if !allowCorrection {
		return
	}

	candQuality := m.authorListQuality(family, given)
	origQuality := m.authorListQuality(rec.FamilyNames, rec.GivenNames)
	if candQuality > origQuality || len(family) > len(rec.FamilyNames) {
		out.change("authors", joinNames(rec.FamilyNames), joinNames(family))
		rec.FamilyNames, rec.GivenNames = family, given
	}
}

// mergeLowRisk fills the conservative-band whitelist fields when empty; in
// corrective mode, DOIs replace malformed values and abstracts replace
// materially shorter ones.
func (m *Merger) mergeLowRisk(out *MergeOutcome, data *domain.CandidateRecord, allowCorrection bool) {
	rec := &out.Record

	candValue := func(field string) string {
		switch field {
		case "doi":
			return data.DOI
		case "url":
			return data.URL
		case "pages":
			return data.Pages
		case "publisher":
			return data.Publisher
		case "abstract":
			return data.Abstract
		case "volume":
			return data.Volume
		case "issue":
			return data.Issue
		}
		return ""
	}
	current := func(field string) *string {
		switch field {
		case "doi":
			return &rec.DOI
		case "url":
			return &rec.URL
		case "pages":
			return &rec.Pages
		case "publisher":
			return &rec.Publisher
		case "abstract":
			return &rec.Abstract
		case "volume":
			return &rec.Volume
		case "issue":
			return &rec.Issue
		}
		return nil
	}

	for _, field := range conservativeFields {
		value := strings.TrimSpace(candValue(field))
		if value == "" {
			continue
		}
		target := current(field)

		if *target == "" {
			out.change(field, "", value)
			*target = value
			continue
		}
		if !allowCorrection {
			continue
		}

		switch field {
		case "doi":
			// Replace only a malformed DOI with a well-formed one.
			if domain.NormalizeDOI(*target) == "" && domain.NormalizeDOI(value) != "" {
				out.change(field, *target, value)
				*target = value
			}
		case "abstract":
			if betterString(*target, value) {
				out.change(field, *target, value)
				*target = value
			}
		}
	}
}

// authorListQuality scores an author list from given-name completeness and
// surname plausibility, mirroring the quality scorer's author grading.
func (m *Merger) authorListQuality(family, given []string) float64 {
	var total float64
	count := 0
	for i, surname := range family {
		if strings.TrimSpace(surname) == "" {
			continue
		}
		count++
		if !m.authorPolicy.PlausibleSurname(surname) {
			total += 0.2
			continue
		}
		var g string
		if i < len(given) {
			g = strings.TrimSpace(given[i])
		}
		switch {
		case len(strings.Trim(g, ".")) > 1:
			total += 1.0
		case g != "":
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

func (o *MergeOutcome) change(field, before, after string) {
	changeType := "added"
	if before != "" {
		changeType = "updated"
	}
	o.Changes = append(o.Changes, domain.FieldChange{
		Field:  field,
		Type:   changeType,
		Before: before,
		After:  after,
	})
}

// betterString reports whether the external value is materially longer than
// the existing one. Equal-modulo-case values are never an improvement.
func betterString(existing, external string) bool {
	if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(external)) {
		return false
	}
	return float64(len(external)) >= float64(len(existing))*correctionLengthRatio
}

func splitAuthors(authors []domain.Author) (family, given []string) {
	for _, a := range authors {
		surname := a.Surname
		if surname == "" {
			if parts := strings.Fields(a.FullName); len(parts) > 0 {
				surname = parts[len(parts)-1]
			}
		}
		if surname == "" {
			continue
		}
		family = append(family, surname)
		given = append(given, a.GivenName)
	}
	return family, given
}

func joinNames(names []string) string {
	return strings.Join(names, "; ")
}
