package domain

import "strings"

// NormalizeDOI canonicalizes a DOI for comparison and storage: URL and
// "doi:" prefixes are stripped and the result is lowercased. Returns ""
// for input that cannot be a DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return ""
	}
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "https://dx.doi.org/")
	doi = strings.TrimPrefix(doi, "http://dx.doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	doi = strings.ToLower(strings.TrimSpace(doi))
	if !strings.HasPrefix(doi, "10.") {
		return ""
	}
	return doi
}
