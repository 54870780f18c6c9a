// Package crossref provides a client for the Crossref REST API.
//
// Crossref is the DOI registration agency for scholarly publishing and the
// authoritative source for DOI metadata. This package implements the
// sources.Source interface for bibliographic search and DOI resolution.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorksResponse represents the top-level response from the /works search endpoint.
type WorksResponse struct {
	Status  string       `json:"status"`
	Message WorksMessage `json:"message"`
}

// WorksMessage contains the search results and pagination metadata.
type WorksMessage struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// WorkResponse represents the response from the /works/{doi} lookup endpoint.
type WorkResponse struct {
	Status  string `json:"status"`
	Message Work   `json:"message"`
}

// Work represents a single registered work in the Crossref API.
type Work struct {
	DOI            string     `json:"DOI"`
	Title          []string   `json:"title"`
	ContainerTitle []string   `json:"container-title"`
	Author         []Author   `json:"author"`
	Issued         DateParts  `json:"issued"`
	PublishedPrint *DateParts `json:"published-print,omitempty"`
	Volume         string     `json:"volume"`
	Issue          string     `json:"issue"`
	Page           string     `json:"page"`
	Publisher      string     `json:"publisher"`
	URL            string     `json:"URL"`
	Abstract       string     `json:"abstract"`
	Type           string     `json:"type"`
}

// Author represents a work contributor.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"` // set for organizational authors
}

// DateParts holds Crossref's nested date representation,
// e.g. {"date-parts": [[2021, 6, 15]]}.
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 when absent.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}
