// Package doaj provides a client for the Directory of Open Access Journals API.
//
// DOAJ indexes peer-reviewed open access journals and their articles. This
// package implements the sources.Source interface for searching article
// records in DOAJ.
//
// API Documentation: https://doaj.org/api/docs
package doaj

// SearchResponse represents the response from the article search endpoint.
type SearchResponse struct {
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
	Results  []Result `json:"results"`
}

// Result wraps one article record.
type Result struct {
	ID      string  `json:"id"`
	BibJSON BibJSON `json:"bibjson"`
}

// BibJSON is DOAJ's bibliographic payload for an article.
type BibJSON struct {
	Title      string       `json:"title"`
	Year       string       `json:"year"`
	Abstract   string       `json:"abstract"`
	StartPage  string       `json:"start_page"`
	EndPage    string       `json:"end_page"`
	Author     []Author     `json:"author"`
	Journal    Journal      `json:"journal"`
	Identifier []Identifier `json:"identifier"`
	Link       []Link       `json:"link"`
}

// Author represents an article author.
type Author struct {
	Name string `json:"name"`
}

// Journal contains journal-level metadata for an article.
type Journal struct {
	Title     string `json:"title"`
	Volume    string `json:"volume"`
	Number    string `json:"number"`
	Publisher string `json:"publisher"`
}

// Identifier represents an article identifier (DOI, eISSN, etc.).
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Link represents a link attached to an article record.
type Link struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}
