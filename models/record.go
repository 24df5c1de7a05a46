package models

// Record ist die normalisierte Form eines esummary-Treffers, bevor er
// in eine Publication überführt wird. ISODate ist entweder leer oder
// ein gültiges YYYY-MM-DD.
type Record struct {
	PMID    string `json:"pmid"`
	Title   string `json:"title"`
	Journal string `json:"journal"`

	PubDate     string `json:"pubdate"`
	EPubDate    string `json:"epubdate"`
	SortPubDate string `json:"sortpubdate"`

	ISODate     string `json:"iso_date"`
	DisplayDate string `json:"display_date"`

	Authors []string `json:"authors"`
	DOI     string   `json:"doi"`
	PMCID   string   `json:"pmcid"`
	URL     string   `json:"pubmed_url"`
}
