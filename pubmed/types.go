// Package pubmed enthält die Logik für die Interaktion mit der NCBI-eutils-API:
// das zweiphasige esearch/esummary-Protokoll, den Antwort-Cache und die
// Normalisierung der Datumsfelder.
package pubmed

import "encoding/json"

// ESearchResponse repräsentiert die JSON-Antwort von ESearch für die ID-Suche.
type ESearchResponse struct {
	ESearchResult struct {
		IdList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// ESummaryResponse repräsentiert die JSON-Antwort von ESummary. Das result-Objekt
// mischt den "uids"-Schlüssel mit je einem Objekt pro PMID, daher RawMessage.
type ESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// SummaryItem repräsentiert die esummary-Felder einer einzelnen PMID.
type SummaryItem struct {
	UID             string `json:"uid"`
	Title           string `json:"title"`
	FullJournalName string `json:"fulljournalname"`
	Source          string `json:"source"`
	PubDate         string `json:"pubdate"`
	EPubDate        string `json:"epubdate"`
	SortPubDate     string `json:"sortpubdate"`
	Authors         []struct {
		Name string `json:"name"`
	} `json:"authors"`
	ArticleIDs []struct {
		IDType string `json:"idtype"`
		Value  string `json:"value"`
	} `json:"articleids"`
}
