package services

import (
	"net/url"
	"regexp"
	"strings"

	"doctor-pubs/models"
)

var pubmedHostRegex = regexp.MustCompile(`(?i)(pubmed\.ncbi\.nlm\.nih\.gov|ncbi\.nlm\.nih\.gov)$`)

// NormalizeQuery bereinigt eine PubMed-Query: typographische Anführungszeichen
// aus Rich-Text-Editoren werden durch gerade ersetzt, und umschließt genau ein
// Anführungszeichenpaar den gesamten String, wird es entfernt (innere Quotes
// bleiben erhalten). PubMed behandelt literale Quotes als Phrasensuche und
// bricht damit sonst die Boolesche Syntax.
func NormalizeQuery(query string) string {
	query = strings.NewReplacer("“", `"`, "”", `"`).Replace(query)
	query = strings.NewReplacer("‘", "'", "’", "'").Replace(query)
	query = strings.TrimSpace(query)
	if len(query) >= 2 {
		first, last := query[0], query[len(query)-1]
		if (first == '"' || first == '\'') && first == last {
			query = query[1 : len(query)-1]
		}
	}
	return query
}

// DeriveQuery bestimmt die effektive Suchquery eines Doktors. Eine hinterlegte
// PubMed-Ergebnis-URL mit term-Parameter hat Vorrang vor der manuellen Query;
// MyNCBI-Bibliographieseiten ohne term fallen auf die manuelle Query zurück.
// Leerer Rückgabewert bedeutet: nichts zu holen.
func DeriveQuery(doctor *models.Doctor) string {
	if doctor.BibURL != "" {
		if u, err := url.Parse(doctor.BibURL); err == nil && pubmedHostRegex.MatchString(u.Hostname()) {
			if term := u.Query().Get("term"); term != "" {
				return NormalizeQuery(term)
			}
		}
	}
	if doctor.Query != "" {
		return NormalizeQuery(doctor.Query)
	}
	return ""
}
