package models

import (
	"time"

	"gorm.io/gorm"
)

// Publication repräsentiert eine deduplizierte, dauerhaft gespeicherte Publikation.
// Dedupliziert wird über die PMID, ersatzweise über den exakten Titel. Felder werden
// bei jeder erneuten Sichtung komplett überschrieben (last-write-wins), die
// Doktor-Zuordnungen wachsen dabei nur additiv.
type Publication struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"` // Soft-Delete = Papierkorb

	PMID    string `json:"pmid,omitempty" gorm:"column:pmid;index"`
	Title   string `json:"title"`
	Journal string `json:"journal,omitempty"`

	// Drei parallele Datumsformen, die synchron gehalten werden:
	// Raw ist das Altfeld vor Einführung des ISO-Datums, Display die
	// menschenlesbare Form, ISO das kanonische YYYY-MM-DD für die Sortierung.
	PubDateRaw     string `json:"pubdate_raw,omitempty"`
	PubDateDisplay string `json:"pubdate_display,omitempty"`
	PubDateISO     string `json:"pubdate_iso,omitempty"`

	// Aus PubDateISO abgeleiteter Sortier-Zeitstempel.
	SortDate *time.Time `json:"sort_date,omitempty" gorm:"index"`

	Authors   string `json:"authors,omitempty" gorm:"type:text"`
	DOI       string `json:"doi,omitempty" gorm:"column:doi"`
	PMCID     string `json:"pmcid,omitempty" gorm:"column:pmcid"`
	PubMedURL string `json:"pubmed_url,omitempty"`

	Doctors []Doctor `json:"-" gorm:"many2many:publication_doctors;"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Publication) TableName() string {
	return "publications"
}
