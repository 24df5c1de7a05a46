package models

// Doctor repräsentiert einen Arzt/Autor, dessen Publikationen importiert werden.
type Doctor struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"` // z.B. "Henderson"

	// Manuell hinterlegte PubMed-Query, z.B. "(Henderson A[au] OR Henderson AM[au])".
	Query string `json:"query,omitempty" gorm:"type:text"`

	// Optionale Bibliographie-URL. Ist es eine PubMed-Ergebnis-URL mit ?term=...,
	// hat deren term-Parameter Vorrang vor Query.
	BibURL string `json:"bib_url,omitempty"`

	Publications []Publication `json:"-" gorm:"many2many:publication_doctors;"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Doctor) TableName() string {
	return "doctors"
}
