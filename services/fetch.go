package services

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"doctor-pubs/config"
	"doctor-pubs/models"
)

// Searcher ist die Schnittstelle zum zweiphasigen PubMed-Client.
type Searcher interface {
	Search(term string, limit int, force bool) ([]*models.Record, error)
}

// FetchService orchestriert den Import: Query auflösen, Treffer holen,
// normalisierte Records upserten und dem Doktor zuordnen.
type FetchService struct {
	Config *config.Config
	DB     *gorm.DB
	Client Searcher
	Logger *zap.Logger
}

// NewFetchService erstellt eine neue Instanz des FetchService.
func NewFetchService(cfg *config.Config, db *gorm.DB, client Searcher, logger *zap.Logger) *FetchService {
	return &FetchService{Config: cfg, DB: db, Client: client, Logger: logger}
}

// RunForDoctor führt den Import für einen einzelnen Doktor aus und gibt die
// Anzahl neu angelegter Publikationen zurück. Eine leere Query ist kein Fehler,
// sondern ein No-op; ein Fetch-Fehler überspringt den gesamten Lauf dieses
// Doktors, es werden keine Teilergebnisse übernommen.
func (f *FetchService) RunForDoctor(doctor *models.Doctor, force bool) (int, error) {
	log := f.Logger.With(zap.String("doctor", doctor.Name))

	query := DeriveQuery(doctor)
	if query == "" {
		log.Info("Keine Query für Doktor hinterlegt, überspringe.")
		return 0, nil
	}

	records, err := f.Client.Search(query, f.Config.FetchRetMax, force)
	if err != nil {
		log.Error("PubMed-Fetch fehlgeschlagen", zap.Error(err))
		return 0, err
	}

	created := 0
	for _, rec := range records {
		// Ohne PMID und Titel gibt es keinen Dedup-Schlüssel.
		if rec.PMID == "" && rec.Title == "" {
			continue
		}
		wasNew, err := f.upsertRecord(rec, doctor)
		if err != nil {
			log.Warn("Upsert fehlgeschlagen", zap.String("pmid", rec.PMID), zap.Error(err))
			continue
		}
		if wasNew {
			created++
		}
	}

	log.Info("Import für Doktor abgeschlossen", zap.Int("records", len(records)), zap.Int("new", created))
	return created, nil
}

// RunForAll führt den Import für alle Doktoren aus. Jeder Doktor läuft
// unabhängig; ein Fetch-Fehler verhindert nicht die übrigen Läufe.
func (f *FetchService) RunForAll(force bool) (created, failed int, err error) {
	var doctors []models.Doctor
	if err := f.DB.Find(&doctors).Error; err != nil {
		f.Logger.Error("Fehler beim Abrufen der Doktoren", zap.Error(err))
		return 0, 0, err
	}

	for i := range doctors {
		count, err := f.RunForDoctor(&doctors[i], force)
		if err != nil {
			failed++
			continue
		}
		created += count
	}
	return created, failed, nil
}

// upsertRecord dedupliziert über die PMID, ersatzweise über den exakten Titel,
// überschreibt alle Felder (last-write-wins) und fügt den Doktor additiv der
// Zuordnungsmenge hinzu. Bestehende Zuordnungen anderer Doktoren bleiben.
func (f *FetchService) upsertRecord(rec *models.Record, doctor *models.Doctor) (bool, error) {
	var pub models.Publication
	found := false

	if rec.PMID != "" {
		if err := f.DB.Where("pmid = ?", rec.PMID).First(&pub).Error; err == nil {
			found = true
		}
	}
	if !found && rec.Title != "" {
		if err := f.DB.Where("title = ?", rec.Title).First(&pub).Error; err == nil {
			found = true
		}
	}

	pub.PMID = rec.PMID
	pub.Title = rec.Title
	if pub.Title == "" {
		pub.Title = "PMID " + rec.PMID
	}
	pub.Journal = rec.Journal
	pub.Authors = strings.Join(rec.Authors, ", ")
	pub.DOI = rec.DOI
	pub.PMCID = rec.PMCID
	pub.PubMedURL = rec.URL
	if pub.PubMedURL == "" && rec.PMID != "" {
		pub.PubMedURL = fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", rec.PMID)
	}

	// Alle drei Datumsformen synchron halten; PubDateRaw ist das Altfeld.
	pub.PubDateRaw = rec.DisplayDate
	pub.PubDateDisplay = rec.DisplayDate
	pub.PubDateISO = rec.ISODate
	syncSortDate(&pub)

	if err := f.DB.Save(&pub).Error; err != nil {
		return false, err
	}
	if err := f.DB.Model(&pub).Association("Doctors").Append(doctor); err != nil {
		return false, err
	}
	return !found, nil
}

// syncSortDate leitet den Sortier-Zeitstempel aus dem ISO-Datum ab.
func syncSortDate(pub *models.Publication) {
	if pub.PubDateISO == "" {
		return
	}
	if t, err := time.Parse("2006-01-02", pub.PubDateISO); err == nil {
		pub.SortDate = &t
	}
}
