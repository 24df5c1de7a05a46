package services

import (
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"doctor-pubs/models"
	"doctor-pubs/pubmed"
)

// Löschmodi für DeleteDoctor.
const (
	DeleteModeKeep  = "keep"  // Publikationen behalten, nur Zuordnung lösen
	DeleteModePurge = "purge" // exklusiv zugeordnete Publikationen in den Papierkorb
)

// DoctorService verwaltet den Lebenszyklus der Doktoren: Anlegen/Ändern,
// Löschen mit kaskadierender Publikations-Disposition und die Datumsreparatur.
type DoctorService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewDoctorService erstellt eine neue Instanz des DoctorService.
func NewDoctorService(db *gorm.DB, logger *zap.Logger) *DoctorService {
	return &DoctorService{DB: db, Logger: logger}
}

// DeleteResult beschreibt das Ergebnis einer Doktor-Löschung für die
// Operator-Meldung.
type DeleteResult struct {
	Mode     string `json:"mode"`
	Purged   int    `json:"purged"`
	Detached int    `json:"detached"`
}

// SaveDoctor legt einen Doktor an oder aktualisiert ihn anhand des Namens.
// Die Query wird bereits beim Speichern quote-normalisiert, damit aus
// Rich-Text-Editoren eingefügte Anführungszeichen die Suche nicht brechen.
func (s *DoctorService) SaveDoctor(name, query, bibURL string) (*models.Doctor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("doctor name is required")
	}

	var doctor models.Doctor
	err := s.DB.Where("name = ?", name).First(&doctor).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	doctor.Name = name
	doctor.Query = NormalizeQuery(query)
	doctor.BibURL = bibURL
	if err := s.DB.Save(&doctor).Error; err != nil {
		return nil, err
	}
	return &doctor, nil
}

// DeleteDoctor entfernt einen Doktor. Modus keep löst nur die Zuordnungen;
// Modus purge verschiebt Publikationen, die ausschließlich diesem Doktor
// gehören, in den Papierkorb (Soft-Delete) und löst bei gemeinsam besessenen
// nur die Zuordnung. Der Doktor selbst wird erst danach endgültig gelöscht.
func (s *DoctorService) DeleteDoctor(id uint, mode string) (*DeleteResult, error) {
	if mode != DeleteModePurge {
		mode = DeleteModeKeep
	}

	var doctor models.Doctor
	if err := s.DB.First(&doctor, id).Error; err != nil {
		return nil, err
	}
	log := s.Logger.With(zap.String("doctor", doctor.Name), zap.String("mode", mode))

	var pubs []models.Publication
	if err := s.DB.Model(&doctor).Association("Publications").Find(&pubs); err != nil {
		return nil, err
	}

	result := &DeleteResult{Mode: mode}
	for i := range pubs {
		pub := &pubs[i]
		if mode == DeleteModePurge {
			owners := s.DB.Model(pub).Association("Doctors").Count()
			if owners <= 1 {
				// Exklusiv diesem Doktor zugeordnet: Papierkorb statt Hard-Delete.
				if err := s.DB.Delete(pub).Error; err != nil {
					return nil, err
				}
				result.Purged++
				continue
			}
		}
		if err := s.DB.Model(pub).Association("Doctors").Delete(&doctor); err != nil {
			return nil, err
		}
		result.Detached++
	}

	// Erst nachdem alle Publikationen behandelt sind; dieser Schritt ist endgültig.
	if err := s.DB.Model(&doctor).Association("Publications").Clear(); err != nil {
		return nil, err
	}
	if err := s.DB.Delete(&doctor).Error; err != nil {
		return nil, err
	}

	log.Info("Doktor gelöscht", zap.Int("purged", result.Purged), zap.Int("detached", result.Detached))
	return result, nil
}

// RebuildDates repariert die Datumsfelder aller Publikationen: fehlt das
// ISO-Datum, wird es aus dem Altfeld nachgezogen, danach wird der
// Sortier-Zeitstempel neu abgeleitet. Idempotent, vom Operator angestoßen.
func (s *DoctorService) RebuildDates() (int, error) {
	var pubs []models.Publication
	if err := s.DB.Find(&pubs).Error; err != nil {
		return 0, err
	}

	updated := 0
	for i := range pubs {
		pub := &pubs[i]
		changed := false

		if pub.PubDateISO == "" && pub.PubDateRaw != "" {
			if iso := pubmed.ToISO(strings.TrimSpace(pub.PubDateRaw)); iso != "" {
				pub.PubDateISO = iso
				changed = true
			}
		}
		if pub.PubDateISO != "" {
			before := pub.SortDate
			syncSortDate(pub)
			if (before == nil) != (pub.SortDate == nil) ||
				(before != nil && pub.SortDate != nil && !before.Equal(*pub.SortDate)) {
				changed = true
			}
		}

		if changed {
			if err := s.DB.Save(pub).Error; err != nil {
				return updated, err
			}
			updated++
		}
	}

	s.Logger.Info("Datumsreparatur abgeschlossen", zap.Int("updated", updated), zap.Int("total", len(pubs)))
	return updated, nil
}
