package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"doctor-pubs/models"
)

func newTestDoctorService(t *testing.T, db *gorm.DB) *DoctorService {
	t.Helper()
	return NewDoctorService(db, zap.NewNop())
}

func createPublication(t *testing.T, db *gorm.DB, pmid, title string, owners ...*models.Doctor) *models.Publication {
	t.Helper()
	pub := &models.Publication{PMID: pmid, Title: title}
	require.NoError(t, db.Create(pub).Error)
	for _, owner := range owners {
		require.NoError(t, db.Model(pub).Association("Doctors").Append(owner))
	}
	return pub
}

func TestSaveDoctor_NormalizesQueryOnSave(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)

	doctor, err := svc.SaveDoctor("Henderson", `“(Henderson A[au] OR Henderson AM[au])”`, "")
	require.NoError(t, err)
	assert.Equal(t, "(Henderson A[au] OR Henderson AM[au])", doctor.Query)
}

func TestSaveDoctor_UpsertsByName(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)

	first, err := svc.SaveDoctor("Henderson", "old[au]", "")
	require.NoError(t, err)
	second, err := svc.SaveDoctor("Henderson", "new[au]", "https://pubmed.ncbi.nlm.nih.gov/?term=x")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	var count int64
	db.Model(&models.Doctor{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestSaveDoctor_RequiresName(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)

	_, err := svc.SaveDoctor("   ", "x", "")
	require.Error(t, err)
}

func TestDeleteDoctor_PurgeTrashesExclusiveKeepsCoOwned(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)
	henderson := createDoctor(t, db, "Henderson", "")
	lopez := createDoctor(t, db, "Lopez", "")

	exclusive := createPublication(t, db, "111", "Exclusive paper", henderson)
	coOwned := createPublication(t, db, "222", "Co-authored paper", henderson, lopez)

	result, err := svc.DeleteDoctor(henderson.ID, DeleteModePurge)
	require.NoError(t, err)
	assert.Equal(t, DeleteModePurge, result.Mode)
	assert.Equal(t, 1, result.Purged)
	assert.Equal(t, 1, result.Detached)

	// Exklusive Publikation liegt im Papierkorb (Soft-Delete), nicht hart gelöscht.
	var pub models.Publication
	err = db.First(&pub, exclusive.ID).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	require.NoError(t, db.Unscoped().First(&pub, exclusive.ID).Error)
	assert.True(t, pub.DeletedAt.Valid)

	// Gemeinsame Publikation überlebt, nur noch Lopez ist zugeordnet.
	pub = models.Publication{}
	require.NoError(t, db.First(&pub, coOwned.ID).Error)
	var remaining []models.Doctor
	require.NoError(t, db.Model(&pub).Association("Doctors").Find(&remaining))
	require.Len(t, remaining, 1)
	assert.Equal(t, "Lopez", remaining[0].Name)

	// Der Doktor selbst ist endgültig weg.
	err = db.First(&models.Doctor{}, henderson.ID).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDeleteDoctor_KeepDetachesOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)
	henderson := createDoctor(t, db, "Henderson", "")
	lopez := createDoctor(t, db, "Lopez", "")

	exclusive := createPublication(t, db, "111", "Exclusive paper", henderson)
	coOwned := createPublication(t, db, "222", "Co-authored paper", henderson, lopez)

	result, err := svc.DeleteDoctor(henderson.ID, DeleteModeKeep)
	require.NoError(t, err)
	assert.Equal(t, DeleteModeKeep, result.Mode)
	assert.Equal(t, 0, result.Purged)
	assert.Equal(t, 2, result.Detached)

	// Beide Publikationen überleben, Zuordnung zu Henderson ist gelöst.
	var pub models.Publication
	require.NoError(t, db.First(&pub, exclusive.ID).Error)
	owners := db.Model(&pub).Association("Doctors").Count()
	assert.EqualValues(t, 0, owners)

	pub = models.Publication{}
	require.NoError(t, db.First(&pub, coOwned.ID).Error)
	owners = db.Model(&pub).Association("Doctors").Count()
	assert.EqualValues(t, 1, owners)
}

func TestDeleteDoctor_UnknownModeFallsBackToKeep(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)
	henderson := createDoctor(t, db, "Henderson", "")
	createPublication(t, db, "111", "Paper", henderson)

	result, err := svc.DeleteDoctor(henderson.ID, "whatever")
	require.NoError(t, err)
	assert.Equal(t, DeleteModeKeep, result.Mode)
	assert.Equal(t, 0, result.Purged)
}

func TestDeleteDoctor_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)

	_, err := svc.DeleteDoctor(4711, DeleteModeKeep)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRebuildDates_BackfillsISOFromLegacyRaw(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)

	// Altbestand: nur das Rohdatum gefüllt, ISO und Sortierdatum fehlen.
	pub := &models.Publication{PMID: "111", Title: "Legacy paper", PubDateRaw: "2021 Jun"}
	require.NoError(t, db.Create(pub).Error)

	updated, err := svc.RebuildDates()
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	require.NoError(t, db.First(pub, pub.ID).Error)
	assert.Equal(t, "2021-06-28", pub.PubDateISO)
	require.NotNil(t, pub.SortDate)
	assert.Equal(t, "2021-06-28", pub.SortDate.Format("2006-01-02"))

	// Zweiter Lauf ist ein No-op.
	updated, err = svc.RebuildDates()
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestRebuildDates_LeavesUnparseableRawAlone(t *testing.T) {
	db := newTestDB(t)
	svc := newTestDoctorService(t, db)

	pub := &models.Publication{PMID: "111", Title: "Odd dates", PubDateRaw: "sometime in spring"}
	require.NoError(t, db.Create(pub).Error)

	updated, err := svc.RebuildDates()
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	require.NoError(t, db.First(pub, pub.ID).Error)
	assert.Equal(t, "", pub.PubDateISO)
	assert.Nil(t, pub.SortDate)
}
