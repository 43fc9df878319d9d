package repository

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pixelharbor/imageconvbackend/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ConversionRecord{}, &models.PointRecord{}))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Role: models.RoleFree, IsActive: true}
	require.NoError(t, user.SetPassword("secret123"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedRecord(t *testing.T, repo *GormConversionRepository, userID uint, format string) *models.ConversionRecord {
	t.Helper()
	record := &models.ConversionRecord{
		UserID:           &userID,
		OriginalFilename: "in.png",
		TargetFormat:     format,
		Status:           models.ConversionStatusSuccess,
	}
	require.NoError(t, repo.Create(record))
	return record
}

func TestConversionRepositoryCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversionRepository(db)
	user := seedUser(t, db, "alice")

	record := seedRecord(t, repo, user.ID, "jpeg")
	require.NotZero(t, record.ID)

	got, err := repo.GetByID(record.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, "jpeg", got.TargetFormat)
	require.NotNil(t, got.UserID)
	assert.Equal(t, user.ID, *got.UserID)
}

func TestConversionRepositoryScopesToOwner(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversionRepository(db)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	record := seedRecord(t, repo, alice.ID, "jpeg")

	_, err := repo.GetByID(record.ID, bob.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	assert.ErrorIs(t, repo.Delete(record.ID, bob.ID), ErrRecordNotFound)

	// alice's record is untouched by bob's attempts
	_, err = repo.GetByID(record.ID, alice.ID)
	assert.NoError(t, err)
}

func TestConversionRepositoryListAndFilter(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversionRepository(db)
	user := seedUser(t, db, "alice")
	other := seedUser(t, db, "bob")

	seedRecord(t, repo, user.ID, "jpeg")
	seedRecord(t, repo, user.ID, "png")
	seedRecord(t, repo, user.ID, "jpeg")
	seedRecord(t, repo, other.ID, "jpeg")

	records, err := repo.ListByUser(user.ID, 10, 0, "")
	require.NoError(t, err)
	require.Len(t, records, 3)
	// newest first
	assert.Greater(t, records[0].ID, records[1].ID)
	assert.Greater(t, records[1].ID, records[2].ID)

	jpegOnly, err := repo.ListByUser(user.ID, 10, 0, "JPEG")
	require.NoError(t, err)
	assert.Len(t, jpegOnly, 2)

	page, err := repo.ListByUser(user.ID, 2, 2, "")
	require.NoError(t, err)
	assert.Len(t, page, 1)

	count, err := repo.CountByUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestConversionRepositoryDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversionRepository(db)
	user := seedUser(t, db, "alice")

	record := seedRecord(t, repo, user.ID, "webp")

	require.NoError(t, repo.Delete(record.ID, user.ID))
	_, err := repo.GetByID(record.ID, user.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	assert.ErrorIs(t, repo.Delete(record.ID, user.ID), ErrRecordNotFound)
}

func TestConversionRepositoryNullableFieldsSurvive(t *testing.T) {
	db := newTestDB(t)
	repo := NewConversionRepository(db)
	user := seedUser(t, db, "alice")

	errMsg := "image decode failed"
	record := &models.ConversionRecord{
		UserID:           &user.ID,
		OriginalFilename: "broken.png",
		TargetFormat:     "jpeg",
		Status:           models.ConversionStatusFailed,
		ErrorMessage:     &errMsg,
	}
	require.NoError(t, repo.Create(record))

	got, err := repo.GetByID(record.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, errMsg, *got.ErrorMessage)
	assert.Nil(t, got.ConvertedFilePath)
	assert.Nil(t, got.CompressionRatio)
	assert.Nil(t, got.Quality)
}

func TestUserRepositoryLookups(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	user := seedUser(t, db, "alice")

	byID, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)
	assert.True(t, byID.CheckPassword("secret123"))
	assert.False(t, byID.CheckPassword("wrong"))

	byName, err := repo.GetByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = repo.GetByID(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.GetByUsername("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepositoryAddPoints(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	user := seedUser(t, db, "alice")

	require.NoError(t, repo.AddPoints(user.ID, 10))
	require.NoError(t, repo.AddPoints(user.ID, -3))

	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Points)

	assert.ErrorIs(t, repo.AddPoints(9999, 5), ErrUserNotFound)
}

func TestPointsRepositoryCreateWithBalance(t *testing.T) {
	db := newTestDB(t)
	repo := NewPointsRepository(db)
	userRepo := NewUserRepository(db)
	user := seedUser(t, db, "alice")

	earn := &models.PointRecord{
		UserID:      user.ID,
		Points:      10,
		Type:        models.PointTypeEarn,
		Source:      models.PointSourceConversion,
		Description: "image conversion completed",
	}
	require.NoError(t, repo.CreateWithBalance(earn))
	require.NotZero(t, earn.ID)

	spend := &models.PointRecord{
		UserID:      user.ID,
		Points:      4,
		Type:        models.PointTypeSpend,
		Source:      "redeem",
		Description: "redeemed",
	}
	require.NoError(t, repo.CreateWithBalance(spend))

	got, err := userRepo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Points)

	records, err := repo.ListByUser(user.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestPointsRepositoryRollsBackOnMissingUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewPointsRepository(db)

	orphan := &models.PointRecord{
		UserID: 9999,
		Points: 10,
		Type:   models.PointTypeEarn,
		Source: models.PointSourceConversion,
	}
	require.Error(t, repo.CreateWithBalance(orphan))

	// the transaction must leave no point record behind
	var count int64
	require.NoError(t, db.Model(&models.PointRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}
