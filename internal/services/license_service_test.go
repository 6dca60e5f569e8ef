// internal/services/license_service_test.go
package services

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keymint/keymint-backend/internal/database"
	"github.com/keymint/keymint-backend/internal/models"
	"github.com/keymint/keymint-backend/internal/utils"
)

func TestCreateBatchRejectsOversizedBatch(t *testing.T) {
	// The batch cap is checked before any storage access; a nil db proves
	// nothing is persisted for an oversized request.
	service := NewLicenseService(nil, NewAuthorizationService())
	user := &models.User{BaseModel: models.BaseModel{ID: uuid.New()}, Role: models.UserRoleDeveloper}

	keys, err := service.CreateBatch(user, &CreateLicensesRequest{
		AppID:   uuid.New(),
		Count:   MaxBatchSize + 1,
		Mask:    "***_***",
		Charset: "ABC",
	})
	assert.ErrorIs(t, err, ErrBatchLimitExceeded)
	assert.Nil(t, keys)
}

func TestBuildLicensesCSVHeaderOnly(t *testing.T) {
	csv := BuildLicensesCSV(nil)
	assert.Equal(t, "License Key,Status,Created,Expiry,HWID Locked,HWID Limit,HWIDs,Note", csv)
}

func TestBuildLicensesCSVRows(t *testing.T) {
	created := time.Date(2026, time.January, 5, 9, 30, 0, 0, time.UTC)
	expiry := time.Date(2026, time.July, 5, 0, 0, 0, 0, time.UTC)

	licenses := []models.License{
		{
			BaseModel:  models.BaseModel{CreatedAt: created},
			Key:        "AAA-BBB",
			Status:     models.LicenseStatusActive,
			ExpiryDate: &expiry,
			HwidLocked: true,
			HwidLimit:  3,
			Hwids:      []string{"hw1", "hw2"},
			Note:       "for reseller, batch 7",
		},
		{
			BaseModel:  models.BaseModel{CreatedAt: created},
			Key:        "CCC-DDD",
			Status:     models.LicenseStatusActive,
			HwidLocked: false,
			HwidLimit:  2,
		},
	}

	lines := strings.Split(BuildLicensesCSV(licenses), "\n")
	require.Len(t, lines, 3)

	// Locked row: limit shown, hwids semicolon-joined, note commas replaced.
	assert.Equal(t, "AAA-BBB,active,2026-01-05,2026-07-05,Yes,3,hw1;hw2,for reseller; batch 7", lines[1])

	// Unlocked row: limit column stays empty regardless of the stored value,
	// no expiry renders as an empty cell.
	assert.Equal(t, "CCC-DDD,active,2026-01-05,,No,,,", lines[2])
}

func TestBuildLicensesCSVClampsLimit(t *testing.T) {
	license := models.License{
		Key:        "EEE-FFF",
		Status:     models.LicenseStatusActive,
		HwidLocked: true,
		HwidLimit:  40,
	}

	lines := strings.Split(BuildLicensesCSV([]models.License{license}), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], ",Yes,5,")
}

func TestParseExpiryDate(t *testing.T) {
	got, err := parseExpiryDate("2026-12-31")
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.December, got.Month())

	got, err = parseExpiryDate("2026-12-31T23:59:59Z")
	require.NoError(t, err)
	assert.Equal(t, 23, got.Hour())

	_, err = parseExpiryDate("31/12/2026")
	assert.Error(t, err)
}

// LicenseServiceTestSuite exercises provisioning and owner updates against a
// real Postgres instance. Set TEST_DATABASE_URL to run it.
type LicenseServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *LicenseService

	owner *models.User
	app   *models.Application
}

func (s *LicenseServiceTestSuite) SetupSuite() {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		s.T().Skip("TEST_DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	s.Require().NoError(err)
	s.Require().NoError(database.RunMigrations(db))

	s.db = db
	s.service = NewLicenseService(db, NewAuthorizationService())
}

func (s *LicenseServiceTestSuite) SetupTest() {
	s.Require().NoError(s.db.Exec("TRUNCATE licenses, applications, users CASCADE").Error)

	owner := &models.User{
		Username:     "dev",
		Email:        "dev@example.com",
		PasswordHash: "x",
		Role:         models.UserRoleDeveloper,
		Status:       models.UserStatusActive,
	}
	s.Require().NoError(s.db.Create(owner).Error)

	hash, err := utils.HashSecret("secret")
	s.Require().NoError(err)

	app := &models.Application{
		OwnerID:       owner.ID,
		Name:          "testapp",
		APISecretHash: hash,
		Status:        models.AppStatusActive,
	}
	s.Require().NoError(s.db.Create(app).Error)

	s.owner = owner
	s.app = app
}

func (s *LicenseServiceTestSuite) countLicenses() int64 {
	var total int64
	s.Require().NoError(s.db.Model(&models.License{}).Where("app_id = ?", s.app.ID).Count(&total).Error)
	return total
}

func (s *LicenseServiceTestSuite) TestCreateBatchPersistsEveryKey() {
	keys, err := s.service.CreateBatch(s.owner, &CreateLicensesRequest{
		AppID:   s.app.ID,
		Count:   5,
		Mask:    "****_****",
		Charset: "ABCDEF0123456789",
	})
	s.Require().NoError(err)
	s.Require().Len(keys, 5)
	s.Equal(int64(5), s.countLicenses())

	for _, key := range keys {
		var license models.License
		s.Require().NoError(s.db.Where("app_id = ? AND key = ?", s.app.ID, key).First(&license).Error)
		s.Equal(models.LicenseStatusActive, license.Status)
		s.False(license.HwidLocked)
		s.Empty(license.Hwids)
		s.Nil(license.ExpiryDate)
	}
}

func (s *LicenseServiceTestSuite) TestCreateBatchLockedDefaultsLimitToOne() {
	keys, err := s.service.CreateBatch(s.owner, &CreateLicensesRequest{
		AppID:    s.app.ID,
		Count:    1,
		Mask:     "****_****",
		Charset:  "ABCDEF",
		HwidLock: true,
	})
	s.Require().NoError(err)
	s.Require().Len(keys, 1)

	var license models.License
	s.Require().NoError(s.db.Where("key = ?", keys[0]).First(&license).Error)
	s.True(license.HwidLocked)
	s.Equal(1, license.HwidLimit)
}

func (s *LicenseServiceTestSuite) TestCreateBatchRollsBackOnDuplicateKey() {
	// A mask without random slots renders the same key every time, so the
	// second insert collides and the whole batch must roll back.
	keys, err := s.service.CreateBatch(s.owner, &CreateLicensesRequest{
		AppID:   s.app.ID,
		Count:   2,
		Mask:    "STATIC_KEY",
		Charset: "ABC",
	})
	s.ErrorIs(err, ErrDuplicateKey)
	s.Nil(keys)
	s.Equal(int64(0), s.countLicenses())
}

func (s *LicenseServiceTestSuite) createLicense(mutate func(*models.License)) *models.License {
	license := &models.License{
		AppID:     s.app.ID,
		Key:       "TEST-KEY-" + uuid.NewString(),
		Hwids:     []string{},
		HwidLimit: 1,
		Status:    models.LicenseStatusActive,
	}
	if mutate != nil {
		mutate(license)
	}
	s.Require().NoError(s.db.Create(license).Error)
	return license
}

func (s *LicenseServiceTestSuite) TestUpdateClearsExactlyOneHwid() {
	license := s.createLicense(func(l *models.License) {
		l.Hwids = pq.StringArray{"hw-a", "hw-b", "hw-c"}
	})

	index := 1
	updated, err := s.service.Update(s.owner, license.ID, &UpdateLicenseRequest{ClearHwidIndex: &index})
	s.Require().NoError(err)
	s.Equal([]string{"hw-a", "hw-c"}, []string(updated.Hwids))
}

func (s *LicenseServiceTestSuite) TestUpdateRejectsOutOfRangeHwidIndex() {
	license := s.createLicense(func(l *models.License) {
		l.Hwids = pq.StringArray{"hw-a", "hw-b"}
	})

	for _, index := range []int{-1, 2, 10} {
		idx := index
		_, err := s.service.Update(s.owner, license.ID, &UpdateLicenseRequest{ClearHwidIndex: &idx})
		s.ErrorIs(err, ErrInvalidHwidIndex, "index %d must be rejected", index)
	}

	var stored models.License
	s.Require().NoError(s.db.First(&stored, license.ID).Error)
	s.Equal([]string{"hw-a", "hw-b"}, []string(stored.Hwids))
}

func (s *LicenseServiceTestSuite) TestUpdateWithoutFieldsRejected() {
	license := s.createLicense(nil)

	_, err := s.service.Update(s.owner, license.ID, &UpdateLicenseRequest{})
	s.ErrorIs(err, ErrNoUpdates)
}

func TestLicenseServiceSuite(t *testing.T) {
	suite.Run(t, new(LicenseServiceTestSuite))
}
