// internal/services/validation_service_test.go
package services

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/keymint/keymint-backend/internal/database"
	"github.com/keymint/keymint-backend/internal/models"
	"github.com/keymint/keymint-backend/internal/utils"
)

// ValidationTestSuite exercises the validation state machine against a real
// Postgres instance; the array admission SQL has no sqlite equivalent. Set
// TEST_DATABASE_URL to run it.
type ValidationTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *ValidationService

	app    *models.Application
	secret string
}

func (s *ValidationTestSuite) SetupSuite() {
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
	s.service = NewValidationService(db)
}

func (s *ValidationTestSuite) SetupTest() {
	s.Require().NoError(s.db.Exec("TRUNCATE licenses, applications, users CASCADE").Error)

	owner := &models.User{
		Username:     "dev",
		Email:        "dev@example.com",
		PasswordHash: "x",
		Role:         models.UserRoleDeveloper,
		Status:       models.UserStatusActive,
	}
	s.Require().NoError(s.db.Create(owner).Error)

	secret, err := utils.GenerateAPISecret()
	s.Require().NoError(err)
	hash, err := utils.HashSecret(secret)
	s.Require().NoError(err)

	app := &models.Application{
		OwnerID:       owner.ID,
		Name:          "testapp",
		APISecretHash: hash,
		Status:        models.AppStatusActive,
	}
	s.Require().NoError(s.db.Create(app).Error)

	s.app = app
	s.secret = secret
}

func (s *ValidationTestSuite) createLicense(mutate func(*models.License)) *models.License {
	license := &models.License{
		AppID:     s.app.ID,
		Key:       "TEST-KEY-" + time.Now().Format("150405.000000000"),
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

func (s *ValidationTestSuite) validate(key, hwid string) (*ValidationResult, error) {
	return s.service.Validate(&ValidateLicenseRequest{
		AppID:      s.app.ID.String(),
		APISecret:  s.secret,
		LicenseKey: key,
		Hwid:       hwid,
	})
}

func (s *ValidationTestSuite) TestValidLicense() {
	license := s.createLicense(nil)

	result, err := s.validate(license.Key, "")
	s.Require().NoError(err)
	s.True(result.Valid)
	s.Require().NotNil(result.License)
	s.Equal(license.Key, result.License.Key)
	s.Empty(result.License.Hwids)
}

func (s *ValidationTestSuite) TestWrongSecret() {
	license := s.createLicense(nil)

	_, err := s.service.Validate(&ValidateLicenseRequest{
		AppID:      s.app.ID.String(),
		APISecret:  "not-the-secret",
		LicenseKey: license.Key,
	})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ValidationTestSuite) TestSecretNotConfigured() {
	s.Require().NoError(s.db.Model(s.app).Update("api_secret_hash", "").Error)
	license := s.createLicense(nil)

	_, err := s.validate(license.Key, "")
	s.ErrorIs(err, ErrSecretNotConfigured)
}

func (s *ValidationTestSuite) TestUnknownApp() {
	result, err := s.service.Validate(&ValidateLicenseRequest{
		AppID:      "00000000-0000-0000-0000-000000000000",
		APISecret:  s.secret,
		LicenseKey: "whatever",
	})
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonAppNotFound, result.Reason)
}

func (s *ValidationTestSuite) TestMalformedAppID() {
	result, err := s.service.Validate(&ValidateLicenseRequest{
		AppID:      "not-a-uuid",
		APISecret:  s.secret,
		LicenseKey: "whatever",
	})
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonAppNotFound, result.Reason)
}

func (s *ValidationTestSuite) TestSuspendedApp() {
	license := s.createLicense(nil)
	s.Require().NoError(s.db.Model(s.app).Update("status", models.AppStatusSuspended).Error)

	result, err := s.validate(license.Key, "")
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonAppNotFound, result.Reason)
}

func (s *ValidationTestSuite) TestUnknownKey() {
	result, err := s.validate("NOPE-NOPE", "")
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonLicenseNotFound, result.Reason)
}

func (s *ValidationTestSuite) TestRevokedLicense() {
	license := s.createLicense(func(l *models.License) {
		l.Status = models.LicenseStatusRevoked
	})

	result, err := s.validate(license.Key, "")
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonLicenseNotActive, result.Reason)
}

func (s *ValidationTestSuite) TestExpiredLicense() {
	past := time.Now().Add(-time.Hour)
	license := s.createLicense(func(l *models.License) {
		l.ExpiryDate = &past
	})

	result, err := s.validate(license.Key, "")
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonLicenseExpired, result.Reason)
}

func (s *ValidationTestSuite) TestHwidBindingUpToLimit() {
	license := s.createLicense(func(l *models.License) {
		l.HwidLocked = true
		l.HwidLimit = 2
	})

	result, err := s.validate(license.Key, "device-1")
	s.Require().NoError(err)
	s.True(result.Valid)

	result, err = s.validate(license.Key, "device-2")
	s.Require().NoError(err)
	s.True(result.Valid)
	s.ElementsMatch([]string{"device-1", "device-2"}, result.License.Hwids)

	// Third device finds every slot taken.
	result, err = s.validate(license.Key, "device-3")
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonHwidLimitReached, result.Reason)
}

func (s *ValidationTestSuite) TestHwidRevalidationIsIdempotent() {
	license := s.createLicense(func(l *models.License) {
		l.HwidLocked = true
		l.HwidLimit = 1
	})

	for i := 0; i < 3; i++ {
		result, err := s.validate(license.Key, "same-device")
		s.Require().NoError(err)
		s.True(result.Valid)
		s.Equal([]string{"same-device"}, result.License.Hwids)
	}
}

func (s *ValidationTestSuite) TestConcurrentBindingAdmitsExactlyOneDevice() {
	license := s.createLicense(func(l *models.License) {
		l.HwidLocked = true
		l.HwidLimit = 1
	})

	// Distinct devices race for the single slot; the conditional update must
	// admit exactly one of them.
	const devices = 8
	results := make([]*ValidationResult, devices)
	errs := make([]error, devices)

	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.validate(license.Key, fmt.Sprintf("racer-%d", i))
		}(i)
	}
	wg.Wait()

	admitted := 0
	for i := 0; i < devices; i++ {
		s.Require().NoError(errs[i])
		s.Require().NotNil(results[i])
		if results[i].Valid {
			admitted++
		} else {
			s.Equal(ReasonHwidLimitReached, results[i].Reason)
		}
	}
	s.Equal(1, admitted)

	var stored models.License
	s.Require().NoError(s.db.First(&stored, license.ID).Error)
	s.Len(stored.Hwids, 1)
}

func (s *ValidationTestSuite) TestLockedLicenseRequiresHwid() {
	license := s.createLicense(func(l *models.License) {
		l.HwidLocked = true
	})

	result, err := s.validate(license.Key, "")
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonHwidRequired, result.Reason)
}

func (s *ValidationTestSuite) TestUnlockedLicenseHardCeiling() {
	license := s.createLicense(func(l *models.License) {
		l.HwidLocked = false
		l.HwidLimit = 1
	})

	// Unlocked licenses record devices up to the hard ceiling, ignoring the
	// configured limit.
	for i, hwid := range []string{"d1", "d2", "d3", "d4", "d5"} {
		result, err := s.validate(license.Key, hwid)
		s.Require().NoError(err)
		s.True(result.Valid, "device %d should be admitted", i+1)
	}

	result, err := s.validate(license.Key, "d6")
	s.Require().NoError(err)
	s.False(result.Valid)
	s.Equal(ReasonHwidLimitReached, result.Reason)
}

func TestValidationSuite(t *testing.T) {
	suite.Run(t, new(ValidationTestSuite))
}
