// internal/services/validation_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keymint/keymint-backend/internal/metrics"
	"github.com/keymint/keymint-backend/internal/models"
	"github.com/keymint/keymint-backend/internal/utils"
)

// Soft validation reason codes. These travel as data in a success-class
// response so calling software can branch without exception machinery.
const (
	ReasonAppNotFound      = "app_not_found"
	ReasonLicenseNotFound  = "license_not_found"
	ReasonLicenseNotActive = "license_not_active"
	ReasonLicenseExpired   = "license_expired"
	ReasonHwidLimitReached = "hwid_limit_reached"
	ReasonHwidRequired     = "hwid_required"
	ReasonHwidMismatch     = "hwid_mismatch"
)

type ValidationService struct {
	db *gorm.DB
}

type ValidateLicenseRequest struct {
	AppID      string `json:"appId"`
	APISecret  string `json:"apiSecret"`
	LicenseKey string `json:"licenseKey"`
	Hwid       string `json:"hwid,omitempty"`
}

// ValidatedLicense is the sanitized record echoed back on success so callers
// can cache state without a second lookup. The secret hash never appears.
type ValidatedLicense struct {
	ID         uuid.UUID  `json:"id"`
	Key        string     `json:"key"`
	Note       string     `json:"note"`
	Status     string     `json:"status"`
	ExpiryDate *time.Time `json:"expiry_date"`
	HwidLocked bool       `json:"hwid_locked"`
	HwidLimit  int        `json:"hwid_limit"`
	Hwids      []string   `json:"hwids"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Reason  string            `json:"reason,omitempty"`
	License *ValidatedLicense `json:"license,omitempty"`
}

func NewValidationService(db *gorm.DB) *ValidationService {
	return &ValidationService{db: db}
}

// Validate runs the full validation state machine. Soft outcomes come back
// as a ValidationResult with Valid=false; only caller integration errors
// (bad secret, unconfigured secret) and storage failures are returned as
// errors.
func (s *ValidationService) Validate(req *ValidateLicenseRequest) (*ValidationResult, error) {
	appID, err := uuid.Parse(req.AppID)
	if err != nil {
		return softResult(ReasonAppNotFound), nil
	}

	var app models.Application
	if err := s.db.First(&app, appID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return softResult(ReasonAppNotFound), nil
		}
		return nil, s.internal(err)
	}
	if app.IsSuspended() {
		return softResult(ReasonAppNotFound), nil
	}

	if app.APISecretHash == "" {
		return nil, ErrSecretNotConfigured
	}
	if !utils.VerifySecret(req.APISecret, app.APISecretHash) {
		metrics.RecordValidation("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	var license models.License
	if err := s.db.Where("app_id = ? AND key = ?", app.ID, req.LicenseKey).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return softResult(ReasonLicenseNotFound), nil
		}
		return nil, s.internal(err)
	}

	if license.Status != models.LicenseStatusActive {
		return softResult(ReasonLicenseNotActive), nil
	}

	if license.IsExpired(time.Now()) {
		return softResult(ReasonLicenseExpired), nil
	}

	// HWID admission: the only mutating path in validation.
	if req.Hwid != "" && !license.HasHwid(req.Hwid) {
		bound, err := s.bindHwid(&license, req.Hwid)
		if err != nil {
			return nil, s.internal(err)
		}
		if err := s.db.First(&license, license.ID).Error; err != nil {
			return nil, s.internal(err)
		}
		// The conditional update refuses either because the hwid is already
		// present (a concurrent bind of the same device, fine) or because
		// every slot is taken.
		if !bound && !license.HasHwid(req.Hwid) {
			return softResult(ReasonHwidLimitReached), nil
		}
	}

	if license.HwidLocked {
		if req.Hwid == "" {
			return softResult(ReasonHwidRequired), nil
		}
		if !license.HasHwid(req.Hwid) {
			return softResult(ReasonHwidMismatch), nil
		}
	}

	metrics.RecordValidation("valid")
	return &ValidationResult{
		Valid:   true,
		License: sanitizeLicense(&license),
	}, nil
}

// bindHwid appends the hwid in a single conditional UPDATE so two devices
// racing for the last slot can never both be admitted: the membership and
// capacity checks are evaluated and applied as one indivisible statement.
func (s *ValidationService) bindHwid(license *models.License, hwid string) (bool, error) {
	res := s.db.Model(&models.License{}).
		Where("id = ? AND NOT (? = ANY(hwids)) AND COALESCE(array_length(hwids, 1), 0) < ?",
			license.ID, hwid, license.EffectiveHwidLimit()).
		Update("hwids", gorm.Expr("array_append(hwids, ?)", hwid))
	if res.Error != nil {
		return false, fmt.Errorf("failed to bind hwid: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func softResult(reason string) *ValidationResult {
	metrics.RecordValidation(reason)
	return &ValidationResult{Valid: false, Reason: reason}
}

func sanitizeLicense(l *models.License) *ValidatedLicense {
	hwids := l.Hwids
	if hwids == nil {
		hwids = []string{}
	}
	return &ValidatedLicense{
		ID:         l.ID,
		Key:        l.Key,
		Note:       l.Note,
		Status:     string(l.Status),
		ExpiryDate: l.ExpiryDate,
		HwidLocked: l.HwidLocked,
		HwidLimit:  l.ClampedHwidLimit(),
		Hwids:      hwids,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func (s *ValidationService) internal(err error) error {
	metrics.RecordValidation("error")
	return fmt.Errorf("validation storage error: %w", err)
}
