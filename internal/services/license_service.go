// internal/services/license_service.go
package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/keymint/keymint-backend/internal/database"
	"github.com/keymint/keymint-backend/internal/metrics"
	"github.com/keymint/keymint-backend/internal/models"
	"github.com/keymint/keymint-backend/internal/utils"
)

// MaxBatchSize caps one provisioning request. Exceeding it is a hard error,
// never a silent truncation.
const MaxBatchSize = 50

type LicenseService struct {
	db    *gorm.DB
	authz *AuthorizationService
}

type CreateLicensesRequest struct {
	AppID          uuid.UUID         `json:"appId" validate:"required"`
	Count          int               `json:"count" validate:"required,min=1"`
	Mask           string            `json:"mask" validate:"required,key_mask"`
	Charset        string            `json:"charset" validate:"required"`
	ExpiryUnit     models.ExpiryUnit `json:"expiryUnit,omitempty"`
	ExpiryDuration int               `json:"expiryDuration,omitempty"`
	Note           string            `json:"note,omitempty" validate:"max=500"`
	HwidLock       bool              `json:"hwidLock,omitempty"`
	HwidLimit      *int              `json:"hwidLimit,omitempty"`
}

type UpdateLicenseRequest struct {
	Note           *string               `json:"note,omitempty"`
	ExpiryDate     *string               `json:"expiryDate,omitempty"` // empty string clears
	Status         *models.LicenseStatus `json:"status,omitempty"`
	HwidLocked     *bool                 `json:"hwidLocked,omitempty"`
	HwidLimit      *int                  `json:"hwidLimit,omitempty"`
	ClearHwidIndex *int                  `json:"clearHwidIndex,omitempty"`
}

func NewLicenseService(db *gorm.DB, authz *AuthorizationService) *LicenseService {
	return &LicenseService{
		db:    db,
		authz: authz,
	}
}

// CreateBatch provisions count licenses with independently generated keys.
// The batch is all-or-nothing: a failure on any key rolls back every record
// created before it. Plaintext keys are returned to the caller exactly once.
func (s *LicenseService) CreateBatch(user *models.User, req *CreateLicensesRequest) ([]string, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.Count > MaxBatchSize {
		return nil, ErrBatchLimitExceeded
	}

	app, err := s.loadVisibleApp(req.AppID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeApp(user, app, ActionLicenseCreate); err != nil {
		return nil, err
	}

	hwidLimit := 1
	if req.HwidLock && req.HwidLimit != nil {
		if *req.HwidLimit < 1 || *req.HwidLimit > models.MaxHwids {
			return nil, ErrInvalidHwidLimit
		}
		hwidLimit = *req.HwidLimit
	}

	expiryDate := utils.CalculateExpiry(req.ExpiryUnit, req.ExpiryDuration, time.Now())

	keys := make([]string, 0, req.Count)
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		for i := 0; i < req.Count; i++ {
			plainKey, err := utils.GenerateLicenseKey(req.Mask, req.Charset)
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}

			license := &models.License{
				AppID:      app.ID,
				Key:        plainKey,
				Note:       strings.TrimSpace(req.Note),
				Hwids:      []string{},
				HwidLocked: req.HwidLock,
				HwidLimit:  hwidLimit,
				ExpiryDate: expiryDate,
				Status:     models.LicenseStatusActive,
			}

			if err := tx.Create(license).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateKey
				}
				return fmt.Errorf("failed to create license: %w", err)
			}
			keys = append(keys, plainKey)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordLicensesIssued(len(keys))
	return keys, nil
}

func (s *LicenseService) List(user *models.User, appID uuid.UUID, params utils.PaginationParams) ([]models.License, int64, error) {
	app, err := s.loadVisibleApp(appID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.authz.AuthorizeApp(user, app, ActionLicenseList); err != nil {
		return nil, 0, err
	}

	query := s.db.Model(&models.License{}).Where("app_id = ?", app.ID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "expiry_date", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}
	return licenses, total, nil
}

// Update applies owner edits. The row is locked for the duration of the
// transaction so an indexed HWID removal cannot interleave with a validation
// appending to the same list.
func (s *LicenseService) Update(user *models.User, id uuid.UUID, req *UpdateLicenseRequest) (*models.License, error) {
	license, err := s.loadLicenseWithApp(id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeApp(user, &license.App, ActionLicenseUpdate); err != nil {
		return nil, err
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var current models.License
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLicenseNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		updates := map[string]interface{}{}

		if req.ExpiryDate != nil {
			if *req.ExpiryDate == "" {
				updates["expiry_date"] = nil
			} else {
				expiry, err := parseExpiryDate(*req.ExpiryDate)
				if err != nil {
					return ErrInvalidExpiryDate
				}
				updates["expiry_date"] = expiry
			}
		}

		if req.Status != nil {
			switch *req.Status {
			case models.LicenseStatusActive, models.LicenseStatusRevoked, models.LicenseStatusSuspended:
				updates["status"] = *req.Status
			default:
				return errors.New("invalid license status")
			}
		}

		if req.HwidLocked != nil {
			updates["hwid_locked"] = *req.HwidLocked
		}

		if req.HwidLimit != nil {
			if *req.HwidLimit < 1 || *req.HwidLimit > models.MaxHwids {
				return ErrInvalidHwidLimit
			}
			updates["hwid_limit"] = *req.HwidLimit
		}

		if req.ClearHwidIndex != nil {
			index := *req.ClearHwidIndex
			if index < 0 || index >= len(current.Hwids) {
				return ErrInvalidHwidIndex
			}
			hwids := make(pq.StringArray, 0, len(current.Hwids)-1)
			hwids = append(hwids, current.Hwids[:index]...)
			hwids = append(hwids, current.Hwids[index+1:]...)
			updates["hwids"] = hwids
		}

		if req.Note != nil {
			note := strings.TrimSpace(*req.Note)
			if len(note) > 500 {
				return ErrNoteTooLong
			}
			updates["note"] = note
		}

		if len(updates) == 0 {
			return ErrNoUpdates
		}

		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update license: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadLicenseWithApp(id)
}

// Delete removes the license permanently.
func (s *LicenseService) Delete(user *models.User, id uuid.UUID) error {
	license, err := s.loadLicenseWithApp(id)
	if err != nil {
		return err
	}
	if err := s.authz.AuthorizeApp(user, &license.App, ActionLicenseDelete); err != nil {
		return err
	}

	if err := s.db.Delete(&models.License{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete license: %w", err)
	}
	return nil
}

// ExportCSV renders the app's active licenses as CSV, newest first.
func (s *LicenseService) ExportCSV(user *models.User, appID uuid.UUID) (string, error) {
	app, err := s.loadVisibleApp(appID)
	if err != nil {
		return "", err
	}
	if err := s.authz.AuthorizeApp(user, app, ActionLicenseExport); err != nil {
		return "", err
	}

	var licenses []models.License
	if err := s.db.Where("app_id = ? AND status = ?", app.ID, models.LicenseStatusActive).
		Order("created_at desc").Find(&licenses).Error; err != nil {
		return "", fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return BuildLicensesCSV(licenses), nil
}

// BuildLicensesCSV formats export rows. Commas inside notes are replaced
// with semicolons so the column layout survives naive CSV consumers.
func BuildLicensesCSV(licenses []models.License) string {
	rows := make([]string, 0, len(licenses)+1)
	rows = append(rows, "License Key,Status,Created,Expiry,HWID Locked,HWID Limit,HWIDs,Note")

	for _, l := range licenses {
		created := l.CreatedAt.Format("2006-01-02")
		expiry := ""
		if l.ExpiryDate != nil {
			expiry = l.ExpiryDate.Format("2006-01-02")
		}
		locked := "No"
		limit := ""
		if l.HwidLocked {
			locked = "Yes"
			limit = strconv.Itoa(l.ClampedHwidLimit())
		}
		hwids := strings.Join(l.Hwids, ";")
		note := strings.ReplaceAll(l.Note, ",", ";")

		rows = append(rows, strings.Join([]string{
			l.Key, string(l.Status), created, expiry, locked, limit, hwids, note,
		}, ","))
	}

	return strings.Join(rows, "\n")
}

func parseExpiryDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func (s *LicenseService) loadVisibleApp(id uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := s.db.First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if app.IsSuspended() {
		return nil, ErrAppNotFound
	}
	return &app, nil
}

func (s *LicenseService) loadLicenseWithApp(id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := s.db.Preload("App").First(&license, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}
