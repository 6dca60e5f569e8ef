// internal/services/app_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/keymint/keymint-backend/internal/database"
	"github.com/keymint/keymint-backend/internal/models"
	"github.com/keymint/keymint-backend/internal/utils"
)

type AppService struct {
	db    *gorm.DB
	authz *AuthorizationService
}

type CreateAppRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=40"`
	Description string `json:"description,omitempty" validate:"max=500"`
}

type UpdateAppRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func NewAppService(db *gorm.DB, authz *AuthorizationService) *AppService {
	return &AppService{
		db:    db,
		authz: authz,
	}
}

func (s *AppService) Create(user *models.User, req *CreateAppRequest) (*models.Application, error) {
	if !s.authz.Can(user.Role, ActionAppCreate) {
		return nil, ErrForbidden
	}

	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	app := &models.Application{
		OwnerID:     user.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Status:      models.AppStatusActive,
	}

	if err := s.db.Create(app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to create app: %w", err)
	}

	return app, nil
}

// List returns the caller's applications ordered by their configured sort
// position. Admins and redistributors see every owner's apps; suspended apps
// stay visible to admins only.
func (s *AppService) List(user *models.User) ([]models.Application, error) {
	if !s.authz.Can(user.Role, ActionAppList) {
		return nil, ErrForbidden
	}

	query := s.db.Model(&models.Application{}).Order("sort_order asc, created_at desc")
	if user.Role == models.UserRoleDeveloper {
		query = query.Where("owner_id = ?", user.ID)
	}
	if user.Role != models.UserRoleAdmin {
		query = query.Where("status <> ?", models.AppStatusSuspended)
	}

	var apps []models.Application
	if err := query.Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch apps: %w", err)
	}
	return apps, nil
}

func (s *AppService) Update(user *models.User, id uuid.UUID, req *UpdateAppRequest) (*models.Application, error) {
	app, err := s.loadVisibleApp(id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.AuthorizeApp(user, app, ActionAppUpdate); err != nil {
		return nil, err
	}

	updated := false
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len(name) < 2 || len(name) > 40 {
			return nil, errors.New("name must be between 2 and 40 characters")
		}
		app.Name = name
		updated = true
	}
	if req.Description != nil {
		app.Description = strings.TrimSpace(*req.Description)
		updated = true
	}
	if !updated {
		return nil, ErrNoUpdates
	}

	if err := s.db.Save(app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("failed to update app: %w", err)
	}
	return app, nil
}

// Suspend is the owner-facing delete: the app stops validating and listing
// but its licenses are kept untouched.
func (s *AppService) Suspend(user *models.User, id uuid.UUID) error {
	var app models.Application
	if err := s.db.First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAppNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}
	if err := s.authz.AuthorizeApp(user, &app, ActionAppSuspend); err != nil {
		return err
	}

	app.Status = models.AppStatusSuspended
	if err := s.db.Save(&app).Error; err != nil {
		return fmt.Errorf("failed to suspend app: %w", err)
	}
	return nil
}

// Purge hard-deletes an application together with all of its licenses in one
// transaction. Admin only.
func (s *AppService) Purge(user *models.User, id uuid.UUID) error {
	var app models.Application
	if err := s.db.First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAppNotFound
		}
		return fmt.Errorf("database error: %w", err)
	}
	if err := s.authz.AuthorizeApp(user, &app, ActionAppPurge); err != nil {
		return err
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Where("app_id = ?", app.ID).Delete(&models.License{}).Error; err != nil {
			return fmt.Errorf("failed to delete licenses: %w", err)
		}
		if err := tx.Delete(&app).Error; err != nil {
			return fmt.Errorf("failed to delete app: %w", err)
		}
		return nil
	})
}

// ResetSecret rotates the application's API secret and returns the plaintext
// exactly once. Only the bcrypt hash is stored.
func (s *AppService) ResetSecret(user *models.User, id uuid.UUID) (string, error) {
	app, err := s.loadVisibleApp(id)
	if err != nil {
		return "", err
	}
	if err := s.authz.AuthorizeApp(user, app, ActionAppResetSecret); err != nil {
		return "", err
	}

	plainSecret, err := utils.GenerateAPISecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	hash, err := utils.HashSecret(plainSecret)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}

	app.APISecretHash = hash
	if err := s.db.Save(app).Error; err != nil {
		return "", fmt.Errorf("failed to save secret: %w", err)
	}
	return plainSecret, nil
}

// Reorder persists the caller's display order: sort_order becomes the app's
// position in the submitted id list. Apps not owned by the caller are
// skipped rather than failing the whole batch.
func (s *AppService) Reorder(user *models.User, order []uuid.UUID) error {
	if !s.authz.Can(user.Role, ActionAppReorder) {
		return ErrForbidden
	}

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		for i, appID := range order {
			query := tx.Model(&models.Application{}).Where("id = ?", appID)
			if user.Role != models.UserRoleAdmin {
				query = query.Where("owner_id = ?", user.ID)
			}
			if err := query.Update("sort_order", i).Error; err != nil {
				return fmt.Errorf("failed to update sort order: %w", err)
			}
		}
		return nil
	})
}

// loadVisibleApp treats a suspended app the same as a missing one for every
// non-purge operation.
func (s *AppService) loadVisibleApp(id uuid.UUID) (*models.Application, error) {
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
