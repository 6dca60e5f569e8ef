// internal/services/authorization_service.go
package services

import (
	"errors"

	"github.com/keymint/keymint-backend/internal/models"
)

// Action names every operation the API exposes on apps and licenses. All
// role checks go through AuthorizationService so the grant matrix lives in
// exactly one place.
type Action string

const (
	ActionAppCreate      Action = "app.create"
	ActionAppList        Action = "app.list"
	ActionAppUpdate      Action = "app.update"
	ActionAppSuspend     Action = "app.suspend"
	ActionAppPurge       Action = "app.purge"
	ActionAppResetSecret Action = "app.reset_secret"
	ActionAppReorder     Action = "app.reorder"

	ActionLicenseCreate Action = "license.create"
	ActionLicenseList   Action = "license.list"
	ActionLicenseUpdate Action = "license.update"
	ActionLicenseDelete Action = "license.delete"
	ActionLicenseExport Action = "license.export"
)

var ErrForbidden = errors.New("insufficient permissions")

type AuthorizationService struct {
	grants map[models.UserRole]map[Action]bool
}

func NewAuthorizationService() *AuthorizationService {
	developer := map[Action]bool{
		ActionAppCreate:      true,
		ActionAppList:        true,
		ActionAppUpdate:      true,
		ActionAppSuspend:     true,
		ActionAppResetSecret: true,
		ActionAppReorder:     true,
		ActionLicenseCreate:  true,
		ActionLicenseList:    true,
		ActionLicenseUpdate:  true,
		ActionLicenseDelete:  true,
		ActionLicenseExport:  true,
	}

	// Redistributors get read access only.
	redistributor := map[Action]bool{
		ActionAppList:     true,
		ActionLicenseList: true,
	}

	admin := map[Action]bool{ActionAppPurge: true}
	for action := range developer {
		admin[action] = true
	}

	return &AuthorizationService{
		grants: map[models.UserRole]map[Action]bool{
			models.UserRoleDeveloper:     developer,
			models.UserRoleRedistributor: redistributor,
			models.UserRoleAdmin:         admin,
		},
	}
}

// Can reports whether the role is granted the action at all, ignoring
// ownership.
func (s *AuthorizationService) Can(role models.UserRole, action Action) bool {
	return s.grants[role][action]
}

// AuthorizeApp decides whether a user may perform an action against a
// specific application. Admins bypass the ownership check; redistributors
// may read any app but mutate none.
func (s *AuthorizationService) AuthorizeApp(user *models.User, app *models.Application, action Action) error {
	if !s.Can(user.Role, action) {
		return ErrForbidden
	}
	if user.Role == models.UserRoleAdmin || user.Role == models.UserRoleRedistributor {
		return nil
	}
	if app.OwnerID != user.ID {
		return ErrForbidden
	}
	return nil
}
