// internal/models/application.go
package models

import (
	"github.com/google/uuid"
)

// Application groups licenses under a single tenant-owned unit and carries
// the hashed API secret used for server-to-server validation calls. The
// plaintext secret exists only in the reset-secret response.
type Application struct {
	BaseModel
	OwnerID       uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_applications_owner_name;index"`
	Name          string    `json:"name" gorm:"size:40;not null;uniqueIndex:idx_applications_owner_name"`
	Description   string    `json:"description" gorm:"size:500"`
	APISecretHash string    `json:"-" gorm:"size:255"`
	Status        AppStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	SortOrder     int       `json:"sort_order" gorm:"default:0"`

	// Relationships
	Owner    User      `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Licenses []License `json:"licenses,omitempty" gorm:"foreignKey:AppID"`
}

func (a *Application) IsSuspended() bool {
	return a.Status == AppStatusSuspended
}
