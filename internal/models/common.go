// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Base model with common fields. Deletes are hard deletes everywhere in this
// schema, so there is no DeletedAt column.
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserRole string

const (
	UserRoleDeveloper     UserRole = "developer"
	UserRoleRedistributor UserRole = "redistributor"
	UserRoleAdmin         UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type AppStatus string

const (
	AppStatusActive    AppStatus = "active"
	AppStatusPaused    AppStatus = "paused"
	AppStatusSuspended AppStatus = "suspended"
)

type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusRevoked   LicenseStatus = "revoked"
	LicenseStatusSuspended LicenseStatus = "suspended"
)

type ExpiryUnit string

const (
	ExpiryUnitDays   ExpiryUnit = "Days"
	ExpiryUnitWeeks  ExpiryUnit = "Weeks"
	ExpiryUnitMonths ExpiryUnit = "Months"
)
