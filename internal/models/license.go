// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MaxHwids is the hard ceiling on bound hardware identifiers per license,
// regardless of the configured limit.
const MaxHwids = 5

type License struct {
	BaseModel
	AppID      uuid.UUID      `json:"app_id" gorm:"type:uuid;not null;index:idx_licenses_app_created,sort:desc"`
	Key        string         `json:"key" gorm:"uniqueIndex;size:128;not null"`
	Note       string         `json:"note" gorm:"size:500"`
	Hwids      pq.StringArray `json:"hwids" gorm:"type:text[];default:'{}'"`
	HwidLocked bool           `json:"hwid_locked" gorm:"default:false"`
	HwidLimit  int            `json:"hwid_limit" gorm:"default:1"`
	ExpiryDate *time.Time     `json:"expiry_date"`
	Status     LicenseStatus  `json:"status" gorm:"type:varchar(20);default:'active';index"`

	// Relationships
	App Application `json:"app,omitempty" gorm:"foreignKey:AppID"`
}

// IsExpired reports whether the license expiry instant is strictly in the
// past. A license with no expiry never expires.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiryDate != nil && l.ExpiryDate.Before(now)
}

// HasHwid reports whether the given hardware identifier is already bound.
func (l *License) HasHwid(hwid string) bool {
	for _, h := range l.Hwids {
		if h == hwid {
			return true
		}
	}
	return false
}

// ClampedHwidLimit returns the configured per-license limit forced into
// [1, MaxHwids]. Unset or out-of-range values collapse to 1.
func (l *License) ClampedHwidLimit() int {
	return ClampHwidLimit(l.HwidLimit)
}

// EffectiveHwidLimit is the slot count actually enforced: the configured
// limit when the lock is enabled, otherwise the hard ceiling.
func (l *License) EffectiveHwidLimit() int {
	if l.HwidLocked {
		return l.ClampedHwidLimit()
	}
	return MaxHwids
}

func ClampHwidLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxHwids {
		return MaxHwids
	}
	return limit
}
