// internal/services/errors.go
package services

import "errors"

// Sentinel errors shared by the service layer. Handlers map these onto the
// response envelope with errors.Is.
var (
	ErrAppNotFound     = errors.New("app not found")
	ErrLicenseNotFound = errors.New("license not found")
	ErrDuplicateName   = errors.New("an app with this name already exists")
	ErrDuplicateKey    = errors.New("generated license key already exists")
	ErrNoUpdates       = errors.New("no updates provided")

	ErrBatchLimitExceeded = errors.New("maximum 50 licenses per batch")
	ErrInvalidHwidLimit   = errors.New("hwid limit must be between 1 and 5")
	ErrInvalidHwidIndex   = errors.New("invalid hwid index")
	ErrInvalidExpiryDate  = errors.New("invalid expiry date")
	ErrNoteTooLong        = errors.New("note too long (max 500 characters)")

	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrSecretNotConfigured = errors.New("api secret not configured for this app")
)
