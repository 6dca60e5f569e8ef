// internal/utils/keygen.go
package utils

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/keymint/keymint-backend/internal/models"
)

// KeySeparator replaces '_' positions in a key mask.
const KeySeparator = '-'

var ErrEmptyCharset = errors.New("charset must not be empty when mask contains random slots")

// GenerateLicenseKey renders one license key from a mask template. Each '*'
// becomes a character drawn uniformly from charset, '_' becomes the
// separator, anything else is copied through. Keys are credentials, so the
// random source is crypto/rand.
func GenerateLicenseKey(mask, charset string) (string, error) {
	chars := []rune(charset)

	var key strings.Builder
	key.Grow(len(mask))
	for _, ch := range mask {
		switch ch {
		case '*':
			if len(chars) == 0 {
				return "", ErrEmptyCharset
			}
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
			if err != nil {
				return "", err
			}
			key.WriteRune(chars[n.Int64()])
		case '_':
			key.WriteByte(KeySeparator)
		default:
			key.WriteRune(ch)
		}
	}

	return key.String(), nil
}

// CalculateExpiry converts a unit/duration pair into an absolute expiry
// instant relative to now. An unknown unit or non-positive duration means
// "never expires" and yields nil, not an error; that matches batch-creation
// semantics where omitting the pair disables expiry.
func CalculateExpiry(unit models.ExpiryUnit, duration int, now time.Time) *time.Time {
	if duration <= 0 {
		return nil
	}

	var expiry time.Time
	switch unit {
	case models.ExpiryUnitDays:
		expiry = now.AddDate(0, 0, duration)
	case models.ExpiryUnitWeeks:
		expiry = now.AddDate(0, 0, duration*7)
	case models.ExpiryUnitMonths:
		expiry = now.AddDate(0, duration, 0)
	default:
		return nil
	}
	return &expiry
}
