// internal/utils/keygen_test.go
package utils

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keymint/keymint-backend/internal/models"
)

func TestGenerateLicenseKeyMask(t *testing.T) {
	key, err := GenerateLicenseKey("***_***", "ABC")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[ABC]{3}-[ABC]{3}$`), key)
}

func TestGenerateLicenseKeyLiteralsPassThrough(t *testing.T) {
	key, err := GenerateLicenseKey("KEY_**", "Z")
	require.NoError(t, err)
	assert.Equal(t, "KEY-ZZ", key)
}

func TestGenerateLicenseKeyNoRandomSlots(t *testing.T) {
	// A mask with no '*' never touches the charset, empty charset included.
	key, err := GenerateLicenseKey("FIXED_KEY", "")
	require.NoError(t, err)
	assert.Equal(t, "FIXED-KEY", key)
}

func TestGenerateLicenseKeyEmptyCharset(t *testing.T) {
	_, err := GenerateLicenseKey("****", "")
	assert.ErrorIs(t, err, ErrEmptyCharset)
}

func TestGenerateLicenseKeyCharsetMembership(t *testing.T) {
	const charset = "0123456789ABCDEF"
	for i := 0; i < 50; i++ {
		key, err := GenerateLicenseKey("********", charset)
		require.NoError(t, err)
		require.Len(t, key, 8)
		for _, ch := range key {
			assert.True(t, strings.ContainsRune(charset, ch), "unexpected character %q", ch)
		}
	}
}

func TestGenerateLicenseKeyUnicodeCharset(t *testing.T) {
	key, err := GenerateLicenseKey("**", "日本語")
	require.NoError(t, err)
	assert.Len(t, []rune(key), 2)
	for _, ch := range key {
		assert.True(t, strings.ContainsRune("日本語", ch))
	}
}

func TestCalculateExpiry(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		unit     models.ExpiryUnit
		duration int
		want     *time.Time
	}{
		{"days", models.ExpiryUnitDays, 30, timePtr(now.AddDate(0, 0, 30))},
		{"weeks", models.ExpiryUnitWeeks, 2, timePtr(now.AddDate(0, 0, 14))},
		{"months", models.ExpiryUnitMonths, 6, timePtr(now.AddDate(0, 6, 0))},
		{"zero duration", models.ExpiryUnitDays, 0, nil},
		{"negative duration", models.ExpiryUnitMonths, -1, nil},
		{"unknown unit", models.ExpiryUnit("years"), 1, nil},
		{"empty unit", models.ExpiryUnit(""), 7, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateExpiry(tt.unit, tt.duration, now)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(*tt.want))
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
