package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_PropertyFingerprint(t *testing.T) {
	base := PropertyFingerprint("12 Palm Street, Ikeja", "Ikeja", "Lagos", "apartment", "rent", 3, 120)

	t.Run("is deterministic", func(t *testing.T) {
		again := PropertyFingerprint("12 Palm Street, Ikeja", "Ikeja", "Lagos", "apartment", "rent", 3, 120)
		assert.Equal(t, base, again)
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		normalized := PropertyFingerprint("  12 PALM Street,   Ikeja ", "IKEJA", "lagos", "Apartment", "RENT", 3, 120)
		assert.Equal(t, base, normalized)
	})

	t.Run("changes with descriptive attributes", func(t *testing.T) {
		assert.NotEqual(t, base, PropertyFingerprint("12 Palm Street, Ikeja", "Ikeja", "Lagos", "apartment", "rent", 4, 120))
		assert.NotEqual(t, base, PropertyFingerprint("12 Palm Street, Ikeja", "Ikeja", "Lagos", "apartment", "sale", 3, 120))
		assert.NotEqual(t, base, PropertyFingerprint("14 Palm Street, Ikeja", "Ikeja", "Lagos", "apartment", "rent", 3, 120))
	})
}

func Test_CoordinatesFingerprint(t *testing.T) {
	lat, lng := 6.6018, 3.3515

	t.Run("sentinel when coordinates are absent", func(t *testing.T) {
		assert.Equal(t, "no_coordinates", CoordinatesFingerprint(nil, nil))
		assert.Equal(t, "no_coordinates", CoordinatesFingerprint(&lat, nil))
		assert.Equal(t, "no_coordinates", CoordinatesFingerprint(nil, &lng))
	})

	t.Run("same bucket within 3 decimals", func(t *testing.T) {
		nearLat, nearLng := 6.60181, 3.35149
		assert.Equal(t, CoordinatesFingerprint(&lat, &lng), CoordinatesFingerprint(&nearLat, &nearLng))
	})

	t.Run("different bucket beyond 3 decimals", func(t *testing.T) {
		farLat, farLng := 6.6030, 3.3515
		assert.NotEqual(t, CoordinatesFingerprint(&lat, &lng), CoordinatesFingerprint(&farLat, &farLng))
	})
}

func Test_HashService_passwords(t *testing.T) {
	hashService := HashService{}

	encoded, err := hashService.HashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$")

	ok, err := hashService.VerifyPassword("correct horse battery staple", encoded)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = hashService.VerifyPassword("wrong password", encoded)
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = hashService.VerifyPassword("anything", "not-an-encoded-hash")
	assert.Error(t, err)
}
