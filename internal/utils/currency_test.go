package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_KoboToNaira(t *testing.T) {
	tests := []struct {
		kobo          int64
		expectedNaira int64
		expectedCents int64
	}{
		{kobo: 0, expectedNaira: 0, expectedCents: 0},
		{kobo: 1, expectedNaira: 0, expectedCents: 1},
		{kobo: 99, expectedNaira: 0, expectedCents: 99},
		{kobo: 100, expectedNaira: 1, expectedCents: 0},
		{kobo: 10000000, expectedNaira: 100000, expectedCents: 0},
		{kobo: 12345, expectedNaira: 123, expectedCents: 45},
		{kobo: -150, expectedNaira: -1, expectedCents: 50},
	}

	for _, tc := range tests {
		naira, cents := KoboToNaira(tc.kobo)
		assert.Equal(t, tc.expectedNaira, naira, "kobo=%d", tc.kobo)
		assert.Equal(t, tc.expectedCents, cents, "kobo=%d", tc.kobo)
	}
}

func Test_FormatKobo(t *testing.T) {
	assert.Equal(t, "₦0.00", FormatKobo(0))
	assert.Equal(t, "₦123.45", FormatKobo(12345))
	assert.Equal(t, "₦100000.00", FormatKobo(10000000))
	assert.Equal(t, "-₦0.50", FormatKobo(-50))
	assert.Equal(t, "₦-1.50", FormatKobo(-150))
}
