package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// PropertyFingerprint computes the deduplication hash of a listing from its
// normalized descriptive attributes. Two listings describing the same unit
// produce the same fingerprint regardless of casing or stray whitespace.
func PropertyFingerprint(address, city, state, propertyType, listingType string, bedrooms, sizeSqm int) string {
	normalized := strings.Join([]string{
		normalizeField(address),
		normalizeField(city),
		normalizeField(state),
		normalizeField(propertyType),
		normalizeField(listingType),
		fmt.Sprintf("%d", bedrooms),
		fmt.Sprintf("%d", sizeSqm),
	}, "|")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// CoordinatesFingerprint buckets a location into roughly 100 m squares by
// rounding coordinates to 3 decimal places before hashing. Listings without
// coordinates share the "no_coordinates" sentinel, which the dedup index
// ignores.
func CoordinatesFingerprint(latitude, longitude *float64) string {
	if latitude == nil || longitude == nil {
		return "no_coordinates"
	}
	normalized := fmt.Sprintf("%.3f|%.3f", roundTo3(*latitude), roundTo3(*longitude))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func roundTo3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
