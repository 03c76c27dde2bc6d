package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)

// SanitizeString trims whitespace and removes control characters
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// SanitizePtr sanitizes an optional string, turning blank values into nil
func SanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := SanitizeString(*s)
	if v == "" {
		return nil
	}
	return &v
}

// ValidateCoordinates checks latitude and longitude ranges
func ValidateCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude must be between -90 and 90: %f", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude must be between -180 and 180: %f", lng)
	}
	return nil
}

// NormalizePrefixedID ensures an integration identifier carries prefix.
// "4711" becomes "DS-4711"; "ds-4711" is upper-cased to "DS-4711".
// A blank id or the bare prefix yields "".
func NormalizePrefixedID(prefix, id string) string {
	id = SanitizeString(id)
	if len(id) >= len(prefix) && strings.EqualFold(id[:len(prefix)], prefix) {
		id = strings.TrimSpace(id[len(prefix):])
	}
	if id == "" {
		return ""
	}
	return prefix + id
}
