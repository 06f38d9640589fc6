package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrStationEmpty is returned when a station identifier is empty or whitespace-only after trim.
var ErrStationEmpty = errors.New("station identifier is required")

// ErrStationInvalid is returned when a station identifier has the wrong shape.
var ErrStationInvalid = errors.New("station identifier must be 3-4 letters or digits")

// ErrLatitudeOutOfRange is returned when latitude falls outside [-90, 90].
var ErrLatitudeOutOfRange = errors.New("latitude must be between -90 and 90")

// ErrLongitudeOutOfRange is returned when longitude falls outside [-180, 180].
var ErrLongitudeOutOfRange = errors.New("longitude must be between -180 and 180")

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooShort is returned when location length is below the minimum.
var ErrLocationTooShort = errors.New("location too short")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ErrLocationInvalidChars is returned when location contains disallowed characters.
var ErrLocationInvalidChars = errors.New("location contains invalid characters")

// ValidateStation trims and uppercases a station identifier and checks
// its shape: 3 or 4 ASCII letters or digits (ICAO and US contraction
// forms). Returns the normalized identifier or an error suitable for
// 400 INVALID_STATION responses.
func ValidateStation(input string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return "", ErrStationEmpty
	}
	if len(s) < 3 || len(s) > 4 {
		return "", ErrStationInvalid
	}
	for _, c := range s {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", ErrStationInvalid
		}
	}
	return s, nil
}

// ValidateStations validates a comma-separated station list, returning
// the normalized identifiers. Empty segments are rejected rather than
// skipped so typos like "KSFO,,KBOS" surface to the caller.
func ValidateStations(input string) ([]string, error) {
	parts := strings.Split(input, ",")
	stations := make([]string, 0, len(parts))
	for _, part := range parts {
		s, err := ValidateStation(part)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, nil
}

// ValidateCoordinates checks latitude and longitude bounds.
func ValidateCoordinates(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return ErrLatitudeOutOfRange
	}
	if longitude < -180 || longitude > 180 {
		return ErrLongitudeOutOfRange
	}
	return nil
}

// ValidateLocation trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to allowed characters: letters (Unicode), digits, space, comma, hyphen.
// Returns the trimmed string or an error suitable for 400 INVALID_LOCATION responses.
// Normalization (e.g. lowercase) is left to the service layer.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedLocationRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

// isAllowedLocationRune returns true for letters (Unicode), digits, space, comma, hyphen.
func isAllowedLocationRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-':
		return true
	}
	return false
}
