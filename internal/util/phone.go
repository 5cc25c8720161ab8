package util

import "regexp"

var (
	nonDigits  = regexp.MustCompile(`\D+`)
	phoneChars = regexp.MustCompile(`^[\d\s\-\+\(\)]+$`)
)

// PhoneDigits strips everything except 0-9 from raw.
func PhoneDigits(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// PhoneCharsAllowed reports whether raw is made only of digits, spaces,
// '+', '-', '(' and ')'.
func PhoneCharsAllowed(raw string) bool {
	return phoneChars.MatchString(raw)
}
