package domain

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ukPostcode accepts outward and inward codes with an optional single space.
var ukPostcode = regexp.MustCompile(`^[A-Z]{1,2}[0-9]{1,2}[A-Z]?\s?[0-9][A-Z]{2}$`)

// NormalizePostcode folds compatibility characters, trims and upper-cases a
// postcode. Matching between users and books is exact on this form.
func NormalizePostcode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(raw)))
}

// IsUKPostcode reports whether raw looks like a UK postcode once normalized.
func IsUKPostcode(raw string) bool {
	return ukPostcode.MatchString(NormalizePostcode(raw))
}
