package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const DefaultMinDigits = 4

var prefixPattern = regexp.MustCompile(`^[A-Z0-9-]{1,10}$`)

// NormalizePrefix upper-cases and validates a series prefix.
func NormalizePrefix(prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixPattern.MatchString(prefix) {
		return "", ErrInvalidPrefix
	}
	return prefix, nil
}

// SeriesStem is the part of a number shared by every document in a series,
// "INV/2024-25/".
func SeriesStem(prefix, fiscalYear string) string {
	return prefix + "/" + fiscalYear + "/"
}

// FormatNumber renders PREFIX/FY/NNNN. The suffix is zero padded to
// minDigits and grows past it when needed.
func FormatNumber(prefix, fiscalYear string, seq int64, minDigits int) string {
	if minDigits <= 0 {
		minDigits = DefaultMinDigits
	}
	return fmt.Sprintf("%s%0*d", SeriesStem(prefix, fiscalYear), minDigits, seq)
}

// ParseSuffix extracts the numeric suffix of a number issued in the series.
// ok is false for numbers outside the series or with a non-numeric suffix.
func ParseSuffix(number, prefix, fiscalYear string) (int64, bool) {
	stem := SeriesStem(prefix, fiscalYear)
	if !strings.HasPrefix(number, stem) {
		return 0, false
	}
	raw := strings.TrimPrefix(number, stem)
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
