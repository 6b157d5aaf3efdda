package domain

import (
	"regexp"
	"strings"
)

const gstinCharset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][A-Z0-9]Z[A-Z0-9]$`)

// NormalizeGSTIN trims and upper-cases a GSTIN.
func NormalizeGSTIN(gstin string) string {
	return strings.ToUpper(strings.TrimSpace(gstin))
}

// ValidateGSTIN checks format, state code and the mod-36 check digit. An
// empty GSTIN is valid for unregistered (B2C) buyers.
func ValidateGSTIN(gstin string) error {
	gstin = NormalizeGSTIN(gstin)
	if gstin == "" {
		return nil
	}
	if len(gstin) != 15 || !gstinPattern.MatchString(gstin) {
		return ErrInvalidGSTIN
	}
	if !IsValidStateCode(gstin[:2]) {
		return ErrInvalidGSTIN
	}
	if gstinCheckDigit(gstin[:14]) != gstin[14] {
		return ErrInvalidGSTIN
	}
	return nil
}

// StateCodeFromGSTIN returns the leading state code of a valid GSTIN.
func StateCodeFromGSTIN(gstin string) (string, error) {
	gstin = NormalizeGSTIN(gstin)
	if gstin == "" {
		return "", ErrInvalidGSTIN
	}
	if err := ValidateGSTIN(gstin); err != nil {
		return "", err
	}
	return gstin[:2], nil
}

func gstinCheckDigit(body string) byte {
	sum := 0
	for i := 0; i < len(body); i++ {
		value := strings.IndexByte(gstinCharset, body[i])
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		product := value * factor
		sum += product/36 + product%36
	}
	return gstinCharset[(36-sum%36)%36]
}
