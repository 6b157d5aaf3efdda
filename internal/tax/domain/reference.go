package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// DefaultStateCode is used when company settings carry no state.
const DefaultStateCode = "32"

var allowedRates = []int64{0, 5, 12, 18, 28}

type RateOption struct {
	Value int64  `json:"value"`
	Label string `json:"label"`
}

// RateOptions lists the supported GST slabs in ascending order.
func RateOptions() []RateOption {
	out := make([]RateOption, 0, len(allowedRates))
	for _, r := range allowedRates {
		label := decimal.NewFromInt(r).String() + "%"
		if r == 0 {
			label = "0% (Exempt)"
		}
		out = append(out, RateOption{Value: r, Label: label})
	}
	return out
}

// IsAllowedRate reports whether rate is one of the GST slabs.
func IsAllowedRate(rate decimal.Decimal) bool {
	for _, r := range allowedRates {
		if rate.Equal(decimal.NewFromInt(r)) {
			return true
		}
	}
	return false
}

var units = []string{"NOS", "KGS", "GMS", "LTR", "MTR", "BOX", "PCS", "SET", "PAC", "DOZ"}

// Units returns the common unit quantity codes.
func Units() []string {
	out := make([]string, len(units))
	copy(out, units)
	return out
}

var hsnPattern = regexp.MustCompile(`^[0-9]+$`)

// ValidateHSN accepts an empty code or a 4, 6 or 8 digit HSN/SAC code.
func ValidateHSN(code string) error {
	if code == "" {
		return nil
	}
	if !hsnPattern.MatchString(code) {
		return ErrInvalidHSN
	}
	switch len(code) {
	case 4, 6, 8:
		return nil
	default:
		return ErrInvalidHSN
	}
}
