package domain

import (
	"fmt"
	"time"
)

// FiscalYearStart returns the calendar year in which the fiscal year
// containing t begins. t is evaluated in loc.
func FiscalYearStart(t time.Time, startMonth int, loc *time.Location) (int, error) {
	if startMonth < 1 || startMonth > 12 {
		return 0, ErrInvalidFiscalYearStart
	}
	if loc != nil {
		t = t.In(loc)
	}
	if int(t.Month()) >= startMonth {
		return t.Year(), nil
	}
	return t.Year() - 1, nil
}

// FiscalYearLabel formats a fiscal year as "2024-25".
func FiscalYearLabel(start int) string {
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// FiscalYearFor is FiscalYearStart followed by FiscalYearLabel.
func FiscalYearFor(t time.Time, startMonth int, loc *time.Location) (string, error) {
	start, err := FiscalYearStart(t, startMonth, loc)
	if err != nil {
		return "", err
	}
	return FiscalYearLabel(start), nil
}
