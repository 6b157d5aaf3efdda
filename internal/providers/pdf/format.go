package pdf

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatIndian renders an amount with two decimals and lakh/crore digit
// grouping, e.g. 12345678.9 => 1,23,45,678.90.
func FormatIndian(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped string
	if len(whole) <= 3 {
		grouped = whole
	} else {
		head, tail := whole[:len(whole)-3], whole[len(whole)-3:]
		parts := []string{}
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	out := grouped + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// FormatRupees prefixes FormatIndian with "Rs.". The built-in PDF fonts
// have no rupee glyph.
func FormatRupees(amount decimal.Decimal) string {
	return "Rs. " + FormatIndian(amount)
}

// FormatQuantity drops trailing zeros: 2.500 => 2.5.
func FormatQuantity(qty decimal.Decimal, unit string) string {
	out := qty.String()
	if unit != "" {
		out += " " + unit
	}
	return out
}

var (
	ones = []string{"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
		"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	tens = []string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
)

// AmountInWords spells an amount the way Indian invoices print it:
// 1234.50 => "One Thousand Two Hundred Thirty-Four Rupees and Fifty Paise Only".
func AmountInWords(amount decimal.Decimal) string {
	amount = amount.Abs().Round(2)
	rupees := amount.Truncate(0).IntPart()
	paise := amount.Sub(amount.Truncate(0)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	switch {
	case rupees == 0 && paise == 0:
		return "Zero Rupees Only"
	case rupees == 0:
		return numberToWords(paise) + " Paise Only"
	case paise == 0:
		return numberToWords(rupees) + " Rupees Only"
	default:
		return numberToWords(rupees) + " Rupees and " + numberToWords(paise) + " Paise Only"
	}
}

func numberToWords(n int64) string {
	if n == 0 {
		return "Zero"
	}
	parts := []string{}
	if n >= 10000000 {
		parts = append(parts, numberToWords(n/10000000)+" Crore")
		n %= 10000000
	}
	if n >= 100000 {
		parts = append(parts, belowHundred(n/100000)+" Lakh")
		n %= 100000
	}
	if n >= 1000 {
		parts = append(parts, belowHundred(n/1000)+" Thousand")
		n %= 1000
	}
	if n >= 100 {
		parts = append(parts, ones[n/100]+" Hundred")
		n %= 100
	}
	if n > 0 {
		parts = append(parts, belowHundred(n))
	}
	return strings.Join(parts, " ")
}

func belowHundred(n int64) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + "-" + ones[n%10]
}
