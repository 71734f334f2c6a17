package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

var persianDigits = strings.NewReplacer(
	"0", "۰", "1", "۱", "2", "۲", "3", "۳", "4", "۴",
	"5", "۵", "6", "۶", "7", "۷", "8", "۸", "9", "۹",
)

func ToPersianDigits(s string) string {
	return persianDigits.Replace(s)
}

// FormatNumber renders a price for display. USD keeps cents, or more precision for
// sub-dollar assets; toman and everything else is shown as an integer.
func FormatNumber(value float64, unit string, digits string) string {
	d := decimal.NewFromFloat(value)
	var out string
	switch unit {
	case "usd":
		out = "$" + groupThousands(d.StringFixed(usdDecimals(d)))
	default:
		out = groupThousands(d.StringFixed(0))
	}
	if digits == "fa" {
		out = ToPersianDigits(out)
	}
	return out
}

func usdDecimals(d decimal.Decimal) int32 {
	a := d.Abs()
	switch {
	case a.IsZero() || a.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return 2
	case a.GreaterThanOrEqual(decimal.New(1, -2)):
		return 4
	default:
		return 6
	}
}

// FormatPercent renders a signed percentage such as "+2.50%".
func FormatPercent(v float64, digits string) string {
	d := decimal.NewFromFloat(v).Round(2)
	out := d.StringFixed(2) + "%"
	if d.IsPositive() {
		out = "+" + out
	}
	if digits == "fa" {
		out = ToPersianDigits(out)
	}
	return out
}

// groupThousands inserts commas into the integer part of a plain decimal string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.Grow(len(s) + len(intPart)/3 + 1)
	b.WriteString(sign)
	head := len(intPart) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(intPart[:min(head, len(intPart))])
	for i := head; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
