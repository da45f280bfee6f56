package models

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ScaledAmount is a monetary amount expressed as a signed integer count
// of 10^-scale units. Valid is false when the source cell was blank or
// could not be parsed.
type ScaledAmount struct {
	Units int64
	Valid bool
}

// NewScaledAmount returns a present amount with the given units
func NewScaledAmount(units int64) ScaledAmount {
	return ScaledAmount{Units: units, Valid: true}
}

// AbsentAmount returns the absent amount value
func AbsentAmount() ScaledAmount {
	return ScaledAmount{}
}

// String renders the units as a decimal integer, or empty when absent
func (a ScaledAmount) String() string {
	if !a.Valid {
		return ""
	}
	return decimal.NewFromInt(a.Units).String()
}

// Equal reports whether two amounts are both present with equal units,
// or both absent
func (a ScaledAmount) Equal(b ScaledAmount) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Units == b.Units
}

var (
	maxInt64Dec = decimal.NewFromInt(math.MaxInt64)
	minInt64Dec = decimal.NewFromInt(math.MinInt64)
)

// isDegenerateToken reports whether the cleaned string carries no digits
func isDegenerateToken(s string) bool {
	switch s {
	case "", "-", "+", ".", "-.", "+.":
		return true
	}
	return false
}

// ParseScaledAmount parses a raw amount cell into scaled integer units.
//
// The parser tolerates the common CSV export conventions: currency
// symbols and other stray glyphs, thousands separators in US or
// European style (selected by decimalComma), space and non-breaking
// space grouping, and accounting-style parenthesized negatives.
// A blank cell and an unparseable cell both yield the absent value;
// callers that need to distinguish the two check the raw cell.
func ParseScaledAmount(raw string, scale int, decimalComma bool) ScaledAmount {
	s := strings.TrimSpace(raw)
	if s == "" {
		return AbsentAmount()
	}

	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	if decimalComma {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}

	var b strings.Builder
	for _, c := range s {
		if (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+' {
			b.WriteRune(c)
		}
	}
	s = b.String()

	if isDegenerateToken(s) {
		return AbsentAmount()
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return AbsentAmount()
	}
	if negative {
		d = d.Neg()
	}

	// Round rounds halves away from zero, matching accounting convention
	scaled := d.Shift(int32(scale)).Round(0)
	if scaled.GreaterThan(maxInt64Dec) || scaled.LessThan(minInt64Dec) {
		return AbsentAmount()
	}

	return NewScaledAmount(scaled.IntPart())
}
