package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Decimal is a fixed-scale decimal value backed by a scaled big.Int.
// Money and quantity fields use this small type rather than float64,
// which cannot represent the exact declared scales needed: 18,2 for
// money, 18,4 for quantity, 5,2 for rates.
type Decimal struct {
	unscaled *big.Int
	scale    int32
}

// NewDecimal builds a Decimal from an unscaled integer and a scale, e.g.
// NewDecimal(1050, 2) == 10.50.
func NewDecimal(unscaled int64, scale int32) Decimal {
	return Decimal{unscaled: big.NewInt(unscaled), scale: scale}
}

// ParseDecimal parses a base-10 string like "10.50" into a Decimal with
// the given scale, padding or rounding (via truncation) as needed.
func ParseDecimal(s string, scale int32) (Decimal, error) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if int32(len(frac)) > scale {
		frac = frac[:scale]
	} else if hasFrac || frac != "" {
		frac = frac + strings.Repeat("0", int(scale)-len(frac))
	} else {
		frac = strings.Repeat("0", int(scale))
	}
	digits := whole + frac
	unscaled, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal{}, fmt.Errorf("invalid decimal literal: %q", s)
	}
	if neg {
		unscaled.Neg(unscaled)
	}
	return Decimal{unscaled: unscaled, scale: scale}, nil
}

// ParseDecimalAuto parses a base-10 string, inferring scale from the
// number of digits after the decimal point. Used when reading NUMERIC
// columns back from storage, where the column does not fix a single
// scale for every field.
func ParseDecimalAuto(s string) (Decimal, error) {
	trimmed := strings.TrimSpace(s)
	_, frac, hasFrac := strings.Cut(trimmed, ".")
	scale := int32(0)
	if hasFrac {
		scale = int32(len(frac))
	}
	return ParseDecimal(trimmed, scale)
}

// Scale returns the number of digits after the decimal point.
func (d Decimal) Scale() int32 { return d.scale }

// IsZero reports whether the value is exactly zero.
func (d Decimal) IsZero() bool {
	return d.unscaled == nil || d.unscaled.Sign() == 0
}

// String renders the value at its declared fixed scale, e.g. "10.50".
func (d Decimal) String() string {
	if d.unscaled == nil {
		return NewDecimal(0, d.scale).String()
	}
	neg := d.unscaled.Sign() < 0
	abs := new(big.Int).Abs(d.unscaled)
	digits := abs.String()
	for int32(len(digits)) <= d.scale {
		digits = "0" + digits
	}
	cut := len(digits) - int(d.scale)
	whole, frac := digits[:cut], digits[cut:]
	out := whole
	if d.scale > 0 {
		out = whole + "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
