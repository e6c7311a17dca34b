// Package fixedpoint implements integer arithmetic on values scaled by 10^18.
//
// Leveraged-token amounts and exchange rates carry 18 decimals, base-asset
// amounts carry 6. Every division truncates toward zero.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	// Decimals is the number of decimals of the fixed-point scale
	Decimals = 18
	// BaseDecimals is the number of decimals of the base asset (USDC)
	BaseDecimals = 6
)

var (
	// ErrDivisionByZero is returned when the divisor of Div is zero
	ErrDivisionByZero = errors.New("division by zero")

	// ErrInvalidNumber is returned when a decimal string cannot be parsed
	ErrInvalidNumber = errors.New("invalid number")
)

// Scale returns a fresh copy of 10^18
func Scale() *big.Int {
	return Pow10(Decimals)
}

// Pow10 returns 10^n
func Pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Mul returns a*b/10^18
func Mul(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Quo(r, Scale())
}

// Div returns a*10^18/b
func Div(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	r := new(big.Int).Mul(a, Scale())
	return r.Quo(r, b), nil
}

// ConvertDecimals rescales v from one decimal precision to another
func ConvertDecimals(v *big.Int, from, to int) *big.Int {
	diff := to - from
	switch {
	case diff == 0:
		return new(big.Int).Set(v)
	case diff > 0:
		return new(big.Int).Mul(v, Pow10(diff))
	default:
		return new(big.Int).Quo(v, Pow10(-diff))
	}
}

// ParseUnits converts a human-readable decimal string into an integer scaled
// by 10^decimals. Commas are ignored, a leading minus sign is honoured and an
// exponent suffix ("1.5e3") shifts the decimal point. Extra fractional digits
// are truncated.
func ParseUnits(value string, decimals int) (*big.Int, error) {
	if value == "" || value == "." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, value)
	}
	s := strings.ReplaceAll(value, ",", "")

	sign := 1
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}

	num, power, hasPower := strings.Cut(strings.ToLower(s), "e")
	if hasPower && power != "" {
		exp, err := strconv.Atoi(power)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, value)
		}
		decimals += exp
	}
	if num == "" {
		return new(big.Int), nil
	}

	whole, fraction, _ := strings.Cut(num, ".")
	if whole == "" {
		whole = "0"
	}
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok || strings.ContainsAny(whole, "+-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, value)
	}

	if decimals < 0 {
		w.Quo(w, Pow10(-decimals))
		if sign < 0 {
			w.Neg(w)
		}
		return w, nil
	}

	if fraction == "" {
		fraction = "0"
	}
	if len(fraction) < decimals {
		fraction += strings.Repeat("0", decimals-len(fraction))
	} else if len(fraction) > decimals {
		fraction = fraction[:decimals]
		if fraction == "" {
			fraction = "0"
		}
	}
	f, ok := new(big.Int).SetString(fraction, 10)
	if !ok || strings.ContainsAny(fraction, "+-") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, value)
	}

	w.Mul(w, Pow10(decimals))
	w.Add(w, f)
	if sign < 0 {
		w.Neg(w)
	}
	return w, nil
}

// MustParseUnits is like ParseUnits but panics on malformed input.
// Intended for constants and tests.
func MustParseUnits(value string, decimals int) *big.Int {
	v, err := ParseUnits(value, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatUnits renders v, scaled by 10^decimals, as an exact decimal string
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	if decimals <= 0 {
		return new(big.Int).Mul(v, Pow10(-decimals)).String()
	}

	abs := new(big.Int).Abs(v)
	whole, frac := new(big.Int).QuoRem(abs, Pow10(decimals), new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		fs := frac.String()
		fs = strings.Repeat("0", decimals-len(fs)) + fs
		out += "." + strings.TrimRight(fs, "0")
	}
	if v.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// ToFloat64 converts a scaled integer to a float64. Only suitable for
// display of ratios and percentages.
func ToFloat64(v *big.Int, decimals int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), new(big.Float).SetInt(Pow10(decimals))).Float64()
	return f
}

// ParseInt parses a base-10 integer string, as stored in numeric(78,0)
// columns. An empty string is treated as zero.
func ParseInt(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return v, nil
}

// MustParseInt is like ParseInt but panics on malformed input
func MustParseInt(s string) *big.Int {
	v, err := ParseInt(s)
	if err != nil {
		panic(err)
	}
	return v
}
