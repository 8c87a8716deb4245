package models

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Numbers are carried as exact decimal text end to end; nothing in the
// engine ever converts one to a binary float except the sort-key shadow
// column, which is only used for ordering. Arithmetic and comparison run on
// a (coefficient, scale) pair so "0.1 + 0.2" is exactly "0.3".

type decimal struct {
	coef  *big.Int // signed coefficient
	scale int      // digits after the decimal point, >= 0 once normalized
}

var pow10cache = map[int]*big.Int{}

func pow10(n int) *big.Int {
	if p, ok := pow10cache[n]; ok {
		return p
	}
	p := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	if n <= 64 {
		pow10cache[n] = p
	}
	return p
}

// parseDecimal accepts the service's number syntax: optional sign, digits
// with an optional fraction, and an optional e/E exponent.
func parseDecimal(s string) (decimal, error) {
	in := strings.TrimSpace(s)
	if in == "" {
		return decimal{}, fmt.Errorf("empty number")
	}
	mant := in
	exp := 0
	if i := strings.IndexAny(in, "eE"); i >= 0 {
		e, err := strconv.Atoi(in[i+1:])
		if err != nil {
			return decimal{}, fmt.Errorf("invalid number %q", s)
		}
		exp = e
		mant = in[:i]
	}
	neg := false
	switch {
	case strings.HasPrefix(mant, "-"):
		neg = true
		mant = mant[1:]
	case strings.HasPrefix(mant, "+"):
		mant = mant[1:]
	}
	intPart := mant
	fracPart := ""
	if i := strings.IndexByte(mant, '.'); i >= 0 {
		intPart = mant[:i]
		fracPart = mant[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return decimal{}, fmt.Errorf("invalid number %q", s)
	}
	digits := intPart + fracPart
	for _, r := range digits {
		if r < '0' || r > '9' {
			return decimal{}, fmt.Errorf("invalid number %q", s)
		}
	}
	coef, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return decimal{}, fmt.Errorf("invalid number %q", s)
	}
	if neg {
		coef.Neg(coef)
	}
	d := decimal{coef: coef, scale: len(fracPart) - exp}
	return d.normalize(), nil
}

func (d decimal) normalize() decimal {
	if d.coef.Sign() == 0 {
		return decimal{coef: big.NewInt(0), scale: 0}
	}
	// A negative scale means trailing zeros; fold them into the coefficient
	// so the text form is plain decimal.
	if d.scale < 0 {
		d.coef = new(big.Int).Mul(d.coef, pow10(-d.scale))
		d.scale = 0
	}
	ten := big.NewInt(10)
	rem := new(big.Int)
	for d.scale > 0 {
		q, r := new(big.Int).QuoRem(d.coef, ten, rem)
		if r.Sign() != 0 {
			break
		}
		d.coef = q
		d.scale--
	}
	return d
}

func (d decimal) text() string {
	neg := d.coef.Sign() < 0
	digits := new(big.Int).Abs(d.coef).String()
	var out string
	if d.scale == 0 {
		out = digits
	} else {
		for len(digits) <= d.scale {
			digits = "0" + digits
		}
		out = digits[:len(digits)-d.scale] + "." + digits[len(digits)-d.scale:]
	}
	if neg {
		out = "-" + out
	}
	return out
}

// align brings two decimals to a common scale for compare/add.
func align(a, b decimal) (x, y *big.Int, scale int) {
	scale = a.scale
	if b.scale > scale {
		scale = b.scale
	}
	x = new(big.Int).Mul(a.coef, pow10(scale-a.scale))
	y = new(big.Int).Mul(b.coef, pow10(scale-b.scale))
	return x, y, scale
}

// NormalizeNumber canonicalizes decimal text: no sign on zero, no exponent,
// no redundant zeros. The result is a deterministic function of the numeric
// value, which the canonical key strings rely on.
func NormalizeNumber(s string) (string, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return "", err
	}
	return d.text(), nil
}

// ValidNumber reports whether s parses as a number.
func ValidNumber(s string) bool {
	_, err := parseDecimal(s)
	return err == nil
}

// CompareNumbers compares two decimal texts exactly, returning -1, 0 or 1.
func CompareNumbers(a, b string) (int, error) {
	da, err := parseDecimal(a)
	if err != nil {
		return 0, err
	}
	db, err := parseDecimal(b)
	if err != nil {
		return 0, err
	}
	x, y, _ := align(da, db)
	return x.Cmp(y), nil
}

// AddNumbers returns a+b as canonical decimal text.
func AddNumbers(a, b string) (string, error) {
	return addSub(a, b, false)
}

// SubtractNumbers returns a-b as canonical decimal text.
func SubtractNumbers(a, b string) (string, error) {
	return addSub(a, b, true)
}

func addSub(a, b string, sub bool) (string, error) {
	da, err := parseDecimal(a)
	if err != nil {
		return "", err
	}
	db, err := parseDecimal(b)
	if err != nil {
		return "", err
	}
	x, y, scale := align(da, db)
	var coef *big.Int
	if sub {
		coef = new(big.Int).Sub(x, y)
	} else {
		coef = new(big.Int).Add(x, y)
	}
	return decimal{coef: coef, scale: scale}.normalize().text(), nil
}

// NumberToFloat converts decimal text to a float64 for the numeric shadow
// column. Ordering through the shadow is exact for anything within float64
// precision; payloads are never touched by this.
func NumberToFloat(s string) (float64, error) {
	norm, err := NormalizeNumber(s)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(norm, 64)
}
