package convert

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/decimal128"
)

var errNotDecimal = errors.New("not a decimal number")

// ParseDecimal parses s exactly as a fixed-point decimal with the given
// precision (total digits) and scale (fraction digits). Surrounding spaces
// and a leading sign are accepted. Fraction digits beyond scale are accepted
// only when they are zeros; nothing is ever rounded.
func ParseDecimal(s string, precision, scale int32) (decimal128.Num, error) {
	v := strings.TrimSpace(s)
	neg := false
	switch {
	case strings.HasPrefix(v, "-"):
		neg = true
		v = v[1:]
	case strings.HasPrefix(v, "+"):
		v = v[1:]
	}

	intPart, fracPart, _ := strings.Cut(v, ".")
	if intPart == "" && fracPart == "" {
		return decimal128.Num{}, errNotDecimal
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return decimal128.Num{}, errNotDecimal
	}

	if int32(len(fracPart)) > scale {
		excess := fracPart[scale:]
		if strings.Trim(excess, "0") != "" {
			return decimal128.Num{}, fmt.Errorf("more than %d fraction digits", scale)
		}
		fracPart = fracPart[:scale]
	}
	fracPart += strings.Repeat("0", int(scale)-len(fracPart))

	intPart = strings.TrimLeft(intPart, "0")
	if int32(len(intPart)) > precision-scale {
		return decimal128.Num{}, fmt.Errorf("exceeds %d integer digits", precision-scale)
	}

	digits := intPart + fracPart
	if digits == "" {
		return decimal128.Num{}, nil
	}
	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return decimal128.Num{}, errNotDecimal
	}
	if neg {
		n.Neg(n)
	}
	return decimal128.FromBigInt(n), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
