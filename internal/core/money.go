// Package core provides money parsing and handling utilities.
//
// This file contains the Amount type used for every currency value that
// crosses the backend boundary, plus cent rounding helpers.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a currency value as sent by the backend.
//
// The backend is inconsistent about encoding decimals: the same field may
// arrive as "12.30", 12.3 or null. Amount accepts all of them so that
// arithmetic never sees a string.
type Amount float64

var ErrInvalidAmount = errors.New("invalid amount")

// Round2 rounds to cents, half away from zero.
//
// Examples:
//
//	Round2(123.456) -> 123.46
//	Round2(0.1+0.2) -> 0.3
//	Round2(-1.005)  -> -1 (binary representation of 1.005 is below the half)
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ParseAmount parses a decimal string such as "1234.50".
//
// Empty input is zero. Thousand separators are not accepted; the backend
// never sends them and a stray comma is more likely a locale mistake.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, ErrInvalidAmount
	}
	return Amount(f), nil
}

func (a Amount) Float64() float64 {
	return float64(a)
}

// Rounded returns the amount rounded to cents.
func (a Amount) Rounded() float64 {
	return Round2(float64(a))
}

// Cents returns the amount as integer cents.
func (a Amount) Cents() int64 {
	return int64(math.Round(float64(a) * 100))
}

// Decimal returns the amount as a decimal rounded to cents.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromFloat(float64(a)).Round(2)
}

// String formats with two decimals, e.g. "1234.50".
func (a Amount) String() string {
	return strconv.FormatFloat(Round2(float64(a)), 'f', 2, 64)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return ErrInvalidAmount
		}
		parsed, err := ParseAmount(s)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return ErrInvalidAmount
	}
	*a = Amount(f)
	return nil
}

// FormatMoney formats a value for display, e.g. "$1,234.50" or "-$3.00".
func FormatMoney(x float64) string {
	cents := int64(math.Round(x * 100))
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	frac := cents % 100
	s := "$" + b.String() + "." + strconv.FormatInt(frac/10, 10) + strconv.FormatInt(frac%10, 10)
	if neg {
		return "-" + s
	}
	return s
}
