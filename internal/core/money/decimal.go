package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMissing is returned when a required amount field is absent or empty.
var ErrMissing = errors.New("amount missing")

// Parse converts a JSON-decoded payload value into an exact decimal.
// JSON numbers arrive as float64; storefront exports usually send money as
// strings ("1,204.50", "$18.00"), which are stripped of currency symbols and
// thousands separators before parsing.
func Parse(v interface{}) (decimal.Decimal, error) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, ErrMissing
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat(float64(val)), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case int32:
		return decimal.NewFromInt(int64(val)), nil
	case decimal.Decimal:
		return val, nil
	case string:
		s := cleanAmount(val)
		if s == "" {
			return decimal.Zero, ErrMissing
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parse amount %q: %w", val, err)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("unsupported amount type %T", v)
}

// ParseOptional is Parse with a zero default for absent values.
// Present-but-unparseable values still return an error.
func ParseOptional(v interface{}) (decimal.Decimal, error) {
	d, err := Parse(v)
	if errors.Is(err, ErrMissing) {
		return decimal.Zero, nil
	}
	return d, err
}

// Field extracts an amount from data by key. Missing keys yield ErrMissing.
func Field(data map[string]interface{}, key string) (decimal.Decimal, error) {
	v, ok := data[key]
	if !ok {
		return decimal.Zero, ErrMissing
	}
	d, err := Parse(v)
	if err != nil && !errors.Is(err, ErrMissing) {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, err
}

// Micros converts an ad-platform micro-unit amount (1e-6) into currency units.
func Micros(v interface{}) (decimal.Decimal, error) {
	d, err := Parse(v)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-6), nil
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}

func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(",", "", "$", "", "€", "", "£", "", " ", "").Replace(s)
	return s
}
