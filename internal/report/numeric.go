package report

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

const currencySymbols = "$€£¥₹"

// ParseNumber parses an accounting-formatted value into a signed decimal.
// The boolean is false when the value is absent: nil, blank, non-finite or
// unparsable. A value fully wrapped in parentheses is negative.
func ParseNumber(raw any) (decimal.Decimal, bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, true
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return parseNumericString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		return parseNumericString(strconv.FormatUint(v, 10))
	case json.Number:
		return parseNumericString(v.String())
	case string:
		return parseNumericString(v)
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func parseNumericString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), r == ',', r == '(', r == ')':
			continue
		case strings.ContainsRune(currencySymbols, r):
			continue
		}
		b.WriteRune(r)
	}

	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// FormatAccounting renders d as $1,234.56, or ($1,234.56) when negative.
// ParseNumber(FormatAccounting(d)) == d.Round(2).
func FormatAccounting(d decimal.Decimal) string {
	s := "$" + groupThousands(d.Abs().StringFixed(2))
	if d.Round(2).IsNegative() {
		return "(" + s + ")"
	}
	return s
}

func groupThousands(fixed string) string {
	intPart, frac := fixed, ""
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, frac = fixed[:i], fixed[i:]
	}
	if len(intPart) <= 3 {
		return fixed
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + frac
}
