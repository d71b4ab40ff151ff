package rules

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Vitaliy77/month-end-dashboard-sub000/internal/report"
)

// params reads loosely typed rule parameters decoded from YAML or JSON
type params map[string]any

// number returns the value at key as a decimal. Strings in accounting format
// are accepted.
func (p params) number(keys ...string) (decimal.Decimal, bool) {
	for _, key := range keys {
		if v, ok := p[key]; ok {
			if d, ok := report.ParseNumber(v); ok {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

// nonNegative is number, with negative values treated as unset
func (p params) nonNegative(keys ...string) (decimal.Decimal, bool) {
	d, ok := p.number(keys...)
	if !ok || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func (p params) str(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// nested returns the map at key. YAML decoders may produce either key type.
func (p params) nested(key string) params {
	switch v := p[key].(type) {
	case map[string]any:
		return params(v)
	case map[any]any:
		out := make(params, len(v))
		for k, val := range v {
			out[fmt.Sprint(k)] = val
		}
		return out
	}
	return params{}
}
