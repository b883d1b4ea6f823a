// Package normalize converts loose parsed tables into canonical batches:
// column remapping, type coercion, timestamp parsing with fallback
// strategies, derived-key synthesis, row filtering and per-batch dedup.
// Cell-level problems never fail a batch; they coerce to nulls or defaults.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

// coerceInt parses an integer-looking cell into a nullable integer value.
// Unparseable input maps to null, never an error, so "explicit zero" stays
// distinguishable from "unknown". Float-formatted integers ("21000.0",
// scientific notation from spreadsheet exports) round to the nearest int.
func coerceInt(s string) tabular.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return tabular.Null()
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return tabular.Int(i)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return tabular.Int(int64(math.Round(f)))
	}

	return tabular.Null()
}

// coerceFloat parses a numeric cell into a nullable float value.
func coerceFloat(s string) tabular.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return tabular.Null()
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return tabular.Null()
	}

	return tabular.Float(f)
}

// intOrZero unwraps a nullable integer for zero-checks.
func intOrZero(v tabular.Value) int64 {
	if v.Kind() == tabular.KindInt {
		if i, ok := v.Any().(int64); ok {
			return i
		}
	}

	return 0
}

// floatOrZero unwraps a nullable float for zero-checks.
func floatOrZero(v tabular.Value) float64 {
	if v.Kind() == tabular.KindFloat {
		if f, ok := v.Any().(float64); ok {
			return f
		}
	}

	return 0
}

// collapseWhitespace trims a string and collapses internal whitespace runs
// (newlines, tabs, repeated spaces) to a single space. Applied to run_id,
// which travels through spreadsheets that like to inject newlines and tabs.
// Legitimate inner spaces survive, so distinct ids cannot collapse together.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
