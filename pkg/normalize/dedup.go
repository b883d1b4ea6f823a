package normalize

import (
	"strings"

	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

// dedupLast collapses rows sharing a key tuple to the last occurrence in
// batch order. Surviving rows keep their original relative positions.
func dedupLast(rows []tabular.Row, keys []string) []tabular.Row {
	if len(rows) < 2 {
		return rows
	}

	lastIndex := make(map[string]int, len(rows))

	for i, row := range rows {
		lastIndex[keyTuple(row, keys)] = i
	}

	out := make([]tabular.Row, 0, len(lastIndex))

	for i, row := range rows {
		if lastIndex[keyTuple(row, keys)] == i {
			out = append(out, row)
		}
	}

	return out
}

// keyTuple renders a row's key columns as one comparable string. Keys are
// compared as trimmed text regardless of original type.
func keyTuple(row tabular.Row, keys []string) string {
	parts := make([]string, len(keys))

	for i, k := range keys {
		parts[i] = strings.TrimSpace(row[k].Text())
	}

	return strings.Join(parts, "\x1f")
}
