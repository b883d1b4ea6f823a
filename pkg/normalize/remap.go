package normalize

import (
	"strings"

	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

// normalizeLabel folds a source header into a comparison form: lowercase
// with everything but letters and digits stripped. "Tx Hash", "tx_hash" and
// "TX-HASH" all collapse to "txhash".
func normalizeLabel(s string) string {
	var b strings.Builder

	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	return b.String()
}

// remapTable renames source columns to canonical names using a
// label-insensitive variant table, dropping unrecognized columns. The
// original raw rows are preserved alongside so catch-all channels and
// content-hash keys can still see the full source row.
func remapTable(t *tabular.Table, variants map[string]string) *tabular.Table {
	if t.Empty() && len(t.Columns) == 0 {
		return &tabular.Table{}
	}

	// Build the rename map from the actual header.
	rename := make(map[string]string, len(t.Columns))

	for _, col := range t.Columns {
		if canonical, ok := variants[normalizeLabel(col)]; ok {
			rename[col] = canonical
		}
	}

	out := &tabular.Table{}
	seen := make(map[string]struct{}, len(rename))

	for _, col := range t.Columns {
		canonical, ok := rename[col]
		if !ok {
			continue
		}

		if _, dup := seen[canonical]; dup {
			continue
		}

		seen[canonical] = struct{}{}
		out.Columns = append(out.Columns, canonical)
	}

	for _, row := range t.Rows {
		mapped := make(map[string]string, len(rename))

		// Header order decides which source column wins when several map
		// to the same canonical name; a later column only fills in when
		// the earlier value is empty.
		for _, col := range t.Columns {
			canonical, ok := rename[col]
			if !ok {
				continue
			}

			if existing, dup := mapped[canonical]; dup && existing != "" {
				continue
			}

			mapped[canonical] = row[col]
		}

		out.Rows = append(out.Rows, mapped)
	}

	return out
}
