package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// contentKeyLength is the truncated hex length of content-hash keys.
const contentKeyLength = 16

// degenerateComposite reports whether a synthesized composite key carries no
// identity: all parts blank, or any part is a visible placeholder ("...").
func degenerateComposite(parts ...string) bool {
	allBlank := true

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			allBlank = false
		}

		if strings.Contains(p, "...") {
			return true
		}
	}

	return allBlank
}

// contentKey derives a deterministic key from the source row, truncated
// short and prefixed with a source tag so collisions across ingestion paths
// stay distinguishable. Columns are hashed name-and-value in sorted order:
// parsers that discover columns in nondeterministic order (NDJSON union)
// must still yield the same key for the same row content.
func contentKey(sourceTag string, row map[string]string, columns []string) string {
	sorted := make([]string, len(columns))
	copy(sorted, columns)
	sort.Strings(sorted)

	h := sha256.New()

	for i, col := range sorted {
		if i > 0 {
			h.Write([]byte("|"))
		}

		h.Write([]byte(col))
		h.Write([]byte("="))
		h.Write([]byte(row[col]))
	}

	sum := hex.EncodeToString(h.Sum(nil))

	return sourceTag + "::" + sum[:contentKeyLength]
}
