package normalize

import (
	"strings"

	"github.com/mrbrightsides/stc-analytics/pkg/schema"
	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

var findingVariants = map[string]string{
	"findingid":   "finding_id",
	"id":          "finding_id",
	"timestamp":   "timestamp",
	"network":     "network",
	"contract":    "contract",
	"file":        "file",
	"linestart":   "line_start",
	"lineend":     "line_end",
	"swcid":       "swc_id",
	"title":       "title",
	"severity":    "severity",
	"confidence":  "confidence",
	"status":      "status",
	"remediation": "remediation",
	"commithash":  "commit_hash",
}

// severitySynonyms folds alternate spellings into the canonical severity
// vocabulary after lowercasing.
var severitySynonyms = map[string]string{
	"info":        "informational",
	"informative": "informational",
}

// confidenceWords maps qualitative confidence labels onto the 0..1 scale
// used by numeric sources.
var confidenceWords = map[string]float64{
	"low":    0.25,
	"medium": 0.50,
	"high":   0.75,
}

// Finding normalizes a parsed table into a canonical SecurityFinding batch.
// Missing finding_ids derive from contract::swc_id::line_start, with the
// content-hash fallback when that composite is degenerate. The batch is
// deduplicated on finding_id, last occurrence winning.
func Finding(t *tabular.Table, opts Options) *tabular.Batch {
	batch := &tabular.Batch{Columns: schema.FindingColumns}
	if t.Empty() {
		return batch
	}

	remapped := remapTable(t, findingVariants)
	now := opts.now()

	for i, src := range remapped.Rows {
		row := make(tabular.Row, len(schema.FindingColumns))

		contract := strings.TrimSpace(src["contract"])
		swcID := strings.TrimSpace(src["swc_id"])

		row["contract"] = tabular.String(contract)
		row["swc_id"] = tabular.String(swcID)
		row["network"] = tabular.String(strings.TrimSpace(src["network"]))
		row["file"] = tabular.String(strings.TrimSpace(src["file"]))
		row["title"] = tabular.String(strings.TrimSpace(src["title"]))
		row["status"] = tabular.String(strings.TrimSpace(src["status"]))
		row["remediation"] = tabular.String(strings.TrimSpace(src["remediation"]))
		row["commit_hash"] = tabular.String(strings.TrimSpace(src["commit_hash"]))
		row["severity"] = tabular.String(normalizeSeverity(src["severity"]))
		row["confidence"] = normalizeConfidence(src["confidence"])
		row["line_start"] = coerceInt(src["line_start"])
		row["line_end"] = coerceInt(src["line_end"])
		row["timestamp"] = tabular.Time(normalizeTimestamp(src["timestamp"], now))

		findingID := strings.TrimSpace(src["finding_id"])
		if findingID == "" {
			lineStart := row["line_start"].Text()

			if degenerateComposite(contract, swcID, lineStart) {
				findingID = contentKey(opts.sourceTag(), t.Rows[i], t.Columns)
			} else {
				findingID = contract + "::" + swcID + "::" + lineStart
			}
		}

		row["finding_id"] = tabular.String(findingID)

		batch.Rows = append(batch.Rows, row)
	}

	batch.Rows = dedupLast(batch.Rows, schema.FindingKeys)

	return batch
}

// normalizeSeverity lowercases and folds synonyms. Unknown severities pass
// through lowercased rather than being rejected.
func normalizeSeverity(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	if folded, ok := severitySynonyms[s]; ok {
		return folded
	}

	return s
}

// normalizeConfidence parses numeric confidence first, then falls back to
// the qualitative word scale. Anything else is null.
func normalizeConfidence(s string) tabular.Value {
	if v := coerceFloat(s); !v.IsNull() {
		return v
	}

	if f, ok := confidenceWords[strings.ToLower(strings.TrimSpace(s))]; ok {
		return tabular.Float(f)
	}

	return tabular.Null()
}
