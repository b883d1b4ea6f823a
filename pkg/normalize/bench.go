package normalize

import (
	"strings"

	"github.com/mrbrightsides/stc-analytics/pkg/schema"
	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

var runVariants = map[string]string{
	"runid":        "run_id",
	"timestamp":    "timestamp",
	"network":      "network",
	"scenario":     "scenario",
	"contract":     "contract",
	"function":     "function_name",
	"functionname": "function_name",
	"concurrency":  "concurrency",
	"txperuser":    "tx_per_user",
	"tpsavg":       "tps_avg",
	"tpspeak":      "tps_peak",
	"p50ms":        "p50_ms",
	"p95ms":        "p95_ms",
	"successrate":  "success_rate",
}

var txVariants = map[string]string{
	"runid":        "run_id",
	"txhash":       "tx_hash",
	"submittedat":  "submitted_at",
	"minedat":      "mined_at",
	"latencyms":    "latency_ms",
	"status":       "status",
	"gasused":      "gas_used",
	"gaspricewei":  "gas_price_wei",
	"blocknumber":  "block_number",
	"block":        "block_number",
	"function":     "function_name",
	"functionname": "function_name",
}

// Run normalizes a parsed table into a canonical BenchmarkRun batch keyed
// on the whitespace-scrubbed run_id, last occurrence winning per batch.
func Run(t *tabular.Table, opts Options) *tabular.Batch {
	batch := &tabular.Batch{Columns: schema.RunColumns}
	if t.Empty() {
		return batch
	}

	remapped := remapTable(t, runVariants)
	now := opts.now()

	for _, src := range remapped.Rows {
		row := make(tabular.Row, len(schema.RunColumns))

		row["run_id"] = tabular.String(collapseWhitespace(src["run_id"]))
		row["timestamp"] = tabular.Time(normalizeTimestamp(src["timestamp"], now))
		row["network"] = tabular.String(defaultString(src["network"], "(Unknown)"))
		row["scenario"] = tabular.String(strings.TrimSpace(src["scenario"]))
		row["contract"] = tabular.String(strings.TrimSpace(src["contract"]))
		row["function_name"] = tabular.String(strings.TrimSpace(src["function_name"]))
		row["concurrency"] = coerceInt(src["concurrency"])
		row["tx_per_user"] = coerceInt(src["tx_per_user"])
		row["tps_avg"] = coerceFloat(src["tps_avg"])
		row["tps_peak"] = coerceFloat(src["tps_peak"])
		row["p50_ms"] = coerceFloat(src["p50_ms"])
		row["p95_ms"] = coerceFloat(src["p95_ms"])
		row["success_rate"] = coerceFloat(src["success_rate"])

		batch.Rows = append(batch.Rows, row)
	}

	batch.Rows = dedupLast(batch.Rows, schema.RunKeys)

	return batch
}

// Tx normalizes a parsed table into a canonical BenchmarkTransaction batch.
// Identity is the composite (run_id, tx_hash); submitted_at and mined_at
// stay null when unparseable since a transaction may legitimately never
// have been mined.
func Tx(t *tabular.Table, opts Options) *tabular.Batch {
	batch := &tabular.Batch{Columns: schema.TxColumns}
	if t.Empty() {
		return batch
	}

	remapped := remapTable(t, txVariants)

	for _, src := range remapped.Rows {
		row := make(tabular.Row, len(schema.TxColumns))

		row["run_id"] = tabular.String(collapseWhitespace(src["run_id"]))
		row["tx_hash"] = tabular.String(strings.TrimSpace(src["tx_hash"]))
		row["submitted_at"] = optionalTimestamp(src["submitted_at"])
		row["mined_at"] = optionalTimestamp(src["mined_at"])
		row["latency_ms"] = coerceFloat(src["latency_ms"])
		row["status"] = tabular.String(strings.TrimSpace(src["status"]))
		row["gas_used"] = coerceInt(src["gas_used"])
		row["gas_price_wei"] = coerceInt(src["gas_price_wei"])
		row["block_number"] = coerceInt(src["block_number"])
		row["function_name"] = tabular.String(strings.TrimSpace(src["function_name"]))

		batch.Rows = append(batch.Rows, row)
	}

	batch.Rows = dedupLast(batch.Rows, schema.TxKeys)

	return batch
}

// optionalTimestamp parses without the ingest-now default.
func optionalTimestamp(s string) tabular.Value {
	if t, ok := parseTimestamp(s); ok {
		return tabular.Time(t)
	}

	return tabular.Null()
}

// ForKind dispatches to the normalizer for a record kind.
func ForKind(kind schema.Kind, t *tabular.Table, opts Options) *tabular.Batch {
	switch kind {
	case schema.KindCost:
		return Cost(t, opts)
	case schema.KindFinding:
		return Finding(t, opts)
	case schema.KindRun:
		return Run(t, opts)
	case schema.KindTx:
		return Tx(t, opts)
	default:
		return &tabular.Batch{}
	}
}
