package normalize

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mrbrightsides/stc-analytics/pkg/schema"
	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

// Options carry per-ingestion context into the normalizers.
type Options struct {
	// Now is the ingest instant used when a timestamp cannot be parsed.
	Now time.Time

	// SourceTag prefixes content-hash fallback keys ("csv", "ndjson") so
	// synthesized keys from different ingestion paths cannot collide.
	SourceTag string

	// DefaultProject fills CostRecord.project when the source omits it.
	DefaultProject string

	// KeepZeroRows disables the CostRecord noise filter that drops rows
	// with no identity and all-zero gas/cost fields.
	KeepZeroRows bool
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now().UTC()
	}

	return o.Now.UTC()
}

func (o Options) sourceTag() string {
	if o.SourceTag == "" {
		return "row"
	}

	return o.SourceTag
}

// costVariants maps known source header variants to canonical or
// intermediate field names. Gas price in gwei and the status column are
// intermediates consumed below, not canonical columns.
var costVariants = map[string]string{
	"id":              "id",
	"project":         "project",
	"network":         "network",
	"timestamp":       "timestamp",
	"txhash":          "tx_hash",
	"transactionhash": "tx_hash",
	"contract":        "contract",
	"function":        "function_name",
	"functionname":    "function_name",
	"block":           "block_number",
	"blocknumber":     "block_number",
	"gasused":         "gas_used",
	"gaspricegwei":    "gas_price_gwei",
	"gaspricewei":     "gas_price_wei",
	"estimatedfeeeth": "cost_eth",
	"costeth":         "cost_eth",
	"estimatedfeerp":  "cost_idr",
	"costidr":         "cost_idr",
	"status":          "status",
	"metajson":        "meta_json",
}

// Cost normalizes a parsed table into a canonical CostRecord batch:
// remapped columns, guaranteed column completion, UTC timestamps, nullable
// numerics, wei derivation from gwei, the meta_json side channel, derived
// ids, the zero-row noise filter and last-wins dedup on id.
func Cost(t *tabular.Table, opts Options) *tabular.Batch {
	batch := &tabular.Batch{Columns: schema.CostColumns}
	if t.Empty() {
		return batch
	}

	remapped := remapTable(t, costVariants)
	now := opts.now()

	for i, src := range remapped.Rows {
		raw := t.Rows[i]
		row := make(tabular.Row, len(schema.CostColumns))

		txHash := strings.TrimSpace(src["tx_hash"])
		fn := strings.TrimSpace(src["function_name"])

		row["tx_hash"] = tabular.String(txHash)
		row["function_name"] = tabular.String(fn)
		row["contract"] = tabular.String(strings.TrimSpace(src["contract"]))
		row["project"] = tabular.String(defaultString(src["project"], opts.DefaultProject))
		row["network"] = tabular.String(defaultString(src["network"], "(Unknown)"))
		row["timestamp"] = tabular.Time(normalizeTimestamp(src["timestamp"], now))
		row["block_number"] = coerceInt(src["block_number"])
		row["gas_used"] = coerceInt(src["gas_used"])
		row["gas_price_wei"] = gasPriceWei(src)
		row["cost_eth"] = coerceFloat(src["cost_eth"])
		row["cost_idr"] = coerceFloat(src["cost_idr"])
		row["meta_json"] = tabular.String(costMeta(src, raw))

		id := strings.TrimSpace(src["id"])

		if !opts.KeepZeroRows && isCostNoise(id, txHash, fn, row) {
			continue
		}

		if id == "" {
			if degenerateComposite(txHash, fn) {
				id = contentKey(opts.sourceTag(), raw, t.Columns)
			} else {
				id = txHash + "::" + fn
			}
		}

		row["id"] = tabular.String(id)

		batch.Rows = append(batch.Rows, row)
	}

	batch.Rows = dedupLast(batch.Rows, schema.CostKeys)

	return batch
}

// gasPriceWei takes a direct wei column when present, otherwise derives
// wei from a gwei column (gwei × 10^9, rounded).
func gasPriceWei(src map[string]string) tabular.Value {
	if wei := coerceInt(src["gas_price_wei"]); !wei.IsNull() {
		return wei
	}

	gwei := coerceFloat(src["gas_price_gwei"])
	if gwei.IsNull() {
		return tabular.Null()
	}

	f, _ := gwei.Any().(float64)

	return tabular.Int(int64(math.Round(f * 1e9)))
}

// costMeta builds the serialized meta side channel. An explicit meta_json
// column wins; otherwise the status column and any flattened meta_* extras
// from the raw source row are folded in. Defaults to "{}".
func costMeta(src, raw map[string]string) string {
	if m := strings.TrimSpace(src["meta_json"]); m != "" {
		return m
	}

	meta := make(map[string]string)

	if status := strings.TrimSpace(src["status"]); status != "" {
		meta["status"] = status
	}

	// Catch-all channel: unrecognized meta_* columns survive here instead
	// of being dropped with the rest.
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if rest, ok := strings.CutPrefix(strings.ToLower(k), "meta_"); ok {
			if v := strings.TrimSpace(raw[k]); v != "" {
				meta[rest] = v
			}
		}
	}

	if len(meta) == 0 {
		return "{}"
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}

	return string(encoded)
}

// isCostNoise reports whether a row carries no identity and no value: blank
// id, function and tx hash with zero or unknown gas and cost fields. Such
// rows are dropped as noise before key synthesis.
func isCostNoise(id, txHash, fn string, row tabular.Row) bool {
	if id != "" || txHash != "" || fn != "" {
		return false
	}

	return intOrZero(row["gas_used"]) == 0 &&
		floatOrZero(row["cost_eth"]) == 0 &&
		floatOrZero(row["cost_idr"]) == 0
}

// defaultString returns the trimmed value, or fallback when blank.
func defaultString(s, fallback string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}

	return s
}
