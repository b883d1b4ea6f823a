// Package schema declares the canonical relational shape of the four
// telemetry record kinds: cost records, security findings, benchmark runs
// and benchmark transactions. Parsers and normalizers converge on these
// column sets; the upsert engine projects batches against them positionally.
package schema

// Kind identifies one of the canonical record kinds.
type Kind string

const (
	KindCost    Kind = "cost"
	KindFinding Kind = "finding"
	KindRun     Kind = "run"
	KindTx      Kind = "tx"
)

// Table names in the persistent store.
const (
	TableCosts    = "vision_costs"
	TableFindings = "swc_findings"
	TableRuns     = "bench_runs"
	TableTx       = "bench_tx"
)

// Canonical column sets. Order matters: the upsert engine projects batches
// to exactly these columns in this order.
var (
	CostColumns = []string{
		"id", "project", "network", "timestamp", "tx_hash", "contract",
		"function_name", "block_number", "gas_used", "gas_price_wei",
		"cost_eth", "cost_idr", "meta_json",
	}

	FindingColumns = []string{
		"finding_id", "timestamp", "network", "contract", "file",
		"line_start", "line_end", "swc_id", "title", "severity",
		"confidence", "status", "remediation", "commit_hash",
	}

	RunColumns = []string{
		"run_id", "timestamp", "network", "scenario", "contract",
		"function_name", "concurrency", "tx_per_user", "tps_avg",
		"tps_peak", "p50_ms", "p95_ms", "success_rate",
	}

	TxColumns = []string{
		"run_id", "tx_hash", "submitted_at", "mined_at", "latency_ms",
		"status", "gas_used", "gas_price_wei", "block_number",
		"function_name",
	}
)

// Key columns used for upsert identity per table. BenchmarkTransaction has
// no single-column primary key; uniqueness is enforced only through the
// composite delete-then-insert at upsert time.
var (
	CostKeys    = []string{"id"}
	FindingKeys = []string{"finding_id"}
	RunKeys     = []string{"run_id"}
	TxKeys      = []string{"run_id", "tx_hash"}
)

// Relation describes one canonical table for generic callers.
type Relation struct {
	Kind    Kind
	Table   string
	Columns []string
	Keys    []string
}

// Relations lists all canonical tables, leaves first.
var Relations = []Relation{
	{Kind: KindCost, Table: TableCosts, Columns: CostColumns, Keys: CostKeys},
	{Kind: KindFinding, Table: TableFindings, Columns: FindingColumns, Keys: FindingKeys},
	{Kind: KindRun, Table: TableRuns, Columns: RunColumns, Keys: RunKeys},
	{Kind: KindTx, Table: TableTx, Columns: TxColumns, Keys: TxKeys},
}

// RelationFor returns the relation for a record kind.
func RelationFor(k Kind) (Relation, bool) {
	for _, rel := range Relations {
		if rel.Kind == k {
			return rel, true
		}
	}

	return Relation{}, false
}

// ParseKind maps a user-supplied kind name (CLI flag, URL segment) to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "cost", "costs", "vision":
		return KindCost, true
	case "finding", "findings", "swc":
		return KindFinding, true
	case "run", "runs", "bench_runs":
		return KindRun, true
	case "tx", "bench_tx", "transactions":
		return KindTx, true
	default:
		return "", false
	}
}
