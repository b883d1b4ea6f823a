package store

import (
	"time"

	"github.com/mrbrightsides/stc-analytics/pkg/schema"
)

// CostRecord is one blockchain transaction's gas cost.
type CostRecord struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	Project      string    `gorm:"column:project" json:"project"`
	Network      string    `gorm:"column:network" json:"network"`
	Timestamp    time.Time `gorm:"column:timestamp" json:"timestamp"`
	TxHash       string    `gorm:"column:tx_hash" json:"tx_hash"`
	Contract     string    `gorm:"column:contract" json:"contract"`
	FunctionName string    `gorm:"column:function_name" json:"function_name"`
	BlockNumber  *int64    `gorm:"column:block_number" json:"block_number"`
	GasUsed      *int64    `gorm:"column:gas_used" json:"gas_used"`
	GasPriceWei  *int64    `gorm:"column:gas_price_wei" json:"gas_price_wei"`
	CostETH      *float64  `gorm:"column:cost_eth" json:"cost_eth"`
	CostIDR      *float64  `gorm:"column:cost_idr" json:"cost_idr"`
	MetaJSON     string    `gorm:"column:meta_json" json:"meta_json"`
}

// TableName maps the model onto the canonical table.
func (CostRecord) TableName() string { return schema.TableCosts }

// SecurityFinding is one static-analysis weakness finding.
type SecurityFinding struct {
	FindingID   string    `gorm:"column:finding_id;primaryKey" json:"finding_id"`
	Timestamp   time.Time `gorm:"column:timestamp" json:"timestamp"`
	Network     string    `gorm:"column:network" json:"network"`
	Contract    string    `gorm:"column:contract" json:"contract"`
	File        string    `gorm:"column:file" json:"file"`
	LineStart   *int64    `gorm:"column:line_start" json:"line_start"`
	LineEnd     *int64    `gorm:"column:line_end" json:"line_end"`
	SWCID       string    `gorm:"column:swc_id" json:"swc_id"`
	Title       string    `gorm:"column:title" json:"title"`
	Severity    string    `gorm:"column:severity" json:"severity"`
	Confidence  *float64  `gorm:"column:confidence" json:"confidence"`
	Status      string    `gorm:"column:status" json:"status"`
	Remediation string    `gorm:"column:remediation" json:"remediation"`
	CommitHash  string    `gorm:"column:commit_hash" json:"commit_hash"`
}

func (SecurityFinding) TableName() string { return schema.TableFindings }

// BenchmarkRun is one load-test execution summary.
type BenchmarkRun struct {
	RunID        string    `gorm:"column:run_id;primaryKey" json:"run_id"`
	Timestamp    time.Time `gorm:"column:timestamp" json:"timestamp"`
	Network      string    `gorm:"column:network" json:"network"`
	Scenario     string    `gorm:"column:scenario" json:"scenario"`
	Contract     string    `gorm:"column:contract" json:"contract"`
	FunctionName string    `gorm:"column:function_name" json:"function_name"`
	Concurrency  *int64    `gorm:"column:concurrency" json:"concurrency"`
	TxPerUser    *int64    `gorm:"column:tx_per_user" json:"tx_per_user"`
	TPSAvg       *float64  `gorm:"column:tps_avg" json:"tps_avg"`
	TPSPeak      *float64  `gorm:"column:tps_peak" json:"tps_peak"`
	P50Ms        *float64  `gorm:"column:p50_ms" json:"p50_ms"`
	P95Ms        *float64  `gorm:"column:p95_ms" json:"p95_ms"`
	SuccessRate  *float64  `gorm:"column:success_rate" json:"success_rate"`
}

func (BenchmarkRun) TableName() string { return schema.TableRuns }

// BenchmarkTransaction is one transaction belonging to a run. It carries no
// single-column primary key: identity is the (run_id, tx_hash) composite,
// enforced only by the upsert engine's delete-then-insert.
type BenchmarkTransaction struct {
	RunID        string     `gorm:"column:run_id;index:idx_bench_tx_key" json:"run_id"`
	TxHash       string     `gorm:"column:tx_hash;index:idx_bench_tx_key" json:"tx_hash"`
	SubmittedAt  *time.Time `gorm:"column:submitted_at" json:"submitted_at"`
	MinedAt      *time.Time `gorm:"column:mined_at" json:"mined_at"`
	LatencyMs    *float64   `gorm:"column:latency_ms" json:"latency_ms"`
	Status       string     `gorm:"column:status" json:"status"`
	GasUsed      *int64     `gorm:"column:gas_used" json:"gas_used"`
	GasPriceWei  *int64     `gorm:"column:gas_price_wei" json:"gas_price_wei"`
	BlockNumber  *int64     `gorm:"column:block_number" json:"block_number"`
	FunctionName string     `gorm:"column:function_name" json:"function_name"`
}

func (BenchmarkTransaction) TableName() string { return schema.TableTx }

// BenchValidation surfaces the diagnostic counts shown after a benchmark
// ingestion: how many rows each table holds and how many run_ids appear in
// both. Mismatches are reported, never rejected.
type BenchValidation struct {
	RunRows       int64 `json:"run_rows"`
	TxRows        int64 `json:"tx_rows"`
	MatchedRunIDs int64 `json:"run_id_matches"`
}
