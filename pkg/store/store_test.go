package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrbrightsides/stc-analytics/pkg/config"
	"github.com/mrbrightsides/stc-analytics/pkg/schema"
	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{
			Path: filepath.Join(t.TempDir(), "test.db"),
		},
	}

	st := NewStore(logrus.New(), cfg)
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() {
		require.NoError(t, st.Stop())
	})

	return st
}

// costRow builds a full-width cost row with the given identity and gas.
func costRow(id string, gas int64) tabular.Row {
	return tabular.Row{
		"id":            tabular.String(id),
		"project":       tabular.String("STC"),
		"network":       tabular.String("sepolia"),
		"timestamp":     tabular.Time(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)),
		"tx_hash":       tabular.String("0x" + id),
		"contract":      tabular.String("Hotel"),
		"function_name": tabular.String("bookHotel"),
		"block_number":  tabular.Int(100),
		"gas_used":      tabular.Int(gas),
		"gas_price_wei": tabular.Int(2500000000),
		"cost_eth":      tabular.Float(0.0005),
		"cost_idr":      tabular.Null(),
		"meta_json":     tabular.String("{}"),
	}
}

func costBatch(rows ...tabular.Row) *tabular.Batch {
	return &tabular.Batch{Columns: schema.CostColumns, Rows: rows}
}

// txRow builds a full-width bench transaction row.
func txRow(runID, txHash string, latency float64) tabular.Row {
	return tabular.Row{
		"run_id":        tabular.String(runID),
		"tx_hash":       tabular.String(txHash),
		"submitted_at":  tabular.Null(),
		"mined_at":      tabular.Null(),
		"latency_ms":    tabular.Float(latency),
		"status":        tabular.String("mined"),
		"gas_used":      tabular.Int(21000),
		"gas_price_wei": tabular.Null(),
		"block_number":  tabular.Null(),
		"function_name": tabular.String("bookHotel"),
	}
}

func txBatch(rows ...tabular.Row) *tabular.Batch {
	return &tabular.Batch{Columns: schema.TxColumns, Rows: rows}
}

func upsertCosts(t *testing.T, st Store, batch *tabular.Batch) int {
	t.Helper()

	n, err := st.Upsert(context.Background(),
		schema.TableCosts, batch, schema.CostKeys, schema.CostColumns)
	require.NoError(t, err)

	return n
}

func TestUpsert_Idempotent(t *testing.T) {
	st := newTestStore(t)
	batch := costBatch(costRow("a", 21000), costRow("b", 42000))

	assert.Equal(t, 2, upsertCosts(t, st, batch))
	assert.Equal(t, 2, upsertCosts(t, st, batch))

	records, err := st.ListCostRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestUpsert_ReplacesOnlyMatchingKeys(t *testing.T) {
	st := newTestStore(t)

	upsertCosts(t, st, costBatch(costRow("a", 21000), costRow("b", 42000)))
	upsertCosts(t, st, costBatch(costRow("a", 99000), costRow("c", 1000)))

	records, err := st.ListCostRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	byID := make(map[string]CostRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	require.NotNil(t, byID["a"].GasUsed)
	assert.Equal(t, int64(99000), *byID["a"].GasUsed)

	// b was untouched by the second batch.
	require.NotNil(t, byID["b"].GasUsed)
	assert.Equal(t, int64(42000), *byID["b"].GasUsed)
}

func TestUpsert_BatchInternalDuplicatesKeepLast(t *testing.T) {
	st := newTestStore(t)

	n := upsertCosts(t, st, costBatch(costRow("a", 1), costRow("a", 2)))
	assert.Equal(t, 1, n)

	records, err := st.ListCostRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), *records[0].GasUsed)
}

func TestUpsert_CompositeKey(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Upsert(ctx, schema.TableTx,
		txBatch(txRow("r1", "0xa", 100), txRow("r1", "0xb", 200)),
		schema.TxKeys, schema.TxColumns)
	require.NoError(t, err)

	// Same (run_id, tx_hash) overwrites; the other tuple survives.
	_, err = st.Upsert(ctx, schema.TableTx,
		txBatch(txRow("r1", "0xa", 150)),
		schema.TxKeys, schema.TxColumns)
	require.NoError(t, err)

	txs, err := st.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	byHash := make(map[string]BenchmarkTransaction, len(txs))
	for _, tx := range txs {
		byHash[tx.TxHash] = tx
	}

	assert.Equal(t, float64(150), *byHash["0xa"].LatencyMs)
	assert.Equal(t, float64(200), *byHash["0xb"].LatencyMs)
}

func TestUpsert_SchemaMismatch(t *testing.T) {
	st := newTestStore(t)

	batch := &tabular.Batch{
		Columns: []string{"id", "project"},
		Rows:    []tabular.Row{{"id": tabular.String("a")}},
	}

	_, err := st.Upsert(context.Background(),
		schema.TableCosts, batch, schema.CostKeys, schema.CostColumns)

	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, schema.TableCosts, mismatch.Table)
	assert.Contains(t, mismatch.Missing, "gas_used")

	// Nothing was written.
	records, listErr := st.ListCostRecords(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, records)
}

func TestUpsert_EmptyBatch(t *testing.T) {
	st := newTestStore(t)

	n, err := st.Upsert(context.Background(), schema.TableCosts,
		&tabular.Batch{Columns: schema.CostColumns},
		schema.CostKeys, schema.CostColumns)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBenchValidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	runBatch := &tabular.Batch{
		Columns: schema.RunColumns,
		Rows: []tabular.Row{
			{
				"run_id":        tabular.String("r1"),
				"timestamp":     tabular.Time(time.Now().UTC()),
				"network":       tabular.String("sepolia"),
				"scenario":      tabular.String("booking"),
				"contract":      tabular.String("Hotel"),
				"function_name": tabular.String("bookHotel"),
				"concurrency":   tabular.Int(10),
				"tx_per_user":   tabular.Int(5),
				"tps_avg":       tabular.Float(45),
				"tps_peak":      tabular.Float(60),
				"p50_ms":        tabular.Float(100),
				"p95_ms":        tabular.Float(250),
				"success_rate":  tabular.Float(0.99),
			},
		},
	}

	_, err := st.Upsert(ctx, schema.TableRuns, runBatch,
		schema.RunKeys, schema.RunColumns)
	require.NoError(t, err)

	_, err = st.Upsert(ctx, schema.TableTx,
		txBatch(txRow("r1", "0xa", 100), txRow("orphan", "0xb", 50)),
		schema.TxKeys, schema.TxColumns)
	require.NoError(t, err)

	v, err := st.BenchValidation(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), v.RunRows)
	assert.Equal(t, int64(2), v.TxRows)
	assert.Equal(t, int64(1), v.MatchedRunIDs)
}

func TestClearAll(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	upsertCosts(t, st, costBatch(costRow("a", 21000)))
	require.NoError(t, st.ClearAll(ctx))

	records, err := st.ListCostRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReset(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	upsertCosts(t, st, costBatch(costRow("a", 21000)))
	require.NoError(t, st.Reset(ctx))

	// Tables exist again and are empty.
	records, err := st.ListCostRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// And remain writable.
	assert.Equal(t, 1, upsertCosts(t, st, costBatch(costRow("b", 1))))
}

func TestListCostRecords_OrderedByTimestampDesc(t *testing.T) {
	st := newTestStore(t)

	older := costRow("old", 1)
	older["timestamp"] = tabular.Time(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := costRow("new", 2)
	newer["timestamp"] = tabular.Time(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	upsertCosts(t, st, costBatch(older, newer))

	records, err := st.ListCostRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].ID)
}
