package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

func findingOpts() Options {
	return Options{Now: testNow, SourceTag: "csv"}
}

func TestFinding_DerivedID(t *testing.T) {
	src := mkTable(
		[]string{"contract", "swc_id", "line_start", "severity"},
		[]string{"Foo", "SWC-107", "42", "High"},
	)

	batch := Finding(src, findingOpts())
	require.Len(t, batch.Rows, 1)

	row := batch.Rows[0]
	assert.Equal(t, "Foo::SWC-107::42", row["finding_id"].Text())
	assert.Equal(t, "high", row["severity"].Text())
	assert.Equal(t, tabular.Int(42), row["line_start"])
}

func TestFinding_ExplicitIDWins(t *testing.T) {
	src := mkTable(
		[]string{"finding_id", "contract", "swc_id", "line_start"},
		[]string{"F-1", "Foo", "SWC-107", "42"},
	)

	batch := Finding(src, findingOpts())
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "F-1", batch.Rows[0]["finding_id"].Text())
}

func TestFinding_SeveritySynonymsFold(t *testing.T) {
	src := mkTable(
		[]string{"contract", "swc_id", "line_start", "severity"},
		[]string{"A", "SWC-100", "1", "Info"},
		[]string{"B", "SWC-101", "2", "informative"},
		[]string{"C", "SWC-102", "3", "CRITICAL"},
	)

	batch := Finding(src, findingOpts())
	require.Len(t, batch.Rows, 3)

	assert.Equal(t, "informational", batch.Rows[0]["severity"].Text())
	assert.Equal(t, "informational", batch.Rows[1]["severity"].Text())
	// Unknown severities pass through lowercased.
	assert.Equal(t, "critical", batch.Rows[2]["severity"].Text())
}

func TestFinding_ConfidenceCoercion(t *testing.T) {
	src := mkTable(
		[]string{"contract", "swc_id", "line_start", "confidence"},
		[]string{"A", "SWC-100", "1", "0.9"},
		[]string{"B", "SWC-101", "2", "High"},
		[]string{"C", "SWC-102", "3", "medium"},
		[]string{"D", "SWC-103", "4", "maybe"},
	)

	batch := Finding(src, findingOpts())
	require.Len(t, batch.Rows, 4)

	assert.Equal(t, tabular.Float(0.9), batch.Rows[0]["confidence"])
	assert.Equal(t, tabular.Float(0.75), batch.Rows[1]["confidence"])
	assert.Equal(t, tabular.Float(0.50), batch.Rows[2]["confidence"])
	assert.True(t, batch.Rows[3]["confidence"].IsNull())
}

func TestFinding_DegenerateCompositeFallsBack(t *testing.T) {
	src := mkTable(
		[]string{"contract", "swc_id", "line_start", "title"},
		[]string{"", "", "", "orphan finding"},
	)

	batch := Finding(src, findingOpts())
	require.Len(t, batch.Rows, 1)
	assert.Contains(t, batch.Rows[0]["finding_id"].Text(), "csv::")
}

func TestFinding_SynthesizedKeyStableAcrossParses(t *testing.T) {
	// A blank-identity finding gets a content-hash key. Re-parsing the
	// same bytes must synthesize the same key every time, even though the
	// NDJSON reader discovers columns in map-iteration order.
	line := `{"title":"orphan finding","file":"Hotel.sol","network":"sepolia"}` + "\n"

	ids := make(map[string]struct{})

	for range 100 {
		table := tabular.ReadNDJSON(strings.NewReader(line))
		require.Len(t, table.Rows, 1)

		batch := Finding(table, Options{Now: testNow, SourceTag: "ndjson"})
		require.Len(t, batch.Rows, 1)

		ids[batch.Rows[0]["finding_id"].Text()] = struct{}{}
	}

	assert.Len(t, ids, 1)
}

func TestFinding_DedupOnFindingID(t *testing.T) {
	src := mkTable(
		[]string{"contract", "swc_id", "line_start", "status"},
		[]string{"Foo", "SWC-107", "42", "open"},
		[]string{"Foo", "SWC-107", "42", "fixed"},
	)

	batch := Finding(src, findingOpts())
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, "fixed", batch.Rows[0]["status"].Text())
}

func TestFinding_TimestampDefaultsToNow(t *testing.T) {
	src := mkTable(
		[]string{"contract", "swc_id", "line_start"},
		[]string{"Foo", "SWC-107", "42"},
	)

	batch := Finding(src, findingOpts())
	require.Len(t, batch.Rows, 1)
	assert.Equal(t, testNow, batch.Rows[0]["timestamp"].TimeValue())
}
