package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNDJSON_Basic(t *testing.T) {
	input := `{"run_id":"r1","tx_hash":"0xa","latency_ms":12.5}
{"run_id":"r1","tx_hash":"0xb","latency_ms":30}
`

	table := ReadNDJSON(strings.NewReader(input))
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "r1", table.Rows[0]["run_id"])
	assert.Equal(t, "12.5", table.Rows[0]["latency_ms"])
	assert.Equal(t, "30", table.Rows[1]["latency_ms"])
}

func TestReadNDJSON_NestedObjectsFlatten(t *testing.T) {
	input := `{"tx":{"hash":"0xa","gas":{"used":21000}},"status":"ok"}`

	table := ReadNDJSON(strings.NewReader(input))
	require.Len(t, table.Rows, 1)

	assert.Equal(t, "0xa", table.Rows[0]["tx_hash"])
	assert.Equal(t, "21000", table.Rows[0]["tx_gas_used"])
	assert.Equal(t, "ok", table.Rows[0]["status"])
}

func TestReadNDJSON_BlankAndMalformedLinesSkipped(t *testing.T) {
	input := "{\"a\":\"1\"}\n\nnot json\n{\"a\":\"2\"}\n"

	table := ReadNDJSON(strings.NewReader(input))
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "2", table.Rows[1]["a"])
}

func TestReadNDJSON_ColumnUnionFirstSeenOrder(t *testing.T) {
	input := `{"a":"1","b":"2"}
{"b":"3","c":"4"}
`

	table := ReadNDJSON(strings.NewReader(input))

	assert.Equal(t, []string{"a", "b", "c"}, table.Columns)
	// Absent keys read as empty text.
	assert.Equal(t, "", table.Rows[1]["a"])
}

func TestReadNDJSON_BigIntegersSurvive(t *testing.T) {
	input := `{"gas_price_wei":123456789012345678901234567890}`

	table := ReadNDJSON(strings.NewReader(input))
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "123456789012345678901234567890",
		table.Rows[0]["gas_price_wei"])
}

func TestReadNDJSON_ScalarTypes(t *testing.T) {
	input := `{"s":"x","n":null,"b":true,"arr":[1,2]}`

	table := ReadNDJSON(strings.NewReader(input))
	require.Len(t, table.Rows, 1)

	row := table.Rows[0]
	assert.Equal(t, "x", row["s"])
	assert.Equal(t, "", row["n"])
	assert.Equal(t, "true", row["b"])
	assert.Equal(t, "[1,2]", row["arr"])
}

func TestReadNDJSON_Empty(t *testing.T) {
	assert.True(t, ReadNDJSON(strings.NewReader("")).Empty())
}
