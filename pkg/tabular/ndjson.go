package tabular

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strconv"
)

// scannerBufferSize bounds a single NDJSON line. Result exporters emit one
// object per transaction, so 1 MiB leaves generous headroom.
const scannerBufferSize = 1 << 20

// ReadNDJSON decodes a newline-delimited-records stream: one JSON object
// per line, blank lines skipped, unparseable lines dropped without failing
// the batch. Nested objects are flattened into a flat column namespace with
// an underscore separator (key `a.b` becomes column `a_b`). The column set
// is the first-seen-order union across all records.
func ReadNDJSON(r io.Reader) *Table {
	t := &Table{}
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBufferSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		obj, ok := decodeRecord(line)
		if !ok {
			continue
		}

		row := make(map[string]string, len(obj))
		flattenInto(row, "", obj)

		for col := range row {
			if _, dup := seen[col]; !dup {
				seen[col] = struct{}{}
				t.Columns = append(t.Columns, col)
			}
		}

		t.Rows = append(t.Rows, row)
	}

	// Scanner errors (oversized line, broken reader) end the batch with
	// whatever parsed so far.
	return t
}

// decodeRecord parses one line as a JSON object. UseNumber keeps numeric
// literals as text so big integers survive the loose string stage intact.
func decodeRecord(line []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}

	return obj, true
}

// flattenInto writes obj's scalar leaves into row, joining nested keys with
// underscores. Arrays and other non-map composites are kept as their JSON
// text, since some sources carry serialized side channels in them.
func flattenInto(row map[string]string, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}

		switch val := v.(type) {
		case map[string]any:
			flattenInto(row, key, val)
		case nil:
			row[key] = ""
		case string:
			row[key] = val
		case json.Number:
			row[key] = val.String()
		case bool:
			row[key] = strconv.FormatBool(val)
		default:
			// Arrays and anything else: keep the JSON text.
			if encoded, err := json.Marshal(val); err == nil {
				row[key] = string(encoded)
			} else {
				row[key] = ""
			}
		}
	}
}
