package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"
)

// csvStrategy is one attempt at decoding a CSV byte stream. Strategies are
// tried in order; the first one that yields a header wins. This replaces
// the try/except fallback chains of the upstream tooling with an explicit
// ordered list.
type csvStrategy func(data []byte) *Table

var csvStrategies = []csvStrategy{
	readCSVStrict,
	readCSVLenient,
}

// ReadCSV decodes an uploaded delimited-text stream of unknown provenance.
// A strict UTF-8 pass runs first; on failure the raw bytes are re-decoded
// leniently with invalid sequences replaced. Malformed lines are dropped in
// both passes. An unreadable stream yields an empty table, never an error:
// downstream is built to tolerate empty batches.
func ReadCSV(r io.Reader) *Table {
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return &Table{}
	}

	for _, strategy := range csvStrategies {
		if t := strategy(data); t != nil {
			return t
		}
	}

	return &Table{}
}

// readCSVStrict requires valid UTF-8 and minimal quoting.
func readCSVStrict(data []byte) *Table {
	if !utf8.Valid(data) {
		return nil
	}

	return readCSVRecords(csv.NewReader(bytes.NewReader(data)))
}

// readCSVLenient replaces invalid sequences and relaxes quoting rules.
func readCSVLenient(data []byte) *Table {
	clean := strings.ToValidUTF8(string(data), string(utf8.RuneError))

	cr := csv.NewReader(strings.NewReader(clean))
	cr.LazyQuotes = true

	return readCSVRecords(cr)
}

// readCSVRecords drains a csv.Reader record by record so one malformed line
// never poisons the rest of the stream. Short rows are padded, long rows
// truncated to the header width.
func readCSVRecords(cr *csv.Reader) *Table {
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	t := &Table{Columns: columns}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			// Malformed line: dropped, no partial-row recovery.
			continue
		}

		row := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}

		t.Rows = append(t.Rows, row)
	}

	return t
}
