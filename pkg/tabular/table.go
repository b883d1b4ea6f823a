// Package tabular holds the intermediate data representations the ingestion
// pipeline flows through: a loose all-strings Table produced by the parsers,
// and a typed Batch of tagged Values produced by the normalizers and
// consumed by the upsert engine.
package tabular

import (
	"strconv"
	"time"
)

// Table is loosely-typed tabular data. Every cell is opaque text until a
// normalizer coerces it; this avoids silent type mangling (leading zeros,
// big integers) at parse time.
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// Cell returns the value at (row, col), or "" when the column is absent.
func (t *Table) Cell(row map[string]string, col string) string {
	return row[col]
}

// ValueKind tags the type of a normalized cell.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindTime
)

// Value is a tagged cell value. Integer and float kinds are distinct so a
// nullable integer can tell "explicit zero" from "unknown".
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	t    time.Time
}

// Null returns the explicit absent marker.
func Null() Value { return Value{kind: KindNull} }

// String wraps a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int wraps an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Time wraps an instant. Callers are expected to pass UTC.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Kind returns the value's tag.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is the absent marker.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Any unwraps the value for database binding. Null becomes nil.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// Text renders the value as text. Keys are always compared as text
// regardless of their original type, so this is the canonical key form.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindTime:
		return v.t.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

// TimeValue returns the wrapped instant, or the zero time for other kinds.
func (v Value) TimeValue() time.Time {
	if v.kind == KindTime {
		return v.t
	}

	return time.Time{}
}

// Row maps canonical field names to tagged values.
type Row map[string]Value

// Batch is a normalized set of rows sharing one canonical column set.
type Batch struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the batch has no rows.
func (b *Batch) Empty() bool {
	return b == nil || len(b.Rows) == 0
}
