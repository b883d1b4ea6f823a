package store

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

// deleteChunkSize bounds the number of key tuples per DELETE statement so
// bind-parameter limits are never hit on large batches.
const deleteChunkSize = 500

// insertChunkSize bounds rows per INSERT.
const insertChunkSize = 200

// SchemaMismatchError reports canonical columns that are structurally
// absent from a batch handed to the upsert engine. It is fatal to the
// call; no partial write occurs.
type SchemaMismatchError struct {
	Table   string
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("table %s: batch missing columns: %s",
		e.Table, strings.Join(e.Missing, ", "))
}

// Upsert stages the batch projected to columnList, deletes existing rows
// whose key tuples appear in the staged batch, and inserts the staged rows,
// all inside one transaction. After the call at most one row exists per key
// present in the batch; rows for other keys are untouched.
func (s *store) Upsert(
	ctx context.Context,
	table string,
	batch *tabular.Batch,
	keyColumns []string,
	columnList []string,
) (int, error) {
	if batch.Empty() {
		return 0, nil
	}

	if missing := missingColumns(batch.Columns, columnList); len(missing) > 0 {
		return 0, &SchemaMismatchError{Table: table, Missing: missing}
	}

	staged := stageBatch(batch, keyColumns, columnList)
	if len(staged) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteMatchingKeys(tx, table, keyColumns, staged); err != nil {
			return err
		}

		for start := 0; start < len(staged); start += insertChunkSize {
			end := min(start+insertChunkSize, len(staged))

			if err := tx.Table(table).Create(staged[start:end]).Error; err != nil {
				return fmt.Errorf("inserting staged rows: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upserting into %s: %w", table, err)
	}

	s.log.WithField("table", table).
		WithField("rows", len(staged)).
		Debug("Batch upserted")

	return len(staged), nil
}

// missingColumns returns declared columns absent from the batch.
func missingColumns(have, want []string) []string {
	present := make(map[string]struct{}, len(have))
	for _, c := range have {
		present[c] = struct{}{}
	}

	var missing []string

	for _, c := range want {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}

	return missing
}

// stageBatch projects rows to exactly columnList, coerces key columns to
// trimmed strings (keys are always compared as text), and deduplicates by
// key tuple keeping the last row. The dedup mirrors the normalizers'
// defensively: the at-most-one-per-key guarantee must hold even for callers
// that skipped normalization.
func stageBatch(
	batch *tabular.Batch,
	keyColumns []string,
	columnList []string,
) []map[string]any {
	isKey := make(map[string]struct{}, len(keyColumns))
	for _, k := range keyColumns {
		isKey[k] = struct{}{}
	}

	projected := make([]map[string]any, len(batch.Rows))
	tuples := make([]string, len(batch.Rows))
	lastIndex := make(map[string]int, len(batch.Rows))

	for i, row := range batch.Rows {
		out := make(map[string]any, len(columnList))
		keyParts := make([]string, 0, len(keyColumns))

		for _, col := range columnList {
			v := row[col]

			if _, ok := isKey[col]; ok {
				text := strings.TrimSpace(v.Text())
				out[col] = text
				keyParts = append(keyParts, text)
			} else {
				out[col] = v.Any()
			}
		}

		projected[i] = out
		tuples[i] = strings.Join(keyParts, "\x1f")
		lastIndex[tuples[i]] = i
	}

	staged := make([]map[string]any, 0, len(lastIndex))

	for i := range projected {
		if lastIndex[tuples[i]] == i {
			staged = append(staged, projected[i])
		}
	}

	return staged
}

// deleteMatchingKeys removes every destination row whose key tuple matches
// a distinct tuple in the staged batch. The delete observes the full key
// set before any insert happens. Table and column names come from the
// schema registry, not user input.
func deleteMatchingKeys(
	tx *gorm.DB,
	table string,
	keyColumns []string,
	staged []map[string]any,
) error {
	if len(keyColumns) == 1 {
		col := keyColumns[0]

		keys := make([]string, 0, len(staged))
		for _, row := range staged {
			keys = append(keys, row[col].(string))
		}

		for start := 0; start < len(keys); start += deleteChunkSize {
			end := min(start+deleteChunkSize, len(keys))

			stmt := fmt.Sprintf("DELETE FROM %s WHERE %s IN ?", table, col)
			if err := tx.Exec(stmt, keys[start:end]).Error; err != nil {
				return fmt.Errorf("deleting matching keys: %w", err)
			}
		}

		return nil
	}

	// Composite key: one OR'd tuple predicate per staged row, chunked.
	cond := make([]string, len(keyColumns))
	for i, k := range keyColumns {
		cond[i] = k + " = ?"
	}

	tuplePredicate := "(" + strings.Join(cond, " AND ") + ")"

	for start := 0; start < len(staged); start += deleteChunkSize {
		end := min(start+deleteChunkSize, len(staged))
		chunk := staged[start:end]

		predicates := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(keyColumns))

		for i, row := range chunk {
			predicates[i] = tuplePredicate

			for _, k := range keyColumns {
				args = append(args, row[k])
			}
		}

		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s",
			table, strings.Join(predicates, " OR "))

		if err := tx.Exec(stmt, args...).Error; err != nil {
			return fmt.Errorf("deleting matching key tuples: %w", err)
		}
	}

	return nil
}
