// Package ingest drives the parse, normalize, upsert pipeline that turns
// raw CSV or NDJSON payloads into canonical table rows.
package ingest

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrbrightsides/stc-analytics/pkg/config"
	"github.com/mrbrightsides/stc-analytics/pkg/normalize"
	"github.com/mrbrightsides/stc-analytics/pkg/schema"
	"github.com/mrbrightsides/stc-analytics/pkg/store"
	"github.com/mrbrightsides/stc-analytics/pkg/tabular"
)

// Format identifies the wire format of an ingestion payload.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatNDJSON Format = "ndjson"
)

// DetectFormat guesses the payload format from a filename. NDJSON is the
// default: it is the format the follower and the upstream emitters produce.
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV
	default:
		return FormatNDJSON
	}
}

// ParseFormat maps a user-supplied format name to a Format.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, true
	case "ndjson", "jsonl", "json":
		return FormatNDJSON, true
	default:
		return "", false
	}
}

// Result reports the outcome of one ingestion call. Rows is the staged
// batch size after deduplication, not the number of database rows mutated.
type Result struct {
	Kind    schema.Kind `json:"kind"`
	Table   string      `json:"table"`
	Rows    int         `json:"rows"`
	Warning string      `json:"warning,omitempty"`
}

// Service wires the parsers and normalizers to the persistent store.
type Service struct {
	log   logrus.FieldLogger
	store store.Store
	cfg   *config.IngestConfig
}

// NewService creates a new ingestion service.
func NewService(
	log logrus.FieldLogger,
	st store.Store,
	cfg *config.IngestConfig,
) *Service {
	return &Service{
		log:   log.WithField("component", "ingest"),
		store: st,
		cfg:   cfg,
	}
}

// Ingest parses the payload, normalizes it for the record kind and upserts
// the batch. Unreadable or empty payloads are not errors: they produce a
// zero-row result carrying a warning, so a bad file can never abort a
// multi-source ingestion.
func (s *Service) Ingest(
	ctx context.Context,
	kind schema.Kind,
	format Format,
	r io.Reader,
) (*Result, error) {
	rel, ok := schema.RelationFor(kind)
	if !ok {
		return nil, fmt.Errorf("unknown record kind: %s", kind)
	}

	result := &Result{Kind: kind, Table: rel.Table}

	var table *tabular.Table

	switch format {
	case FormatCSV:
		table = tabular.ReadCSV(r)
	case FormatNDJSON:
		table = tabular.ReadNDJSON(r)
	default:
		return nil, fmt.Errorf("unknown payload format: %s", format)
	}

	if table.Empty() {
		result.Warning = "no parseable rows in payload"

		s.log.WithField("kind", kind).Warn("Payload produced no rows")

		return result, nil
	}

	batch := normalize.ForKind(kind, table, normalize.Options{
		Now:            time.Now().UTC(),
		SourceTag:      string(format),
		DefaultProject: s.cfg.DefaultProject,
		KeepZeroRows:   s.cfg.KeepZeroRows,
	})

	if batch.Empty() {
		result.Warning = "all rows filtered during normalization"

		return result, nil
	}

	rows, err := s.store.Upsert(ctx, rel.Table, batch, rel.Keys, rel.Columns)
	if err != nil {
		return nil, fmt.Errorf("ingesting %s batch: %w", kind, err)
	}

	result.Rows = rows

	s.log.WithFields(logrus.Fields{
		"kind":   kind,
		"format": format,
		"rows":   rows,
	}).Info("Batch ingested")

	return result, nil
}
