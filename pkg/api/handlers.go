package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mrbrightsides/stc-analytics/pkg/ingest"
	"github.com/mrbrightsides/stc-analytics/pkg/schema"
	"github.com/mrbrightsides/stc-analytics/pkg/store"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// schemaMismatchResponse names the canonical columns a rejected batch was
// missing so the caller can fix its export instead of guessing.
type schemaMismatchResponse struct {
	Error          string   `json:"error"`
	Table          string   `json:"table"`
	MissingColumns []string `json:"missing_columns"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Ingestion ---

// handleIngest accepts a raw CSV or NDJSON payload for a record kind. The
// format comes from the `format` query parameter, falling back to the
// Content-Type header, defaulting to NDJSON.
func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	kind, ok := schema.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"unknown record kind"})

		return
	}

	format, ok := requestFormat(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"unknown payload format"})

		return
	}

	result, err := s.svc.Ingest(r.Context(), kind, format, r.Body)
	if err != nil {
		var mismatch *store.SchemaMismatchError
		if errors.As(err, &mismatch) {
			writeJSON(w, http.StatusUnprocessableEntity,
				schemaMismatchResponse{
					Error:          "batch missing required columns",
					Table:          mismatch.Table,
					MissingColumns: mismatch.Missing,
				})

			return
		}

		s.log.WithError(err).Error("Ingestion failed")
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"ingestion failed"})

		return
	}

	writeJSON(w, http.StatusOK, result)
}

func requestFormat(r *http.Request) (ingest.Format, bool) {
	if q := r.URL.Query().Get("format"); q != "" {
		return ingest.ParseFormat(q)
	}

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "text/csv") {
		return ingest.FormatCSV, true
	}

	return ingest.FormatNDJSON, true
}

// --- Snapshots ---

func (s *server) handleListCosts(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListCostRecords(r.Context())
	if err != nil {
		s.serverError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	findings, err := s.store.ListFindings(r.Context())
	if err != nil {
		s.serverError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, findings)
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		s.serverError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.store.ListTransactions(r.Context())
	if err != nil {
		s.serverError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, txs)
}

func (s *server) handleBenchValidation(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.BenchValidation(r.Context())
	if err != nil {
		s.serverError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, v)
}

// --- Knowledge base ---

func (s *server) handleListKB(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.kb.Entries())
}

func (s *server) handleLookupKB(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.kb.Lookup(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound,
			errorResponse{"unknown swc id"})

		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// --- Admin ---

func (s *server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAll(r.Context()); err != nil {
		s.serverError(w, err)

		return
	}

	s.log.Warn("All tables cleared by admin request")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context()); err != nil {
		s.serverError(w, err)

		return
	}

	s.log.Warn("Schema reset by admin request")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *server) serverError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("Request failed")
	writeJSON(w, http.StatusInternalServerError,
		errorResponse{"internal error"})
}
