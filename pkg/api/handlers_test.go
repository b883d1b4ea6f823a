package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mrbrightsides/stc-analytics/pkg/config"
	"github.com/mrbrightsides/stc-analytics/pkg/ingest"
	"github.com/mrbrightsides/stc-analytics/pkg/kb"
	"github.com/mrbrightsides/stc-analytics/pkg/store"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*server, http.Handler) {
	t.Helper()

	cfg := config.Default()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.KB.Path = filepath.Join(t.TempDir(), "absent.json")

	if mutate != nil {
		mutate(cfg)
	}

	log := logrus.New()

	st := store.NewStore(log, &cfg.Database)
	require.NoError(t, st.Start(context.Background()))

	t.Cleanup(func() {
		require.NoError(t, st.Stop())
	})

	knowledgeBase, err := kb.Load(log, cfg.KB.Path)
	require.NoError(t, err)

	s := &server{
		log:   log,
		cfg:   cfg,
		store: st,
		svc:   ingest.NewService(log, st, &cfg.Ingest),
		kb:    knowledgeBase,
	}

	return s, s.buildRouter()
}

func doRequest(
	router http.Handler,
	method, path, body string,
	decorate func(*http.Request),
) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if decorate != nil {
		decorate(req)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t, nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleIngest_CSVRoundTrip(t *testing.T) {
	_, router := newTestServer(t, nil)

	payload := "Tx Hash,Function,Gas Used\n0xabc,bookHotel,21000\n"

	rec := doRequest(router, http.MethodPost,
		"/api/v1/ingest/costs?format=csv", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Rows)

	rec = doRequest(router, http.MethodGet, "/api/v1/costs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []store.CostRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "0xabc::bookHotel", records[0].ID)
}

func TestHandleIngest_ContentTypeFallback(t *testing.T) {
	_, router := newTestServer(t, nil)

	payload := "Tx Hash,Function\n0xabc,fn\n"

	rec := doRequest(router, http.MethodPost, "/api/v1/ingest/costs", payload,
		func(req *http.Request) {
			req.Header.Set("Content-Type", "text/csv")
		})
	require.Equal(t, http.StatusOK, rec.Code)

	var result ingest.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Rows)
}

func TestHandleIngest_UnknownKind(t *testing.T) {
	_, router := newTestServer(t, nil)

	rec := doRequest(router, http.MethodPost, "/api/v1/ingest/mystery", "{}", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_UnknownFormat(t *testing.T) {
	_, router := newTestServer(t, nil)

	rec := doRequest(router, http.MethodPost,
		"/api/v1/ingest/costs?format=xml", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBenchValidation(t *testing.T) {
	_, router := newTestServer(t, nil)

	runs := `{"run_id":"r1","scenario":"booking"}` + "\n"
	txs := `{"run_id":"r1","tx_hash":"0xa"}` + "\n" +
		`{"run_id":"orphan","tx_hash":"0xb"}` + "\n"

	rec := doRequest(router, http.MethodPost, "/api/v1/ingest/runs", runs, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/ingest/tx", txs, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/v1/bench/validation", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var v store.BenchValidation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, int64(1), v.RunRows)
	assert.Equal(t, int64(2), v.TxRows)
	assert.Equal(t, int64(1), v.MatchedRunIDs)
}

func TestHandleLookupKB_NotFound(t *testing.T) {
	_, router := newTestServer(t, nil)

	rec := doRequest(router, http.MethodGet, "/api/v1/kb/SWC-999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_RequiresAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	_, router := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.Auth.Enabled = true
		cfg.Server.Auth.Users = []config.AuthUser{
			{Username: "admin", Password: string(hash)},
		}
	})

	rec := doRequest(router, http.MethodPost, "/api/v1/admin/clear", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/admin/clear", "",
		func(req *http.Request) {
			req.SetBasicAuth("admin", "wrong")
		})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/admin/clear", "",
		func(req *http.Request) {
			req.SetBasicAuth("admin", "hunter2")
		})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_ClearRemovesRows(t *testing.T) {
	_, router := newTestServer(t, nil)

	payload := "Tx Hash,Function\n0xabc,fn\n"
	rec := doRequest(router, http.MethodPost,
		"/api/v1/ingest/costs?format=csv", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodPost, "/api/v1/admin/clear", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/api/v1/costs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var records []store.CostRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	assert.Empty(t, records)
}
