package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/core/network"
	"github.com/agenthands/uidn/internal/core/store"
	"github.com/agenthands/uidn/internal/driver"
	"github.com/agenthands/uidn/internal/inference"
)

type mockDriver struct {
	queries []string
	results map[string]neo4j.EagerResult
}

func (m *mockDriver) ExecuteWrite(ctx context.Context, statements []driver.Statement) error {
	for _, st := range statements {
		m.queries = append(m.queries, st.Query)
	}
	return nil
}

func (m *mockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.queries = append(m.queries, query)
	return m.results[query], nil
}

func (m *mockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *mockDriver) Close(ctx context.Context) error { return nil }

func testServer(t *testing.T, invoke inference.Func, st *store.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p, err := core.NewPipeline(invoke, nil, config.DefaultPrompts())
	require.NoError(t, err)

	cfg := config.DefaultPipeline()
	cfg.ProcessorTimeout = config.Duration{Duration: time.Second}
	cfg.Processor.BaseDelay = config.Duration{Duration: time.Millisecond}
	return NewServer(p, st, cfg, config.DefaultAnalysis()).SetupRouter()
}

func textOnly(ctx context.Context, m model.Modality, p inference.Payload, o inference.Options) (inference.RawOutput, error) {
	if m != model.ModalityText {
		return inference.RawOutput{}, inference.PermanentError("unsupported", nil)
	}
	return inference.RawOutput{Text: `{"entities": [{"type": "PERSON", "value": "Anna Berg", "confidence": 0.9}, {"type": "ORG", "value": "Acme", "confidence": 0.8}]}`}, nil
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/cases", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func rec(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

var (
	nodeKeys = []string{"uidn_id", "type", "canonical_value", "aliases", "member_entity_ids", "modality_coverage", "confidence"}
	edgeKeys = []string{"source_uidn", "target_uidn", "relation_type", "evidence", "confidence"}
)

// storedCase is Anna Berg - Acme - Berlin, with Oslo unlinked.
func storedCase() *mockDriver {
	node := func(id, typ, value string) *neo4j.Record {
		return rec(nodeKeys, id, typ, value, []any{value}, []any{"text:" + id[len(id)-1:]}, []any{"TEXT"}, 0.8)
	}
	return &mockDriver{results: map[string]neo4j.EagerResult{
		driver.GetCaseQuery: {Records: []*neo4j.Record{rec([]string{"case_id"}, "c-1")}},
		driver.GetCaseNodesQuery: {Records: []*neo4j.Record{
			node("UIDN-000001", "PERSON", "Anna Berg"),
			node("UIDN-000002", "ORG", "Acme"),
			node("UIDN-000003", "LOCATION", "Berlin"),
			node("UIDN-000004", "LOCATION", "Oslo"),
		}},
		driver.GetCaseEdgesQuery: {Records: []*neo4j.Record{
			rec(edgeKeys, "UIDN-000001", "UIDN-000002", "AFFILIATED_WITH", []any{"text:1", "text:2"}, 0.8),
			rec(edgeKeys, "UIDN-000002", "UIDN-000003", "BASED_IN", []any{"text:2", "text:3"}, 0.6),
		}},
		driver.ListCasesQuery: {Records: []*neo4j.Record{
			rec([]string{"case_id"}, "c-1"),
			rec([]string{"case_id"}, "c-2"),
		}},
		driver.DeleteCaseQuery: {Records: []*neo4j.Record{rec([]string{"case_id"}, "c-1")}},
	}}
}

func TestHealth(t *testing.T) {
	r := testServer(t, textOnly, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRunCase(t *testing.T) {
	d := &mockDriver{}
	r := testServer(t, textOnly, store.New(d))

	w := post(r, `{"case_id": "c-1", "text": "Anna Berg works for Acme.", "analyze": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "c-1", resp.CaseID)
	require.NotNil(t, resp.Graph)
	assert.Len(t, resp.Graph.Nodes, 2)
	require.Len(t, resp.Graph.Edges, 1)
	assert.Equal(t, "AFFILIATED_WITH", resp.Graph.Edges[0].RelationType)
	require.Len(t, resp.Batches, 3)
	assert.Equal(t, model.StatusOK, resp.Batches[0].Status)
	require.NotNil(t, resp.Analysis)
	assert.Len(t, resp.Analysis.Communities, 1)
	assert.Contains(t, d.queries, driver.SaveFusedNodesQuery)
}

func TestRunCase_GeneratesCaseID(t *testing.T) {
	r := testServer(t, textOnly, nil)
	w := post(r, `{"text": "Anna Berg"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CaseID)
	assert.Equal(t, resp.CaseID, resp.Graph.CaseID)
}

func TestRunCase_BadRequest(t *testing.T) {
	r := testServer(t, textOnly, nil)
	assert.Equal(t, http.StatusBadRequest, post(r, `{"text": `).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, `{"image": {"data": "%%%"}}`).Code)
}

func TestRunCase_AllModalitiesFailed(t *testing.T) {
	r := testServer(t, textOnly, nil)
	w := post(r, `{"case_id": "c-2", "text": "  ", "image": {"url": "https://example.org/a.png"}, "voice": {"data": "UklGRg=="}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp CaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ALL_MODALITIES_FAILED", resp.Error)
	assert.Nil(t, resp.Graph)
	require.Len(t, resp.Batches, 3)
	for _, b := range resp.Batches {
		assert.Equal(t, model.StatusFailed, b.Status)
		assert.NotEmpty(t, b.Error)
	}
}

func TestGetCase(t *testing.T) {
	r := testServer(t, textOnly, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cases/c-1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	d := &mockDriver{results: map[string]neo4j.EagerResult{
		driver.GetCaseQuery: {Records: []*neo4j.Record{{Keys: []string{"case_id"}, Values: []any{"c-1"}}}},
	}}
	r = testServer(t, textOnly, store.New(d))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cases/c-1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var g model.FusionGraph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Equal(t, "c-1", g.CaseID)
}

func TestListCases(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, get(testServer(t, textOnly, nil), http.MethodGet, "/cases").Code)

	r := testServer(t, textOnly, store.New(storedCase()))
	w := get(r, http.MethodGet, "/cases")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Cases []string `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"c-1", "c-2"}, resp.Cases)
}

func TestDeleteCase(t *testing.T) {
	d := storedCase()
	r := testServer(t, textOnly, store.New(d))

	w := get(r, http.MethodDelete, "/cases/c-1")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, d.queries, driver.DeleteCaseQuery)

	r = testServer(t, textOnly, store.New(&mockDriver{}))
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodDelete, "/cases/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(testServer(t, textOnly, nil), http.MethodDelete, "/cases/c-1").Code)
}

func TestGetEgoNetwork(t *testing.T) {
	r := testServer(t, textOnly, store.New(storedCase()))

	w := get(r, http.MethodGet, "/cases/c-1/ego?uidn=UIDN-000001&depth=1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ego network.EgoNetwork
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ego))
	assert.Equal(t, "UIDN-000001", ego.Center)
	assert.Equal(t, 1, ego.Depth)
	assert.Len(t, ego.Graph.Nodes, 2)
	require.Len(t, ego.Graph.Edges, 1)
	assert.Equal(t, "AFFILIATED_WITH", ego.Graph.Edges[0].RelationType)

	// default depth reaches Berlin but never the unlinked Oslo
	w = get(r, http.MethodGet, "/cases/c-1/ego?uidn=UIDN-000001")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ego))
	assert.Equal(t, network.DefaultEgoDepth, ego.Depth)
	assert.Len(t, ego.Graph.Nodes, 3)
	assert.NotContains(t, ego.Graph.Nodes, "UIDN-000004")
}

func TestGetEgoNetwork_Errors(t *testing.T) {
	r := testServer(t, textOnly, store.New(storedCase()))

	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodGet, "/cases/c-1/ego").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodGet, "/cases/c-1/ego?uidn=UIDN-000001&depth=-1").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodGet, "/cases/c-1/ego?uidn=UIDN-000001&depth=x").Code)
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodGet, "/cases/c-1/ego?uidn=UIDN-999999").Code)

	r = testServer(t, textOnly, store.New(&mockDriver{}))
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodGet, "/cases/nope/ego?uidn=UIDN-000001").Code)
}

func TestGetPath(t *testing.T) {
	r := testServer(t, textOnly, store.New(storedCase()))

	var resp struct {
		Path      []string `json:"path"`
		Connected bool     `json:"connected"`
	}
	w := get(r, http.MethodGet, "/cases/c-1/path?from=UIDN-000001&to=UIDN-000003")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Connected)
	assert.Equal(t, []string{"UIDN-000001", "UIDN-000002", "UIDN-000003"}, resp.Path)

	w = get(r, http.MethodGet, "/cases/c-1/path?from=UIDN-000001&to=UIDN-000004")
	require.Equal(t, http.StatusOK, w.Code)
	resp.Path = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Connected)
	assert.Empty(t, resp.Path)

	assert.Equal(t, http.StatusBadRequest, get(r, http.MethodGet, "/cases/c-1/path?from=UIDN-000001").Code)
	assert.Equal(t, http.StatusNotFound, get(r, http.MethodGet, "/cases/c-1/path?from=UIDN-000001&to=UIDN-999999").Code)
}
