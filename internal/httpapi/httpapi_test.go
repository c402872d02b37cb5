package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crace/crace/pkg/memory"
	"github.com/crace/crace/pkg/registry"
	"github.com/crace/crace/pkg/symbol"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := memory.New(t.TempDir())
	require.NoError(t, err)
	return NewServer(Deps{
		Registry:    registry.New(),
		SymbolIndex: symbol.NewIndex(),
		Memory:      store,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	h := newTestServer(t).Handler()
	rec, resp := doJSON(t, h, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, true, resp["symbol_index"])
	assert.Equal(t, false, resp["vector_index"])
}

func TestFilesRegisterAndGet(t *testing.T) {
	h := newTestServer(t).Handler()

	rec, resp := doJSON(t, h, "POST", "/files/register", registerFileReq{
		Filename: "m.py", Path: "/proj/m.py", Content: "print(1)", Language: "python",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["ok"])

	rec, resp = doJSON(t, h, "GET", "/files/get?path=/proj/m.py", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	file := resp["file"].(map[string]any)
	assert.Equal(t, "print(1)", file["content"])
}

func TestFilesRegister_MissingFieldFails(t *testing.T) {
	h := newTestServer(t).Handler()
	rec, resp := doJSON(t, h, "POST", "/files/register", registerFileReq{Filename: "m.py"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, resp["ok"])
}

func TestFilesGet_UnknownPathIs404(t *testing.T) {
	h := newTestServer(t).Handler()
	rec, _ := doJSON(t, h, "GET", "/files/get?path=/nope.py", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationsCreateThenActive(t *testing.T) {
	h := newTestServer(t).Handler()

	rec, resp := doJSON(t, h, "POST", "/conversations/create", createConversationReq{Title: "first"})
	require.Equal(t, http.StatusOK, rec.Code)
	conv := resp["conversation"].(map[string]any)
	assert.Equal(t, "first", conv["title"])

	rec, resp = doJSON(t, h, "GET", "/conversations/active", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := resp["conversation"].(map[string]any)
	assert.Equal(t, conv["id"], active["id"])
}

func TestMemoryAddListSearch(t *testing.T) {
	h := newTestServer(t).Handler()

	rec, _ := doJSON(t, h, "POST", "/memory/add", addMemoryReq{Category: "preference", Content: "likes dark mode", Importance: 0.8})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doJSON(t, h, "GET", "/memory/search?query=dark", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hits := resp["memories"].([]any)
	require.Len(t, hits, 1)
}

func TestIndexStats_EmptyIndex(t *testing.T) {
	h := newTestServer(t).Handler()
	rec, resp := doJSON(t, h, "GET", "/index/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), resp["total_files"])
}

func TestPromptOptimize(t *testing.T) {
	h := newTestServer(t).Handler()
	rec, resp := doJSON(t, h, "POST", "/prompt/optimize", optimizePromptReq{Text: "can you fix it"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "debug", resp["intent"])
}

func TestPromptExpand(t *testing.T) {
	h := newTestServer(t).Handler()
	rec, resp := doJSON(t, h, "POST", "/prompt/expand", expandQueryReq{Query: "auth"})
	require.Equal(t, http.StatusOK, rec.Code)
	queries := resp["queries"].([]any)
	assert.NotEmpty(t, queries)
}

func TestProjectSetRoot_NoCallbackIsBackendUnavailable(t *testing.T) {
	h := newTestServer(t).Handler()
	rec, resp := doJSON(t, h, "POST", "/project/set-root", setRootReq{Root: "/tmp/proj"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, resp["ok"])
}
