package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"GoSearch/internal/index"
	"GoSearch/internal/workctx"
)

func newTestHandler(t *testing.T) (*Handler, *Manager) {
	t.Helper()
	dir := t.TempDir()
	mgr, err := NewManager(filepath.Join(dir, "data"), workctx.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return NewHandler(mgr, nil), mgr
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createTestIndex(t *testing.T, h *Handler, name string) {
	t.Helper()
	rec := doRequest(t, h.Routes(), http.MethodPost, "/indexes", map[string]any{
		"name": name,
		"fields": []index.FieldDef{
			{Name: "id", Type: index.FieldTypeKeyword, Stored: true, Indexed: true},
			{Name: "title", Type: index.FieldTypeText, Analyzer: "standard", Stored: true, Indexed: true},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create index: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CreateAndGetIndex(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestIndex(t, h, "articles")

	rec := doRequest(t, h.Routes(), http.MethodGet, "/indexes/articles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get index: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var info coreIndexInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.Name != "articles" {
		t.Errorf("Name = %q, want %q", info.Name, "articles")
	}
	if info.Fields != 2 {
		t.Errorf("Fields = %d, want 2", info.Fields)
	}
}

func TestHandler_GetIndex_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h.Routes(), http.MethodGet, "/indexes/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandler_CreateIndex_Duplicate(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestIndex(t, h, "articles")

	rec := doRequest(t, h.Routes(), http.MethodPost, "/indexes", map[string]any{
		"name":   "articles",
		"fields": []index.FieldDef{{Name: "id", Type: index.FieldTypeKeyword, Stored: true, Indexed: true}},
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestHandler_IngestAndSearch(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestIndex(t, h, "articles")

	rec := doRequest(t, h.Routes(), http.MethodPost, "/indexes/articles/documents", map[string]any{
		"documents": []map[string]any{
			{"id": "doc-1", "title": "Introduction to Search Engines"},
			{"id": "doc-2", "title": "Advanced Query Processing"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h.Routes(), http.MethodPost, "/indexes/articles/search", map[string]any{
		"query": map[string]string{"type": "term", "field": "title", "value": "search"},
		"fields": []string{"id", "title"},
		"top_k":  10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TotalHits int64 `json:"total_hits"`
		Hits      []hitDTO
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.TotalHits != 1 {
		t.Errorf("TotalHits = %d, want 1", resp.TotalHits)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].ID != "doc-1" {
		t.Errorf("Hits = %+v, want a single hit for doc-1", resp.Hits)
	}
}

func TestHandler_Commit_RefusesWhenEmpty(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestIndex(t, h, "articles")

	rec := doRequest(t, h.Routes(), http.MethodPost, "/indexes/articles/commit", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d, body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestHandler_Commit_AdvancesGeneration(t *testing.T) {
	h, mgr := newTestHandler(t)
	createTestIndex(t, h, "articles")

	rec := doRequest(t, h.Routes(), http.MethodPost, "/indexes/articles/documents", map[string]any{
		"documents": []map[string]any{{"id": "doc-1", "title": "Introduction to Search Engines"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h.Routes(), http.MethodPost, "/indexes/articles/commit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	inst, err := mgr.GetIndex("articles")
	if err != nil {
		t.Fatalf("GetIndex: %v", err)
	}
	if inst.Core.Generation() == 0 {
		t.Error("expected a nonzero generation after commit")
	}
}

func TestHandler_DeleteDocument(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestIndex(t, h, "articles")

	rec := doRequest(t, h.Routes(), http.MethodPost, "/indexes/articles/documents", map[string]any{
		"documents": []map[string]any{{"id": "doc-1", "title": "Introduction to Search Engines"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h.Routes(), http.MethodDelete, "/indexes/articles/documents", map[string]any{"id": "doc-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_DeleteIndex(t *testing.T) {
	h, _ := newTestHandler(t)
	createTestIndex(t, h, "articles")

	rec := doRequest(t, h.Routes(), http.MethodDelete, "/indexes/articles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete index: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h.Routes(), http.MethodGet, "/indexes/articles", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
