package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"GoSearch/internal/analysis"
	"GoSearch/internal/coreindex"
	"GoSearch/internal/docvalue"
	"GoSearch/internal/document"
	"GoSearch/internal/index"
	"GoSearch/internal/query"
)

// Handler holds HTTP handlers for the GoSearch API.
type Handler struct {
	mgr    *Manager
	logger *slog.Logger
}

// NewHandler creates a new Handler backed by the given Manager.
func NewHandler(mgr *Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mgr: mgr, logger: logger}
}

// Routes returns a chi.Router with every API route registered.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/indexes", h.handleListIndexes)
	r.Post("/indexes", h.handleCreateIndex)
	r.Get("/indexes/{name}", h.handleGetIndex)
	r.Delete("/indexes/{name}", h.handleDeleteIndex)

	r.Post("/indexes/{name}/documents", h.handleIngestDocuments)
	r.Delete("/indexes/{name}/documents", h.handleDeleteDocument)

	r.Post("/indexes/{name}/commit", h.handleCommit)
	r.Post("/indexes/{name}/search", h.handleSearch)

	return r
}

// --- Index lifecycle ---

func (h *Handler) handleListIndexes(w http.ResponseWriter, r *http.Request) {
	names := h.mgr.ListIndexes()

	infos := make([]coreIndexInfo, 0, len(names))
	for _, name := range names {
		inst, err := h.mgr.GetIndex(name)
		if err != nil {
			continue
		}
		infos = append(infos, toInfoDTO(inst.Core.Info()))
	}

	writeJSON(w, http.StatusOK, map[string]any{"indexes": infos})
}

func (h *Handler) handleCreateIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string          `json:"name"`
		DefaultAnalyzer string          `json:"default_analyzer"`
		Fields          []index.FieldDef `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "index name is required")
		return
	}

	schema := &index.Schema{DefaultAnalyzer: req.DefaultAnalyzer, Fields: req.Fields}

	if err := h.mgr.CreateIndex(req.Name, schema); err != nil {
		if errors.Is(err, ErrIndexExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "name": req.Name})
}

func (h *Handler) handleGetIndex(w http.ResponseWriter, r *http.Request) {
	inst, err := h.requireIndex(w, r)
	if err != nil {
		return
	}
	writeJSON(w, http.StatusOK, toInfoDTO(inst.Core.Info()))
}

func (h *Handler) handleDeleteIndex(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.mgr.DeleteIndex(name); err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
}

// --- Document ingestion / deletion ---

func (h *Handler) handleIngestDocuments(w http.ResponseWriter, r *http.Request) {
	inst, err := h.requireIndex(w, r)
	if err != nil {
		return
	}

	var req struct {
		Documents []map[string]any `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "no documents provided")
		return
	}

	input := make([]any, len(req.Documents))
	for i, d := range req.Documents {
		input[i] = d
	}

	transform := func(src any) (document.Document, error) {
		raw := src.(map[string]any)
		id, _ := raw["id"].(string)
		return documentFromJSON(inst.Core.Schema, id, raw)
	}

	wctx := h.mgr.NewWorkContext(r.Context())
	if err := inst.Core.IndexDocuments(transform, input, wctx, inst.Stats); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "accepted",
		"documents_received": len(input),
		"errors":             wctx.Errors(),
	})
}

func (h *Handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	inst, err := h.requireIndex(w, r)
	if err != nil {
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	wctx := h.mgr.NewWorkContext(r.Context())
	if err := inst.Core.Remove([]string{req.ID}, wctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": req.ID})
}

// --- Commit ---

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	inst, err := h.requireIndex(w, r)
	if err != nil {
		return
	}

	if inst.Core.BufferedDocCount() == 0 {
		writeError(w, http.StatusBadRequest, ErrIndexEmpty.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	before := time.Now()
	if err := inst.Core.Flush(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "commit failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "committed",
		"generation":  inst.Core.Generation(),
		"duration_ms": time.Since(before).Milliseconds(),
	})
}

// --- Search ---

type searchRequest struct {
	Query struct {
		Type  string `json:"type"`
		Field string `json:"field"`
		Value string `json:"value"`
	} `json:"query"`
	Fields   []string `json:"fields"`
	Distinct bool     `json:"distinct"`
	From     int      `json:"from"`
	TopK     int      `json:"top_k"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	inst, err := h.requireIndex(w, r)
	if err != nil {
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	start := time.Now()

	searcher, err := inst.Core.GetSearcher()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to acquire searcher: "+err.Error())
		return
	}
	defer func() { _ = searcher.Release() }()

	analyzer, release, err := inst.Core.Analyzer(nil, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build analyzer: "+err.Error())
		return
	}
	defer runReleases(release)

	q, err := buildQuery(analyzer, req.Query.Type, req.Query.Field, req.Query.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	validFields := make([]string, 0, len(inst.Core.Schema.Fields))
	for _, f := range inst.Core.Schema.Fields {
		validFields = append(validFields, f.Name)
	}

	op := query.NewOperation(searcher.Source, validFields, nil, query.FieldsToFetch{Fields: req.Fields, Distinct: req.Distinct}, nil)
	result, err := op.Execute(q, req.From, req.TopK)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"took_ms":    time.Since(start).Milliseconds(),
		"total_hits": result.TotalHits,
		"skipped":    result.Skipped,
		"hits":       toHitDTOs(result.Hits),
	})
}

type hitDTO struct {
	ID     string         `json:"id"`
	Score  float32        `json:"score"`
	Fields map[string]any `json:"fields"`
}

// toHitDTOs projects each Hit's docvalue.Value fields to plain JSON values.
// Object/Array values fall back to their textual summary, since rendering
// them fully would require walking back into the document Graph they were
// parsed from, which the query projection boundary intentionally discards.
func toHitDTOs(hits []query.Hit) []hitDTO {
	out := make([]hitDTO, len(hits))
	for i, h := range hits {
		fields := make(map[string]any, len(h.Fields))
		for name, v := range h.Fields {
			fields[name] = jsonValue(v)
		}
		out[i] = hitDTO{ID: h.ExternalID, Score: h.Score, Fields: fields}
	}
	return out
}

func jsonValue(v docvalue.Value) any {
	switch v.Kind() {
	case docvalue.KindNull:
		return nil
	case docvalue.KindBool:
		b, _ := v.AsBool()
		return b
	case docvalue.KindInt:
		i, _ := v.AsInt()
		return i
	case docvalue.KindLong:
		i, _ := v.AsLong()
		return i
	case docvalue.KindDouble:
		f, _ := v.AsDouble()
		return f
	case docvalue.KindString, docvalue.KindDate:
		s, _ := v.AsString()
		return s
	default:
		return v.String()
	}
}

// buildQuery turns a (type, field, value) request triple into a query AST
// node. Term/phrase queries run value through the query-time analyzer
// first, so they match what the same text would have indexed as; prefix and
// fuzzy values are only lowercased, and wildcard and regex patterns are
// passed through raw.
func buildQuery(analyzer *analysis.CompositeAnalyzer, qType, field, value string) (query.Query, error) {
	if qType == "match_all" || (field == "" && value == "") {
		return &query.MatchAllQuery{}, nil
	}
	if field == "" {
		return nil, errInvalidQueryField
	}

	switch qType {
	case "prefix":
		return &query.PrefixQuery{Field: field, Prefix: strings.ToLower(value)}, nil
	case "wildcard":
		return &query.WildcardQuery{Field: field, Pattern: value}, nil
	case "fuzzy":
		return &query.FuzzyQuery{Field: field, Term: strings.ToLower(value)}, nil
	case "regex":
		return &query.RegexQuery{Field: field, Pattern: value}, nil
	default:
		tokens := analyzer.Analyze(field, value)
		if len(tokens) == 0 {
			return &query.MatchNoneQuery{}, nil
		}
		if len(tokens) == 1 {
			return &query.TermQuery{Field: field, Term: tokens[0].Term}, nil
		}
		terms := make([]string, len(tokens))
		for i, t := range tokens {
			terms[i] = t.Term
		}
		return &query.PhraseQuery{Field: field, Terms: terms}, nil
	}
}

var errInvalidQueryField = errors.New("query.field is required")

// --- Helpers ---

func (h *Handler) requireIndex(w http.ResponseWriter, r *http.Request) (*IndexInstance, error) {
	name := chi.URLParam(r, "name")
	inst, err := h.mgr.GetIndex(name)
	if err != nil {
		if errors.Is(err, ErrIndexNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return nil, err
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, err
	}
	return inst, nil
}

func runReleases(release []func() error) {
	for _, fn := range release {
		_ = fn()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": message}})
}

type coreIndexInfo struct {
	Name            string `json:"name"`
	Generation      uint64 `json:"generation"`
	ActiveSnapshots int    `json:"active_snapshots"`
	SchemaVersion   uint32 `json:"schema_version"`
	Fields          int    `json:"fields"`
	Segments        int    `json:"segments"`
	TotalDocs       uint64 `json:"total_docs"`
	TotalDocsAlive  uint64 `json:"total_docs_alive"`
	TotalSizeBytes  uint64 `json:"total_size_bytes"`
	TotalSizeHuman  string `json:"total_size_human"`
	BufferedDocs    int    `json:"buffer_docs"`
}

func toInfoDTO(info coreindex.Info) coreIndexInfo {
	return coreIndexInfo{
		Name:            info.Name,
		Generation:      info.Generation,
		ActiveSnapshots: info.ActiveSnapshots,
		SchemaVersion:   info.SchemaVersion,
		Fields:          info.FieldCount,
		Segments:        info.SegmentCount,
		TotalDocs:       info.TotalDocs,
		TotalDocsAlive:  info.TotalDocsAlive,
		TotalSizeBytes:  info.TotalSizeBytes,
		TotalSizeHuman:  humanize.Bytes(info.TotalSizeBytes),
		BufferedDocs:    info.BufferedDocs,
	}
}
