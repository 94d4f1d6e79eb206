package coreindex

import (
	"context"
	"testing"

	"GoSearch/internal/docvalue"
	"GoSearch/internal/document"
	"GoSearch/internal/index"
	"GoSearch/internal/workctx"
)

func testSchema() *index.Schema {
	return &index.Schema{
		Version:         1,
		DefaultAnalyzer: index.AnalyzerStandard,
		Fields: []index.FieldDef{
			{Name: "title", Type: index.FieldTypeText, Analyzer: index.AnalyzerStandard, Stored: true, Indexed: true},
			{Name: "category", Type: index.FieldTypeKeyword, Stored: true, Indexed: true},
		},
	}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	root := t.TempDir()
	dir := index.NewIndexDir(root)
	if err := dir.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	idx, err := New(Options{Schema: testSchema(), Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Dispose() })
	return idx
}

func docFrom(id, title, category string) document.Document {
	return document.Document{
		ExternalID: id,
		Fields: []document.Field{
			{Name: "title", Value: docvalue.NewString(title), Stored: true, Indexed: true, Analyzed: true},
			{Name: "category", Value: docvalue.NewString(category), Stored: true, Indexed: true},
		},
	}
}

func TestIndex_IndexDocuments_AddsToBuffer(t *testing.T) {
	idx := newTestIndex(t)

	input := []any{docFrom("doc-1", "red shoes", "footwear"), docFrom("doc-2", "blue hat", "apparel")}
	transform := func(src any) (document.Document, error) { return src.(document.Document), nil }

	wctx := workctx.New(context.Background(), workctx.DefaultConfig())
	if err := idx.IndexDocuments(transform, input, wctx, workctx.NewStorageActions(nil, idx.Name)); err != nil {
		t.Fatal(err)
	}

	if idx.writer.DocCount() != 2 {
		t.Errorf("DocCount = %d, want 2", idx.writer.DocCount())
	}
	if len(wctx.Errors()) != 0 {
		t.Errorf("unexpected indexing errors: %v", wctx.Errors())
	}
}

func TestIndex_IndexDocuments_PartialFailureIsolated(t *testing.T) {
	idx := newTestIndex(t)

	input := []any{docFrom("doc-1", "red shoes", "footwear"), "not-a-document"}
	transform := func(src any) (document.Document, error) {
		d, ok := src.(document.Document)
		if !ok {
			return document.Document{}, errInvalidSource
		}
		return d, nil
	}

	wctx := workctx.New(context.Background(), workctx.DefaultConfig())
	if err := idx.IndexDocuments(transform, input, wctx, workctx.NewStorageActions(nil, idx.Name)); err != nil {
		t.Fatal(err)
	}

	if idx.writer.DocCount() != 1 {
		t.Errorf("DocCount = %d, want 1 (bad item should not abort the batch)", idx.writer.DocCount())
	}
	if len(wctx.Errors()) != 1 {
		t.Errorf("len(Errors) = %d, want 1", len(wctx.Errors()))
	}
}

func TestIndex_Flush_AdvancesGeneration(t *testing.T) {
	idx := newTestIndex(t)

	input := []any{docFrom("doc-1", "red shoes", "footwear")}
	transform := func(src any) (document.Document, error) { return src.(document.Document), nil }
	wctx := workctx.New(context.Background(), workctx.DefaultConfig())
	if err := idx.IndexDocuments(transform, input, wctx, workctx.NewStorageActions(nil, idx.Name)); err != nil {
		t.Fatal(err)
	}

	if err := idx.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	if idx.manager.CurrentGeneration() != 1 {
		t.Errorf("generation = %d, want 1", idx.manager.CurrentGeneration())
	}
	if idx.writer.DocCount() != 0 {
		t.Errorf("writer buffer should be empty after flush, got %d docs", idx.writer.DocCount())
	}
}

func TestIndex_Flush_NoopWhenEmpty(t *testing.T) {
	idx := newTestIndex(t)

	if err := idx.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if idx.manager.CurrentGeneration() != 0 {
		t.Errorf("generation = %d, want 0 (nothing buffered)", idx.manager.CurrentGeneration())
	}
}

func TestIndex_GetSearcher_ReflectsBufferedWrites(t *testing.T) {
	idx := newTestIndex(t)

	input := []any{docFrom("doc-1", "red shoes", "footwear")}
	transform := func(src any) (document.Document, error) { return src.(document.Document), nil }
	wctx := workctx.New(context.Background(), workctx.DefaultConfig())
	if err := idx.IndexDocuments(transform, input, wctx, workctx.NewStorageActions(nil, idx.Name)); err != nil {
		t.Fatal(err)
	}

	searcher, err := idx.GetSearcher()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = searcher.Release() }()

	if searcher.Source.DocCount() != 1 {
		t.Errorf("Source.DocCount() = %d, want 1", searcher.Source.DocCount())
	}
}

func TestIndex_Dispose_RejectsFurtherWrites(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.Dispose(); err != nil {
		t.Fatal(err)
	}

	wctx := workctx.New(context.Background(), workctx.DefaultConfig())
	transform := func(src any) (document.Document, error) { return src.(document.Document), nil }
	err := idx.IndexDocuments(transform, []any{docFrom("doc-1", "x", "y")}, wctx, workctx.NewStorageActions(nil, idx.Name))
	if err != ErrAlreadyDisposed {
		t.Errorf("err = %v, want ErrAlreadyDisposed", err)
	}

	if _, err := idx.GetSearcher(); err != ErrAlreadyDisposed {
		t.Errorf("GetSearcher err = %v, want ErrAlreadyDisposed", err)
	}
}

func TestIndex_Extensions_NotifiedOnIndex(t *testing.T) {
	idx := newTestIndex(t)

	var notified []document.Document
	ext := &fakeExtension{onIndexed: func(docs []document.Document) error {
		notified = append(notified, docs...)
		return nil
	}}
	if err := idx.SetExtension("recorder", ext); err != nil {
		t.Fatal(err)
	}

	input := []any{docFrom("doc-1", "red shoes", "footwear")}
	transform := func(src any) (document.Document, error) { return src.(document.Document), nil }
	wctx := workctx.New(context.Background(), workctx.DefaultConfig())
	if err := idx.IndexDocuments(transform, input, wctx, workctx.NewStorageActions(nil, idx.Name)); err != nil {
		t.Fatal(err)
	}

	if len(notified) != 1 {
		t.Fatalf("notified = %d documents, want 1", len(notified))
	}
	if notified[0].ExternalID != "doc-1" {
		t.Errorf("notified external id = %q, want doc-1", notified[0].ExternalID)
	}

	if err := idx.Dispose(); err != nil {
		t.Fatal(err)
	}
	if !ext.disposed {
		t.Error("extension should be disposed along with the index")
	}
}

type fakeExtension struct {
	onIndexed func([]document.Document) error
	disposed  bool
}

func (f *fakeExtension) OnDocumentsIndexed(docs []document.Document) error {
	if f.onIndexed != nil {
		return f.onIndexed(docs)
	}
	return nil
}

func (f *fakeExtension) Dispose() error {
	f.disposed = true
	return nil
}

var errInvalidSource = errInvalidSourceType{}

type errInvalidSourceType struct{}

func (errInvalidSourceType) Error() string { return "coreindex: invalid source item" }
