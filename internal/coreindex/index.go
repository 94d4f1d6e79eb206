// Package coreindex implements the Index Core: the single-index write and
// read surface that owns one schema, one writer, one searcher holder, and
// the extensions/analyzer collaborators wired to it.
package coreindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"GoSearch/internal/analysis"
	"GoSearch/internal/commit"
	"GoSearch/internal/document"
	"GoSearch/internal/extension"
	"GoSearch/internal/index"
	"GoSearch/internal/indexing"
	"GoSearch/internal/query"
	"GoSearch/internal/robustenum"
	"GoSearch/internal/snapshot"
	"GoSearch/internal/viewgen"
	"GoSearch/internal/workctx"
)

var (
	ErrAlreadyDisposed = errors.New("coreindex: index already disposed")
	ErrInvalidArgument = errors.New("coreindex: invalid argument")
)

// Index owns everything needed to write to and search a single named
// index: its schema, directory, write buffer, searcher holder, registered
// extensions, and the view generator consulted before indexing.
type Index struct {
	Name   string
	Schema *index.Schema
	Dir    *index.IndexDir

	registry  *analysis.Registry
	factory   *analysis.Factory
	extensions *extension.Registry
	viewGen   viewgen.Generator
	logger    *slog.Logger

	writeMu sync.Mutex
	writer  *indexing.Writer
	backend index.Directory // RAM or Badger backend for a temp index; nil for plain FS

	manager *snapshot.Manager

	manifestMu      sync.RWMutex
	currentManifest *index.Manifest

	disposed  atomic.Bool
	generation atomic.Uint64
}

// Options configures a new Index.
type Options struct {
	Schema     *index.Schema
	Dir        *index.IndexDir
	Registry   *analysis.Registry
	ViewGen    viewgen.Generator
	Logger     *slog.Logger
	RunInMemory bool

	// InitialGeneration and InitialSegmentIDs seed the searcher holder when
	// opening an index that already has durable segments on disk, e.g. after
	// crash recovery. Both are zero-valued for a brand new index.
	InitialGeneration  uint64
	InitialSegmentIDs  []string
	InitialManifest    *index.Manifest
}

// New creates an Index ready to accept writes. If opts.RunInMemory is set,
// an empty RAMDirectory becomes the index's backend, and maybePromote copies
// it to the filesystem once it reaches the promotion threshold. The writer
// and Flush do not write into that backend: committed segments always go to
// opts.Dir on disk.
func New(opts Options) (*Index, error) {
	if opts.Schema == nil || opts.Dir == nil {
		return nil, fmt.Errorf("%w: schema and dir are required", ErrInvalidArgument)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = analysis.NewRegistry()
	}
	factory, err := analysis.NewFactory(registry, 64)
	if err != nil {
		return nil, fmt.Errorf("coreindex: new analyzer factory: %w", err)
	}
	gen := opts.ViewGen
	if gen == nil {
		gen = viewgen.PassThrough{}
	}

	var backend index.Directory
	if opts.RunInMemory {
		ramDir, err := index.NewRAMDirectory()
		if err != nil {
			return nil, fmt.Errorf("coreindex: new ram directory: %w", err)
		}
		backend = ramDir
	}

	idx := &Index{
		Name:       filepath.Base(opts.Dir.Root),
		Schema:     opts.Schema,
		Dir:        opts.Dir,
		registry:   registry,
		factory:    factory,
		extensions: extension.NewRegistry(),
		viewGen:    gen,
		logger:     logger.With("index", opts.Dir.Root),
		backend:         backend,
		manager:         snapshot.NewManager(opts.InitialGeneration, opts.InitialSegmentIDs, logger),
		currentManifest: opts.InitialManifest,
	}
	idx.generation.Store(opts.InitialGeneration)
	return idx, nil
}

// ensureWriter lazily opens a Writer, since one is only needed once the
// first document arrives.
func (idx *Index) ensureWriter() *indexing.Writer {
	if idx.writer == nil {
		idx.writer = indexing.NewWriter(idx.Schema, idx.registry)
	}
	return idx.writer
}

// IndexDocuments runs transform over input via a Robust Enumerator,
// appending every successfully transformed document to the write buffer,
// consulting the view generator first, then clones the resulting batch and
// fans it out to every registered extension.
func (idx *Index) IndexDocuments(transform func(src any) (document.Document, error), input []any, wctx *workctx.WorkContext, stats workctx.StorageActions) error {
	if idx.disposed.Load() {
		return ErrAlreadyDisposed
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	writer := idx.ensureWriter()

	keyOf := func(src any) string { return fmt.Sprintf("%v", src) }
	opts := robustenum.ForIndexing[any, document.Document](stats, wctx, idx.Name, keyOf)
	enumerator := robustenum.New(input, []robustenum.Transform[any, document.Document]{transform}, opts)

	// failDoc records a failure that happens after the Robust Enumerator
	// already counted this item a success: the attempt counter was
	// decremented by OnSuccess, so only the failure counter needs bumping
	// here to keep both the error sink and the stats in sync.
	failDoc := func(key string, err error) {
		if stats != nil {
			stats.IncrementIndexingFailure()
		}
		if wctx != nil {
			wctx.AddError(idx.Name, &key, err.Error())
		}
	}

	var indexed []document.Document
	for {
		doc, ok := enumerator.Next()
		if !ok {
			break
		}
		expanded, err := idx.viewGen.Generate(doc)
		if err != nil {
			failDoc(doc.ExternalID, err)
			continue
		}
		for _, d := range expanded {
			if err := writer.AddDocument(toLegacyDocument(d)); err != nil {
				failDoc(d.ExternalID, err)
				continue
			}
			indexed = append(indexed, document.Clone(d))
		}
	}

	if len(indexed) > 0 {
		if errs := idx.extensions.NotifyIndexed(indexed); len(errs) > 0 {
			idx.logger.Warn("extension notification failures", "count", len(errs))
		}
	}

	threshold := int64(ramPromotionThresholdBytes)
	if wctx != nil && wctx.Config.TempIndexInMemoryMaxBytes > 0 {
		threshold = wctx.Config.TempIndexInMemoryMaxBytes
	}
	if err := idx.maybePromote(threshold); err != nil {
		idx.logger.Warn("ram-to-disk promotion failed", "error", err)
	}

	return nil
}

// Remove marks documents for deletion by external key; applied at the
// next commit.
func (idx *Index) Remove(keys []string, wctx *workctx.WorkContext) error {
	if idx.disposed.Load() {
		return ErrAlreadyDisposed
	}
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	writer := idx.ensureWriter()
	for _, key := range keys {
		if err := writer.DeleteDocument(key); err != nil {
			if wctx != nil {
				k := key
				wctx.AddError(idx.Name, &k, err.Error())
			}
		}
	}
	return nil
}

// Flush commits the current write buffer, advancing the index's durable
// generation. A no-op when there is nothing buffered.
func (idx *Index) Flush(ctx context.Context) error {
	if idx.disposed.Load() {
		return ErrAlreadyDisposed
	}
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	if idx.writer == nil || idx.writer.DocCount() == 0 {
		return nil
	}

	committer := commit.NewCommitter(idx.Dir, commit.Options{Logger: idx.logger, SchemaVersion: idx.Schema.Version})
	data := buildSegmentData(idx.writer.Buffer())

	idx.manifestMu.RLock()
	prev := idx.currentManifest
	idx.manifestMu.RUnlock()

	result, err := committer.Commit(ctx, prev, data)
	if err != nil {
		return fmt.Errorf("coreindex: flush: %w", err)
	}

	newManifest, err := index.LoadManifest(idx.Dir, result.Generation)
	if err != nil {
		return fmt.Errorf("coreindex: flush: load new manifest: %w", err)
	}

	segmentIDs := make([]string, len(newManifest.Segments))
	for i, seg := range newManifest.Segments {
		segmentIDs[i] = seg.ID
	}
	reclaimable := idx.manager.UpdateGeneration(result.Generation, segmentIDs)
	for _, segID := range reclaimable {
		if err := os.RemoveAll(idx.Dir.SegmentDir(segID)); err != nil {
			idx.logger.Warn("failed to reclaim segment", "segment", segID, "error", err)
		}
	}

	idx.manifestMu.Lock()
	idx.currentManifest = newManifest
	idx.manifestMu.Unlock()

	idx.generation.Store(result.Generation)
	idx.writer.Abort()
	return nil
}

// Manifest returns the most recently committed manifest, or nil if nothing
// has been flushed yet.
func (idx *Index) Manifest() *index.Manifest {
	idx.manifestMu.RLock()
	defer idx.manifestMu.RUnlock()
	return idx.currentManifest
}

// Generation returns the index's current durable generation number.
func (idx *Index) Generation() uint64 {
	return idx.generation.Load()
}

// ActiveSnapshotCount reports how many leased Searchers have not yet been
// released, used to guard against deleting an index still being read.
func (idx *Index) ActiveSnapshotCount() int {
	return idx.manager.ActiveSnapshotCount()
}

// BufferedDocCount reports how many documents are sitting in the write
// buffer, not yet durable via Flush.
func (idx *Index) BufferedDocCount() int {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	if idx.writer == nil {
		return 0
	}
	return idx.writer.DocCount()
}

// Info is a point-in-time summary of an Index's durable and buffered state.
type Info struct {
	Name            string
	Generation      uint64
	ActiveSnapshots int
	SchemaVersion   uint32
	FieldCount      int
	SegmentCount    int
	TotalDocs       uint64
	TotalDocsAlive  uint64
	TotalSizeBytes  uint64
	BufferedDocs    int
}

// Info summarizes the index for status/monitoring endpoints.
func (idx *Index) Info() Info {
	info := Info{
		Name:            idx.Name,
		Generation:      idx.generation.Load(),
		ActiveSnapshots: idx.manager.ActiveSnapshotCount(),
		SchemaVersion:   idx.Schema.Version,
		FieldCount:      len(idx.Schema.Fields),
		BufferedDocs:    idx.BufferedDocCount(),
	}

	if m := idx.Manifest(); m != nil {
		info.SegmentCount = len(m.Segments)
		info.TotalDocs = m.TotalDocs
		info.TotalDocsAlive = m.TotalDocsAlive
		info.TotalSizeBytes = m.TotalSizeBytes
	}
	return info
}

// Searcher bundles the snapshot lease with the query Source view the
// Query Operation reads through. The lease guards segment reclamation;
// the Source currently reads the live write buffer (a near-real-time
// view), since an on-disk FST/postings decoder is not part of this build.
type Searcher struct {
	Snapshot *snapshot.Snapshot
	Source   query.Source
}

// Release releases the underlying snapshot lease.
func (s *Searcher) Release() error {
	if s.Snapshot == nil {
		return nil
	}
	return s.Snapshot.Release()
}

// GetSearcher leases a Searcher. Callers must call Release when done.
func (idx *Index) GetSearcher() (*Searcher, error) {
	if idx.disposed.Load() {
		return nil, ErrAlreadyDisposed
	}
	snap, err := idx.manager.Acquire()
	if err != nil {
		return nil, fmt.Errorf("coreindex: get searcher: %w", err)
	}

	var src query.Source
	if idx.writer != nil {
		src = query.NewBufferSource(idx.writer.Buffer())
	} else {
		src = query.NewBufferSource(indexing.NewWriteBuffer())
	}

	return &Searcher{Snapshot: snap, Source: src}, nil
}

// Analyzer builds the composite, per-field analyzer for this index's
// schema, sharing cached instances across calls via the index's Factory.
// forQuery makes each generator supply its query-time replacement
// (GenerateForQuerying) instead of its indexing one (GenerateForIndexing).
func (idx *Index) Analyzer(generators []analysis.AnalyzerGenerator, forQuery bool) (*analysis.CompositeAnalyzer, []func() error, error) {
	var release []func() error
	composite, err := idx.factory.Build(fieldSchemas(idx.Schema), idx.Schema.DefaultAnalyzer, generators, forQuery, &release)
	if err != nil {
		return nil, nil, fmt.Errorf("coreindex: build analyzer: %w", err)
	}
	return composite, release, nil
}

// SetExtension registers an extension under key.
func (idx *Index) SetExtension(key string, ext extension.Extension) error {
	return idx.extensions.TryAdd(key, ext)
}

// GetExtension returns the extension registered under key, if any.
func (idx *Index) GetExtension(key string) (extension.Extension, bool) {
	return idx.extensions.TryGet(key)
}

// Dispose tears the index down: extensions, then the writer, then the
// backend directory. It does not close the snapshot manager (the searcher
// holder) or any analyzer built through the factory. Teardown continues past
// individual failures,
// aggregating them with multierror so every failure reaches the caller.
func (idx *Index) Dispose() error {
	if !idx.disposed.CompareAndSwap(false, true) {
		return nil
	}

	var result *multierror.Error

	for _, err := range idx.extensions.DisposeAll() {
		result = multierror.Append(result, err)
	}

	idx.writeMu.Lock()
	if idx.writer != nil {
		idx.writer.Release()
	}
	idx.writeMu.Unlock()

	if idx.backend != nil {
		if err := idx.backend.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close backend: %w", err))
		}
	}

	idx.logger.Info("index disposed")
	return result.ErrorOrNil()
}

// Disposed reports whether Dispose has been called.
func (idx *Index) Disposed() bool {
	return idx.disposed.Load()
}

// ramPromotionThresholdBytes is the RAM backend size at which a temporary,
// in-memory index is promoted to the filesystem backend, used when the
// caller's WorkContext leaves TempIndexInMemoryMaxBytes unset.
const ramPromotionThresholdBytes = 32 * 1024 * 1024

// maybePromote moves a RAM-backed temporary index onto the filesystem once
// its compressed footprint crosses thresholdBytes. A no-op for indexes
// created without RunInMemory.
func (idx *Index) maybePromote(thresholdBytes int64) error {
	if idx.backend == nil {
		return nil
	}
	if idx.backend.SizeBytes() < thresholdBytes {
		return nil
	}

	fsDir := index.NewFSDirectory(idx.Dir)
	if err := idx.backend.Promote(fsDir); err != nil {
		return fmt.Errorf("coreindex: promote ram directory: %w", err)
	}
	if err := idx.backend.Close(); err != nil {
		idx.logger.Warn("error closing ram backend after promotion", "error", err)
	}
	idx.logger.Info("promoted temporary index to disk", "bytes", idx.backend.SizeBytes())
	idx.backend = nil
	return nil
}
