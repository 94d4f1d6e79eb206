package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"GoSearch/internal/analysis"
	"GoSearch/internal/coreindex"
	"GoSearch/internal/index"
	"GoSearch/internal/recovery"
	"GoSearch/internal/workctx"
)

var (
	ErrIndexNotFound = errors.New("index not found")
	ErrIndexExists   = errors.New("index already exists")
	ErrIndexEmpty    = errors.New("no documents to commit")
)

// IndexInstance is the server-facing handle on one hosted Index: the Index
// Core itself plus the long-lived StorageActions counters the core intends
// callers to own. A fresh WorkContext is built per request, since its error
// sink must not accumulate across unrelated ingest calls.
type IndexInstance struct {
	Name  string
	Core  *coreindex.Index
	Stats workctx.StorageActions
}

// NewWorkContext builds a WorkContext for a single request, bound to ctx and
// the Manager's configured tunables.
func (m *Manager) NewWorkContext(ctx context.Context) *workctx.WorkContext {
	return workctx.New(ctx, m.cfg)
}

// Manager hosts every named Index within a single process: creation,
// deletion, lookup, and the recovery pass that reopens indexes left on disk
// by a previous run.
type Manager struct {
	rootDir  *index.RootDir
	logger   *slog.Logger
	registry *analysis.Registry
	cfg      workctx.Config

	mu      sync.RWMutex
	indexes map[string]*IndexInstance
}

// NewManager creates a Manager rooted at dataDir, loading and recovering
// every index already present on disk.
func NewManager(dataDir string, cfg workctx.Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rootDir := index.NewRootDir(dataDir)
	if err := rootDir.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure root directories: %w", err)
	}

	m := &Manager{
		rootDir:  rootDir,
		logger:   logger,
		registry: analysis.NewRegistry(),
		cfg:      cfg,
		indexes:  make(map[string]*IndexInstance),
	}

	if err := m.loadExistingIndexes(); err != nil {
		return nil, fmt.Errorf("load existing indexes: %w", err)
	}
	return m, nil
}

func (m *Manager) loadExistingIndexes() error {
	names, err := m.rootDir.ListIndexes()
	if err != nil {
		return err
	}

	for _, name := range names {
		m.logger.Info("loading index", "name", name)
		inst, err := m.openIndex(name)
		if err != nil {
			m.logger.Error("failed to load index", "name", name, "error", err)
			continue
		}
		m.indexes[name] = inst
		m.logger.Info("index loaded", "name", name, "generation", inst.Core.Generation())
	}
	return nil
}

// openIndex reopens an index already on disk, running crash recovery first
// so the Index Core starts from a verified, consistent manifest.
func (m *Manager) openIndex(name string) (*IndexInstance, error) {
	idxDir := m.rootDir.IndexDir(name)

	schema, err := index.LoadSchema(idxDir)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	recoveryOpts := recovery.DefaultOptions()
	recoveryOpts.Logger = m.logger.With("index", name, "phase", "recovery")
	result, err := recovery.Recover(idxDir, recoveryOpts)
	if err != nil {
		return nil, fmt.Errorf("recovery: %w", err)
	}

	var segmentIDs []string
	if result.Manifest != nil {
		segmentIDs = make([]string, len(result.Manifest.Segments))
		for i, seg := range result.Manifest.Segments {
			segmentIDs[i] = seg.ID
		}
	}

	core, err := coreindex.New(coreindex.Options{
		Schema:            schema,
		Dir:               idxDir,
		Registry:          m.registry,
		Logger:            m.logger.With("index", name),
		RunInMemory:       m.cfg.RunInMemory,
		InitialGeneration: result.Generation,
		InitialSegmentIDs: segmentIDs,
		InitialManifest:   result.Manifest,
	})
	if err != nil {
		return nil, fmt.Errorf("open index core: %w", err)
	}

	return m.newInstance(name, core), nil
}

func (m *Manager) newInstance(name string, core *coreindex.Index) *IndexInstance {
	return &IndexInstance{
		Name:  name,
		Core:  core,
		Stats: workctx.NewStorageActions(nil, name),
	}
}

// CreateIndex creates a new, empty index with the given schema.
func (m *Manager) CreateIndex(name string, schema *index.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.indexes[name]; exists {
		return ErrIndexExists
	}

	if err := schema.Validate(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	schema.CreatedAt = time.Now().UTC()
	if schema.Version == 0 {
		schema.Version = 1
	}

	idxDir := m.rootDir.IndexDir(name)
	if err := idxDir.EnsureDirectories(); err != nil {
		return fmt.Errorf("create index directories: %w", err)
	}

	if err := index.WriteSchema(idxDir, schema); err != nil {
		_ = os.RemoveAll(idxDir.Root)
		return fmt.Errorf("write schema: %w", err)
	}

	core, err := coreindex.New(coreindex.Options{
		Schema:      schema,
		Dir:         idxDir,
		Registry:    m.registry,
		Logger:      m.logger.With("index", name),
		RunInMemory: m.cfg.RunInMemory,
	})
	if err != nil {
		_ = os.RemoveAll(idxDir.Root)
		return fmt.Errorf("open index core: %w", err)
	}

	m.indexes[name] = m.newInstance(name, core)
	m.logger.Info("index created", "name", name)
	return nil
}

// DeleteIndex removes an index and all of its data, refusing while any
// reader still holds a live snapshot.
func (m *Manager) DeleteIndex(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, exists := m.indexes[name]
	if !exists {
		return ErrIndexNotFound
	}

	if n := inst.Core.ActiveSnapshotCount(); n > 0 {
		return fmt.Errorf("cannot delete index with %d active readers", n)
	}

	if err := inst.Core.Dispose(); err != nil {
		m.logger.Warn("error disposing index before delete", "name", name, "error", err)
	}

	idxDir := m.rootDir.IndexDir(name)
	if err := os.RemoveAll(idxDir.Root); err != nil {
		return fmt.Errorf("remove index directory: %w", err)
	}

	delete(m.indexes, name)
	m.logger.Info("index deleted", "name", name)
	return nil
}

// GetIndex returns the instance registered under name.
func (m *Manager) GetIndex(name string) (*IndexInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, exists := m.indexes[name]
	if !exists {
		return nil, ErrIndexNotFound
	}
	return inst, nil
}

// ListIndexes returns the names of every hosted index.
func (m *Manager) ListIndexes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.indexes))
	for name := range m.indexes {
		names = append(names, name)
	}
	return names
}

// FlushAll commits every hosted index's buffered writes, continuing past a
// failed flush so one stuck index cannot block the others. Intended to be
// called on a timer by the server's auto-commit loop.
func (m *Manager) FlushAll(ctx context.Context) error {
	m.mu.RLock()
	instances := make([]*IndexInstance, 0, len(m.indexes))
	for _, inst := range m.indexes {
		instances = append(instances, inst)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, inst := range instances {
		if err := inst.Core.Flush(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush %s: %w", inst.Name, err)
		}
	}
	return firstErr
}

// Close disposes every hosted index, continuing past a failed dispose so a
// shutdown always attempts every index, and returns the first error.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, inst := range m.indexes {
		if err := inst.Core.Dispose(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("dispose %s: %w", name, err)
		}
	}
	return firstErr
}
