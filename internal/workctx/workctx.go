// Package workctx models the ambient context threaded through a single
// indexing or query operation: its tunable configuration, an error sink for
// partial failures, and cancellation.
package workctx

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config holds the tunables read from flags, environment, and an optional
// config file via viper, the way the host process's CLI binds them.
type Config struct {
	MaxNumberOfItemsToIndexInSingleBatch int           `mapstructure:"max_items_per_batch"`
	TempIndexInMemoryMaxBytes            int64         `mapstructure:"temp_index_in_memory_max_bytes"`
	RunInMemory                          bool          `mapstructure:"run_in_memory"`
	CommitInterval                       time.Duration `mapstructure:"commit_interval"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		MaxNumberOfItemsToIndexInSingleBatch: 1024,
		TempIndexInMemoryMaxBytes:            64 * 1024 * 1024,
		RunInMemory:                          false,
		CommitInterval:                       5 * time.Second,
	}
}

// LoadConfig binds Config from viper, which the CLI layer has already
// populated from flags/env/file.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if v == nil {
		return cfg, nil
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IndexingError records one document-level failure surfaced by an indexing
// batch without aborting the rest of the batch.
type IndexingError struct {
	IndexName   string
	DocumentKey *string
	Message     string
	At          time.Time
}

// WorkContext is the per-operation context passed down the write and query
// paths: cancellation plus an accumulating error sink.
type WorkContext struct {
	context.Context
	Config Config

	mu     sync.Mutex
	errors []IndexingError
}

// New creates a WorkContext bound to ctx and cfg.
func New(ctx context.Context, cfg Config) *WorkContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &WorkContext{Context: ctx, Config: cfg}
}

// AddError records a document-level failure. Safe for concurrent use.
func (w *WorkContext) AddError(indexName string, documentKey *string, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors = append(w.errors, IndexingError{
		IndexName:   indexName,
		DocumentKey: documentKey,
		Message:     message,
		At:          time.Now(),
	})
}

// Errors returns a snapshot of the errors accumulated so far.
func (w *WorkContext) Errors() []IndexingError {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]IndexingError, len(w.errors))
	copy(out, w.errors)
	return out
}
