package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/klauspost/compress/zstd"

	"GoSearch/internal/storage"
)

// Directory is the storage backend for an index's segment bytes. The
// default backend is the filesystem (IndexDir + internal/storage helpers,
// used directly by internal/commit and internal/recovery); Directory exists
// so a temporary index can run fully in memory and later be promoted to
// durable storage without the caller needing to know which backend is
// underneath.
type Directory interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	RemoveFile(name string) error
	List() ([]string, error)
	SizeBytes() int64
	Close() error

	// Promote copies every file in this Directory into dst. Used for the
	// RAM-to-disk promotion path; dst is typically an FSDirectory or a
	// BadgerDirectory.
	Promote(dst Directory) error
}

// RAMDirectory holds segment file bytes entirely in memory, used for
// temporary indexes that only get promoted to disk once they outgrow
// TempIndexInMemoryMaxBytes.
type RAMDirectory struct {
	mu    sync.RWMutex
	files map[string][]byte
	size  int64

	// compress applies zstd to values at rest to approximate the disk
	// footprint the index would have once promoted, so size-based
	// promotion decisions are not wildly optimistic.
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewRAMDirectory creates an empty in-memory directory.
func NewRAMDirectory() (*RAMDirectory, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("ram directory: new zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("ram directory: new zstd decoder: %w", err)
	}
	return &RAMDirectory{files: make(map[string][]byte), enc: enc, dec: dec}, nil
}

func (d *RAMDirectory) ReadFile(name string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	raw, ok := d.files[name]
	if !ok {
		return nil, fmt.Errorf("ram directory: %s: not found", name)
	}
	return d.dec.DecodeAll(raw, nil)
}

func (d *RAMDirectory) WriteFile(name string, data []byte) error {
	compressed := d.enc.EncodeAll(data, nil)
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.files[name]; ok {
		d.size -= int64(len(old))
	}
	d.files[name] = compressed
	d.size += int64(len(compressed))
	return nil
}

func (d *RAMDirectory) RemoveFile(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.files[name]; ok {
		d.size -= int64(len(old))
		delete(d.files, name)
	}
	return nil
}

func (d *RAMDirectory) List() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.files))
	for name := range d.files {
		names = append(names, name)
	}
	return names, nil
}

func (d *RAMDirectory) SizeBytes() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.size
}

func (d *RAMDirectory) Close() error {
	d.enc.Close()
	return d.dec.Close()
}

// Promote copies every file into dst, preserving names and decompressed
// content.
func (d *RAMDirectory) Promote(dst Directory) error {
	names, err := d.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := d.ReadFile(name)
		if err != nil {
			return fmt.Errorf("ram directory: promote %s: %w", name, err)
		}
		if err := dst.WriteFile(name, data); err != nil {
			return fmt.Errorf("ram directory: promote %s: %w", name, err)
		}
	}
	return nil
}

// BadgerDirectory stores segment file bytes as values in an embedded
// badger key-value store, keyed by file name. It is an alternative durable
// backend to the plain filesystem layout, useful when many small indexes
// would otherwise create a large number of small files.
type BadgerDirectory struct {
	db *badger.DB
}

// OpenBadgerDirectory opens (creating if absent) a badger store at path.
func OpenBadgerDirectory(path string) (*BadgerDirectory, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger directory: open: %w", err)
	}
	return &BadgerDirectory{db: db}, nil
}

func (d *BadgerDirectory) ReadFile(name string) ([]byte, error) {
	var out []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger directory: read %s: %w", name, err)
	}
	return out, nil
}

func (d *BadgerDirectory) WriteFile(name string, data []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(name), data)
	})
}

func (d *BadgerDirectory) RemoveFile(name string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(name))
	})
}

func (d *BadgerDirectory) List() ([]string, error) {
	var names []string
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, string(it.Item().Key()))
		}
		return nil
	})
	return names, err
}

func (d *BadgerDirectory) SizeBytes() int64 {
	lsm, vlog := d.db.Size()
	return lsm + vlog
}

func (d *BadgerDirectory) Close() error {
	return d.db.Close()
}

func (d *BadgerDirectory) Promote(dst Directory) error {
	names, err := d.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := d.ReadFile(name)
		if err != nil {
			return err
		}
		if err := dst.WriteFile(name, data); err != nil {
			return err
		}
	}
	return nil
}

// FSDirectory adapts the existing filesystem IndexDir layout to the
// Directory interface, storing each named blob as a file under a blobs/
// directory in the index root (outside the segments/manifests/tmp layout the commit and
// recovery protocols manage themselves).
type FSDirectory struct {
	dir *IndexDir
}

// NewFSDirectory wraps an IndexDir as a Directory.
func NewFSDirectory(dir *IndexDir) *FSDirectory {
	return &FSDirectory{dir: dir}
}

func (d *FSDirectory) path(name string) string {
	return filepath.Join(d.dir.Root, "blobs", name)
}

func (d *FSDirectory) ReadFile(name string) ([]byte, error) {
	data, err := os.ReadFile(d.path(name))
	if err != nil {
		return nil, fmt.Errorf("fs directory: read %s: %w", name, err)
	}
	return data, nil
}

func (d *FSDirectory) WriteFile(name string, data []byte) error {
	dir := filepath.Dir(d.path(name))
	if err := storage.EnsureDir(dir); err != nil {
		return fmt.Errorf("fs directory: ensure dir for %s: %w", name, err)
	}
	if err := storage.WriteFileSync(d.path(name), data, storage.FilePerm); err != nil {
		return fmt.Errorf("fs directory: write %s: %w", name, err)
	}
	return storage.FsyncDir(dir)
}

func (d *FSDirectory) RemoveFile(name string) error {
	if err := os.Remove(d.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fs directory: remove %s: %w", name, err)
	}
	return nil
}

func (d *FSDirectory) List() ([]string, error) {
	return storage.ListFiles(filepath.Join(d.dir.Root, "blobs"))
}

func (d *FSDirectory) SizeBytes() int64 {
	names, err := d.List()
	if err != nil {
		return 0
	}
	var total int64
	for _, name := range names {
		if info, err := os.Stat(d.path(name)); err == nil {
			total += info.Size()
		}
	}
	return total
}

func (d *FSDirectory) Close() error { return nil }

func (d *FSDirectory) Promote(dst Directory) error {
	names, err := d.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		data, err := d.ReadFile(name)
		if err != nil {
			return err
		}
		if err := dst.WriteFile(name, data); err != nil {
			return err
		}
	}
	return nil
}
