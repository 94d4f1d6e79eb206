package document

import (
	"encoding/binary"
	"sync"

	"github.com/zeebo/xxh3"

	"GoSearch/internal/docvalue"
)

// cloneHashCache memoizes Object/Array values by structural hash for the
// duration of one Clone call; each Clone call starts with an empty cache.
type cloneHashCache struct {
	mu   sync.Mutex
	seen map[uint64]docvalue.Value
}

func newCloneHashCache() *cloneHashCache {
	return &cloneHashCache{seen: make(map[uint64]docvalue.Value)}
}

// Clone copies a Document. Scalar fields copy by value and Binary bytes are
// copied; Object/Array values are reused as they are, since they address
// an immutable arena by index. Indexing mode is
// re-derived rather than copied: indexed text is always analyzed, and
// anything else is stored verbatim without analysis, per the writer's
// contract.
func Clone(d Document) Document {
	out := Document{
		ExternalID: d.ExternalID,
		Fields:     make([]Field, len(d.Fields)),
	}
	cache := newCloneHashCache()
	for i, f := range d.Fields {
		out.Fields[i] = cloneField(f, cache)
	}
	return out
}

func cloneField(f Field, cache *cloneHashCache) Field {
	mode := ModeNotIndexed
	switch {
	case f.Indexed:
		mode = ModeAnalyzed
	case f.Stored:
		mode = ModeNotAnalyzedNoNorms
	}

	return Field{
		Name:     f.Name,
		Value:    cloneValue(f.Value, cache),
		Stored:   f.Stored,
		Indexed:  f.Indexed,
		Analyzed: f.Indexed,
		Mode:     mode,
	}
}

func cloneValue(v docvalue.Value, cache *cloneHashCache) docvalue.Value {
	switch v.Kind() {
	case docvalue.KindObject, docvalue.KindArray:
		h := structuralHash(v)
		cache.mu.Lock()
		if cached, ok := cache.seen[h]; ok {
			cache.mu.Unlock()
			return cached
		}
		cache.mu.Unlock()

		cloned := v // composite nodes reference an immutable arena by index,
		// so once allocated their children never mutate in place; the
		// hash-keyed cache only needs to short-circuit re-walking.
		cache.mu.Lock()
		cache.seen[h] = cloned
		cache.mu.Unlock()
		return cloned
	case docvalue.KindBinary:
		b, _ := v.AsBinary()
		return docvalue.NewBinary(b)
	default:
		return v
	}
}

// structuralHash produces a content hash for cache keying. It is not
// cryptographic; collisions only cost a redundant (but still correct) walk.
func structuralHash(v docvalue.Value) uint64 {
	var buf [9]byte
	buf[0] = byte(v.Kind())
	binary.LittleEndian.PutUint64(buf[1:], uint64(len(v.String())))
	h := xxh3.Hash(buf[:])
	return h ^ xxh3.HashString(v.String())
}
