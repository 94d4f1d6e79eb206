package query

import (
	"GoSearch/internal/automaton"
	"GoSearch/internal/engine"
	"GoSearch/internal/indexing"
)

// BufferSource adapts an indexing.WriteBuffer into a Source, letting the
// Query Operation run against the live, not-yet-committed buffer. This is
// the near-real-time path: coreindex.GetSearcher wraps the writer's current
// buffer in a new BufferSource and the Operation reads through this adapter
// without waiting for a commit.
type BufferSource struct {
	buf *indexing.WriteBuffer

	internalToExternal map[uint32]string
	docLens            map[string]map[uint32]uint32 // field -> docID -> length
	totalLen           map[string]int64
}

// NewBufferSource builds a Source view over buf.
func NewBufferSource(buf *indexing.WriteBuffer) *BufferSource {
	s := &BufferSource{
		buf:                buf,
		internalToExternal: make(map[uint32]string, len(buf.ExternalToInternal)),
		docLens:            make(map[string]map[uint32]uint32),
		totalLen:           make(map[string]int64),
	}
	for ext, internal := range buf.ExternalToInternal {
		s.internalToExternal[internal] = ext
	}
	for field, terms := range buf.InvertedIndex {
		lens := make(map[uint32]uint32)
		for _, pl := range terms {
			for _, e := range pl.Entries {
				lens[e.DocID] += e.Freq
			}
		}
		var total int64
		for _, l := range lens {
			total += int64(l)
		}
		s.docLens[field] = lens
		s.totalLen[field] = total
	}
	return s
}

func (s *BufferSource) Postings(field, term string) (engine.PostingsIterator, bool) {
	fieldMap, ok := s.buf.InvertedIndex[field]
	if !ok {
		return nil, false
	}
	pl, ok := fieldMap[term]
	if !ok {
		return nil, false
	}
	docIDs := make([]uint32, 0, len(pl.Entries))
	freqs := make([]uint32, 0, len(pl.Entries))
	for _, e := range pl.Entries {
		if ext, ok := s.internalToExternal[e.DocID]; ok && s.buf.Deletions[ext] {
			continue
		}
		docIDs = append(docIDs, e.DocID)
		freqs = append(freqs, e.Freq)
	}
	if len(docIDs) == 0 {
		return nil, false
	}
	return engine.NewSlicePostingsIterator(docIDs, freqs), true
}

func (s *BufferSource) ExpandTerms(field string, accept func(string) bool, limit int) []string {
	fieldMap, ok := s.buf.InvertedIndex[field]
	if !ok {
		return nil
	}
	var out []string
	for term := range fieldMap {
		if accept(term) {
			out = append(out, term)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

func (s *BufferSource) StoredFields(docID uint32) map[string][][]byte {
	return s.buf.StoredFields[docID]
}

func (s *BufferSource) ExternalID(docID uint32) (string, bool) {
	ext, ok := s.internalToExternal[docID]
	return ext, ok
}

func (s *BufferSource) DocCount() int64 {
	return int64(s.buf.DocCount - len(s.buf.Deletions))
}

func (s *BufferSource) DocLen(docID uint32, field string) uint32 {
	return s.docLens[field][docID]
}

func (s *BufferSource) AvgDocLen(field string) float32 {
	lens, ok := s.docLens[field]
	if !ok || len(lens) == 0 {
		return 1
	}
	return float32(s.totalLen[field]) / float32(len(lens))
}

func (s *BufferSource) AllDocIDs() []uint32 {
	out := make([]uint32, 0, len(s.internalToExternal))
	for docID, ext := range s.internalToExternal {
		if s.buf.Deletions[ext] {
			continue
		}
		out = append(out, docID)
	}
	return out
}

func (s *BufferSource) DocFreq(field, term string) int64 {
	fieldMap, ok := s.buf.InvertedIndex[field]
	if !ok {
		return 0
	}
	pl, ok := fieldMap[term]
	if !ok {
		return 0
	}
	return int64(len(pl.Entries))
}

// acceptPrefix builds an automaton-backed acceptance predicate for prefix
// expansion, reusing the shared Automaton contract other query types build
// against.
func acceptPrefix(prefix string) func(string) bool {
	a := automaton.NewPrefixAutomaton([]byte(prefix))
	return func(term string) bool {
		state := a.Start()
		for i := 0; i < len(term); i++ {
			state = a.Step(state, term[i])
			if !a.CanMatch(state) {
				return false
			}
		}
		return a.IsAccept(state)
	}
}
