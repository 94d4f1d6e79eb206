package query

import "GoSearch/internal/engine"

// Source is the minimal read surface the Query Operation needs from
// whatever is backing the current snapshot: term postings, stored field
// bytes, and the corpus statistics BM25 requires.
type Source interface {
	// Postings returns an iterator over the documents containing term in
	// field, or (nil, false) if the term is absent.
	Postings(field, term string) (engine.PostingsIterator, bool)

	// ExpandTerms returns every indexed term in field accepted by the
	// automaton, used for prefix/wildcard/fuzzy query expansion.
	ExpandTerms(field string, accept func(term string) bool, limit int) []string

	// StoredFields returns the raw stored bytes for docID, keyed by field
	// name. A name maps to more than one value when the field was indexed
	// as multi-valued (an array).
	StoredFields(docID uint32) map[string][][]byte

	// ExternalID returns the external document ID for an internal docID.
	ExternalID(docID uint32) (string, bool)

	// DocCount returns the total number of live documents.
	DocCount() int64

	// DocLen returns the analyzed length of field in docID, used for BM25
	// length normalization.
	DocLen(docID uint32, field string) uint32

	// AvgDocLen returns the average analyzed length of field across the
	// corpus.
	AvgDocLen(field string) float32

	// DocFreq returns the number of documents containing term in field.
	DocFreq(field, term string) int64

	// AllDocIDs returns every live internal document ID, used for
	// MatchAllQuery.
	AllDocIDs() []uint32
}
