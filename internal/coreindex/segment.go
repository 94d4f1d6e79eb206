package coreindex

import (
	"github.com/goccy/go-json"

	"GoSearch/internal/commit"
	"GoSearch/internal/indexing"
)

// buildSegmentData converts a WriteBuffer into the SegmentData the
// Committer writes to tmp/ and installs. Term dictionary, postings, and
// stored fields are each flattened into their own file so the 7-phase
// protocol can checksum and verify them independently.
func buildSegmentData(buf *indexing.WriteBuffer) *commit.SegmentData {
	files := make(map[string][]byte)

	files["fst.bin"] = serializeTermDictionary(buf)
	files["postings.bin"] = serializePostings(buf)
	files["stored.bin"] = serializeStoredFields(buf)
	files["meta.json"] = serializeSegmentMeta(buf)

	var delCount uint32
	for range buf.Deletions {
		delCount++
	}

	return &commit.SegmentData{
		Files:         files,
		DocCount:      uint32(buf.DocCount),
		DocCountAlive: uint32(buf.DocCount) - delCount,
		DelCount:      delCount,
		MinDocID:      0,
		MaxDocID:      uint64(buf.NextDocID),
	}
}

func serializeTermDictionary(buf *indexing.WriteBuffer) []byte {
	type termEntry struct {
		Field string `json:"field"`
		Term  string `json:"term"`
		Count int    `json:"count"`
	}
	var entries []termEntry
	for field, terms := range buf.InvertedIndex {
		for term, pl := range terms {
			entries = append(entries, termEntry{Field: field, Term: term, Count: len(pl.Entries)})
		}
	}
	data, _ := json.Marshal(entries)
	return data
}

func serializePostings(buf *indexing.WriteBuffer) []byte {
	data, _ := json.Marshal(buf.InvertedIndex)
	return data
}

func serializeStoredFields(buf *indexing.WriteBuffer) []byte {
	data, _ := json.Marshal(buf.StoredFields)
	return data
}

func serializeSegmentMeta(buf *indexing.WriteBuffer) []byte {
	meta := map[string]interface{}{
		"doc_count":  buf.DocCount,
		"term_count": buf.TermCount,
	}
	data, _ := json.Marshal(meta)
	return data
}
