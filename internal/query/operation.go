// Package query implements query AST types, rewrite optimizations, and the
// Query Operation: the orchestration that validates, rewrites, executes,
// pages, and projects a query against a leased Source.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/prataprc/collatejson"

	"GoSearch/internal/docvalue"

	"GoSearch/internal/document"
	"GoSearch/internal/scoring"
)

// distinctCodec turns a hit's projected field values into byte-comparable
// collation keys so two structurally equal projections dedupe identically
// regardless of field iteration order.
var distinctCodec = collatejson.NewCodec(64)

var (
	ErrInvalidArgument  = errors.New("query: invalid argument")
	ErrUnknownField     = errors.New("query: field not declared in schema")
	ErrMaxRescalePasses = errors.New("query: exceeded maximum page rescale passes")
)

// MaxRescalePasses bounds the paging/distinct rescale loop (step 8 of the
// operation algorithm) so a pathological skip rate cannot spin forever.
const MaxRescalePasses = 8

// Operation executes a single query against a Source: validate the
// referenced fields, rewrite and trigger the query, run it, page and
// dedupe the results, and project each hit's stored fields.
type Operation struct {
	Source           Source
	ValidFields      map[string]bool
	Triggers         []Trigger
	Fields           FieldsToFetch
	IncludeInResults func(Hit) bool
}

// NewOperation constructs an Operation. validFields is the set of declared
// schema field names (plus the well-known distance field, if relevant).
func NewOperation(source Source, validFields []string, triggers []Trigger, fields FieldsToFetch, include func(Hit) bool) *Operation {
	vf := make(map[string]bool, len(validFields))
	for _, f := range validFields {
		vf[f] = true
	}
	return &Operation{Source: source, ValidFields: vf, Triggers: triggers, Fields: fields, IncludeInResults: include}
}

// Execute runs q, returning the page of results starting at start (0-based
// hit offset) with at most pageSize hits (PageSizeAll for everything).
func (op *Operation) Execute(q Query, start, pageSize int) (*Result, error) {
	if err := op.validateFields(q); err != nil {
		return nil, err
	}

	rewritten := Rewrite(q)
	rewritten = applyTriggers(rewritten, op.Triggers)

	matched, leaves, err := op.eval(rewritten)
	if err != nil {
		return nil, err
	}

	docIDs := make([]uint32, 0, len(matched))
	for id := range matched {
		docIDs = append(docIDs, id)
	}

	scored := op.score(docIDs, leaves)
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].DocID < scored[j].DocID
	})

	totalHits := int64(len(scored))

	// seen carries distinct-key membership across every projection this
	// call makes: both the rescale passes below and, via the pre-seed
	// right after, the pages that came before start. Without the pre-seed
	// a later page would re-admit a value already emitted on an earlier
	// one, since each Execute call scores and pages independently.
	seen := make(map[string]struct{})

	if pageSize == PageSizeAll {
		hits, skipped := op.project(scored, 0, len(scored), seen)
		return &Result{Hits: hits, TotalHits: totalHits, Skipped: skipped}, nil
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	if op.Fields.Distinct && start > 0 {
		op.project(scored, 0, start, seen)
	}

	originalPageSize := pageSize
	pos := start
	var hits []Hit
	var totalSkipped int

	for pass := 0; pass < MaxRescalePasses; pass++ {
		if pos >= len(scored) {
			break
		}
		end := pos + pageSize
		if end > len(scored) {
			end = len(scored)
		}
		pageHits, skipped := op.project(scored, pos, end, seen)
		hits = append(hits, pageHits...)
		totalSkipped += skipped

		if len(hits) >= originalPageSize || end >= len(scored) || skipped == 0 {
			if len(hits) > originalPageSize {
				hits = hits[:originalPageSize]
			}
			return &Result{Hits: hits, TotalHits: totalHits, Skipped: totalSkipped}, nil
		}

		pos = end
		pageSize = skipped * originalPageSize
		if pageSize <= 0 {
			pageSize = originalPageSize
		}
	}

	return nil, fmt.Errorf("%w: after %d passes", ErrMaxRescalePasses, MaxRescalePasses)
}

// project walks scored[from:to], applying distinct filtering and the
// IncludeInResults predicate, returning the surviving hits plus how many
// candidates were skipped by those filters. seen is shared across every
// project call within one Execute so distinctness holds across both
// rescale passes and the page boundary at start.
func (op *Operation) project(scored []scoredDoc, from, to int, seen map[string]struct{}) ([]Hit, int) {
	var hits []Hit
	skipped := 0

	for i := from; i < to; i++ {
		sd := scored[i]
		stored := op.Source.StoredFields(sd.DocID)
		fields := CreateProperty(stored, op.Fields.Fields)

		ext, _ := op.Source.ExternalID(sd.DocID)
		hit := Hit{ExternalID: ext, Score: sd.Score, Fields: fields}

		if op.Fields.Distinct {
			key := distinctKey(fields)
			if _, dup := seen[key]; dup {
				skipped++
				continue
			}
			seen[key] = struct{}{}
		}

		if op.IncludeInResults != nil && !op.IncludeInResults(hit) {
			skipped++
			continue
		}

		hits = append(hits, hit)
	}
	return hits, skipped
}

// distinctKey encodes a hit's projected fields into a byte-comparable
// collation key, sorting by field name first so iteration order never
// affects the result.
func distinctKey(fields map[string]docvalue.Value) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var key []byte
	for _, name := range names {
		raw, err := json.Marshal(fields[name].String())
		if err != nil {
			continue
		}
		key = distinctCodec.Encode(raw, key)
		key = append(key, 0x00)
	}
	return string(key)
}

type scoredDoc struct {
	DocID uint32
	Score float32
}

func (op *Operation) score(docIDs []uint32, leaves []leafTerm) []scoredDoc {
	scorer := scoring.NewBM25Scorer(op.Source.DocCount(), 0)

	byField := make(map[string][]leafTerm)
	for _, l := range leaves {
		byField[l.field] = append(byField[l.field], l)
	}
	avgLen := make(map[string]float32, len(byField))
	for field := range byField {
		avgLen[field] = op.Source.AvgDocLen(field)
	}

	out := make([]scoredDoc, 0, len(docIDs))
	for _, docID := range docIDs {
		var total float32
		for field, ls := range byField {
			dl := op.Source.DocLen(docID, field)
			scorer.AvgDocLen = avgLen[field]
			for _, l := range ls {
				tf := termFreqInDoc(op.Source, field, l.term, docID)
				if tf == 0 {
					continue
				}
				idf := scorer.IDF(l.docFreq)
				total += l.boost * scorer.Score(tf, dl, idf)
			}
		}
		out = append(out, scoredDoc{DocID: docID, Score: total})
	}
	return out
}

func termFreqInDoc(source Source, field, term string, docID uint32) uint32 {
	it, ok := source.Postings(field, term)
	if !ok {
		return 0
	}
	if it.Advance(docID) && it.DocID() == docID {
		return it.Freq()
	}
	return 0
}

// validateFields walks q, ensuring every field it references is declared.
// Sort/projection field validation (including the _Range suffix and the
// distance field) happens at the caller, since those never appear inside
// the Query AST itself.
func (op *Operation) validateFields(q Query) error {
	var walk func(Query) error
	walk = func(q Query) error {
		switch v := q.(type) {
		case *TermQuery:
			return op.checkField(v.Field)
		case *PrefixQuery:
			return op.checkField(v.Field)
		case *WildcardQuery:
			return op.checkField(v.Field)
		case *RegexQuery:
			return op.checkField(v.Field)
		case *PhraseQuery:
			return op.checkField(v.Field)
		case *ProximityQuery:
			return op.checkField(v.Field)
		case *FuzzyQuery:
			return op.checkField(v.Field)
		case *BooleanQuery:
			for _, c := range v.Clauses {
				if err := walk(c.Query); err != nil {
					return err
				}
			}
			return nil
		case *MatchAllQuery, *MatchNoneQuery:
			return nil
		default:
			return fmt.Errorf("%w: unknown query node %T", ErrInvalidArgument, q)
		}
	}
	return walk(q)
}

func (op *Operation) checkField(name string) error {
	base, isSidecar := document.BaseOf(name)
	check := name
	if isSidecar {
		check = base
	}
	if len(op.ValidFields) > 0 && !op.ValidFields[check] && !strings.EqualFold(check, document.FieldDistance) {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}
