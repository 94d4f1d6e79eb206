package query

import "fmt"

// leafTerm records one (field, term) pair contributed by a matched leaf
// query node, used at scoring time to sum BM25 contributions across every
// term a document actually matched.
type leafTerm struct {
	field   string
	term    string
	boost   float32
	docFreq int64
}

// eval walks q against op.Source, returning the set of matching internal
// document IDs plus the leaf terms that drove the match (for scoring).
// Phrase and proximity queries are evaluated as a conjunction of their
// constituent terms; position-aware slop matching is not implemented.
func (op *Operation) eval(q Query) (map[uint32]struct{}, []leafTerm, error) {
	switch v := q.(type) {
	case *TermQuery:
		return op.evalTerm(v.Field, v.Term, boostOrDefault(v.Boost))

	case *PrefixQuery:
		accept := acceptPrefix(v.Prefix)
		return op.evalExpansion(v.Field, accept, boostOrDefault(v.Boost))

	case *WildcardQuery:
		accept, err := acceptWildcard(v.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("query: wildcard: %w", err)
		}
		return op.evalExpansion(v.Field, accept, boostOrDefault(v.Boost))

	case *FuzzyQuery:
		maxDist := v.MaxDistance
		if maxDist <= 0 {
			maxDist = 2
		}
		accept, err := acceptFuzzy(v.Term, maxDist)
		if err != nil {
			return nil, nil, fmt.Errorf("query: fuzzy: %w", err)
		}
		return op.evalExpansion(v.Field, accept, boostOrDefault(v.Boost))

	case *RegexQuery:
		// The pattern is looked up as one exact term; no regular
		// expression matching or term expansion is performed.
		return op.evalTerm(v.Field, v.Pattern, boostOrDefault(v.Boost))

	case *PhraseQuery:
		return op.evalConjunctionOfTerms(v.Field, v.Terms, boostOrDefault(v.Boost))

	case *ProximityQuery:
		return op.evalConjunctionOfTerms(v.Field, v.Terms, boostOrDefault(v.Boost))

	case *MatchAllQuery:
		set := make(map[uint32]struct{})
		for _, id := range op.Source.AllDocIDs() {
			set[id] = struct{}{}
		}
		return set, nil, nil

	case *MatchNoneQuery:
		return map[uint32]struct{}{}, nil, nil

	case *BooleanQuery:
		return op.evalBoolean(v)

	default:
		return nil, nil, fmt.Errorf("query: unsupported node %T", q)
	}
}

func boostOrDefault(b float32) float32 {
	if b == 0 {
		return 1
	}
	return b
}

func (op *Operation) evalTerm(field, term string, boost float32) (map[uint32]struct{}, []leafTerm, error) {
	it, ok := op.Source.Postings(field, term)
	if !ok {
		return map[uint32]struct{}{}, nil, nil
	}
	set := make(map[uint32]struct{})
	for it.Next() {
		set[it.DocID()] = struct{}{}
	}
	leaf := leafTerm{field: field, term: term, boost: boost, docFreq: op.Source.DocFreq(field, term)}
	return set, []leafTerm{leaf}, nil
}

func (op *Operation) evalExpansion(field string, accept func(string) bool, boost float32) (map[uint32]struct{}, []leafTerm, error) {
	terms := op.Source.ExpandTerms(field, accept, MaxTermsExpanded)
	set := make(map[uint32]struct{})
	var leaves []leafTerm
	for _, term := range terms {
		it, ok := op.Source.Postings(field, term)
		if !ok {
			continue
		}
		for it.Next() {
			set[it.DocID()] = struct{}{}
		}
		leaves = append(leaves, leafTerm{field: field, term: term, boost: boost, docFreq: op.Source.DocFreq(field, term)})
	}
	return set, leaves, nil
}

func (op *Operation) evalConjunctionOfTerms(field string, terms []string, boost float32) (map[uint32]struct{}, []leafTerm, error) {
	var set map[uint32]struct{}
	var leaves []leafTerm
	for i, term := range terms {
		termSet, termLeaves, err := op.evalTerm(field, term, boost)
		if err != nil {
			return nil, nil, err
		}
		leaves = append(leaves, termLeaves...)
		if i == 0 {
			set = termSet
			continue
		}
		set = intersect(set, termSet)
	}
	if set == nil {
		set = map[uint32]struct{}{}
	}
	return set, leaves, nil
}

func (op *Operation) evalBoolean(bq *BooleanQuery) (map[uint32]struct{}, []leafTerm, error) {
	var mustSets []map[uint32]struct{}
	var shouldSets []map[uint32]struct{}
	var notSets []map[uint32]struct{}
	var leaves []leafTerm

	for _, c := range bq.Clauses {
		set, clauseLeaves, err := op.eval(c.Query)
		if err != nil {
			return nil, nil, err
		}
		switch c.Occur {
		case BooleanMust:
			mustSets = append(mustSets, set)
			leaves = append(leaves, clauseLeaves...)
		case BooleanShould:
			shouldSets = append(shouldSets, set)
			leaves = append(leaves, clauseLeaves...)
		case BooleanMustNot:
			notSets = append(notSets, set)
		}
	}

	var result map[uint32]struct{}
	switch {
	case len(mustSets) > 0:
		result = mustSets[0]
		for _, s := range mustSets[1:] {
			result = intersect(result, s)
		}
		if len(shouldSets) > 0 {
			result = intersect(result, union(shouldSets, bq.MinimumShouldMatch))
		}
	case len(shouldSets) > 0:
		result = union(shouldSets, bq.MinimumShouldMatch)
	default:
		result = map[uint32]struct{}{}
	}

	for _, s := range notSets {
		for id := range s {
			delete(result, id)
		}
	}

	return result, leaves, nil
}

func intersect(a, b map[uint32]struct{}) map[uint32]struct{} {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(map[uint32]struct{})
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// union merges sets, keeping a document only if it appears in at least
// minShouldMatch of them (0 or 1 means "any").
func union(sets []map[uint32]struct{}, minShouldMatch int) map[uint32]struct{} {
	if minShouldMatch <= 0 {
		minShouldMatch = 1
	}
	counts := make(map[uint32]int)
	for _, s := range sets {
		for id := range s {
			counts[id]++
		}
	}
	out := make(map[uint32]struct{})
	for id, n := range counts {
		if n >= minShouldMatch {
			out[id] = struct{}{}
		}
	}
	return out
}
