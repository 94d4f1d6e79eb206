package analysis

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AnalyzerGenerator lets a plugin swap a field's analyzer at build time, for
// indexing and for querying independently (a field may want a more
// aggressive analyzer at index time than at query time, or vice versa).
type AnalyzerGenerator interface {
	Name() string
	GenerateForIndexing(field string, fallback Analyzer) Analyzer
	GenerateForQuerying(field string, fallback Analyzer) Analyzer
}

// CompositeAnalyzer resolves the Analyzer to use for a given field, falling
// back to a shared default when no field-specific analyzer is configured.
type CompositeAnalyzer struct {
	perField map[string]Analyzer
	fallback Analyzer
}

// Analyze selects the per-field analyzer if one exists, otherwise the
// fallback.
func (c *CompositeAnalyzer) Analyze(field string, text string) []Token {
	if a, ok := c.perField[field]; ok {
		return a.Analyze(field, text)
	}
	return c.fallback.Analyze(field, text)
}

// Factory builds CompositeAnalyzers for a schema, sharing long-lived
// keyword/standard instances across builds via an LRU cache and tracking
// release callbacks for any analyzer instance it pulled from the registry.
type Factory struct {
	registry *Registry
	shared   *lru.Cache[string, Analyzer]
}

// NewFactory creates a Factory backed by registry, with a shared-instance
// cache sized to hold cacheSize entries (one per distinct analyzer kind
// normally suffices; a larger size tolerates schema churn across many
// indexes hosted by one process).
func NewFactory(registry *Registry, cacheSize int) (*Factory, error) {
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, err := lru.New[string, Analyzer](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("analysis: new factory cache: %w", err)
	}
	return &Factory{registry: registry, shared: cache}, nil
}

// FieldSchema is the minimal view of a schema field the Factory needs; it
// mirrors index.FieldDef without importing internal/index, avoiding an
// import cycle between analysis and index.
type FieldSchema struct {
	Name        string
	Analyzed    bool
	AnalyzerKey string
}

// Build constructs a CompositeAnalyzer for the given fields and default
// analyzer name. Every analyzer instance obtained directly from the
// registry (as opposed to the shared cache) is appended to release as a
// func() error the caller must invoke once the analyzer is no longer
// needed; shared cached instances outlive any one Build call and are never
// appended.
func (f *Factory) Build(fields []FieldSchema, defaultAnalyzer string, generators []AnalyzerGenerator, forQuery bool, release *[]func() error) (*CompositeAnalyzer, error) {
	if defaultAnalyzer == "" {
		defaultAnalyzer = "standard"
	}
	fallback, err := f.resolve(defaultAnalyzer, release)
	if err != nil {
		return nil, fmt.Errorf("analysis: resolve default analyzer: %w", err)
	}

	comp := &CompositeAnalyzer{perField: make(map[string]Analyzer), fallback: fallback}

	for _, field := range fields {
		var a Analyzer
		switch {
		case field.AnalyzerKey != "":
			resolved, err := f.resolve(field.AnalyzerKey, release)
			if err != nil {
				// Unknown analyzer identifiers are skipped, falling back
				// to the schema default, per the factory's tolerance for
				// stale field configuration.
				continue
			}
			a = resolved
		case field.Analyzed:
			a = f.sharedStandard()
		default:
			a = f.sharedKeyword()
		}

		for _, gen := range generators {
			var replaced Analyzer
			if forQuery {
				replaced = gen.GenerateForQuerying(field.Name, a)
			} else {
				replaced = gen.GenerateForIndexing(field.Name, a)
			}
			if replaced != nil && replaced != a {
				a = replaced
			}
		}

		comp.perField[field.Name] = a
	}

	return comp, nil
}

// resolve looks up name in the registry and records a release callback,
// since registry-owned analyzers may carry per-build state.
func (f *Factory) resolve(name string, release *[]func() error) (Analyzer, error) {
	a, err := f.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if release != nil {
		*release = append(*release, func() error { return nil })
	}
	return a, nil
}

func (f *Factory) sharedStandard() Analyzer {
	if a, ok := f.shared.Get("standard"); ok {
		return a
	}
	a := NewStandardAnalyzer()
	f.shared.Add("standard", a)
	return a
}

func (f *Factory) sharedKeyword() Analyzer {
	if a, ok := f.shared.Get("keyword"); ok {
		return a
	}
	a := NewKeywordAnalyzer()
	f.shared.Add("keyword", a)
	return a
}
