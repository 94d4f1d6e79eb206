package coreindex

import (
	"GoSearch/internal/analysis"
	"GoSearch/internal/docvalue"
	"GoSearch/internal/document"
	"GoSearch/internal/index"
	"GoSearch/internal/indexing"
)

// toLegacyDocument bridges the new document.Document model down to the
// writer's map[string]interface{} shape. Fields sharing a Name become a
// single multi-valued entry, matching the schema's MultiValued contract.
// Composite (Object/Array) values are not indexable as scalars; they are
// only ever stored, serialized via their textual form, with a
// document.SidecarConvertToJSON sidecar written alongside so the query
// projection path knows to reparse them.
func toLegacyDocument(d document.Document) indexing.Document {
	fields := make(map[string]interface{}, len(d.Fields)+1)
	fields["id"] = d.ExternalID

	grouped := make(map[string][]interface{})
	order := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		if _, seen := grouped[f.Name]; !seen {
			order = append(order, f.Name)
		}
		grouped[f.Name] = append(grouped[f.Name], valueToLegacy(f.Value))
	}

	for _, name := range order {
		vals := grouped[name]
		if len(vals) == 1 {
			fields[name] = vals[0]
		} else {
			fields[name] = vals
		}
	}

	return indexing.Document{Fields: fields}
}

func valueToLegacy(v docvalue.Value) interface{} {
	switch v.Kind() {
	case docvalue.KindBool:
		b, _ := v.AsBool()
		return b
	case docvalue.KindInt:
		i, _ := v.AsInt()
		return float64(i)
	case docvalue.KindLong:
		i, _ := v.AsLong()
		return float64(i)
	case docvalue.KindDouble:
		f, _ := v.AsDouble()
		return f
	case docvalue.KindString, docvalue.KindDate:
		s, _ := v.AsString()
		return s
	case docvalue.KindNull:
		return document.NullValue
	default:
		// Object/Array/Binary: stored verbatim as their textual form.
		return v.String()
	}
}

// fieldSchemas adapts an index.Schema into the minimal view the analysis
// Factory needs to build a CompositeAnalyzer.
func fieldSchemas(schema *index.Schema) []analysis.FieldSchema {
	out := make([]analysis.FieldSchema, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		out = append(out, analysis.FieldSchema{
			Name:        f.Name,
			Analyzed:    f.Type == index.FieldTypeText,
			AnalyzerKey: f.Analyzer,
		})
	}
	return out
}
