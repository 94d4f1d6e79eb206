package query

import (
	"GoSearch/internal/document"
	"GoSearch/internal/docvalue"
)

// PageSizeAll requests every matching hit in a single unbounded page.
const PageSizeAll = -1

// FieldsToFetch selects which stored fields are projected into each Hit.
// A nil/empty Fields list projects every stored field.
type FieldsToFetch struct {
	Fields   []string
	Distinct bool
}

// Hit is one projected, scored search result.
type Hit struct {
	ExternalID string
	Score      float32
	Fields     map[string]docvalue.Value
}

// Result is the outcome of one Query Operation execution.
type Result struct {
	Hits      []Hit
	TotalHits int64
	Skipped   int
}

// CreateProperty projects a document's stored fields into a Hit's Fields
// map, per the sidecar-aware rules: sidecar-suffixed fields never appear
// directly in the projection, a group with more than one stored value or an
// _IsArray sidecar projects as an array, a lone value with neither projects
// as a scalar, and _ConvertToJson fields are reparsed as nested values.
func CreateProperty(stored map[string][][]byte, wanted []string) map[string]docvalue.Value {
	out := make(map[string]docvalue.Value)

	include := func(name string) bool {
		if len(wanted) == 0 {
			return true
		}
		for _, w := range wanted {
			if w == name {
				return true
			}
		}
		return false
	}

	for name, raws := range stored {
		if document.IsSidecar(name) {
			continue
		}
		if !include(name) || len(raws) == 0 {
			continue
		}

		convertToJSON := len(stored[document.SidecarFor(name, document.SidecarConvertToJSON)]) > 0
		isArray := len(raws) > 1 || len(stored[document.SidecarFor(name, document.SidecarIsArray)]) > 0

		if !isArray {
			out[name] = scalarValue(raws[0], convertToJSON)
			continue
		}

		items := make([]docvalue.Value, len(raws))
		for i, raw := range raws {
			items[i] = scalarValue(raw, convertToJSON)
		}
		out[name] = docvalue.NewValueArray(items)
	}
	return out
}

// scalarValue decodes one raw stored byte value, reparsing it as a nested
// value when the field's _ConvertToJson sidecar is set.
func scalarValue(raw []byte, convertToJSON bool) docvalue.Value {
	if convertToJSON {
		if g, root, err := docvalue.LoadJSON(raw); err == nil {
			return g.Node(root)
		}
	}
	switch string(raw) {
	case document.NullValue:
		return docvalue.NewNull()
	default:
		return docvalue.NewString(string(raw))
	}
}
