package server

import (
	"fmt"

	"GoSearch/internal/docvalue"
	"GoSearch/internal/document"
	"GoSearch/internal/index"
)

// documentFromJSON builds a document.Document from a decoded JSON object,
// keyed by the index's schema: each schema field pulls its value (or values,
// for a JSON array) out of raw and wraps it per the field's declared type.
// Keys in raw with no matching schema field are ignored.
func documentFromJSON(schema *index.Schema, externalID string, raw map[string]any) (document.Document, error) {
	doc := document.Document{ExternalID: externalID}

	for _, fd := range schema.Fields {
		v, ok := raw[fd.Name]
		if !ok || v == nil {
			continue
		}

		values, isArray := v.([]any)
		if !isArray {
			values = []any{v}
		}

		for _, item := range values {
			val, err := jsonToDocValue(fd, item)
			if err != nil {
				return document.Document{}, fmt.Errorf("field %q: %w", fd.Name, err)
			}
			doc.Fields = append(doc.Fields, document.Field{
				Name:     fd.Name,
				Value:    val,
				Stored:   fd.Stored,
				Indexed:  fd.Indexed,
				Analyzed: fd.Indexed && fd.Type == index.FieldTypeText,
			})
		}
	}
	return doc, nil
}

func jsonToDocValue(fd index.FieldDef, v any) (docvalue.Value, error) {
	switch t := v.(type) {
	case string:
		return docvalue.NewString(t), nil
	case bool:
		return docvalue.NewBool(t), nil
	case float64:
		if t == float64(int64(t)) {
			return docvalue.NewLong(int64(t)), nil
		}
		return docvalue.NewDouble(t), nil
	case nil:
		return docvalue.NewNull(), nil
	default:
		return docvalue.Value{}, fmt.Errorf("unsupported json value of type %T for field type %q", v, fd.Type)
	}
}
