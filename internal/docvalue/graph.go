package docvalue

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// ArenaIndex addresses a node inside a Graph's arena.
type ArenaIndex int

var (
	ErrUnresolvedRef = errors.New("docvalue: unresolved $ref")
	ErrDuplicateID   = errors.New("docvalue: duplicate $id")
)

// Graph holds a flat arena of Values produced by loading a JSON document
// that may contain Raven-style $id/$ref/$values cycles. Children are
// addressed by ArenaIndex so cyclic graphs never need a shared pointer.
type Graph struct {
	nodes []Value
}

// Node returns the value stored at idx in the arena.
func (g *Graph) Node(idx ArenaIndex) Value {
	return g.nodes[idx]
}

func (g *Graph) alloc(v Value) ArenaIndex {
	g.nodes = append(g.nodes, v)
	return ArenaIndex(len(g.nodes) - 1)
}

func (g *Graph) set(idx ArenaIndex, v Value) {
	g.nodes[idx] = v
}

// LoadJSON performs the two-pass $id/$ref/$values resolution described by
// the document graph loader: pass one registers every "$id" as it is
// allocated into the arena, pass two replaces every "$ref"-only object with
// the arena index recorded for that id.
func LoadJSON(data []byte) (*Graph, ArenaIndex, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, fmt.Errorf("docvalue: decode json: %w", err)
	}

	g := &Graph{}
	ids := make(map[string]ArenaIndex)

	root, refs, err := g.registerPass(raw, ids)
	if err != nil {
		return nil, 0, err
	}
	if err := g.resolvePass(refs, ids); err != nil {
		return nil, 0, err
	}
	return g, root, nil
}

type pendingRef struct {
	holder ArenaIndex // object/array node that owns the slot
	slot   int        // index into holder's arenas slice
	refID  string
}

// registerPass walks the raw decoded tree, allocating arena nodes and
// recording every "$id" it sees. "$ref"-only objects are allocated as
// placeholder Null nodes and recorded as pending for pass two.
func (g *Graph) registerPass(raw any, ids map[string]ArenaIndex) (ArenaIndex, []pendingRef, error) {
	var pending []pendingRef

	var walk func(v any) (ArenaIndex, error)
	walk = func(v any) (ArenaIndex, error) {
		switch t := v.(type) {
		case nil:
			return g.alloc(NewNull()), nil
		case bool:
			return g.alloc(NewBool(t)), nil
		case float64:
			if t == float64(int64(t)) {
				return g.alloc(NewLong(int64(t))), nil
			}
			return g.alloc(NewDouble(t)), nil
		case string:
			return g.alloc(NewString(t)), nil
		case []any:
			idx := g.alloc(Value{kind: KindArray})
			items := make([]ArenaIndex, len(t))
			for i, item := range t {
				childIdx, err := walk(item)
				if err != nil {
					return 0, err
				}
				items[i] = childIdx
			}
			g.set(idx, NewArray(items))
			return idx, nil
		case map[string]any:
			if refID, ok := t["$ref"]; ok && len(t) == 1 {
				refStr, _ := refID.(string)
				idx := g.alloc(NewNull())
				pending = append(pending, pendingRef{holder: idx, slot: -1, refID: refStr})
				return idx, nil
			}

			if values, ok := t["$values"]; ok {
				arr, _ := values.([]any)
				idx := g.alloc(Value{kind: KindArray})
				items := make([]ArenaIndex, len(arr))
				for i, item := range arr {
					childIdx, err := walk(item)
					if err != nil {
						return 0, err
					}
					items[i] = childIdx
				}
				g.set(idx, NewArray(items))
				if id, ok := t["$id"].(string); ok {
					if _, dup := ids[id]; dup {
						return 0, fmt.Errorf("%w: %q", ErrDuplicateID, id)
					}
					ids[id] = idx
				}
				return idx, nil
			}

			idx := g.alloc(Value{kind: KindObject})
			keys := make([]string, 0, len(t))
			items := make([]ArenaIndex, 0, len(t))
			for k, item := range t {
				if k == "$id" {
					continue
				}
				childIdx, err := walk(item)
				if err != nil {
					return 0, err
				}
				keys = append(keys, k)
				items = append(items, childIdx)
			}
			g.set(idx, NewObject(keys, items))

			if id, ok := t["$id"].(string); ok {
				if _, dup := ids[id]; dup {
					return 0, fmt.Errorf("%w: %q", ErrDuplicateID, id)
				}
				ids[id] = idx
			}
			return idx, nil
		default:
			return 0, fmt.Errorf("docvalue: unsupported json value of type %T", v)
		}
	}

	root, err := walk(raw)
	return root, pending, err
}

// resolvePass replaces every pending $ref placeholder with the node
// registered for its id during pass one.
func (g *Graph) resolvePass(pending []pendingRef, ids map[string]ArenaIndex) error {
	for _, p := range pending {
		target, ok := ids[p.refID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnresolvedRef, p.refID)
		}
		// The placeholder node at p.holder becomes an alias: copy the
		// resolved node's content in place so existing references to
		// p.holder observe the resolved value.
		g.set(p.holder, g.nodes[target])
	}
	return nil
}
