package domain

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Node is one position in an expected or actual value tree. The set of
// implementations is closed: Absent, Leaf, Group and List.
type Node interface {
	// Raw returns the value the node was built from.
	Raw() any
	isNode()
}

// Absent marks a branch that is missing from the tree.
type Absent struct{}

// Leaf holds a scalar value.
type Leaf struct {
	Value any
}

// Group holds named children, typically decoded from a JSON object.
type Group struct {
	Fields map[string]Node
	raw    any
}

// List holds ordered items, typically decoded from a JSON array.
type List struct {
	Items []Node
	raw   any
}

func (Absent) Raw() any  { return nil }
func (l Leaf) Raw() any  { return l.Value }
func (g Group) Raw() any { return g.raw }
func (l List) Raw() any  { return l.raw }

func (Absent) isNode() {}
func (Leaf) isNode()   {}
func (Group) isNode()  {}
func (List) isNode()   {}

// Field returns the named child, or Absent when the group has no such key.
func (g Group) Field(name string) Node {
	if n, ok := g.Fields[name]; ok {
		return n
	}
	return Absent{}
}

// Keys returns the group's field names in sorted order.
func (g Group) Keys() []string {
	keys := make([]string, 0, len(g.Fields))
	for k := range g.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// At returns the item at index i, or Absent when i is out of range.
func (l List) At(i int) Node {
	if i < 0 || i >= len(l.Items) {
		return Absent{}
	}
	return l.Items[i]
}

// Len returns the number of items in the list.
func (l List) Len() int { return len(l.Items) }

// NodeOf converts a generic decoded value into the Node algebra. Maps become
// groups, slices and arrays become lists, nil and nil pointers become Absent,
// and everything else is a leaf. Byte slices are treated as text leaves.
func NodeOf(v any) Node {
	switch t := v.(type) {
	case nil:
		return Absent{}
	case Node:
		return t
	case string, bool, float64, float32, int, int64, int32, uint, uint64, uint32:
		return Leaf{Value: v}
	case []byte:
		return Leaf{Value: string(t)}
	case map[string]any:
		fields := make(map[string]Node, len(t))
		for k, child := range t {
			fields[k] = NodeOf(child)
		}
		return Group{Fields: fields, raw: v}
	case []any:
		items := make([]Node, len(t))
		for i, child := range t {
			items[i] = NodeOf(child)
		}
		return List{Items: items, raw: v}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Absent{}
		}
		return NodeOf(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return List{raw: v}
		}
		fallthrough
	case reflect.Array:
		items := make([]Node, rv.Len())
		for i := range items {
			items[i] = NodeOf(rv.Index(i).Interface())
		}
		return List{Items: items, raw: v}
	case reflect.Map:
		fields := make(map[string]Node, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fields[fmt.Sprint(iter.Key().Interface())] = NodeOf(iter.Value().Interface())
		}
		return Group{Fields: fields, raw: v}
	default:
		return Leaf{Value: v}
	}
}

// IsPresent reports whether a value counts as extracted. Nil, blank strings
// and empty lists or maps are absent.
func IsPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case Absent:
		return false
	case Node:
		return IsPresent(t.Raw())
	case string:
		return strings.TrimSpace(t) != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return IsPresent(rv.Elem().Interface())
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	default:
		return true
	}
}
