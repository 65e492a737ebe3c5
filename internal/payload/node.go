// Package payload models loosely-typed upstream JSON as a tagged union and
// provides path-addressed reads that fall back to defaults instead of failing.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind tags the variant held by a Node.
type Kind uint8

// Node variants.
const (
	Null Kind = iota
	Map
	Seq
	Scalar
)

// Node is one element of a decoded payload tree. The zero value is Null.
type Node struct {
	kind Kind
	m    map[string]Node
	s    []Node
	v    any
}

// Decode parses a JSON document. Numbers are kept as json.Number so large
// identifiers survive the round trip.
func Decode(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Node{}, fmt.Errorf("decode payload: %w", err)
	}
	return FromAny(raw), nil
}

// FromAny converts a generic decoded value (maps, slices, scalars) into a Node.
func FromAny(v any) Node {
	switch t := v.(type) {
	case nil:
		return Node{}
	case Node:
		return t
	case map[string]any:
		m := make(map[string]Node, len(t))
		for k, child := range t {
			m[k] = FromAny(child)
		}
		return Node{kind: Map, m: m}
	case []any:
		s := make([]Node, len(t))
		for i, child := range t {
			s[i] = FromAny(child)
		}
		return Node{kind: Seq, s: s}
	case []map[string]any:
		s := make([]Node, len(t))
		for i, child := range t {
			s[i] = FromAny(child)
		}
		return Node{kind: Seq, s: s}
	case int:
		return Node{kind: Scalar, v: json.Number(strconv.Itoa(t))}
	case int64:
		return Node{kind: Scalar, v: json.Number(strconv.FormatInt(t, 10))}
	case float64:
		return Node{kind: Scalar, v: json.Number(strconv.FormatFloat(t, 'f', -1, 64))}
	default:
		return Node{kind: Scalar, v: t}
	}
}

// Kind reports the variant.
func (n Node) Kind() Kind { return n.kind }

// Field returns the named child of a map node.
func (n Node) Field(name string) (Node, bool) {
	if n.kind != Map {
		return Node{}, false
	}
	child, ok := n.m[name]
	return child, ok
}

// Index returns the i-th element of a sequence; negative indices count from the end.
func (n Node) Index(i int) (Node, bool) {
	if n.kind != Seq {
		return Node{}, false
	}
	if i < 0 {
		i += len(n.s)
	}
	if i < 0 || i >= len(n.s) {
		return Node{}, false
	}
	return n.s[i], true
}

// Len returns the number of children of a map or sequence.
func (n Node) Len() int {
	switch n.kind {
	case Map:
		return len(n.m)
	case Seq:
		return len(n.s)
	default:
		return 0
	}
}

// Elems returns the elements of a sequence node, or nil.
func (n Node) Elems() []Node {
	if n.kind != Seq {
		return nil
	}
	return n.s
}

// Truthy reports whether the node holds a non-empty value. Null, empty
// strings, zero numbers, false and empty containers are all falsy.
func (n Node) Truthy() bool {
	switch n.kind {
	case Map:
		return len(n.m) > 0
	case Seq:
		return len(n.s) > 0
	case Scalar:
		switch v := n.v.(type) {
		case string:
			return v != ""
		case bool:
			return v
		case json.Number:
			f, err := v.Float64()
			return err != nil || f != 0
		default:
			return v != nil
		}
	default:
		return false
	}
}

// Raw converts the node back into plain Go values suitable for encoding.
func (n Node) Raw() any {
	switch n.kind {
	case Map:
		out := make(map[string]any, len(n.m))
		for k, child := range n.m {
			out[k] = child.Raw()
		}
		return out
	case Seq:
		out := make([]any, len(n.s))
		for i, child := range n.s {
			out[i] = child.Raw()
		}
		return out
	case Scalar:
		return n.v
	default:
		return nil
	}
}

// Text renders a scalar as a string. Containers and null render as "".
func (n Node) Text() string {
	if n.kind != Scalar {
		return ""
	}
	switch v := n.v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Integer renders a scalar as an int64; ok is false for non-numeric values.
func (n Node) Integer() (int64, bool) {
	if n.kind != Scalar {
		return 0, false
	}
	switch v := n.v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i, true
		}
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
