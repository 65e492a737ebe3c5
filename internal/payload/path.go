package payload

import (
	"strconv"
	"strings"
)

// Lookup walks a dot-separated path such as "video.play_addr.url_list[-1]".
// It reports false when any step is missing, wrongly typed, out of range, or
// when the resolved value is falsy.
func (n Node) Lookup(path string) (Node, bool) {
	cur := n
	for _, segment := range strings.Split(path, ".") {
		name, index, indexed, ok := parseSegment(segment)
		if !ok {
			return Node{}, false
		}
		if name != "" {
			next, found := cur.Field(name)
			if !found {
				return Node{}, false
			}
			cur = next
		}
		if indexed {
			next, found := cur.Index(index)
			if !found {
				return Node{}, false
			}
			cur = next
		} else if !cur.Truthy() {
			return Node{}, false
		}
	}
	if !cur.Truthy() {
		return Node{}, false
	}
	return cur, true
}

// Get returns the node at path or def.
func (n Node) Get(path string, def Node) Node {
	if v, ok := n.Lookup(path); ok {
		return v
	}
	return def
}

// String returns the scalar at path as text, or def.
func (n Node) String(path, def string) string {
	v, ok := n.Lookup(path)
	if !ok || v.kind != Scalar {
		return def
	}
	return v.Text()
}

// Int returns the numeric scalar at path, or def.
func (n Node) Int(path string, def int64) int64 {
	v, ok := n.Lookup(path)
	if !ok {
		return def
	}
	if i, ok := v.Integer(); ok {
		return i
	}
	return def
}

// Items returns the sequence at path, or nil.
func (n Node) Items(path string) []Node {
	v, ok := n.Lookup(path)
	if !ok {
		return nil
	}
	return v.Elems()
}

// Extract is the generic form of the typed accessors: it returns the value at
// path converted to T, or def when the path does not resolve to a T.
func Extract[T string | int64 | Node](n Node, path string, def T) T {
	var out any
	switch any(def).(type) {
	case string:
		out = n.String(path, any(def).(string))
	case int64:
		out = n.Int(path, any(def).(int64))
	case Node:
		out = n.Get(path, any(def).(Node))
	}
	return out.(T)
}

func parseSegment(segment string) (name string, index int, indexed bool, ok bool) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, 0, false, segment != ""
	}
	end := strings.IndexByte(segment[open:], ']')
	if end < 0 {
		return "", 0, false, false
	}
	i, err := strconv.Atoi(segment[open+1 : open+end])
	if err != nil {
		return "", 0, false, false
	}
	return segment[:open], i, true, true
}
