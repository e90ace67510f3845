// Package prefix addresses scope-qualified fields inside flat join rows.
//
// A row produced by a join carries every nesting level at once. Fields of a
// nested level are named by their scope path, each path segment followed by
// Separator, e.g. "posts$$title" or "posts$$comments$$body".
package prefix

import "strings"

// Separator terminates every scope path segment.
const Separator = "$$"

// Segment returns the scope prefix for a relation called name.
func Segment(name string) string {
	return name + Separator
}

// Qualify returns the row field name for field under prefix.
func Qualify(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + field
}

// Join concatenates scope prefixes from the outermost level inwards.
func Join(prefixes ...string) string {
	switch len(prefixes) {
	case 0:
		return ""
	case 1:
		return prefixes[0]
	}
	return strings.Join(prefixes, "")
}

// Read returns the value of field at prefix in row.
func Read(row map[string]any, prefix, field string) (any, bool) {
	value, ok := row[Qualify(prefix, field)]
	return value, ok
}

// View is a read-only window onto the fields of row that live under Prefix.
// Names passed to its methods are unprefixed.
type View struct {
	Prefix string
	Row    map[string]any
}

// NewView returns a view of row restricted to prefix.
func NewView(row map[string]any, prefix string) View {
	return View{Prefix: prefix, Row: row}
}

// Get returns the value stored for name and whether it was present.
func (v View) Get(name string) (any, bool) {
	if v.Row == nil {
		return nil, false
	}
	return Read(v.Row, v.Prefix, name)
}

// Value returns the value stored for name, or nil when absent.
func (v View) Value(name string) any {
	value, _ := v.Get(name)
	return value
}

// Has reports whether name is present, even when its value is nil.
func (v View) Has(name string) bool {
	_, ok := v.Get(name)
	return ok
}

// Scope narrows the view to a nested prefix relative to the current one.
func (v View) Scope(prefix string) View {
	return View{Prefix: v.Prefix + prefix, Row: v.Row}
}

// Materialize copies the fields under the prefix into a new map with the
// prefix stripped. Deeper scopes keep their remaining path.
func (v View) Materialize() map[string]any {
	if v.Prefix == "" {
		out := make(map[string]any, len(v.Row))
		for key, value := range v.Row {
			out[key] = value
		}
		return out
	}
	out := make(map[string]any)
	for key, value := range v.Row {
		if rest, ok := strings.CutPrefix(key, v.Prefix); ok && rest != "" {
			out[rest] = value
		}
	}
	return out
}
