package hydrate

import (
	"slices"

	"rowhydrate/internal/ordering"
	"rowhydrate/internal/prefix"
)

// Row is one flat, scope-prefixed result row. Rows are never modified.
type Row = map[string]any

// Entity is one materialized output object.
type Entity = map[string]any

// View reads the unprefixed fields of one nesting level of a row.
type View = prefix.View

// Separator terminates every scope path segment in row field names.
const Separator = prefix.Separator

// Scope returns the scope prefix for a relation called name ("posts" -> "posts$$").
func Scope(name string) string {
	return prefix.Segment(name)
}

// Definition is anything Hydrate can run: a *Spec or a *Mapped.
type Definition interface {
	definition() *Spec
}

// Factory builds a child definition lazily at declaration time.
type Factory func() Definition

func (f Factory) definition() *Spec {
	return f().definition()
}

// Accessor extracts an ordering value from an entity before any terminal
// transform has been applied.
type Accessor func(Entity) any

// ByField returns an Accessor reading a single entity field.
func ByField(name string) Accessor {
	return func(e Entity) any {
		return e[name]
	}
}

type fieldMode int

const (
	fieldInclude fieldMode = iota
	fieldTransform
	fieldOmit
)

type fieldEntry struct {
	name      string
	mode      fieldMode
	transform func(any) any
}

type extraEntry struct {
	name    string
	compute func(View) any
}

type nestedEntry struct {
	key         string
	prefix      string
	cardinality Cardinality
	child       *Spec
}

type attachedEntry struct {
	key         string
	cardinality Cardinality
	fetch       FetchFunc
	match       Match
}

type orderEntry struct {
	accessor  Accessor
	direction ordering.Direction
	nulls     ordering.NullPlacement
}

// Spec describes how to hydrate one entity level. A Spec is immutable: every
// method returns a new Spec that shares unchanged parts with its receiver.
type Spec struct {
	keyBy       []string
	fields      []fieldEntry
	extras      []extraEntry
	nested      []nestedEntry
	attached    []attachedEntry
	ordering    []orderEntry
	keyTieBreak bool
	terminal    func(Entity) any
}

// New returns an empty spec identified by keyBy. A spec without keyBy treats
// every row as a distinct entity.
func New(keyBy ...string) *Spec {
	return &Spec{keyBy: slices.Clone(keyBy)}
}

func (s *Spec) definition() *Spec {
	return s
}

func (s *Spec) clone() *Spec {
	next := *s
	return &next
}

// KeyBy replaces the identity fields.
func (s *Spec) KeyBy(fields ...string) *Spec {
	next := s.clone()
	next.keyBy = slices.Clone(fields)
	return next
}

// KeyFields returns a copy of the identity fields.
func (s *Spec) KeyFields() []string {
	return slices.Clone(s.keyBy)
}

// Fields includes each named field as-is.
func (s *Spec) Fields(names ...string) *Spec {
	next := s.clone()
	for _, name := range names {
		next.fields = upsert(next.fields, fieldEntry{name: name, mode: fieldInclude}, fieldName)
	}
	return next
}

// Field includes name with its value passed through transform.
func (s *Spec) Field(name string, transform func(any) any) *Spec {
	if transform == nil {
		return s.Fields(name)
	}
	next := s.clone()
	next.fields = upsert(next.fields, fieldEntry{name: name, mode: fieldTransform, transform: transform}, fieldName)
	return next
}

// Omit marks fields as explicitly excluded from the output.
func (s *Spec) Omit(names ...string) *Spec {
	next := s.clone()
	for _, name := range names {
		next.fields = upsert(next.fields, fieldEntry{name: name, mode: fieldOmit}, fieldName)
	}
	return next
}

// EnsureField includes name unless the spec already configures it in any way,
// including an explicit Omit. Integration layers use it to surface whatever
// columns a query happened to select.
func (s *Spec) EnsureField(name string) *Spec {
	if slices.ContainsFunc(s.fields, func(f fieldEntry) bool { return f.name == name }) {
		return s
	}
	return s.Fields(name)
}

// Extra adds a computed output field. compute receives the level's row view.
func (s *Spec) Extra(name string, compute func(View) any) *Spec {
	next := s.clone()
	next.extras = upsert(next.extras, extraEntry{name: name, compute: compute}, extraName)
	return next
}

// HasMany declares a one-to-many relation whose data lives in the same rows
// under scopePrefix.
func (s *Spec) HasMany(key, scopePrefix string, child Definition) *Spec {
	return s.nest(key, scopePrefix, Many, child)
}

// HasOne declares a to-one relation resolving to the first match or nil.
func (s *Spec) HasOne(key, scopePrefix string, child Definition) *Spec {
	return s.nest(key, scopePrefix, One, child)
}

// HasOneOrThrow declares a to-one relation that must have at least one match.
func (s *Spec) HasOneOrThrow(key, scopePrefix string, child Definition) *Spec {
	return s.nest(key, scopePrefix, OneOrThrow, child)
}

func (s *Spec) nest(key, scopePrefix string, c Cardinality, child Definition) *Spec {
	next := s.clone()
	next.nested = upsert(next.nested, nestedEntry{
		key:         key,
		prefix:      scopePrefix,
		cardinality: c,
		child:       child.definition(),
	}, nestedKey)
	return next
}

// AttachMany declares a relation fetched out of band, once per hydration.
func (s *Spec) AttachMany(key string, fetch FetchFunc, match Match) *Spec {
	return s.attach(key, Many, fetch, match)
}

// AttachOne declares an out-of-band to-one relation resolving to the first match or nil.
func (s *Spec) AttachOne(key string, fetch FetchFunc, match Match) *Spec {
	return s.attach(key, One, fetch, match)
}

// AttachOneOrThrow declares an out-of-band to-one relation that must match.
func (s *Spec) AttachOneOrThrow(key string, fetch FetchFunc, match Match) *Spec {
	return s.attach(key, OneOrThrow, fetch, match)
}

func (s *Spec) attach(key string, c Cardinality, fetch FetchFunc, match Match) *Spec {
	next := s.clone()
	next.attached = upsert(next.attached, attachedEntry{
		key:         key,
		cardinality: c,
		fetch:       fetch,
		match:       match.clone(),
	}, attachedKey)
	return next
}

// OrderBy appends an ordering key. Nulls sort last unless a placement is given.
func (s *Spec) OrderBy(accessor Accessor, direction Direction, nulls ...NullPlacement) *Spec {
	placement := NullsLast
	if len(nulls) > 0 {
		placement = nulls[0]
	}
	next := s.clone()
	next.ordering = append(slices.Clip(next.ordering), orderEntry{
		accessor:  accessor,
		direction: direction,
		nulls:     placement,
	})
	return next
}

// OrderByField appends an ordering key on an output field.
func (s *Spec) OrderByField(name string, direction Direction, nulls ...NullPlacement) *Spec {
	return s.OrderBy(ByField(name), direction, nulls...)
}

// OrderByKeys requests a final ascending tie-break on keyBy. It always runs
// after every OrderBy key, whenever it was requested.
func (s *Spec) OrderByKeys() *Spec {
	next := s.clone()
	next.keyTieBreak = true
	return next
}

// Map sets a terminal transform. The result accepts only further Map calls.
func (s *Spec) Map(transform func(Entity) any) *Mapped {
	next := s.clone()
	next.terminal = transform
	return &Mapped{base: next}
}

// Mapped is a spec with a terminal transform applied to every entity.
type Mapped struct {
	base *Spec
}

func (m *Mapped) definition() *Spec {
	return m.base
}

// Map chains another transform after the existing ones.
func (m *Mapped) Map(transform func(any) any) *Mapped {
	prev := m.base.terminal
	next := m.base.clone()
	next.terminal = func(e Entity) any {
		return transform(prev(e))
	}
	return &Mapped{base: next}
}

// upsert replaces the entry with the same name in a copy of list, or appends
// to a copy. The input slice is never written.
func upsert[T any](list []T, entry T, name func(T) string) []T {
	want := name(entry)
	for i := range list {
		if name(list[i]) == want {
			out := slices.Clone(list)
			out[i] = entry
			return out
		}
	}
	return append(slices.Clip(list), entry)
}

func fieldName(f fieldEntry) string      { return f.name }
func extraName(x extraEntry) string      { return x.name }
func nestedKey(n nestedEntry) string     { return n.key }
func attachedKey(a attachedEntry) string { return a.key }
