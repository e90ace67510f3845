package specdoc

import (
	"errors"
	"fmt"
	"strings"

	"rowhydrate/hydrate"
	"rowhydrate/internal/dbexec"
	"rowhydrate/internal/ordering"
	"rowhydrate/internal/sqlfetch"
)

// ErrCycle is wrapped by errors for documents that reference themselves
// through extends or child specs.
var ErrCycle = errors.New("cyclic spec reference")

// DocumentError reports a problem in one spec document.
type DocumentError struct {
	Spec string
	Path string
	Err  error
}

func (e *DocumentError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("spec %q: %v", e.Spec, e.Err)
	}
	return fmt.Sprintf("spec %q: %s: %v", e.Spec, e.Path, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Compiled is a document turned into a runnable definition.
type Compiled struct {
	Name       string
	AutoFields bool
	spec       *hydrate.Spec
	pluck      string
}

// Definition returns the definition to hydrate with. When the document sets
// auto_fields, each unscoped column is added as a field unless the document
// already configures it.
func (c *Compiled) Definition(columns []string) hydrate.Definition {
	spec := c.spec
	if c.AutoFields {
		for _, col := range columns {
			if !strings.Contains(col, hydrate.Separator) {
				spec = spec.EnsureField(col)
			}
		}
	}
	if c.pluck == "" {
		return spec
	}
	field := c.pluck
	return spec.Map(func(e hydrate.Entity) any { return e[field] })
}

// Spec returns the compiled spec before any terminal transform.
func (c *Compiled) Spec() *hydrate.Spec {
	return c.spec
}

// Describe summarizes the compiled structure.
func (c *Compiled) Describe() string {
	if m, ok := c.Definition(nil).(*hydrate.Mapped); ok {
		return m.Describe()
	}
	return c.spec.Describe()
}

// Compiler builds documents by name, resolving extends and child references.
type Compiler struct {
	exec     dbexec.QueryExecutor
	docs     map[string]*Document
	order    []string
	built    map[string]*Compiled
	building map[string]bool
}

// NewCompiler decodes every raw document. exec runs the batched queries of
// attached collections and may be nil when no document attaches anything.
func NewCompiler(raw []map[string]any, exec dbexec.QueryExecutor) (*Compiler, error) {
	c := &Compiler{
		exec:     exec,
		docs:     make(map[string]*Document, len(raw)),
		built:    make(map[string]*Compiled, len(raw)),
		building: make(map[string]bool),
	}
	for i, r := range raw {
		doc, err := Decode(r)
		if err != nil {
			name, _ := r["name"].(string)
			if name == "" {
				name = fmt.Sprintf("#%d", i)
			}
			return nil, &DocumentError{Spec: name, Err: err}
		}
		if doc.Name == "" {
			return nil, &DocumentError{Spec: fmt.Sprintf("#%d", i), Err: errors.New("name is required")}
		}
		if _, dup := c.docs[doc.Name]; dup {
			return nil, &DocumentError{Spec: doc.Name, Err: errors.New("duplicate name")}
		}
		c.docs[doc.Name] = doc
		c.order = append(c.order, doc.Name)
	}
	return c, nil
}

// Names returns document names in declaration order.
func (c *Compiler) Names() []string {
	return append([]string(nil), c.order...)
}

// CompileAll compiles every document, reporting all failures.
func (c *Compiler) CompileAll() (map[string]*Compiled, error) {
	out := make(map[string]*Compiled, len(c.order))
	var errs []error
	for _, name := range c.order {
		compiled, err := c.Compile(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[name] = compiled
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Compile builds the named document. Results are memoized.
func (c *Compiler) Compile(name string) (*Compiled, error) {
	if compiled, ok := c.built[name]; ok {
		return compiled, nil
	}
	doc, ok := c.docs[name]
	if !ok {
		return nil, &DocumentError{Spec: name, Err: errors.New("no such spec")}
	}
	if c.building[name] {
		return nil, &DocumentError{Spec: name, Err: ErrCycle}
	}
	c.building[name] = true
	defer delete(c.building, name)

	compiled, err := c.build(name, doc)
	if err != nil {
		return nil, err
	}
	c.built[name] = compiled
	return compiled, nil
}

func (c *Compiler) build(name string, doc *Document) (*Compiled, error) {
	fail := func(path string, err error) (*Compiled, error) {
		return nil, &DocumentError{Spec: name, Path: path, Err: err}
	}

	var base *hydrate.Spec
	keyBy := doc.KeyBy
	if doc.Extends != "" {
		parent, err := c.Compile(doc.Extends)
		if err != nil {
			return fail("extends", err)
		}
		if parent.pluck != "" {
			return fail("extends", fmt.Errorf("cannot extend %q: it plucks a field", doc.Extends))
		}
		base = parent.spec
		if keyBy == nil {
			keyBy = base.KeyFields()
		}
	}

	spec := hydrate.New(keyBy...)
	for i, f := range doc.Fields {
		if f.Name == "" {
			return fail(fmt.Sprintf("fields[%d]", i), errors.New("name is required"))
		}
		switch {
		case f.Omit:
			spec = spec.Omit(f.Name)
		case f.Transform != "":
			t, err := lookupTransform(f.Transform)
			if err != nil {
				return fail(fmt.Sprintf("fields[%d]", i), err)
			}
			spec = spec.Field(f.Name, t)
		default:
			spec = spec.Fields(f.Name)
		}
	}
	spec = spec.Omit(doc.Omit...)

	for i, x := range doc.Extras {
		if x.Name == "" {
			return fail(fmt.Sprintf("extras[%d]", i), errors.New("name is required"))
		}
		compute, err := buildExtra(x)
		if err != nil {
			return fail(fmt.Sprintf("extras[%d]", i), err)
		}
		spec = spec.Extra(x.Name, compute)
	}

	nested := []struct {
		path string
		list []NestedDoc
		add  func(s *hydrate.Spec, key, scope string, child hydrate.Definition) *hydrate.Spec
	}{
		{"has_many", doc.HasMany, (*hydrate.Spec).HasMany},
		{"has_one", doc.HasOne, (*hydrate.Spec).HasOne},
		{"has_one_or_throw", doc.HasOneOrThrow, (*hydrate.Spec).HasOneOrThrow},
	}
	for _, group := range nested {
		for i, n := range group.list {
			path := fmt.Sprintf("%s[%d]", group.path, i)
			if n.Key == "" {
				return fail(path, errors.New("key is required"))
			}
			child, err := c.child(name, path, n.Spec, false)
			if err != nil {
				return fail(path, err)
			}
			scope := n.Prefix
			if scope == "" {
				scope = hydrate.Scope(n.Key)
			}
			spec = group.add(spec, n.Key, scope, child)
		}
	}

	attached := []struct {
		path string
		list []AttachDoc
		add  func(s *hydrate.Spec, key string, fetch hydrate.FetchFunc, match hydrate.Match) *hydrate.Spec
	}{
		{"attach_many", doc.AttachMany, (*hydrate.Spec).AttachMany},
		{"attach_one", doc.AttachOne, (*hydrate.Spec).AttachOne},
		{"attach_one_or_throw", doc.AttachOneOrThrow, (*hydrate.Spec).AttachOneOrThrow},
	}
	for _, group := range attached {
		for i, a := range group.list {
			path := fmt.Sprintf("%s[%d]", group.path, i)
			if a.Key == "" {
				return fail(path, errors.New("key is required"))
			}
			if c.exec == nil {
				return fail(path, errors.New("attached collections need a database executor"))
			}
			child, err := c.child(name, path, a.Spec, true)
			if err != nil {
				return fail(path, err)
			}
			fetch, match, err := sqlfetch.Batch{
				Exec:         c.exec,
				Table:        a.Table,
				Columns:      a.Columns,
				MatchColumns: a.MatchChild,
				ParentFields: a.MatchParent,
				Where:        a.Where,
				WhereArgs:    a.WhereArgs,
				OrderBy:      a.SQLOrderBy,
				MaxInClause:  a.MaxInClause,
				Child:        child,
			}.Attach(keyBy)
			if err != nil {
				return fail(path, err)
			}
			spec = group.add(spec, a.Key, fetch, match)
		}
	}

	for i, o := range doc.OrderBy {
		path := fmt.Sprintf("order_by[%d]", i)
		if o.Field == "" {
			return fail(path, errors.New("field is required"))
		}
		dir, err := ordering.ParseDirection(o.Direction)
		if err != nil {
			return fail(path, err)
		}
		nulls, err := ordering.ParseNullPlacement(o.Nulls)
		if err != nil {
			return fail(path, err)
		}
		spec = spec.OrderByField(o.Field, dir, nulls)
	}
	if doc.OrderByKeys {
		spec = spec.OrderByKeys()
	}

	if base != nil {
		merged, err := base.Extend(spec)
		if err != nil {
			return fail("extends", err)
		}
		spec = merged
	}

	return &Compiled{
		Name:       name,
		AutoFields: doc.AutoFields,
		spec:       spec,
		pluck:      doc.Pluck,
	}, nil
}

// child resolves a nested or attached spec given by name or inline. Attached
// children are routed to parents by their match fields, so they cannot pluck.
func (c *Compiler) child(parent, path string, ref any, attached bool) (hydrate.Definition, error) {
	var compiled *Compiled
	switch r := ref.(type) {
	case string:
		var err error
		if compiled, err = c.Compile(r); err != nil {
			return nil, err
		}
	case map[string]any:
		doc, err := Decode(r)
		if err != nil {
			return nil, err
		}
		if doc.Name != "" {
			return nil, fmt.Errorf("inline spec must not have a name, reference %q instead", doc.Name)
		}
		if compiled, err = c.build(parent+"."+path, doc); err != nil {
			return nil, err
		}
	case nil:
		return nil, errors.New("spec is required")
	default:
		return nil, fmt.Errorf("spec must be a document name or an inline document, got %T", ref)
	}

	if attached && compiled.pluck != "" {
		return nil, errors.New("an attached child spec cannot pluck a field")
	}
	return compiled.Definition(nil), nil
}
