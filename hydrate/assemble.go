package hydrate

import (
	"rowhydrate/internal/ordering"
	"rowhydrate/internal/prefix"
)

// level is one node of the spec tree positioned at an absolute scope prefix.
type level struct {
	prefix string
	spec   *Spec
}

func (l level) child(n nestedEntry) level {
	return level{prefix: l.prefix + n.prefix, spec: n.child}
}

func (l level) view(row Row) View {
	return prefix.NewView(row, l.prefix)
}

// identity reads the level's keyBy tuple. ok is false when any part is null.
func (l level) identity(row Row) ([]any, bool) {
	if len(l.spec.keyBy) == 0 {
		return nil, true
	}
	return tupleOf(l.spec.keyBy, l.view(row).Value)
}

// built is an entity plus its identity, kept together until sorting is done.
type built struct {
	entity Entity
	key    []any
}

type assembler struct {
	attached attachedIndex
	sortRoot bool
}

// many hydrates every entity of level l found in rows.
func (a *assembler) many(l level, rows []Row, root bool) ([]any, error) {
	var items []built
	if root && len(l.spec.nested) == 0 {
		// Flat root: each row is its own entity, no grouping pass. Nested levels
		// always group, since sibling joins repeat their rows.
		items = make([]built, 0, len(rows))
		for _, row := range rows {
			key, ok := l.identity(row)
			if !ok {
				continue
			}
			e, err := a.one(l, row, []Row{row})
			if err != nil {
				return nil, err
			}
			items = append(items, built{entity: e, key: key})
		}
	} else {
		groups := groupRows(l, rows)
		items = make([]built, 0, len(groups))
		for _, g := range groups {
			e, err := a.one(l, g.rows[0], g.rows)
			if err != nil {
				return nil, err
			}
			items = append(items, built{entity: e, key: g.key})
		}
	}

	if !root || a.sortRoot {
		l.spec.comparator().Sort(items)
	}
	return finish(l.spec, items), nil
}

// one hydrates a single entity. Scalar fields come from first, the first row of
// the entity's group; nested levels are built from every row in group.
func (a *assembler) one(l level, first Row, group []Row) (Entity, error) {
	spec := l.spec
	view := l.view(first)
	e := make(Entity, len(spec.fields)+len(spec.extras)+len(spec.nested)+len(spec.attached))

	for _, f := range spec.fields {
		switch f.mode {
		case fieldOmit:
			continue
		case fieldTransform:
			e[f.name] = f.transform(view.Value(f.name))
		default:
			e[f.name] = view.Value(f.name)
		}
	}
	for _, x := range spec.extras {
		e[x.name] = x.compute(view)
	}

	for _, n := range spec.nested {
		children, err := a.many(l.child(n), group, false)
		if err != nil {
			return nil, err
		}
		v, err := resolve(n.cardinality, n.key, children)
		if err != nil {
			return nil, err
		}
		e[n.key] = v
	}

	for _, at := range spec.attached {
		var matches []any
		if key, ok := tupleOf(at.match.parentFields(spec.keyBy), view.Value); ok {
			matches = a.attached.lookup(l.prefix+at.key, key)
		}
		v, err := resolve(at.cardinality, at.key, matches)
		if err != nil {
			return nil, err
		}
		e[at.key] = v
	}
	return e, nil
}

func (s *Spec) comparator() ordering.Comparator[built] {
	c := ordering.Comparator[built]{Keys: make([]ordering.Key[built], len(s.ordering))}
	for i, o := range s.ordering {
		accessor := o.accessor
		c.Keys[i] = ordering.Key[built]{
			Accessor:  func(b built) any { return accessor(b.entity) },
			Direction: o.direction,
			Nulls:     o.nulls,
		}
	}
	if s.keyTieBreak && len(s.keyBy) > 0 {
		c.TieBreak = func(a, b built) int { return ordering.CompareTuples(a.key, b.key) }
	}
	return c
}

func finish(spec *Spec, items []built) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = output(spec, it.entity)
	}
	return out
}

func output(spec *Spec, e Entity) any {
	if spec.terminal == nil {
		return e
	}
	return spec.terminal(e)
}
