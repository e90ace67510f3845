package hydrate

import (
	"fmt"
	"strings"
)

// Describe renders the structure of the spec tree on one line, for logs.
//
//	{key=[id] fields=[id name -secret] extras=[label] posts:many@posts$$ {key=[id] ...}}
func (s *Spec) Describe() string {
	var b strings.Builder
	s.describe(&b)
	return b.String()
}

// Describe renders the underlying spec followed by a map marker.
func (m *Mapped) Describe() string {
	return m.base.Describe() + ".map"
}

func (s *Spec) describe(b *strings.Builder) {
	b.WriteString("{key=[")
	b.WriteString(strings.Join(s.keyBy, " "))
	b.WriteString("]")

	if len(s.fields) > 0 {
		names := make([]string, len(s.fields))
		for i, f := range s.fields {
			switch f.mode {
			case fieldOmit:
				names[i] = "-" + f.name
			case fieldTransform:
				names[i] = f.name + "*"
			default:
				names[i] = f.name
			}
		}
		fmt.Fprintf(b, " fields=[%s]", strings.Join(names, " "))
	}
	if len(s.extras) > 0 {
		names := make([]string, len(s.extras))
		for i, x := range s.extras {
			names[i] = x.name
		}
		fmt.Fprintf(b, " extras=[%s]", strings.Join(names, " "))
	}
	for _, n := range s.nested {
		fmt.Fprintf(b, " %s:%s@%s ", n.key, n.cardinality, n.prefix)
		n.child.describe(b)
		if n.child.terminal != nil {
			b.WriteString(".map")
		}
	}
	for _, at := range s.attached {
		fmt.Fprintf(b, " %s:attach-%s(%s=%s)", at.key, at.cardinality,
			strings.Join(at.match.Child, ","), strings.Join(at.match.parentFields(s.keyBy), ","))
	}
	if len(s.ordering) > 0 {
		keys := make([]string, len(s.ordering))
		for i, o := range s.ordering {
			keys[i] = o.direction.String() + "/nulls-" + o.nulls.String()
		}
		fmt.Fprintf(b, " order=[%s]", strings.Join(keys, " "))
	}
	if s.keyTieBreak {
		b.WriteString(" order-keys")
	}
	b.WriteString("}")
}
