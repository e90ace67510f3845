package hydrate

import "slices"

// Extend merges other into s. Both must share the same keyBy. Entries in other
// replace same-named entries in s at their original position; new entries are
// appended. Ordering keys are concatenated with s first. When other is a
// *Mapped its terminal transform is not carried over; s keeps its own.
func (s *Spec) Extend(other Definition) (*Spec, error) {
	o := other.definition()
	if !slices.Equal(s.keyBy, o.keyBy) {
		return nil, &KeyByMismatchError{Base: slices.Clone(s.keyBy), Other: slices.Clone(o.keyBy)}
	}

	next := s.clone()
	for _, f := range o.fields {
		next.fields = upsert(next.fields, f, fieldName)
	}
	for _, x := range o.extras {
		next.extras = upsert(next.extras, x, extraName)
	}
	for _, n := range o.nested {
		next.nested = upsert(next.nested, n, nestedKey)
	}
	for _, at := range o.attached {
		next.attached = upsert(next.attached, at, attachedKey)
	}
	if len(o.ordering) > 0 {
		next.ordering = append(slices.Clip(next.ordering), o.ordering...)
	}
	next.keyTieBreak = s.keyTieBreak || o.keyTieBreak
	return next, nil
}
