package hydrate

import (
	"context"
	"slices"
	"strings"

	"rowhydrate/internal/ordering"
)

// FetchFunc loads the children of an attached collection. It receives every
// parent row at its nesting level, already stripped of the level's scope
// prefix, and returns hydrated child entities in any order.
type FetchFunc func(ctx context.Context, rows []Row) ([]any, error)

// Match pairs child entity fields with parent fields, position by position.
// An empty Parent means the parent level's keyBy.
type Match struct {
	Child  []string
	Parent []string
}

// On is a single-column Match.
func On(child, parent string) Match {
	return Match{Child: []string{child}, Parent: []string{parent}}
}

// OnKeys matches child fields against the parent's keyBy.
func OnKeys(child ...string) Match {
	return Match{Child: child}
}

func (m Match) clone() Match {
	return Match{Child: slices.Clone(m.Child), Parent: slices.Clone(m.Parent)}
}

func (m Match) parentFields(keyBy []string) []string {
	if len(m.Parent) == 0 {
		return keyBy
	}
	return m.Parent
}

// tupleOf reads fields from get. ok is false when any part is null.
func tupleOf(fields []string, get func(string) any) ([]any, bool) {
	out := make([]any, len(fields))
	for i, f := range fields {
		v := get(f)
		if ordering.IsNull(v) {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// encodeKey renders a key tuple as a map key. Equal values of different Go
// types (int and int64, []byte and string) encode the same, while values of
// different kinds (the string "1" and the number 1) do not.
func encodeKey(parts []any) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(ordering.Canonical(p))
	}
	return b.String()
}

// entityField reads name from a child entity returned by a FetchFunc.
func entityField(item any, name string) any {
	switch e := item.(type) {
	case map[string]any:
		return e[name]
	case interface{ Get(string) (any, bool) }:
		v, _ := e.Get(name)
		return v
	}
	return nil
}

// UniqueValues returns the distinct non-null tuples of fields across rows, in
// first-seen order. With a single field the result holds bare values instead
// of one-element tuples. FetchFuncs use it to build IN lists.
func UniqueValues(rows []Row, fields ...string) []any {
	seen := make(map[string]struct{}, len(rows))
	var out []any
	for _, row := range rows {
		tuple, ok := tupleOf(fields, func(f string) any { return row[f] })
		if !ok {
			continue
		}
		k := encodeKey(tuple)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if len(fields) == 1 {
			out = append(out, tuple[0])
		} else {
			out = append(out, tuple)
		}
	}
	return out
}
