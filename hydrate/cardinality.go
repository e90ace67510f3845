package hydrate

import (
	"fmt"
	"slices"
	"strings"
)

// Cardinality decides how a relation's matched entities become one output value.
type Cardinality int

const (
	// Many keeps every match as a list, empty when there are none.
	Many Cardinality = iota
	// One keeps the first match, or nil.
	One
	// OneOrThrow keeps the first match and fails when there is none.
	OneOrThrow
)

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case OneOrThrow:
		return "one_or_throw"
	}
	return "many"
}

// ParseCardinality accepts the String forms.
func ParseCardinality(raw string) (Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "many":
		return Many, nil
	case "one":
		return One, nil
	case "one_or_throw":
		return OneOrThrow, nil
	}
	return Many, fmt.Errorf("unknown cardinality %q", raw)
}

// resolve collapses matches for relation key. A OneOrThrow relation with more
// than one match keeps the first, same as One.
func resolve(c Cardinality, key string, matches []any) (any, error) {
	switch c {
	case One:
		if len(matches) == 0 {
			return nil, nil
		}
		return matches[0], nil
	case OneOrThrow:
		if len(matches) == 0 {
			return nil, &ExpectedOneMissingError{Key: key}
		}
		return matches[0], nil
	}
	if matches == nil {
		return []any{}, nil
	}
	return slices.Clone(matches), nil
}
