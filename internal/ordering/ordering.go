package ordering

import (
	"fmt"
	"slices"
	"strings"
)

// Direction is the sort direction of a single ordering key.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts asc/desc in any case. An empty string means Asc.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return Asc, fmt.Errorf("order direction must be asc or desc, got %q", raw)
}

// NullPlacement decides where absent values sort, independent of Direction.
type NullPlacement int

const (
	NullsLast NullPlacement = iota
	NullsFirst
)

func (p NullPlacement) String() string {
	if p == NullsFirst {
		return "first"
	}
	return "last"
}

// ParseNullPlacement accepts first/last in any case. An empty string means NullsLast.
func ParseNullPlacement(raw string) (NullPlacement, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "last":
		return NullsLast, nil
	case "first":
		return NullsFirst, nil
	}
	return NullsLast, fmt.Errorf("null placement must be first or last, got %q", raw)
}

// Key is one declared ordering key.
type Key[T any] struct {
	Accessor  func(T) any
	Direction Direction
	Nulls     NullPlacement
}

// Comparator folds a list of keys into a single comparison. TieBreak, when
// set, is consulted only after every key compares equal.
type Comparator[T any] struct {
	Keys     []Key[T]
	TieBreak func(a, b T) int
}

// Compare returns a negative number when a sorts before b, a positive number
// when after, and zero when the keys and tie-break cannot tell them apart.
func (c Comparator[T]) Compare(a, b T) int {
	for _, key := range c.Keys {
		av, bv := key.Accessor(a), key.Accessor(b)
		aNull, bNull := IsNull(av), IsNull(bv)
		switch {
		case aNull && bNull:
			continue
		case aNull:
			return nullOutcome(key.Nulls)
		case bNull:
			return -nullOutcome(key.Nulls)
		}

		r := Compare(av, bv)
		if key.Direction == Desc {
			r = -r
		}
		if r != 0 {
			return r
		}
	}
	if c.TieBreak != nil {
		return c.TieBreak(a, b)
	}
	return 0
}

// Empty reports whether the comparator would leave every slice untouched.
func (c Comparator[T]) Empty() bool {
	return len(c.Keys) == 0 && c.TieBreak == nil
}

// Sort orders items in place. Equal items keep their relative order.
func (c Comparator[T]) Sort(items []T) {
	if c.Empty() || len(items) < 2 {
		return
	}
	slices.SortStableFunc(items, c.Compare)
}

func nullOutcome(p NullPlacement) int {
	if p == NullsFirst {
		return -1
	}
	return 1
}
