package hydrate

import "rowhydrate/internal/ordering"

// Direction is the sort direction of an ordering key.
type Direction = ordering.Direction

// NullPlacement decides where absent values sort, independent of Direction.
type NullPlacement = ordering.NullPlacement

const (
	Asc  = ordering.Asc
	Desc = ordering.Desc

	NullsLast  = ordering.NullsLast
	NullsFirst = ordering.NullsFirst
)

// Compare is the total value order used by every OrderBy key and the keyBy
// tie-break.
func Compare(a, b any) int {
	return ordering.Compare(a, b)
}
