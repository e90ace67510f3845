package sqlutil

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// TupleIn is a squirrel condition matching rows whose columns equal one of
// the given tuples: `col IN (?,...)` for one column and
// `(a, b) IN ((?,?), ...)` for several. Column names are quoted on render.
type TupleIn struct {
	Columns []string
	Tuples  [][]any
}

var _ sq.Sqlizer = TupleIn{}

// ToSql implements squirrel.Sqlizer.
func (t TupleIn) ToSql() (string, []any, error) {
	width := len(t.Columns)
	if width == 0 {
		return "", nil, fmt.Errorf("tuple IN requires at least one column")
	}
	if len(t.Tuples) == 0 {
		// Never true; keeps an empty batch valid SQL.
		return "(1=0)", nil, nil
	}

	quoted := QuoteIdentifiers(t.Columns)
	args := make([]any, 0, len(t.Tuples)*width)
	for _, tuple := range t.Tuples {
		if len(tuple) != width {
			return "", nil, fmt.Errorf("tuple width mismatch: expected %d values, got %d", width, len(tuple))
		}
		args = append(args, tuple...)
	}

	if width == 1 {
		return fmt.Sprintf("%s IN (%s)", quoted[0], sq.Placeholders(len(t.Tuples))), args, nil
	}

	row := "(" + sq.Placeholders(width) + ")"
	rows := make([]string, len(t.Tuples))
	for i := range rows {
		rows[i] = row
	}
	return fmt.Sprintf("(%s) IN (%s)", strings.Join(quoted, ", "), strings.Join(rows, ", ")), args, nil
}
