// Package ordering builds deterministic multi-key comparators for hydrated
// entities, with explicit null placement and an optional trailing tie-break.
package ordering

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// type classes, in cross-class order
const (
	classBool = iota
	classNumber
	classString
	classTime
	classUUID
	classOther
)

// IsNull reports whether v should be treated as an absent value: nil, a nil
// pointer, or a driver.Valuer (sql.NullString, mysql.NullTime, ...)
// whose Value is nil.
func IsNull(v any) bool {
	return Normalize(v) == nil
}

// Compare is a total order over hydrated scalar values. nil sorts before
// everything. Values of different classes are ordered by class, and values the
// comparator does not understand fall back to their type name and fmt.Sprint
// form so the result is always stable.
func Compare(a, b any) int {
	a, b = Normalize(a), Normalize(b)
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	ca, cb := classOf(a), classOf(b)
	if ca != cb {
		return cmpInt(ca, cb)
	}

	switch ca {
	case classBool:
		return cmpBool(a.(bool), b.(bool))
	case classNumber:
		return compareNumbers(a, b)
	case classString:
		return strings.Compare(stringOf(a), stringOf(b))
	case classTime:
		return a.(time.Time).Compare(b.(time.Time))
	case classUUID:
		ua, ub := a.(uuid.UUID), b.(uuid.UUID)
		return bytes.Compare(ua[:], ub[:])
	}

	ta, tb := fmt.Sprintf("%T", a), fmt.Sprintf("%T", b)
	if ta != tb {
		return strings.Compare(ta, tb)
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// CompareTuples orders two equally sized tuples element by element.
func CompareTuples(a, b []any) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if r := Compare(a[i], b[i]); r != 0 {
			return r
		}
	}
	return cmpInt(len(a), len(b))
}

// Normalize unwraps nullable and pointer wrappers to the plain value they
// carry, returning nil for anything that represents an absent value.
func Normalize(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}

	switch x := v.(type) {
	case decimal.Decimal, uuid.UUID, time.Time, big.Int, *big.Int, json.Number:
		return v
	case decimal.NullDecimal:
		if !x.Valid {
			return nil
		}
		return x.Decimal
	case uuid.NullUUID:
		if !x.Valid {
			return nil
		}
		return x.UUID
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil || inner == nil {
			return nil
		}
		if _, nested := inner.(driver.Valuer); nested {
			return inner
		}
		return Normalize(inner)
	}

	if rv.Kind() == reflect.Pointer {
		return Normalize(rv.Elem().Interface())
	}
	return v
}

// Canonical renders a non-null value as an identity string. Values that
// Compare reports equal within a class render the same (int widths, float and
// DECIMAL forms of one number, []byte and string, one instant in two zones);
// values of different classes never do. The result is length-prefixed, so
// concatenating several keeps them distinct.
func Canonical(v any) string {
	v = Normalize(v)
	var tag byte
	var body string
	switch c := classOf(v); c {
	case classBool:
		tag, body = 'b', strconv.FormatBool(v.(bool))
	case classNumber:
		tag = 'n'
		switch rank, d := numberRank(v); rank {
		case rankFinite:
			body = d.String()
		case rankNaN:
			body = "NaN"
		case rankNegInf:
			body = "-Inf"
		default:
			body = "+Inf"
		}
	case classString:
		tag, body = 's', stringOf(v)
	case classTime:
		tag, body = 't', v.(time.Time).UTC().Format(time.RFC3339Nano)
	case classUUID:
		tag, body = 'u', v.(uuid.UUID).String()
	default:
		tag, body = 'o', fmt.Sprintf("%T=%v", v, v)
	}
	return string(tag) + strconv.Itoa(len(body)) + ":" + body
}

func classOf(v any) int {
	switch x := v.(type) {
	case bool:
		return classBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, big.Int, *big.Int, decimal.Decimal:
		return classNumber
	case json.Number:
		if _, err := decimal.NewFromString(string(x)); err == nil {
			return classNumber
		}
		return classString
	case string, []byte:
		return classString
	case time.Time:
		return classTime
	case uuid.UUID:
		return classUUID
	}
	return classOther
}

func stringOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case json.Number:
		return string(x)
	}
	return fmt.Sprint(v)
}

// compareNumbers orders finite values exactly through decimal.Decimal. NaN
// sorts below every other number and infinities sit at the extremes.
func compareNumbers(a, b any) int {
	ra, da := numberRank(a)
	rb, db := numberRank(b)
	if ra != rb || ra != rankFinite {
		return cmpInt(ra, rb)
	}
	return da.Cmp(db)
}

const (
	rankNaN = iota
	rankNegInf
	rankFinite
	rankPosInf
)

func numberRank(v any) (int, decimal.Decimal) {
	switch x := v.(type) {
	case int:
		return rankFinite, decimal.NewFromInt(int64(x))
	case int8:
		return rankFinite, decimal.NewFromInt(int64(x))
	case int16:
		return rankFinite, decimal.NewFromInt(int64(x))
	case int32:
		return rankFinite, decimal.NewFromInt(int64(x))
	case int64:
		return rankFinite, decimal.NewFromInt(x)
	case uint:
		return rankFinite, decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0)
	case uint8:
		return rankFinite, decimal.NewFromInt(int64(x))
	case uint16:
		return rankFinite, decimal.NewFromInt(int64(x))
	case uint32:
		return rankFinite, decimal.NewFromInt(int64(x))
	case uint64:
		return rankFinite, decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0)
	case float32:
		return floatRank(float64(x))
	case float64:
		return floatRank(x)
	case *big.Int:
		return rankFinite, decimal.NewFromBigInt(x, 0)
	case big.Int:
		return rankFinite, decimal.NewFromBigInt(&x, 0)
	case decimal.Decimal:
		return rankFinite, x
	case json.Number:
		d, _ := decimal.NewFromString(string(x))
		return rankFinite, d
	}
	return rankNaN, decimal.Zero
}

func floatRank(f float64) (int, decimal.Decimal) {
	switch {
	case math.IsNaN(f):
		return rankNaN, decimal.Zero
	case math.IsInf(f, -1):
		return rankNegInf, decimal.Zero
	case math.IsInf(f, 1):
		return rankPosInf, decimal.Zero
	}
	return rankFinite, decimal.NewFromFloat(f)
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
