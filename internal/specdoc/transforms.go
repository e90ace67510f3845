package specdoc

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"rowhydrate/hydrate"
)

// Transform converts one field value. Null input stays null; a value that
// cannot be converted is passed through unchanged.
type Transform func(any) any

var transforms = map[string]Transform{
	"string":  toString,
	"int":     castOr(func(v any) (any, error) { return cast.ToInt64E(textOf(v)) }),
	"float":   castOr(func(v any) (any, error) { return cast.ToFloat64E(textOf(v)) }),
	"bool":    castOr(func(v any) (any, error) { return cast.ToBoolE(textOf(v)) }),
	"lower":   stringOp(strings.ToLower),
	"upper":   stringOp(strings.ToUpper),
	"trim":    stringOp(strings.TrimSpace),
	"json":    parseJSON,
	"decimal": toDecimal,
	"uuid":    toUUID,
}

// TransformNames lists the built-in transforms.
func TransformNames() []string {
	names := make([]string, 0, len(transforms))
	for n := range transforms {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookupTransform(name string) (Transform, error) {
	t, ok := transforms[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q (valid: %s)", name, strings.Join(TransformNames(), ", "))
	}
	return t, nil
}

// textOf turns driver byte slices into strings so every converter sees text.
func textOf(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func castOr(convert func(any) (any, error)) Transform {
	return func(v any) any {
		if v == nil {
			return nil
		}
		out, err := convert(v)
		if err != nil {
			return v
		}
		return out
	}
}

func toString(v any) any {
	switch x := textOf(v).(type) {
	case nil:
		return nil
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		s, err := cast.ToStringE(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return s
	}
}

func stringOp(op func(string) string) Transform {
	return func(v any) any {
		if s, ok := textOf(v).(string); ok {
			return op(s)
		}
		return v
	}
}

func parseJSON(v any) any {
	s, ok := textOf(v).(string)
	if !ok {
		return v
	}
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return v
	}
	return out
}

func toDecimal(v any) any {
	switch x := textOf(v).(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return x
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return v
		}
		return d
	case float64:
		return decimal.NewFromFloat(x)
	case float32:
		return decimal.NewFromFloat32(x)
	default:
		n, err := cast.ToInt64E(x)
		if err != nil {
			return v
		}
		return decimal.NewFromInt(n)
	}
}

// toUUID renders text or 16-byte binary UUIDs in canonical string form.
func toUUID(v any) any {
	switch x := v.(type) {
	case []byte:
		if len(x) == 16 {
			if id, err := uuid.FromBytes(x); err == nil {
				return id.String()
			}
		}
		return toUUID(string(x))
	case string:
		id, err := uuid.Parse(strings.TrimSpace(x))
		if err != nil {
			return v
		}
		return id.String()
	case uuid.UUID:
		return x.String()
	}
	return v
}

func buildExtra(x ExtraDoc) (func(hydrate.View) any, error) {
	switch strings.ToLower(x.Kind) {
	case "concat":
		if len(x.From) == 0 {
			return nil, fmt.Errorf("concat extra %q needs at least one source field", x.Name)
		}
		from, sep := x.From, x.Sep
		return func(v hydrate.View) any {
			parts := make([]string, 0, len(from))
			for _, f := range from {
				if val := v.Value(f); val != nil {
					parts = append(parts, toString(val).(string))
				}
			}
			if len(parts) == 0 {
				return nil
			}
			return strings.Join(parts, sep)
		}, nil
	case "coalesce":
		if len(x.From) == 0 {
			return nil, fmt.Errorf("coalesce extra %q needs at least one source field", x.Name)
		}
		from := x.From
		return func(v hydrate.View) any {
			for _, f := range from {
				if val := v.Value(f); val != nil {
					return val
				}
			}
			return nil
		}, nil
	case "literal":
		value := x.Value
		return func(hydrate.View) any { return value }, nil
	}
	return nil, fmt.Errorf("extra %q has unknown kind %q (valid: concat, coalesce, literal)", x.Name, x.Kind)
}
