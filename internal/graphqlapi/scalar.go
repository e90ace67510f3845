package graphqlapi

import (
	"encoding/json"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"rowhydrate/internal/encode"
)

// JSON is the scalar every view resolves to. Hydrated entities are emitted
// as structured JSON rather than a serialized string.
var JSON = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "JSON",
	Description: "Arbitrary JSON value.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case nil:
			return nil
		case []byte:
			return string(v)
		case json.RawMessage:
			var out interface{}
			if err := json.Unmarshal(v, &out); err != nil {
				return string(v)
			}
			return out
		default:
			return encode.Normalize(v)
		}
	},
	ParseValue: func(value interface{}) interface{} {
		return value
	},
	ParseLiteral: parseLiteral,
})

func parseLiteral(valueAST ast.Value) interface{} {
	switch v := valueAST.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.IntValue:
		return json.Number(v.Value)
	case *ast.FloatValue:
		return json.Number(v.Value)
	case *ast.ListValue:
		out := make([]interface{}, len(v.Values))
		for i, item := range v.Values {
			out[i] = parseLiteral(item)
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]interface{}, len(v.Fields))
		for _, f := range v.Fields {
			out[f.Name.Value] = parseLiteral(f.Value)
		}
		return out
	}
	return nil
}
