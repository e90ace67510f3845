// Package specdoc compiles declarative hydration spec documents, as found
// under the specs key of the configuration file, into hydrate definitions.
package specdoc

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Document is one declarative spec. Nested and attached children reference
// another document by name or embed one inline.
type Document struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Extends     string   `mapstructure:"extends"`
	KeyBy       []string `mapstructure:"key_by"`
	// Fields accepts bare names or {name, transform, omit} objects.
	Fields []FieldDoc `mapstructure:"fields"`
	Omit   []string   `mapstructure:"omit"`
	Extras []ExtraDoc `mapstructure:"extras"`

	HasMany       []NestedDoc `mapstructure:"has_many"`
	HasOne        []NestedDoc `mapstructure:"has_one"`
	HasOneOrThrow []NestedDoc `mapstructure:"has_one_or_throw"`

	AttachMany       []AttachDoc `mapstructure:"attach_many"`
	AttachOne        []AttachDoc `mapstructure:"attach_one"`
	AttachOneOrThrow []AttachDoc `mapstructure:"attach_one_or_throw"`

	OrderBy     []OrderDoc `mapstructure:"order_by"`
	OrderByKeys bool       `mapstructure:"order_by_keys"`
	// AutoFields includes every unscoped column a view selects that the
	// document does not configure.
	AutoFields bool `mapstructure:"auto_fields"`
	// Pluck replaces each entity with the value of one of its fields.
	Pluck string `mapstructure:"pluck"`
}

// FieldDoc configures one output field.
type FieldDoc struct {
	Name      string `mapstructure:"name"`
	Transform string `mapstructure:"transform"`
	Omit      bool   `mapstructure:"omit"`
}

// ExtraDoc configures a computed field. Kind is concat, coalesce or literal.
type ExtraDoc struct {
	Name  string   `mapstructure:"name"`
	Kind  string   `mapstructure:"kind"`
	From  []string `mapstructure:"from"`
	Sep   string   `mapstructure:"sep"`
	Value any      `mapstructure:"value"`
}

// NestedDoc configures a relation read from the same rows under a scope prefix.
// Prefix defaults to the key followed by the scope separator.
type NestedDoc struct {
	Key    string `mapstructure:"key"`
	Prefix string `mapstructure:"prefix"`
	// Spec is a document name or an inline document.
	Spec any `mapstructure:"spec"`
}

// AttachDoc configures a relation loaded with a batched query against Table.
type AttachDoc struct {
	Key         string   `mapstructure:"key"`
	Table       string   `mapstructure:"table"`
	Columns     []string `mapstructure:"columns"`
	MatchChild  []string `mapstructure:"match_child"`
	MatchParent []string `mapstructure:"match_parent"`
	Where       string   `mapstructure:"where"`
	WhereArgs   []any    `mapstructure:"where_args"`
	SQLOrderBy  []string `mapstructure:"sql_order_by"`
	MaxInClause int      `mapstructure:"max_in_clause"`
	Spec        any      `mapstructure:"spec"`
}

// OrderDoc configures one ordering key on an output field.
type OrderDoc struct {
	Field     string `mapstructure:"field"`
	Direction string `mapstructure:"direction"`
	Nulls     string `mapstructure:"nulls"`
}

// Decode strictly decodes raw into a Document. Unknown keys are errors.
func Decode(raw map[string]any) (*Document, error) {
	var doc Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.ComposeDecodeHookFunc(stringToFieldDocHookFunc()),
		ErrorUnused: true,
		Result:      &doc,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode spec document: %w", err)
	}
	return &doc, nil
}

func stringToFieldDocHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(FieldDoc{}) {
			return data, nil
		}
		return FieldDoc{Name: data.(string)}, nil
	}
}
