// Package graphqlapi exposes configured views as GraphQL query fields.
package graphqlapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"
	"github.com/jinzhu/inflection"

	"rowhydrate/internal/config"
)

// Runner executes views by name.
type Runner interface {
	Names() []string
	Config(name string) (config.ViewConfig, bool)
	Describe(name string) (string, error)
	Run(ctx context.Context, name string) (any, error)
	RunOne(ctx context.Context, name string) (any, error)
}

// ViewsField lists the registered views.
const ViewsField = "_views"

var viewInfoType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "ViewInfo",
	Description: "A configured view and the structure of its spec.",
	Fields: graphql.Fields{
		"name":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"spec":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"single": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"shape":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"firstField": &graphql.Field{
			Type:        graphql.String,
			Description: "Query field returning the first entity, when one exists.",
		},
	},
})

// BuildSchema builds a schema with one query field per view. List views whose
// singular name is free also get a field that returns the first entity.
func BuildSchema(r Runner) (graphql.Schema, error) {
	names := r.Names()
	taken := make(map[string]bool, len(names)+1)
	taken[ViewsField] = true
	for _, n := range names {
		taken[n] = true
	}

	fields := graphql.Fields{}
	firstFields := make(map[string]string)
	for _, name := range names {
		cfg, ok := r.Config(name)
		if !ok {
			return graphql.Schema{}, fmt.Errorf("view %q has no configuration", name)
		}
		if cfg.Single {
			fields[name] = &graphql.Field{
				Type:        JSON,
				Description: fmt.Sprintf("The %s entity, or null.", name),
				Resolve:     resolveOne(r, name),
			}
			continue
		}
		fields[name] = &graphql.Field{
			Type:        graphql.NewNonNull(graphql.NewList(JSON)),
			Description: fmt.Sprintf("All %s entities.", name),
			Resolve:     resolveList(r, name),
		}

		singular := inflection.Singular(name)
		if singular == name || taken[singular] {
			continue
		}
		taken[singular] = true
		firstFields[name] = singular
		fields[singular] = &graphql.Field{
			Type:        JSON,
			Description: fmt.Sprintf("The first %s entity, or null.", name),
			Resolve:     resolveOne(r, name),
		}
	}

	fields[ViewsField] = &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(viewInfoType))),
		Description: "Registered views.",
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			out := make([]map[string]interface{}, 0, len(names))
			for _, name := range names {
				info, err := describeView(r, name, firstFields)
				if err != nil {
					return nil, err
				}
				out = append(out, info)
			}
			return out, nil
		},
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: fields,
		}),
	})
}

func describeView(r Runner, name string, firstFields map[string]string) (map[string]interface{}, error) {
	cfg, _ := r.Config(name)
	shape, err := r.Describe(name)
	if err != nil {
		return nil, err
	}
	info := map[string]interface{}{
		"name":       name,
		"spec":       cfg.Spec,
		"single":     cfg.Single,
		"shape":      shape,
		"firstField": nil,
	}
	if f, ok := firstFields[name]; ok {
		info["firstField"] = f
	}
	return info, nil
}

func resolveList(r Runner, name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return r.Run(p.Context, name)
	}
}

func resolveOne(r Runner, name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		return r.RunOne(p.Context, name)
	}
}

// FieldNames lists the query fields of schema in sorted order.
func FieldNames(schema graphql.Schema) []string {
	names := make([]string, 0)
	for name := range schema.QueryType().Fields() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewHandler serves schema over HTTP.
func NewHandler(schema *graphql.Schema, graphiQL bool) http.Handler {
	return handler.New(&handler.Config{
		Schema:     schema,
		Pretty:     true,
		GraphiQL:   graphiQL,
		Playground: false,
	})
}
