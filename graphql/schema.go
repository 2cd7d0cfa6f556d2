// Package graphql assembles the read-only GraphQL schema over projects and dependencies.
package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/ortelius/pdvd-depscan/graphql/modules/dependencies"
	"github.com/ortelius/pdvd-depscan/graphql/modules/projects"
	"github.com/ortelius/pdvd-depscan/internal/services"
)

// CreateSchema builds the root query from every module
func CreateSchema(svc *services.ProjectService) (graphql.Schema, error) {
	fields := graphql.Fields{}

	projectType := projects.NewProjectType(svc)
	for name, field := range projects.GetQueryFields(svc, projectType) {
		fields[name] = field
	}
	for name, field := range dependencies.GetQueryFields(svc) {
		fields[name] = field
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: fields,
		}),
	})
}
