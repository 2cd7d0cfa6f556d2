// Package projects defines the GraphQL types and queries for projects.
package projects

import (
	"github.com/graphql-go/graphql"

	"github.com/ortelius/pdvd-depscan/graphql/modules/dependencies"
	"github.com/ortelius/pdvd-depscan/internal/services"
	"github.com/ortelius/pdvd-depscan/model"
)

// NewProjectType builds the Project object; its dependencies field reads from the store.
func NewProjectType(svc *services.ProjectService) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Project",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.Int},
			"name":        &graphql.Field{Type: graphql.String},
			"description": &graphql.Field{Type: graphql.String},
			"dependencies": &graphql.Field{
				Type: graphql.NewList(dependencies.DependencyType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					project, ok := p.Source.(model.Project)
					if !ok {
						return nil, nil
					}
					return svc.Store.DependenciesByProject(p.Context, project.ID)
				},
			},
		},
	})
}
