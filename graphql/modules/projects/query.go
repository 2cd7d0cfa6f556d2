package projects

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/ortelius/pdvd-depscan/internal/services"
	"github.com/ortelius/pdvd-depscan/store"
)

// GetQueryFields returns the project queries to be mounted in the root schema.
func GetQueryFields(svc *services.ProjectService, projectType *graphql.Object) graphql.Fields {
	return graphql.Fields{
		"projects": &graphql.Field{
			Type: graphql.NewList(projectType),
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return svc.Store.ListProjects(p.Context)
			},
		},
		"project": &graphql.Field{
			Type: projectType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				project, err := svc.Store.GetProject(p.Context, p.Args["id"].(int))
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return project, nil
			},
		},
	}
}
