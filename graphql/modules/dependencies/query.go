package dependencies

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/ortelius/pdvd-depscan/internal/services"
	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/store"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// GetQueryFields returns the dependency queries to be mounted in the root schema.
func GetQueryFields(svc *services.ProjectService) graphql.Fields {
	return graphql.Fields{
		"dependencies": &graphql.Field{
			Type: graphql.NewList(DependencyType),
			Args: graphql.FieldConfigArgument{
				"vulnerable": &graphql.ArgumentConfig{Type: graphql.Boolean},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				deps, err := svc.Store.AllDependencies(p.Context)
				if err != nil {
					return nil, err
				}
				want, ok := p.Args["vulnerable"].(bool)
				if !ok {
					return deps, nil
				}
				filtered := []model.Dependency{}
				for _, d := range deps {
					if d.IsVulnerable == want {
						filtered = append(filtered, d)
					}
				}
				return filtered, nil
			},
		},
		"dependency": &graphql.Field{
			Type: DependencyDetailType,
			Args: graphql.FieldConfigArgument{
				"name":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				"version": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				name := p.Args["name"].(string)
				version := p.Args["version"].(string)

				dep, err := svc.DependencyWithVulns(p.Context, name, version)
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}

				severity := ""
				if len(dep.Vulns) > 0 {
					severity = vulncache.HighestSeverity(dep.Vulns).String()
				}
				return map[string]interface{}{
					"name":              dep.Name,
					"version":           dep.Version,
					"is_vulnerable":     dep.IsVulnerable,
					"vulnerability_ids": dep.VulnerabilityIDs,
					"projects":          dep.Projects,
					"queried_at":        dep.QueriedAt,
					"severity":          severity,
					"vulnerabilities":   dep.Vulns,
				}, nil
			},
		},
	}
}
