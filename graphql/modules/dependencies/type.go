// Package dependencies defines the GraphQL types and queries for dependency records.
package dependencies

import (
	"github.com/graphql-go/graphql"

	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// DependencyType is one dependency record of one project
var DependencyType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Dependency",
	Fields: graphql.Fields{
		"id":                &graphql.Field{Type: graphql.Int},
		"project_id":        &graphql.Field{Type: graphql.Int},
		"name":              &graphql.Field{Type: graphql.String},
		"version":           &graphql.Field{Type: graphql.String},
		"is_vulnerable":     &graphql.Field{Type: graphql.Boolean},
		"vulnerability_ids": &graphql.Field{Type: graphql.NewList(graphql.String)},
		"queried_at":        &graphql.Field{Type: graphql.DateTime},
	},
})

// VulnerabilityType is the subset of an OSV record exposed over GraphQL
var VulnerabilityType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Vulnerability",
	Fields: graphql.Fields{
		"id":      &graphql.Field{Type: graphql.String},
		"summary": &graphql.Field{Type: graphql.String},
		"aliases": &graphql.Field{Type: graphql.NewList(graphql.String)},
		"severity": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if v, ok := p.Source.(model.Vulnerability); ok {
					return vulncache.HighestSeverity([]model.Vulnerability{v}).String(), nil
				}
				return nil, nil
			},
		},
	},
})

// DependencyDetailType aggregates one identity across projects
var DependencyDetailType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DependencyDetail",
	Fields: graphql.Fields{
		"name":              &graphql.Field{Type: graphql.String},
		"version":           &graphql.Field{Type: graphql.String},
		"is_vulnerable":     &graphql.Field{Type: graphql.Boolean},
		"vulnerability_ids": &graphql.Field{Type: graphql.NewList(graphql.String)},
		"projects":          &graphql.Field{Type: graphql.NewList(graphql.String)},
		"queried_at":        &graphql.Field{Type: graphql.DateTime},
		"severity":          &graphql.Field{Type: graphql.String},
		"vulnerabilities":   &graphql.Field{Type: graphql.NewList(VulnerabilityType)},
	},
})
