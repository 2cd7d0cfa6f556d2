// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/ortelius/pdvd-depscan/internal/services"
	"github.com/ortelius/pdvd-depscan/restapi/modules/admin"
	"github.com/ortelius/pdvd-depscan/restapi/modules/dependencies"
	"github.com/ortelius/pdvd-depscan/restapi/modules/projects"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// SetupRoutes configures all REST API routes and the GraphQL endpoint.
func SetupRoutes(app *fiber.App, svc *services.ProjectService, cache *vulncache.Cache, scanner admin.Scanner, schema graphql.Schema) {
	// API Group /api/v1
	api := app.Group("/api/v1")

	api.Post("/graphql", GraphQLHandler(schema))

	// Project Routes
	projectGroup := api.Group("/projects")
	projectGroup.Post("/", projects.PostProject(svc))
	projectGroup.Get("/", projects.ListProjects(svc))
	projectGroup.Get("/:id", projects.GetProject(svc))
	projectGroup.Get("/:id/dependencies", projects.GetProjectDependencies(svc))

	// Dependency Routes
	dependencyGroup := api.Group("/dependencies")
	dependencyGroup.Get("/", dependencies.ListDependencies(svc))
	dependencyGroup.Get("/:name/:version", dependencies.GetDependency(svc))

	// Admin Routes
	adminGroup := api.Group("/admin")
	adminGroup.Post("/scan", admin.PostScan(scanner))
	adminGroup.Get("/cache", admin.GetCacheStatus(cache))
	adminGroup.Delete("/cache", admin.DeleteCache(cache))
}
