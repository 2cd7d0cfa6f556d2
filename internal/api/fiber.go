// Package api builds the Fiber application serving the REST, GraphQL and metrics endpoints.
package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ortelius/pdvd-depscan/graphql"
	"github.com/ortelius/pdvd-depscan/internal/services"
	"github.com/ortelius/pdvd-depscan/restapi"
	"github.com/ortelius/pdvd-depscan/restapi/modules/admin"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// Deps are the components the HTTP layer serves
type Deps struct {
	Service  *services.ProjectService
	Cache    *vulncache.Cache
	Scanner  admin.Scanner
	Gatherer prometheus.Gatherer
	// AccessLog enables the request logger middleware
	AccessLog bool
}

// NewFiberApp creates and configures a Fiber app with REST and GraphQL routes
func NewFiberApp(deps Deps) (*fiber.App, error) {
	// Initialize GraphQL schema
	schema, err := graphql.CreateSchema(deps.Service)
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL schema: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:     "pdvd-depscan API v1.0",
		BodyLimit:   4 * 1024 * 1024,
		ReadTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))

	if deps.AccessLog {
		app.Use(func(c *fiber.Ctx) error {
			c.Locals("graphql_op", "-")
			return c.Next()
		})
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} - ${latency} ${method} ${path} ${locals:graphql_op}\n",
		}))
	}

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "You seem lost!"})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	restapi.SetupRoutes(app, deps.Service, deps.Cache, deps.Scanner, schema)

	return app, nil
}
