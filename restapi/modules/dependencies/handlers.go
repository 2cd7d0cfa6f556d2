// Package dependencies implements the REST API handlers for dependency lookups.
package dependencies

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/ortelius/pdvd-depscan/internal/services"
	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/store"
)

// ListDependencies returns every dependency record. ?vulnerable=true or false filters on state.
func ListDependencies(svc *services.ProjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deps, err := svc.Store.AllDependencies(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		switch c.Query("vulnerable") {
		case "":
		case "true", "false":
			want := c.Query("vulnerable") == "true"
			filtered := []model.Dependency{}
			for _, d := range deps {
				if d.IsVulnerable == want {
					filtered = append(filtered, d)
				}
			}
			deps = filtered
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "vulnerable must be true or false",
			})
		}

		return c.JSON(deps)
	}
}

// GetDependency returns one dependency identity with the projects using it and its cached vulnerabilities
func GetDependency(svc *services.ProjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			name = c.Params("name")
		}
		version, err := url.PathUnescape(c.Params("version"))
		if err != nil {
			version = c.Params("version")
		}

		dep, err := svc.DependencyWithVulns(c.UserContext(), name, version)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "Dependency not found",
			})
		case errors.Is(err, services.ErrUpstream):
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"message": "Failed to retrieve vulnerability data. Please try again later.",
			})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		}

		return c.JSON(dep)
	}
}
