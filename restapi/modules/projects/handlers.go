// Package projects implements the REST API handlers for project operations.
package projects

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ortelius/pdvd-depscan/internal/services"
	"github.com/ortelius/pdvd-depscan/store"
	"github.com/ortelius/pdvd-depscan/util"
)

// maxRequirementsSize caps the uploaded requirements file
const maxRequirementsSize = 1 << 20

// PostProject creates a project from a multipart form with name, optional description
// and a requirements.txt file
func PostProject(svc *services.ProjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.FormValue("name")
		if name == "" {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"success": false,
				"message": "Field 'name' is required",
			})
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"success": false,
				"message": "A requirements file is required in field 'file'",
			})
		}
		if fileHeader.Size > maxRequirementsSize {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"success": false,
				"message": "Requirements file is too large",
			})
		}

		file, err := fileHeader.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Unable to read uploaded file",
			})
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Unable to read uploaded file",
			})
		}

		created, err := svc.CreateProject(c.UserContext(), name, c.FormValue("description"), string(content))
		if err != nil {
			return writeError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(created)
	}
}

// ListProjects returns every project
func ListProjects(svc *services.ProjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		projects, err := svc.Store.ListProjects(c.UserContext())
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(projects)
	}
}

// GetProject returns one project with its dependencies
func GetProject(svc *services.ProjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Project id must be an integer",
			})
		}

		project, err := svc.ProjectWithDependencies(c.UserContext(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(project)
	}
}

// GetProjectDependencies returns the dependency records of one project
func GetProjectDependencies(svc *services.ProjectService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Project id must be an integer",
			})
		}

		deps, err := svc.Store.DependenciesByProject(c.UserContext(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(deps)
	}
}

func writeError(c *fiber.Ctx, err error) error {
	var dup *store.DuplicateProjectError
	var invalid *util.InvalidRequirementError

	switch {
	case errors.As(err, &dup):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "message": dup.Error()})
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"success": false, "message": invalid.Error()})
	case errors.Is(err, services.ErrEmptyName):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"success": false, "message": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Project not found"})
	case errors.Is(err, services.ErrUpstream):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Failed to retrieve vulnerability data. Please try again later.",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": err.Error()})
	}
}
