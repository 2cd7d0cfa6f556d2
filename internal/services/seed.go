package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/store"
)

// SeedFile lists projects to create at startup. Each project gives either a
// requirements.txt body or an explicit dependency list.
type SeedFile struct {
	Projects []SeedProject `yaml:"projects"`
}

// SeedProject is one project of a seed file
type SeedProject struct {
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Requirements string           `yaml:"requirements"`
	Dependencies []model.Identity `yaml:"dependencies"`
}

// ReadSeedFile parses a YAML seed file
func ReadSeedFile(path string) (SeedFile, error) {
	var seed SeedFile

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return seed, fmt.Errorf("failed to read seed file: %w", err)
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return seed, nil
}

// Seed creates every project of the seed. Projects that already exist are skipped,
// so seeding a persistent backend twice is harmless. Returns the number created.
func (s *ProjectService) Seed(ctx context.Context, seed SeedFile) (int, error) {
	created := 0
	for _, p := range seed.Projects {
		var err error
		if p.Requirements != "" {
			_, err = s.CreateProject(ctx, p.Name, p.Description, p.Requirements)
		} else {
			_, err = s.CreateProjectFromIdentities(ctx, p.Name, p.Description, p.Dependencies)
		}

		var dup *store.DuplicateProjectError
		switch {
		case errors.As(err, &dup):
			s.Logger.Info("Seed project already exists, skipping", zap.String("project", p.Name))
		case err != nil:
			return created, fmt.Errorf("failed to seed project '%s': %w", p.Name, err)
		default:
			created++
		}
	}
	return created, nil
}
