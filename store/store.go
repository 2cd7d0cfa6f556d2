// Package store holds the project and dependency records the service tracks.
// Records are plain CRUD data; vulnerability state on them is a copy of what
// the vulnerability cache last reported.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ortelius/pdvd-depscan/model"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// DuplicateProjectError is returned when a project name is already taken
type DuplicateProjectError struct {
	Name string
}

func (e *DuplicateProjectError) Error() string {
	return fmt.Sprintf("Project with name '%s' already exists.", e.Name)
}

// NewDependency is the input for AddDependencies
type NewDependency struct {
	Name             string
	Version          string
	IsVulnerable     bool
	VulnerabilityIDs []string
}

// Store defines the record operations used by the API, the scheduler and the seed loader
type Store interface {
	AddProject(ctx context.Context, name, description string) (model.Project, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, id int) (model.Project, error)
	AddDependencies(ctx context.Context, projectID int, deps []NewDependency) ([]model.Dependency, error)
	DependenciesByProject(ctx context.Context, projectID int) ([]model.Dependency, error)
	AllDependencies(ctx context.Context) ([]model.Dependency, error)
	// DistinctIdentities lists every tracked (name, version) pair once, in first-seen order
	DistinctIdentities(ctx context.Context) ([]model.Identity, error)
	// UpdateDependencyVulnerability rewrites the vulnerability state of every record of one
	// identity and returns how many records changed
	UpdateDependencyVulnerability(ctx context.Context, name, version string, isVulnerable bool, vulnIDs []string) (int, error)
	DependencyDetail(ctx context.Context, name, version string) (model.DependencyDetail, error)
	Clear(ctx context.Context) error
}
