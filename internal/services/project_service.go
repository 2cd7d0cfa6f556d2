// Package services holds the project ingestion logic shared by the REST API,
// the GraphQL resolvers and the seed loader.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/store"
	"github.com/ortelius/pdvd-depscan/util"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

// ErrUpstream wraps failures of the vulnerability lookup
var ErrUpstream = errors.New("vulnerability lookup failed")

// ErrEmptyName is returned when a project is created without a name
var ErrEmptyName = errors.New("project name is required")

// Querier answers batched vulnerability lookups
type Querier interface {
	QueryBatch(ctx context.Context, ids []model.Identity) ([]model.QueryResult, error)
}

// ProjectService creates projects from pinned requirement lists and reads them back
type ProjectService struct {
	Store     store.Store
	Querier   Querier
	Ecosystem string
	Logger    *zap.Logger
}

// Ensure compile-time interface check
var _ Querier = (*vulncache.Orchestrator)(nil)

// NewProjectService creates a ProjectService. logger may be nil.
func NewProjectService(s store.Store, q Querier, ecosystem string, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{Store: s, Querier: q, Ecosystem: ecosystem, Logger: logger}
}

// CreateProject parses requirements, looks every dependency up through the cache and stores
// the project with its dependency records. Nothing is stored when any step fails.
func (s *ProjectService) CreateProject(ctx context.Context, name, description, requirements string) (model.ProjectWithDependencies, error) {
	ids, err := util.ParseRequirements(requirements, s.Ecosystem)
	if err != nil {
		return model.ProjectWithDependencies{}, err
	}
	return s.CreateProjectFromIdentities(ctx, name, description, ids)
}

// CreateProjectFromIdentities stores a project for an already parsed dependency list
func (s *ProjectService) CreateProjectFromIdentities(ctx context.Context, name, description string, ids []model.Identity) (model.ProjectWithDependencies, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ProjectWithDependencies{}, ErrEmptyName
	}

	// Reject duplicates before spending an upstream call; AddProject re-checks atomically
	existing, err := s.Store.ListProjects(ctx)
	if err != nil {
		return model.ProjectWithDependencies{}, fmt.Errorf("failed to list projects: %w", err)
	}
	for _, p := range existing {
		if strings.EqualFold(p.Name, name) {
			return model.ProjectWithDependencies{}, &store.DuplicateProjectError{Name: name}
		}
	}

	results, err := s.Querier.QueryBatch(ctx, ids)
	if err != nil {
		s.Logger.Error("Vulnerability lookup failed", zap.String("project", name), zap.Int("dependencies", len(ids)), zap.Error(err))
		return model.ProjectWithDependencies{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	project, err := s.Store.AddProject(ctx, name, description)
	if err != nil {
		return model.ProjectWithDependencies{}, err
	}

	deps := make([]store.NewDependency, 0, len(ids))
	for i, id := range ids {
		deps = append(deps, store.NewDependency{
			Name:             id.Name,
			Version:          id.Version,
			IsVulnerable:     results[i].IsVulnerable(),
			VulnerabilityIDs: results[i].IDs(),
		})
	}

	records, err := s.Store.AddDependencies(ctx, project.ID, deps)
	if err != nil {
		return model.ProjectWithDependencies{}, fmt.Errorf("failed to store dependencies: %w", err)
	}

	s.Logger.Sugar().Infof("Created project '%s' (id %d) with %d dependencies", project.Name, project.ID, len(records))
	return model.ProjectWithDependencies{Project: project, Dependencies: records}, nil
}

// ProjectWithDependencies returns one project and its records
func (s *ProjectService) ProjectWithDependencies(ctx context.Context, id int) (model.ProjectWithDependencies, error) {
	project, err := s.Store.GetProject(ctx, id)
	if err != nil {
		return model.ProjectWithDependencies{}, err
	}
	deps, err := s.Store.DependenciesByProject(ctx, id)
	if err != nil {
		return model.ProjectWithDependencies{}, err
	}
	return model.ProjectWithDependencies{Project: project, Dependencies: deps}, nil
}

// DependencyWithVulns returns the aggregated record of one identity together with the
// vulnerability data currently cached for it
func (s *ProjectService) DependencyWithVulns(ctx context.Context, name, version string) (model.DependencyWithVulns, error) {
	detail, err := s.Store.DependencyDetail(ctx, name, version)
	if err != nil {
		return model.DependencyWithVulns{}, err
	}

	results, err := s.Querier.QueryBatch(ctx, []model.Identity{{Name: detail.Name, Version: detail.Version}})
	if err != nil {
		return model.DependencyWithVulns{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return model.DependencyWithVulns{DependencyDetail: detail, Vulns: results[0].Vulns}, nil
}
