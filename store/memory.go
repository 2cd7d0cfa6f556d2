package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ortelius/pdvd-depscan/model"
)

// Memory keeps records in ordered slices guarded by one mutex. IDs start at 1.
type Memory struct {
	mu               sync.RWMutex
	projects         []model.Project
	dependencies     []model.Dependency
	nextProjectID    int
	nextDependencyID int
	now              func() time.Time
}

// Ensure compile-time interface check
var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{nextProjectID: 1, nextDependencyID: 1, now: time.Now}
}

// AddProject stores a new project; names are unique, compared case-insensitively
func (m *Memory) AddProject(_ context.Context, name, description string) (model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.projects {
		if strings.EqualFold(p.Name, name) {
			return model.Project{}, &DuplicateProjectError{Name: name}
		}
	}

	project := model.Project{ID: m.nextProjectID, Name: name, Description: description}
	m.projects = append(m.projects, project)
	m.nextProjectID++
	return project, nil
}

// ListProjects returns projects in creation order
func (m *Memory) ListProjects(_ context.Context) ([]model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]model.Project{}, m.projects...), nil
}

// GetProject returns one project by ID
func (m *Memory) GetProject(_ context.Context, id int) (model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Project{}, ErrNotFound
}

// AddDependencies appends a batch of dependency records for a project
func (m *Memory) AddDependencies(_ context.Context, projectID int, deps []NewDependency) ([]model.Dependency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasProjectLocked(projectID) {
		return nil, ErrNotFound
	}

	now := m.now().UTC()
	added := make([]model.Dependency, 0, len(deps))
	for _, dep := range deps {
		record := model.Dependency{
			ID:               m.nextDependencyID,
			ProjectID:        projectID,
			Name:             dep.Name,
			Version:          dep.Version,
			IsVulnerable:     dep.IsVulnerable,
			VulnerabilityIDs: copyIDs(dep.VulnerabilityIDs),
			QueriedAt:        now,
		}
		m.dependencies = append(m.dependencies, record)
		added = append(added, record)
		m.nextDependencyID++
	}
	return added, nil
}

// DependenciesByProject returns all dependencies for a given project
func (m *Memory) DependenciesByProject(_ context.Context, projectID int) ([]model.Dependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.hasProjectLocked(projectID) {
		return nil, ErrNotFound
	}

	deps := []model.Dependency{}
	for _, d := range m.dependencies {
		if d.ProjectID == projectID {
			deps = append(deps, d)
		}
	}
	return deps, nil
}

// AllDependencies returns every dependency record
func (m *Memory) AllDependencies(_ context.Context) ([]model.Dependency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]model.Dependency{}, m.dependencies...), nil
}

// DistinctIdentities returns each tracked identity once, keyed like the cache
func (m *Memory) DistinctIdentities(_ context.Context) ([]model.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	ids := []model.Identity{}
	for _, d := range m.dependencies {
		id := d.Identity()
		if seen[id.Key()] {
			continue
		}
		seen[id.Key()] = true
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateDependencyVulnerability rewrites the vulnerability state of every record of one identity
func (m *Memory) UpdateDependencyVulnerability(_ context.Context, name, version string, isVulnerable bool, vulnIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := model.Identity{Name: name, Version: version}.Key()
	now := m.now().UTC()
	updated := 0
	for i := range m.dependencies {
		if m.dependencies[i].Identity().Key() != key {
			continue
		}
		m.dependencies[i].IsVulnerable = isVulnerable
		m.dependencies[i].VulnerabilityIDs = copyIDs(vulnIDs)
		m.dependencies[i].QueriedAt = now
		updated++
	}
	return updated, nil
}

// DependencyDetail aggregates all records of one identity with the projects using it
func (m *Memory) DependencyDetail(_ context.Context, name, version string) (model.DependencyDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := model.Identity{Name: name, Version: version}.Key()
	var detail model.DependencyDetail
	found := false
	projectSeen := make(map[int]bool)

	for _, d := range m.dependencies {
		if d.Identity().Key() != key {
			continue
		}
		if !found || d.QueriedAt.After(detail.QueriedAt) {
			detail.Name = d.Name
			detail.Version = d.Version
			detail.IsVulnerable = d.IsVulnerable
			detail.VulnerabilityIDs = copyIDs(d.VulnerabilityIDs)
			detail.QueriedAt = d.QueriedAt
		}
		found = true
		if !projectSeen[d.ProjectID] {
			projectSeen[d.ProjectID] = true
			for _, p := range m.projects {
				if p.ID == d.ProjectID {
					detail.Projects = append(detail.Projects, p.Name)
				}
			}
		}
	}

	if !found {
		return model.DependencyDetail{}, ErrNotFound
	}
	return detail, nil
}

// Clear removes every record and resets the ID counters
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects = nil
	m.dependencies = nil
	m.nextProjectID = 1
	m.nextDependencyID = 1
	return nil
}

func (m *Memory) hasProjectLocked(id int) bool {
	for _, p := range m.projects {
		if p.ID == id {
			return true
		}
	}
	return false
}

func copyIDs(ids []string) []string {
	return append([]string{}, ids...)
}
