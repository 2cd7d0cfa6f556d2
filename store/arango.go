package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"

	"github.com/ortelius/pdvd-depscan/database"
	"github.com/ortelius/pdvd-depscan/model"
)

// Arango keeps records in the project and dependency collections. Integer IDs come from
// per-collection counters so the API exposes the same IDs as the in-memory store.
type Arango struct {
	db database.DBConnection
	// serializes the name check and insert of AddProject
	mu sync.Mutex
}

// Ensure compile-time interface check
var _ Store = (*Arango)(nil)

// NewArango wraps an initialized connection
func NewArango(db database.DBConnection) *Arango {
	return &Arango{db: db}
}

type projectDoc struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	NameLower   string `json:"name_lower"`
	Description string `json:"description"`
}

type dependencyDoc struct {
	ID               int       `json:"id"`
	ProjectID        int       `json:"project_id"`
	Name             string    `json:"name"`
	NameLower        string    `json:"name_lower"`
	Version          string    `json:"version"`
	IsVulnerable     bool      `json:"is_vulnerable"`
	VulnerabilityIDs []string  `json:"vulnerability_ids"`
	QueriedAt        time.Time `json:"queried_at"`
}

func (d dependencyDoc) toModel() model.Dependency {
	ids := d.VulnerabilityIDs
	if ids == nil {
		ids = []string{}
	}
	return model.Dependency{
		ID:               d.ID,
		ProjectID:        d.ProjectID,
		Name:             d.Name,
		Version:          d.Version,
		IsVulnerable:     d.IsVulnerable,
		VulnerabilityIDs: ids,
		QueriedAt:        d.QueriedAt,
	}
}

// query runs an AQL statement and decodes every returned document with read
func (a *Arango) query(ctx context.Context, aql string, bindVars map[string]interface{}, read func(arangodb.Cursor) error) error {
	cursor, err := a.db.Database.Query(ctx, aql, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer cursor.Close()

	for cursor.HasMore() {
		if err := read(cursor); err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
	}
	return nil
}

// nextIDs reserves n consecutive IDs from the named counter and returns the first one
func (a *Arango) nextIDs(ctx context.Context, counter string, n int) (int, error) {
	aql := `
		UPSERT { _key: @counter }
			INSERT { _key: @counter, value: @n }
			UPDATE { value: OLD.value + @n }
			IN counter
			RETURN NEW.value
	`
	last := 0
	err := a.query(ctx, aql, map[string]interface{}{"counter": counter, "n": n}, func(c arangodb.Cursor) error {
		_, err := c.ReadDocument(ctx, &last)
		return err
	})
	if err != nil {
		return 0, err
	}
	return last - n + 1, nil
}

// AddProject stores a new project; names are unique, compared case-insensitively
func (a *Arango) AddProject(ctx context.Context, name, description string) (model.Project, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := 0
	err := a.query(ctx, `RETURN LENGTH(FOR p IN project FILTER p.name_lower == @name LIMIT 1 RETURN 1)`,
		map[string]interface{}{"name": strings.ToLower(name)},
		func(c arangodb.Cursor) error {
			_, err := c.ReadDocument(ctx, &count)
			return err
		})
	if err != nil {
		return model.Project{}, err
	}
	if count > 0 {
		return model.Project{}, &DuplicateProjectError{Name: name}
	}

	id, err := a.nextIDs(ctx, database.ProjectCollection, 1)
	if err != nil {
		return model.Project{}, err
	}

	doc := projectDoc{ID: id, Name: name, NameLower: strings.ToLower(name), Description: description}
	if err := a.query(ctx, `INSERT @doc INTO project`, map[string]interface{}{"doc": doc}, func(arangodb.Cursor) error { return nil }); err != nil {
		return model.Project{}, err
	}
	return model.Project{ID: id, Name: name, Description: description}, nil
}

func (a *Arango) readProjects(ctx context.Context, aql string, bindVars map[string]interface{}) ([]model.Project, error) {
	projects := []model.Project{}
	err := a.query(ctx, aql, bindVars, func(c arangodb.Cursor) error {
		var doc projectDoc
		if _, err := c.ReadDocument(ctx, &doc); err != nil {
			return err
		}
		projects = append(projects, model.Project{ID: doc.ID, Name: doc.Name, Description: doc.Description})
		return nil
	})
	return projects, err
}

// ListProjects returns projects in creation order
func (a *Arango) ListProjects(ctx context.Context) ([]model.Project, error) {
	return a.readProjects(ctx, `FOR p IN project SORT p.id RETURN p`, nil)
}

// GetProject returns one project by ID
func (a *Arango) GetProject(ctx context.Context, id int) (model.Project, error) {
	projects, err := a.readProjects(ctx, `FOR p IN project FILTER p.id == @id LIMIT 1 RETURN p`, map[string]interface{}{"id": id})
	if err != nil {
		return model.Project{}, err
	}
	if len(projects) == 0 {
		return model.Project{}, ErrNotFound
	}
	return projects[0], nil
}

// AddDependencies appends a batch of dependency records for a project
func (a *Arango) AddDependencies(ctx context.Context, projectID int, deps []NewDependency) ([]model.Dependency, error) {
	if _, err := a.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return []model.Dependency{}, nil
	}

	first, err := a.nextIDs(ctx, database.DependencyCollection, len(deps))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	docs := make([]dependencyDoc, 0, len(deps))
	added := make([]model.Dependency, 0, len(deps))
	for i, dep := range deps {
		doc := dependencyDoc{
			ID:               first + i,
			ProjectID:        projectID,
			Name:             dep.Name,
			NameLower:        strings.ToLower(dep.Name),
			Version:          dep.Version,
			IsVulnerable:     dep.IsVulnerable,
			VulnerabilityIDs: copyIDs(dep.VulnerabilityIDs),
			QueriedAt:        now,
		}
		docs = append(docs, doc)
		added = append(added, doc.toModel())
	}

	err = a.query(ctx, `FOR d IN @docs INSERT d INTO dependency`, map[string]interface{}{"docs": docs}, func(arangodb.Cursor) error { return nil })
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (a *Arango) readDependencies(ctx context.Context, aql string, bindVars map[string]interface{}) ([]model.Dependency, error) {
	deps := []model.Dependency{}
	err := a.query(ctx, aql, bindVars, func(c arangodb.Cursor) error {
		var doc dependencyDoc
		if _, err := c.ReadDocument(ctx, &doc); err != nil {
			return err
		}
		deps = append(deps, doc.toModel())
		return nil
	})
	return deps, err
}

// DependenciesByProject returns all dependencies for a given project
func (a *Arango) DependenciesByProject(ctx context.Context, projectID int) ([]model.Dependency, error) {
	if _, err := a.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return a.readDependencies(ctx, `FOR d IN dependency FILTER d.project_id == @pid SORT d.id RETURN d`,
		map[string]interface{}{"pid": projectID})
}

// AllDependencies returns every dependency record
func (a *Arango) AllDependencies(ctx context.Context) ([]model.Dependency, error) {
	return a.readDependencies(ctx, `FOR d IN dependency SORT d.id RETURN d`, nil)
}

// DistinctIdentities returns each tracked identity once, in first-seen order
func (a *Arango) DistinctIdentities(ctx context.Context) ([]model.Identity, error) {
	aql := `
		FOR d IN dependency
			COLLECT name_lower = d.name_lower, version = d.version INTO group
			LET first = FIRST(FOR g IN group SORT g.d.id RETURN g.d)
			SORT first.id
			RETURN { name: first.name, version: version }
	`
	ids := []model.Identity{}
	err := a.query(ctx, aql, nil, func(c arangodb.Cursor) error {
		var id model.Identity
		if _, err := c.ReadDocument(ctx, &id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// UpdateDependencyVulnerability rewrites the vulnerability state of every record of one identity
func (a *Arango) UpdateDependencyVulnerability(ctx context.Context, name, version string, isVulnerable bool, vulnIDs []string) (int, error) {
	aql := `
		FOR d IN dependency
			FILTER d.name_lower == @name AND d.version == @version
			UPDATE d WITH { is_vulnerable: @vulnerable, vulnerability_ids: @ids, queried_at: @now } IN dependency
			COLLECT WITH COUNT INTO updated
			RETURN updated
	`
	updated := 0
	err := a.query(ctx, aql, map[string]interface{}{
		"name":       strings.ToLower(name),
		"version":    version,
		"vulnerable": isVulnerable,
		"ids":        copyIDs(vulnIDs),
		"now":        time.Now().UTC(),
	}, func(c arangodb.Cursor) error {
		_, err := c.ReadDocument(ctx, &updated)
		return err
	})
	return updated, err
}

// DependencyDetail aggregates all records of one identity with the projects using it
func (a *Arango) DependencyDetail(ctx context.Context, name, version string) (model.DependencyDetail, error) {
	aql := `
		LET records = (
			FOR d IN dependency
				FILTER d.name_lower == @name AND d.version == @version
				SORT d.id
				RETURN d
		)
		FILTER LENGTH(records) > 0
		LET latest = FIRST(FOR r IN records SORT r.queried_at DESC RETURN r)
		LET projects = (
			FOR pid IN UNIQUE(records[*].project_id)
				FOR p IN project
					FILTER p.id == pid
					SORT p.id
					RETURN p.name
		)
		RETURN {
			name: latest.name,
			version: latest.version,
			is_vulnerable: latest.is_vulnerable,
			vulnerability_ids: latest.vulnerability_ids,
			projects: projects,
			queried_at: latest.queried_at
		}
	`
	var detail model.DependencyDetail
	found := false
	err := a.query(ctx, aql, map[string]interface{}{"name": strings.ToLower(name), "version": version}, func(c arangodb.Cursor) error {
		found = true
		_, err := c.ReadDocument(ctx, &detail)
		return err
	})
	if err != nil {
		return model.DependencyDetail{}, err
	}
	if !found {
		return model.DependencyDetail{}, ErrNotFound
	}
	return detail, nil
}

// Clear removes every record and resets the ID counters
func (a *Arango) Clear(ctx context.Context) error {
	for _, col := range []string{database.DependencyCollection, database.ProjectCollection, database.CounterCollection} {
		aql := fmt.Sprintf(`FOR doc IN %s REMOVE doc IN %s`, col, col)
		if err := a.query(ctx, aql, nil, func(arangodb.Cursor) error { return nil }); err != nil {
			return err
		}
	}
	return nil
}
