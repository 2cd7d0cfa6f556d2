package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/store"
	"github.com/ortelius/pdvd-depscan/util"
)

type stubQuerier struct {
	calls int
	err   error
}

func (q *stubQuerier) QueryBatch(_ context.Context, ids []model.Identity) ([]model.QueryResult, error) {
	q.calls++
	if q.err != nil {
		return nil, q.err
	}
	results := make([]model.QueryResult, len(ids))
	for i, id := range ids {
		results[i] = model.QueryResult{Vulns: []model.Vulnerability{}}
		if id.Name == "django" {
			results[i].Vulns = []model.Vulnerability{{ID: "GHSA-django-1"}}
		}
	}
	return results, nil
}

func TestCreateProject(t *testing.T) {
	ctx := context.Background()
	q := &stubQuerier{}
	svc := NewProjectService(store.NewMemory(), q, "PyPI", nil)

	created, err := svc.CreateProject(ctx, "Project Alpha", "demo", "django==3.2.12\n# pinned\nrequests==2.31.0\n")
	require.NoError(t, err)
	assert.Equal(t, 1, created.ID)
	require.Len(t, created.Dependencies, 2)
	assert.True(t, created.Dependencies[0].IsVulnerable)
	assert.Equal(t, []string{"GHSA-django-1"}, created.Dependencies[0].VulnerabilityIDs)
	assert.False(t, created.Dependencies[1].IsVulnerable)
	assert.Equal(t, 1, q.calls)

	got, err := svc.ProjectWithDependencies(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = svc.CreateProject(ctx, "project alpha", "", "flask==2.0.0")
	var dup *store.DuplicateProjectError
	assert.True(t, errors.As(err, &dup))
	assert.Equal(t, 1, q.calls, "duplicates are rejected before the lookup")
}

func TestCreateProjectFailures(t *testing.T) {
	ctx := context.Background()

	svc := NewProjectService(store.NewMemory(), &stubQuerier{}, "PyPI", nil)
	_, err := svc.CreateProject(ctx, "bad", "", "django>=3.2")
	var invalid *util.InvalidRequirementError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 1, invalid.Line)

	_, err = svc.CreateProject(ctx, "  ", "", "django==3.2.12")
	assert.ErrorIs(t, err, ErrEmptyName)

	s := store.NewMemory()
	failing := NewProjectService(s, &stubQuerier{err: errors.New("boom")}, "PyPI", nil)
	_, err = failing.CreateProject(ctx, "Project Beta", "", "django==3.2.12")
	assert.ErrorIs(t, err, ErrUpstream)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects, "nothing stored when the lookup fails")
}

func TestDependencyWithVulns(t *testing.T) {
	ctx := context.Background()
	svc := NewProjectService(store.NewMemory(), &stubQuerier{}, "PyPI", nil)
	_, err := svc.CreateProject(ctx, "alpha", "", "django==3.2.12")
	require.NoError(t, err)

	dep, err := svc.DependencyWithVulns(ctx, "Django", "3.2.12")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, dep.Projects)
	require.Len(t, dep.Vulns, 1)
	assert.Equal(t, "GHSA-django-1", dep.Vulns[0].ID)

	_, err = svc.DependencyWithVulns(ctx, "flask", "1.0.0")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	content := `projects:
  - name: Project Alpha
    description: from requirements
    requirements: |
      django==3.2.12
      requests==2.31.0
  - name: Project Beta
    dependencies:
      - name: flask
        version: 2.0.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	seed, err := ReadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, seed.Projects, 2)
	assert.Equal(t, []model.Identity{{Name: "flask", Version: "2.0.0"}}, seed.Projects[1].Dependencies)

	ctx := context.Background()
	svc := NewProjectService(store.NewMemory(), &stubQuerier{}, "PyPI", nil)
	created, err := svc.Seed(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = svc.Seed(ctx, seed)
	require.NoError(t, err)
	assert.Zero(t, created)

	_, err = ReadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
