package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/osv-scanner/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortelius/pdvd-depscan/model"
	"github.com/ortelius/pdvd-depscan/store"
	"github.com/ortelius/pdvd-depscan/vulncache"
)

type stubFetcher struct {
	mu         sync.Mutex
	calls      int
	batches    [][]model.Identity
	vulnerable map[string]bool
	err        error
}

func (f *stubFetcher) QueryBatch(_ context.Context, ids []model.Identity) ([]model.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.batches = append(f.batches, append([]model.Identity(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	results := make([]model.QueryResult, len(ids))
	for i, id := range ids {
		results[i] = model.QueryResult{Vulns: []model.Vulnerability{}}
		if f.vulnerable[id.Key()] {
			results[i].Vulns = []model.Vulnerability{{
				ID:       "GHSA-" + id.Name,
				Severity: []models.Severity{{Type: "HIGH", Score: "7.5"}},
			}}
		}
	}
	return results, nil
}

type capturePublisher struct {
	summaries []model.ScanSummary
	outcomes  [][]model.DependencyOutcome
}

func (p *capturePublisher) PublishScanCompleted(_ context.Context, s model.ScanSummary, o []model.DependencyOutcome) error {
	p.summaries = append(p.summaries, s)
	p.outcomes = append(p.outcomes, o)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemory()
	a, err := s.AddProject(ctx, "alpha", "")
	require.NoError(t, err)
	b, err := s.AddProject(ctx, "beta", "")
	require.NoError(t, err)
	_, err = s.AddDependencies(ctx, a.ID, []store.NewDependency{{Name: "django", Version: "3.2.12"}, {Name: "requests", Version: "2.31.0"}})
	require.NoError(t, err)
	_, err = s.AddDependencies(ctx, b.ID, []store.NewDependency{{Name: "Django", Version: "3.2.12"}})
	require.NoError(t, err)
	return s
}

func TestScanOnce(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	fetcher := &stubFetcher{vulnerable: map[string]bool{"django@3.2.12": true}}
	orch := vulncache.New(vulncache.NewCache(), fetcher, vulncache.Options{})
	pub := &capturePublisher{}

	scanner := NewScanner(s, orch, pub, nil, nil)
	summary, err := scanner.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ScanSummary{Scanned: 2, Vulnerable: 1, Updated: 3}, summary)
	assert.Equal(t, 1, fetcher.calls)

	detail, err := s.DependencyDetail(ctx, "django", "3.2.12")
	require.NoError(t, err)
	assert.True(t, detail.IsVulnerable)
	assert.Equal(t, []string{"GHSA-django"}, detail.VulnerabilityIDs)

	require.Len(t, pub.outcomes, 1)
	assert.Equal(t, "HIGH", pub.outcomes[0][0].Severity)
	assert.Empty(t, pub.outcomes[0][1].Severity)

	// second scan is served from cache
	_, err = scanner.ScanOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestScanOnceCachedEntries(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)
	empty := model.QueryResult{Vulns: []model.Vulnerability{}}

	tests := []struct {
		name           string
		cached         map[string]vulncache.Entry
		wantCalls      int
		wantFetched    []model.Identity
		wantVulnerable bool
		wantIDs        []string
	}{
		{
			name: "expired entries are refetched before records are written",
			cached: map[string]vulncache.Entry{
				"django@3.2.12":   {Status: vulncache.StatusReady, Data: empty, Expiry: &past},
				"requests@2.31.0": {Status: vulncache.StatusReady, Data: empty, Expiry: &past},
			},
			wantCalls:      1,
			wantFetched:    []model.Identity{{Name: "django", Version: "3.2.12"}, {Name: "requests", Version: "2.31.0"}},
			wantVulnerable: true,
			wantIDs:        []string{"GHSA-django"},
		},
		{
			name: "expired entry rides along with a missing one",
			cached: map[string]vulncache.Entry{
				"django@3.2.12": {Status: vulncache.StatusReady, Data: empty, Expiry: &past},
			},
			wantCalls:      1,
			wantFetched:    []model.Identity{{Name: "django", Version: "3.2.12"}, {Name: "requests", Version: "2.31.0"}},
			wantVulnerable: true,
			wantIDs:        []string{"GHSA-django"},
		},
		{
			name: "fresh entries are used as cached",
			cached: map[string]vulncache.Entry{
				"django@3.2.12":   {Status: vulncache.StatusReady, Data: empty, Expiry: &future},
				"requests@2.31.0": {Status: vulncache.StatusReady, Data: empty, Expiry: &future},
			},
			wantCalls:      0,
			wantVulnerable: false,
			wantIDs:        []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := seedStore(t)
			fetcher := &stubFetcher{vulnerable: map[string]bool{"django@3.2.12": true}}
			cache := vulncache.NewCache()
			for key, entry := range tt.cached {
				cache.Set(key, entry)
			}
			orch := vulncache.New(cache, fetcher, vulncache.Options{})
			pub := &capturePublisher{}

			summary, err := NewScanner(s, orch, pub, nil, nil).ScanOnce(ctx)
			orch.Wait()
			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, fetcher.calls)
			if tt.wantFetched != nil {
				assert.Equal(t, tt.wantFetched, fetcher.batches[0])
			}

			detail, err := s.DependencyDetail(ctx, "django", "3.2.12")
			require.NoError(t, err)
			assert.Equal(t, tt.wantVulnerable, detail.IsVulnerable)
			assert.Equal(t, tt.wantIDs, detail.VulnerabilityIDs)

			wantVulnerable := 0
			if tt.wantVulnerable {
				wantVulnerable = 1
			}
			assert.Equal(t, model.ScanSummary{Scanned: 2, Vulnerable: wantVulnerable, Updated: 3}, summary)
			require.Len(t, pub.outcomes, 1)
			assert.Equal(t, tt.wantVulnerable, pub.outcomes[0][0].IsVulnerable)
		})
	}
}

func TestScanOnceRefreshFailureKeepsRecords(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	past := time.Now().Add(-time.Minute)
	cache := vulncache.NewCache()
	cache.Set("django@3.2.12", vulncache.Entry{Status: vulncache.StatusReady, Data: model.QueryResult{Vulns: []model.Vulnerability{}}, Expiry: &past})
	cache.Set("requests@2.31.0", vulncache.Entry{Status: vulncache.StatusReady, Data: model.QueryResult{Vulns: []model.Vulnerability{}}, Expiry: &past})
	orch := vulncache.New(cache, &stubFetcher{err: errors.New("osv down")}, vulncache.Options{})

	_, err := NewScanner(s, orch, nil, nil, nil).ScanOnce(ctx)
	require.Error(t, err)

	detail, err := s.DependencyDetail(ctx, "django", "3.2.12")
	require.NoError(t, err)
	assert.False(t, detail.IsVulnerable)

	entry, ok := cache.Get("django@3.2.12")
	require.True(t, ok)
	assert.False(t, entry.Refreshing, "a failed refresh can be retried by the next scan")
}

func TestScanOnceEmptyStore(t *testing.T) {
	fetcher := &stubFetcher{}
	orch := vulncache.New(vulncache.NewCache(), fetcher, vulncache.Options{})
	pub := &capturePublisher{}

	summary, err := NewScanner(store.NewMemory(), orch, pub, nil, nil).ScanOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.ScanSummary{}, summary)
	assert.Zero(t, fetcher.calls)
	assert.Empty(t, pub.summaries)
}

func TestScanOnceUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)
	fetcher := &stubFetcher{err: errors.New("osv down")}
	orch := vulncache.New(vulncache.NewCache(), fetcher, vulncache.Options{})

	_, err := NewScanner(s, orch, nil, nil, nil).ScanOnce(ctx)
	require.Error(t, err)

	detail, err := s.DependencyDetail(ctx, "django", "3.2.12")
	require.NoError(t, err)
	assert.False(t, detail.IsVulnerable, "records keep their previous state")
}

func TestRunStopsWithContext(t *testing.T) {
	s := seedStore(t)
	fetcher := &stubFetcher{}
	orch := vulncache.New(vulncache.NewCache(), fetcher, vulncache.Options{})
	scanner := NewScanner(s, orch, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scanner.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Error(t, scanner.Run(context.Background(), 0))
}
