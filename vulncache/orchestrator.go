package vulncache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ortelius/pdvd-depscan/internal/metrics"
	"github.com/ortelius/pdvd-depscan/model"
)

// Default timeouts
const (
	DefaultWaitTimeout  = 5 * time.Second
	DefaultFetchTimeout = 60 * time.Second
)

// ErrMisalignedResult is returned when the fetcher does not answer every query exactly once
var ErrMisalignedResult = errors.New("batch result count does not match query count")

// Fetcher performs one batched upstream lookup. Results must be positionally
// aligned with ids; any failure fails the whole batch.
type Fetcher interface {
	QueryBatch(ctx context.Context, ids []model.Identity) ([]model.QueryResult, error)
}

// Options configures an Orchestrator. Zero values fall back to defaults.
type Options struct {
	// WaitTimeout bounds how long one call waits on fetches owned by other callers
	WaitTimeout time.Duration
	// FetchTimeout bounds the upstream call made while holding claims
	FetchTimeout time.Duration
	Now          func() time.Time
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Orchestrator answers batch queries from the cache, fetching what is missing
// in a single upstream call and refreshing stale entries behind the caller.
type Orchestrator struct {
	cache        *Cache
	fetcher      Fetcher
	waitTimeout  time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	metrics      *metrics.Metrics
	logger       *zap.Logger

	refreshes sync.WaitGroup
}

// claim is a key this call is responsible for fetching
type claim struct {
	index   int
	id      model.Identity
	key     string
	refresh bool
}

// New creates an Orchestrator over cache and fetcher
func New(cache *Cache, fetcher Fetcher, opts Options) *Orchestrator {
	o := &Orchestrator{
		cache:        cache,
		fetcher:      fetcher,
		waitTimeout:  opts.WaitTimeout,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if o.waitTimeout <= 0 {
		o.waitTimeout = DefaultWaitTimeout
	}
	if o.fetchTimeout <= 0 {
		o.fetchTimeout = DefaultFetchTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.metrics == nil {
		o.metrics = metrics.NewMetrics(nil)
	}
	o.metrics.ObserveCacheSize(cache.Len)
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// Cache returns the store the orchestrator works on
func (o *Orchestrator) Cache() *Cache {
	return o.cache
}

// QueryBatch returns one result per identity, in input order.
//
// Fresh entries are served from cache. Missing entries are claimed and fetched in one
// upstream call. Entries claimed by concurrent callers are awaited; a wait that times out
// yields an empty result rather than an error. Expired entries are served as they are
// while one refresh is fetched, in the background when nothing else needs fetching.
// An upstream failure fails the whole call and releases every claim it held.
func (o *Orchestrator) QueryBatch(ctx context.Context, ids []model.Identity) ([]model.QueryResult, error) {
	return o.query(ctx, ids, false)
}

// Refresh is QueryBatch for callers that need current data rather than a fast answer.
// Expired entries this call claims are refetched inline and their new data is returned.
// An expired entry whose refresh is already held by another caller is returned as it is.
func (o *Orchestrator) Refresh(ctx context.Context, ids []model.Identity) ([]model.QueryResult, error) {
	return o.query(ctx, ids, true)
}

func (o *Orchestrator) query(ctx context.Context, ids []model.Identity, inline bool) ([]model.QueryResult, error) {
	results := make([]model.QueryResult, len(ids))
	var claims []claim
	var waiters []int
	primary := false

	// Phase 1: triage
	now := o.now()
	for i, id := range ids {
		key := DeriveKey(id)
		entry, ok := o.cache.Get(key)

		switch {
		case !ok:
			if o.cache.InsertIfAbsent(key, Entry{Status: StatusFetching}) {
				o.metrics.CacheLookups.WithLabelValues(metrics.LookupMiss).Inc()
				claims = append(claims, claim{index: i, id: id, key: key})
				primary = true
			} else {
				o.metrics.CacheLookups.WithLabelValues(metrics.LookupWait).Inc()
				waiters = append(waiters, i)
			}

		case entry.Status == StatusReady:
			results[i] = entry.Data
			if !entry.Expired(now) {
				o.metrics.CacheLookups.WithLabelValues(metrics.LookupHit).Inc()
				continue
			}
			o.metrics.CacheLookups.WithLabelValues(metrics.LookupStale).Inc()
			if o.cache.ClaimRefresh(key) {
				o.metrics.RefreshesStarted.Inc()
				claims = append(claims, claim{index: i, id: id, key: key, refresh: true})
			}

		default:
			o.metrics.CacheLookups.WithLabelValues(metrics.LookupWait).Inc()
			waiters = append(waiters, i)
		}
	}

	// Phase 2: one upstream call for everything claimed
	switch {
	case primary || (inline && len(claims) > 0):
		if err := o.fetch(ctx, claims, results, inline); err != nil {
			return nil, err
		}
	case len(claims) > 0:
		o.refreshInBackground(ctx, claims)
	}

	// Phase 3: wait on fetches owned by other callers, all sharing one deadline
	deadline := time.Now().Add(o.waitTimeout)
	for _, i := range waiters {
		key := DeriveKey(ids[i])
		data, ok := o.cache.WaitUntilReady(ctx, key, time.Until(deadline))
		if !ok {
			o.metrics.CacheWaitTimeouts.Inc()
			o.logger.Warn("no vulnerability data before wait deadline, assuming none",
				zap.String("key", key),
				zap.Duration("timeout", o.waitTimeout))
			data = emptyResult()
		}
		results[i] = data
	}

	return results, nil
}

// Wait blocks until background refreshes started so far have finished
func (o *Orchestrator) Wait() {
	o.refreshes.Wait()
}

func (o *Orchestrator) refreshInBackground(ctx context.Context, claims []claim) {
	o.refreshes.Add(1)
	go func() {
		defer o.refreshes.Done()

		// the caller has its answer already; the refresh must outlive its request
		if err := o.fetch(context.WithoutCancel(ctx), claims, nil, false); err != nil {
			o.logger.Sugar().Warnf("Background refresh of %d stale entries failed: %v", len(claims), err)
		}
	}()
}

// fetch queries the upstream for every claim and stores the results. Results of
// primary claims are also written into results; refresh claims were already answered
// with stale data unless answerRefresh is set.
func (o *Orchestrator) fetch(ctx context.Context, claims []claim, results []model.QueryResult, answerRefresh bool) error {
	ctx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	defer cancel()

	ids := make([]model.Identity, len(claims))
	for i, c := range claims {
		ids[i] = c.id
	}

	fetched, err := o.fetcher.QueryBatch(ctx, ids)
	if err == nil && len(fetched) != len(ids) {
		err = fmt.Errorf("%w: sent %d, received %d", ErrMisalignedResult, len(ids), len(fetched))
	}
	if err != nil {
		o.metrics.FetchFailures.Inc()
		o.release(claims)
		return fmt.Errorf("vulnerability batch query failed: %w", err)
	}

	now := o.now()
	for i, c := range claims {
		data := fetched[i]
		if data.Vulns == nil {
			data.Vulns = []model.Vulnerability{}
		}
		ttl := TTLFor(data.Vulns)
		expiry := now.Add(ttl)
		o.cache.Set(c.key, Entry{Status: StatusReady, Data: data, Expiry: &expiry})

		if c.refresh {
			o.logger.Debug("refreshed cache entry", zap.String("key", c.key), zap.Duration("ttl", ttl))
			if !answerRefresh {
				continue
			}
		}
		if results != nil {
			results[c.index] = data
		}
	}

	o.logger.Sugar().Debugf("Fetched %d dependencies from upstream", len(claims))
	return nil
}

// release gives back claims after a failed fetch so later callers can retry
func (o *Orchestrator) release(claims []claim) {
	for _, c := range claims {
		if c.refresh {
			o.cache.ReleaseRefresh(c.key)
		} else {
			o.cache.Revert(c.key)
		}
	}
}

func emptyResult() model.QueryResult {
	return model.QueryResult{Vulns: []model.Vulnerability{}}
}
