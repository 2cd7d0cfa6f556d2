package vulncache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ortelius/pdvd-depscan/model"
)

func readyEntry(ids ...string) Entry {
	data := model.QueryResult{Vulns: []model.Vulnerability{}}
	for _, id := range ids {
		data.Vulns = append(data.Vulns, model.Vulnerability{ID: id})
	}
	return Entry{Status: StatusReady, Data: data}
}

func TestInsertIfAbsentAndGet(t *testing.T) {
	c := NewCache()

	assert.True(t, c.InsertIfAbsent("dep@1.0.0", Entry{Status: StatusFetching}))
	entry, ok := c.Get("dep@1.0.0")
	require.True(t, ok)
	assert.Equal(t, StatusFetching, entry.Status)

	assert.False(t, c.InsertIfAbsent("dep@1.0.0", Entry{Status: StatusFetching}))
	assert.Equal(t, 1, c.Len())
}

func TestInsertIfAbsentSingleWinner(t *testing.T) {
	c := NewCache()
	var wins int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.InsertIfAbsent("dep@1.0.0", Entry{Status: StatusFetching}) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestSetAndGet(t *testing.T) {
	c := NewCache()
	expiry := time.Unix(123456, 0)
	entry := readyEntry("V1")
	entry.Expiry = &expiry

	c.Set("dep@2.0.0", entry)

	got, ok := c.Get("dep@2.0.0")
	require.True(t, ok)
	assert.Equal(t, StatusReady, got.Status)
	assert.Equal(t, []string{"V1"}, got.Data.IDs())
	assert.Equal(t, expiry, *got.Expiry)
}

func TestEntryExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, Entry{Status: StatusReady, Expiry: &past}.Expired(now))
	assert.False(t, Entry{Status: StatusReady, Expiry: &future}.Expired(now))
	assert.False(t, Entry{Status: StatusReady}.Expired(now), "nil expiry never goes stale")
	assert.False(t, Entry{Status: StatusFetching, Expiry: &past}.Expired(now))
}

func TestWaitUntilReadySuccess(t *testing.T) {
	c := NewCache()
	c.Set("dep@3.0.0", Entry{Status: StatusFetching})

	go func() {
		time.Sleep(50 * time.Millisecond)
		c.Set("dep@3.0.0", readyEntry("vuln"))
	}()

	data, ok := c.WaitUntilReady(context.Background(), "dep@3.0.0", time.Second)
	require.True(t, ok)
	assert.Equal(t, []string{"vuln"}, data.IDs())
}

func TestWaitUntilReadyTimeout(t *testing.T) {
	c := NewCache()
	c.Set("dep@4.0.0", Entry{Status: StatusFetching})

	start := time.Now()
	_, ok := c.WaitUntilReady(context.Background(), "dep@4.0.0", 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestWaitUntilReadyContextCanceled(t *testing.T) {
	c := NewCache()
	c.Set("dep@4.0.1", Entry{Status: StatusFetching})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, ok := c.WaitUntilReady(ctx, "dep@4.0.1", 5*time.Second)
	assert.False(t, ok)
}

func TestWaitUntilReadyDoesNotBlockCache(t *testing.T) {
	c := NewCache()
	c.Set("dep@5.0.0", Entry{Status: StatusFetching})

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WaitUntilReady(context.Background(), "dep@5.0.0", 200*time.Millisecond)
	}()

	time.Sleep(10 * time.Millisecond)
	assert.True(t, c.InsertIfAbsent("other@1.0.0", Entry{Status: StatusFetching}))
	_, ok := c.Get("other@1.0.0")
	assert.True(t, ok)
	<-done
}

func TestWaitUntilReadyAbsentKey(t *testing.T) {
	c := NewCache()
	start := time.Now()
	_, ok := c.WaitUntilReady(context.Background(), "missing@1.0.0", 5*time.Second)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRevertWakesWaiters(t *testing.T) {
	c := NewCache()
	c.Set("dep@6.0.0", Entry{Status: StatusFetching})

	go func() {
		time.Sleep(20 * time.Millisecond)
		c.Revert("dep@6.0.0")
	}()

	start := time.Now()
	_, ok := c.WaitUntilReady(context.Background(), "dep@6.0.0", 5*time.Second)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)

	_, exists := c.Get("dep@6.0.0")
	assert.False(t, exists)
}

func TestRevertKeepsReadyEntry(t *testing.T) {
	c := NewCache()
	c.Set("dep@7.0.0", readyEntry("V1"))

	c.Revert("dep@7.0.0")

	entry, ok := c.Get("dep@7.0.0")
	require.True(t, ok)
	assert.Equal(t, StatusReady, entry.Status)
}

func TestClaimRefresh(t *testing.T) {
	c := NewCache()

	assert.False(t, c.ClaimRefresh("dep@8.0.0"), "absent entries cannot be refreshed")

	c.Set("dep@8.0.0", Entry{Status: StatusFetching})
	assert.False(t, c.ClaimRefresh("dep@8.0.0"), "fetching entries cannot be refreshed")

	c.Set("dep@8.0.0", readyEntry("V1"))
	assert.True(t, c.ClaimRefresh("dep@8.0.0"))
	assert.False(t, c.ClaimRefresh("dep@8.0.0"))

	entry, _ := c.Get("dep@8.0.0")
	assert.True(t, entry.Refreshing)
	assert.Equal(t, []string{"V1"}, entry.Data.IDs(), "claiming a refresh leaves data in place")

	c.ReleaseRefresh("dep@8.0.0")
	assert.True(t, c.ClaimRefresh("dep@8.0.0"))

	c.Set("dep@8.0.0", readyEntry("V2"))
	entry, _ = c.Get("dep@8.0.0")
	assert.False(t, entry.Refreshing, "storing new data ends the refresh")
}

func TestRemoveAndClear(t *testing.T) {
	c := NewCache()
	c.Set("a@1", readyEntry())
	c.Set("b@1", readyEntry())

	c.Remove("a@1")
	_, ok := c.Get("a@1")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
