// Package vulncache caches OSV batch query results per dependency identity.
//
// Concurrent callers asking for the same uncached identity share one upstream
// fetch: the first caller claims the key and fetches, later callers wait for the
// claimed entry to become ready. Ready entries expire after a TTL chosen from the
// worst severity they contain; expired entries are still served while a single
// refresh runs behind them.
package vulncache

import (
	"github.com/ortelius/pdvd-depscan/model"
)

// DeriveKey returns the cache key for an identity, "<lowercase name>@<version>"
func DeriveKey(id model.Identity) string {
	return id.Key()
}
