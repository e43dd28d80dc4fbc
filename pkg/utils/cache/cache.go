// Package cache defines the read-through cache used for loaded tracks and
// leaderboard standings.
package cache

import (
	"context"
	"errors"
)

// ErrCacheMiss is returned by Get when the key is not present and the
// cache has no way to load it.
var ErrCacheMiss = errors.New("cache miss")

// Cache holds derived race data keyed by what it was derived from: the
// rebuilt gates of a track by its start block, the standings of a track
// by its id. Entries are dropped once the source changes, a block change
// on a gate or a newly recorded lap.
type Cache[K comparable, V any] interface {
	// Get returns the value of key, loading it on a miss if the cache
	// knows how to.
	Get(ctx context.Context, key K) (*V, error)
	// Invalidate drops key. The next Get loads it again.
	Invalidate(ctx context.Context, key K)
}
