package cachemanager

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// Resolution is the outcome of looking a program up on PATH.
type Resolution struct {
	Path  string
	Found bool
}

// LookupFunc resolves a program name. exec.LookPath is the production one.
type LookupFunc func(name string) (string, error)

// LookupCache memoizes PATH lookups. Negative results are cached too, with
// the same ttl, so a binary installed mid-session is noticed once it expires.
type LookupCache struct {
	rt  *ReadThroughCache[Resolution, string]
	ttl time.Duration
}

// NewLookupCache returns a cache backed by exec.LookPath when lookup is nil.
func NewLookupCache(ttl time.Duration, lookup LookupFunc) *LookupCache {
	if lookup == nil {
		lookup = exec.LookPath
	}
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	fn := func(_ context.Context, name string) (Resolution, error) {
		path, err := lookup(name)
		if err != nil {
			return Resolution{}, nil
		}
		return Resolution{Path: path, Found: true}, nil
	}
	return &LookupCache{
		rt:  NewReadThroughCache[Resolution, string](NewInMemoryCacheManager[Resolution]("lookpath", ttl, DefaultCleanupInterval), fn, false),
		ttl: ttl,
	}
}

// Resolve looks name up, keyed by the current PATH so a changed PATH is a miss.
func (c *LookupCache) Resolve(ctx context.Context, name string) Resolution {
	res, _ := c.rt.Get(ctx, os.Getenv("PATH")+"\x00"+name, name, c.ttl)
	return res
}
