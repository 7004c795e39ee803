package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clipshelf/backend/internal/models"
)

// ErrListerUnavailable indicates the catalog lister is not configured.
var ErrListerUnavailable = errors.New("catalog lister unavailable")

// Lister returns catalog listings for an optional search query.
type Lister interface {
	List(ctx context.Context, query string) ([]models.Video, error)
}

type cacheEntry struct {
	videos  []models.Video
	expires time.Time
}

// CachingLister wraps another Lister with a TTL-based in-memory cache keyed by
// query. It fronts the unauthenticated public listing endpoint, where slightly
// stale results are acceptable.
type CachingLister struct {
	base Lister
	ttl  time.Duration

	mu    sync.RWMutex
	items map[string]cacheEntry
}

// NewCachingLister returns a Lister that caches listings for the provided TTL.
func NewCachingLister(base Lister, ttl time.Duration) *CachingLister {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachingLister{
		base:  base,
		ttl:   ttl,
		items: make(map[string]cacheEntry),
	}
}

// List returns a cached listing when available, otherwise it delegates to the
// underlying lister and stores the result.
func (c *CachingLister) List(ctx context.Context, query string) ([]models.Video, error) {
	if c == nil || c.base == nil {
		return nil, ErrListerUnavailable
	}

	now := time.Now()

	c.mu.RLock()
	entry, ok := c.items[query]
	c.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.videos, nil
	}

	videos, err := c.base.List(ctx, query)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.items[query] = cacheEntry{videos: videos, expires: now.Add(c.ttl)}
	c.mu.Unlock()

	return videos, nil
}
