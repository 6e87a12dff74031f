// Package cache keeps raw source API payloads between runs so repeated migrations do not refetch them.
//
// A [Cache] combines a [Store] (where entries live) with a [Policy] (whether a stored entry may be served).
// Entries are opaque JSON bytes keyed by [Kind] and source record ID.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/a2yt/internal/shared"
)

// ErrMiss is returned by [Store.Load] when no entry exists.
var ErrMiss = errors.New("cache miss")

// Kind namespaces cache keys by record type.
type Kind string

const (
	KindTask        Kind = "task"
	KindTaskStories Kind = "task_stories"
	KindStory       Kind = "story"
)

// Kinds lists every kind the migration stores.
var Kinds = []Kind{KindTask, KindTaskStories, KindStory}

// Entry is a stored payload and when it was written.
type Entry struct {
	Data     []byte
	StoredAt time.Time
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	Load(kind Kind, id string) (Entry, error)
	Save(kind Kind, id string, data []byte) error
	Clear() error
	Count() (int, error)
}

// FetchFunc retrieves a payload from the remote API.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Stats counts cache outcomes since the Cache was created.
type Stats struct {
	Hits    int64
	Misses  int64
	Stale   int64
	Corrupt int64
}

// Cache serves entries from a Store according to a Policy, fetching and saving on a miss.
//
// A Cache is safe for concurrent use when its Store is.
type Cache struct {
	store  Store
	policy Policy
	logger *log.Logger

	hits, misses, stale, corrupt atomic.Int64
}

// New creates a Cache. A nil policy means [NeverExpire].
func New(store Store, policy Policy, logger *log.Logger) *Cache {
	if policy == nil {
		policy = NeverExpire()
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Cache{store: store, policy: policy, logger: logger}
}

// GetOrFetch returns the stored payload for (kind, id) when the policy considers it fresh and it parses as JSON.
// Otherwise it calls fetch, saves the result verbatim and returns it.
//
// Store read failures other than [ErrMiss] are returned without fetching.
func (c *Cache) GetOrFetch(ctx context.Context, kind Kind, id string, fetch FetchFunc) ([]byte, error) {
	entry, err := c.store.Load(kind, id)
	switch {
	case err == nil:
		switch {
		case !json.Valid(entry.Data):
			c.corrupt.Add(1)
			c.logger.Warn("corrupt cache entry, refetching", "kind", kind, "id", id)
		case c.policy.Fresh(entry):
			c.hits.Add(1)
			return entry.Data, nil
		default:
			c.stale.Add(1)
			c.logger.Debug("stale cache entry", "kind", kind, "id", id, "stored_at", entry.StoredAt)
		}
	case errors.Is(err, ErrMiss):
	default:
		return nil, fmt.Errorf("failed to read cache entry %s/%s: %w", kind, id, err)
	}

	c.misses.Add(1)
	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store.Save(kind, id, data); err != nil {
		return nil, fmt.Errorf("failed to write cache entry %s/%s: %w", kind, id, err)
	}
	return data, nil
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Stale:   c.stale.Load(),
		Corrupt: c.corrupt.Load(),
	}
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	return c.store
}
