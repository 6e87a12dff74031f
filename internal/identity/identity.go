// Package identity correlates source and destination records that describe the same thing.
//
// A [Map] is keyed by a matching value (email, name, summary, external ID) and holds at most one record per side.
// Each side has its own [KeyFunc], so the two record shapes never need to share a type.
package identity

import (
	"slices"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/a2yt/internal/shared"
)

// KeyFunc extracts the matching key from a record. It reports false when the record has no key.
type KeyFunc[T any] func(T) (string, bool)

// Entry pairs the source and destination records that share a key. Either side may be nil.
type Entry[S, D any] struct {
	Source *S
	Dest   *D
}

// Map is a key-to-entry lookup table built from both sides of a migration.
//
// A Map is not safe for concurrent use.
type Map[S, D any] struct {
	name    string
	entries map[string]*Entry[S, D]
	logger  *log.Logger
}

// New creates an empty Map. The name only appears in log output.
func New[S, D any](name string, logger *log.Logger) *Map[S, D] {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Map[S, D]{name: name, entries: make(map[string]*Entry[S, D]), logger: logger}
}

func (m *Map[S, D]) entry(key string) *Entry[S, D] {
	e, ok := m.entries[key]
	if !ok {
		e = &Entry[S, D]{}
		m.entries[key] = e
	}
	return e
}

// MergeSource adds source records under their keys. Existing destination sides are kept;
// an existing source side for the same key is replaced.
//
// Records without a key are skipped. An empty slice is logged and ignored.
func (m *Map[S, D]) MergeSource(items []S, key KeyFunc[S]) {
	if len(items) == 0 {
		m.logger.Warn("nothing to merge", "map", m.name, "side", "source")
		return
	}
	for i := range items {
		k, ok := key(items[i])
		if !ok || k == "" {
			continue
		}
		item := items[i]
		m.entry(k).Source = &item
	}
}

// MergeDest adds destination records under their keys. See [Map.MergeSource].
func (m *Map[S, D]) MergeDest(items []D, key KeyFunc[D]) {
	if len(items) == 0 {
		m.logger.Warn("nothing to merge", "map", m.name, "side", "destination")
		return
	}
	for i := range items {
		k, ok := key(items[i])
		if !ok || k == "" {
			continue
		}
		item := items[i]
		m.entry(k).Dest = &item
	}
}

// Get returns the entry for key.
func (m *Map[S, D]) Get(key string) (Entry[S, D], bool) {
	e, ok := m.entries[key]
	if !ok {
		return Entry[S, D]{}, false
	}
	return *e, true
}

// Source returns the source record for key, or nil.
func (m *Map[S, D]) Source(key string) *S {
	if e, ok := m.entries[key]; ok {
		return e.Source
	}
	return nil
}

// Dest returns the destination record for key, or nil.
func (m *Map[S, D]) Dest(key string) *D {
	if e, ok := m.entries[key]; ok {
		return e.Dest
	}
	return nil
}

// HasDest reports whether key has a destination counterpart.
func (m *Map[S, D]) HasDest(key string) bool {
	return m.Dest(key) != nil
}

// Len returns the number of keys.
func (m *Map[S, D]) Len() int {
	return len(m.entries)
}

// Keys returns every key in sorted order.
func (m *Map[S, D]) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SourceOnly returns, sorted, the keys that have a source record and no destination record.
func (m *Map[S, D]) SourceOnly() []string {
	var keys []string
	for k, e := range m.entries {
		if e.Source != nil && e.Dest == nil {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
