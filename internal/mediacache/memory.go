package mediacache

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-publisher/pkg/interfaces"
)

// MemoryStore is a process-local cache on a lock-striped map. Record and
// Invalidate are atomic per key.
type MemoryStore struct {
	entries *xsync.MapOf[interfaces.MediaKey, interfaces.MediaEntry]
	opts    Options
}

var _ interfaces.MediaCache = (*MemoryStore)(nil)

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		entries: xsync.NewMapOf[interfaces.MediaKey, interfaces.MediaEntry](),
		opts:    opts,
	}
}

func (s *MemoryStore) Lookup(_ context.Context, key interfaces.MediaKey) (*interfaces.MediaEntry, bool, error) {
	if !validKey(key) {
		return nil, false, ErrInvalidKey
	}
	entry, ok := s.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if s.opts.expired(entry) {
		s.entries.Compute(key, func(current interfaces.MediaEntry, loaded bool) (interfaces.MediaEntry, bool) {
			return current, !loaded || s.opts.expired(current)
		})
		return nil, false, nil
	}
	return &entry, true, nil
}

// Record stores entry. When an unexpired entry with the same remote id is
// already present the first writer's entry is kept.
func (s *MemoryStore) Record(_ context.Context, entry interfaces.MediaEntry) error {
	if err := checkEntry(entry); err != nil {
		return err
	}
	entry = s.opts.stamp(entry)
	s.entries.Compute(entry.Key, func(current interfaces.MediaEntry, loaded bool) (interfaces.MediaEntry, bool) {
		if loaded && current.RemoteID == entry.RemoteID && !s.opts.expired(current) {
			return current, false
		}
		return entry, false
	})
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, key interfaces.MediaKey) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	s.entries.Delete(key)
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	return s.entries.Size()
}
