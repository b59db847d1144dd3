package mediacache

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-publisher/internal/identity"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

// EntryRecord is the persisted form of a cache entry. The primary key is
// derived from (role, fingerprint) so concurrent writers converge on one row.
type EntryRecord struct {
	bun.BaseModel `bun:"table:media_cache_entries,alias:mce"`

	ID          uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Fingerprint string    `bun:"fingerprint,notnull" json:"fingerprint"`
	Role        string    `bun:"role,notnull" json:"role"`
	RemoteID    string    `bun:"remote_id,notnull" json:"remote_id"`
	URL         string    `bun:"url" json:"url,omitempty"`
	VerifiedAt  time.Time `bun:"verified_at,notnull" json:"verified_at"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// NewEntryRepository builds the go-repository-bun repository for EntryRecord.
func NewEntryRepository(db *bun.DB) repository.Repository[*EntryRecord] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*EntryRecord]{
		NewRecord: func() *EntryRecord { return &EntryRecord{} },
		GetID:     func(r *EntryRecord) uuid.UUID { return r.ID },
		SetID:     func(r *EntryRecord, id uuid.UUID) { r.ID = id },
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(r *EntryRecord) string { return r.ID.String() },
	})
}

// BunStore persists cache entries through go-repository-bun so they outlive
// the process and are shared by every instance using the same database.
type BunStore struct {
	repo repository.Repository[*EntryRecord]
	opts Options
}

var _ interfaces.MediaCache = (*BunStore)(nil)

func NewBunStore(db *bun.DB, opts Options) *BunStore {
	return &BunStore{repo: NewEntryRepository(db), opts: opts}
}

func (s *BunStore) Lookup(ctx context.Context, key interfaces.MediaKey) (*interfaces.MediaEntry, bool, error) {
	if !validKey(key) {
		return nil, false, ErrInvalidKey
	}
	record, err := s.repo.GetByID(ctx, entryID(key).String())
	if err != nil {
		if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mediacache: lookup %s: %w", key, err)
	}
	entry := recordToEntry(record)
	if s.opts.expired(entry) {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Record upserts entry. A concurrent insert of the same key surfaces as a
// create failure and is retried as an update.
func (s *BunStore) Record(ctx context.Context, entry interfaces.MediaEntry) error {
	if err := checkEntry(entry); err != nil {
		return err
	}
	entry = s.opts.stamp(entry)
	record := entryToRecord(entry)

	existing, err := s.repo.GetByID(ctx, record.ID.String())
	switch {
	case err == nil:
		if existing.RemoteID == record.RemoteID && !s.opts.expired(recordToEntry(existing)) {
			return nil
		}
		record.CreatedAt = existing.CreatedAt
		return s.update(ctx, record)
	case goerrors.IsCategory(err, repository.CategoryDatabaseNotFound):
		if _, createErr := s.repo.Create(ctx, record); createErr != nil {
			if updateErr := s.update(ctx, record); updateErr != nil {
				return fmt.Errorf("mediacache: record %s: %w", entry.Key, createErr)
			}
		}
		return nil
	default:
		return fmt.Errorf("mediacache: record %s: %w", entry.Key, err)
	}
}

func (s *BunStore) update(ctx context.Context, record *EntryRecord) error {
	record.UpdatedAt = s.opts.now()
	if _, err := s.repo.Update(ctx, record); err != nil {
		return fmt.Errorf("mediacache: update %s: %w", record.ID, err)
	}
	return nil
}

func (s *BunStore) Invalidate(ctx context.Context, key interfaces.MediaKey) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	err := s.repo.Delete(ctx, &EntryRecord{ID: entryID(key)})
	if err != nil && !goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return fmt.Errorf("mediacache: invalidate %s: %w", key, err)
	}
	return nil
}

func entryID(key interfaces.MediaKey) uuid.UUID {
	return identity.MediaEntryUUID(key)
}

func entryToRecord(entry interfaces.MediaEntry) *EntryRecord {
	return &EntryRecord{
		ID:          entryID(entry.Key),
		Fingerprint: entry.Key.Fingerprint,
		Role:        string(entry.Key.Role),
		RemoteID:    entry.RemoteID,
		URL:         entry.URL,
		VerifiedAt:  entry.VerifiedAt.UTC(),
	}
}

func recordToEntry(record *EntryRecord) interfaces.MediaEntry {
	return interfaces.MediaEntry{
		Key: interfaces.MediaKey{
			Fingerprint: record.Fingerprint,
			Role:        interfaces.MediaRole(record.Role),
		},
		RemoteID:   record.RemoteID,
		URL:        record.URL,
		VerifiedAt: record.VerifiedAt.UTC(),
	}
}
