package mediacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const defaultRedisPrefix = "publisher:media:"

// RedisStore shares cache entries between processes through Redis. Entry
// expiry is delegated to the key TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	opts   Options
}

var _ interfaces.MediaCache = (*RedisStore)(nil)

type redisPayload struct {
	RemoteID   string    `json:"remote_id"`
	URL        string    `json:"url,omitempty"`
	VerifiedAt time.Time `json:"verified_at"`
}

func NewRedisStore(client redis.UniversalClient, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, opts: opts}
}

func (s *RedisStore) key(key interfaces.MediaKey) string {
	return s.prefix + string(key.Role) + ":" + key.Fingerprint
}

func (s *RedisStore) Lookup(ctx context.Context, key interfaces.MediaKey) (*interfaces.MediaEntry, bool, error) {
	if !validKey(key) {
		return nil, false, ErrInvalidKey
	}
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("mediacache: redis get %s: %w", key, err)
	}
	var payload redisPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// A payload we cannot read is treated as absent and dropped.
		_ = s.client.Del(ctx, s.key(key)).Err()
		return nil, false, nil
	}
	entry := interfaces.MediaEntry{
		Key:        key,
		RemoteID:   payload.RemoteID,
		URL:        payload.URL,
		VerifiedAt: payload.VerifiedAt.UTC(),
	}
	if s.opts.expired(entry) {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Record writes entry. Identical keys carry equivalent values, so the last
// SET winning is harmless.
func (s *RedisStore) Record(ctx context.Context, entry interfaces.MediaEntry) error {
	if err := checkEntry(entry); err != nil {
		return err
	}
	entry = s.opts.stamp(entry)
	raw, err := json.Marshal(redisPayload{
		RemoteID:   entry.RemoteID,
		URL:        entry.URL,
		VerifiedAt: entry.VerifiedAt,
	})
	if err != nil {
		return fmt.Errorf("mediacache: encode %s: %w", entry.Key, err)
	}
	if err := s.client.Set(ctx, s.key(entry.Key), raw, s.opts.EntryTTL).Err(); err != nil {
		return fmt.Errorf("mediacache: redis set %s: %w", entry.Key, err)
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context, key interfaces.MediaKey) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("mediacache: redis del %s: %w", key, err)
	}
	return nil
}
