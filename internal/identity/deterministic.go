package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"

	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const mediaNamespace = "publisher:media:"

// UUID hashes key into a stable UUID. Blank keys map to uuid.Nil.
func UUID(key string) uuid.UUID {
	key = strings.TrimSpace(key)
	if key == "" {
		return uuid.Nil
	}
	if id, err := hashid.NewUUID(key, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true)); err == nil && id != uuid.Nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
}

// MediaEntryUUID is the primary key of a persisted media cache row, so every
// writer of the same (role, fingerprint) lands on one row.
func MediaEntryUUID(key interfaces.MediaKey) uuid.UUID {
	role := strings.ToLower(strings.TrimSpace(string(key.Role)))
	fingerprint := strings.ToLower(strings.TrimSpace(key.Fingerprint))
	return UUID(mediaNamespace + role + ":" + fingerprint)
}

func NewTaskID() uuid.UUID {
	return uuid.New()
}
