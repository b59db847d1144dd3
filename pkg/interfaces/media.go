package interfaces

import (
	"context"
	"time"
)

// MediaRole distinguishes how an image is used on the platform.
type MediaRole string

const (
	MediaRoleCover   MediaRole = "cover"
	MediaRoleContent MediaRole = "content"
)

// Valid reports whether r is a known role.
func (r MediaRole) Valid() bool {
	return r == MediaRoleCover || r == MediaRoleContent
}

// MediaKey identifies a cache entry. Two images with the same fingerprint and
// role are interchangeable on the platform.
type MediaKey struct {
	Fingerprint string
	Role        MediaRole
}

func (k MediaKey) String() string {
	return string(k.Role) + ":" + k.Fingerprint
}

// MediaEntry records the platform reference an uploaded image resolved to.
// RemoteID is the permanent media id for covers and the hosted URL for
// content images.
type MediaEntry struct {
	Key        MediaKey
	RemoteID   string
	URL        string
	VerifiedAt time.Time
}

// MediaCache maps (fingerprint, role) to an already-uploaded remote
// reference. Implementations must be safe for concurrent use; recording the
// same key twice is idempotent.
type MediaCache interface {
	Lookup(ctx context.Context, key MediaKey) (*MediaEntry, bool, error)
	Record(ctx context.Context, entry MediaEntry) error
	Invalidate(ctx context.Context, key MediaKey) error
}
