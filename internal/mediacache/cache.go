package mediacache

import (
	"time"

	"github.com/goliatone/go-publisher/pkg/interfaces"
)

// Options shared by every store.
type Options struct {
	// EntryTTL expires entries this long after VerifiedAt. Zero keeps them
	// until invalidated.
	EntryTTL time.Duration
	Now      func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o Options) expired(entry interfaces.MediaEntry) bool {
	if o.EntryTTL <= 0 || entry.VerifiedAt.IsZero() {
		return false
	}
	return o.now().Sub(entry.VerifiedAt) >= o.EntryTTL
}

// stamp fills VerifiedAt when the caller left it empty.
func (o Options) stamp(entry interfaces.MediaEntry) interfaces.MediaEntry {
	if entry.VerifiedAt.IsZero() {
		entry.VerifiedAt = o.now()
	}
	return entry
}

func validKey(key interfaces.MediaKey) bool {
	return key.Fingerprint != "" && key.Role.Valid()
}
