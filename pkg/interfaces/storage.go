package interfaces

import "context"

// ArtifactStore persists preview artifacts and returns the URL under which
// the host serves them.
type ArtifactStore interface {
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// BlobStore keeps normalized image bytes between the process and confirm
// phases, keyed by fingerprint.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}
