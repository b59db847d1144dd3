package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/imaging"
	"github.com/goliatone/go-publisher/internal/retry"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const (
	operationUploadCover   = "upload_cover_media"
	operationUploadContent = "upload_content_media"
)

// mediaResolver turns normalized assets into platform references, consulting
// the shared cache first. Concurrent misses for one key share a single upload.
type mediaResolver struct {
	cache    interfaces.MediaCache
	platform interfaces.PlatformClient
	policy   *retry.Policy
	blobs    interfaces.BlobStore
	group    singleflight.Group
	now      func() time.Time
	logger   interfaces.Logger
}

func (r *mediaResolver) lookup(ctx context.Context, key interfaces.MediaKey) (interfaces.MediaEntry, bool) {
	entry, ok, err := r.cache.Lookup(ctx, key)
	if err != nil {
		r.logger.WithContext(ctx).Warn("tasks.media.lookup_failed", "key", key.String(), "error", err)
		return interfaces.MediaEntry{}, false
	}
	if !ok || entry == nil {
		return interfaces.MediaEntry{}, false
	}
	return *entry, true
}

// resolve returns the cached entry for asset or uploads it on a miss.
func (r *mediaResolver) resolve(ctx context.Context, asset imaging.Asset) (interfaces.MediaEntry, error) {
	key := asset.Key()
	if entry, ok := r.lookup(ctx, key); ok {
		r.logger.WithContext(ctx).Debug("tasks.media.cache_hit", "key", key.String(), "filename", asset.Filename)
		return entry, nil
	}

	// The flight outlives its first caller; attempts stay bounded by the
	// policy's per-attempt timeout.
	flight := r.group.DoChan(key.String(), func() (any, error) {
		shared := context.WithoutCancel(ctx)
		if entry, ok := r.lookup(shared, key); ok {
			return entry, nil
		}
		return r.upload(shared, asset)
	})
	select {
	case <-ctx.Done():
		return interfaces.MediaEntry{}, ctx.Err()
	case result := <-flight:
		if result.Err != nil {
			return interfaces.MediaEntry{}, result.Err
		}
		if result.Shared {
			r.logger.WithContext(ctx).Debug("tasks.media.upload_shared", "key", key.String())
		}
		return result.Val.(interfaces.MediaEntry), nil
	}
}

func (r *mediaResolver) upload(ctx context.Context, asset imaging.Asset) (interfaces.MediaEntry, error) {
	operation, send := operationUploadContent, r.platform.UploadContentMedia
	if asset.Role == interfaces.MediaRoleCover {
		operation, send = operationUploadCover, r.platform.UploadCoverMedia
	}

	uploaded, err := retry.Do(ctx, r.policy, retry.Call[interfaces.UploadedMedia]{
		Operation: operation,
		Invoke: func(ctx context.Context) (interfaces.UploadedMedia, error) {
			return send(ctx, asset.Upload())
		},
	})
	if err != nil {
		return interfaces.MediaEntry{}, err
	}

	entry := interfaces.MediaEntry{
		Key:        asset.Key(),
		RemoteID:   uploaded.MediaID,
		URL:        uploaded.URL,
		VerifiedAt: r.now(),
	}
	if asset.Role == interfaces.MediaRoleContent {
		entry.RemoteID = uploaded.URL
	}
	if entry.RemoteID == "" {
		return interfaces.MediaEntry{}, &domain.PublishError{
			Operation: operation,
			Attempts:  1,
			Message:   "platform returned an empty media reference",
		}
	}

	if err := r.cache.Record(ctx, entry); err != nil {
		r.logger.WithContext(ctx).Warn("tasks.media.record_failed", "key", entry.Key.String(), "error", err)
	}
	r.logger.WithContext(ctx).Info("tasks.media.uploaded",
		"key", entry.Key.String(),
		"filename", asset.Filename,
		"bytes", len(asset.Data),
	)
	return entry, nil
}

// store keeps the normalized bytes so the confirm phase can re-upload them.
func (r *mediaResolver) store(ctx context.Context, asset imaging.Asset) error {
	if err := r.blobs.Put(ctx, blobKey(asset.Fingerprint), asset.Data); err != nil {
		return &domain.ImageError{Filename: asset.Filename, Reason: "store normalized image", Err: err}
	}
	return nil
}

// load rebuilds an asset from stored normalized bytes.
func (r *mediaResolver) load(ctx context.Context, name, fingerprint string, role interfaces.MediaRole) (imaging.Asset, error) {
	data, err := r.blobs.Get(ctx, blobKey(fingerprint))
	if err != nil {
		return imaging.Asset{}, &domain.ImageError{Filename: name, Reason: "normalized image is no longer available", Err: err}
	}
	if got := imaging.Fingerprint(data); got != fingerprint {
		return imaging.Asset{}, &domain.ImageError{
			Filename: name,
			Reason:   fmt.Sprintf("stored image fingerprint mismatch (%s)", got),
		}
	}
	contentType := mimetype.Detect(data).String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return imaging.Asset{
		Filename:    imaging.NormalizedName(name, contentType),
		Role:        role,
		ContentType: contentType,
		Data:        data,
		Fingerprint: fingerprint,
	}, nil
}

func blobKey(fingerprint string) string {
	if len(fingerprint) < 3 {
		return fingerprint
	}
	return fingerprint[:2] + "/" + fingerprint
}
