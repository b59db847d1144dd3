package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/mediacache"
	"github.com/goliatone/go-publisher/internal/retry"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

type platformErr struct {
	code int
	msg  string
}

func (e *platformErr) Error() string        { return fmt.Sprintf("errcode %d: %s", e.code, e.msg) }
func (e *platformErr) ErrorCode() int       { return e.code }
func (e *platformErr) ErrorMessage() string { return e.msg }

var codeClassifier = retry.ClassifierFunc(func(err error) retry.Class {
	var perr *platformErr
	if !errors.As(err, &perr) {
		return retry.NetworkClassifier.Classify(err)
	}
	switch perr.code {
	case -1, 45009:
		return retry.ClassTransient
	case 40007:
		return retry.ClassStale
	default:
		return retry.ClassPermanent
	}
})

func fastConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		BaseBackoff:    time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func TestDoRecoversFromTransientFailures(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(), codeClassifier, nil, nil)
	calls := 0

	got, err := retry.Do(context.Background(), policy, retry.Call[string]{
		Operation: "upload_content_media",
		Invoke: func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", &platformErr{code: -1, msg: "system busy"}
			}
			return "https://mmbiz.example/a.jpg", nil
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "https://mmbiz.example/a.jpg" {
		t.Fatalf("unexpected result %q", got)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoSurfacesPublishErrorWhenExhausted(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(), codeClassifier, nil, nil)
	calls := 0

	_, err := retry.Do(context.Background(), policy, retry.Call[string]{
		Operation: "create_draft",
		Invoke: func(context.Context) (string, error) {
			calls++
			return "", &platformErr{code: 45009, msg: "reach max api daily quota limit"}
		},
	})
	var publishErr *domain.PublishError
	if !errors.As(err, &publishErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if calls != 3 || publishErr.Attempts != 3 {
		t.Fatalf("expected 3 attempts, calls=%d attempts=%d", calls, publishErr.Attempts)
	}
	if publishErr.Code != 45009 || publishErr.Operation != "create_draft" {
		t.Fatalf("unexpected diagnostic: %+v", publishErr)
	}
	if publishErr.Message != "reach max api daily quota limit" {
		t.Fatalf("unexpected message %q", publishErr.Message)
	}
}

func TestDoStopsOnPermanentFailure(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(), codeClassifier, nil, nil)
	calls := 0

	_, err := retry.Do(context.Background(), policy, retry.Call[int]{
		Operation: "upload_cover_media",
		Invoke: func(context.Context) (int, error) {
			calls++
			return 0, &platformErr{code: 40004, msg: "invalid media type"}
		},
	})
	if domain.KindOf(err) != domain.KindPublish {
		t.Fatalf("expected publish error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestDoInvalidatesImplicatedEntriesBeforeRetrying(t *testing.T) {
	ctx := context.Background()
	cache := mediacache.NewMemoryStore(mediacache.Options{})
	key := interfaces.MediaKey{Fingerprint: "abc123", Role: interfaces.MediaRoleCover}
	if err := cache.Record(ctx, interfaces.MediaEntry{Key: key, RemoteID: "stale-media"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	policy := retry.NewPolicy(fastConfig(), codeClassifier, cache, nil)
	var used []string

	draftID, err := retry.Do(ctx, policy, retry.Call[string]{
		Operation: "create_draft",
		Invoke: func(ctx context.Context) (string, error) {
			thumb := "fresh-media"
			if entry, ok, err := cache.Lookup(ctx, key); err != nil {
				return "", err
			} else if ok {
				thumb = entry.RemoteID
			}
			used = append(used, thumb)
			if thumb == "stale-media" {
				return "", &platformErr{code: 40007, msg: "invalid media_id"}
			}
			return "draft-1", nil
		},
		Implicated: func(_ error, class retry.Class) []interfaces.MediaKey {
			if class != retry.ClassStale {
				return nil
			}
			return []interfaces.MediaKey{key}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draftID != "draft-1" {
		t.Fatalf("unexpected draft id %q", draftID)
	}
	if len(used) != 2 || used[0] != "stale-media" || used[1] != "fresh-media" {
		t.Fatalf("unexpected thumb sequence %v", used)
	}
	if _, ok, _ := cache.Lookup(ctx, key); ok {
		t.Fatalf("expected stale entry to be invalidated")
	}
}

func TestDoAppliesAttemptTimeout(t *testing.T) {
	cfg := fastConfig()
	cfg.AttemptTimeout = 5 * time.Millisecond
	cfg.MaxAttempts = 2
	policy := retry.NewPolicy(cfg, codeClassifier, nil, nil)
	calls := 0

	_, err := retry.Do(context.Background(), policy, retry.Call[string]{
		Operation: "upload_content_media",
		Invoke: func(ctx context.Context) (string, error) {
			calls++
			<-ctx.Done()
			return "", ctx.Err()
		},
	})
	var publishErr *domain.PublishError
	if !errors.As(err, &publishErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("timeouts should be retried, got %d calls", calls)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline cause, got %v", err)
	}
}

func TestDoStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := retry.NewPolicy(fastConfig(), codeClassifier, nil, nil)
	calls := 0

	_, err := retry.Do(ctx, policy, retry.Call[string]{
		Operation: "create_draft",
		Invoke: func(context.Context) (string, error) {
			calls++
			cancel()
			return "", &platformErr{code: -1, msg: "system busy"}
		},
	})
	if domain.KindOf(err) != domain.KindPublish {
		t.Fatalf("expected publish error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected cancellation to stop retries, got %d calls", calls)
	}
}

func TestDoDoesNotRerunExhaustedNestedCall(t *testing.T) {
	ctx := context.Background()
	policy := retry.NewPolicy(fastConfig(), codeClassifier, nil, nil)
	outer, inner := 0, 0

	_, err := retry.Do(ctx, policy, retry.Call[string]{
		Operation: "create_draft",
		Invoke: func(ctx context.Context) (string, error) {
			outer++
			return retry.Do(ctx, policy, retry.Call[string]{
				Operation: "upload_cover_media",
				Invoke: func(context.Context) (string, error) {
					inner++
					return "", &platformErr{code: 45009, msg: "api freq out of limit"}
				},
			})
		},
	})
	var publishErr *domain.PublishError
	if !errors.As(err, &publishErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if publishErr.Operation != "upload_cover_media" || publishErr.Attempts != 3 {
		t.Fatalf("expected the nested failure to surface, got %+v", publishErr)
	}
	if outer != 1 || inner != 3 {
		t.Fatalf("expected 1 outer and 3 inner attempts, got %d and %d", outer, inner)
	}
}

func TestDoRetriesStaleReferenceOnce(t *testing.T) {
	policy := retry.NewPolicy(fastConfig(), codeClassifier, nil, nil)
	calls := 0

	_, err := retry.Do(context.Background(), policy, retry.Call[string]{
		Operation: "create_draft",
		Invoke: func(context.Context) (string, error) {
			calls++
			return "", &platformErr{code: 40007, msg: "invalid media_id"}
		},
	})
	var publishErr *domain.PublishError
	if !errors.As(err, &publishErr) || publishErr.Code != 40007 {
		t.Fatalf("expected PublishError 40007, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected one retry after a stale reference, got %d calls", calls)
	}
}
