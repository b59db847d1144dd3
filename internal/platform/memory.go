package platform

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/goliatone/go-publisher/pkg/interfaces"
)

// Memory is an in-process platform used by the sandbox provider and tests.
// Failures can be queued per operation and media ids can be forgotten to
// simulate expired references.
type Memory struct {
	mu       sync.Mutex
	seq      int
	failures map[string][]error
	calls    map[string]int
	covers   map[string][]byte
	drafts   map[string]interfaces.DraftArticle
	host     string
}

var _ interfaces.PlatformClient = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		failures: make(map[string][]error),
		calls:    make(map[string]int),
		covers:   make(map[string][]byte),
		drafts:   make(map[string]interfaces.DraftArticle),
		host:     "https://mmbiz.sandbox.local",
	}
}

// FailNext queues errors returned by the next calls to operation, in order.
func (m *Memory) FailNext(operation string, errs ...error) {
	m.mu.Lock()
	m.failures[operation] = append(m.failures[operation], errs...)
	m.mu.Unlock()
}

// Calls returns how many times operation was invoked, failures included.
func (m *Memory) Calls(operation string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[operation]
}

// Forget drops a cover media id so later drafts referencing it fail as stale.
func (m *Memory) Forget(mediaID string) {
	m.mu.Lock()
	delete(m.covers, mediaID)
	m.mu.Unlock()
}

func (m *Memory) Draft(id string) (interfaces.DraftArticle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[id]
	return draft, ok
}

func (m *Memory) DraftCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drafts)
}

func (m *Memory) begin(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.calls[operation]++
	queue := m.failures[operation]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	m.failures[operation] = queue[1:]
	return err
}

func (m *Memory) UploadCoverMedia(ctx context.Context, upload interfaces.MediaUpload) (interfaces.UploadedMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OperationUploadCover); err != nil {
		return interfaces.UploadedMedia{}, err
	}
	if len(upload.Data) == 0 {
		return interfaces.UploadedMedia{}, ErrEmptyUpload
	}
	m.seq++
	id := fmt.Sprintf("thumb-%04d", m.seq)
	m.covers[id] = append([]byte(nil), upload.Data...)
	return interfaces.UploadedMedia{
		MediaID: id,
		URL:     fmt.Sprintf("%s/thumb/%s", m.host, id),
	}, nil
}

func (m *Memory) UploadContentMedia(ctx context.Context, upload interfaces.MediaUpload) (interfaces.UploadedMedia, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OperationUploadContent); err != nil {
		return interfaces.UploadedMedia{}, err
	}
	if len(upload.Data) == 0 {
		return interfaces.UploadedMedia{}, ErrEmptyUpload
	}
	m.seq++
	url := fmt.Sprintf("%s/content/%04d/%s", m.host, m.seq, path.Base(upload.Filename))
	return interfaces.UploadedMedia{MediaID: url, URL: url}, nil
}

func (m *Memory) CreateDraft(ctx context.Context, article interfaces.DraftArticle) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, OperationCreateDraft); err != nil {
		return "", err
	}
	if _, ok := m.covers[article.ThumbMediaID]; !ok {
		return "", &Error{Operation: OperationCreateDraft, Code: 40007, Message: "invalid media_id"}
	}
	if article.Title == "" {
		return "", &Error{Operation: OperationCreateDraft, Code: 44003, Message: "empty news data"}
	}
	m.seq++
	id := fmt.Sprintf("draft-%04d", m.seq)
	m.drafts[id] = article
	return id, nil
}
