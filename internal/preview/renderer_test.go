package preview_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/preview"
	"github.com/goliatone/go-publisher/pkg/storage"
)

func TestRendererWritesSelfContainedPreview(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := storage.NewArtifactStore(storage.NewFileStore(fs, "previews"), "http://localhost:8080", "/previews/")
	renderer := preview.NewRenderer(store, nil)

	url, err := renderer.Render(context.Background(), preview.Document{
		TaskID: "task-1",
		Title:  "Tom & Jerry <3",
		Author: "Ada",
		Digest: "A short story",
		Body:   `<p>Hello <img src="https://mmbiz.example/a.png"/></p>`,
		Cover:  []byte{0xff, 0xd8, 0xff},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if url != "http://localhost:8080/previews/task-1.html" {
		t.Fatalf("unexpected url %q", url)
	}

	data, err := afero.ReadFile(fs, "previews/task-1.html")
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	page := string(data)
	for _, want := range []string{
		`<div id="nice"><p>Hello <img src="https://mmbiz.example/a.png"/></p></div>`,
		`Tom &amp; Jerry &lt;3`,
		`src="data:image/jpeg;base64,/9j/"`,
		`#nice img`,
		`A short story`,
	} {
		if !strings.Contains(page, want) {
			t.Fatalf("expected preview to contain %q:\n%s", want, page)
		}
	}
}

type failingStore struct{}

func (failingStore) Write(context.Context, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestRendererReportsRenderError(t *testing.T) {
	renderer := preview.NewRenderer(failingStore{}, nil)

	_, err := renderer.Render(context.Background(), preview.Document{TaskID: "task-1", Title: "T"})
	var renderErr *domain.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if domain.KindOf(err) != domain.KindRender {
		t.Fatalf("unexpected kind %q", domain.KindOf(err))
	}

	if _, err := renderer.Render(context.Background(), preview.Document{}); !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError for missing task id, got %v", err)
	}
}
