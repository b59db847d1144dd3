package preview

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"html/template"
	"strings"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

//go:embed templates/preview.html templates/preview.css
var assets embed.FS

var (
	pageTemplate = template.Must(template.ParseFS(assets, "templates/preview.html"))
	stylesheet   = mustRead("templates/preview.css")
)

var ErrTaskIDRequired = errors.New("preview: task id is required")

func mustRead(name string) string {
	data, err := assets.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Document is everything a preview shows. Body must already carry resolved
// image URLs.
type Document struct {
	TaskID    string
	Title     string
	Author    string
	Digest    string
	SourceURL string
	Body      string
	Cover     []byte
	CoverType string
}

// pageData is the template contract.
type pageData struct {
	Title      string
	Author     string
	Digest     string
	SourceURL  string
	Body       template.HTML
	CoverURL   template.URL
	Stylesheet template.CSS
}

// Renderer turns a Document into a self-contained HTML page and hands it to
// an artifact store.
type Renderer struct {
	store  interfaces.ArtifactStore
	logger interfaces.Logger
}

func NewRenderer(store interfaces.ArtifactStore, logger interfaces.Logger) *Renderer {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Renderer{store: store, logger: logger}
}

// Render writes the preview for doc and returns its URL. The artifact name is
// derived from the task id so re-rendering a task replaces its preview.
func (r *Renderer) Render(ctx context.Context, doc Document) (string, error) {
	taskID := strings.TrimSpace(doc.TaskID)
	if taskID == "" {
		return "", &domain.RenderError{Reason: "task id is required", Err: ErrTaskIDRequired}
	}

	markup, err := Markup(doc)
	if err != nil {
		return "", err
	}

	url, err := r.store.Write(ctx, ArtifactName(taskID), markup)
	if err != nil {
		r.logger.WithContext(ctx).Error("preview.write.failed", "task_id", taskID, "error", err)
		return "", &domain.RenderError{Reason: "write preview artifact", Err: err}
	}

	r.logger.WithContext(ctx).Info("preview.rendered", "task_id", taskID, "url", url, "bytes", len(markup))
	return url, nil
}

// ArtifactName is the storage name of a task's preview.
func ArtifactName(taskID string) string {
	return taskID + ".html"
}

// Markup renders doc without storing it.
func Markup(doc Document) ([]byte, error) {
	data := pageData{
		Title:      doc.Title,
		Author:     doc.Author,
		Digest:     doc.Digest,
		SourceURL:  doc.SourceURL,
		Body:       template.HTML(doc.Body),
		Stylesheet: template.CSS(stylesheet),
	}
	if len(doc.Cover) > 0 {
		data.CoverURL = dataURI(doc.CoverType, doc.Cover)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, &domain.RenderError{Reason: "execute preview template", Err: err}
	}
	return buf.Bytes(), nil
}

func dataURI(contentType string, data []byte) template.URL {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
}
