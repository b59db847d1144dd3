package content

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

// Result is the transformed body and the content images it references, in
// first-use order and without duplicates.
type Result struct {
	HTML       string
	References []string
}

// Transformer converts Markdown into markup the platform accepts. It is
// stateless and safe for concurrent use.
type Transformer struct {
	engine goldmark.Markdown
	logger interfaces.Logger
}

func NewTransformer(logger interfaces.Logger) *Transformer {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Transformer{
		engine: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			// Raw HTML passes through the renderer and is scrubbed by sanitize.
			goldmark.WithRendererOptions(html.WithUnsafe(), html.WithXHTML()),
		),
		logger: logger,
	}
}

// Transform renders body and rewrites every local image to a placeholder.
// available lists the names of the supplied content images; a reference that
// matches none of them is a *domain.ContentError.
func (t *Transformer) Transform(ctx context.Context, body []byte, available []string) (Result, error) {
	var buf bytes.Buffer
	if err := t.engine.Convert(body, &buf); err != nil {
		return Result{}, &domain.ContentError{Reason: "markdown conversion failed", Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(&buf)
	if err != nil {
		return Result{}, &domain.ContentError{Reason: "rendered markup could not be parsed", Err: err}
	}

	removed := sanitize(doc.Selection)
	decorateHeadings(doc.Selection)

	index := newNameIndex(available)
	var (
		refs    []string
		seen    = map[string]struct{}{}
		failure error
	)
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src, ok := img.Attr("src")
		if !ok || !IsLocalReference(src) {
			return true
		}
		name, err := index.resolve(src)
		if err != nil {
			failure = err
			return false
		}
		img.SetAttr("src", Placeholder(name))
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			refs = append(refs, name)
		}
		return true
	})
	if failure != nil {
		return Result{}, failure
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return Result{}, &domain.ContentError{Reason: "serializing markup failed", Err: err}
	}

	t.logger.WithContext(ctx).Debug("content.transform.completed",
		"references", len(refs),
		"removed_nodes", removed,
	)
	return Result{HTML: strings.TrimSpace(out), References: refs}, nil
}

// IsLocalReference reports whether src points at an uploaded file rather than
// a remote or inline resource.
func IsLocalReference(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	if s == "" || IsPlaceholder(s) {
		return false
	}
	for _, prefix := range []string{"http://", "https://", "data:", "//"} {
		if strings.HasPrefix(s, prefix) {
			return false
		}
	}
	return true
}

type nameIndex struct {
	exact map[string]string
	base  map[string]string
}

func newNameIndex(names []string) nameIndex {
	idx := nameIndex{exact: map[string]string{}, base: map[string]string{}}
	for _, name := range names {
		idx.exact[name] = name
		if _, taken := idx.base[path.Base(name)]; !taken {
			idx.base[path.Base(name)] = name
		}
	}
	return idx
}

// resolve maps an image reference onto a supplied file name: exact match on
// the cleaned reference first, then by base name.
func (idx nameIndex) resolve(ref string) (string, error) {
	cleaned, err := CleanReference(ref)
	if err != nil {
		return "", err
	}
	if name, ok := idx.exact[cleaned]; ok {
		return name, nil
	}
	if name, ok := idx.base[path.Base(cleaned)]; ok {
		return name, nil
	}
	return "", &domain.ContentError{Reference: cleaned, Reason: "referenced image was not uploaded"}
}

// CleanReference normalizes a local image reference: it is URL-unescaped,
// query and fragment are dropped and a leading "./" is removed. References
// climbing out with ".." are rejected.
func CleanReference(ref string) (string, error) {
	raw := strings.TrimSpace(ref)
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return "", &domain.ContentError{Reference: ref, Reason: "invalid escape in image reference", Err: err}
	}
	for _, segment := range strings.Split(unescaped, "/") {
		if segment == ".." {
			return "", &domain.ContentError{Reference: ref, Reason: "image reference escapes the upload set"}
		}
	}
	cleaned := strings.TrimPrefix(path.Clean(unescaped), "./")
	if cleaned == "." || cleaned == "" {
		return "", &domain.ContentError{Reference: ref, Reason: "empty image reference"}
	}
	return cleaned, nil
}
