package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/adrg/frontmatter"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-publisher/internal/domain"
	"github.com/goliatone/go-publisher/internal/logging"
	"github.com/goliatone/go-publisher/pkg/interfaces"
)

const (
	KeyTitle              = "title"
	KeyAuthor             = "author"
	KeyDigest             = "digest"
	KeyCoverImagePath     = "cover_image_path"
	KeyContentSourceURL   = "content_source_url"
	KeyNeedOpenComment    = "need_open_comment"
	KeyOnlyFansCanComment = "only_fans_can_comment"
)

// DefaultDigestLimit is the platform's digest ceiling in characters.
const DefaultDigestLimit = 54

// Metadata is the validated front matter of an article.
type Metadata struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	Digest             string `json:"digest,omitempty"`
	CoverImagePath     string `json:"cover_image_path"`
	ContentSourceURL   string `json:"content_source_url,omitempty"`
	NeedOpenComment    bool   `json:"need_open_comment,omitempty"`
	OnlyFansCanComment bool   `json:"only_fans_can_comment,omitempty"`
}

// Validate checks required fields after normalization.
func (m Metadata) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Title, validation.Required.Error("is required")),
		validation.Field(&m.Author, validation.Required.Error("is required")),
		validation.Field(&m.CoverImagePath, validation.Required.Error("is required")),
		validation.Field(&m.ContentSourceURL, validation.By(validateSourceURL)),
	)
}

func validateSourceURL(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return validation.NewError("publisher.metadata.content_source_url", "must be an absolute http(s) URL")
	}
	return nil
}

// Result is the output of Extract: the metadata and the body that followed
// the front-matter block.
type Result struct {
	Metadata  Metadata
	Body      []byte
	Truncated bool
}

// Extractor splits and validates the front-matter block of a document.
type Extractor struct {
	digestLimit int
	logger      interfaces.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

func WithDigestLimit(limit int) Option {
	return func(e *Extractor) {
		if limit > 0 {
			e.digestLimit = limit
		}
	}
}

func WithLogger(logger interfaces.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		digestLimit: DefaultDigestLimit,
		logger:      logging.NoOp(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses the leading front-matter block of source. Any failure is a
// *domain.MetadataError.
func (e *Extractor) Extract(ctx context.Context, source []byte) (Result, error) {
	var doc document
	body, err := frontmatter.MustParse(bytes.NewReader(source), &doc, blockFormat)
	if err != nil {
		if errors.Is(err, frontmatter.ErrNotFound) {
			return Result{}, &domain.MetadataError{Reason: "front-matter block is missing"}
		}
		return Result{}, &domain.MetadataError{Reason: "front-matter block is malformed", Err: err}
	}

	meta := Metadata{
		Title:            normalizeSpace(doc.scalar(KeyTitle)),
		Author:           normalizeSpace(doc.scalar(KeyAuthor)),
		Digest:           normalizeSpace(doc.scalar(KeyDigest)),
		CoverImagePath:   strings.TrimSpace(doc.scalar(KeyCoverImagePath)),
		ContentSourceURL: strings.TrimSpace(doc.scalar(KeyContentSourceURL)),
	}
	if meta.NeedOpenComment, err = doc.flag(KeyNeedOpenComment); err != nil {
		return Result{}, err
	}
	if meta.OnlyFansCanComment, err = doc.flag(KeyOnlyFansCanComment); err != nil {
		return Result{}, err
	}

	if err := meta.Validate(); err != nil {
		return Result{}, fieldError(err)
	}

	result := Result{Metadata: meta, Body: body}
	if digest, cut := TruncateRunes(meta.Digest, e.digestLimit); cut {
		e.logger.WithContext(ctx).Warn("metadata.digest.truncated",
			"limit", e.digestLimit,
			"original_length", utf8.RuneCountInString(meta.Digest),
		)
		result.Metadata.Digest = digest
		result.Truncated = true
	}
	return result, nil
}

// fieldError turns the first ozzo field error into a MetadataError. Keys
// are checked in declaration order so the report is deterministic.
func fieldError(err error) error {
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return &domain.MetadataError{Reason: "invalid front matter", Err: err}
	}
	for _, key := range []string{KeyTitle, KeyAuthor, KeyCoverImagePath, KeyContentSourceURL} {
		if fieldErr, ok := fields[key]; ok {
			return &domain.MetadataError{Field: key, Reason: fieldErr.Error()}
		}
	}
	return &domain.MetadataError{Reason: "invalid front matter", Err: err}
}

func (d document) scalar(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, " ")
	default:
		return ""
	}
}

func (d document) flag(key string) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(d.scalar(key)))
	switch raw {
	case "", "0", "false", "no", "off":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	default:
		return false, &domain.MetadataError{Field: key, Reason: fmt.Sprintf("expected a boolean, got %q", raw)}
	}
}

// normalizeSpace trims s and collapses internal whitespace runs to one space.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes cuts s to at most limit runes and reports whether it did.
func TruncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:limit]), true
}
