package content_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-publisher/internal/content"
	"github.com/goliatone/go-publisher/internal/domain"
)

func TestResolveSubstitutesPlaceholders(t *testing.T) {
	markup := `<p>Hi <img src="{{media:a.png}}" alt="x"/> <img src="https://x/y.png"/></p>`

	out, err := content.Resolve(markup, map[string]string{"a.png": "https://mmbiz.example/a"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(out, `src="https://mmbiz.example/a"`) || strings.Contains(out, "{{media:") {
		t.Fatalf("expected placeholder to be resolved, got %s", out)
	}
	if !strings.Contains(out, `src="https://x/y.png"`) {
		t.Fatalf("expected remote image untouched, got %s", out)
	}
}

func TestResolveMissingURL(t *testing.T) {
	_, err := content.Resolve(`<img src="{{media:a.png}}"/>`, nil)
	if !errors.As(err, new(*domain.ContentError)) {
		t.Fatalf("expected ContentError, got %v", err)
	}
}

func TestParsePlaceholder(t *testing.T) {
	if name, ok := content.ParsePlaceholder(content.Placeholder("dir/a.png")); !ok || name != "dir/a.png" {
		t.Fatalf("round trip failed: %q %v", name, ok)
	}
	if _, ok := content.ParsePlaceholder("{{media:}}"); ok {
		t.Fatal("expected empty placeholder to be rejected")
	}
}

func TestDeriveDigest(t *testing.T) {
	if got := content.DeriveDigest("<p>  Hello   <b>world</b> </p>", 54); got != "Hello world" {
		t.Fatalf("unexpected digest %q", got)
	}
	if got := content.DeriveDigest("<p>abcdef</p>", 3); got != "abc" {
		t.Fatalf("expected truncation, got %q", got)
	}
	if got := content.DeriveDigest("<img src=\"x\"/>", 54); got != content.DefaultDigest {
		t.Fatalf("expected default digest, got %q", got)
	}
}
