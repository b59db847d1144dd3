package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/goliatone/go-publisher/internal/domain"
)

const (
	placeholderOpen  = "{{media:"
	placeholderClose = "}}"
)

// Placeholder returns the token standing in for an image until its remote URL
// is known.
func Placeholder(name string) string {
	return placeholderOpen + name + placeholderClose
}

func IsPlaceholder(src string) bool {
	_, ok := ParsePlaceholder(src)
	return ok
}

// ParsePlaceholder extracts the file name from a placeholder token.
func ParsePlaceholder(src string) (string, bool) {
	s := strings.TrimSpace(src)
	if !strings.HasPrefix(s, placeholderOpen) || !strings.HasSuffix(s, placeholderClose) {
		return "", false
	}
	name := s[len(placeholderOpen) : len(s)-len(placeholderClose)]
	return name, name != ""
}

// Resolve substitutes every placeholder in markup with its URL from urls.
// A placeholder without a URL is a *domain.ContentError.
func Resolve(markup string, urls map[string]string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", &domain.ContentError{Reason: "transformed markup could not be parsed", Err: err}
	}

	var failure error
	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		name, ok := ParsePlaceholder(img.AttrOr("src", ""))
		if !ok {
			return true
		}
		target, found := urls[name]
		if !found || target == "" {
			failure = &domain.ContentError{Reference: name, Reason: "no uploaded media for placeholder"}
			return false
		}
		img.SetAttr("src", target)
		return true
	})
	if failure != nil {
		return "", failure
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", &domain.ContentError{Reason: "serializing markup failed", Err: err}
	}
	return strings.TrimSpace(out), nil
}

// DefaultDigest is used when neither front matter nor body text yields one.
const DefaultDigest = "No summary provided."

// DeriveDigest returns the first limit runes of the visible text of markup,
// with whitespace collapsed.
func DeriveDigest(markup string, limit int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return DefaultDigest
	}
	text := strings.Join(strings.Fields(doc.Text()), " ")
	if text == "" {
		return DefaultDigest
	}
	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit])
	}
	return text
}
