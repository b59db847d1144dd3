package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// blockedElements are removed with their children; the platform editor
// either rejects them or executes them.
var blockedElements = strings.Join([]string{
	"script", "style", "noscript", "iframe", "frame", "frameset",
	"object", "embed", "applet", "base", "link", "meta",
	"form", "input", "button", "select", "textarea",
}, ",")

var urlAttributes = []string{"href", "src", "action", "formaction", "xlink:href"}

// sanitize removes blocked elements, inline event handlers and script URLs
// below root. It returns the number of removed elements.
func sanitize(root *goquery.Selection) int {
	blocked := root.Find(blockedElements)
	removed := blocked.Length()
	blocked.Remove()

	root.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			if dropAttribute(attr) {
				continue
			}
			kept = append(kept, attr)
		}
		node.Attr = kept
	})
	return removed
}

func dropAttribute(attr html.Attribute) bool {
	key := strings.ToLower(attr.Key)
	if strings.HasPrefix(key, "on") {
		return true
	}
	for _, name := range urlAttributes {
		if key != name {
			continue
		}
		value := strings.ToLower(strings.Join(strings.Fields(attr.Val), ""))
		return strings.HasPrefix(value, "javascript:") || strings.HasPrefix(value, "vbscript:")
	}
	return false
}

// decorateHeadings wraps heading content in prefix/content/suffix spans, the
// structure the article stylesheet targets.
func decorateHeadings(root *goquery.Selection) {
	root.Find("h1,h2,h3,h4,h5,h6").Each(func(_ int, h *goquery.Selection) {
		inner, err := h.Html()
		if err != nil {
			return
		}
		h.SetHtml(`<span class="prefix"></span><span class="content">` + inner + `</span><span class="suffix"></span>`)
	})
}
