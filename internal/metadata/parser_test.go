package metadata

import (
	"errors"
	"testing"
)

func TestParseBlockScalars(t *testing.T) {
	doc, err := parseBlock("# comment\ntitle: \"a \\\"quoted\\\" title\"\nauthor: 'O''Brien'\nplain: value # trailing\nempty:\n")
	if err != nil {
		t.Fatalf("parseBlock: %v", err)
	}
	want := map[string]string{
		"title":  `a "quoted" title`,
		"author": "O'Brien",
		"plain":  "value",
		"empty":  "",
	}
	for key, value := range want {
		if doc[key] != value {
			t.Fatalf("%s: expected %q, got %#v", key, value, doc[key])
		}
	}
}

func TestParseBlockLists(t *testing.T) {
	doc, err := parseBlock("tags:\n  - one\n  - \"two\"\nnext: x\n")
	if err != nil {
		t.Fatalf("parseBlock: %v", err)
	}
	tags, ok := doc["tags"].([]string)
	if !ok || len(tags) != 2 || tags[1] != "two" {
		t.Fatalf("unexpected tags %#v", doc["tags"])
	}
	if doc["next"] != "x" {
		t.Fatalf("expected parsing to resume after list, got %#v", doc["next"])
	}
}

func TestParseBlockErrors(t *testing.T) {
	cases := map[string]string{
		"no colon":          "title\n",
		"duplicate":         "a: 1\na: 2\n",
		"unterminated":      "a: \"open\n",
		"orphan item":       "- x\n",
		"junk after quotes": "a: \"x\" y\n",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseBlock(src)
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("expected SyntaxError, got %v", err)
			}
		})
	}
}
