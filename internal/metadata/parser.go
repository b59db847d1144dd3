package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
)

// document is the decoded front-matter block: scalar keys map to strings,
// keys followed by "- item" lines map to []string.
type document map[string]any

// blockFormat recognizes the "---" delimited block and decodes it with
// parseBlock instead of a general-purpose YAML decoder.
var blockFormat = frontmatter.NewFormat("---", "---", unmarshalBlock)

func unmarshalBlock(data []byte, v any) error {
	target, ok := v.(*document)
	if !ok {
		return fmt.Errorf("metadata: unsupported front-matter target %T", v)
	}
	doc, err := parseBlock(string(data))
	if err != nil {
		return err
	}
	*target = doc
	return nil
}

// SyntaxError locates a malformed front-matter line.
type SyntaxError struct {
	Line   int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

var errUnterminatedQuote = errors.New("unterminated quoted value")

type blockParser struct {
	lines []string
	pos   int
	doc   document
}

// parseBlock is a small recursive-descent parser for the key/value subset of
// front matter the publisher reads:
//
//	block   = { entry | blank | comment }
//	entry   = key ":" [ scalar ] { item }
//	item    = indent "-" scalar
//	scalar  = quoted | plain
func parseBlock(src string) (document, error) {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	p := &blockParser{lines: strings.Split(src, "\n"), doc: document{}}
	for p.pos < len(p.lines) {
		if err := p.parseLine(); err != nil {
			return nil, err
		}
	}
	return p.doc, nil
}

func (p *blockParser) parseLine() error {
	raw := p.lines[p.pos]
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		p.pos++
		return nil
	}
	if raw[0] == ' ' || raw[0] == '\t' || strings.HasPrefix(line, "- ") || line == "-" {
		return p.fail("list item without a key")
	}
	return p.parseEntry(line)
}

func (p *blockParser) parseEntry(line string) error {
	key, rest, found := strings.Cut(line, ":")
	if !found {
		return p.fail("expected key: value")
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, " \t\"'") {
		return p.fail(fmt.Sprintf("invalid key %q", key))
	}
	if _, dup := p.doc[key]; dup {
		return p.fail(fmt.Sprintf("duplicate key %q", key))
	}

	value, err := parseScalar(rest)
	if err != nil {
		return p.fail(err.Error())
	}
	p.pos++

	if value != "" {
		p.doc[key] = value
		return nil
	}

	items, err := p.parseItems()
	if err != nil {
		return err
	}
	if items != nil {
		p.doc[key] = items
		return nil
	}
	p.doc[key] = ""
	return nil
}

func (p *blockParser) parseItems() ([]string, error) {
	var items []string
	for p.pos < len(p.lines) {
		raw := p.lines[p.pos]
		line := strings.TrimSpace(raw)
		if line == "" {
			p.pos++
			continue
		}
		if !strings.HasPrefix(line, "-") {
			break
		}
		item, err := parseScalar(strings.TrimPrefix(line, "-"))
		if err != nil {
			return nil, p.fail(err.Error())
		}
		items = append(items, item)
		p.pos++
	}
	return items, nil
}

func (p *blockParser) fail(reason string) error {
	return &SyntaxError{Line: p.pos + 1, Reason: reason}
}

// parseScalar decodes a plain or quoted scalar. Plain scalars lose trailing
// " #" comments; double quotes honour backslash escapes, single quotes use ''.
func parseScalar(input string) (string, error) {
	value := strings.TrimSpace(input)
	if value == "" {
		return "", nil
	}
	switch value[0] {
	case '"':
		return parseDoubleQuoted(value)
	case '\'':
		return parseSingleQuoted(value)
	}
	if idx := strings.Index(value, " #"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value, nil
}

func parseDoubleQuoted(value string) (string, error) {
	var b strings.Builder
	for i := 1; i < len(value); i++ {
		c := value[i]
		switch c {
		case '\\':
			if i+1 >= len(value) {
				return "", errUnterminatedQuote
			}
			i++
			switch value[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(value[i])
			}
		case '"':
			if trailing := strings.TrimSpace(value[i+1:]); trailing != "" && !strings.HasPrefix(trailing, "#") {
				return "", fmt.Errorf("unexpected %q after quoted value", trailing)
			}
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", errUnterminatedQuote
}

func parseSingleQuoted(value string) (string, error) {
	var b strings.Builder
	for i := 1; i < len(value); i++ {
		if value[i] != '\'' {
			b.WriteByte(value[i])
			continue
		}
		if i+1 < len(value) && value[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		if trailing := strings.TrimSpace(value[i+1:]); trailing != "" && !strings.HasPrefix(trailing, "#") {
			return "", fmt.Errorf("unexpected %q after quoted value", trailing)
		}
		return b.String(), nil
	}
	return "", errUnterminatedQuote
}
