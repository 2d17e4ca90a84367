// Package stringsfile reads and writes Apple .strings localization files:
//
//	/* Title of the main window */
//	"window.title" = "Documents";
//	// Shown after saving
//	"saved" = "Saved \"%@\"";
//
// Comments directly before a pair are attached to it. Values may span
// several physical lines.
package stringsfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Pair is one "key" = "value"; statement with the comments above it.
type Pair struct {
	Key      string
	Value    string
	Comments []string
}

// ParseFile reads and parses a .strings file from disk.
func ParseFile(path string) ([]Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses .strings content. Input must be UTF-8; a leading byte order
// mark is ignored.
func Parse(data []byte) ([]Pair, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("strings file is not valid UTF-8")
	}
	p := &parser{src: strings.TrimPrefix(string(data), "\ufeff"), line: 1}

	var (
		pairs    []Pair
		comments []string
	)
	for {
		p.skipSpace()
		if p.eof() {
			break
		}
		switch {
		case p.hasPrefix("/*"):
			c, err := p.blockComment()
			if err != nil {
				return nil, err
			}
			comments = append(comments, c)
		case p.hasPrefix("//"):
			comments = append(comments, p.lineComment())
		default:
			pair, err := p.pair()
			if err != nil {
				return nil, err
			}
			pair.Comments = comments
			comments = nil
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

type parser struct {
	src  string
	pos  int
	line int
}

func (p *parser) eof() bool               { return p.pos >= len(p.src) }
func (p *parser) hasPrefix(s string) bool { return strings.HasPrefix(p.src[p.pos:], s) }

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.line, fmt.Sprintf(format, args...))
}

func (p *parser) advance(n int) {
	p.line += strings.Count(p.src[p.pos:p.pos+n], "\n")
	p.pos += n
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.advance(1)
		default:
			return
		}
	}
}

func (p *parser) blockComment() (string, error) {
	end := strings.Index(p.src[p.pos+2:], "*/")
	if end < 0 {
		return "", p.errorf("unterminated comment")
	}
	text := p.src[p.pos+2 : p.pos+2+end]
	p.advance(end + 4)
	return strings.TrimSpace(text), nil
}

func (p *parser) lineComment() string {
	end := strings.IndexByte(p.src[p.pos:], '\n')
	if end < 0 {
		end = len(p.src) - p.pos
	}
	text := p.src[p.pos+2 : p.pos+end]
	p.advance(end)
	return strings.TrimSpace(text)
}

func (p *parser) pair() (Pair, error) {
	key, err := p.token()
	if err != nil {
		return Pair{}, err
	}
	p.skipSpace()
	if !p.hasPrefix("=") {
		return Pair{}, p.errorf("expected '=' after key %q", key)
	}
	p.advance(1)
	p.skipSpace()
	value, err := p.token()
	if err != nil {
		return Pair{}, err
	}
	p.skipSpace()
	if !p.hasPrefix(";") {
		return Pair{}, p.errorf("expected ';' after value of %q", key)
	}
	p.advance(1)
	return Pair{Key: key, Value: value}, nil
}

// token reads a quoted string or a bare identifier.
func (p *parser) token() (string, error) {
	if p.eof() {
		return "", p.errorf("unexpected end of file")
	}
	if p.src[p.pos] == '"' {
		return p.quoted()
	}
	start := p.pos
	for !p.eof() && isBare(p.src[p.pos]) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("unexpected character %q", p.src[p.pos])
	}
	return p.src[start:p.pos], nil
}

func isBare(c byte) bool {
	return c == '_' || c == '.' || c == '-' || c == '$' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func (p *parser) quoted() (string, error) {
	startLine := p.line
	p.advance(1)
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.advance(1)
			return b.String(), nil
		case '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errorf("unterminated escape")
			}
			esc := p.src[p.pos+1]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'U', 'u':
				if p.pos+6 > len(p.src) {
					return "", p.errorf("malformed \\U escape")
				}
				r, err := strconv.ParseUint(p.src[p.pos+2:p.pos+6], 16, 32)
				if err != nil {
					return "", p.errorf("malformed \\U escape %q", p.src[p.pos:p.pos+6])
				}
				b.WriteRune(rune(r))
				p.advance(6)
				continue
			default:
				b.WriteByte(esc)
			}
			p.advance(2)
		default:
			b.WriteByte(c)
			p.advance(1)
		}
	}
	return "", fmt.Errorf("line %d: unterminated string", startLine)
}

// Marshal writes pairs back in .strings syntax: each pair is preceded by
// its comments as /* */ blocks and followed by a blank line.
func Marshal(pairs []Pair) []byte {
	var b strings.Builder
	for i, pair := range pairs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, c := range pair.Comments {
			fmt.Fprintf(&b, "/* %s */\n", c)
		}
		fmt.Fprintf(&b, "\"%s\" = \"%s\";\n", escape(pair.Key), escape(pair.Value))
	}
	return []byte(b.String())
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

func escape(s string) string { return escaper.Replace(s) }
