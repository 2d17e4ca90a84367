// Package propfile implements reading and writing of Java .properties files.
//
// Format: key=value pairs. Lines starting with '#' or '!' are comments and
// are preserved verbatim in the output, as are blank lines. The separator
// may be '=', ':' or whitespace, and is written back exactly as it was
// read. A value ending in an odd number of backslashes continues on the
// next line. Java escapes (\t, \n, \uXXXX, ...) are decoded on read and
// re-applied on write.
//
// The File type maintains the original line order so that round-trip
// serialization reproduces the source structure with translated values.
package propfile

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// lineKind classifies each logical line in the file.
type lineKind int

const (
	lineBlank   lineKind = iota // blank / whitespace-only line
	lineComment                 // comment line (starts with # or !)
	lineEntry                   // key=value pair
)

// line is a single logical line in the properties file.
type line struct {
	kind lineKind
	// raw is the source text: the comment, or every physical line of an
	// entry joined with "\n".
	raw      string
	key      string // decoded key
	rawKey   string // key as written, including leading indentation
	sep      string // separator as written, e.g. "=", " = ", ": ", " "
	value    string // decoded value
	original string // decoded value at parse time
}

// File represents a parsed .properties file.
type File struct {
	lines []line
	index map[string]int
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a .properties file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses .properties content from a byte slice.
func Parse(data []byte) (*File, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("properties file is not valid UTF-8")
	}
	f := &File{index: make(map[string]int)}

	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	rawLines := strings.Split(text, "\n")

	// Drop trailing empty element from a file that ends with \n.
	if len(rawLines) > 0 && rawLines[len(rawLines)-1] == "" {
		rawLines = rawLines[:len(rawLines)-1]
	}

	for i := 0; i < len(rawLines); i++ {
		raw := rawLines[i]
		trimmed := strings.TrimSpace(raw)

		switch {
		case trimmed == "":
			f.lines = append(f.lines, line{kind: lineBlank, raw: raw})
			continue
		case strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!"):
			f.lines = append(f.lines, line{kind: lineComment, raw: raw})
			continue
		}

		// Gather continuation lines.
		physical := []string{raw}
		logical := strings.TrimLeft(raw, " \t\f")
		for continues(logical) && i+1 < len(rawLines) {
			i++
			physical = append(physical, rawLines[i])
			logical = logical[:len(logical)-1] + strings.TrimLeft(rawLines[i], " \t\f")
		}
		if continues(logical) {
			logical = logical[:len(logical)-1]
		}

		indent := raw[:len(raw)-len(strings.TrimLeft(raw, " \t\f"))]
		rawKey, sep, rawValue := splitKeyValue(logical)
		key, err := unescape(rawKey)
		if err != nil {
			return nil, fmt.Errorf("line %d: key: %w", i+1, err)
		}
		value, err := unescape(rawValue)
		if err != nil {
			return nil, fmt.Errorf("line %d: value of %q: %w", i+1, key, err)
		}

		ln := line{
			kind:     lineEntry,
			raw:      strings.Join(physical, "\n"),
			key:      key,
			rawKey:   indent + rawKey,
			sep:      sep,
			value:    value,
			original: value,
		}
		if idx, exists := f.index[key]; exists {
			// Duplicate key: the last value wins at the first position.
			f.lines[idx] = ln
			continue
		}
		f.index[key] = len(f.lines)
		f.lines = append(f.lines, ln)
	}

	return f, nil
}

// continues reports whether s ends with an odd number of backslashes.
func continues(s string) bool {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

// splitKeyValue splits a logical line into the raw key, the separator and
// the raw value. The key ends at the first unescaped '=', ':' or
// whitespace; the separator absorbs surrounding whitespace and at most one
// '=' or ':'.
func splitKeyValue(s string) (key, sep, value string) {
	end := len(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			i++
			continue
		}
		if c == '=' || c == ':' || c == ' ' || c == '\t' || c == '\f' {
			end = i
			break
		}
	}
	key = s[:end]

	j := end
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	if j < len(s) && (s[j] == '=' || s[j] == ':') {
		j++
		for j < len(s) && isSpace(s[j]) {
			j++
		}
	}
	return key, s[end:j], s[j:]
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\f' }

// unescape decodes Java properties escapes.
func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+5 > len(s) {
				return "", fmt.Errorf("malformed \\uxxxx escape")
			}
			r, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("malformed \\uxxxx escape: %q", s[i-1:i+5])
			}
			b.WriteRune(rune(r))
			i += 4
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

// escapeValue encodes a value for output. Non-ASCII text is written as
// UTF-8.
func escapeValue(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\f':
			b.WriteString(`\f`)
		case ' ':
			if i == 0 {
				b.WriteString(`\ `)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Keys returns all translation keys in document order.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.index))
	for _, ln := range f.lines {
		if ln.kind == lineEntry {
			keys = append(keys, ln.key)
		}
	}
	return keys
}

// Get returns the value for key and whether it was found.
func (f *File) Get(key string) (string, bool) {
	if idx, ok := f.index[key]; ok {
		return f.lines[idx].value, true
	}
	return "", false
}

// Set sets the value for an existing key. Returns false if the key does not
// exist.
func (f *File) Set(key, value string) bool {
	idx, ok := f.index[key]
	if !ok {
		return false
	}
	f.lines[idx].value = value
	return true
}

// Comment returns the text of the comment lines directly above key, with
// the comment markers removed.
func (f *File) Comment(key string) string {
	idx, ok := f.index[key]
	if !ok {
		return ""
	}
	var parts []string
	for i := idx - 1; i >= 0 && f.lines[i].kind == lineComment; i-- {
		text := strings.TrimSpace(f.lines[i].raw)
		text = strings.TrimSpace(strings.TrimLeft(text, "#!"))
		parts = append([]string{text}, parts...)
	}
	return strings.Join(parts, "\n")
}

// Clone returns a copy of f that can be modified independently.
func (f *File) Clone() *File {
	c := &File{
		lines: append([]line(nil), f.lines...),
		index: make(map[string]int, len(f.index)),
	}
	for k, v := range f.index {
		c.index[k] = v
	}
	return c
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal serialises the file back to .properties format. Entries whose
// value did not change are written exactly as read.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	for _, ln := range f.lines {
		switch ln.kind {
		case lineBlank, lineComment:
			buf.WriteString(ln.raw)
		case lineEntry:
			if ln.value == ln.original && ln.raw != "" {
				buf.WriteString(ln.raw)
				break
			}
			sep := ln.sep
			if sep == "" {
				sep = "="
			}
			buf.WriteString(ln.rawKey)
			buf.WriteString(sep)
			buf.WriteString(escapeValue(ln.value))
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
