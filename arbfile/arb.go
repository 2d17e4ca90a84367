// Package arbfile implements reading and writing of Flutter ARB (Application
// Resource Bundle) files.
//
// ARB files are JSON objects with a specific structure:
//
//   - "@@locale" holds the BCP-47 language code (e.g. "en", "ru").
//   - Keys starting with "@" (e.g. "@greeting", "@@author") are metadata and
//     are preserved verbatim, never translated.
//   - All other string values are translatable. Non-string values are kept
//     as they are.
//
// Round-trip fidelity: key order from the source file is preserved and
// "@@locale" is always written first.
package arbfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// entry is a single key in the ARB file.
type entry struct {
	key      string
	value    string // decoded value of a translatable string
	isText   bool   // non-metadata key holding a JSON string
	isMeta   bool   // @-keys (metadata and @@locale)
	rawValue []byte // original JSON value bytes
}

// File represents a parsed ARB file.
type File struct {
	locale  string
	entries []entry
	index   map[string]int
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses an ARB file from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses ARB content. Keys are streamed with json.Decoder so that the
// document order survives.
func Parse(data []byte) (*File, error) {
	f := &File{index: make(map[string]int)}

	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing ARB: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parsing ARB: root must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing ARB key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("parsing ARB: expected string key, got %T", keyTok)
		}
		if _, dup := f.index[key]; dup {
			return nil, fmt.Errorf("parsing ARB: duplicate key %q", key)
		}

		var rawVal json.RawMessage
		if err := dec.Decode(&rawVal); err != nil {
			return nil, fmt.Errorf("parsing ARB value for %q: %w", key, err)
		}

		e := entry{
			key:      key,
			isMeta:   strings.HasPrefix(key, "@"),
			rawValue: rawVal,
		}
		var s string
		isString := json.Unmarshal(rawVal, &s) == nil
		switch {
		case key == "@@locale" && isString:
			f.locale = s
		case !e.isMeta && isString:
			e.value, e.isText = s, true
		}

		f.index[key] = len(f.entries)
		f.entries = append(f.entries, e)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parsing ARB: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parsing ARB: unexpected data after top-level object")
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Locale returns the @@locale value.
func (f *File) Locale() string { return f.locale }

// SetLocale replaces the @@locale value.
func (f *File) SetLocale(locale string) { f.locale = locale }

// Keys returns all translatable keys in document order.
func (f *File) Keys() []string {
	var keys []string
	for _, e := range f.entries {
		if e.isText {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// Get returns the string value for a translatable key.
func (f *File) Get(key string) (string, bool) {
	if idx, ok := f.index[key]; ok && f.entries[idx].isText {
		return f.entries[idx].value, true
	}
	return "", false
}

// Set sets the value of an existing translatable key.
// Returns false if the key is not found or is not a translatable string.
func (f *File) Set(key, value string) bool {
	idx, ok := f.index[key]
	if !ok || !f.entries[idx].isText {
		return false
	}
	f.entries[idx].value = value
	return true
}

// Description returns the "description" field of the @key metadata object.
func (f *File) Description(key string) string {
	idx, ok := f.index["@"+key]
	if !ok {
		return ""
	}
	var meta struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(f.entries[idx].rawValue, &meta); err != nil {
		return ""
	}
	return meta.Description
}

// Clone returns a copy of f that can be modified independently.
func (f *File) Clone() *File {
	c := &File{
		locale:  f.locale,
		entries: append([]entry(nil), f.entries...),
		index:   make(map[string]int, len(f.index)),
	}
	for k, v := range f.index {
		c.index[k] = v
	}
	return c
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal serialises the ARB file to JSON with 2-space indentation.
// The @@locale key is always written first.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	n := 0
	writeKey := func(key string) error {
		if n > 0 {
			buf.WriteString(",")
		}
		n++
		buf.WriteString("\n  ")
		return writeString(&buf, key)
	}

	if f.locale != "" {
		if err := writeKey("@@locale"); err != nil {
			return nil, err
		}
		buf.WriteString(": ")
		if err := writeString(&buf, f.locale); err != nil {
			return nil, err
		}
	}

	for _, e := range f.entries {
		if e.key == "@@locale" && f.locale != "" {
			continue
		}
		if err := writeKey(e.key); err != nil {
			return nil, err
		}
		buf.WriteString(": ")
		if e.isText {
			if err := writeString(&buf, e.value); err != nil {
				return nil, err
			}
			continue
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, e.rawValue, "  ", "  "); err != nil {
			buf.Write(e.rawValue)
		} else {
			buf.Write(pretty.Bytes())
		}
	}

	if n == 0 {
		return []byte("{}\n"), nil
	}
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

// writeString writes s as a JSON string without HTML escaping, so markup in
// translations stays readable.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
