// Package yamlfile implements reading and writing of YAML translation files.
//
// The expected file format is a nested YAML map with string leaf values:
//
//	greeting: Hello
//	nav:
//	  home: Home
//	  about: About
//	days:
//	  - Monday
//	  - Tuesday
//
// Rails i18n style (a single locale code as the top-level key) is also
// supported; the locale key is not part of the entry paths:
//
//	en:
//	  greeting: Hello
//
// Sequence items are addressed by index ("days.0"). Non-string scalars
// (numbers, booleans, null, timestamps) and aliases are passed through
// unchanged. The node tree is kept so that key order, comments and scalar
// styles survive a round trip.
package yamlfile

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/yigitkonur/cli-localize/langmeta"
)

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// Entry represents a single translatable leaf value.
type Entry struct {
	// Path is the dot-joined key path (e.g. "nav.home", "days.0").
	Path string
	// Value is the current text.
	Value string

	node *yaml.Node
}

// File represents a parsed YAML translation file.
type File struct {
	doc     *yaml.Node
	entries []Entry
	index   map[string]int
	// rootLocaleKey is set when the file uses Rails i18n style (e.g. "en:").
	rootLocaleKey string
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a YAML translation file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses YAML data into a File. The root must be a mapping.
func Parse(data []byte) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return fromDocument(&doc)
}

func fromDocument(doc *yaml.Node) (*File, error) {
	f := &File{doc: doc, index: make(map[string]int)}

	// yaml.Unmarshal wraps the document in a DocumentNode; an empty input
	// leaves it zero.
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return f, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("YAML root must be a mapping")
	}

	if key, ok := railsLocale(root); ok {
		f.rootLocaleKey = key
		root = root.Content[1]
	}
	if err := f.collect(root, ""); err != nil {
		return nil, err
	}
	return f, nil
}

// railsLocale reports whether root is a single known locale code holding a
// mapping.
func railsLocale(root *yaml.Node) (string, bool) {
	if len(root.Content) != 2 {
		return "", false
	}
	key, val := root.Content[0], root.Content[1]
	if key.Kind != yaml.ScalarNode || val.Kind != yaml.MappingNode {
		return "", false
	}
	return key.Value, langmeta.Known(key.Value)
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// collect walks node and appends string leaves in document order.
func (f *File) collect(node *yaml.Node, prefix string) error {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if err := f.collect(node.Content[i+1], join(prefix, node.Content[i].Value)); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			if err := f.collect(item, join(prefix, strconv.Itoa(i))); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if node.ShortTag() != "!!str" {
			return nil
		}
		if _, dup := f.index[prefix]; dup {
			return fmt.Errorf("duplicate key path %q", prefix)
		}
		f.index[prefix] = len(f.entries)
		f.entries = append(f.entries, Entry{Path: prefix, Value: node.Value, node: node})
	}
	return nil
}

// ---------------------------------------------------------------------------
// Querying
// ---------------------------------------------------------------------------

// Entries returns the translatable leaves in document order.
func (f *File) Entries() []Entry {
	return append([]Entry(nil), f.entries...)
}

// Keys returns all entry paths in document order.
func (f *File) Keys() []string {
	keys := make([]string, len(f.entries))
	for i, e := range f.entries {
		keys[i] = e.Path
	}
	return keys
}

// RootLocale returns the Rails locale key, or "".
func (f *File) RootLocale() string { return f.rootLocaleKey }

// Get returns the current value for the given path.
func (f *File) Get(path string) (string, bool) {
	idx, ok := f.index[path]
	if !ok {
		return "", false
	}
	return f.entries[idx].Value, true
}

// Set updates the value for the given path.
// Returns false if the path is not in the file.
func (f *File) Set(path, value string) bool {
	idx, ok := f.index[path]
	if !ok {
		return false
	}
	e := &f.entries[idx]
	e.Value = value
	e.node.Value = value
	if value == "" && e.node.Style == 0 {
		e.node.Style = yaml.DoubleQuotedStyle
	}
	return true
}

// SetRootLocale renames the Rails locale key. It is a no-op for files
// without one.
func (f *File) SetRootLocale(locale string) {
	if f.rootLocaleKey == "" || locale == "" {
		return
	}
	f.doc.Content[0].Content[0].Value = locale
	f.rootLocaleKey = locale
}

// Clone returns a deep copy of f.
func (f *File) Clone() *File {
	doc := cloneNode(f.doc)
	c, err := fromDocument(doc)
	if err != nil {
		// The source tree was already accepted by fromDocument.
		panic(fmt.Sprintf("yamlfile: cloning a parsed file: %v", err))
	}
	return c
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Content = make([]*yaml.Node, len(n.Content))
	for i, child := range n.Content {
		c.Content[i] = cloneNode(child)
	}
	// Alias targets are left shared; they are never written through.
	return &c
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Marshal serialises the file back to YAML with two-space indentation.
func (f *File) Marshal() ([]byte, error) {
	if f.doc == nil || f.doc.Kind == 0 {
		return []byte("{}\n"), nil
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f.doc); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding YAML: %w", err)
	}
	return buf.Bytes(), nil
}
