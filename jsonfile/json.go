// Package jsonfile implements reading and writing of nested JSON
// translation files as used by i18next, react-intl and vue-i18n:
//
//	{
//	    "welcome": "Welcome",
//	    "user": {
//	        "greeting": "Hello {{name}}",
//	        "tags": ["new", "vip"]
//	    }
//	}
//
// String leaves are addressed by their dot-joined path ("user.greeting",
// "user.tags.0"). Keys starting with "@" and everything below them are
// metadata and never translated. Key order, numbers, booleans and nulls
// survive a round trip.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

type kind int

const (
	kindObject kind = iota
	kindArray
	kindString
	kindLiteral // number, bool or null, kept verbatim
)

// Node is one value of the document tree.
type Node struct {
	kind  kind
	keys  []string // object keys, in document order
	vals  []*Node  // object values, parallel to keys; array items
	str   string
	token string
}

// File is a parsed JSON translation file.
type File struct {
	root *Node
}

// Leaf is a translatable string with its path.
type Leaf struct {
	Path  []string
	Value string
}

// ID returns the dot-joined path.
func (l Leaf) ID() string { return strings.Join(l.Path, ".") }

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses a JSON translation file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses JSON data, preserving key order.
func Parse(data []byte) (*File, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	root, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if root.kind != kindObject && root.kind != kindArray {
		return nil, errors.New("parsing JSON: root must be an object or array")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("parsing JSON: trailing data after root value")
	}
	return &File{root: root}, nil
}

func parseValue(dec *json.Decoder) (*Node, error) {
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := t.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := &Node{kind: kindObject}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("expected string key, got %v", kt)
				}
				val, err := parseValue(dec)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", key, err)
				}
				n.keys = append(n.keys, key)
				n.vals = append(n.vals, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &Node{kind: kindArray}
			for dec.More() {
				val, err := parseValue(dec)
				if err != nil {
					return nil, fmt.Errorf("[%d]: %w", len(n.vals), err)
				}
				n.vals = append(n.vals, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected %v", v)
	case string:
		return &Node{kind: kindString, str: v}, nil
	case json.Number:
		return &Node{kind: kindLiteral, token: v.String()}, nil
	case bool:
		return &Node{kind: kindLiteral, token: strconv.FormatBool(v)}, nil
	case nil:
		return &Node{kind: kindLiteral, token: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", t)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Leaves returns every translatable string in document order.
func (f *File) Leaves() []Leaf {
	var out []Leaf
	walk(f.root, nil, func(path []string, n *Node) {
		out = append(out, Leaf{Path: append([]string(nil), path...), Value: n.str})
	})
	return out
}

func walk(n *Node, path []string, fn func([]string, *Node)) {
	switch n.kind {
	case kindObject:
		for i, k := range n.keys {
			if strings.HasPrefix(k, "@") {
				continue
			}
			walk(n.vals[i], append(path, k), fn)
		}
	case kindArray:
		for i, v := range n.vals {
			walk(v, append(path, strconv.Itoa(i)), fn)
		}
	case kindString:
		fn(path, n)
	}
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal renders the document with 2-space indentation. Translatable
// strings are looked up in values by id; missing ids keep their source
// text. The document itself is not modified.
func (f *File) Marshal(values map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeNode(&buf, f.root, nil, values, "", true); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n *Node, path []string, values map[string]string, indent string, translatable bool) error {
	switch n.kind {
	case kindObject:
		if len(n.keys) == 0 {
			buf.WriteString("{}")
			return nil
		}
		buf.WriteString("{\n")
		for i, k := range n.keys {
			buf.WriteString(indent + "  ")
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteString(": ")
			child := translatable && !strings.HasPrefix(k, "@")
			if err := writeNode(buf, n.vals[i], append(path, k), values, indent+"  ", child); err != nil {
				return err
			}
			if i < len(n.keys)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent + "}")
	case kindArray:
		if len(n.vals) == 0 {
			buf.WriteString("[]")
			return nil
		}
		buf.WriteString("[\n")
		for i, v := range n.vals {
			buf.WriteString(indent + "  ")
			if err := writeNode(buf, v, append(path, strconv.Itoa(i)), values, indent+"  ", translatable); err != nil {
				return err
			}
			if i < len(n.vals)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteString(indent + "]")
	case kindString:
		s := n.str
		if translatable {
			if t, ok := values[strings.Join(path, ".")]; ok {
				s = t
			}
		}
		return writeString(buf, s)
	default:
		buf.WriteString(n.token)
	}
	return nil
}

// writeString writes s as a JSON string without HTML escaping.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
