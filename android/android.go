// Package android reads and writes Android strings.xml resource files.
//
// Supported resource types:
//   - <string>        simple key/value string
//   - <string-array>  ordered list of strings
//   - <plurals>       quantity-keyed plural forms (zero/one/two/few/many/other)
//
// Resources with translatable="false" are parsed and written back verbatim
// but never offered for translation.
package android

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Data model
// ---------------------------------------------------------------------------

// EntryKind identifies the type of a resource entry.
type EntryKind int

const (
	// KindString is a plain <string> resource.
	KindString EntryKind = iota
	// KindStringArray is a <string-array> resource.
	KindStringArray
	// KindPlurals is a <plurals> resource.
	KindPlurals
	// KindComment is an XML comment (not a resource).
	KindComment
)

// Entry represents a single item in a strings.xml file.
type Entry struct {
	Kind EntryKind

	// Name is the resource name. Empty for comments.
	Name string
	// Translatable reflects the translatable="…" attribute. Defaults to true.
	Translatable bool

	// Value holds a <string> body. Apostrophes are stored unescaped and
	// re-escaped on Marshal.
	Value string
	// UseCDATA is set when the source value was wrapped in <![CDATA[...]]>.
	UseCDATA bool

	// Items holds <string-array> values in document order.
	Items     []string
	ItemCDATA []bool

	// Plurals maps a quantity keyword to its text; PluralOrder keeps the
	// order the quantities appeared in.
	Plurals     map[string]string
	PluralOrder []string
	PluralCDATA map[string]bool

	// Comment is the comment text without <!-- -->.
	Comment string
}

// IsComment reports whether this entry is an XML comment.
func (e *Entry) IsComment() bool { return e.Kind == KindComment }

// IsTranslatable reports whether this resource should be translated.
func (e *Entry) IsTranslatable() bool {
	return e.Kind != KindComment && e.Translatable
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Items = append([]string(nil), e.Items...)
	c.ItemCDATA = append([]bool(nil), e.ItemCDATA...)
	c.PluralOrder = append([]string(nil), e.PluralOrder...)
	if e.Plurals != nil {
		c.Plurals = make(map[string]string, len(e.Plurals))
		for q, v := range e.Plurals {
			c.Plurals[q] = v
		}
	}
	if e.PluralCDATA != nil {
		c.PluralCDATA = make(map[string]bool, len(e.PluralCDATA))
		for q, v := range e.PluralCDATA {
			c.PluralCDATA[q] = v
		}
	}
	return &c
}

// File represents a parsed Android strings.xml file.
type File struct {
	// Entries in document order (resources and comments).
	Entries []*Entry
	byName  map[string]int
}

// Clone returns a deep copy of f.
func (f *File) Clone() *File {
	c := &File{byName: make(map[string]int, len(f.byName))}
	for _, e := range f.Entries {
		c.addEntry(e.clone())
	}
	return c
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses an Android strings.xml file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// cdataSet holds resource names (and array/plural item paths) that used CDATA
// in the source XML.
type cdataSet map[string]bool

// cdataKey returns a lookup key for a resource or sub-item:
//
//	string:            "name"
//	string-array item: "name[0]", "name[1]", …
//	plurals item:      "name#one", "name#other", …
func cdataKey(name, suffix string) string {
	return name + suffix
}

// encoding/xml unwraps CDATA into plain CharData, so CDATA usage is
// recorded from the raw bytes before decoding.
var (
	reStringCDATA     = regexp.MustCompile(`<string\s[^>]*name="([^"]+)"[^>]*>\s*<!\[CDATA\[`)
	reArrayBlock      = regexp.MustCompile(`(?s)<string-array\s[^>]*name="([^"]+)"[^>]*>(.*?)</string-array>`)
	reArrayItem       = regexp.MustCompile(`(?s)<item[^>]*>(\s*<!\[CDATA\[)?`)
	rePluralsBlock    = regexp.MustCompile(`(?s)<plurals\s[^>]*name="([^"]+)"[^>]*>(.*?)</plurals>`)
	rePluralItemCDATA = regexp.MustCompile(`(?s)<item\s[^>]*quantity="([^"]+)"[^>]*>\s*<!\[CDATA\[`)
)

func scanCDATA(data []byte) cdataSet {
	result := cdataSet{}
	s := string(data)

	for _, m := range reStringCDATA.FindAllStringSubmatch(s, -1) {
		result[m[1]] = true
	}
	for _, m := range reArrayBlock.FindAllStringSubmatch(s, -1) {
		name, block := m[1], m[2]
		for i, item := range reArrayItem.FindAllStringSubmatch(block, -1) {
			if item[1] != "" {
				result[cdataKey(name, fmt.Sprintf("[%d]", i))] = true
			}
		}
	}
	for _, m := range rePluralsBlock.FindAllStringSubmatch(s, -1) {
		name, block := m[1], m[2]
		for _, pm := range rePluralItemCDATA.FindAllStringSubmatch(block, -1) {
			result[cdataKey(name, "#"+pm[1])] = true
		}
	}
	return result
}

// Parse parses Android strings.xml data. The document must have a
// <resources> root element.
func Parse(data []byte) (*File, error) {
	f := &File{byName: make(map[string]int)}
	cdata := scanCDATA(data)

	dec := xml.NewDecoder(strings.NewReader(string(data)))
	inResources, sawRoot := false, false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !sawRoot {
				if t.Name.Local != "resources" {
					return nil, fmt.Errorf("root element must be 'resources', found '%s'", t.Name.Local)
				}
				sawRoot, inResources = true, true
				continue
			}
			if !inResources {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("invalid XML: %w", err)
				}
				continue
			}

			var e *Entry
			switch t.Name.Local {
			case "string":
				e, err = parseStringElement(dec, t, cdata)
			case "string-array":
				e, err = parseStringArrayElement(dec, t, cdata)
			case "plurals":
				e, err = parsePluralsElement(dec, t, cdata)
			default:
				err = dec.Skip()
			}
			if err != nil {
				return nil, err
			}
			if e != nil {
				f.addEntry(e)
			}

		case xml.Comment:
			if inResources {
				if comment := strings.TrimSpace(string(t)); comment != "" {
					f.Entries = append(f.Entries, &Entry{Kind: KindComment, Comment: comment})
				}
			}

		case xml.EndElement:
			if t.Name.Local == "resources" {
				inResources = false
			}
		}
	}

	if !sawRoot {
		return nil, errors.New("invalid XML: no <resources> element")
	}
	return f, nil
}

func (f *File) addEntry(e *Entry) {
	idx := len(f.Entries)
	f.Entries = append(f.Entries, e)
	if e.Name != "" {
		f.byName[e.Name] = idx
	}
}

// parseAttrs extracts name and translatable from a start element.
func parseAttrs(elem xml.StartElement) (name string, translatable bool) {
	translatable = true
	for _, attr := range elem.Attr {
		switch attr.Name.Local {
		case "name":
			name = attr.Value
		case "translatable":
			if strings.EqualFold(attr.Value, "false") {
				translatable = false
			}
		}
	}
	return
}

func parseStringElement(dec *xml.Decoder, elem xml.StartElement, cdata cdataSet) (*Entry, error) {
	name, translatable := parseAttrs(elem)
	var inner strings.Builder
	if err := readElementContent(dec, &inner); err != nil {
		return nil, fmt.Errorf("reading <string name=%q>: %w", name, err)
	}
	return &Entry{
		Kind:         KindString,
		Name:         name,
		Translatable: translatable,
		Value:        inner.String(),
		UseCDATA:     cdata[name],
	}, nil
}

func parseStringArrayElement(dec *xml.Decoder, elem xml.StartElement, cdata cdataSet) (*Entry, error) {
	name, translatable := parseAttrs(elem)
	e := &Entry{
		Kind:         KindStringArray,
		Name:         name,
		Translatable: translatable,
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading <string-array name=%q>: %w", name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "item" && depth == 1 {
				var inner strings.Builder
				if err := readElementContent(dec, &inner); err != nil {
					return nil, fmt.Errorf("reading <item> in <string-array name=%q>: %w", name, err)
				}
				e.ItemCDATA = append(e.ItemCDATA, cdata[cdataKey(name, fmt.Sprintf("[%d]", len(e.Items)))])
				e.Items = append(e.Items, inner.String())
			} else {
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}
	return e, nil
}

func parsePluralsElement(dec *xml.Decoder, elem xml.StartElement, cdata cdataSet) (*Entry, error) {
	name, translatable := parseAttrs(elem)
	e := &Entry{
		Kind:         KindPlurals,
		Name:         name,
		Translatable: translatable,
		Plurals:      make(map[string]string),
		PluralCDATA:  make(map[string]bool),
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading <plurals name=%q>: %w", name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "item" && depth == 1 {
				var quantity string
				for _, attr := range t.Attr {
					if attr.Name.Local == "quantity" {
						quantity = attr.Value
						break
					}
				}
				var inner strings.Builder
				if err := readElementContent(dec, &inner); err != nil {
					return nil, fmt.Errorf("reading <item quantity=%q> in <plurals name=%q>: %w", quantity, name, err)
				}
				if quantity != "" {
					if _, dup := e.Plurals[quantity]; !dup {
						e.PluralOrder = append(e.PluralOrder, quantity)
					}
					e.Plurals[quantity] = inner.String()
					e.PluralCDATA[quantity] = cdata[cdataKey(name, "#"+quantity)]
				}
			} else {
				depth++
			}
		case xml.EndElement:
			depth--
		}
	}
	return e, nil
}

// readElementContent reads the inner content of an element up to its close
// tag. Inline child elements such as <xliff:g> are kept as raw markup and
// Android-escaped apostrophes are unescaped.
func readElementContent(dec *xml.Decoder, b *strings.Builder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.WriteString(unescapeAndroidApostrophe(string(t)))
		case xml.StartElement:
			depth++
			b.WriteString("<")
			writeName(b, t.Name)
			for _, attr := range t.Attr {
				b.WriteString(" ")
				writeName(b, attr.Name)
				fmt.Fprintf(b, `="%s"`, attr.Value)
			}
			b.WriteString(">")
		case xml.EndElement:
			depth--
			if depth > 0 {
				b.WriteString("</")
				writeName(b, t.Name)
				b.WriteString(">")
			}
		}
	}
	return nil
}

// writeName writes an element or attribute name. encoding/xml resolves
// declared prefixes to namespace URIs, so well-known Android namespaces are
// mapped back to their conventional prefixes.
func writeName(b *strings.Builder, n xml.Name) {
	if n.Space != "" {
		b.WriteString(namespacePrefix(n.Space))
		b.WriteString(":")
	}
	b.WriteString(n.Local)
}

var knownNamespaces = map[string]string{
	"urn:oasis:names:tc:xliff:document:1.2":      "xliff",
	"http://schemas.android.com/tools":           "tools",
	"http://schemas.android.com/apk/res/android": "android",
}

func namespacePrefix(space string) string {
	if p, ok := knownNamespaces[space]; ok {
		return p
	}
	return space
}

func unescapeAndroidApostrophe(s string) string {
	return strings.ReplaceAll(s, `\'`, `'`)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Get returns the value of a <string> resource.
func (f *File) Get(name string) (string, bool) {
	e := f.GetEntry(name)
	if e == nil || e.Kind != KindString {
		return "", false
	}
	return e.Value, true
}

// GetEntry returns the resource with the given name, or nil.
func (f *File) GetEntry(name string) *Entry {
	idx, ok := f.byName[name]
	if !ok {
		return nil
	}
	return f.Entries[idx]
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Marshal produces the XML output in Android strings.xml format, including
// non-translatable resources and comments.
func (f *File) Marshal() []byte {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	b.WriteString("<resources>\n")

	for _, e := range f.Entries {
		attrs := fmt.Sprintf(`name="%s"`, e.Name)
		if !e.Translatable {
			attrs += ` translatable="false"`
		}

		switch e.Kind {
		case KindComment:
			fmt.Fprintf(&b, "    <!-- %s -->\n", e.Comment)

		case KindString:
			fmt.Fprintf(&b, "    <string %s>%s</string>\n", attrs, marshalStringValue(e.Value, e.UseCDATA))

		case KindStringArray:
			fmt.Fprintf(&b, "    <string-array %s>\n", attrs)
			for i, item := range e.Items {
				useCDATA := i < len(e.ItemCDATA) && e.ItemCDATA[i]
				fmt.Fprintf(&b, "        <item>%s</item>\n", marshalStringValue(item, useCDATA))
			}
			b.WriteString("    </string-array>\n")

		case KindPlurals:
			fmt.Fprintf(&b, "    <plurals %s>\n", attrs)
			for _, q := range e.PluralOrder {
				content := marshalStringValue(e.Plurals[q], e.PluralCDATA[q])
				fmt.Fprintf(&b, "        <item quantity=\"%s\">%s</item>\n", q, content)
			}
			b.WriteString("    </plurals>\n")
		}
	}

	b.WriteString("</resources>\n")
	return []byte(b.String())
}

// marshalStringValue encodes a value for XML output. CDATA values only get
// apostrophe escaping (an AAPT requirement).
func marshalStringValue(s string, useCDATA bool) string {
	if useCDATA {
		return "<![CDATA[" + escapeAndroidApostrophe(s) + "]]>"
	}
	return xmlEscape(s)
}

// xmlEscape escapes a plain value for use inside an element. Values that
// contain both < and > carry inline markup (e.g. <xliff:g>) and are kept
// as-is apart from apostrophe escaping.
func xmlEscape(s string) string {
	if strings.Contains(s, "<") && strings.Contains(s, ">") {
		return escapeAndroidApostrophe(s)
	}
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return escapeAndroidApostrophe(s)
}

// escapeAndroidApostrophe escapes apostrophes without double-escaping.
func escapeAndroidApostrophe(s string) string {
	s = strings.ReplaceAll(s, `\'`, `'`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
