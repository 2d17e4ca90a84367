package android

import (
	"fmt"
	"strconv"

	"github.com/yigitkonur/cli-localize/formats"
)

// Handler adapts strings.xml files to the formats.Handler contract.
//
// Entry ids are the resource name for <string>, name#plural#quantity for
// plural forms and name.index for array items. A comment directly before a
// resource becomes the context of its entries.
type Handler struct {
	formats.Placeholders
}

// New returns the Android handler.
func New() *Handler {
	return &Handler{Placeholders: formats.Placeholders{formats.Android, formats.Printf}}
}

func (*Handler) Name() string          { return "android" }
func (*Handler) Extensions() []string  { return []string{"xml"} }
func (*Handler) SupportsContext() bool { return false }

func pluralID(name, quantity string) string { return name + "#plural#" + quantity }
func itemID(name string, i int) string      { return name + "." + strconv.Itoa(i) }

// Parse returns one entry per translatable string, plural form and array item.
func (*Handler) Parse(content []byte) ([]formats.Entry, error) {
	f, err := Parse(content)
	if err != nil {
		return nil, err
	}

	var entries []formats.Entry
	add := func(id, text, context string) {
		entries = append(entries, formats.Entry{
			ID:       id,
			Text:     text,
			Context:  context,
			Metadata: map[string]any{formats.DocumentKey: f},
		})
	}

	pending := ""
	for _, e := range f.Entries {
		if e.IsComment() {
			pending = e.Comment
			continue
		}
		context := pending
		pending = ""
		if !e.IsTranslatable() {
			continue
		}
		switch e.Kind {
		case KindString:
			add(e.Name, e.Value, context)
		case KindPlurals:
			for _, q := range e.PluralOrder {
				add(pluralID(e.Name, q), e.Plurals[q], context)
			}
		case KindStringArray:
			for i, item := range e.Items {
				add(itemID(e.Name, i), item, context)
			}
		}
	}
	return entries, nil
}

// Reconstruct writes a copy of the source document with translated values.
// Resources without a translation keep their source text.
func (*Handler) Reconstruct(entries []formats.Entry, translations map[string]string, _ string) ([]byte, error) {
	src, ok := formats.Document(entries).(*File)
	if !ok {
		if len(entries) == 0 {
			return (&File{}).Marshal(), nil
		}
		return nil, fmt.Errorf("android: entries carry no source document")
	}

	f := src.Clone()
	for _, e := range f.Entries {
		if !e.IsTranslatable() {
			continue
		}
		switch e.Kind {
		case KindString:
			e.Value = formats.Translated(translations, e.Name, e.Value)
		case KindPlurals:
			for _, q := range e.PluralOrder {
				e.Plurals[q] = formats.Translated(translations, pluralID(e.Name, q), e.Plurals[q])
			}
		case KindStringArray:
			for i, item := range e.Items {
				e.Items[i] = formats.Translated(translations, itemID(e.Name, i), item)
			}
		}
	}
	return f.Marshal(), nil
}
