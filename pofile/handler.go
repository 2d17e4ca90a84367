package pofile

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/yigitkonur/cli-localize/formats"
)

// Handler adapts PO/POT files to the formats.Handler interface.
//
// Entries are the non-obsolete messages keyed by Entry.Key, or by a hashed
// substitute when the key cannot travel in a batch. Untranslated
// messages keep their existing msgstr on output, so partial runs never
// erase earlier translations. For plural messages only msgstr[0] is
// translated; other forms are kept.
type Handler struct {
	formats.Placeholders
}

// New returns a PO handler checking printf-style placeholders.
func New() *Handler {
	return &Handler{Placeholders: formats.Placeholders{formats.Printf, formats.PrintfNamed}}
}

func (*Handler) Name() string          { return "po" }
func (*Handler) Extensions() []string  { return []string{"po", "pot"} }
func (*Handler) SupportsContext() bool { return false }

func (*Handler) Parse(content []byte) ([]formats.Entry, error) {
	f, err := Parse(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	var entries []formats.Entry
	seen := make(map[string]bool)
	for _, e := range f.Entries {
		if e.Obsolete || e.MsgID == "" {
			continue
		}
		key := e.Key()
		id := formats.WireID(key)
		if seen[id] {
			return nil, fmt.Errorf("duplicate message %q", key)
		}
		seen[id] = true

		var ctx []string
		ctx = append(ctx, e.ExtractedComments...)
		if len(e.References) > 0 {
			ctx = append(ctx, "References: "+strings.Join(e.References, ", "))
		}
		entries = append(entries, formats.Entry{
			ID:       id,
			Text:     e.MsgID,
			Context:  strings.Join(ctx, "\n"),
			Metadata: map[string]any{formats.DocumentKey: f},
		})
	}
	return entries, nil
}

func (*Handler) Reconstruct(entries []formats.Entry, translations map[string]string, targetLang string) ([]byte, error) {
	src, ok := formats.Document(entries).(*File)
	if !ok {
		if len(entries) > 0 {
			return nil, errors.New("po: entries carry no parsed document")
		}
		src = &File{}
	}

	f := src.Clone()
	if targetLang != "" {
		f.SetHeaderField("Language", targetLang)
	}
	for _, e := range f.Entries {
		if e.Obsolete || e.MsgID == "" {
			continue
		}
		t, ok := translations[formats.WireID(e.Key())]
		if !ok || t == "" {
			continue
		}
		if e.MsgIDPlural != "" {
			e.MsgStrPlural[0] = t
		} else {
			e.MsgStr = t
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
