package propfile

import (
	"fmt"

	"github.com/yigitkonur/cli-localize/formats"
)

// Handler adapts .properties files to the formats.Handler interface.
// Comment lines directly above a key become the entry context.
type Handler struct {
	formats.Placeholders
}

// New returns a properties handler checking printf and MessageFormat
// ({0}) placeholders.
func New() *Handler {
	return &Handler{Placeholders: formats.Placeholders{formats.Printf, formats.ICU}}
}

func (*Handler) Name() string          { return "properties" }
func (*Handler) Extensions() []string  { return []string{"properties"} }
func (*Handler) SupportsContext() bool { return false }

func (*Handler) Parse(content []byte) ([]formats.Entry, error) {
	f, err := Parse(content)
	if err != nil {
		return nil, err
	}
	keys := f.Keys()
	entries := make([]formats.Entry, 0, len(keys))
	for _, k := range keys {
		v, _ := f.Get(k)
		entries = append(entries, formats.Entry{
			ID:       k,
			Text:     v,
			Context:  f.Comment(k),
			Metadata: map[string]any{formats.DocumentKey: f},
		})
	}
	return entries, nil
}

func (*Handler) Reconstruct(entries []formats.Entry, translations map[string]string, _ string) ([]byte, error) {
	src, ok := formats.Document(entries).(*File)
	if !ok {
		if len(entries) > 0 {
			return nil, fmt.Errorf("properties: entries carry no source document")
		}
		return nil, nil
	}
	f := src.Clone()
	for _, k := range f.Keys() {
		if t, ok := translations[k]; ok {
			f.Set(k, t)
		}
	}
	return f.Marshal()
}
