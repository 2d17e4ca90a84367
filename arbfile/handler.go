package arbfile

import (
	"fmt"

	"github.com/yigitkonur/cli-localize/formats"
)

// fallbackLocale is written when neither the source nor the caller names a
// locale.
const fallbackLocale = "translated"

// Handler adapts ARB files to the formats.Handler interface. The entry id is
// the message key and its @key description becomes the context.
type Handler struct {
	formats.Placeholders
}

// New returns an ARB handler checking ICU placeholders.
func New() *Handler {
	return &Handler{Placeholders: formats.Placeholders{formats.ICU, formats.ICUFull}}
}

func (*Handler) Name() string          { return "arb" }
func (*Handler) Extensions() []string  { return []string{"arb"} }
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
			Context:  f.Description(k),
			Metadata: map[string]any{formats.DocumentKey: f},
		})
	}
	return entries, nil
}

// Reconstruct writes the source document with translated values and
// @@locale set to targetLang. An empty targetLang keeps the source locale.
func (*Handler) Reconstruct(entries []formats.Entry, translations map[string]string, targetLang string) ([]byte, error) {
	src, ok := formats.Document(entries).(*File)
	if !ok {
		if len(entries) > 0 {
			return nil, fmt.Errorf("arb: entries carry no source document")
		}
		src = &File{index: map[string]int{}}
	}

	f := src.Clone()
	for _, k := range f.Keys() {
		if t, ok := translations[k]; ok {
			f.Set(k, t)
		}
	}
	switch {
	case targetLang != "":
		f.SetLocale(targetLang)
	case f.Locale() == "":
		f.SetLocale(fallbackLocale)
	}
	return f.Marshal()
}
