package yamlfile

import (
	"fmt"

	"github.com/yigitkonur/cli-localize/formats"
)

// Handler adapts YAML translation files to the formats.Handler interface.
type Handler struct {
	formats.Placeholders
}

// New returns a YAML handler checking Ruby and i18next placeholders.
func New() *Handler {
	return &Handler{Placeholders: formats.Placeholders{formats.Ruby, formats.I18next}}
}

func (*Handler) Name() string          { return "yaml" }
func (*Handler) Extensions() []string  { return []string{"yml", "yaml"} }
func (*Handler) SupportsContext() bool { return false }

func (*Handler) Parse(content []byte) ([]formats.Entry, error) {
	f, err := Parse(content)
	if err != nil {
		return nil, err
	}
	entries := make([]formats.Entry, 0, len(f.entries))
	for _, e := range f.entries {
		entries = append(entries, formats.Entry{
			ID:       e.Path,
			Text:     e.Value,
			Metadata: map[string]any{formats.DocumentKey: f},
		})
	}
	return entries, nil
}

// Reconstruct writes a copy of the source tree with translations applied.
// A Rails locale root is renamed to targetLang.
func (*Handler) Reconstruct(entries []formats.Entry, translations map[string]string, targetLang string) ([]byte, error) {
	src, ok := formats.Document(entries).(*File)
	if !ok {
		if len(entries) > 0 {
			return nil, fmt.Errorf("yaml: entries carry no source document")
		}
		return []byte("{}\n"), nil
	}
	f := src.Clone()
	for _, p := range f.Keys() {
		if t, ok := translations[p]; ok {
			f.Set(p, t)
		}
	}
	f.SetRootLocale(targetLang)
	return f.Marshal()
}
