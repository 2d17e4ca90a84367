package jsonfile

import (
	"errors"
	"fmt"

	"github.com/yigitkonur/cli-localize/formats"
)

// Handler adapts nested JSON files to the formats.Handler interface.
type Handler struct {
	formats.Placeholders
}

// New returns a JSON handler checking i18next and ICU placeholders.
func New() *Handler {
	return &Handler{Placeholders: formats.Placeholders{formats.I18next, formats.ICU, formats.ICUFull}}
}

func (*Handler) Name() string          { return "json" }
func (*Handler) Extensions() []string  { return []string{"json"} }
func (*Handler) SupportsContext() bool { return false }

func (*Handler) Parse(content []byte) ([]formats.Entry, error) {
	f, err := Parse(content)
	if err != nil {
		return nil, err
	}
	leaves := f.Leaves()
	entries := make([]formats.Entry, 0, len(leaves))
	seen := make(map[string]bool, len(leaves))
	for _, l := range leaves {
		id := l.ID()
		if seen[id] {
			return nil, fmt.Errorf("duplicate key path %q", id)
		}
		seen[id] = true
		entries = append(entries, formats.Entry{
			ID:       id,
			Text:     l.Value,
			Metadata: map[string]any{formats.DocumentKey: f},
		})
	}
	return entries, nil
}

func (*Handler) Reconstruct(entries []formats.Entry, translations map[string]string, _ string) ([]byte, error) {
	f, ok := formats.Document(entries).(*File)
	if !ok {
		if len(entries) == 0 {
			return []byte("{}\n"), nil
		}
		return nil, errors.New("json: entries carry no parsed document")
	}
	return f.Marshal(translations)
}
