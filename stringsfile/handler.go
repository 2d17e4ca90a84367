package stringsfile

import (
	"fmt"
	"strings"

	"github.com/yigitkonur/cli-localize/formats"
)

const (
	commentsKey = "comments"
	keyKey      = "key"
)

// Handler adapts .strings files to the formats.Handler interface. Comments
// above a pair become the entry context and are written back on
// reconstruction.
type Handler struct {
	formats.Placeholders
}

// New returns a .strings handler checking Cocoa and printf placeholders.
func New() *Handler {
	return &Handler{Placeholders: formats.Placeholders{formats.IOS, formats.Printf}}
}

func (*Handler) Name() string          { return "strings" }
func (*Handler) Extensions() []string  { return []string{"strings"} }
func (*Handler) SupportsContext() bool { return false }

func (*Handler) Parse(content []byte) ([]formats.Entry, error) {
	pairs, err := Parse(content)
	if err != nil {
		return nil, err
	}
	entries := make([]formats.Entry, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		id := formats.WireID(p.Key)
		if seen[id] {
			return nil, fmt.Errorf("duplicate key %q", p.Key)
		}
		seen[id] = true
		entries = append(entries, formats.Entry{
			ID:       id,
			Text:     p.Value,
			Context:  strings.Join(p.Comments, "\n"),
			Metadata: map[string]any{commentsKey: p.Comments, keyKey: p.Key},
		})
	}
	return entries, nil
}

func (*Handler) Reconstruct(entries []formats.Entry, translations map[string]string, _ string) ([]byte, error) {
	pairs := make([]Pair, 0, len(entries))
	for _, e := range entries {
		comments, _ := e.Metadata[commentsKey].([]string)
		key, ok := e.Metadata[keyKey].(string)
		if !ok {
			key = e.ID
		}
		pairs = append(pairs, Pair{
			Key:      key,
			Value:    formats.Translated(translations, e.ID, e.Text),
			Comments: comments,
		})
	}
	return Marshal(pairs), nil
}
