package srtfile

import (
	"strconv"

	"github.com/yigitkonur/cli-localize/formats"
)

const (
	metaIndex = "index"
	metaStart = "start_time"
	metaEnd   = "end_time"
)

// Handler adapts SRT files to the formats.Handler interface. Entry ids are
// cue indices; repeated indices get a "-N" suffix to stay unique.
type Handler struct {
	formats.Placeholders
}

// New returns an SRT handler. Subtitles carry no placeholders.
func New() *Handler { return &Handler{} }

func (*Handler) Name() string          { return "srt" }
func (*Handler) Extensions() []string  { return []string{"srt"} }
func (*Handler) SupportsContext() bool { return true }

func (*Handler) Parse(content []byte) ([]formats.Entry, error) {
	cues, err := Parse(content)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]int, len(cues))
	entries := make([]formats.Entry, len(cues))
	for i, c := range cues {
		id := strconv.Itoa(c.Index)
		if n := seen[id]; n > 0 {
			seen[id] = n + 1
			id += "-" + strconv.Itoa(n+1)
		} else {
			seen[id] = 1
		}
		entries[i] = formats.Entry{
			ID:   id,
			Text: c.Text,
			Metadata: map[string]any{
				metaIndex: c.Index,
				metaStart: c.Start,
				metaEnd:   c.End,
			},
		}
	}
	return entries, nil
}

func (*Handler) Reconstruct(entries []formats.Entry, translations map[string]string, _ string) ([]byte, error) {
	cues := make([]Cue, len(entries))
	for i, e := range entries {
		c := Cue{
			Start: "00:00:00,000",
			End:   "00:00:01,000",
			Text:  formats.Translated(translations, e.ID, e.Text),
		}
		if idx, ok := e.Metadata[metaIndex].(int); ok {
			c.Index = idx
		} else {
			c.Index, _ = strconv.Atoi(e.ID)
		}
		if s, ok := e.Metadata[metaStart].(string); ok {
			c.Start = s
		}
		if s, ok := e.Metadata[metaEnd].(string); ok {
			c.End = s
		}
		cues[i] = c
	}
	return Marshal(cues), nil
}
