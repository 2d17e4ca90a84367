// Package ibf implements the Indexed Block Format, a line-oriented text
// protocol for exchanging translation batches with a language model.
//
// A request looks like:
//
//	#TRANSLATE:v1:en>tr:batch=2/10:entries=3:ctx=10
//	@context_before
//	[47] Welcome to the show.
//	@translate
//	[50] Hello, how are you?
//	[51] I'm doing great!
//	[52] Let's get started.
//	@context_after
//	[53] First, let me explain...
//	---
//
// and the expected reply:
//
//	#TRANSLATED:v1:batch=2/10:count=3:status=ok
//	[50] Merhaba, nasılsın?
//	[51] Çok iyiyim!
//	[52] Hadi başlayalım.
//	---
//
// Every record occupies exactly one physical line: newlines inside ids and
// texts travel as the two characters `\n`.
package ibf

import (
	"fmt"
	"strings"
)

// Literal protocol tokens.
const (
	Version          = "v1"
	RequestPrefix    = "#TRANSLATE:"
	ResponsePrefix   = "#TRANSLATED:"
	SectionBefore    = "@context_before"
	SectionTranslate = "@translate"
	SectionAfter     = "@context_after"
	Delimiter        = "---"
)

// Entry is the id/text pair exchanged over the wire.
type Entry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Metadata is the information carried by a header line.
type Metadata struct {
	Version      string
	SourceLang   string
	TargetLang   string
	BatchNum     int
	TotalBatches int
	EntryCount   int
	ContextSize  int
	Status       string
}

// DefaultMetadata is what Decode reports when a reply has no usable header.
func DefaultMetadata() Metadata {
	return Metadata{
		Version:      Version,
		SourceLang:   "en",
		TargetLang:   "tr",
		BatchNum:     1,
		TotalBatches: 1,
		ContextSize:  10,
		Status:       "ok",
	}
}

// Request is one batch to be encoded.
type Request struct {
	SourceLang    string
	TargetLang    string
	BatchNum      int
	TotalBatches  int
	ContextSize   int
	ContextBefore []Entry
	Entries       []Entry
	ContextAfter  []Entry
}

// Header returns the request header line.
func (r Request) Header() string {
	return fmt.Sprintf("%s%s:%s>%s:batch=%d/%d:entries=%d:ctx=%d",
		RequestPrefix, Version, r.SourceLang, r.TargetLang,
		r.BatchNum, r.TotalBatches, len(r.Entries), r.ContextSize)
}

// Encode serializes r. Context sections are written only when non-empty.
func Encode(r Request) string {
	lines := make([]string, 0, len(r.ContextBefore)+len(r.Entries)+len(r.ContextAfter)+5)
	lines = append(lines, r.Header())

	if len(r.ContextBefore) > 0 {
		lines = append(lines, SectionBefore)
		for _, e := range r.ContextBefore {
			lines = append(lines, FormatEntry(e))
		}
	}

	lines = append(lines, SectionTranslate)
	for _, e := range r.Entries {
		lines = append(lines, FormatEntry(e))
	}

	if len(r.ContextAfter) > 0 {
		lines = append(lines, SectionAfter)
		for _, e := range r.ContextAfter {
			lines = append(lines, FormatEntry(e))
		}
	}

	lines = append(lines, Delimiter)
	return strings.Join(lines, "\n")
}

// FormatEntry renders a single record as "[id] text".
func FormatEntry(e Entry) string {
	return "[" + Escape(e.ID) + "] " + Escape(e.Text)
}

// ValidID reports whether id survives an encode/decode round trip. Ids may
// not contain ']' or the two characters `\n`, and may not carry leading or
// trailing whitespace, since Decode trims both ends.
func ValidID(id string) bool {
	return id != "" &&
		id == strings.TrimSpace(id) &&
		!strings.Contains(id, "]") &&
		!strings.Contains(id, `\n`)
}

// Escape replaces newlines with the two characters `\n`. Nothing else is
// escaped.
func Escape(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}

// Unescape reverses Escape.
func Unescape(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
