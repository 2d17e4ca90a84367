// Package formats defines the contract between the translation session and
// the localization file formats it can read and write.
//
// A Handler turns a file into an ordered list of translatable entries and,
// given a translation map, rebuilds the file in the same format. Handlers
// are stateless: anything needed to rebuild the original document travels
// with the entries themselves (see DocumentKey).
package formats

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/yigitkonur/cli-localize/ibf"
)

// DocumentKey is the Entry.Metadata key under which handlers that rebuild
// from a parsed source tree keep that tree. Every entry of one Parse call
// shares the same document value. Reconstruct must treat it as read-only.
const DocumentKey = "document"

// Entry is one translatable unit of a localization file.
type Entry struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Context  string         `json:"context,omitempty"`
	Metadata map[string]any `json:"-"`
}

// Handler reads and writes one localization file format.
type Handler interface {
	// Name is the registry name of the format (e.g. "srt", "po").
	Name() string
	// Extensions lists file extensions without the leading dot.
	Extensions() []string
	// SupportsContext reports whether surrounding entries help the
	// translator (true for subtitles, false for key/value catalogs).
	SupportsContext() bool
	Parse(content []byte) ([]Entry, error)
	// Reconstruct rebuilds the file with translations applied. Entries
	// missing from translations keep a format-specific fallback value.
	Reconstruct(entries []Entry, translations map[string]string, targetLang string) ([]byte, error)
	// ValidatePlaceholders returns one message per placeholder present in
	// source but missing from translation.
	ValidatePlaceholders(source, translation string) []string
}

// Info is the public description of a registered handler.
type Info struct {
	Name            string   `json:"name"`
	Extensions      []string `json:"extensions"`
	SupportsContext bool     `json:"supports_context"`
}

// Document returns the shared document stored on entries, or nil.
func Document(entries []Entry) any {
	for _, e := range entries {
		if d, ok := e.Metadata[DocumentKey]; ok {
			return d
		}
	}
	return nil
}

// Translated returns the translation for id or fallback when none exists.
func Translated(translations map[string]string, id, fallback string) string {
	if t, ok := translations[id]; ok {
		return t
	}
	return fallback
}

// WireID returns key when it can travel as an IBF id, or a stable
// "msg-<hash>" substitute otherwise. Catalogs keyed by source text (PO
// msgids, Apple .strings keys) use it so that keys such as "Name: " or
// "[Error] failed" stay addressable.
func WireID(key string) string {
	if ibf.ValidID(key) {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	return "msg-" + hex.EncodeToString(sum[:6])
}
