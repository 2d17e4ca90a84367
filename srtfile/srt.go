// Package srtfile implements reading and writing of SubRip (.srt) subtitle
// files.
//
// A cue is a sequence number, a timing line and one or more text lines:
//
//	1
//	00:00:00,160 --> 00:00:05,120
//	First subtitle text
//	can be multi-line
//
// Blank lines inside cue text (poetry, dramatic pauses) are kept: a blank
// line only ends a cue when the next non-blank line is a number followed by
// a timing line.
package srtfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const arrow = " --> "

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// Cue is a single subtitle block.
type Cue struct {
	Index int
	Start string
	End   string
	Text  string
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// ParseFile reads and parses an SRT file from disk.
func ParseFile(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses SRT content. Blocks without a numeric index or a timing
// line are skipped, as are cues without text.
func Parse(data []byte) ([]Cue, error) {
	content := strings.TrimPrefix(string(data), "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	var cues []Cue
	i := 0
	for i < len(lines) {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) {
			break
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[i]))
		if err != nil {
			i++
			continue
		}
		i++
		if i >= len(lines) {
			break
		}

		timing := strings.TrimSpace(lines[i])
		if !strings.Contains(timing, arrow) {
			// Re-examine this line as a possible sequence number.
			continue
		}
		parts := strings.Split(timing, arrow)
		if len(parts) != 2 {
			i++
			continue
		}
		i++

		var text []string
		for ; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "" {
				if startsCue(lines, i+1) {
					break
				}
				text = append(text, "")
				continue
			}
			text = append(text, lines[i])
		}
		for len(text) > 0 && text[len(text)-1] == "" {
			text = text[:len(text)-1]
		}

		if len(text) == 0 {
			continue
		}
		cues = append(cues, Cue{
			Index: index,
			Start: strings.TrimSpace(parts[0]),
			End:   strings.TrimSpace(parts[1]),
			Text:  strings.Join(text, "\n"),
		})
	}
	return cues, nil
}

// startsCue reports whether the first non-blank line at or after i is a
// sequence number directly followed by a timing line.
func startsCue(lines []string, i int) bool {
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i+1 >= len(lines) || !isDigits(strings.TrimSpace(lines[i])) {
		return false
	}
	return strings.Contains(strings.TrimSpace(lines[i+1]), arrow)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal renders cues as SRT blocks separated by blank lines.
func Marshal(cues []Cue) []byte {
	blocks := make([]string, len(cues))
	for i, c := range cues {
		blocks[i] = fmt.Sprintf("%d\n%s%s%s\n%s\n", c.Index, c.Start, arrow, c.End, c.Text)
	}
	return []byte(strings.Join(blocks, "\n"))
}
