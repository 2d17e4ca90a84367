package ibf

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	headerRe      = regexp.MustCompile(`^#TRANSLATED:v1:batch=(\d+)/(\d+):count=(\d+):status=(\w+)`)
	entryRe       = regexp.MustCompile(`^\[([^\]]+)\]\s*(.*)`)
	entrySearchRe = regexp.MustCompile(`\[([^\]]+)\]\s*(.*)`)
)

// ValidateFileFormat checks the shape of a reply without regard to which
// ids were requested. Empty entry texts are valid.
func ValidateFileFormat(content string) []Issue {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return []Issue{{
			Line:    1,
			Kind:    EmptyFile,
			Message: "File is empty",
			Fix:     "File must contain #TRANSLATED header, entries, and --- delimiter",
		}}
	}
	lines := strings.Split(trimmed, "\n")

	var issues []Issue
	hasHeader := strings.HasPrefix(lines[0], ResponsePrefix)
	switch {
	case !hasHeader:
		issues = append(issues, Issue{
			Line:    1,
			Kind:    MissingHeader,
			Message: fmt.Sprintf("Invalid header: '%s...'", truncate(lines[0], 50)),
			Fix:     "First line must be: #TRANSLATED:v1:batch=N/M:count=X:status=ok",
		})
	case !headerRe.MatchString(lines[0]):
		issues = append(issues, Issue{
			Line:    1,
			Kind:    InvalidHeader,
			Message: fmt.Sprintf("Header format incorrect: '%s'", lines[0]),
			Fix:     "Header must match: #TRANSLATED:v1:batch=N/M:count=X:status=ok",
		})
	}

	// delim is the 1-based line number of the first "---" line, 0 if none.
	delim := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == Delimiter {
			delim = i + 1
			break
		}
	}
	if delim == 0 {
		issues = append(issues, Issue{
			Line:    len(lines),
			Kind:    MissingDelimiter,
			Message: "Missing end delimiter '---'",
			Fix:     "File must end with a line containing only '---'",
		})
	}

	start := 0
	if hasHeader {
		start = 1
	}
	end := len(lines)
	if delim > 0 {
		end = delim - 1
	}
	for i := start; i < end; i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if entryRe.MatchString(line) || !looksLikeEntry(line) {
			continue
		}
		issues = append(issues, Issue{
			Line:    i + 1,
			Kind:    MalformedEntry,
			Message: fmt.Sprintf("Invalid entry format: '%s...'", truncate(line, 60)),
			Fix:     "Entries must be: [ID] translated text",
		})
	}

	if delim > 0 && delim < len(lines) {
		if strings.TrimSpace(strings.Join(lines[delim:], "\n")) != "" {
			issues = append(issues, Issue{
				Line:    delim + 1,
				Kind:    ExtraContent,
				Message: "Content found after '---' delimiter",
				Fix:     "Remove all content after the '---' delimiter",
			})
		}
	}

	return issues
}

// looksLikeEntry reports whether a non-matching line was probably meant
// to be an entry. Other stray lines are tolerated.
func looksLikeEntry(line string) bool {
	r, _ := utf8.DecodeRuneInString(line)
	return r == '[' || unicode.IsDigit(r)
}

// ExtractFromResponse salvages the reply block from surrounding chatter:
// from the first header (or, failing that, the first entry-looking text)
// up to and including the next line that is exactly "---". A "---" inside
// entry text does not end the block. Input without either is returned
// unchanged.
func ExtractFromResponse(raw string) string {
	start := strings.Index(raw, ResponsePrefix)
	if start < 0 {
		loc := entrySearchRe.FindStringIndex(raw)
		if loc == nil {
			return raw
		}
		start = loc[0]
	}
	rest := raw[start:]
	for off := 0; off < len(rest); {
		line, _, found := strings.Cut(rest[off:], "\n")
		if strings.TrimSpace(line) == Delimiter {
			return rest[:off] + Delimiter
		}
		if !found {
			break
		}
		off += len(line) + 1
	}
	return rest
}

// Decoded is a parsed reply.
type Decoded struct {
	Meta Metadata
	// HasHeader is false when Meta holds defaults.
	HasHeader bool
	Entries   []Entry
}

// IDs returns the decoded ids in reply order.
func (d Decoded) IDs() []string {
	ids := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Decode parses a reply. Lines that are not entries are skipped; run
// ValidateFileFormat first to report them. The returned error is always a
// *DecodeError.
func Decode(content string) (Decoded, error) {
	if !utf8.ValidString(content) {
		return Decoded{}, &DecodeError{Msg: "reply is not valid UTF-8"}
	}

	d := Decoded{Meta: DefaultMetadata()}
	lines := strings.Split(strings.TrimSpace(content), "\n")

	if m := headerRe.FindStringSubmatch(lines[0]); m != nil {
		var nums [3]int
		for i := range nums {
			n, err := strconv.Atoi(m[i+1])
			if err != nil {
				return Decoded{}, &DecodeError{Line: 1, Msg: fmt.Sprintf("header field %q: %v", m[i+1], err)}
			}
			nums[i] = n
		}
		d.Meta.BatchNum, d.Meta.TotalBatches, d.Meta.EntryCount = nums[0], nums[1], nums[2]
		d.Meta.Status = m[4]
		d.HasHeader = true
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == Delimiter || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "@") {
			continue
		}
		m := entryRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d.Entries = append(d.Entries, Entry{
			ID:   Unescape(strings.TrimSpace(m[1])),
			Text: Unescape(strings.TrimSpace(m[2])),
		})
	}
	return d, nil
}

// Validate compares a decoded reply with the ids that were requested.
// expectedBatch 0 skips the batch number check, expectedTotal 0 prints as
// "?", and a nil meta skips header checks. Ids compare as strings; empty
// texts are never reported.
func Validate(requested []string, entries []Entry, expectedBatch, expectedTotal int, meta *Metadata) []Issue {
	var issues []Issue

	if expectedBatch > 0 && meta != nil && meta.BatchNum != expectedBatch {
		total := "?"
		if expectedTotal > 0 {
			total = strconv.Itoa(expectedTotal)
		}
		issues = append(issues, Issue{
			Line:    1,
			Kind:    BatchMismatch,
			Message: fmt.Sprintf("Batch number mismatch: expected %d, got %d", expectedBatch, meta.BatchNum),
			Fix:     fmt.Sprintf("Header should have batch=%d/%s", expectedBatch, total),
		})
	}

	if len(requested) != len(entries) {
		issues = append(issues, Issue{
			Kind:    CountMismatch,
			Message: fmt.Sprintf("Entry count mismatch: expected %d, got %d", len(requested), len(entries)),
			Fix:     fmt.Sprintf("File must contain exactly %d entries with IDs: %s", len(requested), formatIDs(requested)),
		})
	}

	want := make(map[string]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}
	got := make(map[string]bool, len(entries))
	for _, e := range entries {
		got[e.ID] = true
	}

	if missing := difference(want, got); len(missing) > 0 {
		issues = append(issues, Issue{
			Kind:    MissingIDs,
			Message: "Missing entry IDs: " + formatIDs(missing),
			Fix:     "Add entries for IDs: " + formatIDs(missing),
			IDs:     missing,
		})
	}
	if extra := difference(got, want); len(extra) > 0 {
		issues = append(issues, Issue{
			Kind:    HallucinatedIDs,
			Message: "Extra/hallucinated entry IDs: " + formatIDs(extra),
			Fix:     "Remove entries with IDs: " + formatIDs(extra) + " - these were not requested",
			IDs:     extra,
		})
	}

	if meta != nil && meta.EntryCount != len(entries) {
		issues = append(issues, Issue{
			Line:    1,
			Kind:    HeaderCountMismatch,
			Message: fmt.Sprintf("Header declares count=%d but file has %d entries", meta.EntryCount, len(entries)),
			Fix:     fmt.Sprintf("Update header to count=%d or fix entry count", len(entries)),
		})
	}

	return issues
}

// difference returns the sorted keys of a that are not in b.
func difference(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if !b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
