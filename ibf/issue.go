package ibf

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind names one class of problem found in a reply.
type ErrorKind string

// Structural problems, found without knowing which ids were requested.
const (
	EmptyFile        ErrorKind = "EMPTY_FILE"
	MissingHeader    ErrorKind = "MISSING_HEADER"
	InvalidHeader    ErrorKind = "INVALID_HEADER"
	MissingDelimiter ErrorKind = "MISSING_DELIMITER"
	MalformedEntry   ErrorKind = "MALFORMED_ENTRY"
	ExtraContent     ErrorKind = "EXTRA_CONTENT"
)

// Content problems, found by comparing a decoded reply with its request.
const (
	BatchMismatch       ErrorKind = "BATCH_MISMATCH"
	CountMismatch       ErrorKind = "COUNT_MISMATCH"
	MissingIDs          ErrorKind = "MISSING_IDS"
	HallucinatedIDs     ErrorKind = "HALLUCINATED_IDS"
	HeaderCountMismatch ErrorKind = "HEADER_COUNT_MISMATCH"
)

const (
	DecodeFailure       ErrorKind = "DECODE_ERROR"
	PlaceholderMismatch ErrorKind = "PLACEHOLDER_MISMATCH"
)

// Category groups error kinds by how a caller should react to them.
type Category string

const (
	CategoryStructural  Category = "structural"
	CategoryDecode      Category = "decode"
	CategoryContent     Category = "content"
	CategoryPlaceholder Category = "placeholder"
)

// Category reports the group k belongs to.
func (k ErrorKind) Category() Category {
	switch k {
	case DecodeFailure:
		return CategoryDecode
	case PlaceholderMismatch:
		return CategoryPlaceholder
	case BatchMismatch, CountMismatch, MissingIDs, HallucinatedIDs, HeaderCountMismatch:
		return CategoryContent
	default:
		return CategoryStructural
	}
}

// Issue is one line-numbered, machine-actionable problem report. Line 0
// means the problem concerns the reply as a whole.
type Issue struct {
	Line    int       `json:"line"`
	Kind    ErrorKind `json:"type"`
	Message string    `json:"message"`
	Fix     string    `json:"fix"`
	IDs     []string  `json:"ids,omitempty"`
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("line %d: %s: %s", i.Line, i.Kind, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Kind, i.Message)
}

// DecodeError reports a reply that passed structural validation but could
// not be decoded.
type DecodeError struct {
	Line int
	Msg  string
}

func (e *DecodeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("decode: line %d: %s", e.Line, e.Msg)
	}
	return "decode: " + e.Msg
}

// formatIDs renders ids as ["a", "b"].
func formatIDs(ids []string) string {
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
