package batcher

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used for token counting.
const DefaultEncoding = "cl100k_base"

// Tiktoken counts tokens with a BPE encoding.
type Tiktoken struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTiktoken loads the named encoding. Loading may need to fetch the BPE
// ranks over the network on first use; callers fall back to Heuristic when
// it fails.
func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", encoding, err)
	}
	return &Tiktoken{name: encoding, enc: enc}, nil
}

func (t *Tiktoken) Name() string { return t.name }

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Select returns the tokenizer for a configured name: "heuristic" (or "")
// selects Heuristic, anything else is loaded as a tiktoken encoding. The
// error is returned alongside the Heuristic fallback so callers can log it.
func Select(name string) (Tokenizer, error) {
	if name == "" || name == "heuristic" {
		return Heuristic{}, nil
	}
	t, err := NewTiktoken(name)
	if err != nil {
		return Heuristic{}, err
	}
	return t, nil
}
