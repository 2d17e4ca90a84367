// Package batcher groups an ordered entry sequence into contiguous batches
// whose estimated translated size approximates a token budget.
package batcher

import (
	"fmt"
	"unicode/utf8"

	"github.com/yigitkonur/cli-localize/formats"
)

const (
	// DefaultTargetTokens is the per-batch budget used when none is given.
	DefaultTargetTokens = 5000
	// DefaultBatchSize is the fixed batch size used without token estimation.
	DefaultBatchSize = 25

	// ExpansionFactor accounts for translations running longer than source.
	ExpansionFactor = 1.2
	// EntryOverhead is the per-entry wire cost (brackets, id, newline).
	EntryOverhead = 10
)

// Tokenizer counts tokens in a text.
type Tokenizer interface {
	Name() string
	Count(text string) int
}

// Heuristic approximates one token per four characters.
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

func (Heuristic) Count(text string) int { return utf8.RuneCountInString(text) / 4 }

// Plan is one batch: entries[Start:End] of the source sequence.
type Plan struct {
	Num             int
	Entries         []formats.Entry
	EstimatedTokens int
	Start           int
	End             int
}

// Span is the persisted shape of a Plan.
type Span struct {
	Num             int
	Start           int
	End             int
	EstimatedTokens int
}

// Span returns the persisted shape of p.
func (p Plan) Span() Span {
	return Span{Num: p.Num, Start: p.Start, End: p.End, EstimatedTokens: p.EstimatedTokens}
}

// IDs returns the ids of the planned entries in order.
func (p Plan) IDs() []string {
	ids := make([]string, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.ID
	}
	return ids
}

// Batcher creates batch plans.
type Batcher struct {
	targetTokens int
	tokenizer    Tokenizer
}

// Option configures a Batcher.
type Option func(*Batcher)

// WithTokenizer sets the tokenizer used by EstimateTokens. A nil tokenizer
// keeps the heuristic.
func WithTokenizer(t Tokenizer) Option {
	return func(b *Batcher) {
		if t != nil {
			b.tokenizer = t
		}
	}
}

// New returns a Batcher targeting targetTokens per batch. Non-positive
// values select DefaultTargetTokens.
func New(targetTokens int, opts ...Option) *Batcher {
	if targetTokens <= 0 {
		targetTokens = DefaultTargetTokens
	}
	b := &Batcher{targetTokens: targetTokens, tokenizer: Heuristic{}}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TargetTokens returns the per-batch budget.
func (b *Batcher) TargetTokens() int { return b.targetTokens }

// TokenizerName names the tokenizer in use.
func (b *Batcher) TokenizerName() string { return b.tokenizer.Name() }

// EstimateTokens estimates the translated size of text, including the
// expansion factor and per-entry overhead. A tokenizer that panics is
// replaced by the heuristic for that call.
func (b *Batcher) EstimateTokens(text string) int {
	return int(float64(b.count(text))*ExpansionFactor) + EntryOverhead
}

func (b *Batcher) count(text string) (n int) {
	defer func() {
		if recover() != nil {
			n = Heuristic{}.Count(text)
		}
	}()
	return b.tokenizer.Count(text)
}

// CreateBatches splits entries greedily: a batch is closed when adding the
// next entry would exceed the budget and the batch is not empty. Entries
// larger than the budget become singleton batches.
func (b *Batcher) CreateBatches(entries []formats.Entry) []Plan {
	var plans []Plan
	start, cur := 0, 0

	for i, e := range entries {
		tok := b.EstimateTokens(e.Text)
		if cur+tok > b.targetTokens && i > start {
			plans = append(plans, Plan{
				Num:             len(plans) + 1,
				Entries:         entries[start:i],
				EstimatedTokens: cur,
				Start:           start,
				End:             i,
			})
			start, cur = i, 0
		}
		cur += tok
	}
	if start < len(entries) {
		plans = append(plans, Plan{
			Num:             len(plans) + 1,
			Entries:         entries[start:],
			EstimatedTokens: cur,
			Start:           start,
			End:             len(entries),
		})
	}
	return plans
}

// CreateBatchesFixed chunks entries into groups of size, regardless of
// their estimated size. Non-positive sizes select DefaultBatchSize.
func (b *Batcher) CreateBatchesFixed(entries []formats.Entry, size int) []Plan {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var plans []Plan
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		plans = append(plans, Plan{
			Num:             len(plans) + 1,
			Entries:         entries[start:end],
			EstimatedTokens: b.sum(entries[start:end]),
			Start:           start,
			End:             end,
		})
	}
	return plans
}

func (b *Batcher) sum(entries []formats.Entry) int {
	total := 0
	for _, e := range entries {
		total += b.EstimateTokens(e.Text)
	}
	return total
}

// Restore rebuilds plans from persisted spans. The spans must be numbered
// 1..N in order and cover entries contiguously, exactly once.
func Restore(entries []formats.Entry, spans []Span) ([]Plan, error) {
	plans := make([]Plan, len(spans))
	next := 0
	for i, s := range spans {
		if s.Num != i+1 {
			return nil, fmt.Errorf("batch %d: expected number %d", s.Num, i+1)
		}
		if s.Start != next || s.End <= s.Start || s.End > len(entries) {
			return nil, fmt.Errorf("batch %d: range [%d,%d) does not continue at %d within %d entries",
				s.Num, s.Start, s.End, next, len(entries))
		}
		plans[i] = Plan{
			Num:             s.Num,
			Entries:         entries[s.Start:s.End],
			EstimatedTokens: s.EstimatedTokens,
			Start:           s.Start,
			End:             s.End,
		}
		next = s.End
	}
	if next != len(entries) {
		return nil, fmt.Errorf("batches cover %d of %d entries", next, len(entries))
	}
	return plans, nil
}

// Stats summarizes a set of plans.
type Stats struct {
	TotalBatches         int `json:"total_batches"`
	TotalEntries         int `json:"total_entries"`
	TotalEstimatedTokens int `json:"total_estimated_tokens"`
	AvgTokensPerBatch    int `json:"avg_tokens_per_batch"`
	MinTokens            int `json:"min_tokens"`
	MaxTokens            int `json:"max_tokens"`
}

// ComputeStats summarizes plans. All fields are zero for no plans.
func ComputeStats(plans []Plan) Stats {
	var s Stats
	if len(plans) == 0 {
		return s
	}
	s.TotalBatches = len(plans)
	s.MinTokens = plans[0].EstimatedTokens
	s.MaxTokens = plans[0].EstimatedTokens
	for _, p := range plans {
		s.TotalEntries += len(p.Entries)
		s.TotalEstimatedTokens += p.EstimatedTokens
		s.MinTokens = min(s.MinTokens, p.EstimatedTokens)
		s.MaxTokens = max(s.MaxTokens, p.EstimatedTokens)
	}
	s.AvgTokensPerBatch = s.TotalEstimatedTokens / s.TotalBatches
	return s
}
