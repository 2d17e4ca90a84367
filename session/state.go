package session

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/yigitkonur/cli-localize/batcher"
	"github.com/yigitkonur/cli-localize/ibf"
)

// MaxAttempts bounds how often a batch is handed out before it leaves the
// pending pool.
const MaxAttempts = 3

// BatchState is the lifecycle state of one batch.
type BatchState string

const (
	Pending    BatchState = "pending"
	InProgress BatchState = "in_progress"
	Completed  BatchState = "completed"
	Failed     BatchState = "failed"
)

// Lifecycle is the state of the whole session.
type Lifecycle string

const (
	Active   Lifecycle = "active"
	Finished Lifecycle = "completed"
)

// BatchStatus is the persisted lifecycle record of one batch.
type BatchStatus struct {
	BatchNum          int         `json:"batch_num"`
	Status            BatchState  `json:"status"`
	Attempt           int         `json:"attempt"`
	TranslatedEntries []ibf.Entry `json:"translated_entries"`
	Error             *string     `json:"error"`
	CompletedAt       *string     `json:"completed_at"`
	EstimatedTokens   int         `json:"estimated_tokens"`
	StartIdx          int         `json:"start_idx"`
	EndIdx            int         `json:"end_idx"`
}

// Exhausted reports whether the batch failed and may not be retried.
func (b *BatchStatus) Exhausted() bool {
	return b.Status == Failed && b.Attempt >= MaxAttempts
}

func (b *BatchStatus) retryable() bool {
	return (b.Status == Pending || b.Status == Failed) && b.Attempt < MaxAttempts
}

func (b *BatchStatus) fail(msg string) {
	b.Status = Failed
	b.Error = &msg
}

// State is the persisted session record. Batches are keyed by their
// number rendered as a decimal string ("1".."N").
type State struct {
	SessionID    string                  `json:"session_id"`
	InputFile    string                  `json:"input_file"`
	OutputFile   string                  `json:"output_file"`
	SrcLang      string                  `json:"src_lang"`
	TgtLang      string                  `json:"tgt_lang"`
	ContextSize  int                     `json:"context_size"`
	TotalEntries int                     `json:"total_entries"`
	TotalBatches int                     `json:"total_batches"`
	FormatType   string                  `json:"format_type"`
	TargetTokens int                     `json:"target_tokens"`
	BatchSize    int                     `json:"batch_size"`
	Tokenizer    string                  `json:"tokenizer"`
	InputHash    string                  `json:"input_hash"`
	CurrentBatch int                     `json:"current_batch"`
	Batches      map[string]*BatchStatus `json:"batches"`
	CreatedAt    string                  `json:"created_at"`
	UpdatedAt    string                  `json:"updated_at"`
	Status       Lifecycle               `json:"status"`
	Revision     int                     `json:"revision"`
}

// Batch returns the status of batch n, or nil.
func (s *State) Batch(n int) *BatchStatus {
	return s.Batches[strconv.Itoa(n)]
}

// CompletedCount counts completed batches.
func (s *State) CompletedCount() int {
	n := 0
	for _, b := range s.Batches {
		if b.Status == Completed {
			n++
		}
	}
	return n
}

// NextPending returns the lowest-numbered batch that is pending or failed
// with attempts left, or 0 when there is none.
func (s *State) NextPending() int {
	for i := 1; i <= s.TotalBatches; i++ {
		if b := s.Batch(i); b != nil && b.retryable() {
			return i
		}
	}
	return 0
}

// Percent returns completed/total as a percentage rounded to one decimal.
func (s *State) Percent() float64 {
	return percent(s.CompletedCount(), s.TotalBatches)
}

func percent(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

// Spans returns the persisted batch ranges ordered by batch number.
func (s *State) Spans() []batcher.Span {
	spans := make([]batcher.Span, 0, len(s.Batches))
	for _, b := range s.Batches {
		spans = append(spans, batcher.Span{
			Num:             b.BatchNum,
			Start:           b.StartIdx,
			End:             b.EndIdx,
			EstimatedTokens: b.EstimatedTokens,
		})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Num < spans[j].Num })
	return spans
}

// Translations merges the stored pairs of every completed batch in batch
// order. An id already present is not overridden.
func (s *State) Translations() map[string]string {
	out := make(map[string]string)
	for i := 1; i <= s.TotalBatches; i++ {
		b := s.Batch(i)
		if b == nil || b.Status != Completed {
			continue
		}
		for _, e := range b.TranslatedEntries {
			if _, ok := out[e.ID]; !ok {
				out[e.ID] = e.Text
			}
		}
	}
	return out
}

func timestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000")
}

// ReadState reads and decodes a state file.
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session state: %w", err)
	}
	st, err := decodeState(data)
	if err != nil {
		return nil, fmt.Errorf("parsing session state %s: %w", path, err)
	}
	return st, nil
}

func decodeState(data []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.Batches == nil {
		st.Batches = make(map[string]*BatchStatus)
	}
	for key, b := range st.Batches {
		if b == nil {
			return nil, fmt.Errorf("batch %s is null", key)
		}
		if key != strconv.Itoa(b.BatchNum) {
			return nil, fmt.Errorf("batch %s records number %d", key, b.BatchNum)
		}
		if b.TranslatedEntries == nil {
			b.TranslatedEntries = []ibf.Entry{}
		}
	}
	return &st, nil
}

func (s *State) marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding session state: %w", err)
	}
	return append(data, '\n'), nil
}
