// Package session drives a batched translation of one localization file.
//
// A session is created once from an input file, persisted as a JSON state
// file beside it, and then loaded again by every later invocation: fetch a
// batch as IBF text, submit the model's reply, inspect the status and
// finally write the translated file. Every mutation runs under an exclusive
// lock file and is rejected when the state on disk moved on since it was
// loaded.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yigitkonur/cli-localize/batcher"
	"github.com/yigitkonur/cli-localize/formats"
	"github.com/yigitkonur/cli-localize/ibf"
)

var (
	ErrInvalidBatch = errors.New("invalid batch number")
	ErrStaleState   = errors.New("session state changed on disk")
	ErrLocked       = errors.New("session is locked by another process")
	ErrSameLanguage = errors.New("source and target language are the same")
	ErrInputChanged = errors.New("input file changed since the session was created")
	ErrNoRegistry   = errors.New("no format registry configured")
	ErrUnsafeID     = errors.New("entry id cannot be carried in a batch")
)

// DefaultCommandName prefixes the commands suggested in responses.
const DefaultCommandName = "cli-localize"

// Recorder receives session activity. The metrics package implements it.
type Recorder interface {
	BatchFetched(format string)
	BatchSubmitted(format, outcome string)
	ValidationIssue(kind string)
	PlaceholderWarnings(format string, n int)
	Finalized(format string, translated, fallback int)
	Progress(sessionID string, completed, total int)
}

type nopRecorder struct{}

func (nopRecorder) BatchFetched(string)             {}
func (nopRecorder) BatchSubmitted(string, string)   {}
func (nopRecorder) ValidationIssue(string)          {}
func (nopRecorder) PlaceholderWarnings(string, int) {}
func (nopRecorder) Finalized(string, int, int)      {}
func (nopRecorder) Progress(string, int, int)       {}

// Options carries the collaborators of a session. Registry is required;
// everything else has a default.
type Options struct {
	Registry *formats.Registry
	Logger   *zap.Logger
	Metrics  Recorder
	// Tokenizer estimates batch sizes at creation. Defaults to the
	// heuristic estimator.
	Tokenizer   batcher.Tokenizer
	LockTimeout time.Duration
	StaleAfter  time.Duration
	Now         func() time.Time
	// CommandName prefixes suggested commands. Defaults to "cli-localize".
	CommandName string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = nopRecorder{}
	}
	if o.Tokenizer == nil {
		o.Tokenizer = batcher.Heuristic{}
	}
	if o.LockTimeout <= 0 {
		o.LockTimeout = DefaultLockTimeout
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.CommandName == "" {
		o.CommandName = DefaultCommandName
	}
	return o
}

// Params describes a session to create.
type Params struct {
	InputPath string
	// OutputPath defaults to "<tgt>_<name>" beside the input.
	OutputPath string
	// Format is a registry name, or "" / "auto" to detect it.
	Format       string
	SourceLang   string
	TargetLang   string
	ContextSize  int
	TargetTokens int
	// BatchSize selects fixed-size batching when positive.
	BatchSize int
}

// Session is one loaded translation session.
type Session struct {
	path    string
	state   *State
	handler formats.Handler
	entries []formats.Entry
	plans   []batcher.Plan
	store   *store
	opts    Options
	log     *zap.Logger
}

func newSession(path string, st *State, h formats.Handler, entries []formats.Entry, plans []batcher.Plan, opts Options) *Session {
	log := opts.Logger.With(zap.String("session", st.SessionID), zap.String("format", h.Name()))
	return &Session{
		path:    path,
		state:   st,
		handler: h,
		entries: entries,
		plans:   plans,
		opts:    opts,
		log:     log,
		store: &store{
			path:       path,
			timeout:    opts.LockTimeout,
			staleAfter: opts.StaleAfter,
			now:        opts.Now,
			log:        log,
			write:      writeAtomic,
		},
	}
}

// Create parses the input file, plans its batches and persists a new
// session as ".loc-<id>.json" beside the input.
func Create(p Params, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	if strings.EqualFold(strings.TrimSpace(p.SourceLang), strings.TrimSpace(p.TargetLang)) {
		return nil, fmt.Errorf("%w: %q", ErrSameLanguage, p.SourceLang)
	}

	input, err := filepath.Abs(p.InputPath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", p.InputPath, err)
	}
	content, err := os.ReadFile(input)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	h, err := opts.Registry.Resolve(p.Format, input, content)
	if err != nil {
		return nil, err
	}
	entries, err := h.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s as %s: %w", filepath.Base(input), h.Name(), err)
	}
	for _, e := range entries {
		if !ibf.ValidID(e.ID) {
			return nil, fmt.Errorf("%w: %q in %s (ids may not contain ']' or surrounding spaces)",
				ErrUnsafeID, e.ID, filepath.Base(input))
		}
	}

	b := batcher.New(p.TargetTokens, batcher.WithTokenizer(opts.Tokenizer))
	var plans []batcher.Plan
	if p.BatchSize > 0 {
		plans = b.CreateBatchesFixed(entries, p.BatchSize)
	} else {
		plans = b.CreateBatches(entries)
	}

	hash := contentHash(content)
	id := newSessionID(hash)
	dir := filepath.Dir(input)
	output := p.OutputPath
	if output == "" {
		output = filepath.Join(dir, p.TargetLang+"_"+filepath.Base(input))
	}
	if output, err = filepath.Abs(output); err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}

	now := timestamp(opts.Now())
	st := &State{
		SessionID:    id,
		InputFile:    input,
		OutputFile:   output,
		SrcLang:      p.SourceLang,
		TgtLang:      p.TargetLang,
		ContextSize:  max(p.ContextSize, 0),
		TotalEntries: len(entries),
		TotalBatches: len(plans),
		FormatType:   h.Name(),
		TargetTokens: b.TargetTokens(),
		BatchSize:    max(p.BatchSize, 0),
		Tokenizer:    b.TokenizerName(),
		InputHash:    hash,
		CurrentBatch: 1,
		Batches:      make(map[string]*BatchStatus, len(plans)),
		CreatedAt:    now,
		UpdatedAt:    now,
		Status:       Active,
	}
	for _, plan := range plans {
		st.Batches[strconv.Itoa(plan.Num)] = &BatchStatus{
			BatchNum:          plan.Num,
			Status:            Pending,
			TranslatedEntries: []ibf.Entry{},
			EstimatedTokens:   plan.EstimatedTokens,
			StartIdx:          plan.Start,
			EndIdx:            plan.End,
		}
	}

	s := newSession(StatePath(dir, id), st, h, entries, plans, opts)
	if err := s.store.update(st, func() error { return nil }); err != nil {
		return nil, err
	}
	s.log.Info("session created",
		zap.Int("entries", st.TotalEntries),
		zap.Int("batches", st.TotalBatches),
		zap.String("tokenizer", st.Tokenizer))
	s.opts.Metrics.Progress(id, 0, st.TotalBatches)
	return s, nil
}

// StatePath returns the state file path of session id in dir.
func StatePath(dir, id string) string {
	return filepath.Join(dir, ".loc-"+id+".json")
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// newSessionID combines four random hex digits with the first eight of
// the content hash.
func newSessionID(hash string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return random[:4] + "-" + hash[:8]
}

// Load reads a state file, re-parses the input it names and rebuilds the
// batch plans from the persisted ranges.
func Load(path string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if opts.Registry == nil {
		return nil, ErrNoRegistry
	}
	st, err := ReadState(path)
	if err != nil {
		return nil, err
	}
	h, err := opts.Registry.Get(st.FormatType)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(st.InputFile)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	entries, err := h.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s as %s: %w", filepath.Base(st.InputFile), h.Name(), err)
	}
	if len(entries) != st.TotalEntries {
		return nil, fmt.Errorf("%w: %s now has %d entries, session has %d",
			ErrInputChanged, st.InputFile, len(entries), st.TotalEntries)
	}
	if len(st.Batches) != st.TotalBatches {
		return nil, fmt.Errorf("session state %s: %d batch records for %d batches", path, len(st.Batches), st.TotalBatches)
	}
	plans, err := batcher.Restore(entries, st.Spans())
	if err != nil {
		return nil, fmt.Errorf("session state %s: %w", path, err)
	}

	s := newSession(path, st, h, entries, plans, opts)
	if hash := contentHash(content); st.InputHash != "" && hash != st.InputHash {
		s.log.Warn("input file content differs from session creation",
			zap.String("input", st.InputFile),
			zap.String("want_hash", st.InputHash),
			zap.String("got_hash", hash))
	}
	return s, nil
}

// FindLatest returns the most recently modified state file beside
// inputPath that belongs to it, or "" when there is none.
func FindLatest(inputPath string) (string, error) {
	input, err := filepath.Abs(inputPath)
	if err != nil {
		return "", err
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(input), ".loc-*.json"))
	if err != nil {
		return "", err
	}
	type candidate struct {
		path string
		mod  time.Time
	}
	var found []candidate
	for _, m := range matches {
		st, err := ReadState(m)
		if err != nil || st.InputFile != input {
			continue
		}
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		found = append(found, candidate{m, fi.ModTime()})
	}
	if len(found) == 0 {
		return "", nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].mod.After(found[j].mod) })
	return found[0].path, nil
}

// Path returns the state file path.
func (s *Session) Path() string { return s.path }

// ID returns the session identifier.
func (s *Session) ID() string { return s.state.SessionID }

// State returns the session state. Callers must not modify it.
func (s *Session) State() *State { return s.state }

// Handler returns the format handler of the input file.
func (s *Session) Handler() formats.Handler { return s.handler }

// Plans returns the batch plans.
func (s *Session) Plans() []batcher.Plan { return s.plans }

// Stats summarizes the batch plans.
func (s *Session) Stats() batcher.Stats { return batcher.ComputeStats(s.plans) }

func (s *Session) plan(n int) (batcher.Plan, error) {
	if n < 1 || n > len(s.plans) {
		return batcher.Plan{}, fmt.Errorf("%w: %d (session has %d batches)", ErrInvalidBatch, n, len(s.plans))
	}
	return s.plans[n-1], nil
}

func wire(entries []formats.Entry) []ibf.Entry {
	out := make([]ibf.Entry, len(entries))
	for i, e := range entries {
		out[i] = ibf.Entry{ID: e.ID, Text: e.Text}
	}
	return out
}

// contextWindow returns up to ContextSize entries on each side of p.
func (s *Session) contextWindow(p batcher.Plan) (before, after []ibf.Entry) {
	n := s.state.ContextSize
	if !s.handler.SupportsContext() || n <= 0 {
		return nil, nil
	}
	before = wire(s.entries[max(0, p.Start-n):p.Start])
	after = wire(s.entries[p.End:min(len(s.entries), p.End+n)])
	return before, after
}

// InitResponse describes the freshly created session.
func (s *Session) InitResponse() *InitResponse {
	stats := s.Stats()
	resp := &InitResponse{
		Status:      "ok",
		SessionID:   s.state.SessionID,
		SessionFile: s.path,
		Format:      s.handler.Name(),
		Stats: InitStats{
			TotalEntries:            s.state.TotalEntries,
			TotalBatches:            s.state.TotalBatches,
			EstimatedTokensPerBatch: stats.AvgTokensPerBatch,
			MinTokens:               stats.MinTokens,
			MaxTokens:               stats.MaxTokens,
			SourceLang:              s.state.SrcLang,
			TargetLang:              s.state.TgtLang,
		},
		Summary: fmt.Sprintf("Session created. %d entries split into %d batches. Run the next command to start.",
			s.state.TotalEntries, s.state.TotalBatches),
	}
	if s.state.TotalBatches > 0 {
		resp.NextAction = NextAction{
			Command:     s.BatchCommand(1),
			Description: fmt.Sprintf("Get batch 1 of %d for translation", s.state.TotalBatches),
		}
	} else {
		resp.NextAction = s.finalizeAction("")
	}
	return resp
}

// GetBatch encodes batch n as an IBF request, marks it in progress and
// counts the fetch as an attempt.
func (s *Session) GetBatch(n int) (string, error) {
	p, err := s.plan(n)
	if err != nil {
		return "", err
	}
	before, after := s.contextWindow(p)
	text := ibf.Encode(ibf.Request{
		SourceLang:    s.state.SrcLang,
		TargetLang:    s.state.TgtLang,
		BatchNum:      n,
		TotalBatches:  s.state.TotalBatches,
		ContextSize:   s.state.ContextSize,
		ContextBefore: before,
		Entries:       wire(p.Entries),
		ContextAfter:  after,
	})

	err = s.store.update(s.state, func() error {
		b := s.state.Batch(n)
		b.Status = InProgress
		b.Attempt++
		return nil
	})
	if err != nil {
		return "", err
	}
	s.log.Debug("batch fetched", zap.Int("batch", n), zap.Int("attempt", s.state.Batch(n).Attempt))
	s.opts.Metrics.BatchFetched(s.handler.Name())
	return text, nil
}

// Submit validates a reply to batch n. Rejected replies are reported in
// the response and mark the batch failed; the error is reserved for
// invalid batch numbers and persistence failures.
func (s *Session) Submit(n int, raw string) (*SubmitResponse, error) {
	p, err := s.plan(n)
	if err != nil {
		return nil, err
	}
	res := ibf.Check(raw, p.IDs(), n, s.state.TotalBatches)

	var (
		resp     *SubmitResponse
		warnings []ibf.Issue
	)
	err = s.store.update(s.state, func() error {
		b := s.state.Batch(n)
		switch res.Failure {
		case ibf.CategoryStructural:
			b.fail(fmt.Sprintf("Format validation failed: %d errors", len(res.Issues)))
			resp = s.rejected(n, res.Issues)
		case ibf.CategoryDecode:
			b.fail(fmt.Sprintf("Decode error: %v", res.Err))
			resp = s.undecodable(n, res.Err)
		case ibf.CategoryContent:
			b.fail(fmt.Sprintf("Content validation failed: %d errors", len(res.Issues)))
			resp = s.rejected(n, res.Issues)
		default:
			warnings = s.placeholderWarnings(p, res.Decoded.Entries)
			completed := timestamp(s.opts.Now())
			b.Status = Completed
			b.TranslatedEntries = append([]ibf.Entry{}, res.Decoded.Entries...)
			b.CompletedAt = &completed
			b.Error = nil
			if next := s.state.NextPending(); next != 0 {
				s.state.CurrentBatch = next
			} else {
				s.state.CurrentBatch = n
			}
			resp = s.accepted(n, warnings)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	format := s.handler.Name()
	if res.OK() {
		s.log.Info("batch completed", zap.Int("batch", n), zap.Int("entries", len(res.Decoded.Entries)))
		for _, w := range warnings {
			s.log.Warn("placeholder mismatch", zap.Int("batch", n), zap.String("detail", w.Message))
		}
		s.opts.Metrics.BatchSubmitted(format, "completed")
		s.opts.Metrics.PlaceholderWarnings(format, len(warnings))
	} else {
		s.log.Warn("batch rejected",
			zap.Int("batch", n),
			zap.String("category", string(res.Failure)),
			zap.Int("attempt", s.state.Batch(n).Attempt),
			zap.Int("issues", len(res.Issues)))
		s.opts.Metrics.BatchSubmitted(format, string(res.Failure))
		for _, is := range res.Issues {
			s.opts.Metrics.ValidationIssue(string(is.Kind))
		}
	}
	s.opts.Metrics.Progress(s.state.SessionID, s.state.CompletedCount(), s.state.TotalBatches)
	return resp, nil
}

// placeholderWarnings compares each source entry of p with the decoded
// entry of the same id.
func (s *Session) placeholderWarnings(p batcher.Plan, decoded []ibf.Entry) []ibf.Issue {
	byID := make(map[string]string, len(decoded))
	for _, e := range decoded {
		byID[e.ID] = e.Text
	}
	var out []ibf.Issue
	for _, src := range p.Entries {
		translated, ok := byID[src.ID]
		if !ok {
			continue
		}
		for _, msg := range s.handler.ValidatePlaceholders(src.Text, translated) {
			out = append(out, ibf.Issue{
				Kind:    ibf.PlaceholderMismatch,
				Message: fmt.Sprintf("[%s] %s", src.ID, msg),
				Fix:     "Ensure all placeholders from source appear in translation",
				IDs:     []string{src.ID},
			})
		}
	}
	return out
}

// Status reports progress and the next step. It does not modify the
// session.
func (s *Session) Status() *StatusResponse {
	resp := &StatusResponse{
		SessionID:        s.state.SessionID,
		Format:           s.state.FormatType,
		Status:           s.state.Status,
		ExhaustedBatches: []int{},
		BatchStatus:      make(map[string]BatchState, s.state.TotalBatches),
		StateFile:        s.path,
	}
	remaining := []int{}
	for i := 1; i <= s.state.TotalBatches; i++ {
		b := s.state.Batch(i)
		resp.BatchStatus[strconv.Itoa(i)] = b.Status
		if b.Status == Pending || b.Status == Failed {
			remaining = append(remaining, i)
		}
		if b.Exhausted() {
			resp.ExhaustedBatches = append(resp.ExhaustedBatches, i)
		}
	}
	completed := s.state.CompletedCount()
	resp.Progress = StatusProgress{
		Progress: Progress{
			Completed: completed,
			Total:     s.state.TotalBatches,
			Percent:   s.state.Percent(),
		},
		RemainingBatches: remaining,
	}

	if next := s.state.NextPending(); next != 0 {
		resp.NextAction = NextAction{
			Action:      ActionTranslate,
			Command:     s.BatchCommand(next),
			Description: fmt.Sprintf("Translate batch %d of %d", next, s.state.TotalBatches),
		}
	} else {
		resp.NextAction = s.finalizeAction(ActionFinalize)
	}

	resp.Summary = fmt.Sprintf("%d/%d batches complete. ", completed, s.state.TotalBatches)
	if len(remaining) > 0 {
		resp.Summary += fmt.Sprintf("%d remaining.", len(remaining))
	} else {
		resp.Summary += "Ready to finalize."
	}
	return resp
}

// Finalize rebuilds the file from every completed batch and writes it to
// the output path. Entries without a translation keep their source text.
func (s *Session) Finalize() (*FinalizeResponse, error) {
	translations := s.state.Translations()
	out, err := s.handler.Reconstruct(s.entries, translations, s.state.TgtLang)
	if err != nil {
		return nil, fmt.Errorf("reconstructing %s: %w", s.handler.Name(), err)
	}

	err = s.store.update(s.state, func() error {
		if err := writeAtomic(s.state.OutputFile, out); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		s.state.Status = Finished
		return nil
	})
	if err != nil {
		return nil, err
	}

	translated := 0
	seen := make(map[string]bool, len(s.entries))
	for _, e := range s.entries {
		if _, ok := translations[e.ID]; ok && !seen[e.ID] {
			translated++
		}
		seen[e.ID] = true
	}
	fallback := len(s.entries) - translated

	s.log.Info("session finalized",
		zap.String("output", s.state.OutputFile),
		zap.Int("translated", translated),
		zap.Int("fallback", fallback))
	s.opts.Metrics.Finalized(s.handler.Name(), translated, fallback)

	return &FinalizeResponse{
		Status:     "ok",
		OutputFile: s.state.OutputFile,
		Stats: FinalizeStats{
			TotalEntries: len(s.entries),
			Translated:   translated,
			Fallback:     fallback,
		},
		Progress: Progress{
			Completed: s.state.TotalBatches,
			Total:     s.state.TotalBatches,
			Percent:   100,
		},
		Summary: fmt.Sprintf("Translation complete! Output written to %s", filepath.Base(s.state.OutputFile)),
	}, nil
}
