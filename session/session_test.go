package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yigitkonur/cli-localize/builtin"
	"github.com/yigitkonur/cli-localize/ibf"
)

const messagesJSON = `{
  "greeting": "Hello {{name}}",
  "nav": {
    "home": "Home",
    "about": "About"
  }
}
`

func testOptions() Options {
	return Options{Registry: builtin.Formats(), LockTimeout: 200 * time.Millisecond}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newJSONSession creates a two-batch session: [greeting, nav.home] and
// [nav.about].
func newJSONSession(t *testing.T, opts Options) (*Session, string) {
	t.Helper()
	input := writeFile(t, t.TempDir(), "messages.json", messagesJSON)
	s, err := Create(Params{
		InputPath:   input,
		SourceLang:  "en",
		TargetLang:  "tr",
		ContextSize: 2,
		BatchSize:   2,
	}, opts)
	require.NoError(t, err)
	return s, input
}

func reply(batch, total int, pairs ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#TRANSLATED:v1:batch=%d/%d:count=%d:status=ok\n", batch, total, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&b, "[%s] %s\n", pairs[i], pairs[i+1])
	}
	b.WriteString("---")
	return b.String()
}

func TestCreate(t *testing.T) {
	s, input := newJSONSession(t, testOptions())
	dir := filepath.Dir(input)

	st := s.State()
	assert.Equal(t, "json", st.FormatType)
	assert.Equal(t, 3, st.TotalEntries)
	assert.Equal(t, 2, st.TotalBatches)
	assert.Equal(t, 1, st.CurrentBatch)
	assert.Equal(t, 1, st.Revision)
	assert.Equal(t, Active, st.Status)
	assert.Equal(t, "heuristic", st.Tokenizer)
	assert.Equal(t, filepath.Join(dir, "tr_messages.json"), st.OutputFile)
	assert.Len(t, st.InputHash, 64)
	assert.Regexp(t, `^[0-9a-f]{4}-[0-9a-f]{8}$`, st.SessionID)
	assert.Equal(t, st.InputHash[:8], st.SessionID[5:])
	assert.Equal(t, StatePath(dir, st.SessionID), s.Path())

	b1, b2 := st.Batch(1), st.Batch(2)
	require.NotNil(t, b1)
	require.NotNil(t, b2)
	assert.Equal(t, Pending, b1.Status)
	assert.Equal(t, 0, b1.Attempt)
	assert.Equal(t, [2]int{0, 2}, [2]int{b1.StartIdx, b1.EndIdx})
	assert.Equal(t, [2]int{2, 3}, [2]int{b2.StartIdx, b2.EndIdx})

	onDisk, err := ReadState(s.Path())
	require.NoError(t, err)
	assert.Equal(t, st.SessionID, onDisk.SessionID)
	assert.Equal(t, 1, onDisk.Revision)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"batches": {`)
	assert.Contains(t, string(raw), `"translated_entries": []`)
	assert.Contains(t, string(raw), `"error": null`)
}

func TestCreate_Errors(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "messages.json", messagesJSON)

	_, err := Create(Params{InputPath: input, SourceLang: "en", TargetLang: "EN"}, testOptions())
	assert.ErrorIs(t, err, ErrSameLanguage)

	_, err = Create(Params{InputPath: input, SourceLang: "en", TargetLang: "tr"}, Options{})
	assert.ErrorIs(t, err, ErrNoRegistry)

	_, err = Create(Params{InputPath: filepath.Join(dir, "missing.json"), SourceLang: "en", TargetLang: "tr"}, testOptions())
	assert.Error(t, err)

	odd := writeFile(t, dir, "notes.txt", "hello")
	_, err = Create(Params{InputPath: odd, SourceLang: "en", TargetLang: "tr"}, testOptions())
	assert.Error(t, err)
}

func TestInitResponse(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())
	resp := s.InitResponse()

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "json", resp.Format)
	assert.Equal(t, 3, resp.Stats.TotalEntries)
	assert.Equal(t, 2, resp.Stats.TotalBatches)
	assert.Equal(t, "tr", resp.Stats.TargetLang)
	assert.Equal(t, "cli-localize batch --session "+s.Path()+" --batch 1", resp.NextAction.Command)
	assert.Equal(t, "Session created. 3 entries split into 2 batches. Run the next command to start.", resp.Summary)
}

func TestGetBatch(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())

	text, err := s.GetBatch(1)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"#TRANSLATE:v1:en>tr:batch=1/2:entries=2:ctx=2",
		"@translate",
		"[greeting] Hello {{name}}",
		"[nav.home] Home",
		"---",
	}, "\n"), text)

	b := s.State().Batch(1)
	assert.Equal(t, InProgress, b.Status)
	assert.Equal(t, 1, b.Attempt)

	// Every fetch counts as an attempt.
	_, err = s.GetBatch(1)
	require.NoError(t, err)

	onDisk, err := ReadState(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, onDisk.Batch(1).Attempt)
	assert.Equal(t, 3, onDisk.Revision)

	for _, n := range []int{0, 3, -1} {
		_, err := s.GetBatch(n)
		assert.ErrorIs(t, err, ErrInvalidBatch, "batch %d", n)
	}
	_, err = s.Submit(5, "")
	assert.ErrorIs(t, err, ErrInvalidBatch)
}

func TestGetBatch_ContextWindow(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:02,000\nOne\n\n" +
		"2\n00:00:03,000 --> 00:00:04,000\nTwo\n\n" +
		"3\n00:00:05,000 --> 00:00:06,000\nThree\n"
	input := writeFile(t, t.TempDir(), "movie.srt", srt)
	s, err := Create(Params{InputPath: input, SourceLang: "en", TargetLang: "de", ContextSize: 1, BatchSize: 1}, testOptions())
	require.NoError(t, err)
	require.Equal(t, 3, s.State().TotalBatches)

	text, err := s.GetBatch(2)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"#TRANSLATE:v1:en>de:batch=2/3:entries=1:ctx=1",
		"@context_before",
		"[1] One",
		"@translate",
		"[2] Two",
		"@context_after",
		"[3] Three",
		"---",
	}, "\n"), text)

	first, err := s.GetBatch(1)
	require.NoError(t, err)
	assert.NotContains(t, first, ibf.SectionBefore)
	assert.Contains(t, first, ibf.SectionAfter)
}

func TestSubmit_Accepted(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())
	_, err := s.GetBatch(1)
	require.NoError(t, err)

	resp, err := s.Submit(1, reply(1, 2, "greeting", "Merhaba {{name}}", "nav.home", "Ana sayfa"))
	require.NoError(t, err)
	require.True(t, resp.OK(), "%+v", resp)
	assert.Equal(t, 2, resp.NextBatch)
	assert.Equal(t, ActionContinue, resp.NextAction.Action)
	assert.Equal(t, s.BatchCommand(2), resp.NextAction.Command)
	assert.Equal(t, "Translate batch 2 of 2", resp.NextAction.Description)
	assert.Equal(t, "1/2 batches complete (50.0%). Continue with batch 2.", resp.Summary)
	assert.Empty(t, resp.Warnings)

	loaded, err := Load(s.Path(), testOptions())
	require.NoError(t, err)
	b := loaded.State().Batch(1)
	assert.Equal(t, Completed, b.Status)
	assert.Nil(t, b.Error)
	require.NotNil(t, b.CompletedAt)
	assert.Equal(t, []ibf.Entry{{ID: "greeting", Text: "Merhaba {{name}}"}, {ID: "nav.home", Text: "Ana sayfa"}}, b.TranslatedEntries)
	assert.Equal(t, 2, loaded.State().CurrentBatch)

	_, err = loaded.GetBatch(2)
	require.NoError(t, err)
	resp, err = loaded.Submit(2, reply(2, 2, "nav.about", "Hakkında"))
	require.NoError(t, err)
	require.True(t, resp.OK())
	assert.Equal(t, ActionFinalize, resp.NextAction.Action)
	assert.Equal(t, loaded.FinalizeCommand(), resp.NextAction.Command)
	assert.Equal(t, "All 2 batches complete! Ready to generate output file.", resp.Summary)
	assert.Zero(t, resp.NextBatch)
}

func TestSubmit_HallucinatedID(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())
	_, err := s.GetBatch(1)
	require.NoError(t, err)

	resp, err := s.Submit(1, reply(1, 2,
		"greeting", "Merhaba {{name}}",
		"nav.home", "Ana sayfa",
		"99", "Uydurma"))
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, ActionRetry, resp.NextAction.Action)
	assert.Equal(t, 1, resp.Attempt)
	assert.Equal(t, MaxAttempts, resp.MaxAttempts)

	var hallucinated *ibf.Issue
	for i := range resp.ValidationErrors {
		if resp.ValidationErrors[i].Kind == ibf.HallucinatedIDs {
			hallucinated = &resp.ValidationErrors[i]
		}
	}
	require.NotNil(t, hallucinated, "%+v", resp.ValidationErrors)
	assert.Equal(t, []string{"99"}, hallucinated.IDs)

	b := s.State().Batch(1)
	assert.Equal(t, Failed, b.Status)
	assert.Equal(t, 1, b.Attempt)
	require.NotNil(t, b.Error)
	assert.Contains(t, *b.Error, "Content validation failed")
}

func TestSubmit_StructuralAndDecodeFailures(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())
	_, err := s.GetBatch(1)
	require.NoError(t, err)

	resp, err := s.Submit(1, "Sure! Here is the translation.")
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotEmpty(t, resp.ValidationErrors)
	assert.Equal(t, "Batch 1 validation failed (attempt 1/3). Fix errors and retry.", resp.Summary)
	assert.Contains(t, *s.State().Batch(1).Error, "Format validation failed")

	resp, err = s.Submit(1, "#TRANSLATED:v1:batch=1/2:count=2:status=ok\n[greeting] \xff\n[nav.home] x\n---")
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "DECODE_ERROR", resp.ErrorType)
	assert.Equal(t, ActionRetry, resp.NextAction.Action)
	assert.Equal(t, "Ensure file follows IBF format exactly", resp.Suggestion)
	assert.Contains(t, *s.State().Batch(1).Error, "Decode error")
}

func TestSubmit_PlaceholderWarnings(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	opts := testOptions()
	opts.Logger = zap.New(core)
	s, _ := newJSONSession(t, opts)

	resp, err := s.Submit(1, reply(1, 2, "nav.home", "Ana sayfa", "greeting", "Merhaba"))
	require.NoError(t, err)
	assert.True(t, resp.OK())
	require.NotEmpty(t, resp.Warnings)
	assert.Equal(t, ibf.PlaceholderMismatch, resp.Warnings[0].Kind)
	assert.True(t, strings.HasPrefix(resp.Warnings[0].Message, "[greeting] Missing placeholder in translation: "), resp.Warnings[0].Message)
	assert.Equal(t, Completed, s.State().Batch(1).Status)
	assert.Equal(t, len(resp.Warnings), logs.FilterMessage("placeholder mismatch").Len())
}

func TestRetriesExhaust(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())

	var resp *SubmitResponse
	for i := 0; i < MaxAttempts; i++ {
		_, err := s.GetBatch(1)
		require.NoError(t, err)
		resp, err = s.Submit(1, reply(1, 2, "greeting", "x"))
		require.NoError(t, err)
	}
	assert.Equal(t, ActionSkip, resp.NextAction.Action)
	assert.True(t, s.State().Batch(1).Exhausted())
	assert.Equal(t, 2, s.State().NextPending())

	st := s.Status()
	assert.Equal(t, []int{1}, st.ExhaustedBatches)
	assert.Equal(t, []int{1, 2}, st.Progress.RemainingBatches)
	assert.Equal(t, ActionTranslate, st.NextAction.Action)
	assert.Equal(t, s.BatchCommand(2), st.NextAction.Command)
	assert.Equal(t, "0/2 batches complete. 2 remaining.", st.Summary)
}

func TestStatus(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())
	_, err := s.GetBatch(1)
	require.NoError(t, err)

	st := s.Status()
	assert.Equal(t, s.ID(), st.SessionID)
	assert.Equal(t, "json", st.Format)
	assert.Equal(t, Active, st.Status)
	assert.Equal(t, map[string]BatchState{"1": InProgress, "2": Pending}, st.BatchStatus)
	assert.Equal(t, []int{2}, st.Progress.RemainingBatches)
	assert.Equal(t, []int{}, st.ExhaustedBatches)
	assert.Equal(t, s.Path(), st.StateFile)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"remaining_batches":[2]`)
	assert.Contains(t, string(data), `"percent":0`)
}

func TestFinalize_PartialTranslation(t *testing.T) {
	s, input := newJSONSession(t, testOptions())
	_, err := s.GetBatch(1)
	require.NoError(t, err)
	_, err = s.Submit(1, reply(1, 2, "greeting", "Merhaba {{name}}", "nav.home", "Ana sayfa"))
	require.NoError(t, err)

	resp, err := s.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, FinalizeStats{TotalEntries: 3, Translated: 2, Fallback: 1}, resp.Stats)
	assert.Equal(t, "Translation complete! Output written to tr_messages.json", resp.Summary)

	out, err := os.ReadFile(filepath.Join(filepath.Dir(input), "tr_messages.json"))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, map[string]any{
		"greeting": "Merhaba {{name}}",
		"nav":      map[string]any{"home": "Ana sayfa", "about": "About"},
	}, got)

	onDisk, err := ReadState(s.Path())
	require.NoError(t, err)
	assert.Equal(t, Finished, onDisk.Status)

	src, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.Equal(t, messagesJSON, string(src))
}

// Catalogs keyed by source text can carry keys the batch grammar cannot;
// an exact echo of the requested ids must still be accepted.
func TestSubmit_TextKeyedCatalog(t *testing.T) {
	input := writeFile(t, t.TempDir(), "messages.po",
		"msgid \"Name: \"\nmsgstr \"\"\n\nmsgid \"[Error] failed\"\nmsgstr \"\"\n")
	s, err := Create(Params{InputPath: input, SourceLang: "en", TargetLang: "tr"}, testOptions())
	require.NoError(t, err)

	text, err := s.GetBatch(1)
	require.NoError(t, err)
	var ids []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "[") {
			id, _, ok := strings.Cut(line[1:], "] ")
			require.True(t, ok, line)
			ids = append(ids, id)
		}
	}
	require.Len(t, ids, 2)
	for _, id := range ids {
		assert.True(t, ibf.ValidID(id), id)
	}

	resp, err := s.Submit(1, reply(1, 1, ids[0], "Ad:", ids[1], "[Hata] başarısız"))
	require.NoError(t, err)
	require.True(t, resp.OK(), "%+v", resp)

	_, err = s.Finalize()
	require.NoError(t, err)
	out, err := os.ReadFile(filepath.Join(filepath.Dir(input), "tr_messages.po"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "msgid \"Name: \"\nmsgstr \"Ad:\"")
	assert.Contains(t, string(out), "msgid \"[Error] failed\"\nmsgstr \"[Hata] başarısız\"")
}

func TestCreate_UnsafeID(t *testing.T) {
	input := writeFile(t, t.TempDir(), "keys.json", `{"list[0]": "x", "a]b": "y"}`)
	_, err := Create(Params{InputPath: input, SourceLang: "en", TargetLang: "tr"}, testOptions())
	assert.ErrorIs(t, err, ErrUnsafeID)
	assert.ErrorContains(t, err, `"a]b"`)
}

func TestEmptyInput(t *testing.T) {
	input := writeFile(t, t.TempDir(), "empty.json", "{}\n")
	s, err := Create(Params{InputPath: input, SourceLang: "en", TargetLang: "fr"}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, s.State().TotalBatches)
	assert.Equal(t, "0/0 batches complete. Ready to finalize.", s.Status().Summary)

	resp, err := s.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Stats.TotalEntries)
}

func TestStaleState(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())
	a, err := Load(s.Path(), testOptions())
	require.NoError(t, err)
	b, err := Load(s.Path(), testOptions())
	require.NoError(t, err)

	_, err = a.GetBatch(1)
	require.NoError(t, err)

	_, err = b.GetBatch(2)
	assert.ErrorIs(t, err, ErrStaleState)

	onDisk, err := ReadState(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, onDisk.Revision)
	assert.Equal(t, Pending, onDisk.Batch(2).Status)
	assert.Equal(t, 0, onDisk.Batch(2).Attempt)
}

func TestFailedWriteRestoresState(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())
	s.store.write = func(string, []byte) error { return errors.New("disk full") }

	_, err := s.GetBatch(1)
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, s.State().Revision)
	assert.Equal(t, Pending, s.State().Batch(1).Status)
	assert.Equal(t, 0, s.State().Batch(1).Attempt)

	s.store.write = writeAtomic
	_, err = s.GetBatch(1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.State().Batch(1).Attempt)

	onDisk, err := ReadState(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, onDisk.Revision)
	assert.Equal(t, 1, onDisk.Batch(1).Attempt)
}

func TestLocking(t *testing.T) {
	t.Run("held lock times out", func(t *testing.T) {
		s, _ := newJSONSession(t, testOptions())
		info := fmt.Sprintf(`{"pid":1,"created_at":%q}`, time.Now().UTC().Format(time.RFC3339))
		require.NoError(t, os.WriteFile(s.Path()+".lock", []byte(info), 0o600))

		_, err := s.GetBatch(1)
		assert.ErrorIs(t, err, ErrLocked)
		assert.Equal(t, 0, s.State().Batch(1).Attempt)
	})

	t.Run("stale lock is recovered", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		opts := testOptions()
		opts.Logger = zap.New(core)
		s, _ := newJSONSession(t, opts)
		require.NoError(t, os.WriteFile(s.Path()+".lock", []byte(`{"pid":1,"created_at":"2000-01-01T00:00:00Z"}`), 0o600))

		_, err := s.GetBatch(1)
		require.NoError(t, err)
		assert.Equal(t, 1, logs.FilterMessage("removing stale session lock").Len())
		_, err = os.Stat(s.Path() + ".lock")
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("fresh lock swapped in is put back", func(t *testing.T) {
		s, _ := newJSONSession(t, testOptions())
		lock := s.Path() + ".lock"
		fresh := fmt.Sprintf(`{"pid":2,"created_at":%q}`, time.Now().UTC().Format(time.RFC3339))
		require.NoError(t, os.WriteFile(lock, []byte(fresh), 0o600))

		// Another process replaced the stale lock after it was judged stale.
		s.store.breakStale()

		data, err := os.ReadFile(lock)
		require.NoError(t, err)
		assert.Equal(t, fresh, string(data))
		leftovers, err := filepath.Glob(lock + ".stale-*")
		require.NoError(t, err)
		assert.Empty(t, leftovers)
	})
}

func TestLoad_InputChanged(t *testing.T) {
	s, input := newJSONSession(t, testOptions())

	require.NoError(t, os.WriteFile(input, []byte(`{"greeting": "Hello {{name}}", "nav": {"home": "Start", "about": "About"}}`), 0o644))
	core, logs := observer.New(zap.WarnLevel)
	opts := testOptions()
	opts.Logger = zap.New(core)
	_, err := Load(s.Path(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("input file content differs from session creation").Len())

	require.NoError(t, os.WriteFile(input, []byte(`{"greeting": "Hello"}`), 0o644))
	_, err = Load(s.Path(), testOptions())
	assert.ErrorIs(t, err, ErrInputChanged)
}

func TestLoad_KeepsPersistedBoundaries(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())

	// A different tokenizer on load must not move batch boundaries.
	opts := testOptions()
	opts.Tokenizer = fixedTokenizer(1000)
	loaded, err := Load(s.Path(), opts)
	require.NoError(t, err)
	require.Len(t, loaded.Plans(), 2)
	assert.Equal(t, []string{"greeting", "nav.home"}, loaded.Plans()[0].IDs())
	assert.Equal(t, []string{"nav.about"}, loaded.Plans()[1].IDs())
}

type fixedTokenizer int

func (fixedTokenizer) Name() string       { return "fixed" }
func (f fixedTokenizer) Count(string) int { return int(f) }

func TestFindLatest(t *testing.T) {
	s1, input := newJSONSession(t, testOptions())
	s2, err := Create(Params{InputPath: input, SourceLang: "en", TargetLang: "de"}, testOptions())
	require.NoError(t, err)
	writeFile(t, filepath.Dir(input), "other.json", `{"a": "b"}`)
	_, err = Create(Params{InputPath: filepath.Join(filepath.Dir(input), "other.json"), SourceLang: "en", TargetLang: "de"}, testOptions())
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(s1.Path(), old, old))

	got, err := FindLatest(input)
	require.NoError(t, err)
	assert.Equal(t, s2.Path(), got)

	none, err := FindLatest(filepath.Join(t.TempDir(), "x.json"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

type countingRecorder struct {
	fetched, submitted, issues, warnings, finalized, progress int
	outcomes                                                  []string
}

func (r *countingRecorder) BatchFetched(string) { r.fetched++ }
func (r *countingRecorder) BatchSubmitted(_, outcome string) {
	r.submitted++
	r.outcomes = append(r.outcomes, outcome)
}
func (r *countingRecorder) ValidationIssue(string)              { r.issues++ }
func (r *countingRecorder) PlaceholderWarnings(_ string, n int) { r.warnings += n }
func (r *countingRecorder) Finalized(string, int, int)          { r.finalized++ }
func (r *countingRecorder) Progress(string, int, int)           { r.progress++ }

func TestRecorder(t *testing.T) {
	rec := &countingRecorder{}
	opts := testOptions()
	opts.Metrics = rec
	s, _ := newJSONSession(t, opts)

	_, err := s.GetBatch(1)
	require.NoError(t, err)
	_, err = s.Submit(1, reply(1, 2, "greeting", "x"))
	require.NoError(t, err)
	_, err = s.Submit(1, reply(1, 2, "greeting", "Merhaba {{name}}", "nav.home", "Ana sayfa"))
	require.NoError(t, err)
	_, err = s.Finalize()
	require.NoError(t, err)

	assert.Equal(t, 1, rec.fetched)
	assert.Equal(t, []string{"content", "completed"}, rec.outcomes)
	assert.Positive(t, rec.issues)
	assert.Equal(t, 1, rec.finalized)
	assert.Equal(t, 3, rec.progress)
}

func TestPrompt(t *testing.T) {
	got := BuildPrompt("#TRANSLATE:v1:en>tr:batch=1/1:entries=1:ctx=0\n@translate\n[1] Hi\n---", "srt", "tr")
	assert.True(t, strings.HasPrefix(got, "Translate the subtitle entries to Turkish (Türkçe).\n"))
	assert.Contains(t, got, "INPUT:\n#TRANSLATE:v1:en>tr:batch=1/1:entries=1:ctx=0\n@translate\n[1] Hi\n---\n\nOUTPUT:")
	assert.True(t, strings.HasSuffix(got, "OUTPUT:"))

	assert.Contains(t, BuildPrompt("x", "po", "xx"), "Translate the user interface strings to xx.")
	assert.Contains(t, BuildPrompt("x", "yaml", "de"), "Translate the localization entries to German (Deutsch).")
}

func TestWithGuidance(t *testing.T) {
	s, _ := newJSONSession(t, testOptions())
	out, err := s.WithGuidance("IBF", 2)
	require.NoError(t, err)

	prefix := "IBF\n\n#GUIDANCE:"
	require.True(t, strings.HasPrefix(out, prefix), out)
	var g Guidance
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(out, prefix)), &g))
	assert.Equal(t, 50.0, g.Progress.Percent)
	assert.Equal(t, 2, g.Progress.CurrentBatch)
	assert.Equal(t, 2, g.Progress.Total)
	assert.Equal(t, "batch_2.ibf", g.NextAction.SaveAs)
	assert.Equal(t, "cli-localize submit --session "+s.Path()+" --batch 2 --patch batch_2.ibf", g.NextAction.ThenRun)
}

func TestFormats(t *testing.T) {
	resp := Formats(builtin.Formats())
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Formats, 8)
	assert.Equal(t, "srt", resp.Formats[0].Name)
	assert.True(t, resp.Formats[0].SupportsContext)
	assert.Equal(t, "8 formats supported: srt, json, po, android, strings, yaml, arb, properties", resp.Summary)
}
