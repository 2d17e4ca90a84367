package session

import (
	"fmt"
	"strings"

	"github.com/yigitkonur/cli-localize/formats"
	"github.com/yigitkonur/cli-localize/ibf"
)

// Actions named in next_action.
const (
	ActionContinue  = "continue"
	ActionTranslate = "translate"
	ActionFinalize  = "finalize"
	ActionRetry     = "retry"
	ActionSkip      = "skip"
)

// Progress reports how many batches are completed.
type Progress struct {
	Completed    int     `json:"completed"`
	Total        int     `json:"total"`
	Percent      float64 `json:"percent"`
	CurrentBatch int     `json:"current_batch,omitempty"`
}

// NextAction tells the caller what to run next.
type NextAction struct {
	Action          string `json:"action,omitempty"`
	Command         string `json:"command,omitempty"`
	Description     string `json:"description,omitempty"`
	EstimatedTokens int    `json:"estimated_tokens,omitempty"`
	Batch           int    `json:"batch,omitempty"`
}

// InitStats summarizes a freshly created session.
type InitStats struct {
	TotalEntries            int    `json:"total_entries"`
	TotalBatches            int    `json:"total_batches"`
	EstimatedTokensPerBatch int    `json:"estimated_tokens_per_batch"`
	MinTokens               int    `json:"min_tokens"`
	MaxTokens               int    `json:"max_tokens"`
	SourceLang              string `json:"source_lang"`
	TargetLang              string `json:"target_lang"`
}

// InitResponse is returned after a session was created.
type InitResponse struct {
	Status      string     `json:"status"`
	SessionID   string     `json:"session_id"`
	SessionFile string     `json:"session_file"`
	Format      string     `json:"format"`
	Stats       InitStats  `json:"stats"`
	NextAction  NextAction `json:"next_action"`
	Summary     string     `json:"summary"`
}

// SubmitResponse is the outcome of a submission. Status is "ok" or
// "error"; the fields present depend on the outcome.
type SubmitResponse struct {
	Status           string      `json:"status"`
	Progress         *Progress   `json:"progress,omitempty"`
	NextAction       NextAction  `json:"next_action"`
	NextBatch        int         `json:"next_batch,omitempty"`
	Batch            int         `json:"batch,omitempty"`
	Attempt          int         `json:"attempt,omitempty"`
	MaxAttempts      int         `json:"max_attempts,omitempty"`
	ErrorType        string      `json:"error_type,omitempty"`
	Error            string      `json:"error,omitempty"`
	ValidationErrors []ibf.Issue `json:"validation_errors,omitempty"`
	ErrorSummary     string      `json:"error_summary,omitempty"`
	Suggestion       string      `json:"suggestion,omitempty"`
	Summary          string      `json:"summary,omitempty"`
	Warnings         []ibf.Issue `json:"warnings,omitempty"`
}

// OK reports whether the submission was accepted.
func (r *SubmitResponse) OK() bool { return r.Status == "ok" }

// StatusProgress extends Progress with the batches still to translate.
type StatusProgress struct {
	Progress
	RemainingBatches []int `json:"remaining_batches"`
}

// StatusResponse describes the whole session.
type StatusResponse struct {
	SessionID        string                `json:"session_id"`
	Format           string                `json:"format"`
	Status           Lifecycle             `json:"status"`
	Progress         StatusProgress        `json:"progress"`
	ExhaustedBatches []int                 `json:"exhausted_batches"`
	BatchStatus      map[string]BatchState `json:"batch_status"`
	NextAction       NextAction            `json:"next_action"`
	StateFile        string                `json:"state_file"`
	Summary          string                `json:"summary"`
}

// FinalizeStats counts translated and fallback entries.
type FinalizeStats struct {
	TotalEntries int `json:"total_entries"`
	Translated   int `json:"translated"`
	Fallback     int `json:"fallback"`
}

// FinalizeResponse is returned after the output file was written.
type FinalizeResponse struct {
	Status     string        `json:"status"`
	OutputFile string        `json:"output_file"`
	Stats      FinalizeStats `json:"stats"`
	Progress   Progress      `json:"progress"`
	Summary    string        `json:"summary"`
}

// FormatsResponse lists the formats a registry handles.
type FormatsResponse struct {
	Status  string         `json:"status"`
	Formats []formats.Info `json:"formats"`
	Summary string         `json:"summary"`
}

// Formats describes every handler in reg, in registration order.
func Formats(reg *formats.Registry) *FormatsResponse {
	names := reg.Names()
	return &FormatsResponse{
		Status:  "ok",
		Formats: reg.List(),
		Summary: fmt.Sprintf("%d formats supported: %s", len(names), strings.Join(names, ", ")),
	}
}

// BatchCommand returns the command that fetches batch n.
func (s *Session) BatchCommand(n int) string {
	return fmt.Sprintf("%s batch --session %s --batch %d", s.opts.CommandName, s.path, n)
}

// SubmitCommand returns the command that submits the reply to batch n.
func (s *Session) SubmitCommand(n int, patch string) string {
	return fmt.Sprintf("%s submit --session %s --batch %d --patch %s", s.opts.CommandName, s.path, n, patch)
}

// FinalizeCommand returns the command that writes the output file.
func (s *Session) FinalizeCommand() string {
	return fmt.Sprintf("%s finalize --session %s", s.opts.CommandName, s.path)
}

func (s *Session) progress(current int) *Progress {
	return &Progress{
		Completed:    s.state.CompletedCount(),
		Total:        s.state.TotalBatches,
		Percent:      s.state.Percent(),
		CurrentBatch: current,
	}
}

func (s *Session) continueAction(n int) NextAction {
	return NextAction{
		Action:          ActionContinue,
		Command:         s.BatchCommand(n),
		Description:     fmt.Sprintf("Translate batch %d of %d", n, s.state.TotalBatches),
		EstimatedTokens: s.state.Batch(n).EstimatedTokens,
	}
}

func (s *Session) finalizeAction(action string) NextAction {
	return NextAction{
		Action:      action,
		Command:     s.FinalizeCommand(),
		Description: "Generate final translated file",
	}
}

func (s *Session) accepted(batch int, warnings []ibf.Issue) *SubmitResponse {
	next := s.state.NextPending()
	resp := &SubmitResponse{Status: "ok", Warnings: warnings}
	if next == 0 {
		resp.Progress = s.progress(s.state.CurrentBatch)
		resp.NextAction = s.finalizeAction(ActionFinalize)
		resp.Summary = fmt.Sprintf("All %d batches complete! Ready to generate output file.", s.state.TotalBatches)
		return resp
	}
	resp.Progress = s.progress(next)
	resp.NextAction = s.continueAction(next)
	resp.NextBatch = next
	resp.Summary = fmt.Sprintf("%d/%d batches complete (%.1f%%). Continue with batch %d.",
		resp.Progress.Completed, resp.Progress.Total, resp.Progress.Percent, next)
	return resp
}

func (s *Session) rejected(batch int, issues []ibf.Issue) *SubmitResponse {
	b := s.state.Batch(batch)
	action := ActionRetry
	if b.Attempt >= MaxAttempts {
		action = ActionSkip
	}
	p := s.progress(0)
	return &SubmitResponse{
		Status:           "error",
		Progress:         p,
		NextAction:       NextAction{Action: action, Batch: batch},
		Batch:            batch,
		Attempt:          b.Attempt,
		MaxAttempts:      MaxAttempts,
		ValidationErrors: issues,
		ErrorSummary:     fmt.Sprintf("%d validation error(s) found", len(issues)),
		Suggestion:       "Fix the errors listed in validation_errors and resubmit the .ibf file",
		Summary:          fmt.Sprintf("Batch %d validation failed (attempt %d/%d). Fix errors and retry.", batch, b.Attempt, MaxAttempts),
	}
}

func (s *Session) undecodable(batch int, err error) *SubmitResponse {
	b := s.state.Batch(batch)
	return &SubmitResponse{
		Status:      "error",
		NextAction:  NextAction{Action: ActionRetry, Batch: batch},
		Batch:       batch,
		ErrorType:   string(ibf.DecodeFailure),
		Error:       err.Error(),
		Suggestion:  "Ensure file follows IBF format exactly",
		Attempt:     b.Attempt,
		MaxAttempts: MaxAttempts,
		Summary:     fmt.Sprintf("Batch %d could not be decoded. Please retry.", batch),
	}
}
