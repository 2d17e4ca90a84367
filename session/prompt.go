package session

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yigitkonur/cli-localize/langmeta"
)

// TranslationPrompt is the instruction wrapped around an IBF request.
// {{entryKind}}, {{targetLang}} and {{input}} are substituted by BuildPrompt.
const TranslationPrompt = `Translate the {{entryKind}} to {{targetLang}}.

INPUT FORMAT:
- @context_before: Previous entries (read-only, for understanding context)
- @translate: Entries you MUST translate
- @context_after: Following entries (read-only, for understanding context)

OUTPUT FORMAT:
Return ONLY the translated entries in this exact format:
#TRANSLATED:v1:batch={batch_num}/{total}:count={count}:status=ok
[id] Translated text
[id+1] Another translated text
---

RULES:
1. Translate ONLY entries under @translate
2. Preserve exact entry IDs [50], [51], etc.
3. Output count MUST match input count
4. Do NOT add explanations or extra text
5. Use context to maintain sentence flow
6. Keep placeholders such as {name}, %s, %1$s and {{count}} unchanged
7. Write line breaks inside a text as \n

INPUT:
{{input}}

OUTPUT:`

// BuildPrompt wraps ibfText in the translation instructions for the given
// format and target language code.
func BuildPrompt(ibfText, format, targetLang string) string {
	r := strings.NewReplacer(
		"{{entryKind}}", entryKind(format),
		"{{targetLang}}", langmeta.DisplayName(targetLang),
		"{{input}}", ibfText,
	)
	return r.Replace(TranslationPrompt)
}

func entryKind(format string) string {
	switch format {
	case "srt":
		return "subtitle entries"
	case "po", "android", "strings", "arb", "properties":
		return "user interface strings"
	default:
		return "localization entries"
	}
}

// Guidance is the machine-readable footer appended to a fetched batch.
type Guidance struct {
	Progress struct {
		Percent      float64 `json:"percent"`
		CurrentBatch int     `json:"current_batch"`
		Total        int     `json:"total"`
	} `json:"progress"`
	NextAction struct {
		SaveAs  string `json:"save_as"`
		ThenRun string `json:"then_run"`
	} `json:"next_action"`
}

// Guidance describes where to save the reply to batch n and how to submit
// it.
func (s *Session) Guidance(n int) Guidance {
	var g Guidance
	g.Progress.Percent = percent(n-1, s.state.TotalBatches)
	g.Progress.CurrentBatch = n
	g.Progress.Total = s.state.TotalBatches
	g.NextAction.SaveAs = fmt.Sprintf("batch_%d.ibf", n)
	g.NextAction.ThenRun = s.SubmitCommand(n, g.NextAction.SaveAs)
	return g
}

// WithGuidance appends the #GUIDANCE footer for batch n to ibfText.
func (s *Session) WithGuidance(ibfText string, n int) (string, error) {
	data, err := json.Marshal(s.Guidance(n))
	if err != nil {
		return "", fmt.Errorf("encoding guidance: %w", err)
	}
	return ibfText + "\n\n#GUIDANCE:" + string(data), nil
}

// Prompt returns the full translation prompt around ibfText.
func (s *Session) Prompt(ibfText string) string {
	return BuildPrompt(ibfText, s.state.FormatType, s.state.TgtLang)
}
