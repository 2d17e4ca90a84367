package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yigitkonur/cli-localize/builtin"
	"github.com/yigitkonur/cli-localize/session"
)

const messagesJSON = `{
  "greeting": "Hello {{name}}",
  "nav": {
    "home": "Home",
    "about": "About"
  }
}
`

func newServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(Config{
		Session: session.Options{
			Registry:    builtin.Formats(),
			LockTimeout: 200 * time.Millisecond,
		},
		Defaults: Defaults{SourceLang: "en", TargetLang: "tr", ContextSize: 1, BatchSize: 2},
	})
	require.NoError(t, err)
	return s
}

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.json")
	require.NoError(t, os.WriteFile(path, []byte(messagesJSON), 0o644))
	return path
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	var v T
	require.NoError(t, json.Unmarshal([]byte(text.Text), &v))
	return v
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, session.ErrNoRegistry)
}

func TestParams(t *testing.T) {
	s := newServer(t)

	p, err := s.params(initInput{Input: "a.json"})
	require.NoError(t, err)
	assert.Equal(t, "en", p.SourceLang)
	assert.Equal(t, "tr", p.TargetLang)
	assert.Equal(t, 1, p.ContextSize)
	assert.Equal(t, 2, p.BatchSize)

	zero := 0
	p, err = s.params(initInput{Input: "a.json", Lang: "de>fr", ContextSize: &zero, TargetTokens: 900})
	require.NoError(t, err)
	assert.Equal(t, "de", p.SourceLang)
	assert.Equal(t, "fr", p.TargetLang)
	assert.Equal(t, 0, p.ContextSize)
	assert.Equal(t, 900, p.TargetTokens)

	_, err = s.params(initInput{})
	assert.Error(t, err)
	_, err = s.params(initInput{Input: "a.json", Lang: "english"})
	assert.Error(t, err)
	negative := -1
	_, err = s.params(initInput{Input: "a.json", ContextSize: &negative})
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)
	input := writeInput(t)

	res, _, err := s.handleInit(ctx, nil, initInput{Input: input, Lang: "en>de"})
	require.NoError(t, err)
	initResp := decode[session.InitResponse](t, res)
	assert.Equal(t, "ok", initResp.Status)
	assert.Equal(t, "json", initResp.Format)
	assert.Equal(t, 2, initResp.Stats.TotalBatches)
	stateFile := initResp.SessionFile

	res, _, err = s.handleBatch(ctx, nil, batchInput{SessionFile: stateFile})
	require.NoError(t, err)
	batch := decode[batchOutput](t, res)
	assert.Equal(t, 1, batch.Batch)
	assert.Equal(t, 2, batch.TotalBatches)
	assert.Contains(t, batch.Content, "#TRANSLATE:v1:en>de:batch=1/2")
	assert.Contains(t, batch.Content, "[greeting] Hello {{name}}")

	reply := "#TRANSLATED:v1:batch=1/2:count=2:status=ok\n[greeting] Hallo {{name}}\n[nav.home] Startseite\n---"
	res, _, err = s.handleSubmit(ctx, nil, submitInput{SessionFile: stateFile, Batch: 1, Translation: reply})
	require.NoError(t, err)
	submit := decode[session.SubmitResponse](t, res)
	assert.Equal(t, "ok", submit.Status)
	assert.Equal(t, 2, submit.NextBatch)

	res, _, err = s.handleStatus(ctx, nil, sessionInput{SessionFile: stateFile})
	require.NoError(t, err)
	status := decode[session.StatusResponse](t, res)
	assert.Equal(t, 1, status.Progress.Completed)
	assert.Equal(t, []int{2}, status.Progress.RemainingBatches)
	assert.Equal(t, session.ActionTranslate, status.NextAction.Action)

	res, _, err = s.handleBatch(ctx, nil, batchInput{SessionFile: stateFile, WithPrompt: true})
	require.NoError(t, err)
	batch = decode[batchOutput](t, res)
	assert.Equal(t, 2, batch.Batch)
	assert.Contains(t, batch.Content, "German")
	assert.Contains(t, batch.Content, "[nav.about] About")

	res, _, err = s.handleFinalize(ctx, nil, sessionInput{SessionFile: stateFile})
	require.NoError(t, err)
	final := decode[session.FinalizeResponse](t, res)
	assert.Equal(t, 2, final.Stats.Translated)
	assert.Equal(t, 1, final.Stats.Fallback)

	out, err := os.ReadFile(final.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"greeting": "Hallo {{name}}"`)
	assert.Contains(t, string(out), `"about": "About"`)
}

func TestToolErrors(t *testing.T) {
	ctx := context.Background()
	s := newServer(t)

	_, _, err := s.handleStatus(ctx, nil, sessionInput{})
	assert.Error(t, err)

	_, _, err = s.handleSubmit(ctx, nil, submitInput{SessionFile: "x.json", Batch: 1, Translation: "  \n"})
	assert.ErrorContains(t, err, "translation is empty")

	res, _, err := s.handleInit(ctx, nil, initInput{Input: writeInput(t), Lang: "en>de"})
	require.NoError(t, err)
	stateFile := decode[session.InitResponse](t, res).SessionFile

	_, _, err = s.handleBatch(ctx, nil, batchInput{SessionFile: stateFile, Batch: 9})
	assert.ErrorIs(t, err, session.ErrInvalidBatch)
}

func TestFormatsTool(t *testing.T) {
	s := newServer(t)
	res, _, err := s.handleFormats(context.Background(), nil, formatsInput{})
	require.NoError(t, err)
	resp := decode[session.FormatsResponse](t, res)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Formats)
	assert.Contains(t, resp.Summary, "formats supported")
}

func TestInMemoryClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newServer(t)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.MCP().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{ToolInit, ToolBatch, ToolSubmit, ToolStatus, ToolFinalize, ToolFormats}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: ToolFormats, Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	resp := decode[session.FormatsResponse](t, res)
	assert.Equal(t, "ok", resp.Status)
}
