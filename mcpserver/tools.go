package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/yigitkonur/cli-localize/config"
	"github.com/yigitkonur/cli-localize/session"
)

// Tool names.
const (
	ToolInit     = "localize_init"
	ToolBatch    = "localize_batch"
	ToolSubmit   = "localize_submit"
	ToolStatus   = "localize_status"
	ToolFinalize = "localize_finalize"
	ToolFormats  = "localize_formats"
)

var errNothingPending = errors.New("no batch left to translate; call " + ToolFinalize)

type initInput struct {
	Input        string `json:"input" jsonschema:"Path of the localization file to translate"`
	Output       string `json:"output,omitempty" jsonschema:"Output path (default: <target>_<name> beside the input)"`
	Lang         string `json:"lang,omitempty" jsonschema:"Language pair such as en>tr; a bare code is the target language"`
	Format       string `json:"format,omitempty" jsonschema:"Format name, or auto to detect it"`
	ContextSize  *int   `json:"context_size,omitempty" jsonschema:"Context entries shown before and after each batch"`
	TargetTokens int    `json:"target_tokens,omitempty" jsonschema:"Estimated tokens per batch"`
	BatchSize    int    `json:"batch_size,omitempty" jsonschema:"Fixed number of entries per batch instead of token batching"`
}

type sessionInput struct {
	SessionFile string `json:"session_file" jsonschema:"Path of the .loc-*.json state file returned by localize_init"`
}

type batchInput struct {
	SessionFile string `json:"session_file" jsonschema:"Path of the .loc-*.json state file returned by localize_init"`
	Batch       int    `json:"batch,omitempty" jsonschema:"1-based batch number; 0 or omitted picks the next pending batch"`
	WithPrompt  bool   `json:"with_prompt,omitempty" jsonschema:"Wrap the batch in the full translation prompt"`
}

type batchOutput struct {
	SessionID    string `json:"session_id"`
	Batch        int    `json:"batch"`
	TotalBatches int    `json:"total_batches"`
	Content      string `json:"content"`
	Next         string `json:"next"`
}

type submitInput struct {
	SessionFile string `json:"session_file" jsonschema:"Path of the .loc-*.json state file returned by localize_init"`
	Batch       int    `json:"batch" jsonschema:"1-based batch number being answered"`
	Translation string `json:"translation" jsonschema:"The #TRANSLATED reply in IBF"`
}

type formatsInput struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolInit,
		Description: "Create a translation session for a localization file and split it into batches",
	}, s.handleInit)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolBatch,
		Description: "Fetch one batch of a session as IBF text, optionally wrapped in the translation prompt",
	}, s.handleBatch)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSubmit,
		Description: "Submit the translated IBF reply for a batch; returns validation errors to fix or the next step",
	}, s.handleSubmit)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolStatus,
		Description: "Show batch progress, remaining and exhausted batches of a session",
	}, s.handleStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolFinalize,
		Description: "Write the translated output file; untranslated entries keep their source text",
	}, s.handleFinalize)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolFormats,
		Description: "List the supported localization file formats",
	}, s.handleFormats)
}

// result returns v both as structured content and as indented JSON text
// for clients that only read text content.
func result(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, v, nil
}

func (s *Server) params(in initInput) (session.Params, error) {
	if strings.TrimSpace(in.Input) == "" {
		return session.Params{}, errors.New("input is required")
	}
	p := session.Params{
		InputPath:    in.Input,
		OutputPath:   in.Output,
		Format:       in.Format,
		SourceLang:   s.defaults.SourceLang,
		TargetLang:   s.defaults.TargetLang,
		ContextSize:  s.defaults.ContextSize,
		TargetTokens: s.defaults.TargetTokens,
		BatchSize:    s.defaults.BatchSize,
	}
	if p.Format == "" {
		p.Format = s.defaults.Format
	}
	if in.Lang != "" {
		src, tgt, err := config.ParseLangPair(in.Lang)
		if err != nil {
			return session.Params{}, err
		}
		p.SourceLang, p.TargetLang = src, tgt
	}
	if p.TargetLang == "" {
		return session.Params{}, errors.New("lang is required, e.g. en>tr")
	}
	if in.ContextSize != nil {
		if *in.ContextSize < 0 {
			return session.Params{}, fmt.Errorf("context_size must not be negative, got %d", *in.ContextSize)
		}
		p.ContextSize = *in.ContextSize
	}
	if in.TargetTokens > 0 {
		p.TargetTokens = in.TargetTokens
	}
	if in.BatchSize > 0 {
		p.BatchSize = in.BatchSize
	}
	return p, nil
}

func (s *Server) load(path string) (*session.Session, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session_file is required")
	}
	sess, err := session.Load(path, s.opts)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

func (s *Server) handleInit(ctx context.Context, req *mcp.CallToolRequest, in initInput) (*mcp.CallToolResult, any, error) {
	p, err := s.params(in)
	if err != nil {
		return nil, nil, err
	}
	sess, err := session.Create(p, s.opts)
	if err != nil {
		return nil, nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Info("session created via MCP",
		zap.String("session", sess.ID()),
		zap.String("input", p.InputPath))
	return result(sess.InitResponse())
}

func (s *Server) handleBatch(ctx context.Context, req *mcp.CallToolRequest, in batchInput) (*mcp.CallToolResult, any, error) {
	sess, err := s.load(in.SessionFile)
	if err != nil {
		return nil, nil, err
	}
	n := in.Batch
	if n == 0 {
		if n = sess.State().NextPending(); n == 0 {
			return nil, nil, errNothingPending
		}
	}
	text, err := sess.GetBatch(n)
	if err != nil {
		return nil, nil, err
	}
	if in.WithPrompt {
		text = sess.Prompt(text)
	}
	return result(batchOutput{
		SessionID:    sess.ID(),
		Batch:        n,
		TotalBatches: sess.State().TotalBatches,
		Content:      text,
		Next:         fmt.Sprintf("Translate the entries and call %s with batch=%d and the #TRANSLATED reply", ToolSubmit, n),
	})
}

func (s *Server) handleSubmit(ctx context.Context, req *mcp.CallToolRequest, in submitInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(in.Translation) == "" {
		return nil, nil, errors.New("translation is empty: it must contain the #TRANSLATED header, entries and the --- delimiter")
	}
	sess, err := s.load(in.SessionFile)
	if err != nil {
		return nil, nil, err
	}
	resp, err := sess.Submit(in.Batch, in.Translation)
	if err != nil {
		return nil, nil, err
	}
	return result(resp)
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, in sessionInput) (*mcp.CallToolResult, any, error) {
	sess, err := s.load(in.SessionFile)
	if err != nil {
		return nil, nil, err
	}
	return result(sess.Status())
}

func (s *Server) handleFinalize(ctx context.Context, req *mcp.CallToolRequest, in sessionInput) (*mcp.CallToolResult, any, error) {
	sess, err := s.load(in.SessionFile)
	if err != nil {
		return nil, nil, err
	}
	resp, err := sess.Finalize()
	if err != nil {
		return nil, nil, err
	}
	return result(resp)
}

func (s *Server) handleFormats(ctx context.Context, req *mcp.CallToolRequest, in formatsInput) (*mcp.CallToolResult, any, error) {
	return result(session.Formats(s.opts.Registry))
}
