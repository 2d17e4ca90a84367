// cli-localize: batched LLM translation of localization files.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yigitkonur/cli-localize/batcher"
	"github.com/yigitkonur/cli-localize/builtin"
	"github.com/yigitkonur/cli-localize/config"
	"github.com/yigitkonur/cli-localize/formats"
	"github.com/yigitkonur/cli-localize/i18n"
	"github.com/yigitkonur/cli-localize/logging"
	"github.com/yigitkonur/cli-localize/mcpserver"
	"github.com/yigitkonur/cli-localize/metrics"
	"github.com/yigitkonur/cli-localize/session"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

// stderr receives the colored progress lines. stdout is reserved for JSON
// and IBF text.
var stderr io.Writer = os.Stderr

func logInfo(format string, args ...any) {
	fmt.Fprintln(stderr, colorBlue+"[INFO]"+colorReset+" "+i18n.T(format, args...))
}

func logSuccess(format string, args ...any) {
	fmt.Fprintln(stderr, colorGreen+"[OK]"+colorReset+" "+i18n.T(format, args...))
}

func logWarning(format string, args ...any) {
	fmt.Fprintln(stderr, colorYellow+"[WARN]"+colorReset+" "+i18n.T(format, args...))
}

func logError(format string, args ...any) {
	fmt.Fprintln(stderr, colorRed+"[ERROR]"+colorReset+" "+i18n.T(format, args...))
}

// ---------------------------------------------------------------------------
// Application state shared by all commands
// ---------------------------------------------------------------------------

type app struct {
	// global flags
	configPath  string
	logLevel    string
	metricsFile string

	cfg      *config.Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	registry *formats.Registry
}

// setup loads the configuration and builds the collaborators. Flags set on
// the command line win over the config file and the environment.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, ".")
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile = a.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	i18n.Init(cfg.UILang)

	if a.log, err = logging.New(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	a.metrics = metrics.New()
	a.registry = builtin.Formats()
	return nil
}

// close exports metrics and flushes the logger. It is safe to call when
// setup never ran.
func (a *app) close() {
	if a.metrics != nil && a.cfg != nil {
		if err := a.metrics.WriteFile(a.cfg.MetricsFile); err != nil {
			logError("Could not write metrics file: %v", err)
		}
	}
	if a.log != nil {
		_ = logging.Sync(a.log)
	}
}

func (a *app) sessionOptions() session.Options {
	return session.Options{
		Registry:    a.registry,
		Logger:      a.log,
		Metrics:     a.metrics,
		LockTimeout: a.cfg.LockTimeout,
		StaleAfter:  a.cfg.LockStaleAfter,
		CommandName: "cli-localize",
	}
}

// tokenizer returns the configured estimator for new sessions, falling back to the
// length/4 heuristic when the tiktoken encoding cannot be loaded.
func (a *app) tokenizer() batcher.Tokenizer {
	t, err := batcher.Select(a.cfg.Tokenizer)
	if err != nil {
		logWarning("Tokenizer %s unavailable, using the length/4 heuristic: %v", a.cfg.Tokenizer, err)
	}
	return t
}

// ---------------------------------------------------------------------------
// Output helpers
// ---------------------------------------------------------------------------

// printJSON writes v as indented JSON without HTML escaping, so language
// pairs like en>tr stay readable.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// errorResponse is the agent-facing error shape printed instead of failing
// the process.
type errorResponse struct {
	Status         string `json:"status"`
	Error          string `json:"error"`
	ErrorType      string `json:"error_type,omitempty"`
	Message        string `json:"message,omitempty"`
	Suggestion     string `json:"suggestion,omitempty"`
	Example        string `json:"example,omitempty"`
	ExpectedFormat string `json:"expected_format,omitempty"`
}

func sameLanguageResponse(lang, input string) errorResponse {
	return errorResponse{
		Status: "error",
		Error:  "same_language",
		Message: fmt.Sprintf("Source and target language are the same: '%s'. "+
			"This usually happens when --lang is not quoted. "+
			"Use: --lang '%s>XX' (with quotes) to prevent shell interpretation of '>'.", lang, lang),
		Suggestion: fmt.Sprintf("Try: cli-localize init --input %s --lang '%s>XX'", input, lang),
	}
}

// errorType classifies errors returned from commands for the JSON printed
// on stderr.
func errorType(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidBatch):
		return "INVALID_BATCH"
	case errors.Is(err, session.ErrLocked):
		return "SESSION_LOCKED"
	case errors.Is(err, session.ErrStaleState):
		return "STALE_STATE"
	case errors.Is(err, session.ErrInputChanged):
		return "INPUT_CHANGED"
	case errors.Is(err, session.ErrSameLanguage):
		return "SAME_LANGUAGE"
	case errors.Is(err, session.ErrUnsafeID):
		return "UNSAFE_ID"
	case errors.Is(err, formats.ErrUnknownFormat), errors.Is(err, formats.ErrUnknownExtension):
		return "UNKNOWN_FORMAT"
	case errors.Is(err, fs.ErrNotExist):
		return "FILE_NOT_FOUND"
	default:
		return "ERROR"
	}
}

func printError(w io.Writer, err error) {
	_ = printJSON(w, errorResponse{
		Status:    "error",
		Error:     err.Error(),
		ErrorType: errorType(err),
	})
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cli-localize",
		Short: "Batched LLM translation of localization files",
		Long: `cli-localize: batched LLM translation of localization files.

Splits a localization file into token-budgeted batches, hands each batch to
an agent as IBF text and validates the translated reply before writing the
output file. The tool never calls a language model itself.

Workflow:
  init       Create a session for an input file
  batch      Print one batch to translate
  submit     Validate and store a translated batch
  status     Show session progress
  finalize   Write the translated file
  oneshot    init (or resume) and print the next batch in one step
  serve      Expose the same operations as MCP tools on stdio

Formats: srt, json, po, android, strings, yaml, arb, properties`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: ./"+config.FileName+" when present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Diagnostic log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file at exit")

	root.AddCommand(
		newInitCmd(a),
		newBatchCmd(a),
		newSubmitCmd(a),
		newStatusCmd(a),
		newFinalizeCmd(a),
		newFormatsCmd(a),
		newOneshotCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)

	return root
}

func main() {
	a := &app{}
	err := newRootCmd(a).Execute()
	a.close()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cli-localize version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// init (create a session)
// ---------------------------------------------------------------------------

type initFlags struct {
	input        string
	output       string
	lang         string
	format       string
	context      int
	targetTokens int
	batchSize    int
}

func addInitFlags(cmd *cobra.Command, f *initFlags) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input localization file")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file (default: <target>_<name> beside the input)")
	cmd.Flags().StringVarP(&f.lang, "lang", "l", "", "Language pair, quoted: 'en>tr' (a bare code is the target)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Input format: auto, or one of the names from 'formats'")
	cmd.Flags().IntVarP(&f.context, "context", "c", 0, "Context entries before and after each batch")
	cmd.Flags().IntVarP(&f.targetTokens, "target-tokens", "t", 0, "Estimated tokens per batch")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Fixed entries per batch instead of token batching")
	_ = cmd.MarkFlagRequired("input")
}

// params merges init flags over the configuration.
func (a *app) params(cmd *cobra.Command, f *initFlags) (session.Params, error) {
	p := session.Params{
		InputPath:    f.input,
		OutputPath:   f.output,
		Format:       a.cfg.Format,
		SourceLang:   a.cfg.SourceLang,
		TargetLang:   a.cfg.TargetLang,
		ContextSize:  a.cfg.ContextSize,
		TargetTokens: a.cfg.TargetTokens,
		BatchSize:    a.cfg.BatchSize,
	}
	flags := cmd.Flags()
	if flags.Changed("lang") {
		src, tgt, err := config.ParseLangPair(f.lang)
		if err != nil {
			return p, err
		}
		p.SourceLang, p.TargetLang = src, tgt
	}
	if flags.Changed("format") {
		p.Format = f.format
	}
	if flags.Changed("context") {
		if f.context < 0 {
			return p, fmt.Errorf("--context must not be negative, got %d", f.context)
		}
		p.ContextSize = f.context
	}
	if flags.Changed("target-tokens") {
		if f.targetTokens <= 0 {
			return p, fmt.Errorf("--target-tokens must be positive, got %d", f.targetTokens)
		}
		p.TargetTokens = f.targetTokens
	}
	if flags.Changed("batch-size") {
		if f.batchSize < 0 {
			return p, fmt.Errorf("--batch-size must not be negative, got %d", f.batchSize)
		}
		p.BatchSize = f.batchSize
	}
	return p, nil
}

// create starts a new session, or prints the same_language error and
// returns nil.
func (a *app) create(cmd *cobra.Command, f *initFlags) (*session.Session, error) {
	p, err := a.params(cmd, f)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(p.SourceLang, p.TargetLang) {
		return nil, printJSON(cmd.OutOrStdout(), sameLanguageResponse(p.SourceLang, f.input))
	}
	opts := a.sessionOptions()
	opts.Tokenizer = a.tokenizer()
	sess, err := session.Create(p, opts)
	if err != nil {
		return nil, err
	}
	st := sess.State()
	logSuccess("Session %s created: %d entries in %d batches", st.SessionID, st.TotalEntries, st.TotalBatches)
	return sess, nil
}

func newInitCmd(a *app) *cobra.Command {
	var f initFlags
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a translation session for an input file",
		Long: `Parse the input file, split it into batches and write the session state
file (.loc-<id>.json) beside it. Prints the session summary as JSON.

Quote the language pair so the shell does not treat '>' as a redirect:
  cli-localize init -i messages.json --lang 'en>tr'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.create(cmd, &f)
			if err != nil || sess == nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sess.InitResponse())
		},
	}
	addInitFlags(cmd, &f)
	return cmd
}

// ---------------------------------------------------------------------------
// batch (print one batch)
// ---------------------------------------------------------------------------

func newBatchCmd(a *app) *cobra.Command {
	var (
		sessionPath string
		batch       int
		withPrompt  bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Print one batch as IBF text",
		Long: `Print batch N as IBF text followed by a #GUIDANCE footer telling where to
save the reply and how to submit it. With --with-prompt the batch is wrapped
in the full translation prompt instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session.Load(sessionPath, a.sessionOptions())
			if err != nil {
				return err
			}
			text, err := sess.GetBatch(batch)
			if err != nil {
				return err
			}
			if withPrompt {
				text = sess.Prompt(text)
			} else if text, err = sess.WithGuidance(text, batch); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVarP(&sessionPath, "session", "s", "", "Session state file")
	cmd.Flags().IntVarP(&batch, "batch", "b", 0, "Batch number (1-based)")
	cmd.Flags().BoolVarP(&withPrompt, "with-prompt", "p", false, "Print the full translation prompt")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

// ---------------------------------------------------------------------------
// submit (validate and store a reply)
// ---------------------------------------------------------------------------

const expectedPatchFormat = `#TRANSLATED:v1:batch=N/M:count=X:status=ok\n[id] translated text\n---`

// readPatch runs the checks that need no session. A non-nil response is
// printed instead of submitting.
func readPatch(path, sessionPath string, batch int) ([]byte, *errorResponse) {
	if path == "" {
		return nil, &errorResponse{
			Status:     "error",
			ErrorType:  "MISSING_PATCH",
			Error:      "No patch file provided",
			Suggestion: "Use --patch to specify the .ibf file containing the translation",
			Example:    fmt.Sprintf("cli-localize submit --session %s --batch %d --patch batch_%d.ibf", sessionPath, batch, batch),
		}
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &errorResponse{
			Status:         "error",
			ErrorType:      "FILE_NOT_FOUND",
			Error:          "Patch file not found: " + path,
			Suggestion:     fmt.Sprintf("Create the file '%s' with the translated IBF content", path),
			ExpectedFormat: expectedPatchFormat,
		}
	case err != nil:
		return nil, &errorResponse{
			Status:     "error",
			ErrorType:  "FILE_READ_ERROR",
			Error:      fmt.Sprintf("Cannot read patch file: %v", err),
			Suggestion: "Ensure the file is readable and properly encoded (UTF-8)",
		}
	case !utf8.Valid(data):
		return nil, &errorResponse{
			Status:     "error",
			ErrorType:  "FILE_READ_ERROR",
			Error:      "Cannot read patch file: invalid UTF-8 in " + path,
			Suggestion: "Ensure the file is readable and properly encoded (UTF-8)",
		}
	case strings.TrimSpace(string(data)) == "":
		return nil, &errorResponse{
			Status:     "error",
			ErrorType:  "EMPTY_FILE",
			Error:      "Patch file is empty: " + path,
			Suggestion: "File must contain #TRANSLATED header, entries, and --- delimiter",
		}
	}
	return data, nil
}

func newSubmitCmd(a *app) *cobra.Command {
	var (
		sessionPath string
		batch       int
		patch       string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Validate and store a translated batch",
		Long: `Validate the #TRANSLATED reply in the patch file against batch N and store
it when it passes. Validation failures are printed as JSON with the
errors to fix; after 3 attempts a batch is skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			data, failure := readPatch(patch, sessionPath, batch)
			if failure != nil {
				return printJSON(out, failure)
			}
			sess, err := session.Load(sessionPath, a.sessionOptions())
			if err != nil {
				return err
			}
			resp, err := sess.Submit(batch, string(data))
			if err != nil {
				return err
			}
			if resp.OK() {
				logSuccess("Batch %d accepted", batch)
			} else {
				logWarning("Batch %d rejected: %s", batch, resp.Summary)
			}
			return printJSON(out, resp)
		},
	}
	cmd.Flags().StringVarP(&sessionPath, "session", "s", "", "Session state file")
	cmd.Flags().IntVarP(&batch, "batch", "b", 0, "Batch number (1-based)")
	cmd.Flags().StringVarP(&patch, "patch", "p", "", "File holding the translated IBF reply")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("batch")
	return cmd
}

// ---------------------------------------------------------------------------
// status, finalize, formats
// ---------------------------------------------------------------------------

func newStatusCmd(a *app) *cobra.Command {
	var sessionPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session progress",
		Long:  `Show completed, remaining and exhausted batches and the next command to run. Does not modify any files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session.Load(sessionPath, a.sessionOptions())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sess.Status())
		},
	}
	cmd.Flags().StringVarP(&sessionPath, "session", "s", "", "Session state file")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newFinalizeCmd(a *app) *cobra.Command {
	var sessionPath string
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Write the translated output file",
		Long: `Write the output file from every accepted batch. Entries without a
translation keep their source text. Can be run again after more batches
are submitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := session.Load(sessionPath, a.sessionOptions())
			if err != nil {
				return err
			}
			resp, err := sess.Finalize()
			if err != nil {
				return err
			}
			if resp.Stats.Fallback > 0 {
				logWarning("%d entries kept their source text", resp.Stats.Fallback)
			}
			logSuccess("Output written to %s", resp.OutputFile)
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVarP(&sessionPath, "session", "s", "", "Session state file")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func newFormatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported file formats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), session.Formats(a.registry))
		},
	}
}

// ---------------------------------------------------------------------------
// oneshot (init or resume, then print the next batch)
// ---------------------------------------------------------------------------

type oneshotStatus struct {
	SessionID  string `json:"session_id"`
	Batch      int    `json:"batch"`
	Total      int    `json:"total"`
	StateFile  string `json:"state_file"`
	NextAction string `json:"next_action"`
}

type readyToFinalize struct {
	Type       string             `json:"type"`
	SessionID  string             `json:"session_id"`
	StateFile  string             `json:"state_file"`
	NextAction session.NextAction `json:"next_action"`
}

// resume loads the newest session for the input file, or returns nil when
// there is none or the input changed under it.
func (a *app) resume(input string) (*session.Session, error) {
	path, err := session.FindLatest(input)
	if err != nil || path == "" {
		return nil, err
	}
	sess, err := session.Load(path, a.sessionOptions())
	if errors.Is(err, session.ErrInputChanged) {
		logWarning("Input changed since session %s was created; starting a new session", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st := sess.State()
	logInfo("Resuming session %s (%d/%d batches complete)", st.SessionID, st.CompletedCount(), st.TotalBatches)
	return sess, nil
}

func newOneshotCmd(a *app) *cobra.Command {
	var (
		f     initFlags
		batch int
		fresh bool
	)
	cmd := &cobra.Command{
		Use:   "oneshot",
		Short: "Create or resume a session and print the next batch",
		Long: `Reuse the newest session for the input file (unless --new), or create one,
then print the next batch followed by a #STATUS line. When nothing is left
to translate, print a ready_to_finalize JSON object instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var sess *session.Session
			var err error
			if !fresh {
				if sess, err = a.resume(f.input); err != nil {
					return err
				}
			}
			if sess == nil {
				if sess, err = a.create(cmd, &f); err != nil || sess == nil {
					return err
				}
			}

			n := batch
			if n == 0 {
				n = sess.State().NextPending()
			}
			if n == 0 {
				logInfo("All batches complete. Run: %s", sess.FinalizeCommand())
				return printJSON(out, readyToFinalize{
					Type:      "ready_to_finalize",
					SessionID: sess.ID(),
					StateFile: sess.Path(),
					NextAction: session.NextAction{
						Command:     sess.FinalizeCommand(),
						Description: "Generate final translated file",
					},
				})
			}

			text, err := sess.GetBatch(n)
			if err != nil {
				return err
			}
			status, err := json.Marshal(oneshotStatus{
				SessionID:  sess.ID(),
				Batch:      n,
				Total:      sess.State().TotalBatches,
				StateFile:  sess.Path(),
				NextAction: session.ActionTranslate,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s\n#STATUS:%s\n", text, status)
			return err
		},
	}
	addInitFlags(cmd, &f)
	cmd.Flags().IntVarP(&batch, "batch", "b", 0, "Batch to print (default: the next pending batch)")
	cmd.Flags().BoolVar(&fresh, "new", false, "Always create a new session")
	return cmd
}

// ---------------------------------------------------------------------------
// serve (MCP over stdio)
// ---------------------------------------------------------------------------

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the session operations as MCP tools on stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing
localize_init, localize_batch, localize_submit, localize_status,
localize_finalize and localize_formats.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := a.sessionOptions()
			opts.Tokenizer = a.tokenizer()
			srv, err := mcpserver.New(mcpserver.Config{
				Name:    "cli-localize",
				Version: version,
				Logger:  a.log,
				Session: opts,
				Defaults: mcpserver.Defaults{
					SourceLang:   a.cfg.SourceLang,
					TargetLang:   a.cfg.TargetLang,
					Format:       a.cfg.Format,
					ContextSize:  a.cfg.ContextSize,
					TargetTokens: a.cfg.TargetTokens,
					BatchSize:    a.cfg.BatchSize,
				},
			})
			if err != nil {
				return err
			}
			logInfo("Serving MCP tools on stdio")
			return srv.Run(ctx)
		},
	}
}
