// Package config loads cli-localize settings.
//
// Settings come from three layers, later layers winning:
//
//  1. built-in defaults (see Default)
//  2. a YAML file: the --config path, or .cli-localize.yaml in the
//     working directory when present
//  3. CLI_LOCALIZE_* environment variables (CLI_LOCALIZE_TARGET_TOKENS=8000)
//
// Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// FileName is the config file looked up in the working directory.
const FileName = ".cli-localize.yaml"

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "CLI_LOCALIZE_"

// Config holds every tunable setting.
type Config struct {
	// SourceLang and TargetLang are used when --lang is not given.
	SourceLang string `koanf:"source_lang"`
	TargetLang string `koanf:"target_lang"`

	// Format forces a handler by name; "auto" detects it from the input.
	Format string `koanf:"format"`

	ContextSize  int `koanf:"context_size"`
	TargetTokens int `koanf:"target_tokens"`
	// BatchSize > 0 switches to fixed-size batches of that many entries.
	BatchSize int `koanf:"batch_size"`
	// Tokenizer is "heuristic" or a tiktoken encoding name.
	Tokenizer string `koanf:"tokenizer"`

	LockTimeout    time.Duration `koanf:"lock_timeout"`
	LockStaleAfter time.Duration `koanf:"lock_stale_after"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// MetricsFile receives Prometheus text metrics at exit when set.
	MetricsFile string `koanf:"metrics_file"`

	// UILang overrides the language of human-facing messages.
	UILang string `koanf:"ui_lang"`

	// Source names where the file layer came from, "" when none was read.
	Source string `koanf:"-"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		SourceLang:     "en",
		TargetLang:     "tr",
		Format:         "auto",
		ContextSize:    10,
		TargetTokens:   5000,
		Tokenizer:      "cl100k_base",
		LockTimeout:    10 * time.Second,
		LockStaleAfter: 2 * time.Minute,
		LogLevel:       "warn",
		LogFormat:      "console",
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load builds the configuration. An explicit path must exist; otherwise
// FileName is looked up in dir and skipped when missing.
func Load(path, dir string) (*Config, error) {
	k := koanf.New(".")

	source := ""
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		source = path
	} else {
		candidate := filepath.Join(dir, FileName)
		data, err := os.ReadFile(candidate)
		switch {
		case err == nil:
			if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", candidate, err)
			}
			source = candidate
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading %s: %w", candidate, err)
		}
	}

	// CLI_LOCALIZE_TARGET_TOKENS -> target_tokens
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges. Errors are prefixed with the config
// source so the offending file is obvious.
func (c *Config) Validate() error {
	src := c.Source
	if src == "" {
		src = "config"
	}
	if c.ContextSize < 0 {
		return fmt.Errorf("%s: context_size must not be negative, got %d", src, c.ContextSize)
	}
	if c.TargetTokens <= 0 {
		return fmt.Errorf("%s: target_tokens must be positive, got %d", src, c.TargetTokens)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%s: batch_size must not be negative, got %d", src, c.BatchSize)
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("%s: lock_timeout must be positive, got %s", src, c.LockTimeout)
	}
	if c.LockStaleAfter <= 0 {
		return fmt.Errorf("%s: lock_stale_after must be positive, got %s", src, c.LockStaleAfter)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%s: unknown log_level %q (valid: debug, info, warn, error)", src, c.LogLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%s: unknown log_format %q (valid: console, json)", src, c.LogFormat)
	}
	if c.SourceLang != "" && !isLangCode(c.SourceLang) {
		return fmt.Errorf("%s: source_lang %q is not a language code", src, c.SourceLang)
	}
	if c.TargetLang != "" && !isLangCode(c.TargetLang) {
		return fmt.Errorf("%s: target_lang %q is not a language code", src, c.TargetLang)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Language pairs
// ---------------------------------------------------------------------------

// ParseLangPair splits "src>tgt". A bare code is a target with English
// as the source.
func ParseLangPair(pair string) (src, tgt string, err error) {
	pair = strings.TrimSpace(pair)
	src, tgt, found := strings.Cut(pair, ">")
	if !found {
		src, tgt = "en", pair
	}
	src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
	if !isLangCode(src) {
		return "", "", fmt.Errorf("invalid source language %q in %q", src, pair)
	}
	if !isLangCode(tgt) {
		return "", "", fmt.Errorf("invalid target language %q in %q", tgt, pair)
	}
	return src, tgt, nil
}

// isLangCode checks if a string looks like a language code (en, ru, pt_BR,
// pt-BR, zh-Hant, fil).
func isLangCode(s string) bool {
	base, region, hasRegion := strings.Cut(strings.ReplaceAll(s, "_", "-"), "-")
	if len(base) < 2 || len(base) > 3 {
		return false
	}
	for _, r := range base {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	if !hasRegion {
		return true
	}
	if len(region) < 2 || len(region) > 4 {
		return false
	}
	for _, r := range region {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
