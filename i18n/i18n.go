// Package i18n translates the human-facing messages of cli-localize.
//
// Only the colored [INFO]/[OK]/[WARN]/[ERROR] lines on stderr go through
// it; JSON and IBF output on stdout is read by agents and never
// translated. Catalogs are gettext PO files embedded in the binary under
// locales/{lang}/LC_MESSAGES/cli-localize.po.
//
// Usage:
//
//	i18n.Init("")  // auto-detect from LANGUAGE/LC_ALL/LC_MESSAGES/LANG
//	fmt.Println(i18n.T("Session %s created", id))
//	fmt.Println(i18n.N("%d batch", "%d batches", n, n))
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "cli-localize"

var (
	po   *gotext.Locale
	lang = "en"
)

// Init loads the catalog for lang. If lang is empty, it auto-detects
// from the environment variables LANGUAGE, LC_ALL, LC_MESSAGES, LANG
// (in that order, matching GNU gettext behavior).
//
// Init should be called once at program startup, before any T() or N() calls.
func Init(l string) {
	if l == "" {
		l = detectLanguage()
	}
	lang = l

	po = gotext.NewLocaleFSWithPath(l, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the language passed to (or detected by) Init.
func Lang() string { return lang }

// T translates msgid and formats it with args. Untranslated messages are
// returned unchanged.
func T(msgid string, args ...any) string {
	if po == nil {
		return sprintf(msgid, args)
	}
	return po.Get(msgid, args...)
}

// N translates a message with plural forms. The singular form is used
// when n == 1 in untranslated output; catalogs apply their own plural
// formula.
func N(singular, plural string, n int, args ...any) string {
	if po == nil {
		if n == 1 {
			return sprintf(singular, args)
		}
		return sprintf(plural, args)
	}
	return po.GetN(singular, plural, n, args...)
}

func sprintf(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		// LANGUAGE is a colon-separated preference list
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// ru_RU.UTF-8 -> ru_RU, sr_RS@latin -> sr_RS
		if idx := strings.IndexAny(val, ".@"); idx >= 0 {
			val = val[:idx]
		}
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
