package i18n

import "testing"

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
}

func TestDetectLanguagePriorityAndNormalization(t *testing.T) {
	t.Run("LANGUAGE has highest priority", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")

		if got := detectLanguage(); got != "ru_RU" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "ru_RU")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "C")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")

		if got := detectLanguage(); got != "fr_FR" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "fr_FR")
		}
	})

	t.Run("modifier is stripped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANG", "sr_RS@latin")

		if got := detectLanguage(); got != "sr_RS" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "sr_RS")
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "en")
		}
	})
}

func TestTAndNFallbackWhenUninitialized(t *testing.T) {
	old := po
	po = nil
	t.Cleanup(func() { po = old })

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T fallback = %q, want %q", got, "Hello")
	}

	if got := N("file", "files", 1); got != "file" {
		t.Fatalf("N singular fallback = %q, want %q", got, "file")
	}

	if got := N("file", "files", 2); got != "files" {
		t.Fatalf("N plural fallback = %q, want %q", got, "files")
	}

	if got := T("Batch %d accepted", 4); got != "Batch 4 accepted" {
		t.Fatalf("T fallback with args = %q, want %q", got, "Batch 4 accepted")
	}
	if got := N("%d batch", "%d batches", 3, 3); got != "3 batches" {
		t.Fatalf("N fallback with args = %q, want %q", got, "3 batches")
	}
}

func TestTurkishCatalog(t *testing.T) {
	old, oldLang := po, lang
	t.Cleanup(func() { po, lang = old, oldLang })

	Init("tr")
	if got := Lang(); got != "tr" {
		t.Fatalf("Lang() = %q, want %q", got, "tr")
	}
	if got := T("Batch %d accepted", 3); got != "3. parti kabul edildi" {
		t.Fatalf("T(tr) = %q, want %q", got, "3. parti kabul edildi")
	}
	if got := T("Output written to %s", "de.json"); got != "Çıktı de.json dosyasına yazıldı" {
		t.Fatalf("T(tr) = %q", got)
	}
	if got := T("Not in the catalog"); got != "Not in the catalog" {
		t.Fatalf("T(untranslated) = %q, want passthrough", got)
	}
}

func TestUnknownLanguagePassesThrough(t *testing.T) {
	old, oldLang := po, lang
	t.Cleanup(func() { po, lang = old, oldLang })

	Init("xx")
	if got := T("Session %s created: %d entries in %d batches", "ab", 3, 2); got != "Session ab created: 3 entries in 2 batches" {
		t.Fatalf("T(xx) = %q", got)
	}
}
