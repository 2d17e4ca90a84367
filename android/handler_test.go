package android

import (
	"strings"
	"testing"
)

const handlerSample = `<?xml version="1.0" encoding="utf-8"?>
<resources>
    <!-- Shown on the home screen -->
    <string name="greeting">Hello, %1$s!</string>
    <string name="app_name" translatable="false">MyApp</string>
    <plurals name="songs">
        <item quantity="one">%d song</item>
        <item quantity="other">%d songs</item>
    </plurals>
    <string-array name="days">
        <item>Monday</item>
        <item>Tuesday</item>
    </string-array>
</resources>
`

func TestHandler_Parse(t *testing.T) {
	entries, err := New().Parse([]byte(handlerSample))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	want := []struct{ id, text, context string }{
		{"greeting", "Hello, %1$s!", "Shown on the home screen"},
		{"songs#plural#one", "%d song", ""},
		{"songs#plural#other", "%d songs", ""},
		{"days.0", "Monday", ""},
		{"days.1", "Tuesday", ""},
	}
	if len(entries) != len(want) {
		t.Fatalf("Parse() returned %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		e := entries[i]
		if e.ID != w.id || e.Text != w.text || e.Context != w.context {
			t.Errorf("entry %d = {%q %q %q}, want {%q %q %q}", i, e.ID, e.Text, e.Context, w.id, w.text, w.context)
		}
	}
}

func TestHandler_Reconstruct(t *testing.T) {
	h := New()
	entries, err := h.Parse([]byte(handlerSample))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	out, err := h.Reconstruct(entries, map[string]string{
		"greeting":           "Merhaba, %1$s!",
		"songs#plural#other": "%d şarkı",
		"days.1":             "Salı",
	}, "tr")
	if err != nil {
		t.Fatalf("Reconstruct error: %v", err)
	}

	f, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse of output error: %v\n%s", err, out)
	}
	if v, _ := f.Get("greeting"); v != "Merhaba, %1$s!" {
		t.Errorf("greeting = %q", v)
	}
	if v, _ := f.Get("app_name"); v != "MyApp" {
		t.Errorf("app_name = %q, want MyApp", v)
	}
	if e := f.GetEntry("app_name"); e == nil || e.Translatable {
		t.Errorf("app_name should stay translatable=false")
	}
	songs := f.GetEntry("songs")
	if songs.Plurals["one"] != "%d song" || songs.Plurals["other"] != "%d şarkı" {
		t.Errorf("songs = %v", songs.Plurals)
	}
	days := f.GetEntry("days")
	if strings.Join(days.Items, ",") != "Monday,Salı" {
		t.Errorf("days = %v", days.Items)
	}
	if !strings.Contains(string(out), "<!-- Shown on the home screen -->") {
		t.Errorf("comment not preserved:\n%s", out)
	}

	// The source document is left untouched for a later finalize.
	again, err := h.Reconstruct(entries, nil, "tr")
	if err != nil {
		t.Fatalf("Reconstruct error: %v", err)
	}
	if !strings.Contains(string(again), "Hello, %1$s!") {
		t.Errorf("source document was mutated:\n%s", again)
	}
}

func TestHandler_ValidatePlaceholders(t *testing.T) {
	got := New().ValidatePlaceholders("Hello %1$s, you have %d", "Merhaba")
	want := []string{
		"Missing placeholder in translation: %1$s",
		"Missing placeholder in translation: %d",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("ValidatePlaceholders() = %q, want %q", got, want)
	}
}
