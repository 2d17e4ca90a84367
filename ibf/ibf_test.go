package ibf

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	got := Encode(Request{
		SourceLang:    "en",
		TargetLang:    "tr",
		BatchNum:      1,
		TotalBatches:  10,
		ContextSize:   3,
		ContextBefore: []Entry{{ID: "49", Text: "Please welcome John!"}},
		Entries: []Entry{
			{ID: "50", Text: "Hello, how are you?"},
			{ID: "51", Text: "Line one\nLine two"},
		},
		ContextAfter: []Entry{{ID: "52", Text: "Let's get started."}},
	})

	want := strings.Join([]string{
		"#TRANSLATE:v1:en>tr:batch=1/10:entries=2:ctx=3",
		"@context_before",
		"[49] Please welcome John!",
		"@translate",
		"[50] Hello, how are you?",
		`[51] Line one\nLine two`,
		"@context_after",
		"[52] Let's get started.",
		"---",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestEncodeOmitsEmptyContext(t *testing.T) {
	got := Encode(Request{SourceLang: "en", TargetLang: "de", BatchNum: 2, TotalBatches: 2, ContextSize: 10,
		Entries: []Entry{{ID: "k", Text: ""}}})
	assert.Equal(t, "#TRANSLATE:v1:en>de:batch=2/2:entries=1:ctx=10\n@translate\n[k] \n---", got)
	assert.NotContains(t, got, SectionBefore)
	assert.NotContains(t, got, SectionAfter)
}

func TestEncodeSingleLineRecords(t *testing.T) {
	entries := []Entry{
		{ID: "a\nb", Text: "x"},
		{ID: "2", Text: "one\ntwo\nthree"},
		{ID: "3", Text: "tab\there"},
	}
	out := Encode(Request{Entries: entries, BatchNum: 1, TotalBatches: 1})
	lines := strings.Split(out, "\n")
	// header, @translate, three records, delimiter
	assert.Len(t, lines, 6)
	assert.Equal(t, `[a\nb] x`, lines[2])
	assert.Equal(t, "[3] tab\there", lines[4])
}

func TestRoundTrip(t *testing.T) {
	entries := []Entry{
		{ID: "1", Text: "Hello"},
		{ID: "a\nb", Text: "x"},
		{ID: "multi", Text: "first\nsecond"},
		{ID: "tabbed", Text: "col1\tcol2"},
		{ID: "empty", Text: ""},
		{ID: "menu.file.open", Text: "Open {{name}}"},
	}
	var b strings.Builder
	b.WriteString("#TRANSLATED:v1:batch=1/1:count=6:status=ok\n")
	for _, e := range entries {
		b.WriteString(FormatEntry(e) + "\n")
	}
	b.WriteString("---")

	d, err := Decode(b.String())
	require.NoError(t, err)
	assert.Equal(t, entries, d.Entries)
}

func TestDecodeScenario(t *testing.T) {
	d, err := Decode("#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] Merhaba\n---")
	require.NoError(t, err)
	assert.True(t, d.HasHeader)
	assert.Equal(t, []Entry{{ID: "1", Text: "Merhaba"}}, d.Entries)
	assert.Equal(t, 1, d.Meta.BatchNum)
	assert.Equal(t, 1, d.Meta.EntryCount)
	assert.Equal(t, "ok", d.Meta.Status)
	assert.Empty(t, Validate([]string{"1"}, d.Entries, 1, 1, &d.Meta))
}

func TestDecodeEmptyText(t *testing.T) {
	d, err := Decode("#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[k]\n---")
	require.NoError(t, err)
	require.Len(t, d.Entries, 1)
	assert.Equal(t, "k", d.Entries[0].ID)
	assert.Equal(t, "", d.Entries[0].Text)
}

func TestDecodeSkipsNonEntries(t *testing.T) {
	d, err := Decode("#TRANSLATED:v1:batch=3/4:count=2:status=ok\n@translate\nsome chatter\n  [a]   spaced  \n[b] b\n---")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{ID: "a", Text: "spaced"}, {ID: "b", Text: "b"}}, d.Entries)
	assert.Equal(t, 3, d.Meta.BatchNum)
	assert.Equal(t, 4, d.Meta.TotalBatches)
}

func TestDecodeDefaultsWithoutHeader(t *testing.T) {
	d, err := Decode("[1] x\n---")
	require.NoError(t, err)
	assert.False(t, d.HasHeader)
	assert.Equal(t, DefaultMetadata(), d.Meta)
	assert.Len(t, d.Entries, 1)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode("#TRANSLATED:v1:batch=99999999999999999999999/1:count=1:status=ok\n[1] x\n---")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Line)

	_, err = Decode("#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] \xff\n---")
	require.ErrorAs(t, err, &de)
}

func TestValidateFileFormat(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kinds   []ErrorKind
		lines   []int
	}{
		{"valid", "#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] Merhaba\n---", nil, nil},
		{"empty text valid", "#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1]\n---", nil, nil},
		{"blank lines allowed", "#TRANSLATED:v1:batch=1/1:count=1:status=ok\n\n[1] x\n\n---", nil, nil},
		{"stray prose ignored", "#TRANSLATED:v1:batch=1/1:count=1:status=ok\nHere you go:\n[1] x\n---", nil, nil},
		{"empty", "  \n\t", []ErrorKind{EmptyFile}, []int{1}},
		{"missing header", "[1] x\n---", []ErrorKind{MissingHeader}, []int{1}},
		{"invalid header", "#TRANSLATED:v2:batch=1\n[1] x\n---", []ErrorKind{InvalidHeader}, []int{1}},
		{"missing delimiter", "#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] x", []ErrorKind{MissingDelimiter}, []int{2}},
		{"malformed bracket", "#TRANSLATED:v1:batch=1/1:count=2:status=ok\n[1 x\n[2] y\n---", []ErrorKind{MalformedEntry}, []int{2}},
		{"malformed digit", "#TRANSLATED:v1:batch=1/1:count=1:status=ok\n1. x\n---", []ErrorKind{MalformedEntry}, []int{2}},
		{"extra content", "#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] x\n---\nHope this helps!", []ErrorKind{ExtraContent}, []int{4}},
		{"header and delimiter missing", "1) x", []ErrorKind{MissingHeader, MissingDelimiter, MalformedEntry}, []int{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := ValidateFileFormat(tt.content)
			var kinds []ErrorKind
			var lines []int
			for _, is := range issues {
				kinds = append(kinds, is.Kind)
				lines = append(lines, is.Line)
				assert.NotEmpty(t, is.Fix)
				assert.Equal(t, CategoryStructural, is.Kind.Category())
			}
			assert.Equal(t, tt.kinds, kinds)
			assert.Equal(t, tt.lines, lines)
		})
	}
}

func TestValidateFileFormatMessages(t *testing.T) {
	long := strings.Repeat("ş", 80)
	issues := ValidateFileFormat(long + "\n---")
	require.Len(t, issues, 1)
	assert.Equal(t, "Invalid header: '"+strings.Repeat("ş", 50)+"...'", issues[0].Message)
	assert.Equal(t, "First line must be: #TRANSLATED:v1:batch=N/M:count=X:status=ok", issues[0].Fix)
}

func TestIssueJSON(t *testing.T) {
	data, err := json.Marshal(Issue{Line: 2, Kind: MalformedEntry, Message: "m", Fix: "f"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"line":2,"type":"MALFORMED_ENTRY","message":"m","fix":"f"}`, string(data))
}

func TestExtractFromResponse(t *testing.T) {
	tests := []struct {
		name, raw, want string
	}{
		{
			"chatter around block",
			"Sure! Here is the translation:\n#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] Merhaba\n---\nLet me know!",
			"#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] Merhaba\n---",
		},
		{"no delimiter", "x #TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] a", "#TRANSLATED:v1:batch=1/1:count=1:status=ok\n[1] a"},
		{"entry fallback", "Output:\n[1] a\n[2] b\n---\nbye", "[1] a\n[2] b\n---"},
		{"nothing found", "I cannot translate this.", "I cannot translate this."},
		{
			"dashes inside text",
			"#TRANSLATED:v1:batch=1/1:count=2:status=ok\n[a] Tamam\n[b] Bekle --- ne?\n---\nthanks",
			"#TRANSLATED:v1:batch=1/1:count=2:status=ok\n[a] Tamam\n[b] Bekle --- ne?\n---",
		},
		{"indented delimiter", "[1] a\n  ---  \nbye", "[1] a\n---"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromResponse(tt.raw))
		})
	}
}

func TestValidate(t *testing.T) {
	meta := &Metadata{BatchNum: 2, EntryCount: 3}

	t.Run("symmetric", func(t *testing.T) {
		entries := []Entry{{ID: "3", Text: "c"}, {ID: "1", Text: ""}, {ID: "2", Text: "b"}}
		assert.Empty(t, Validate([]string{"1", "2", "3"}, entries, 2, 5, meta))
	})

	t.Run("hallucinated and missing", func(t *testing.T) {
		entries := []Entry{{ID: "1"}, {ID: "99"}, {ID: "2"}}
		issues := Validate([]string{"1", "2", "3"}, entries, 2, 5, meta)
		require.Len(t, issues, 2)
		assert.Equal(t, MissingIDs, issues[0].Kind)
		assert.Equal(t, []string{"3"}, issues[0].IDs)
		assert.Equal(t, `Missing entry IDs: ["3"]`, issues[0].Message)
		assert.Equal(t, HallucinatedIDs, issues[1].Kind)
		assert.Equal(t, []string{"99"}, issues[1].IDs)
		assert.Equal(t, `Remove entries with IDs: ["99"] - these were not requested`, issues[1].Fix)
		assert.Equal(t, CategoryContent, issues[1].Kind.Category())
	})

	t.Run("batch and counts", func(t *testing.T) {
		issues := Validate([]string{"1", "2"}, []Entry{{ID: "1"}}, 3, 0, &Metadata{BatchNum: 2, EntryCount: 2})
		var kinds []ErrorKind
		for _, is := range issues {
			kinds = append(kinds, is.Kind)
		}
		assert.Equal(t, []ErrorKind{BatchMismatch, CountMismatch, MissingIDs, HeaderCountMismatch}, kinds)
		assert.Equal(t, "Header should have batch=3/?", issues[0].Fix)
		assert.Equal(t, 1, issues[0].Line)
		assert.Equal(t, 0, issues[1].Line)
		assert.Equal(t, `File must contain exactly 2 entries with IDs: ["1", "2"]`, issues[1].Fix)
		assert.Equal(t, "Header declares count=2 but file has 1 entries", issues[3].Message)
	})

	t.Run("nil metadata skips header checks", func(t *testing.T) {
		assert.Empty(t, Validate([]string{"1"}, []Entry{{ID: "1"}}, 7, 9, nil))
	})
}

func TestCheck(t *testing.T) {
	requested := []string{"1", "2"}

	r := Check("ok:\n#TRANSLATED:v1:batch=1/2:count=2:status=ok\n[1] a\n[2] b\n---", requested, 1, 2)
	assert.False(t, r.OK(), "leading chatter before the header fails structural validation")
	assert.Equal(t, CategoryStructural, r.Failure)

	r = Check("#TRANSLATED:v1:batch=1/2:count=2:status=ok\n[1] a\n[2] b\n---", requested, 1, 2)
	require.True(t, r.OK())
	assert.Len(t, r.Decoded.Entries, 2)

	r = Check("#TRANSLATED:v1:batch=1/2:count=3:status=ok\n[1] a\n[2] b\n[99] c\n---", requested, 1, 2)
	assert.Equal(t, CategoryContent, r.Failure)

	r = Check("#TRANSLATED:v1:batch=1/99999999999999999999999:count=2:status=ok\n[1] a\n[2] b\n---", requested, 1, 2)
	assert.Equal(t, CategoryDecode, r.Failure)
	require.Len(t, r.Issues, 1)
	assert.Equal(t, DecodeFailure, r.Issues[0].Kind)
	assert.Error(t, r.Err)
}

func TestValidID(t *testing.T) {
	for _, id := range []string{"1", "nav.home", "menu|Open", "list[0]", "name#plural#one", "Hello world"} {
		assert.True(t, ValidID(id), id)
	}
	for _, id := range []string{"", "Name: ", " lead", "[Error] failed", `a\nb`} {
		assert.False(t, ValidID(id), id)
	}

	// Every valid id decodes back to itself.
	for _, id := range []string{"menu|Open", "list[0]", "line\nbreak"} {
		require.True(t, ValidID(id), id)
		d, err := Decode("#TRANSLATED:v1:batch=1/1:count=1:status=ok\n" + FormatEntry(Entry{ID: id, Text: "x"}) + "\n---")
		require.NoError(t, err)
		require.Len(t, d.Entries, 1)
		assert.Equal(t, id, d.Entries[0].ID)
	}
}

func TestCheck_DashesInText(t *testing.T) {
	raw := "#TRANSLATED:v1:batch=1/1:count=2:status=ok\n[a] Tamam\n[b] Bekle --- ne?\n---"
	r := Check(raw, []string{"a", "b"}, 1, 1)
	require.True(t, r.OK(), "%+v", r.Issues)
	assert.Equal(t, []Entry{{ID: "a", Text: "Tamam"}, {ID: "b", Text: "Bekle --- ne?"}}, r.Decoded.Entries)
}
