package formats

import (
	"fmt"
	"regexp"
)

// Pattern is a named placeholder syntax.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// Known placeholder syntaxes.
var (
	I18next     = Pattern{"i18next", regexp.MustCompile(`\{\{(\w+)\}\}`)}
	ICU         = Pattern{"icu", regexp.MustCompile(`\{(\w+)\}`)}
	ICUFull     = Pattern{"icu_full", regexp.MustCompile(`\{[^}]+\}`)}
	Printf      = Pattern{"printf", regexp.MustCompile(`%[\d$]*[sd]`)}
	PrintfNamed = Pattern{"printf_named", regexp.MustCompile(`%\((\w+)\)s`)}
	Ruby        = Pattern{"ruby", regexp.MustCompile(`%\{(\w+)\}`)}
	Laravel     = Pattern{"laravel", regexp.MustCompile(`:(\w+)`)}
	Android     = Pattern{"android", regexp.MustCompile(`%\d+\$[sd]`)}
	IOS         = Pattern{"ios", regexp.MustCompile(`%@|%d|%ld|%f`)}
)

var icuSelect = regexp.MustCompile(`\{(\w+),\s*(plural|select|selectordinal)`)

// Placeholders is an ordered set of placeholder patterns. Handlers embed it
// to implement ValidatePlaceholders.
type Placeholders []Pattern

// Extract returns every placeholder in text, in pattern order, without
// duplicates. For ICU messages with plural/select syntax only the variable
// ("{count}") is collected, not the whole message body.
func (ps Placeholders) Extract(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, p := range ps {
		if p.Name == ICUFull.Name {
			if m := icuSelect.FindAllStringSubmatch(text, -1); len(m) > 0 {
				for _, g := range m {
					add("{" + g[1] + "}")
				}
				continue
			}
		}
		for _, s := range p.Re.FindAllString(text, -1) {
			add(s)
		}
	}
	return out
}

// ValidatePlaceholders reports source placeholders absent from translation.
func (ps Placeholders) ValidatePlaceholders(source, translation string) []string {
	if len(ps) == 0 {
		return nil
	}
	have := make(map[string]bool)
	for _, s := range ps.Extract(translation) {
		have[s] = true
	}
	var missing []string
	for _, s := range ps.Extract(source) {
		if !have[s] {
			missing = append(missing, fmt.Sprintf("Missing placeholder in translation: %s", s))
		}
	}
	return missing
}
