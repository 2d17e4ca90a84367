// Package langmeta provides a shared language metadata registry (English
// and native names) used in translation prompts, YAML locale detection and
// CLI output.
package langmeta

import "strings"

// Meta describes language display metadata.
type Meta struct {
	English string
	Native  string
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"af":    {"Afrikaans", "Afrikaans"},
	"am":    {"Amharic", "አማርኛ"},
	"ar":    {"Arabic", "العربية"},
	"az":    {"Azerbaijani", "Azərbaycanca"},
	"be":    {"Belarusian", "Беларуская"},
	"bg":    {"Bulgarian", "Български"},
	"bn":    {"Bengali", "বাংলা"},
	"bs":    {"Bosnian", "Bosanski"},
	"ca":    {"Catalan", "Català"},
	"cs":    {"Czech", "Čeština"},
	"cy":    {"Welsh", "Cymraeg"},
	"da":    {"Danish", "Dansk"},
	"de":    {"German", "Deutsch"},
	"de-AT": {"German (Austria)", "Deutsch (Österreich)"},
	"de-CH": {"German (Switzerland)", "Deutsch (Schweiz)"},
	"el":    {"Greek", "Ελληνικά"},
	"en":    {"English", "English"},
	"en-GB": {"English (UK)", "English (UK)"},
	"en-US": {"English (US)", "English (US)"},
	"es":    {"Spanish", "Español"},
	"es-MX": {"Spanish (Mexico)", "Español (México)"},
	"et":    {"Estonian", "Eesti"},
	"eu":    {"Basque", "Euskara"},
	"fa":    {"Persian", "فارسی"},
	"fi":    {"Finnish", "Suomi"},
	"fil":   {"Filipino", "Filipino"},
	"fr":    {"French", "Français"},
	"fr-CA": {"French (Canada)", "Français (Canada)"},
	"ga":    {"Irish", "Gaeilge"},
	"gl":    {"Galician", "Galego"},
	"gu":    {"Gujarati", "ગુજરાતી"},
	"he":    {"Hebrew", "עברית"},
	"hi":    {"Hindi", "हिन्दी"},
	"hr":    {"Croatian", "Hrvatski"},
	"hu":    {"Hungarian", "Magyar"},
	"hy":    {"Armenian", "Հայերեն"},
	"id":    {"Indonesian", "Bahasa Indonesia"},
	"is":    {"Icelandic", "Íslenska"},
	"it":    {"Italian", "Italiano"},
	"ja":    {"Japanese", "日本語"},
	"ka":    {"Georgian", "ქართული"},
	"kk":    {"Kazakh", "Қазақ тілі"},
	"km":    {"Khmer", "ខ្មែរ"},
	"kn":    {"Kannada", "ಕನ್ನಡ"},
	"ko":    {"Korean", "한국어"},
	"lt":    {"Lithuanian", "Lietuvių"},
	"lv":    {"Latvian", "Latviešu"},
	"mk":    {"Macedonian", "Македонски"},
	"ml":    {"Malayalam", "മലയാളം"},
	"mn":    {"Mongolian", "Монгол"},
	"mr":    {"Marathi", "मराठी"},
	"ms":    {"Malay", "Bahasa Melayu"},
	"my":    {"Burmese", "မြန်မာ"},
	"nb":    {"Norwegian Bokmål", "Norsk bokmål"},
	"ne":    {"Nepali", "नेपाली"},
	"nl":    {"Dutch", "Nederlands"},
	"no":    {"Norwegian", "Norsk"},
	"pa":    {"Punjabi", "ਪੰਜਾਬੀ"},
	"pl":    {"Polish", "Polski"},
	"pt":    {"Portuguese", "Português"},
	"pt-BR": {"Portuguese (Brazil)", "Português (Brasil)"},
	"pt-PT": {"Portuguese (Portugal)", "Português (Portugal)"},
	"ro":    {"Romanian", "Română"},
	"ru":    {"Russian", "Русский"},
	"si":    {"Sinhala", "සිංහල"},
	"sk":    {"Slovak", "Slovenčina"},
	"sl":    {"Slovenian", "Slovenščina"},
	"sq":    {"Albanian", "Shqip"},
	"sr":    {"Serbian", "Српски"},
	"sv":    {"Swedish", "Svenska"},
	"sw":    {"Swahili", "Kiswahili"},
	"ta":    {"Tamil", "தமிழ்"},
	"te":    {"Telugu", "తెలుగు"},
	"th":    {"Thai", "ไทย"},
	"tr":    {"Turkish", "Türkçe"},
	"uk":    {"Ukrainian", "Українська"},
	"ur":    {"Urdu", "اردو"},
	"uz":    {"Uzbek", "Oʻzbekcha"},
	"vi":    {"Vietnamese", "Tiếng Việt"},
	"zh":    {"Chinese", "中文"},
	"zh-CN": {"Chinese (Simplified)", "简体中文"},
	"zh-TW": {"Chinese (Traditional)", "繁體中文"},
	"zu":    {"Zulu", "isiZulu"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

func lookup(lang string) (Meta, bool) {
	if m, ok := Registry[lang]; ok {
		return m, true
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m, true
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m, true
		}
	}
	return Meta{}, false
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks. Unknown codes
// are returned as their own name.
func Resolve(lang string) Meta {
	if m, ok := lookup(lang); ok {
		return m
	}
	return Meta{English: lang, Native: lang}
}

// Known reports whether lang (or its base language) is in the registry.
func Known(lang string) bool {
	_, ok := lookup(lang)
	return ok
}

// DisplayName names a language for prompts and status lines, e.g.
// "Turkish (Türkçe)". Unknown codes are returned unchanged.
func DisplayName(lang string) string {
	m, ok := lookup(lang)
	switch {
	case !ok:
		return lang
	case m.English == m.Native:
		return m.English
	default:
		return m.English + " (" + m.Native + ")"
	}
}
