// Package translate defines the contract towards the external translation
// service and the language-code helpers shared across the core.
package translate

import "context"

// Language pairs an ISO 639-1 code with its display name in some language.
type Language struct {
	Code string
	Name string
}

// Translator is the external translation service.
type Translator interface {
	// Translate renders text from the "from" language into the "to"
	// language. Codes are two-letter ISO 639-1.
	Translate(ctx context.Context, text, to, from string) (string, error)

	// Languages lists the supported languages with names localized for
	// display.
	Languages(ctx context.Context, display string) ([]Language, error)
}

var locales = map[string]string{
	"cy": "cy-GB",
	"da": "da-DK",
	"de": "de-DE",
	"en": "en-GB",
	"es": "es-ES",
	"fr": "fr-FR",
	"is": "is-IS",
	"it": "it-IT",
	"ja": "ja-JP",
	"nb": "nb-NO",
	"nl": "nl-NL",
	"pt": "pt-PT",
	"ro": "ro-RO",
	"ru": "ru-RU",
	"sv": "sv-SE",
	"tr": "tr-TR",
}

// Locale resolves a two-letter language code to its BCP-47 locale. Unknown
// codes resolve to themselves so downstream collaborators can still attempt
// a best-effort match.
func Locale(language string) string {
	if locale, ok := locales[language]; ok {
		return locale
	}
	return language
}
