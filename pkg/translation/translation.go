// Package translation provides translator implementations for localization
// nodes.
package translation

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoTranslation is returned when a static translator has no entry for
// the requested text and language.
var ErrNoTranslation = errors.New("no translation available")

// StaticTranslator serves translations from an in-memory table keyed by
// target language and source text. Used for development and tests;
// production deployments plug a real backend into protocol.Translator.
type StaticTranslator struct {
	// entries maps target language -> source text -> translated text.
	entries map[string]map[string]string

	// Passthrough controls behavior on a miss: when true the source text
	// is returned tagged with the language, otherwise the miss is an
	// error.
	Passthrough bool
}

func NewStaticTranslator(entries map[string]map[string]string) *StaticTranslator {
	if entries == nil {
		entries = make(map[string]map[string]string)
	}

	return &StaticTranslator{entries: entries, Passthrough: true}
}

func (t *StaticTranslator) Translate(_ context.Context, text, _, targetLanguage string) (string, error) {
	if byText, ok := t.entries[targetLanguage]; ok {
		if translated, ok := byText[text]; ok {
			return translated, nil
		}
	}

	if t.Passthrough {
		return fmt.Sprintf("[%s] %s", targetLanguage, text), nil
	}

	return "", fmt.Errorf("%w: %q into %s", ErrNoTranslation, text, targetLanguage)
}
