package protocol

import "context"

// Translator converts workflow content between languages for localization
// nodes. Implementations wrap whatever translation backend the deployment
// uses.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage, targetLanguage string) (string, error)
}
