// Package speech defines the contract towards the external speech
// recognition service.
package speech

import "context"

// Recognizer transcribes an audio buffer in the given language.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, language string) (string, error)
}
