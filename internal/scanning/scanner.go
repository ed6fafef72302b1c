// Package scanning turns normalized bill images into raw text.
package scanning

import (
	"context"
	"errors"
	"strings"
)

// DefaultLanguage is the Tesseract language used when no hint is given
const DefaultLanguage = "spa"

// ErrRecognitionFailed wraps every error a Recognizer returns
var ErrRecognitionFailed = errors.New("recognition failed")

// Recognition is the raw output of an OCR engine
type Recognition struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"` // 0-100
}

// WordCount returns the number of whitespace-separated words in Text
func (r Recognition) WordCount() int {
	return len(strings.Fields(r.Text))
}

// Recognizer defines the interface for text recognition engines
type Recognizer interface {
	// Recognize reads the text of a normalized image. language is a hint in
	// Tesseract notation (e.g. "spa", "spa+eng").
	Recognize(ctx context.Context, image []byte, language string) (Recognition, error)
	// Close releases the engine's resources
	Close() error
}
