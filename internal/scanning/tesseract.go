package scanning

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements the Recognizer interface using a local Tesseract install
type Tesseract struct {
	defaultLanguage string
}

// NewTesseract creates a new Tesseract Recognizer. language is used when a
// call passes no hint.
func NewTesseract(language string) *Tesseract {
	if language == "" {
		language = DefaultLanguage
	}
	return &Tesseract{defaultLanguage: language}
}

// Recognize runs Tesseract over the image. A gosseract client is not safe for
// concurrent use, so each call gets its own.
func (t *Tesseract) Recognize(ctx context.Context, image []byte, language string) (Recognition, error) {
	if err := ctx.Err(); err != nil {
		return Recognition{}, fmt.Errorf("%w: %w", ErrRecognitionFailed, err)
	}
	if language == "" {
		language = t.defaultLanguage
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(language); err != nil {
		return Recognition{}, fmt.Errorf("%w: setting language %q: %w", ErrRecognitionFailed, language, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return Recognition{}, fmt.Errorf("%w: loading image: %w", ErrRecognitionFailed, err)
	}

	text, err := client.Text()
	if err != nil {
		return Recognition{}, fmt.Errorf("%w: reading text: %w", ErrRecognitionFailed, err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return Recognition{}, fmt.Errorf("%w: reading word confidences: %w", ErrRecognitionFailed, err)
	}

	return Recognition{Text: text, Confidence: meanConfidence(boxes)}, nil
}

func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	if len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}

// Close is a no-op, clients live for a single call
func (t *Tesseract) Close() error {
	return nil
}
