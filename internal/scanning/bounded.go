package scanning

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout bounds a single recognition
const DefaultTimeout = 60 * time.Second

// ProgressFunc receives recognition progress as a percentage
type ProgressFunc func(percent int)

// Bounded wraps a Recognizer so no call outlives Timeout, even when the
// engine ignores its context (Tesseract runs in cgo and cannot be
// interrupted).
type Bounded struct {
	Recognizer Recognizer
	Timeout    time.Duration
	Progress   ProgressFunc
}

type recognizeResult struct {
	recognition Recognition
	err         error
}

// Recognize runs the wrapped engine in its own goroutine and gives up once
// Timeout elapses. An abandoned call finishes in the background and its
// result is discarded.
func (b *Bounded) Recognize(ctx context.Context, image []byte, language string) (Recognition, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b.report(0)
	done := make(chan recognizeResult, 1)
	go func() {
		r, err := b.Recognizer.Recognize(ctx, image, language)
		done <- recognizeResult{recognition: r, err: err}
	}()

	select {
	case <-ctx.Done():
		return Recognition{}, fmt.Errorf("%w: %w", ErrRecognitionFailed, ctx.Err())
	case res := <-done:
		if res.err != nil {
			if !errors.Is(res.err, ErrRecognitionFailed) {
				res.err = fmt.Errorf("%w: %w", ErrRecognitionFailed, res.err)
			}
			return Recognition{}, res.err
		}
		b.report(100)
		return res.recognition, nil
	}
}

func (b *Bounded) report(percent int) {
	if b.Progress != nil {
		b.Progress(percent)
	}
}

// Close closes the wrapped Recognizer
func (b *Bounded) Close() error {
	return b.Recognizer.Close()
}
