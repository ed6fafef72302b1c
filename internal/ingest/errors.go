package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/zombor/bill-ingest/internal/token"
)

var (
	// ErrListingUnsupported is returned by ListRecords when the configured
	// recorder cannot read records back
	ErrListingUnsupported = errors.New("record listing not supported by this recorder")

	// ErrInvalidUpload is returned for uploads missing a token or data
	ErrInvalidUpload = errors.New("invalid upload")
)

// TokenError means extraction was never attempted because the token could not
// be used. A new token is needed.
type TokenError struct {
	Reason token.Reason
	UsedAt *time.Time
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token unusable: %s", e.Reason)
}

// RecognitionError means the OCR engine failed or timed out. The token has
// been released so the upload can be retried with it.
type RecognitionError struct {
	Err error
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("recognizing document: %v", e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}
