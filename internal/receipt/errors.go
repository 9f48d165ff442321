package receipt

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a receipt id has no stored record.
var ErrNotFound = errors.New("receipt not found")

// ValidationError marks malformed client input: non-image uploads, bodies
// that do not decode. Never retried automatically.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// ClassificationRejectedError is a designed business outcome, not a system
// failure: the classifier decided the image is not a purchase receipt.
// DetectedContent carries the best-effort guess shown to the user.
type ClassificationRejectedError struct {
	DetectedContent string
}

func (e *ClassificationRejectedError) Error() string {
	return fmt.Sprintf("the uploaded image does not appear to be a purchase receipt; it looks like %s", e.DetectedContent)
}

// AdapterError wraps OCR adapter failures. Timeout distinguishes
// "OCR service slow or down, retry later" from classification rejection so
// clients never conflate the two.
type AdapterError struct {
	Timeout bool
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("text extraction timed out: %v", e.Err)
	}
	return fmt.Sprintf("text extraction failed: %v", e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
