package scanning

import "context"

// Scanner defines the interface for OCR text extraction. Implementations
// transcribe a receipt image into plain text; deciding whether that text is
// a receipt and parsing it into items happen downstream, not in the adapter.
type Scanner interface {
	// ExtractText transcribes a receipt image/PDF into raw text. The
	// context carries the caller's cancellation; adapters layer their own
	// upper-bound timeout on top of it.
	ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error)
	// Close closes the scanner and releases resources
	Close() error
}
