package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/ticket-splitter/internal/scanning"
	"github.com/zombor/ticket-splitter/internal/ticket"
)

const defaultOCRTimeout = 60 * time.Second

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates collision-free UUID ids
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Service runs the upload pipeline (extract, classify, parse, reconcile,
// persist) and the split calculation. It holds no per-request state; the
// only shared mutable state is the store, whose writes are independent per
// generated id.
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
	ocrTimeout  time.Duration
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(db, scanner, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
		ocrTimeout:  defaultOCRTimeout,
	}
}

// SetOCRTimeout overrides the upper bound on a single OCR call.
func (s *Service) SetOCRTimeout(d time.Duration) {
	if d > 0 {
		s.ocrTimeout = d
	}
}

// sanitizeFilename cleans up a filename by removing special characters and
// truncating length; phone uploads arrive with long generated names.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")
	reg = regexp.MustCompile(`\s+`)
	base = strings.TrimSpace(reg.ReplaceAllString(base, " "))

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ProcessReceipt runs the full upload pipeline for one image. Nothing is
// persisted until the classifier has accepted the image and the parse is
// done, so a cancelled upload or a rejected image leaves no partial receipt
// behind. Zero extracted items from an accepted image is not fatal: the
// receipt is stored with empty items and its raw text so the user can see
// what was read.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, data []byte, contentType string) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()

	rawText, err := s.scanner.ExtractText(ctx, data, contentType)
	if err != nil {
		slog.Error("Failed to extract text",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, &AdapterError{Timeout: true, Err: err}
		}
		return nil, &AdapterError{Err: err}
	}

	verdict := ticket.Classify(rawText)
	if !verdict.IsTicket {
		slog.Info("Image rejected by classifier", "filename", filename, "detected", verdict.DetectedContent)
		return nil, &ClassificationRejectedError{DetectedContent: verdict.DetectedContent}
	}

	parsed := ticket.Reconcile(ticket.Parse(rawText))
	if len(parsed.Items) == 0 {
		slog.Warn("No items extracted from accepted receipt", "filename", filename)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	receipt := &Receipt{
		ID:              id,
		Filename:        filename,
		StoredFile:      savedPath,
		ContentType:     contentType,
		UploadTimestamp: now,
		Items:           parsed.Items,
		Subtotal:        parsed.Subtotal,
		Tax:             parsed.Tax,
		Tip:             parsed.Tip,
		Total:           parsed.Total,
		RawText:         rawText,
		IsTicket:        true,
		Warnings:        parsed.Warnings,
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}

	return receipt, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt and its file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if receipt.StoredFile != "" {
		if err := s.storage.Delete(receipt.StoredFile); err != nil {
			slog.Warn("Failed to delete file", "filename", receipt.StoredFile, "error", err)
		}
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the original uploaded image for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.StoredFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	return data, receipt.ContentType, nil
}

// SplitReceipt computes the settlement for a stored receipt and one
// assignment snapshot. The receipt is only read, never mutated, so
// concurrent split requests against the same id are independent and the
// calculation can be re-run after every assignment edit.
func (s *Service) SplitReceipt(id string, assignments ticket.Assignments) (*ticket.SplitResult, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	result := ticket.Split(receipt.Items, receipt.Total, assignments)
	return &result, nil
}
