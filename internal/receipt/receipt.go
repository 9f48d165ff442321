package receipt

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/zombor/ticket-splitter/internal/ticket"
)

// Receipt is the parsed artifact of one uploaded image. It is created once
// per upload and immutable thereafter: a correction is a fresh upload with a
// new id, never an in-place edit.
type Receipt struct {
	ID              string           `json:"receipt_id"`
	Filename        string           `json:"filename,omitempty"`
	StoredFile      string           `json:"stored_file,omitempty"`
	ContentType     string           `json:"content_type,omitempty"`
	UploadTimestamp time.Time        `json:"upload_timestamp"`
	Items           []ticket.Item    `json:"items"`
	Subtotal        *decimal.Decimal `json:"subtotal"`
	Tax             *decimal.Decimal `json:"tax"`
	Tip             *decimal.Decimal `json:"tip"`
	Total           *decimal.Decimal `json:"total"`
	RawText         string           `json:"raw_text,omitempty"`
	IsTicket        bool             `json:"is_ticket"`
	DetectedContent string           `json:"detected_content,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
}
