package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/ticket-splitter/internal/ticket"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// errorResponse is the error body shape shared by all endpoints.
// DetectedContent is only present on classification rejections.
type errorResponse struct {
	Detail          string `json:"detail"`
	DetectedContent string `json:"detected_content,omitempty"`
}

// writeError maps a pipeline error to the status and body the frontend
// contract expects. Classification rejection and adapter failure must stay
// distinguishable: only the latter is worth a client retry.
func writeError(w http.ResponseWriter, err error) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")

	resp := errorResponse{Detail: err.Error()}
	status := http.StatusInternalServerError

	var rejected *ClassificationRejectedError
	var adapter *AdapterError
	var validation *ValidationError
	switch {
	case errors.As(err, &rejected):
		status = http.StatusBadRequest
		resp.Detail = "The uploaded image does not appear to be a purchase receipt. Please upload a photo of a receipt or invoice."
		resp.DetectedContent = rejected.DetectedContent
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &adapter):
		if adapter.Timeout {
			status = http.StatusGatewayTimeout
		} else {
			status = http.StatusBadGateway
		}
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Error encoding error response", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleHealth is a liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUploadReceipt handles receipt upload: multipart form field "file"
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	// 50MB to handle high-resolution phone photos
	maxFormSize := int64(50 << 20)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		detail := "Error parsing form"
		if err.Error() == "http: request body too large" {
			detail = "File is too large. Maximum size is 50MB. Please compress or resize your image."
		}
		writeError(w, &ValidationError{Detail: detail})
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, &ValidationError{Detail: "No file was selected. Please choose a file to upload."})
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		writeError(w, &ValidationError{Detail: "File is too large. Maximum size is 50MB. Please compress or resize your image."})
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, errors.New("error reading file, please try again"))
		return
	}

	contentType := normalizeContentType(header.Header.Get("Content-Type"), header.Filename)
	if !isSupportedUpload(contentType) {
		writeError(w, &ValidationError{Detail: "The uploaded file must be an image or a PDF."})
		return
	}

	receipt, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// splitRequest is the wire body of the split endpoint. The assignments
// value accepts both the bare-id and the {item_id, quantity} claim forms.
type splitRequest struct {
	UserItemAssignments ticket.Assignments `json:"user_item_assignments"`
}

// handleSplitReceipt computes the settlement for a stored receipt
func (s *Server) handleSplitReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req splitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ValidationError{Detail: "Invalid split request body: " + err.Error()})
		return
	}

	result, err := s.service.SplitReceipt(id, req.UserItemAssignments)
	if err != nil {
		slog.Error("Error splitting receipt", "receipt_id", id, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetReceipt returns a single stored receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleListReceipts returns all stored receipts
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceiptFile returns the original uploaded image for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteReceipt deletes a receipt and its stored image
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// normalizeContentType fills a missing content type from the file extension
func normalizeContentType(contentType, filename string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

func isSupportedUpload(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}
