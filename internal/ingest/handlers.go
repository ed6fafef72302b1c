package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/zombor/bill-ingest/internal/billing"
	"github.com/zombor/bill-ingest/internal/imaging"
	"github.com/zombor/bill-ingest/internal/token"
)

// Error codes returned in the "error" field of failed responses
const (
	codeInvalidRequest       = "invalid_request"
	codeUnsupportedMediaType = "unsupported_media_type"
	codeFileTooLarge         = "file_too_large"
	codeRecognitionFailed    = "recognition_failed"
	codeNotImplemented       = "not_implemented"
	codeInternal             = "internal"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// tokenStatus maps a token reason onto its HTTP status
func tokenStatus(reason token.Reason) int {
	switch reason {
	case token.ReasonNotFound:
		return http.StatusNotFound
	case token.ReasonAlreadyUsed:
		return http.StatusConflict
	case token.ReasonExpired:
		return http.StatusGone
	default:
		return http.StatusBadRequest
	}
}

var tokenMessages = map[token.Reason]string{
	token.ReasonNotFound:    "The QR code is not recognised. Ask for a new one.",
	token.ReasonAlreadyUsed: "The QR code has already been used. Ask for a new one.",
	token.ReasonExpired:     "The QR code has expired. Ask for a new one.",
}

// writeServiceError translates Service errors into responses
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		tokenErr       *TokenError
		recognitionErr *RecognitionError
	)
	switch {
	case errors.As(err, &tokenErr):
		writeError(w, tokenStatus(tokenErr.Reason), string(tokenErr.Reason), tokenMessages[tokenErr.Reason])
	case errors.As(err, &recognitionErr):
		writeError(w, http.StatusBadGateway, codeRecognitionFailed, "The document could not be read. Try again with a sharper photo.")
	case errors.Is(err, ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "A token id and a file are required")
	default:
		slog.Error("Internal error", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type issueTokenRequest struct {
	DocumentType string `json:"documentType"`
}

type issueTokenResponse struct {
	ID           string               `json:"id"`
	DocumentType billing.DocumentType `json:"documentType"`
	ExpiresInMs  int64                `json:"expiresInMs"`
	IssuedAt     time.Time            `json:"issuedAt"`
}

// handleIssueToken issues a token for the requested document type
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body")
		return
	}

	documentType, err := billing.ParseDocumentType(req.DocumentType)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	issued, err := s.service.IssueToken(r.Context(), documentType)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, issueTokenResponse{
		ID:           issued.ID,
		DocumentType: issued.DocumentType,
		ExpiresInMs:  issued.ExpiresIn.Milliseconds(),
		IssuedAt:     issued.IssuedAt,
	})
}

type tokenStatusResponse struct {
	Valid        bool                 `json:"valid"`
	DocumentType billing.DocumentType `json:"documentType,omitempty"`
	CreatedAt    *time.Time           `json:"createdAt,omitempty"`
	ExpiresAt    *time.Time           `json:"expiresAt,omitempty"`
	Error        token.Reason         `json:"error,omitempty"`
	UsedAt       *time.Time           `json:"usedAt,omitempty"`
}

// handleCheckToken reports whether a token can still be used
func (s *Server) handleCheckToken(w http.ResponseWriter, r *http.Request) {
	v, err := s.service.CheckToken(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !v.Valid {
		writeJSON(w, http.StatusOK, tokenStatusResponse{Error: v.Reason, UsedAt: v.UsedAt})
		return
	}
	writeJSON(w, http.StatusOK, tokenStatusResponse{
		Valid:        true,
		DocumentType: v.DocumentType,
		CreatedAt:    &v.CreatedAt,
		ExpiresAt:    &v.ExpiresAt,
	})
}

type ingestResponse struct {
	Success       bool                 `json:"success"`
	ID            string               `json:"id"`
	DocumentType  billing.DocumentType `json:"documentType"`
	FileName      string               `json:"fileName"`
	FileSize      int                  `json:"fileSize"`
	ExtractedText string               `json:"extractedText"`
	ParsedData    map[string]any       `json:"parsedData"`
	BillingDate   *time.Time           `json:"billingDate,omitempty"`
	Confidence    float64              `json:"confidence"`
	WordCount     int                  `json:"wordCount"`
	Persisted     bool                 `json:"persisted"`
	Timestamp     time.Time            `json:"timestamp"`
}

// handleIngest accepts a multipart upload of a bill together with its token
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Leave room for the other form fields on top of the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, codeFileTooLarge, s.tooLargeMessage())
			return
		}
		slog.Error("Error parsing multipart form", "error", err)
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Error parsing form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	id := strings.TrimSpace(r.FormValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "A token id is required")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "No file was selected. Please choose a file to upload.")
		return
	}
	defer f.Close()

	if header.Size > s.maxUploadBytes {
		writeError(w, http.StatusBadRequest, codeFileTooLarge, s.tooLargeMessage())
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, codeInternal, "Error reading file. Please try again.")
		return
	}

	contentType := uploadContentType(data, header.Header.Get("Content-Type"), header.Filename)
	if !supportedContentType(contentType) {
		writeError(w, http.StatusBadRequest, codeUnsupportedMediaType, "Only images and PDF documents are accepted")
		return
	}

	result, err := s.service.Ingest(r.Context(), Upload{
		TokenID:     id,
		EntityID:    strings.TrimSpace(r.FormValue("entityId")),
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Success:       true,
		ID:            result.TokenID,
		DocumentType:  result.DocumentType,
		FileName:      result.Filename,
		FileSize:      result.FileSize,
		ExtractedText: result.Recognition.Text,
		ParsedData:    result.Parsed.Fields,
		BillingDate:   result.Parsed.BillingDate,
		Confidence:    result.Recognition.Confidence,
		WordCount:     result.Recognition.WordCount(),
		Persisted:     result.Persisted,
		Timestamp:     result.ProcessedAt,
	})
}

func (s *Server) tooLargeMessage() string {
	return fmt.Sprintf("File is too large. Maximum size is %dMB. Please compress or resize your image.", s.maxUploadBytes>>20)
}

// handleListRecords returns the stored consumption records
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListRecords(r.Context())
	if errors.Is(err, ErrListingUnsupported) {
		writeError(w, http.StatusNotImplemented, codeNotImplemented, "The configured recorder cannot list records")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []*ConsumptionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// uploadContentType trusts the file's own bytes. Only opaque binary content
// falls back to the declared Content-Type and then the file extension.
func uploadContentType(data []byte, declared, filename string) string {
	if sniffed := imaging.DetectMediaType(data); sniffed != "application/octet-stream" {
		return sniffed
	}
	return detectContentType(declared, filename)
}

// detectContentType falls back to the file extension when the client sent
// no usable Content-Type
func detectContentType(contentType, filename string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && mediaType != "application/octet-stream" {
		return strings.ToLower(mediaType)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".bmp":
		return "image/bmp"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func supportedContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/") || contentType == "application/pdf"
}
