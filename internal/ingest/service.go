package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/bill-ingest/internal/billing"
	"github.com/zombor/bill-ingest/internal/scanning"
	"github.com/zombor/bill-ingest/internal/token"
)

// IDGenerator generates unique IDs for consumption records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Normalizer prepares an image for recognition. It never fails.
type Normalizer interface {
	Normalize(data []byte) []byte
}

// Config holds the tunables of a Service
type Config struct {
	// Language is the OCR language hint
	Language string
	// Parsers defaults to billing.DefaultRegistry
	Parsers *billing.Registry
}

// Service runs the ingestion pipeline around the token store
type Service struct {
	tokens      token.Store
	normalizer  Normalizer
	recognizer  scanning.Recognizer
	recorder    Recorder
	archive     Archive
	config      Config
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source.
// archive may be nil, in which case originals are not kept.
func NewService(tokens token.Store, normalizer Normalizer, recognizer scanning.Recognizer, recorder Recorder, archive Archive, config Config) *Service {
	return NewServiceWithDeps(tokens, normalizer, recognizer, recorder, archive, config, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(tokens token.Store, normalizer Normalizer, recognizer scanning.Recognizer, recorder Recorder, archive Archive, config Config, idGen IDGenerator, timeSrc TimeSource) *Service {
	if config.Language == "" {
		config.Language = scanning.DefaultLanguage
	}
	if config.Parsers == nil {
		config.Parsers = billing.DefaultRegistry()
	}
	return &Service{
		tokens:      tokens,
		normalizer:  normalizer,
		recognizer:  recognizer,
		recorder:    recorder,
		archive:     archive,
		config:      config,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// IssuedToken is a freshly issued token and how long it lasts
type IssuedToken struct {
	ID           string
	DocumentType billing.DocumentType
	IssuedAt     time.Time
	ExpiresIn    time.Duration
}

// IssueToken creates a token for documentType
func (s *Service) IssueToken(ctx context.Context, documentType billing.DocumentType) (*IssuedToken, error) {
	tok, err := s.tokens.Issue(ctx, documentType)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &IssuedToken{
		ID:           tok.ID,
		DocumentType: tok.DocumentType,
		IssuedAt:     tok.CreatedAt,
		ExpiresIn:    s.tokens.TTL(),
	}, nil
}

// CheckToken reports whether a token can still be used
func (s *Service) CheckToken(ctx context.Context, id string) (token.Validation, error) {
	v, err := s.tokens.Validate(ctx, id)
	if err != nil {
		return token.Validation{}, fmt.Errorf("validating token: %w", err)
	}
	return v, nil
}

// ListRecords returns stored consumption records when the recorder can list
// them
func (s *Service) ListRecords(ctx context.Context) ([]*ConsumptionRecord, error) {
	lister, ok := s.recorder.(RecordLister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	records, err := lister.ListConsumptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// Upload is one bill presented together with its token
type Upload struct {
	TokenID     string
	EntityID    string
	Filename    string
	ContentType string
	Data        []byte
}

// Result is the outcome of a successful extraction
type Result struct {
	TokenID      string
	DocumentType billing.DocumentType
	Filename     string
	FileSize     int
	Recognition  scanning.Recognition
	Parsed       billing.ParsedDocument
	RecordID     string
	// Persisted is false when the record or the archived original could not
	// be written. The extraction itself still succeeded.
	Persisted   bool
	ProcessedAt time.Time
}

// Ingest extracts a consumption record from an upload. At most one Ingest
// per token ever succeeds.
func (s *Service) Ingest(ctx context.Context, up Upload) (*Result, error) {
	if up.TokenID == "" || len(up.Data) == 0 {
		return nil, ErrInvalidUpload
	}

	v, err := s.tokens.Validate(ctx, up.TokenID)
	if err != nil {
		return nil, fmt.Errorf("validating token: %w", err)
	}
	if !v.Valid {
		return nil, &TokenError{Reason: v.Reason, UsedAt: v.UsedAt}
	}

	// Validate alone is not enough: another request may hold the same token
	reservation, err := s.tokens.Reserve(ctx, up.TokenID)
	if err != nil {
		return nil, fmt.Errorf("reserving token: %w", err)
	}
	if !reservation.OK {
		// The token existed a moment ago, so anything but expiry means a
		// concurrent upload won it
		reason := reservation.Reason
		if reason != token.ReasonExpired {
			reason = token.ReasonAlreadyUsed
		}
		return nil, &TokenError{Reason: reason}
	}

	normalized := s.normalizer.Normalize(up.Data)

	recognition, err := s.recognizer.Recognize(ctx, normalized, s.config.Language)
	if err != nil {
		slog.Error("Failed to recognize document",
			"token_id", up.TokenID,
			"document_type", reservation.DocumentType,
			"filename", up.Filename,
			"file_size", len(up.Data),
			"error", err,
		)
		// The request context may already be done; the token must still be freed
		if relErr := s.tokens.Release(context.WithoutCancel(ctx), up.TokenID); relErr != nil {
			slog.Error("Failed to release token", "token_id", up.TokenID, "error", relErr)
		}
		return nil, &RecognitionError{Err: err}
	}

	parsed := s.config.Parsers.Parse(reservation.DocumentType, recognition.Text)
	if parsed.Empty() {
		slog.Warn("No fields extracted", "token_id", up.TokenID, "document_type", reservation.DocumentType, "confidence", recognition.Confidence)
	}

	persistCtx := context.WithoutCancel(ctx)
	if err := s.tokens.Consume(persistCtx, up.TokenID); err != nil {
		// The token stays reserved, so it still cannot be reused; the sweeper
		// removes it after the TTL
		slog.Error("Failed to consume token", "token_id", up.TokenID, "error", err)
	}

	now := s.timeSource.Now()
	result := &Result{
		TokenID:      up.TokenID,
		DocumentType: reservation.DocumentType,
		Filename:     up.Filename,
		FileSize:     len(up.Data),
		Recognition:  recognition,
		Parsed:       parsed,
		Persisted:    true,
		ProcessedAt:  now,
	}

	record := &ConsumptionRecord{
		ID:            s.idGenerator.Generate(),
		EntityID:      up.EntityID,
		DocumentType:  reservation.DocumentType,
		BillingDate:   now,
		ExtractedText: recognition.Text,
		Confidence:    recognition.Confidence,
		TokenID:       up.TokenID,
		CreatedAt:     now,
	}
	if consumption, ok := parsed.Consumption(); ok {
		record.Consumption = &consumption
	}
	if parsed.BillingDate != nil {
		record.BillingDate = *parsed.BillingDate
	}

	if s.archive != nil {
		key := archiveKey(up.EntityID, reservation.DocumentType, now, up.Filename)
		path, err := s.archive.Save(key, up.Data)
		if err != nil {
			slog.Error("Failed to archive original", "token_id", up.TokenID, "key", key, "error", err)
			result.Persisted = false
		} else {
			record.ImagePath = path
		}
	}

	if err := s.recorder.SaveConsumption(persistCtx, record); err != nil {
		slog.Error("Failed to save consumption record",
			"token_id", up.TokenID,
			"record_id", record.ID,
			"document_type", record.DocumentType,
			"error", err,
		)
		result.Persisted = false
	} else {
		result.RecordID = record.ID
	}

	slog.Info("Ingested document",
		"token_id", up.TokenID,
		"document_type", reservation.DocumentType,
		"confidence", recognition.Confidence,
		"fields", len(parsed.Fields),
		"persisted", result.Persisted,
	)

	return result, nil
}
