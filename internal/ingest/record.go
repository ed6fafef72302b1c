// Package ingest turns a token and a photographed bill into a stored
// consumption record.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/zombor/bill-ingest/internal/billing"
)

// ConsumptionRecord is what one successful extraction leaves behind
type ConsumptionRecord struct {
	ID            string               `json:"id"`
	EntityID      string               `json:"entity_id,omitempty"`
	DocumentType  billing.DocumentType `json:"document_type"`
	Consumption   *int                 `json:"consumption,omitempty"` // absent when the bill did not show one
	BillingDate   time.Time            `json:"billing_date"`
	ExtractedText string               `json:"extracted_text"`
	Confidence    float64              `json:"confidence"`
	ImagePath     string               `json:"image_path,omitempty"` // archive key of the original upload
	TokenID       string               `json:"token_id"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Recorder persists consumption records
type Recorder interface {
	SaveConsumption(ctx context.Context, record *ConsumptionRecord) error
}

// RecordLister is implemented by recorders that can read records back
type RecordLister interface {
	ListConsumptions(ctx context.Context) ([]*ConsumptionRecord, error)
}

// Recorders fans a record out to every member. All members are attempted;
// the joined error of the failures is returned.
type Recorders []Recorder

// SaveConsumption saves record with every member
func (rs Recorders) SaveConsumption(ctx context.Context, record *ConsumptionRecord) error {
	var errs []error
	for _, r := range rs {
		if err := r.SaveConsumption(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListConsumptions lists records from the first member able to
func (rs Recorders) ListConsumptions(ctx context.Context) ([]*ConsumptionRecord, error) {
	for _, r := range rs {
		if l, ok := r.(RecordLister); ok {
			return l.ListConsumptions(ctx)
		}
	}
	return nil, ErrListingUnsupported
}
