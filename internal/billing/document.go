package billing

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType identifies the kind of bill a token was issued for
type DocumentType string

const (
	Electricity DocumentType = "electricity"
	Water       DocumentType = "water"
	Gas         DocumentType = "gas"
	Transport   DocumentType = "transport"
)

// DocumentTypes lists every supported document type
var DocumentTypes = []DocumentType{Electricity, Water, Gas, Transport}

// ParseDocumentType converts user input into a DocumentType
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range DocumentTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// Field names shared by parsers and consumers of parsed data
const (
	FieldBillingPeriod   = "periodoFacturado"
	FieldCurrentUsage    = "consumoActual"
	FieldPreviousUsage   = "consumoAnterior"
	FieldUsageDelta      = "consumoDiferencia"
	FieldBillingMonth    = "mesFacturacion"
	FieldPreviousReading = "lecturaAnterior"
	FieldLastReading     = "ultimaLectura"
	FieldCurrentReading  = "lecturaActual"
	FieldReadingDate     = "fechaLectura"
	FieldConsumption     = "consumo"
)

// ParsedDocument holds the fields a parser managed to extract.
// Fields that could not be found are absent from Fields.
type ParsedDocument struct {
	DocumentType DocumentType   `json:"documentType"`
	Fields       map[string]any `json:"fields"`
	BillingDate  *time.Time     `json:"billingDate,omitempty"`
}

func newDocument(t DocumentType) ParsedDocument {
	return ParsedDocument{DocumentType: t, Fields: map[string]any{}}
}

// Empty reports whether no field was extracted
func (d ParsedDocument) Empty() bool {
	return len(d.Fields) == 0
}

// Int returns an integer field
func (d ParsedDocument) Int(key string) (int, bool) {
	v, ok := d.Fields[key].(int)
	return v, ok
}

// String returns a string field
func (d ParsedDocument) String(key string) (string, bool) {
	v, ok := d.Fields[key].(string)
	return v, ok
}

// Consumption returns the field that represents the billed consumption for
// the document's type. Transport documents never carry one.
func (d ParsedDocument) Consumption() (int, bool) {
	switch d.DocumentType {
	case Electricity:
		return d.Int(FieldUsageDelta)
	case Water, Gas:
		return d.Int(FieldConsumption)
	default:
		return 0, false
	}
}
