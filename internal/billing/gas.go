package billing

import (
	"regexp"
	"strings"
)

var (
	// LECTURA ACTUAL: 1530 (15/OCT/24)
	gasCurrentRe = regexp.MustCompile(`(?i)LECTURA\s+ACTUAL\s*:?\s*` + readingPattern + `\s*\(([^)]*)\)`)

	// Misspellings seen on scanned bills are accepted alongside ANTERIOR
	gasPreviousRe = regexp.MustCompile(`(?i)LECTURA\s+ANTER(?:IOR|IRO|OIR|IOIR)\s*:?\s*` + readingPattern)
)

// GasParser reads gas bills: the current reading with its inline date and
// the previous reading
type GasParser struct{}

func (GasParser) DocumentType() DocumentType { return Gas }

func (GasParser) Parse(text string) ParsedDocument {
	doc := newDocument(Gas)

	current, hasCurrent := 0, false
	if m := gasCurrentRe.FindStringSubmatch(text); m != nil {
		if v, ok := parseReading(m[1]); ok {
			current, hasCurrent = v, true
			doc.Fields[FieldCurrentReading] = v
		}
		date := strings.TrimSpace(m[2])
		if date != "" {
			doc.Fields[FieldReadingDate] = date
			if t, ok := ParseGasDate(date); ok {
				doc.BillingDate = &t
			}
		}
	}

	previous, hasPrevious := findInt(gasPreviousRe, text, 1)
	if hasPrevious {
		doc.Fields[FieldPreviousReading] = previous
	}
	if hasCurrent && hasPrevious {
		doc.Fields[FieldConsumption] = current - previous
	}

	return doc
}
