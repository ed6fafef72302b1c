package billing

import (
	"regexp"
	"strings"
)

var (
	// PERIODO FACTURADO: 14 ENE 24 - 15 MAR 24
	electricityPeriodRe = regexp.MustCompile(`(?i)PERIODO\s+FACTURADO\s*:?\s*(\d{1,2}\s*[A-Z0-9]{3}\s*\d{2,4})\s*-\s*(\d{1,2}\s*[A-Z0-9]{3}\s*\d{2,4})`)

	// Energía (kWh) 1200 1000
	electricityUsageRe = regexp.MustCompile(`(?i)Energ[ií]a\s*\(\s*kWh\s*\)\s*:?\s*` + readingPattern + `\s+` + readingPattern)
)

// ElectricityParser reads electricity bills: the billed period and the
// current/previous kWh pair
type ElectricityParser struct{}

func (ElectricityParser) DocumentType() DocumentType { return Electricity }

func (ElectricityParser) Parse(text string) ParsedDocument {
	doc := newDocument(Electricity)

	if m := electricityPeriodRe.FindStringSubmatch(text); m != nil {
		start, end := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		doc.Fields[FieldBillingPeriod] = start + " - " + end
		if t, ok := ParseDate(end); ok {
			doc.BillingDate = &t
		}
	}

	if m := electricityUsageRe.FindStringSubmatch(text); m != nil {
		current, okCur := parseReading(m[1])
		previous, okPrev := parseReading(m[2])
		if okCur && okPrev {
			doc.Fields[FieldCurrentUsage] = current
			doc.Fields[FieldPreviousUsage] = previous
			doc.Fields[FieldUsageDelta] = current - previous
		}
	}

	return doc
}
