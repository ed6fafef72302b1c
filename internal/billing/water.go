package billing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// MES DE FACTURACIÓN: MAR/2024
	waterMonthRe       = regexp.MustCompile(`(?i)MES\s+DE\s+FACTURACI[OÓ]N\s*:?\s*([A-Z]{3})\s*/\s*(\d{4})`)
	waterPreviousRe    = regexp.MustCompile(`(?i)LECTURA\s+ANTERIOR\s*:?\s*` + readingPattern)
	waterLastReadingRe = regexp.MustCompile(`(?i)[UÚ]LTIMA\s+LECTURA\s*:?\s*` + readingPattern)
)

// WaterParser reads water bills: the billing month and the previous/last
// meter readings
type WaterParser struct{}

func (WaterParser) DocumentType() DocumentType { return Water }

func (WaterParser) Parse(text string) ParsedDocument {
	doc := newDocument(Water)

	if m := waterMonthRe.FindStringSubmatch(text); m != nil {
		month := strings.ToUpper(m[1])
		doc.Fields[FieldBillingMonth] = month + "/" + m[2]
		if mon, ok := LookupMonth(month); ok {
			if year, err := strconv.Atoi(m[2]); err == nil {
				t := time.Date(year, mon, 1, 0, 0, 0, 0, time.UTC)
				doc.BillingDate = &t
			}
		}
	}

	previous, hasPrevious := findInt(waterPreviousRe, text, 1)
	if hasPrevious {
		doc.Fields[FieldPreviousReading] = previous
	}
	last, hasLast := findInt(waterLastReadingRe, text, 1)
	if hasLast {
		doc.Fields[FieldLastReading] = last
	}
	if hasPrevious && hasLast {
		doc.Fields[FieldConsumption] = last - previous
	}

	return doc
}
