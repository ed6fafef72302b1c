package billing

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Parser extracts structured fields from the recognized text of one kind of
// bill. Parse never fails: fields it cannot find are left out.
type Parser interface {
	DocumentType() DocumentType
	Parse(text string) ParsedDocument
}

// Registry dispatches recognized text to the parser registered for a
// document type
type Registry struct {
	mu      sync.RWMutex
	parsers map[DocumentType]Parser
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[DocumentType]Parser)}
}

// DefaultRegistry creates a Registry with every built-in parser registered
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ElectricityParser{})
	r.Register(WaterParser{})
	r.Register(GasParser{})
	r.Register(TransportParser{})
	return r
}

// Register adds p, replacing any parser already registered for its type
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.DocumentType()] = p
}

// Lookup returns the parser for t
func (r *Registry) Lookup(t DocumentType) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[t]
	return p, ok
}

// Parse runs the parser registered for t. Unregistered types yield an empty
// document rather than an error.
func (r *Registry) Parse(t DocumentType, text string) ParsedDocument {
	p, ok := r.Lookup(t)
	if !ok {
		return newDocument(t)
	}
	return p.Parse(text)
}

// readingPattern matches a meter reading printed with or without thousands
// separators: 1200, 1.200 or 1,200
const readingPattern = `(\d[\d.,]*)`

// parseReading converts a captured reading to an int, dropping separators
func parseReading(s string) (int, bool) {
	v, err := strconv.Atoi(strings.NewReplacer(".", "", ",", "").Replace(s))
	if err != nil {
		return 0, false
	}
	return v, true
}

// findInt returns the reading captured by group n of re, if any
func findInt(re *regexp.Regexp, text string, n int) (int, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil || len(m) <= n {
		return 0, false
	}
	return parseReading(m[n])
}
