package billing

// TransportParser is registered so transport tokens resolve to a parser, but
// no transport ticket layout is recognized yet: it always returns an empty
// document.
type TransportParser struct{}

func (TransportParser) DocumentType() DocumentType { return Transport }

func (TransportParser) Parse(string) ParsedDocument {
	return newDocument(Transport)
}
