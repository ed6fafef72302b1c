package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseTranscript parses the JSON answer of an LLM transcription
func parseTranscript(text string) (Recognition, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return Recognition{}, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return Recognition{}, fmt.Errorf("invalid JSON object in response")
	}

	var data struct {
		Text       string   `json:"text"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text[startIdx:endIdx+1]), &data); err != nil {
		return Recognition{}, fmt.Errorf("unmarshaling json: %w", err)
	}

	r := Recognition{Text: strings.TrimSpace(data.Text)}
	switch {
	case data.Confidence == nil && r.Text != "":
		// Models sometimes omit the field; treat a transcription as fair
		r.Confidence = 50
	case data.Confidence != nil:
		r.Confidence = min(max(*data.Confidence, 0), 100)
	}
	return r, nil
}
