package scanning

import (
	"fmt"
	"strings"
)

// transcriptionPrompt is the shared prompt used by all LLM providers. Parsing
// happens downstream, so the model must transcribe rather than interpret.
const transcriptionPrompt = `You are reading a photographed utility bill or transport ticket, most likely written in %s.
Transcribe ALL text in the image exactly as printed, line by line, keeping numbers, dates and labels such as "PERIODO FACTURADO", "LECTURA ANTERIOR" or "Energía (kWh)" unchanged.

Return ONLY valid JSON in this exact format:
{
  "text": "full transcription with \n between lines",
  "confidence": 0
}

Important:
- confidence is a number from 0 to 100 describing how legible the document was
- Do not correct, translate or summarize the text
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

var languageNames = map[string]string{
	"spa": "Spanish",
	"eng": "English",
	"por": "Portuguese",
	"cat": "Catalan",
}

// promptFor fills the language hint into the transcription prompt
func promptFor(language string) string {
	var names []string
	for _, code := range strings.Split(language, "+") {
		if name, ok := languageNames[strings.TrimSpace(code)]; ok {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		names = []string{languageNames[DefaultLanguage]}
	}
	return fmt.Sprintf(transcriptionPrompt, strings.Join(names, " or "))
}
