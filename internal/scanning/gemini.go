package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/bill-ingest/internal/imaging"
)

// Gemini implements the Recognizer interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Recognizer instance
func NewGemini(ctx context.Context, apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Recognize asks Gemini to transcribe the image
func (g *Gemini) Recognize(ctx context.Context, image []byte, language string) (Recognition, error) {
	parts := []genai.Part{
		imageBlob(image),
		genai.Text(promptFor(language)),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return Recognition{}, fmt.Errorf("%w: generating content: %w", ErrRecognitionFailed, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Recognition{}, fmt.Errorf("%w: no response from gemini", ErrRecognitionFailed)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	r, err := parseTranscript(responseText.String())
	if err != nil {
		return Recognition{}, fmt.Errorf("%w: parsing transcription: %w", ErrRecognitionFailed, err)
	}
	return r, nil
}

// imageBlob labels the image with its real media type. Normalized images are
// PNG, but a failed normalization passes the original upload through.
func imageBlob(data []byte) genai.Blob {
	mediaType := imaging.DetectMediaType(data)
	if mediaType == "application/octet-stream" {
		mediaType = "image/png"
	}
	return genai.Blob{MIMEType: mediaType, Data: data}
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
