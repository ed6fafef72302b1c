package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ollama implements the Recognizer interface using a local Ollama server
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Recognizer instance
// Vision models that transcribe Spanish bills reasonably well:
//   - qwen2.5vl (best OCR of the small models)
//   - llava:latest
//   - minicpm-v
func NewOllama(baseURL string, modelName string) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "qwen2.5vl"
	}

	return &Ollama{
		baseURL: baseURL,
		model:   modelName,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models are slow on CPU
		},
	}
}

// ollamaChatRequest represents the request body for Ollama's chat API
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// ollamaChatResponse represents the response from Ollama's chat API
type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Recognize asks the Ollama model to transcribe the image
func (o *Ollama) Recognize(ctx context.Context, image []byte, language string) (Recognition, error) {
	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an OCR engine. You transcribe printed documents exactly and never invent text.",
			},
			{
				Role:    "user",
				Content: promptFor(language),
				Images:  []string{base64.StdEncoding.EncodeToString(image)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return Recognition{}, fmt.Errorf("%w: marshaling request: %w", ErrRecognitionFailed, err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return Recognition{}, fmt.Errorf("%w: creating request: %w", ErrRecognitionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Recognition{}, fmt.Errorf("%w: calling ollama API: %w", ErrRecognitionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Recognition{}, fmt.Errorf("%w: ollama API error (status %d): %s", ErrRecognitionFailed, resp.StatusCode, string(body))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Recognition{}, fmt.Errorf("%w: decoding response: %w", ErrRecognitionFailed, err)
	}

	r, err := parseTranscript(chatResp.Message.Content)
	if err != nil {
		return Recognition{}, fmt.Errorf("%w: parsing transcription: %w", ErrRecognitionFailed, err)
	}
	return r, nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
