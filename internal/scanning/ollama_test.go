package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		ollama *Ollama
		result Recognition
		err    error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		ollama = NewOllama(server.URL(), "qwen2.5vl")
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		result, err = ollama.Recognize(context.Background(), []byte("png-bytes"), "spa")
	})

	When("the model answers with a transcription", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.VerifyJSONRepresenting(map[string]any{
					"model":  "qwen2.5vl",
					"stream": false,
					"format": "json",
					"messages": []map[string]any{
						{
							"role":    "system",
							"content": "You are an OCR engine. You transcribe printed documents exactly and never invent text.",
						},
						{
							"role":    "user",
							"content": promptFor("spa"),
							"images":  []string{"cG5nLWJ5dGVz"},
						},
					},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"text": "LECTURA ACTUAL: 1530", "confidence": 80}`},
					Done:    true,
				}),
			))
		})

		It("should return the parsed transcription", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Text).To(Equal("LECTURA ACTUAL: 1530"))
			Expect(result.Confidence).To(Equal(80.0))
		})
	})

	When("the server fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("should return a recognition failure", func() {
			Expect(err).To(MatchError(ErrRecognitionFailed))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I cannot read this image."},
			}))
		})

		It("should return a recognition failure", func() {
			Expect(err).To(MatchError(ErrRecognitionFailed))
		})
	})
})
