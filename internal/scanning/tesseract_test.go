package scanning

import (
	"context"

	"github.com/otiai10/gosseract/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tesseract", func() {
	It("should default the language", func() {
		Expect(NewTesseract("").defaultLanguage).To(Equal(DefaultLanguage))
		Expect(NewTesseract("spa+eng").defaultLanguage).To(Equal("spa+eng"))
	})

	It("should not start when the context is already done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewTesseract("").Recognize(ctx, nil, "")
		Expect(err).To(MatchError(ErrRecognitionFailed))
		Expect(err).To(MatchError(context.Canceled))
	})

	Describe("meanConfidence", func() {
		It("should average the word confidences", func() {
			Expect(meanConfidence([]gosseract.BoundingBox{
				{Word: "LECTURA", Confidence: 90},
				{Word: "ACTUAL", Confidence: 80},
				{Word: "1530", Confidence: 70},
			})).To(Equal(80.0))
		})

		It("should be zero without words", func() {
			Expect(meanConfidence(nil)).To(BeZero())
		})
	})
})
