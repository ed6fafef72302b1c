package scanning

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gemini", func() {
	It("should require an api key", func() {
		_, err := NewGemini(context.Background(), "", "")
		Expect(err).To(MatchError(ContainSubstring("api key")))
	})

	DescribeTable("labelling the image sent to the model",
		func(data []byte, mediaType string) {
			blob := imageBlob(data)
			Expect(blob.MIMEType).To(Equal(mediaType))
			Expect(blob.Data).To(Equal(data))
		},
		Entry("a normalized PNG", []byte("\x89PNG\r\n\x1a\n\x00\x00"), "image/png"),
		Entry("an original JPEG", []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), "image/jpeg"),
		Entry("an original HEIC", []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00"), "image/heic"),
		Entry("an original PDF", []byte("%PDF-1.7\n"), "application/pdf"),
		Entry("unknown bytes", []byte{0x00, 0x01, 0x02}, "image/png"),
	)
})
