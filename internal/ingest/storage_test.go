package ingest

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-ingest/internal/billing"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Archive
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "archive"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			key       string
			data      []byte
			savedPath string
			err       error
		)

		BeforeEach(func() {
			key = "household-7/water/1712050200000_bill.jpg"
			data = []byte("test file content")
		})

		JustBeforeEach(func() {
			savedPath, err = storage.Save(key, data)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the key", func() {
				Expect(savedPath).To(Equal(key))
			})

			It("should create the intermediate directories and write the file", func() {
				filePath := filepath.Join(tmpDir, "archive", "household-7", "water", "1712050200000_bill.jpg")
				Expect(filePath).To(BeAnExistingFile())
				content, readErr := os.ReadFile(filePath)
				Expect(readErr).NotTo(HaveOccurred())
				Expect(content).To(Equal(data))
			})
		})

		When("a directory is in the way", func() {
			BeforeEach(func() {
				Expect(os.MkdirAll(filepath.Join(tmpDir, "archive", key), 0755)).To(Succeed())
			})

			It("should return an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})
})

var _ = Describe("sanitizeFilename", func() {
	DescribeTable("cleaning up phone generated names",
		func(input, expected string) {
			Expect(sanitizeFilename(input)).To(Equal(expected))
		},
		Entry("keeps simple names", "bill.jpg", "bill.jpg"),
		Entry("drops punctuation and joins words", "IMG 2024 (copy).JPG", "IMG_2024_copy.jpg"),
		Entry("strips directories", "../../etc/passwd", "passwd"),
		Entry("strips windows directories", `C:\Users\me\factura.pdf`, "factura.pdf"),
		Entry("defaults an empty base", "().png", "bill.png"),
		Entry("truncates long names", "a123456789b123456789c123456789d123456789e123456789f123.heic", "a123456789b123456789c123456789d123456789e123456789.heic"),
	)
})

var _ = Describe("archiveKey", func() {
	at := time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC)

	It("should lay keys out by entity and document type", func() {
		Expect(archiveKey("household-7", billing.Gas, at, "gas bill.png")).To(Equal("household-7/gas/1712050200000_gas_bill.png"))
	})

	It("should file uploads without an entity as anonymous", func() {
		Expect(archiveKey("", billing.Electricity, at, "x.jpg")).To(Equal("anonymous/electricity/1712050200000_x.jpg"))
	})

	It("should not let the entity escape the archive", func() {
		Expect(archiveKey("../..", billing.Water, at, "x.jpg")).To(HavePrefix("anonymous/"))
		Expect(archiveKey("a/../b", billing.Water, at, "x.jpg")).To(HavePrefix("a..b/"))
	})
})
