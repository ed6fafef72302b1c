package billing

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const electricityFixture = `COMISION FEDERAL DE ELECTRICIDAD
TOTAL A PAGAR: $1,245
PERIODO FACTURADO: 14 ENE 24 - 15 MAR 24
Lectura actual Lectura anterior
Energía (kWh) 1200 1000
`

const waterFixture = `SISTEMA DE AGUAS
MES DE FACTURACIÓN: MAR/2024
LECTURA ANTERIOR: 500
ULTIMA LECTURA: 530
`

const gasFixture = `GAS NATURAL
LECTURA ACTUAL: 1530 (15/0CT/24)
LECTURA ANTERIRO: 1480
`

var _ = Describe("Registry", func() {
	var (
		registry *Registry
		docType  DocumentType
		text     string
		doc      ParsedDocument
	)

	BeforeEach(func() {
		registry = DefaultRegistry()
	})

	JustBeforeEach(func() {
		doc = registry.Parse(docType, text)
	})

	Describe("electricity", func() {
		BeforeEach(func() {
			docType = Electricity
			text = electricityFixture
		})

		It("should extract the kWh pair and the difference", func() {
			Expect(doc.Fields).To(HaveKeyWithValue(FieldCurrentUsage, 1200))
			Expect(doc.Fields).To(HaveKeyWithValue(FieldPreviousUsage, 1000))
			Expect(doc.Fields).To(HaveKeyWithValue(FieldUsageDelta, 200))
		})

		It("should extract the billing period", func() {
			Expect(doc.Fields).To(HaveKeyWithValue(FieldBillingPeriod, "14 ENE 24 - 15 MAR 24"))
		})

		It("should use the period end as billing date", func() {
			Expect(doc.BillingDate).NotTo(BeNil())
			Expect(*doc.BillingDate).To(Equal(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)))
		})

		It("should report the difference as consumption", func() {
			consumption, ok := doc.Consumption()
			Expect(ok).To(BeTrue())
			Expect(consumption).To(Equal(200))
		})

		When("the readings carry thousands separators", func() {
			BeforeEach(func() {
				text = "ENERGÍA (KWH) 1,200 1.000"
			})

			It("should read them as whole numbers", func() {
				Expect(doc.Fields).To(HaveKeyWithValue(FieldCurrentUsage, 1200))
				Expect(doc.Fields).To(HaveKeyWithValue(FieldPreviousUsage, 1000))
				Expect(doc.Fields).To(HaveKeyWithValue(FieldUsageDelta, 200))
			})
		})

		When("the consumption line is missing", func() {
			BeforeEach(func() {
				text = "PERIODO FACTURADO: 14 ENE 24 - 15 MAR 24"
			})

			It("should leave the usage fields out", func() {
				Expect(doc.Fields).NotTo(HaveKey(FieldUsageDelta))
				Expect(doc.Fields).To(HaveKey(FieldBillingPeriod))
			})
		})
	})

	Describe("water", func() {
		BeforeEach(func() {
			docType = Water
			text = waterFixture
		})

		It("should compute consumption from the two readings", func() {
			Expect(doc.Fields).To(HaveKeyWithValue(FieldPreviousReading, 500))
			Expect(doc.Fields).To(HaveKeyWithValue(FieldLastReading, 530))
			Expect(doc.Fields).To(HaveKeyWithValue(FieldConsumption, 30))
		})

		It("should normalize the billing month to its first day", func() {
			Expect(doc.Fields).To(HaveKeyWithValue(FieldBillingMonth, "MAR/2024"))
			Expect(doc.BillingDate).NotTo(BeNil())
			Expect(*doc.BillingDate).To(Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))
		})

		When("the readings carry thousands separators", func() {
			BeforeEach(func() {
				text = "LECTURA ANTERIOR: 12.500\nULTIMA LECTURA: 12,530."
			})

			It("should still compute consumption", func() {
				Expect(doc.Fields).To(HaveKeyWithValue(FieldPreviousReading, 12500))
				Expect(doc.Fields).To(HaveKeyWithValue(FieldLastReading, 12530))
				Expect(doc.Fields).To(HaveKeyWithValue(FieldConsumption, 30))
			})
		})

		When("only one reading is present", func() {
			BeforeEach(func() {
				text = "LECTURA ANTERIOR: 500"
			})

			It("should not compute consumption", func() {
				Expect(doc.Fields).To(HaveKeyWithValue(FieldPreviousReading, 500))
				Expect(doc.Fields).NotTo(HaveKey(FieldConsumption))
				_, ok := doc.Consumption()
				Expect(ok).To(BeFalse())
			})
		})
	})

	Describe("gas", func() {
		BeforeEach(func() {
			docType = Gas
			text = gasFixture
		})

		It("should compute consumption despite the misspelled label", func() {
			Expect(doc.Fields).To(HaveKeyWithValue(FieldCurrentReading, 1530))
			Expect(doc.Fields).To(HaveKeyWithValue(FieldPreviousReading, 1480))
			Expect(doc.Fields).To(HaveKeyWithValue(FieldConsumption, 50))
		})

		It("should repair the inline date", func() {
			Expect(doc.Fields).To(HaveKeyWithValue(FieldReadingDate, "15/0CT/24"))
			Expect(doc.BillingDate).NotTo(BeNil())
			Expect(*doc.BillingDate).To(Equal(time.Date(2024, time.October, 15, 0, 0, 0, 0, time.UTC)))
		})
	})

	Describe("gas with separators and an unseparated date", func() {
		BeforeEach(func() {
			docType = Gas
			text = "LECTURA ACTUAL: 1,530 (150CT24)\nLECTURA ANTERIOR: 1.480"
		})

		It("should read both readings and the date", func() {
			Expect(doc.Fields).To(HaveKeyWithValue(FieldCurrentReading, 1530))
			Expect(doc.Fields).To(HaveKeyWithValue(FieldPreviousReading, 1480))
			Expect(doc.Fields).To(HaveKeyWithValue(FieldConsumption, 50))
			Expect(doc.BillingDate).NotTo(BeNil())
			Expect(*doc.BillingDate).To(Equal(time.Date(2024, time.October, 15, 0, 0, 0, 0, time.UTC)))
		})
	})

	Describe("transport", func() {
		BeforeEach(func() {
			docType = Transport
			text = "BOLETO 12345 TOTAL $50"
		})

		It("should return an empty document", func() {
			Expect(doc.DocumentType).To(Equal(Transport))
			Expect(doc.Empty()).To(BeTrue())
			Expect(doc.BillingDate).To(BeNil())
		})
	})

	When("the document type has no parser", func() {
		BeforeEach(func() {
			registry = NewRegistry()
			docType = Water
			text = waterFixture
		})

		It("should return an empty document", func() {
			Expect(doc.Empty()).To(BeTrue())
		})
	})

	When("the text is noise", func() {
		BeforeEach(func() {
			docType = Electricity
			text = "@@ ## 1l1l ||"
		})

		It("should not fail", func() {
			Expect(doc.Empty()).To(BeTrue())
		})
	})
})

var _ = Describe("ParseDocumentType", func() {
	It("accepts known types case-insensitively", func() {
		t, err := ParseDocumentType(" Water ")
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(Equal(Water))
	})

	It("rejects unknown types", func() {
		_, err := ParseDocumentType("coal")
		Expect(err).To(HaveOccurred())
	})
})
