package ingest

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-ingest/internal/billing"
)

var _ = Describe("Postgres", func() {
	var (
		ctx context.Context
		pg  *Postgres
	)

	BeforeEach(func() {
		url := os.Getenv("BILL_INGEST_TEST_DATABASE_URL")
		if url == "" {
			Skip("BILL_INGEST_TEST_DATABASE_URL not set")
		}
		ctx = context.Background()
		var err error
		pg, err = NewPostgres(ctx, url)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if pg != nil {
			pg.Close()
		}
	})

	It("should store and list records, keeping absent consumption as NULL", func() {
		// Billing dates a century ahead sort these two before anything stored earlier
		billed := time.Now().UTC().AddDate(100, 0, 0).Truncate(time.Microsecond)
		consumo := 50
		withConsumption := &ConsumptionRecord{
			ID:            uuid.NewString(),
			EntityID:      "household-7",
			DocumentType:  billing.Gas,
			Consumption:   &consumo,
			BillingDate:   billed,
			ExtractedText: "LECTURA ACTUAL: 1530 (15/0CT/24)",
			Confidence:    77,
			ImagePath:     "household-7/gas/1_bill.jpg",
			TokenID:       uuid.NewString(),
			CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
		}
		without := &ConsumptionRecord{
			ID:           uuid.NewString(),
			DocumentType: billing.Transport,
			BillingDate:  billed.Add(-time.Hour),
			TokenID:      uuid.NewString(),
			CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		}
		Expect(pg.SaveConsumption(ctx, withConsumption)).To(Succeed())
		Expect(pg.SaveConsumption(ctx, without)).To(Succeed())

		records, err := pg.ListConsumptions(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(len(records)).To(BeNumerically(">=", 2))

		Expect(records[0].ID).To(Equal(withConsumption.ID))
		Expect(records[0].Consumption).To(HaveValue(Equal(50)))
		Expect(records[0].EntityID).To(Equal("household-7"))
		Expect(records[0].DocumentType).To(Equal(billing.Gas))
		Expect(records[1].ID).To(Equal(without.ID))
		Expect(records[1].Consumption).To(BeNil())
		Expect(records[1].EntityID).To(BeEmpty())
	})

	It("should refuse a second record for the same token", func() {
		tokenID := uuid.NewString()
		first := &ConsumptionRecord{ID: uuid.NewString(), DocumentType: billing.Water, TokenID: tokenID, BillingDate: time.Now(), CreatedAt: time.Now()}
		second := &ConsumptionRecord{ID: uuid.NewString(), DocumentType: billing.Water, TokenID: tokenID, BillingDate: time.Now(), CreatedAt: time.Now()}
		Expect(pg.SaveConsumption(ctx, first)).To(Succeed())
		Expect(pg.SaveConsumption(ctx, second)).NotTo(Succeed())
	})
})
