package ingest

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-ingest/internal/billing"
)

var _ = Describe("BoltDB", func() {
	var (
		ctx    context.Context
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		ctx = context.Background()
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	newRecord := func(id string, billed time.Time) *ConsumptionRecord {
		consumo := 30
		return &ConsumptionRecord{
			ID:            id,
			EntityID:      "household-7",
			DocumentType:  billing.Water,
			Consumption:   &consumo,
			BillingDate:   billed,
			ExtractedText: "ULTIMA LECTURA: 530",
			Confidence:    91.5,
			TokenID:       "token-" + id,
			CreatedAt:     time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC),
		}
	}

	Describe("SaveConsumption", func() {
		var (
			record *ConsumptionRecord
			err    error
		)

		BeforeEach(func() {
			record = newRecord("test-id", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
		})

		JustBeforeEach(func() {
			err = db.SaveConsumption(ctx, record)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the record to the database", func() {
				saved, getErr := db.GetConsumption(ctx, "test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
				Expect(saved.Consumption).To(HaveValue(Equal(30)))
				Expect(saved.DocumentType).To(Equal(billing.Water))
				Expect(saved.BillingDate).To(BeTemporally("==", record.BillingDate))
			})

			It("should survive a reopen", func() {
				Expect(db.Close()).To(Succeed())
				var openErr error
				db, openErr = NewBoltDB(dbPath)
				Expect(openErr).NotTo(HaveOccurred())

				saved, getErr := db.GetConsumption(ctx, "test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.TokenID).To(Equal("token-test-id"))
			})
		})
	})

	Describe("GetConsumption", func() {
		When("the record does not exist", func() {
			It("should return ErrRecordNotFound", func() {
				_, err := db.GetConsumption(ctx, "missing")
				Expect(err).To(MatchError(ErrRecordNotFound))
			})
		})
	})

	Describe("ListConsumptions", func() {
		When("records exist", func() {
			BeforeEach(func() {
				Expect(db.SaveConsumption(ctx, newRecord("jan", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))).To(Succeed())
				Expect(db.SaveConsumption(ctx, newRecord("mar", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))).To(Succeed())
				Expect(db.SaveConsumption(ctx, newRecord("feb", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))).To(Succeed())
			})

			It("should return them newest billing date first", func() {
				records, err := db.ListConsumptions(ctx)
				Expect(err).NotTo(HaveOccurred())
				ids := []string{}
				for _, r := range records {
					ids = append(ids, r.ID)
				}
				Expect(ids).To(Equal([]string{"mar", "feb", "jan"}))
			})
		})

		When("no records exist", func() {
			It("should return an empty slice", func() {
				records, err := db.ListConsumptions(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(records).NotTo(BeNil())
				Expect(records).To(BeEmpty())
			})
		})
	})
})
