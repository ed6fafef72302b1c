package token

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-ingest/internal/billing"
)

var _ = Describe("Sweeper", func() {
	var (
		clock   *fakeClock
		store   *MemoryStore
		sweeper *Sweeper
		ticks   chan time.Time
	)

	BeforeEach(func() {
		clock = newFakeClock()
		store = NewMemoryStore(WithTTL(time.Hour), WithTimeSource(clock))
		sweeper = NewSweeper(store, time.Minute)
		ticks = make(chan time.Time)
		sweeper.ticks = func(time.Duration) (<-chan time.Time, func()) {
			return ticks, func() {}
		}
	})

	It("should default the interval", func() {
		Expect(NewSweeper(store, 0).interval).To(Equal(DefaultSweepInterval))
	})

	It("should remove expired tokens on each tick and stop with its context", func() {
		_, err := store.Issue(context.Background(), billing.Water)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- sweeper.Run(ctx)
		}()

		ticks <- clock.Now()
		Expect(store.Len()).To(Equal(1))

		clock.Advance(2 * time.Hour)
		ticks <- clock.Now()
		// The next send only completes once the previous sweep returned
		ticks <- clock.Now()
		Expect(store.Len()).To(Equal(0))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("should report how many tokens one sweep removed", func() {
		for i := 0; i < 3; i++ {
			_, err := store.Issue(context.Background(), billing.Gas)
			Expect(err).NotTo(HaveOccurred())
		}
		clock.Advance(2 * time.Hour)
		Expect(sweeper.SweepOnce(context.Background())).To(Equal(3))
	})
})
