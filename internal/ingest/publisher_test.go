package ingest

import (
	"context"
	"encoding/json"
	"os"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-ingest/internal/billing"
)

var _ = Describe("Publisher", func() {
	It("should route records by document type", func() {
		Expect(routingKey(&ConsumptionRecord{DocumentType: billing.Electricity})).To(Equal("consumption.electricity"))
	})

	When("a broker is available", func() {
		var (
			url       string
			publisher *Publisher
			exchange  string
		)

		BeforeEach(func() {
			url = os.Getenv("BILL_INGEST_TEST_AMQP_URL")
			if url == "" {
				Skip("BILL_INGEST_TEST_AMQP_URL not set")
			}
			exchange = "bill-ingest-test"
			var err error
			publisher, err = NewPublisher(url, exchange)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			if publisher != nil {
				publisher.Close()
			}
		})

		It("should publish the record as persistent JSON", func() {
			conn, err := amqp.Dial(url)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			ch, err := conn.Channel()
			Expect(err).NotTo(HaveOccurred())
			defer ch.Close()

			q, err := ch.QueueDeclare("", false, true, true, false, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(ch.QueueBind(q.Name, "consumption.water", exchange, false, nil)).To(Succeed())
			deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
			Expect(err).NotTo(HaveOccurred())

			consumo := 30
			record := &ConsumptionRecord{
				ID:           "r1",
				DocumentType: billing.Water,
				Consumption:  &consumo,
				TokenID:      "t1",
				CreatedAt:    time.Now().UTC().Truncate(time.Second),
			}
			Expect(publisher.SaveConsumption(context.Background(), record)).To(Succeed())

			var delivery amqp.Delivery
			Eventually(deliveries, 5*time.Second).Should(Receive(&delivery))
			Expect(delivery.RoutingKey).To(Equal("consumption.water"))
			Expect(delivery.DeliveryMode).To(Equal(amqp.Persistent))
			Expect(delivery.ContentType).To(Equal("application/json"))

			var got ConsumptionRecord
			Expect(json.Unmarshal(delivery.Body, &got)).To(Succeed())
			Expect(got.ID).To(Equal("r1"))
			Expect(got.Consumption).To(HaveValue(Equal(30)))
		})
	})
})
