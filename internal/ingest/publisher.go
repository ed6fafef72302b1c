package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange consumption events are published to
const DefaultExchange = "bill-ingest"

// Publisher implements Recorder by publishing each record as an event on a
// RabbitMQ topic exchange, routed by consumption.<documentType>
type Publisher struct {
	conn     *amqp.Connection
	mu       sync.Mutex // guards channel
	channel  *amqp.Channel
	exchange string
}

// NewPublisher connects to url and declares exchange
func NewPublisher(url, exchange string) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declaring exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
	}, nil
}

// routingKey is the topic a record is published under
func routingKey(record *ConsumptionRecord) string {
	return "consumption." + string(record.DocumentType)
}

// SaveConsumption publishes record as a persistent JSON message
func (p *Publisher) SaveConsumption(ctx context.Context, record *ConsumptionRecord) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling consumption event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey(record),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    record.ID,
			Timestamp:    record.CreatedAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing consumption event: %w", err)
	}
	return nil
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("closing channel: %w", err)
	}
	return p.conn.Close()
}
