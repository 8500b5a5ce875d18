package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// EventProducer publishes JSON events to topic exchanges.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel

	mu       sync.Mutex
	declared map[string]bool
}

// sanitizeAMQPURL strips quotes left by env files and enforces an amqp(s) URL.
func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials the broker and opens the channel used for every publish.
// Exchanges are declared lazily by Publish.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("invalid RABBITMQ_URL: %w", err)
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	logrus.Info("RabbitMQ: Event producer connected")
	return &EventProducer{
		conn:     conn,
		channel:  channel,
		declared: make(map[string]bool),
	}, nil
}

// Publish declares the exchange on first use and sends body as JSON.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared[exchange] {
		err := p.channel.ExchangeDeclare(
			exchange, // name
			"topic",  // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // arguments
		)
		if err != nil {
			return err
		}
		p.declared[exchange] = true
	}

	err = p.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Body:         jsonBody,
		})
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"exchange":    exchange,
		"routing_key": routingKey,
	}).Debug("EventProducer: Published message")
	return nil
}

func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
