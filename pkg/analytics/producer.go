/**
 * @description
 * This package provides the fire-and-forget analytics sink for the checkout
 * funnel. Events are published to a RabbitMQ topic exchange; a publish
 * failure is logged and swallowed so analytics can never fail a checkout
 * step.
 *
 * @dependencies
 * - context, encoding/json, time: Standard Go libraries.
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 * - internal/domain for the event payloads.
 */
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/curbside/checkout-service/internal/domain"
)

// Sink is the interface implemented by types that can emit analytics events.
type Sink interface {
	Emit(ctx context.Context, event domain.AnalyticsEvent)
	Close()
}

// Producer publishes analytics events to a RabbitMQ topic exchange.
type Producer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NopSink is a minimal no-op sink used when RabbitMQ is unavailable at startup.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, event domain.AnalyticsEvent) {
	log.Printf("level=warn component=analytics mode=fallback msg=\"event dropped\" event=%s item_id=%s", event.Name, event.ItemID)
}

func (NopSink) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// If any stray characters precede the scheme, slice from first occurrence of amqp
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
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

// NewProducer connects to RabbitMQ and returns a Producer bound to the given
// topic exchange.
func NewProducer(amqpURL, exchange string) (*Producer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	// Use a bounded dial timeout so startup does not hang indefinitely
	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Producer{conn: conn, channel: ch, exchange: exchange}, nil
}

// Emit publishes a single event. Errors are logged, never returned: the sink
// is fire-and-forget by contract.
func (p *Producer) Emit(ctx context.Context, event domain.AnalyticsEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("level=error component=analytics msg=\"json marshal failed\" event=%s err=%v", event.Name, err)
		return
	}

	routingKey := "checkout." + strings.ToLower(event.Name)
	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			MessageId:   event.ID.String(),
			Body:        body,
		},
	)
	if err != nil {
		log.Printf("level=warn component=analytics msg=\"publish failed; reopening channel\" event=%s err=%v", event.Name, err)
		// One-shot retry: reopen channel and try again
		if p.conn == nil {
			return
		}
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			return
		}
		p.channel = ch
		if exErr := p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); exErr != nil {
			return
		}
		if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			MessageId:   event.ID.String(),
			Body:        body,
		}); err != nil {
			log.Printf("level=warn component=analytics msg=\"publish retry failed; event dropped\" event=%s err=%v", event.Name, err)
		}
	}
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *Producer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
