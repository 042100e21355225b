// Package amqp publishes ledger mutation events to RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kasbot/internal/core"
	"kasbot/internal/log"
)

const publishTimeout = 5 * time.Second

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type dialFunc func() (*amqp091.Connection, channel, error)

// Publisher sends LedgerMutationEvents to a durable topic exchange. A broken
// connection is re-dialled once on the next publish.
type Publisher struct {
	exchange   string
	routingKey string
	dial       dialFunc
	logger     *log.Logger

	mu   sync.Mutex
	conn *amqp091.Connection
	ch   channel
}

// NewPublisher connects to url and declares the exchange.
func NewPublisher(url, exchange, routingKey string, logger *log.Logger) (*Publisher, error) {
	if logger == nil {
		logger = log.Discard()
	}
	p := &Publisher{
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger.WithComponent(log.ComponentAMQP),
	}
	p.dial = func() (*amqp091.Connection, channel, error) {
		return dialExchange(url, exchange)
	}

	conn, ch, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return p, nil
}

func dialExchange(url, exchange string) (*amqp091.Connection, channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return conn, ch, nil
}

// PublishMutation publishes the event for rec. Records that are not ledger
// writes are ignored.
func (p *Publisher) PublishMutation(ctx context.Context, rec core.CommandRecord) error {
	event, ok := NewLedgerMutationEvent(rec)
	if !ok {
		return nil
	}
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    event.Timestamp,
		MessageId:    rec.Gateway + ":" + rec.MessageID,
		Type:         "ledger.mutation",
		Body:         body,
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.publish(ctx, msg); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "Published ledger mutation",
		log.FieldCommand, rec.Command,
		log.FieldAmount, rec.Amount,
		log.FieldBalance, rec.Balance,
		"exchange", p.exchange,
		"routing_key", p.routingKey)
	return nil
}

func (p *Publisher) publish(ctx context.Context, msg amqp091.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.redial(); err != nil {
			return err
		}
	}

	err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg)
	if err == nil {
		return nil
	}
	if !errors.Is(err, amqp091.ErrClosed) {
		return fmt.Errorf("publish message: %w", err)
	}

	p.logger.WarnContext(ctx, "AMQP channel closed, reconnecting")
	if err := p.redial(); err != nil {
		return err
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// redial replaces the connection. Callers hold p.mu.
func (p *Publisher) redial() error {
	p.closeLocked()
	conn, ch, err := p.dial()
	if err != nil {
		return err
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	if p.ch != nil {
		p.ch.Close()
		p.ch = nil
	}
	var err error
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}
