package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"donationhub/internal/domain"
)

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

// Publisher sends accepted donations to the donation_events exchange.
type Publisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func NewPublisher(amqpURL string) (*Publisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := channel.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: channel}, nil
}

// Send implements Sender.
func (p *Publisher) Send(ctx context.Context, r domain.DonationRecord) error {
	body, err := json.Marshal(NewDonationMessage(r))
	if err != nil {
		return fmt.Errorf("marshal donation message: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, Exchange, RoutingKeyAccepted, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    r.ID,
		Timestamp:    r.Timestamp,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish donation: %w", err)
	}
	return nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Consumer reads donation events from a durable queue bound to the exchange.
type Consumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger zerolog.Logger
}

func NewConsumer(amqpURL string, logger zerolog.Logger) (*Consumer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	return &Consumer{conn: conn, ch: ch, logger: logger}, nil
}

// Consume delivers every donation.accepted message on queueName to handle
// until ctx is cancelled or the channel closes. Malformed messages are
// dropped; handler failures are re-queued.
func (c *Consumer) Consume(ctx context.Context, queueName string, handle func(context.Context, domain.DonationRecord) error) error {
	if err := c.ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := c.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, RoutingKeyAccepted, Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	if err := c.ch.Qos(8, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	msgs, err := c.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			c.handleDelivery(ctx, d, handle)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery, handle func(context.Context, domain.DonationRecord) error) {
	dispatch(ctx, c.logger, d.Body, d.Redelivered, &d, handle)
}

// dispatch decodes body and acknowledges according to the handler result.
// A message that already failed once is dropped instead of looping forever.
func dispatch(ctx context.Context, logger zerolog.Logger, body []byte, redelivered bool, ack acknowledger, handle func(context.Context, domain.DonationRecord) error) {
	record, err := DecodeDonationMessage(body)
	if err != nil {
		logger.Error().Err(err).Msg("dropping malformed donation message")
		_ = ack.Nack(false, false)
		return
	}
	if err := handle(ctx, record); err != nil {
		logger.Warn().Err(err).Str("donation_id", record.ID).Bool("redelivered", redelivered).Msg("donation handler failed")
		_ = ack.Nack(false, !redelivered)
		return
	}
	_ = ack.Ack(false)
}

func (c *Consumer) Close() {
	if c.ch != nil {
		c.ch.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
