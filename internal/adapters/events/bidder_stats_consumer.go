package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/floroz/livebid/internal/payloads"
	pkgevents "github.com/floroz/livebid/pkg/events"
)

// BidderStatsQueue is durable so events published while the worker is down are kept
const BidderStatsQueue = "bidder_stats"

// ErrUnknownEvent is returned for routing keys the consumer is not bound to
var ErrUnknownEvent = errors.New("unknown event type")

// StatsProcessor is satisfied by *bidderstats.Service
type StatsProcessor interface {
	ProcessBidPlaced(ctx context.Context, event *payloads.BidPlaced) error
	ProcessAuctionClosed(ctx context.Context, event *payloads.AuctionClosed) error
}

// BidderStatsConsumer feeds auction events into the bidder statistics projection
type BidderStatsConsumer struct {
	conn      *amqp.Connection
	processor StatsProcessor
	logger    *slog.Logger
}

func NewBidderStatsConsumer(conn *amqp.Connection, processor StatsProcessor, logger *slog.Logger) *BidderStatsConsumer {
	return &BidderStatsConsumer{
		conn:      conn,
		processor: processor,
		logger:    logger,
	}
}

// Run consumes until ctx is cancelled
func (c *BidderStatsConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupRabbitMQ(ch); setupErr != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", setupErr)
	}

	msgs, err := ch.Consume(
		BidderStatsQueue, // queue
		"",               // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,              // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for messages...", "queue", BidderStatsQueue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

func (c *BidderStatsConsumer) deliver(ctx context.Context, d amqp.Delivery) {
	err := c.Handle(ctx, d.RoutingKey, d.Body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("Failed to Ack message", "error", ackErr)
		}
	case errors.Is(err, payloads.ErrMalformedPayload), errors.Is(err, ErrUnknownEvent):
		// redelivery cannot fix it
		c.logger.Error("Dropping event", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
	default:
		c.logger.Error("Failed to process event", "routing_key", d.RoutingKey, "error", err)
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to Nack message (requeue)", "error", nackErr)
		}
	}
}

// Handle decodes one event and applies it. Processing is idempotent on the event id.
func (c *BidderStatsConsumer) Handle(ctx context.Context, routingKey string, body []byte) error {
	switch routingKey {
	case payloads.EventBidPlaced:
		event, err := payloads.UnmarshalBidPlaced(body)
		if err != nil {
			return err
		}
		if err := c.processor.ProcessBidPlaced(ctx, event); err != nil {
			return err
		}
		c.logger.Info("Processed event", "event_id", event.EventID, "bid_id", event.BidID)
		return nil

	case payloads.EventAuctionClosed:
		event, err := payloads.UnmarshalAuctionClosed(body)
		if err != nil {
			return err
		}
		if err := c.processor.ProcessAuctionClosed(ctx, event); err != nil {
			return err
		}
		c.logger.Info("Processed event", "event_id", event.EventID, "auction_id", event.AuctionID)
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, routingKey)
	}
}

func (c *BidderStatsConsumer) setupRabbitMQ(ch *amqp.Channel) error {
	if err := pkgevents.DeclareExchange(ch); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		BidderStatsQueue, // name
		true,             // durable
		false,            // delete when unused
		false,            // exclusive
		false,            // no-wait
		nil,              // args
	)
	if err != nil {
		return err
	}

	for _, key := range []string{payloads.EventBidPlaced, payloads.EventAuctionClosed} {
		if err := ch.QueueBind(q.Name, key, pkgevents.ExchangeAuctionEvents, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}
