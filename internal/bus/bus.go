// Package bus wraps RabbitMQ (via streadway/amqp) behind the small
// publish/consume surface the pipeline needs: one topic exchange fanned
// out to per-worker durable queues, JSON bodies encoded with
// json-iterator, at-least-once delivery tolerated by idempotent
// consumers (spec.md §4.2).
package bus

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/cmn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Bus struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *zap.Logger
}

func Dial(url string, log *zap.Logger) (*Bus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, cmn.NewNetwork("bus_dial_failed", "failed to connect to message bus", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, cmn.NewNetwork("bus_channel_failed", "failed to open bus channel", err)
	}
	return &Bus{conn: conn, ch: ch, log: log}, nil
}

func (b *Bus) Close() error {
	_ = b.ch.Close()
	return b.conn.Close()
}

// Topology declares the FileDiscovered exchange, its two durable consumer
// queues, and the two single-consumer completion queues. Every process
// that touches the bus calls this at boot; declaration is idempotent.
func (b *Bus) Topology() error {
	if err := b.ch.ExchangeDeclare(ExchangeFileDiscovered, "fanout", true, false, false, false, nil); err != nil {
		return cmn.NewNetwork("exchange_declare_failed", "failed to declare exchange", err)
	}
	for _, q := range []string{QueueMetadataFileDiscovered, QueueThumbnailFileDiscovered, QueueMetadataExtracted, QueueThumbnailGenerated} {
		if _, err := b.ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return cmn.NewNetwork("queue_declare_failed", fmt.Sprintf("failed to declare queue %s", q), err)
		}
	}
	for _, q := range []string{QueueMetadataFileDiscovered, QueueThumbnailFileDiscovered} {
		if err := b.ch.QueueBind(q, "", ExchangeFileDiscovered, false, nil); err != nil {
			return cmn.NewNetwork("queue_bind_failed", fmt.Sprintf("failed to bind queue %s", q), err)
		}
	}
	return nil
}

// PublishFileDiscovered publishes one message to the shared exchange; the
// bus delivers a copy to each durable queue bound to it (spec.md §4.4.2).
func (b *Bus) PublishFileDiscovered(ctx context.Context, msg FileDiscovered) error {
	return b.publish(ctx, ExchangeFileDiscovered, "", msg)
}

func (b *Bus) PublishMetadataExtracted(ctx context.Context, msg MetadataExtracted) error {
	return b.publishToQueue(ctx, QueueMetadataExtracted, msg)
}

func (b *Bus) PublishThumbnailGenerated(ctx context.Context, msg ThumbnailGenerated) error {
	return b.publishToQueue(ctx, QueueThumbnailGenerated, msg)
}

func (b *Bus) publish(ctx context.Context, exchange, routingKey string, msg interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return cmn.NewValidation("marshal_failed", "failed to marshal bus message")
	}
	err = b.ch.Publish(exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return cmn.NewNetwork("publish_failed", "failed to publish bus message", err)
	}
	return nil
}

func (b *Bus) publishToQueue(ctx context.Context, queue string, msg interface{}) error {
	return b.publish(ctx, "", queue, msg)
}

// Consume starts consuming queue with the given prefetch (spec.md §5:
// "each processing worker uses a consumer concurrency equal to its
// queue's prefetch limit"). The caller acks/nacks each delivery.
func (b *Bus) Consume(queue string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := b.ch.Qos(prefetch, 0, false); err != nil {
		return nil, cmn.NewNetwork("qos_failed", "failed to set consumer prefetch", err)
	}
	deliveries, err := b.ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, cmn.NewNetwork("consume_failed", "failed to start consuming queue", err)
	}
	return deliveries, nil
}

// Decode unmarshals a delivery body into v.
func Decode(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return cmn.NewDecode("bus_decode_failed", "failed to decode bus message", err)
	}
	return nil
}
