// Package completion runs the ingestion service's two completion
// consumers from spec.md §4.4.3: MetadataExtracted and ThumbnailGenerated,
// each an idempotent named-column update keyed by row id.
package completion

import (
	"context"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/bus"
	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/store"
)

type Consumers struct {
	bus      *bus.Bus
	db       *store.Store
	log      *zap.Logger
	prefetch int
}

func New(b *bus.Bus, db *store.Store, prefetch int, log *zap.Logger) *Consumers {
	if prefetch <= 0 {
		prefetch = 16
	}
	return &Consumers{bus: b, db: db, prefetch: prefetch, log: log}
}

// Run starts both completion consumers and blocks until ctx is cancelled.
func (c *Consumers) Run(ctx context.Context) error {
	metaDeliveries, err := c.bus.Consume(bus.QueueMetadataExtracted, c.prefetch)
	if err != nil {
		return err
	}
	thumbDeliveries, err := c.bus.Consume(bus.QueueThumbnailGenerated, c.prefetch)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-metaDeliveries:
			if !ok {
				return nil
			}
			c.handleMetadata(ctx, d)
		case d, ok := <-thumbDeliveries:
			if !ok {
				return nil
			}
			c.handleThumbnail(ctx, d)
		}
	}
}

func (c *Consumers) handleMetadata(ctx context.Context, d amqp.Delivery) {
	var msg bus.MetadataExtracted
	if err := bus.Decode(d.Body, &msg); err != nil {
		c.log.Error("failed to decode MetadataExtracted", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if !msg.Success {
		if err := store.RecordWorkerFailure(ctx, c.db.DB(), msg.IndexedFileID, msg.ErrorMessage); err != nil {
			c.log.Error("failed to record metadata failure", zap.Error(err))
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		return
	}

	var captureTime *time.Time
	if msg.DateTaken != nil {
		if t, err := time.Parse(time.RFC3339, *msg.DateTaken); err == nil {
			utc := cmn.NormalizeUTC(t)
			captureTime = &utc
		}
	}

	err := store.ApplyMetadata(ctx, c.db.DB(), msg.IndexedFileID,
		msg.Width, msg.Height, captureTime, msg.CameraMake, msg.CameraModel,
		msg.GPSLat, msg.GPSLong, msg.ISO, msg.Aperture, msg.Shutter, msg.Orientation)
	if err != nil {
		c.log.Error("failed to apply metadata", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumers) handleThumbnail(ctx context.Context, d amqp.Delivery) {
	var msg bus.ThumbnailGenerated
	if err := bus.Decode(d.Body, &msg); err != nil {
		c.log.Error("failed to decode ThumbnailGenerated", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if !msg.Success {
		if err := store.RecordWorkerFailure(ctx, c.db.DB(), msg.IndexedFileID, msg.ErrorMessage); err != nil {
			c.log.Error("failed to record thumbnail failure", zap.Error(err))
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		return
	}

	if err := store.ApplyThumbnail(ctx, c.db.DB(), msg.IndexedFileID, msg.ThumbnailObjectKey); err != nil {
		c.log.Error("failed to apply thumbnail", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
