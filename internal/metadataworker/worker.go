// Package metadataworker implements spec.md §4.6's metadata extraction
// consumer: download, decode EXIF, publish completion, always delete the
// scratch object — grounded on the teacher's xaction/xs consumer-loop
// shape (a single goroutine ranging over a channel of work items, each
// handled by a pure function that returns a result struct).
package metadataworker

import (
	"bytes"
	"context"
	"io"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/bus"
	"github.com/gbolabs/photoindex/internal/objstore"
)

type Worker struct {
	bus    *bus.Bus
	objs   *objstore.Store
	log    *zap.Logger
	prefetch int
}

func New(b *bus.Bus, objs *objstore.Store, prefetch int, log *zap.Logger) *Worker {
	if prefetch <= 0 {
		prefetch = 8
	}
	return &Worker{bus: b, objs: objs, prefetch: prefetch, log: log}
}

// Run consumes QueueMetadataFileDiscovered until ctx is cancelled. A
// delivery already being handled finishes its handle call, which then runs
// with the cancelled ctx; deliveries received but not yet handled are not
// drained and stay unacknowledged on the broker.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.bus.Consume(bus.QueueMetadataFileDiscovered, w.prefetch)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var msg bus.FileDiscovered
	if err := bus.Decode(d.Body, &msg); err != nil {
		w.log.Error("failed to decode FileDiscovered", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	result := w.process(ctx, msg)

	if err := w.bus.PublishMetadataExtracted(ctx, result); err != nil {
		w.log.Error("failed to publish MetadataExtracted", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}

	// The source bucket is scratch space; delete regardless of outcome
	// (spec.md §4.6 step 4).
	if err := w.objs.Delete(ctx, objstore.BucketMetadataImages, msg.ObjectKey); err != nil {
		w.log.Warn("failed to delete scratch metadata object", zap.String("key", msg.ObjectKey), zap.Error(err))
	}

	_ = d.Ack(false)
}

func (w *Worker) process(ctx context.Context, msg bus.FileDiscovered) bus.MetadataExtracted {
	result := bus.MetadataExtracted{Envelope: bus.Envelope{
		CorrelationID: msg.CorrelationID,
		IndexedFileID: msg.IndexedFileID,
		ObjectKey:     msg.ObjectKey,
	}}

	obj, err := w.objs.Get(ctx, objstore.BucketMetadataImages, msg.ObjectKey)
	if err != nil {
		result.Success = false
		result.ErrorMessage = "failed to download source object: " + err.Error()
		return result
	}
	defer obj.Close()

	buf, err := io.ReadAll(obj)
	if err != nil {
		result.Success = false
		result.ErrorMessage = "failed to read source object: " + err.Error()
		return result
	}

	fields, err := ExtractEXIF(bytes.NewReader(buf))
	if err != nil {
		result.Success = false
		result.ErrorMessage = err.Error()
		return result
	}

	result.Success = true
	result.Width = fields.Width
	result.Height = fields.Height
	result.DateTaken = fields.DateTaken
	result.CameraMake = fields.CameraMake
	result.CameraModel = fields.CameraModel
	result.GPSLat = fields.GPSLat
	result.GPSLong = fields.GPSLong
	result.ISO = fields.ISO
	result.Aperture = fields.Aperture
	result.Shutter = fields.Shutter
	result.Orientation = fields.Orientation
	return result
}
