// Package thumbnailworker implements spec.md §4.6's thumbnail generation
// consumer, mirroring metadataworker's consume/process/publish/cleanup
// shape with disintegration/imaging doing the resize+encode work.
package thumbnailworker

import (
	"bytes"
	"context"
	"image/jpeg"
	"io"

	"github.com/disintegration/imaging"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/bus"
	"github.com/gbolabs/photoindex/internal/objstore"
)

type Config struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

type Worker struct {
	bus      *bus.Bus
	objs     *objstore.Store
	cfg      Config
	log      *zap.Logger
	prefetch int
}

func New(b *bus.Bus, objs *objstore.Store, cfg Config, prefetch int, log *zap.Logger) *Worker {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 300
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 300
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 85
	}
	if prefetch <= 0 {
		prefetch = 8
	}
	return &Worker{bus: b, objs: objs, cfg: cfg, prefetch: prefetch, log: log}
}

func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.bus.Consume(bus.QueueThumbnailFileDiscovered, w.prefetch)
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

	if err := w.bus.PublishThumbnailGenerated(ctx, result); err != nil {
		w.log.Error("failed to publish ThumbnailGenerated", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}

	if err := w.objs.Delete(ctx, objstore.BucketThumbnailImages, msg.ObjectKey); err != nil {
		w.log.Warn("failed to delete scratch thumbnail-source object", zap.String("key", msg.ObjectKey), zap.Error(err))
	}

	_ = d.Ack(false)
}

func (w *Worker) process(ctx context.Context, msg bus.FileDiscovered) bus.ThumbnailGenerated {
	result := bus.ThumbnailGenerated{Envelope: bus.Envelope{
		CorrelationID: msg.CorrelationID,
		IndexedFileID: msg.IndexedFileID,
		ObjectKey:     msg.ObjectKey,
	}}

	obj, err := w.objs.Get(ctx, objstore.BucketThumbnailImages, msg.ObjectKey)
	if err != nil {
		result.Success = false
		result.ErrorMessage = "failed to download source object: " + err.Error()
		return result
	}
	defer obj.Close()

	src, err := imaging.Decode(obj, imaging.AutoOrientation(true))
	if err != nil {
		result.Success = false
		result.ErrorMessage = "failed to decode image: " + err.Error()
		return result
	}

	bounds := src.Bounds()
	var thumb = src
	if bounds.Dx() > w.cfg.MaxWidth || bounds.Dy() > w.cfg.MaxHeight {
		thumb = imaging.Fit(src, w.cfg.MaxWidth, w.cfg.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: w.cfg.Quality}); err != nil {
		result.Success = false
		result.ErrorMessage = "failed to encode thumbnail: " + err.Error()
		return result
	}

	key := objstore.ThumbnailKey(msg.FileHash)
	if err := w.objs.Put(ctx, objstore.BucketThumbnails, key, io.NopCloser(bytes.NewReader(buf.Bytes())), int64(buf.Len()), "image/jpeg"); err != nil {
		result.Success = false
		result.ErrorMessage = "failed to upload thumbnail: " + err.Error()
		return result
	}

	result.Success = true
	result.ThumbnailObjectKey = key
	return result
}
