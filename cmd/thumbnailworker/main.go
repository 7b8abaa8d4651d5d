// Command thumbnailworker runs the thumbnail generation consumer
// (spec.md §4.6): downloads each discovered file's scratch object,
// resizes it to fit the configured bounds, and publishes the result.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/bus"
	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/objstore"
	"github.com/gbolabs/photoindex/internal/thumbnailworker"
)

func main() {
	app := &cli.App{
		Name:  "thumbnailworker",
		Usage: "photoindex thumbnail generation worker",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML config file"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		zap.L().Fatal("thumbnail worker exited with error", zap.Error(err))
	}
}

func run(c *cli.Context) error {
	cfg, err := cmn.Load(c.String("config"))
	if err != nil {
		return err
	}
	log, err := cmn.NewLogger(cfg.LogLevel, "thumbnailworker")
	if err != nil {
		return err
	}
	defer log.Sync()

	objs, err := objstore.New(objstore.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	}, log)
	if err != nil {
		return err
	}

	rmqURL := "amqp://" + cfg.RabbitMQ.Username + ":" + cfg.RabbitMQ.Password + "@" + cfg.RabbitMQ.Host + "/"
	b, err := bus.Dial(rmqURL, log)
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.Topology(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w := thumbnailworker.New(b, objs, thumbnailworker.Config{
		MaxWidth:  cfg.Thumbnail.MaxWidth,
		MaxHeight: cfg.Thumbnail.MaxHeight,
		Quality:   cfg.Thumbnail.JPEGQuality,
	}, cfg.Indexing.Parallelism, log)

	log.Info("thumbnail worker consuming", zap.String("queue", bus.QueueThumbnailFileDiscovered))
	return w.Run(ctx)
}
