// Command metadataworker runs the metadata extraction consumer
// (spec.md §4.6): downloads each discovered file's scratch object,
// extracts EXIF, publishes the result, and always deletes the scratch
// object regardless of outcome.
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
	"github.com/gbolabs/photoindex/internal/metadataworker"
	"github.com/gbolabs/photoindex/internal/objstore"
)

func main() {
	app := &cli.App{
		Name:  "metadataworker",
		Usage: "photoindex metadata extraction worker",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML config file"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		zap.L().Fatal("metadata worker exited with error", zap.Error(err))
	}
}

func run(c *cli.Context) error {
	cfg, err := cmn.Load(c.String("config"))
	if err != nil {
		return err
	}
	log, err := cmn.NewLogger(cfg.LogLevel, "metadataworker")
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

	w := metadataworker.New(b, objs, cfg.Indexing.Parallelism, log)
	log.Info("metadata worker consuming", zap.String("queue", bus.QueueMetadataFileDiscovered))
	return w.Run(ctx)
}
