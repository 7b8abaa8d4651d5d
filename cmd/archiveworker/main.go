// Command archiveworker runs the archive worker (spec.md §4.7): it
// connects to the control-channel hub as a cleaner, executes DeleteFile
// and DeleteFiles commands by moving files into a trash root, and
// reports results back over the same connection.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/archiveworker"
	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/hub"
)

func main() {
	app := &cli.App{
		Name:  "archiveworker",
		Usage: "photoindex archive (delete) worker",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML config file"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		zap.L().Fatal("archive worker exited with error", zap.Error(err))
	}
}

func run(c *cli.Context) error {
	cfg, err := cmn.Load(c.String("config"))
	if err != nil {
		return err
	}
	log, err := cmn.NewLogger(cfg.LogLevel, "archiveworker")
	if err != nil {
		return err
	}
	defer log.Sync()

	hostname := cfg.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hubClient := hub.NewClient(cfg.Hub.URL, hub.WorkerCleaner, log)
	go hubClient.Run(ctx, hostname)

	w := archiveworker.New(hubClient, archiveworker.Config{
		TrashRoot: cfg.Archive.TrashRoot,
		DryRun:    cfg.DryRunEnabled,
	}, log)

	log.Info("archive worker connected", zap.String("hub", cfg.Hub.URL))
	w.Run(ctx)
	return nil
}
