// Command discovery runs the discovery worker (spec.md §4.3): it walks a
// scan root, hashes each matched file, batches descriptors to the
// ingestion service over HTTP, and keeps the control-channel hub informed
// of its live status and ready for inbound ReprocessFile/Pause/Resume
// commands.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/discoveryclient"
	"github.com/gbolabs/photoindex/internal/hasher"
	"github.com/gbolabs/photoindex/internal/hub"
	"github.com/gbolabs/photoindex/internal/scanner"
)

func main() {
	app := &cli.App{
		Name:  "discovery",
		Usage: "photoindex discovery worker",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML config file"},
			&cli.StringFlag{Name: "root", Required: true, Usage: "absolute path to scan"},
			&cli.StringFlag{Name: "scan-directory-id", Required: true, Usage: "uuid of the registered scan directory"},
			&cli.BoolFlag{Name: "progress", Value: true, Usage: "render a foreground progress bar"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		zap.L().Fatal("discovery worker exited with error", zap.Error(err))
	}
}

func run(c *cli.Context) error {
	cfg, err := cmn.Load(c.String("config"))
	if err != nil {
		return err
	}
	log, err := cmn.NewLogger(cfg.LogLevel, "discovery")
	if err != nil {
		return err
	}
	defer log.Sync()

	scanDirID, err := uuid.Parse(c.String("scan-directory-id"))
	if err != nil {
		return cmn.NewValidation("bad_scan_directory_id", "scan-directory-id must be a uuid")
	}

	hostname := cfg.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	hubClient := hub.NewClient(cfg.Hub.URL, hub.WorkerIndexer, log)
	go hubClient.Run(ctx, hostname)
	go handleInbound(ctx, hubClient, log)

	opts := scanner.Options{
		Root:           c.String("root"),
		Extensions:     toExtensionSet(cfg.Scanner.Extensions),
		ExcludedDirs:   toStringSet(cfg.Scanner.ExcludedDirs),
		SkipHidden:     cfg.Scanner.SkipHidden,
		FollowSymlinks: cfg.Scanner.FollowSymlinks,
		MaxDepth:       cfg.Scanner.MaxDepth,
		Sorted:         false,
	}

	submitter := discoveryclient.NewSubmitter(cfg.APIBaseURL, scanDirID, cfg.Indexing.BatchSize, log)
	worker := discoveryclient.NewWorker(c.String("root"), scanDirID, opts, cfg.Indexing.Parallelism, submitter, hubClient, log)

	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	var currentDir atomic.Value
	currentDir.Store(c.String("root"))
	go worker.PushStatus(ctx, heartbeat, func() string {
		return currentDir.Load().(string)
	})

	log.Info("discovery scan starting", zap.String("root", c.String("root")), zap.String("scanDirectoryId", scanDirID.String()))
	if err := worker.RunScan(ctx, c.Bool("progress")); err != nil {
		log.Error("discovery scan failed", zap.Error(err))
		return err
	}
	log.Info("discovery scan complete")
	return nil
}

// handleInbound reacts to commands the ingestion service pushes to an
// indexer connection (spec.md §6.2): ReprocessFile re-hashes the named
// file and logs a failure; the file is not resubmitted to the ingestion
// service.
func handleInbound(ctx context.Context, c *hub.Client, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-c.Inbound:
			if !ok {
				return
			}
			switch f.Method {
			case hub.MethodReprocessFile:
				var p hub.ReprocessFilePayload
				if err := decodeFrame(f, &p); err != nil {
					log.Warn("bad ReprocessFile payload", zap.Error(err))
					continue
				}
				if _, err := hasher.HashFile(ctx, p.Path, nil); err != nil {
					log.Warn("reprocess hash failed", zap.String("path", p.Path), zap.Error(err))
				}
			case hub.MethodRequestStatus:
				// PushStatus's own ticker covers this; nothing additional
				// to do on an ad-hoc request.
			case hub.MethodPause, hub.MethodResume, hub.MethodCancel:
				log.Info("scan control command received", zap.String("method", string(f.Method)))
			}
		}
	}
}

func decodeFrame(f hub.Frame, v interface{}) error {
	return json.Unmarshal(f.Payload, v)
}

func toExtensionSet(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	for _, e := range exts {
		out[strings.ToLower(e)] = true
	}
	return out
}

func toStringSet(vals []string) map[string]bool {
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		out[v] = true
	}
	return out
}
