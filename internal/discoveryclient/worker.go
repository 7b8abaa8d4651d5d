package discoveryclient

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vbauerster/mpb/v4"
	"github.com/vbauerster/mpb/v4/decor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gbolabs/photoindex/internal/hasher"
	"github.com/gbolabs/photoindex/internal/hub"
	"github.com/gbolabs/photoindex/internal/scanner"
)

// Worker ties the scanner, hasher, and Submitter together into the
// discovery process's main loop, reporting aggregate status over a hub
// Client and rendering a foreground progress bar when run interactively.
type Worker struct {
	scanRoot        string
	scanDirectoryID uuid.UUID
	opts            scanner.Options
	parallelism     int

	submitter *Submitter
	hubClient *hub.Client
	log       *zap.Logger

	filesProcessed int64
	bytesProcessed int64
}

func NewWorker(scanRoot string, scanDirectoryID uuid.UUID, opts scanner.Options, parallelism int, submitter *Submitter, hubClient *hub.Client, log *zap.Logger) *Worker {
	if parallelism <= 0 {
		parallelism = 8
	}
	opts.Root = scanRoot
	return &Worker{
		scanRoot:        scanRoot,
		scanDirectoryID: scanDirectoryID,
		opts:            opts,
		parallelism:     parallelism,
		submitter:       submitter,
		hubClient:       hubClient,
		log:             log,
	}
}

// RunScan walks scanRoot, hashing files with a bounded worker pool and
// feeding results to the Submitter.
func (w *Worker) RunScan(ctx context.Context, showProgress bool) error {
	type found struct {
		d scanner.Descriptor
	}
	items := make(chan found, w.parallelism*2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(items)
		_, err := scanner.Walk(gctx, w.opts, func(ctx context.Context, d scanner.Descriptor) error {
			select {
			case items <- found{d: d}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}, w.log)
		return err
	})

	var bar *mpb.Bar
	var progress *mpb.Progress
	if showProgress {
		text := "files scanned: "
		progress = mpb.New(mpb.WithWidth(60))
		bar = progress.AddBar(0,
			mpb.PrependDecorators(decor.Name(text, decor.WC{W: len(text) + 2, C: decor.DSyncWidthR})),
			mpb.AppendDecorators(decor.CountersNoUnit("%d", decor.WCSyncWidth)),
		)
	}

	for i := 0; i < w.parallelism; i++ {
		g.Go(func() error {
			for it := range items {
				hash, err := hasher.HashFile(gctx, it.d.AbsolutePath, nil)
				if err != nil {
					w.log.Warn("hash failed", zap.String("path", it.d.AbsolutePath), zap.Error(err))
					continue
				}
				fd := FileDescriptor{
					Path:         it.d.AbsolutePath,
					Basename:     it.d.Basename,
					FileHash:     hash,
					SizeBytes:    it.d.SizeBytes,
					ModifiedAtFS: time.Unix(it.d.ModifiedUTC, 0).UTC(),
					CreatedAtFS:  time.Unix(it.d.ModifiedUTC, 0).UTC(),
				}
				if err := w.submitter.Add(gctx, fd); err != nil {
					// Flush retries indefinitely, so Add only fails once the
					// scan is being torn down; stop rather than skip the
					// file, since silently continuing would advance past an
					// unacknowledged batch.
					return err
				}
				atomic.AddInt64(&w.filesProcessed, 1)
				atomic.AddInt64(&w.bytesProcessed, it.d.SizeBytes)
				if bar != nil {
					bar.Increment()
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if progress != nil {
		progress.Wait()
	}
	if err != nil {
		return err
	}
	return w.submitter.Flush(ctx)
}

// PushStatus reports the worker's current aggregate status over the hub
// at the configured heartbeat interval, continuing until ctx is cancelled.
func (w *Worker) PushStatus(ctx context.Context, interval time.Duration, currentDirectory func() string) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dir := ""
			if currentDirectory != nil {
				dir = currentDirectory()
			}
			status := hub.StatusRecord{
				State:            "scanning",
				CurrentDirectory: dir,
				FilesProcessed:   atomic.LoadInt64(&w.filesProcessed),
			}
			if err := w.hubClient.Send(hub.MethodReportStatus, status); err != nil {
				w.log.Warn("failed to push status", zap.Error(err))
			}
		}
	}
}
