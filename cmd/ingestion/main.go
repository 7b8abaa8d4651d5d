// Command ingestion runs the ingestion/control service: the REST API
// (internal/ingestionapi), the control-channel hub (internal/hub), the
// duplicate engine (internal/duplicate), and the two completion consumers
// (internal/completion).
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/bus"
	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/completion"
	"github.com/gbolabs/photoindex/internal/duplicate"
	"github.com/gbolabs/photoindex/internal/hub"
	"github.com/gbolabs/photoindex/internal/ingestionapi"
	"github.com/gbolabs/photoindex/internal/objstore"
	"github.com/gbolabs/photoindex/internal/store"
)

const httpShutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "ingestion",
		Usage: "photoindex ingestion and control service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML config file"},
			&cli.StringFlag{Name: "listen", Value: ":8080", Usage: "HTTP listen address"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		zap.L().Fatal("ingestion service exited with error", zap.Error(err))
	}
}

func run(c *cli.Context) error {
	cfg, err := cmn.Load(c.String("config"))
	if err != nil {
		return err
	}
	log, err := cmn.NewLogger(cfg.LogLevel, "ingestion")
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := store.Open(cfg.ConnectionStrings.DefaultConnection, log)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.ApplySchema(); err != nil {
		return err
	}

	objs, err := objstore.New(objstore.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		UseSSL:    cfg.Minio.UseSSL,
	}, log)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	for _, b := range []string{objstore.BucketMetadataImages, objstore.BucketThumbnailImages, objstore.BucketThumbnails} {
		if err := objs.EnsureBucket(ctx, b); err != nil {
			return err
		}
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

	h := hub.New(log)
	engine := duplicate.NewEngine(db, log, cfg.Duplicate.ConflictThreshold, h)
	sessions := duplicate.NewSessions(db, engine)

	h.OnDeleteComplete = func(res hub.DeleteResult) {
		var archivePath, errMsg *string
		if res.ArchivePath != "" {
			archivePath = &res.ArchivePath
		}
		if res.Error != "" {
			errMsg = &res.Error
		}
		status := store.FileJobDeleted
		if res.Skipped {
			status = store.FileJobSkipped
		} else if !res.Success {
			status = store.FileJobFailed
		}
		if err := applyJobFileResult(ctx, db, res.JobID, res.FileID, status, archivePath, errMsg, res.WasDryRun); err != nil {
			log.Error("failed to apply delete result", zap.Error(err))
		}
	}
	h.OnJobComplete = func(res hub.ReportJobCompletePayload) {
		if err := completeJob(ctx, db, res.JobID); err != nil {
			log.Error("failed to complete cleaner job", zap.Error(err))
		}
	}

	consumers := completion.New(b, db, cfg.Indexing.Parallelism, log)
	go func() {
		if err := consumers.Run(ctx); err != nil {
			log.Error("completion consumers stopped", zap.Error(err))
		}
	}()

	server := ingestionapi.NewServer(db, objs, b, engine, sessions, h, log)
	mux := http.NewServeMux()
	mux.Handle("/", server.Router())
	mux.HandleFunc("/hubs/indexer", h.ServeIndexer)
	mux.HandleFunc("/hubs/cleaner", h.ServeCleaner)

	srv := &http.Server{Addr: c.String("listen"), Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("ingestion service listening", zap.String("addr", c.String("listen")))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// applyJobFileResult bridges a worker's wire-level DeleteResult (job id,
// indexed file id) to store.ApplyJobFileResult, which keys off the
// cleaner_job_files row id instead.
func applyJobFileResult(ctx context.Context, db *store.Store, jobID, fileID uuid.UUID,
	status store.FileJobStatus, archivePath, errMsg *string, wasDryRun bool) error {

	return db.WithTx(ctx, func(tx *sql.Tx) error {
		jf, err := store.GetJobFileByJobAndFile(ctx, tx, jobID, fileID)
		if err != nil {
			return err
		}
		return store.ApplyJobFileResult(ctx, tx, jf.ID, fileID, status, archivePath, errMsg, wasDryRun)
	})
}

func completeJob(ctx context.Context, db *store.Store, jobID uuid.UUID) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		groupID, err := store.GroupIDForJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		return store.CompleteJob(ctx, tx, jobID, groupID)
	})
}
