// Package archiveworker implements spec.md §4.7: the control-channel
// side that performs actual file deletion (moved to a trash root, never
// unlinked outright), grounded on the teacher's lru/worker.go eviction
// loop shape — a single goroutine draining typed commands and reporting
// results back over the same channel abstraction.
package archiveworker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/hub"
)

func decode(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}

type Config struct {
	TrashRoot string
	DryRun    bool
}

type Worker struct {
	client *hub.Client
	cfg    Config
	log    *zap.Logger
}

func New(client *hub.Client, cfg Config, log *zap.Logger) *Worker {
	return &Worker{client: client, cfg: cfg, log: log}
}

// Run drains frames off the hub client until its Inbound channel closes
// (the client itself owns reconnect/backoff; this loop just reacts).
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-w.client.Inbound:
			if !ok {
				return
			}
			w.dispatch(ctx, f)
		}
	}
}

func (w *Worker) dispatch(ctx context.Context, f hub.Frame) {
	switch f.Method {
	case hub.MethodDeleteFile:
		var p hub.DeleteFilePayload
		if err := decode(f.Payload, &p); err != nil {
			w.log.Warn("bad DeleteFile payload", zap.Error(err))
			return
		}
		res := w.deleteOne(p)
		_ = w.client.Send(hub.MethodReportDeleteComplete, res)

	case hub.MethodDeleteFiles:
		var p hub.DeleteFilesPayload
		if err := decode(f.Payload, &p); err != nil {
			w.log.Warn("bad DeleteFiles payload", zap.Error(err))
			return
		}
		var succeeded, failed, skipped int
		for _, item := range p.Batch {
			res := w.deleteOneWithDryRun(item, p.DryRun || w.cfg.DryRun)
			_ = w.client.Send(hub.MethodReportDeleteComplete, res)
			switch {
			case res.Skipped:
				skipped++
			case res.Success:
				succeeded++
			default:
				failed++
			}
		}
		if len(p.Batch) > 0 {
			_ = w.client.Send(hub.MethodReportJobComplete, hub.ReportJobCompletePayload{
				JobID:     p.Batch[0].JobID,
				Succeeded: succeeded,
				Failed:    failed,
				Skipped:   skipped,
			})
		}

	case hub.MethodCancelJob:
		// Cooperative cancellation (spec.md §5): this worker processes
		// commands synchronously and in order, so there is no in-flight
		// batch to interrupt mid-file. The worker keeps no record of
		// cancelled jobs: a DeleteFile or DeleteFiles for this job that
		// arrives later is still carried out. The command is only logged.
		var p hub.CancelJobPayload
		if err := decode(f.Payload, &p); err == nil {
			w.log.Info("job cancellation requested", zap.String("jobId", p.JobID.String()))
		}

	case hub.MethodSetDryRun:
		// Dry-run is fixed at startup from the worker's config; the
		// command is logged and does not change it.
		var p hub.SetDryRunPayload
		if err := decode(f.Payload, &p); err == nil {
			w.log.Info("SetDryRun ignored; dry-run is fixed at startup",
				zap.Bool("requested", p.DryRun), zap.Bool("dryRun", w.cfg.DryRun))
		}
	}
}

func (w *Worker) deleteOne(p hub.DeleteFilePayload) hub.DeleteResult {
	return w.deleteOneWithDryRun(p, w.cfg.DryRun)
}

// deleteOneWithDryRun implements the five-step sequence from spec.md §4.7.
func (w *Worker) deleteOneWithDryRun(p hub.DeleteFilePayload, dryRun bool) hub.DeleteResult {
	res := hub.DeleteResult{JobID: p.JobID, FileID: p.FileID}

	actualHash, err := hashFile(p.Path)
	if err != nil || actualHash != p.Hash {
		res.Skipped = true
		res.Success = false
		if err != nil {
			res.Error = "path unreadable: " + err.Error()
		} else {
			res.Error = "hash mismatch; file changed since indexing"
		}
		return res
	}

	if dryRun {
		res.Success = true
		res.WasDryRun = true
		return res
	}

	archivePath, err := w.moveToTrash(p)
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		return res
	}
	res.Success = true
	res.ArchivePath = archivePath
	return res
}

// moveToTrash implements spec.md §4.7 steps 3-4: a trash path that
// preserves the original relative path, atomic rename when possible,
// copy-then-delete fallback across filesystems.
func (w *Worker) moveToTrash(p hub.DeleteFilePayload) (string, error) {
	rel := p.Path
	if filepath.IsAbs(rel) {
		rel = rel[1:]
	}
	dest := filepath.Join(w.cfg.TrashRoot, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}

	if err := os.Rename(p.Path, dest); err == nil {
		return dest, nil
	}
	// Rename fails across filesystems (EXDEV) or devices; copy-then-delete
	// covers that case and any other rename failure uniformly.
	if err := copyThenDelete(p.Path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func copyThenDelete(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
