package ingestionapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/bus"
	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/objstore"
	"github.com/gbolabs/photoindex/internal/store"
)

type batchFileDescriptor struct {
	Path         string    `json:"path"`
	Basename     string    `json:"basename"`
	FileHash     string    `json:"fileHash"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAtFS  time.Time `json:"createdAtFs"`
	ModifiedAtFS time.Time `json:"modifiedAtFs"`
}

type batchIngestRequest struct {
	ScanDirectoryID uuid.UUID              `json:"scanDirectoryId"`
	Files           []batchFileDescriptor `json:"files"`
}

type batchFileResult struct {
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	FileID  string `json:"fileId,omitempty"`
}

type batchIngestResponse struct {
	Results       []batchFileResult `json:"results"`
	Accepted      int               `json:"accepted"`
	Failed        int               `json:"failed"`
	EventsQueued  int               `json:"eventsQueued"`
}

// batchIngest implements POST /files/batch, spec.md §4.4.1: each
// descriptor is upserted and linked to its duplicate group inside one
// serializable transaction; the resulting FileDiscovered event is
// published only after that transaction commits.
func (s *Server) batchIngest(w http.ResponseWriter, r *http.Request) {
	var req batchIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, cmn.NewValidation("bad_body", "request body is not valid JSON"))
		return
	}

	resp := batchIngestResponse{Results: make([]batchFileResult, 0, len(req.Files))}
	var toPublish []bus.FileDiscovered

	for _, fd := range req.Files {
		var published *bus.FileDiscovered
		err := s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
			res, err := store.UpsertFile(r.Context(), tx, req.ScanDirectoryID, store.Descriptor{
				Path:         fd.Path,
				Basename:     fd.Basename,
				FileHash:     fd.FileHash,
				SizeBytes:    fd.SizeBytes,
				CreatedAtFS:  fd.CreatedAtFS,
				ModifiedAtFS: fd.ModifiedAtFS,
			})
			if err != nil {
				return err
			}

			count, err := store.LiveHashCount(r.Context(), tx, res.File.FileHash)
			if err != nil {
				return err
			}
			if count >= 2 {
				group, err := store.EnsureGroupForHash(r.Context(), tx, res.File.FileHash)
				if err != nil {
					return err
				}
				if err := store.LinkFileToGroup(r.Context(), tx, res.File.ID, group.ID); err != nil {
					return err
				}
			}

			if res.IsNew || res.HashChanged {
				published = &bus.FileDiscovered{
					Envelope: bus.Envelope{
						CorrelationID: uuid.New(),
						IndexedFileID: res.File.ID,
						ObjectKey:     objstore.MetadataKey(res.File.FileHash),
					},
					ScanDirectoryID: req.ScanDirectoryID,
					FilePath:        res.File.Path,
					FileHash:        res.File.FileHash,
					FileSize:        res.File.SizeBytes,
				}
			}
			return nil
		})
		if err != nil {
			resp.Failed++
			resp.Results = append(resp.Results, batchFileResult{Path: fd.Path, Success: false, Error: err.Error()})
			continue
		}
		resp.Accepted++
		resp.Results = append(resp.Results, batchFileResult{Path: fd.Path, Success: true})
		if published != nil {
			toPublish = append(toPublish, *published)
		}
	}

	s.publishDiscovered(r.Context(), toPublish, &resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) publishDiscovered(ctx context.Context, events []bus.FileDiscovered, resp *batchIngestResponse) {
	for _, ev := range events {
		if err := s.bus.PublishFileDiscovered(ctx, ev); err != nil {
			s.log.Warn("failed to publish FileDiscovered", zap.String("fileId", ev.IndexedFileID.String()), zap.Error(err))
			continue
		}
		resp.EventsQueued++
	}
}

type reprocessRequest struct {
	FileIDs []uuid.UUID `json:"fileIds"`
}

// reprocessFiles implements POST /files/reprocess (spec.md §6.1): sends
// a ReprocessFile command for each listed file to the connected indexers
// (spec.md §9 open question on reprocess routing).
func (s *Server) reprocessFiles(w http.ResponseWriter, r *http.Request) {
	var req reprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, cmn.NewValidation("bad_body", "request body is not valid JSON"))
		return
	}
	for _, id := range req.FileIDs {
		f, err := store.GetFile(r.Context(), s.db.DB(), id)
		if err != nil {
			s.log.Warn("reprocess: file lookup failed", zap.String("fileId", id.String()), zap.Error(err))
			continue
		}
		// No per-directory worker-hostname mapping is tracked, so the
		// command broadcasts to every connected indexer; an indexer does
		// not check whether the path lies under its own scan roots.
		if err := s.hub.ReprocessFile(f.ID, f.Path, ""); err != nil {
			s.log.Warn("reprocess: dispatch failed", zap.String("fileId", id.String()), zap.Error(err))
		}
	}
	w.WriteHeader(http.StatusAccepted)
}
