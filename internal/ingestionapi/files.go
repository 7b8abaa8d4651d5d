package ingestionapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/objstore"
	"github.com/gbolabs/photoindex/internal/store"
)

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.UUID{}, cmn.NewValidation("bad_id", "path parameter is not a valid id")
	}
	return id, nil
}

func parseBool(v string) *bool {
	if v == "" {
		return nil
	}
	b := v == "true" || v == "1"
	return &b
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GET /files
func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilesFilter{
		Hidden:        parseBool(q.Get("hidden")),
		HasDuplicates: parseBool(q.Get("hasDuplicates")),
		Search:        q.Get("search"),
		Page:          parseIntDefault(q.Get("page"), 0),
		PageSize:      parseIntDefault(q.Get("pageSize"), 50),
	}
	if dirID := q.Get("directory"); dirID != "" {
		id, err := uuid.Parse(dirID)
		if err != nil {
			writeError(w, r, cmn.NewValidation("bad_directory", "directory is not a valid id"))
			return
		}
		filter.ScanDirectoryID = &id
	}

	files, err := store.ListFiles(r.Context(), s.db.DB(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"files": files, "page": filter.Page, "pageSize": filter.PageSize})
}

// GET /files/stats
func (s *Server) fileStats(w http.ResponseWriter, r *http.Request) {
	db := s.db.DB()
	var totalFiles, liveFiles, duplicateFiles int64
	var totalBytes int64
	row := db.QueryRowContext(r.Context(), `SELECT count(*) FROM indexed_files`)
	if err := row.Scan(&totalFiles); err != nil {
		writeError(w, r, cmn.NewIO("stats_failed", "failed to compute file stats", err))
		return
	}
	if err := db.QueryRowContext(r.Context(), `
		SELECT count(*), coalesce(sum(size_bytes), 0) FROM indexed_files WHERE deletion_state = 'live'
	`).Scan(&liveFiles, &totalBytes); err != nil {
		writeError(w, r, cmn.NewIO("stats_failed", "failed to compute file stats", err))
		return
	}
	if err := db.QueryRowContext(r.Context(), `
		SELECT count(*) FROM indexed_files WHERE duplicate_group_id IS NOT NULL AND deletion_state = 'live'
	`).Scan(&duplicateFiles); err != nil {
		writeError(w, r, cmn.NewIO("stats_failed", "failed to compute file stats", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalFiles":     totalFiles,
		"liveFiles":      liveFiles,
		"duplicateFiles": duplicateFiles,
		"totalBytes":     totalBytes,
	})
}

// GET /files/{id}
func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := store.GetFile(r.Context(), s.db.DB(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// GET /files/{id}/thumbnail
func (s *Server) getThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := store.GetFile(r.Context(), s.db.DB(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if f.ThumbnailPath == nil {
		writeError(w, r, cmn.NewNotFound("no_thumbnail", "file has no thumbnail yet"))
		return
	}
	obj, err := s.objs.Get(r.Context(), objstore.BucketThumbnails, *f.ThumbnailPath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer obj.Close()
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = io.Copy(w, obj)
}

// GET /files/{id}/content streams the original bytes. Originals are
// scratch-space in the object store by design (spec.md §4.6 step 4
// deletes the source object after processing), so by the time a file has
// been enriched the content is only reachable via a worker tunnel over
// the hub rather than the object store; since no such tunnel command is
// defined beyond reprocessing, this responds 503 until a tunnel exists.
func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, cmn.NewNetwork("content_tunnel_unavailable", "original content is not retained after processing", nil))
}
