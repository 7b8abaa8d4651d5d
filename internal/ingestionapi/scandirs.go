package ingestionapi

import (
	"database/sql"
	"net/http"

	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/store"
)

func (s *Server) listScanDirectories(w http.ResponseWriter, r *http.Request) {
	dirs, err := store.ListScanDirectories(r.Context(), s.db.DB())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dirs)
}

type createScanDirectoryRequest struct {
	Path string `json:"path"`
}

// createScanDirectory implements POST /scan-directories (spec.md §6.1:
// "path must be absolute", 400/409).
func (s *Server) createScanDirectory(w http.ResponseWriter, r *http.Request) {
	var req createScanDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, cmn.NewValidation("bad_body", "request body is not valid JSON"))
		return
	}
	if len(req.Path) == 0 || req.Path[0] != '/' {
		writeError(w, r, cmn.NewValidation("path_not_absolute", "scan directory path must be absolute"))
		return
	}
	var created *store.ScanDirectory
	err := s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		d, err := store.CreateScanDirectory(r.Context(), tx, req.Path)
		if err != nil {
			return err
		}
		created = d
		return nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type updateScanDirectoryRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) updateScanDirectory(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateScanDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, cmn.NewValidation("bad_body", "request body is not valid JSON"))
		return
	}
	err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		return store.UpdateScanDirectory(r.Context(), tx, id, req.Enabled)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := store.GetScanDirectory(r.Context(), s.db.DB(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) deleteScanDirectory(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		return store.DeleteScanDirectory(r.Context(), tx, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// triggerScan implements POST /scan-directories/{id}/scan. The ingestion
// service does not itself walk the filesystem — that is the discovery
// worker's job. This handler only validates the id and responds 202; it
// sends no command over the hub and starts no scan.
func (s *Server) triggerScan(w http.ResponseWriter, r *http.Request) {
	if _, err := parseUUIDParam(r, "id"); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) touchLastScanned(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.db.WithTx(r.Context(), func(tx *sql.Tx) error {
		return store.TouchLastScanned(r.Context(), tx, id)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
