package ingestionapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/store"
)

// scanRoots builds the scanDirectoryID -> root path map the scoring
// engine needs for its path-depth term (spec.md §4.4.4 term 3).
func (s *Server) scanRoots(r *http.Request) (map[uuid.UUID]string, error) {
	dirs, err := store.ListScanDirectories(r.Context(), s.db.DB())
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(dirs))
	for _, d := range dirs {
		out[d.ID] = d.Path
	}
	return out, nil
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var status *store.GroupStatus
	if v := q.Get("status"); v != "" {
		gs := store.GroupStatus(v)
		status = &gs
	}
	page := parseIntDefault(q.Get("page"), 0)
	pageSize := parseIntDefault(q.Get("pageSize"), 20)

	groups, err := s.engine.ListGroups(r.Context(), status, page, pageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups, "page": page, "pageSize": pageSize})
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, members, err := s.engine.GetGroup(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"group": g, "files": members})
}

type setOriginalRequest struct {
	FileID uuid.UUID `json:"fileId"`
}

func (s *Server) setOriginal(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req setOriginalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, cmn.NewValidation("bad_body", "request body is not valid JSON"))
		return
	}
	if err := s.engine.SetOriginal(r.Context(), groupID, req.FileID); err != nil {
		writeError(w, r, err)
		return
	}
	g, members, err := s.engine.GetGroup(r.Context(), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"group": g, "files": members})
}

func (s *Server) autoSelect(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	roots, err := s.scanRoots(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conflict, err := s.engine.AutoSelectOriginal(r.Context(), groupID, roots)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if conflict != nil {
		writeJSON(w, http.StatusConflict, conflict)
		return
	}
	g, members, err := s.engine.GetGroup(r.Context(), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"group": g, "files": members})
}

func (s *Server) autoSelectAll(w http.ResponseWriter, r *http.Request) {
	roots, err := s.scanRoots(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.engine.AutoSelectAll(r.Context(), roots)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// queueForDeletion implements DELETE /duplicates/{id}/non-originals
// (spec.md §6.1): the name is DELETE but the effect is to enqueue a
// cleaner job, not to delete synchronously, hence 202.
func (s *Server) queueForDeletion(w http.ResponseWriter, r *http.Request) {
	groupID, err := parseUUIDParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	dryRun := r.URL.Query().Get("dryRun") == "true"
	job, err := s.engine.QueueForDeletion(r.Context(), groupID, dryRun)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}
