// Package ingestionapi is the chi-based REST surface from spec.md §6.1,
// grounded on the teacher's HTTP handler layout (ais gateway proxy
// handlers): small per-resource handler files sharing one router, uniform
// error translation, and a trace id stamped on every response.
package ingestionapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/bus"
	"github.com/gbolabs/photoindex/internal/duplicate"
	"github.com/gbolabs/photoindex/internal/hub"
	"github.com/gbolabs/photoindex/internal/objstore"
	"github.com/gbolabs/photoindex/internal/store"
)

// Version is stamped at build time in a real release pipeline; kept as a
// var rather than a const so cmd/ingestion can override it via ldflags.
var Version = "dev"

type Server struct {
	db      *store.Store
	objs    *objstore.Store
	bus     *bus.Bus
	engine  *duplicate.Engine
	sess    *duplicate.Sessions
	hub     *hub.Hub
	log     *zap.Logger
	started time.Time
}

func NewServer(db *store.Store, objs *objstore.Store, b *bus.Bus, engine *duplicate.Engine, sess *duplicate.Sessions, h *hub.Hub, log *zap.Logger) *Server {
	return &Server{db: db, objs: objs, bus: b, engine: engine, sess: sess, hub: h, log: log, started: time.Now()}
}

// Router builds the full route tree from spec.md §6.1.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(traceIDMiddleware)
	r.Use(gzhttp.GzipHandler)

	r.Route("/files", func(r chi.Router) {
		r.Get("/", s.listFiles)
		r.Get("/stats", s.fileStats)
		r.Post("/batch", s.batchIngest)
		r.Post("/reprocess", s.reprocessFiles)
		r.Get("/{id}", s.getFile)
		r.Get("/{id}/thumbnail", s.getThumbnail)
		r.Get("/{id}/content", s.getContent)
	})

	r.Route("/scan-directories", func(r chi.Router) {
		r.Get("/", s.listScanDirectories)
		r.Post("/", s.createScanDirectory)
		r.Put("/{id}", s.updateScanDirectory)
		r.Delete("/{id}", s.deleteScanDirectory)
		r.Post("/{id}/scan", s.triggerScan)
		r.Patch("/{id}/last-scanned", s.touchLastScanned)
	})

	r.Route("/duplicates", func(r chi.Router) {
		r.Get("/", s.listGroups)
		r.Post("/auto-select-all", s.autoSelectAll)
		r.Get("/{id}", s.getGroup)
		r.Put("/{id}/original", s.setOriginal)
		r.Post("/{id}/auto-select", s.autoSelect)
		r.Delete("/{id}/non-originals", s.queueForDeletion)
	})

	r.Get("/version", s.version)
	r.Get("/health", s.health)

	return r
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": Version,
		"uptime":  time.Since(s.started).String(),
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DB().PingContext(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
