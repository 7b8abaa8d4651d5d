package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/duplicate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
)

// Hub implements spec.md §4.4.6: the ingestion service's side of the
// persistent control channel to each connected worker. It also satisfies
// internal/duplicate.Dispatcher so the duplicate engine can hand it
// delete commands without importing it.
type Hub struct {
	log      *zap.Logger
	registry *Registry

	mu      sync.Mutex
	pending map[uuid.UUID][]DeleteFilePayload // jobID -> undelivered/unacked files, resent on reconnect

	// OnDeleteComplete and OnJobComplete let the archive worker's job
	// results flow into the store without this package importing
	// internal/store directly; cmd/ingestion wires these to store calls.
	OnDeleteComplete func(DeleteResult)
	OnJobComplete    func(ReportJobCompletePayload)
}

var _ duplicate.Dispatcher = (*Hub)(nil)

func New(log *zap.Logger) *Hub {
	return &Hub{
		log:      log,
		registry: NewRegistry(),
		pending:  make(map[uuid.UUID][]DeleteFilePayload),
	}
}

// ServeIndexer upgrades discovery-worker connections.
func (h *Hub) ServeIndexer(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, WorkerIndexer)
}

// ServeCleaner upgrades archive-worker connections.
func (h *Hub) ServeCleaner(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, WorkerCleaner)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, kind WorkerKind) {
	hostname := r.URL.Query().Get("hostname")
	if hostname == "" {
		hostname = r.RemoteAddr
	}
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("hub upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	c := newConnection(id, kind, hostname, wsConn)
	h.registry.Add(c)
	h.log.Info("worker connected", zap.String("id", id), zap.String("kind", string(kind)), zap.String("hostname", hostname))

	go h.writePump(c)
	h.resendPendingFor(c)
	h.readPump(c)
}

func (h *Hub) writePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			b, err := json.Marshal(f)
			if err != nil {
				h.log.Error("failed to marshal hub frame", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

func (h *Hub) readPump(c *Connection) {
	defer func() {
		c.Close()
		h.registry.Remove(c)
		h.log.Info("worker disconnected", zap.String("id", c.ID), zap.String("kind", string(c.Kind)))
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			h.log.Warn("hub: malformed frame", zap.String("worker", c.ID), zap.Error(err))
			continue
		}
		if !validMethods[f.Method] {
			h.log.Warn("hub: rejected unknown method", zap.String("method", string(f.Method)))
			continue
		}
		h.dispatchInbound(c, f)
	}
}

func (h *Hub) dispatchInbound(c *Connection, f Frame) {
	switch f.Method {
	case MethodReportStatus:
		var s StatusRecord
		if err := json.Unmarshal(f.Payload, &s); err != nil {
			h.log.Warn("hub: bad ReportStatus payload", zap.Error(err))
			return
		}
		if err := h.registry.RecordStatus(c.ID, s); err != nil {
			h.log.Warn("hub: failed to record status", zap.Error(err))
		}
	case MethodReportDeleteComplete:
		var res DeleteResult
		if err := json.Unmarshal(f.Payload, &res); err != nil {
			h.log.Warn("hub: bad ReportDeleteComplete payload", zap.Error(err))
			return
		}
		h.ackDelete(res.JobID, res.FileID)
		if h.OnDeleteComplete != nil {
			h.OnDeleteComplete(res)
		}
	case MethodReportJobComplete:
		var res ReportJobCompletePayload
		if err := json.Unmarshal(f.Payload, &res); err != nil {
			h.log.Warn("hub: bad ReportJobComplete payload", zap.Error(err))
			return
		}
		h.clearPending(res.JobID)
		if h.OnJobComplete != nil {
			h.OnJobComplete(res)
		}
	case MethodReportDeleteProgress:
		// Progress reports are transient UI signal only; nothing in the
		// store tracks per-file phase, so there is nothing to persist.
	default:
		h.log.Debug("hub: unhandled inbound method", zap.String("method", string(f.Method)))
	}
}

// DispatchDeleteFiles implements duplicate.Dispatcher. Archive workers are
// not scoped to a scan root the way discovery workers are, so a job is
// broadcast to every connected cleaner connection; in the expected
// single-cleaner deployment this is exactly one delivery.
func (h *Hub) DispatchDeleteFiles(jobID uuid.UUID, dryRun bool, cmds []duplicate.DeleteFileCommand) error {
	payloads := make([]DeleteFilePayload, 0, len(cmds))
	for _, c := range cmds {
		payloads = append(payloads, DeleteFilePayload{
			JobID:    c.JobID,
			FileID:   c.FileID,
			Path:     c.Path,
			Hash:     c.Hash,
			Size:     c.Size,
			Category: string(c.Category),
		})
	}

	h.mu.Lock()
	h.pending[jobID] = payloads
	h.mu.Unlock()

	cleaners := h.registry.ByKind(WorkerCleaner)
	if len(cleaners) == 0 {
		return cmn.NewNetwork("no_cleaner_connected", "no archive worker is currently connected; job queued for delivery on reconnect", nil)
	}

	frame, err := newFrame(MethodDeleteFiles, DeleteFilesPayload{DryRun: dryRun, Batch: payloads})
	if err != nil {
		return cmn.NewIO("encode_delete_files_failed", "failed to encode DeleteFiles frame", err)
	}
	for _, c := range cleaners {
		c.Enqueue(frame)
	}
	return nil
}

func (h *Hub) resendPendingFor(c *Connection) {
	if c.Kind != WorkerCleaner {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for jobID, payloads := range h.pending {
		if len(payloads) == 0 {
			continue
		}
		frame, err := newFrame(MethodDeleteFiles, DeleteFilesPayload{Batch: payloads})
		if err != nil {
			continue
		}
		h.log.Info("resending pending delete job to reconnected cleaner", zap.String("jobId", jobID.String()))
		c.Enqueue(frame)
	}
}

func (h *Hub) ackDelete(jobID, fileID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	remaining := h.pending[jobID][:0]
	for _, p := range h.pending[jobID] {
		if p.FileID != fileID {
			remaining = append(remaining, p)
		}
	}
	h.pending[jobID] = remaining
}

func (h *Hub) clearPending(jobID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, jobID)
}

// CancelJob implements spec.md §4.4.6's cancellation path, broadcasting to
// connected cleaners and dropping the job from the resend-on-reconnect set.
func (h *Hub) CancelJob(jobID uuid.UUID) {
	h.clearPending(jobID)
	frame, err := newFrame(MethodCancelJob, CancelJobPayload{JobID: jobID})
	if err != nil {
		return
	}
	for _, c := range h.registry.ByKind(WorkerCleaner) {
		c.Enqueue(frame)
	}
}

// BroadcastSetDryRun sends a SetDryRun command to every connected worker.
// Dry-run mode is read once at worker startup and held for the process
// lifetime (spec.md §6.5): the archive worker logs this command and keeps
// its configured setting, and the discovery worker does not act on it.
func (h *Hub) BroadcastSetDryRun(dryRun bool) {
	frame, err := newFrame(MethodSetDryRun, SetDryRunPayload{DryRun: dryRun})
	if err != nil {
		return
	}
	for _, kind := range []WorkerKind{WorkerIndexer, WorkerCleaner} {
		for _, c := range h.registry.ByKind(kind) {
			c.Enqueue(frame)
		}
	}
}

// Statuses returns a snapshot of the ephemeral status cache, keyed by
// connection id (spec.md §4.3).
func (h *Hub) Statuses() map[string]StatusRecord { return h.registry.AllStatuses() }

// ReprocessFile implements the "reprocess" command routing question from
// spec.md §9: a file path is routed to the indexer connection whose
// hostname matches scanHostname when known, otherwise broadcast to all
// connected indexers. Every indexer that receives the command acts on it;
// none checks whether the path lies under its own scan roots.
func (h *Hub) ReprocessFile(fileID uuid.UUID, path, scanHostname string) error {
	frame, err := newFrame(MethodReprocessFile, ReprocessFilePayload{FileID: fileID, Path: path})
	if err != nil {
		return cmn.NewIO("encode_reprocess_failed", "failed to encode ReprocessFile frame", err)
	}
	indexers := h.registry.ByKind(WorkerIndexer)
	if scanHostname != "" {
		for _, c := range indexers {
			if c.Hostname == scanHostname {
				c.Enqueue(frame)
				return nil
			}
		}
	}
	for _, c := range indexers {
		c.Enqueue(frame)
	}
	return nil
}
