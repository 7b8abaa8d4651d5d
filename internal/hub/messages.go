// Package hub implements the control channel from spec.md §4.4.6: a
// persistent, multiplexed, bidirectional connection between the
// ingestion service and each connected worker, carrying typed
// commands outbound and typed status inbound over a single
// gorilla/websocket connection per worker.
package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WorkerKind distinguishes the two hub endpoints from spec.md §6.2.
type WorkerKind string

const (
	WorkerIndexer WorkerKind = "indexer"
	WorkerCleaner WorkerKind = "cleaner"
)

// MethodType is the closed set of message names the channel carries.
// "The client-server message set is closed; unknown method names must be
// rejected" — spec.md §6.2.
type MethodType string

const (
	// Server -> worker (commands)
	MethodDeleteFile    MethodType = "DeleteFile"
	MethodDeleteFiles   MethodType = "DeleteFiles"
	MethodCancelJob     MethodType = "CancelJob"
	MethodSetDryRun     MethodType = "SetDryRun"
	MethodRequestStatus MethodType = "RequestStatus"
	MethodReprocessFile MethodType = "ReprocessFile"
	MethodPause         MethodType = "Pause"
	MethodResume        MethodType = "Resume"
	MethodCancel        MethodType = "Cancel"

	// Worker -> server (status)
	MethodReportStatus         MethodType = "ReportStatus"
	MethodReportDeleteProgress MethodType = "ReportDeleteProgress"
	MethodReportDeleteComplete MethodType = "ReportDeleteComplete"
	MethodReportJobComplete    MethodType = "ReportJobComplete"
)

// validMethods is the closed set checked on every inbound frame.
var validMethods = map[MethodType]bool{
	MethodDeleteFile: true, MethodDeleteFiles: true, MethodCancelJob: true,
	MethodSetDryRun: true, MethodRequestStatus: true, MethodReprocessFile: true,
	MethodPause: true, MethodResume: true, MethodCancel: true,
	MethodReportStatus: true, MethodReportDeleteProgress: true,
	MethodReportDeleteComplete: true, MethodReportJobComplete: true,
}

// Frame is the single wire shape every hub message travels in: a method
// name plus a raw JSON payload, decoded by the method-specific struct once
// the method is known.
type Frame struct {
	Method  MethodType      `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

func newFrame(method MethodType, payload interface{}) (Frame, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Method: method, Payload: b}, nil
}

// --- Server -> worker command payloads ---

type DeleteFilePayload struct {
	JobID    uuid.UUID `json:"jobId"`
	FileID   uuid.UUID `json:"fileId"`
	Path     string    `json:"path"`
	Hash     string    `json:"hash"`
	Size     int64     `json:"size"`
	Category string    `json:"category"`
}

type DeleteFilesPayload struct {
	DryRun bool                 `json:"dryRun"`
	Batch  []DeleteFilePayload  `json:"batch"`
}

type CancelJobPayload struct {
	JobID uuid.UUID `json:"jobId"`
}

type SetDryRunPayload struct {
	DryRun bool `json:"dryRun"`
}

type ReprocessFilePayload struct {
	FileID uuid.UUID `json:"fileId"`
	Path   string    `json:"path"`
}

// --- Worker -> server status payloads ---

// StatusRecord is the discovery worker's live status (spec.md §4.3).
type StatusRecord struct {
	State              string    `json:"state"` // idle|scanning|processing|reprocessing|paused|error|disconnected
	CurrentDirectory   string    `json:"currentDirectory"`
	FilesProcessed     int64     `json:"filesProcessed"`
	FilesPerSecond     float64   `json:"filesPerSecond"`
	BytesPerSecond     float64   `json:"bytesPerSecond"`
	EstimatedRemaining int64     `json:"estimatedSecondsRemaining"`
	PendingDirectories []string  `json:"pendingDirectories"`
	LastError          string    `json:"lastError,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type ReportDeleteProgressPayload struct {
	JobID  uuid.UUID `json:"jobId"`
	FileID uuid.UUID `json:"fileId"`
	Phase  string    `json:"phase"`
}

type DeleteResult struct {
	JobID       uuid.UUID `json:"jobId"`
	FileID      uuid.UUID `json:"fileId"`
	Success     bool      `json:"success"`
	WasDryRun   bool      `json:"wasDryRun"`
	ArchivePath string    `json:"archivePath,omitempty"`
	Error       string    `json:"error,omitempty"`
	Skipped     bool      `json:"skipped"`
}

type ReportJobCompletePayload struct {
	JobID     uuid.UUID `json:"jobId"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
}
