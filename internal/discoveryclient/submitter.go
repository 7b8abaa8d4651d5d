// Package discoveryclient is the discovery worker's outward-facing half:
// batching the scanner/hasher output into POST /files/batch calls with
// exponential backoff, and pushing status over the hub — grounded on the
// teacher's downloader job-progress-reporting shape (downloader/dispatcher.go)
// adapted from pull-job status to push-batch submission.
package discoveryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// FileDescriptor is the wire shape POST /files/batch accepts, mirroring
// internal/ingestionapi's batchFileDescriptor.
type FileDescriptor struct {
	Path         string    `json:"path"`
	Basename     string    `json:"basename"`
	FileHash     string    `json:"fileHash"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAtFS  time.Time `json:"createdAtFs"`
	ModifiedAtFS time.Time `json:"modifiedAtFs"`
}

type batchRequest struct {
	ScanDirectoryID uuid.UUID        `json:"scanDirectoryId"`
	Files           []FileDescriptor `json:"files"`
}

// Submitter batches descriptors and flushes them to the ingestion
// service's batch-ingest endpoint, pacing requests with a token bucket so
// a very fast scan doesn't flood the service.
type Submitter struct {
	baseURL         string
	scanDirectoryID uuid.UUID
	batchSize       int
	httpClient      *http.Client
	limiter         *rate.Limiter
	log             *zap.Logger

	buf []FileDescriptor
}

func NewSubmitter(baseURL string, scanDirectoryID uuid.UUID, batchSize int, log *zap.Logger) *Submitter {
	if batchSize <= 0 {
		batchSize = 250
	}
	return &Submitter{
		baseURL:         baseURL,
		scanDirectoryID: scanDirectoryID,
		batchSize:       batchSize,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		limiter:         rate.NewLimiter(rate.Limit(10), 10),
		log:             log,
		buf:             make([]FileDescriptor, 0, batchSize),
	}
}

// Add appends a descriptor, flushing automatically once batchSize is
// reached.
func (s *Submitter) Add(ctx context.Context, d FileDescriptor) error {
	s.buf = append(s.buf, d)
	if len(s.buf) >= s.batchSize {
		return s.Flush(ctx)
	}
	return nil
}

// Flush sends whatever is buffered, retrying with exponential backoff
// (capped, uncapped in attempt count) until it succeeds or ctx is
// cancelled. The buffer is only cleared once the send actually succeeds,
// so a worker that dies mid-retry can resubmit the same batch rather than
// lose it, and the caller is expected to pause the scan rather than
// advance past an unacknowledged batch.
func (s *Submitter) Flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}
	req := batchRequest{ScanDirectoryID: s.scanDirectoryID, Files: s.buf}

	body, err := json.Marshal(req)
	if err != nil {
		return cmn.NewValidation("marshal_batch_failed", "failed to marshal batch request")
	}

	backoff := 500 * time.Millisecond
	const maxBackoff = 30 * time.Second
	attempt := 0
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return cmn.NewCancelled("submit_cancelled", "batch submission cancelled")
		}
		if err := s.post(ctx, body); err != nil {
			s.log.Warn("batch submit failed, retrying", zap.Int("attempt", attempt), zap.Duration("retryIn", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return cmn.NewCancelled("submit_cancelled", "batch submission cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			attempt++
			continue
		}
		s.buf = s.buf[:0]
		return nil
	}
}

func (s *Submitter) post(ctx context.Context, body []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/files/batch", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return cmn.NewNetwork("batch_rejected", "ingestion service rejected batch", nil)
	}
	return nil
}
