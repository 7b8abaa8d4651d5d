package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/duplicate"
)

func TestValidMethodsIsClosedSet(t *testing.T) {
	for _, m := range []MethodType{
		MethodDeleteFile, MethodDeleteFiles, MethodCancelJob, MethodSetDryRun,
		MethodRequestStatus, MethodReprocessFile, MethodPause, MethodResume,
		MethodCancel, MethodReportStatus, MethodReportDeleteProgress,
		MethodReportDeleteComplete, MethodReportJobComplete,
	} {
		assert.True(t, validMethods[m], "%s should be a recognized method", m)
	}
	assert.False(t, validMethods[MethodType("NotARealMethod")])
}

func TestNewFrameRoundTrips(t *testing.T) {
	jobID := uuid.New()
	f, err := newFrame(MethodCancelJob, CancelJobPayload{JobID: jobID})
	require.NoError(t, err)
	assert.Equal(t, MethodCancelJob, f.Method)
	assert.Contains(t, string(f.Payload), jobID.String())
}

func TestDispatchDeleteFilesWithNoCleanerConnected(t *testing.T) {
	h := New(zap.NewNop())
	jobID := uuid.New()
	err := h.DispatchDeleteFiles(jobID, false, []duplicate.DeleteFileCommand{
		{JobID: jobID, FileID: uuid.New(), Path: "/a.jpg", Hash: "deadbeef", Size: 10},
	})
	require.Error(t, err)

	h.mu.Lock()
	pending := h.pending[jobID]
	h.mu.Unlock()
	assert.Len(t, pending, 1, "the job should still be tracked for resend on reconnect")
}

func TestAckDeleteRemovesOnlyMatchingFile(t *testing.T) {
	h := New(zap.NewNop())
	jobID := uuid.New()
	fileA, fileB := uuid.New(), uuid.New()
	h.pending[jobID] = []DeleteFilePayload{{JobID: jobID, FileID: fileA}, {JobID: jobID, FileID: fileB}}

	h.ackDelete(jobID, fileA)

	assert.Len(t, h.pending[jobID], 1)
	assert.Equal(t, fileB, h.pending[jobID][0].FileID)
}

func TestClearPendingRemovesJob(t *testing.T) {
	h := New(zap.NewNop())
	jobID := uuid.New()
	h.pending[jobID] = []DeleteFilePayload{{JobID: jobID, FileID: uuid.New()}}

	h.clearPending(jobID)

	_, ok := h.pending[jobID]
	assert.False(t, ok)
}

func TestOnDeleteCompleteCallbackInvoked(t *testing.T) {
	h := New(zap.NewNop())
	var received DeleteResult
	h.OnDeleteComplete = func(res DeleteResult) { received = res }

	jobID, fileID := uuid.New(), uuid.New()
	h.pending[jobID] = []DeleteFilePayload{{JobID: jobID, FileID: fileID}}

	c := &Connection{ID: "worker-1", Kind: WorkerCleaner}
	f, err := newFrame(MethodReportDeleteComplete, DeleteResult{JobID: jobID, FileID: fileID, Success: true})
	require.NoError(t, err)

	h.dispatchInbound(c, f)

	assert.Equal(t, jobID, received.JobID)
	assert.Equal(t, fileID, received.FileID)
	assert.True(t, received.Success)
	assert.Empty(t, h.pending[jobID])
}
