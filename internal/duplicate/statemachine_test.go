package duplicate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gbolabs/photoindex/internal/store"
)

func TestTransitionAllowedPaths(t *testing.T) {
	cases := []struct {
		from  store.GroupStatus
		event Event
		to    store.GroupStatus
	}{
		{store.GroupPending, EventAutoSelect, store.GroupAutoSelected},
		{store.GroupPending, EventSetOriginal, store.GroupValidated},
		{store.GroupAutoSelected, EventSetOriginal, store.GroupValidated},
		{store.GroupValidated, EventQueueForDeletion, store.GroupCleaning},
		{store.GroupCleaning, EventJobOk, store.GroupCleaned},
		{store.GroupCleaning, EventJobFail, store.GroupCleaningFailed},
		{store.GroupCleaningFailed, EventRetry, store.GroupCleaning},
		{store.GroupCleaned, EventNewDuplicateDiscovered, store.GroupPending},
	}
	for _, c := range cases {
		to, ok := Transition(c.from, c.event)
		assert.Truef(t, ok, "%s -(%s)-> should be allowed", c.from, c.event)
		assert.Equal(t, c.to, to)
	}
}

func TestTransitionRejectsUnknownPaths(t *testing.T) {
	_, ok := Transition(store.GroupPending, EventJobOk)
	assert.False(t, ok)

	_, ok = Transition(store.GroupCleaned, EventAutoSelect)
	assert.False(t, ok)

	_, ok = Transition(store.GroupStatus("bogus"), EventAutoSelect)
	assert.False(t, ok)
}
