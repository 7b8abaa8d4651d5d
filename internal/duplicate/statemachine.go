package duplicate

import "github.com/gbolabs/photoindex/internal/store"

// Event is one of the named transitions in spec.md §4.5.
type Event string

const (
	EventAutoSelect             Event = "autoSelect"
	EventSetOriginal            Event = "setOriginal"
	EventQueueForDeletion       Event = "queueForDeletion"
	EventJobOk                  Event = "jobOk"
	EventJobFail                Event = "jobFail"
	EventRetry                  Event = "retry"
	EventNewDuplicateDiscovered Event = "newDuplicateDiscovered"
)

// transitions is the closed table from spec.md §4.5. No transition outside
// this table is valid, per the Design Note on polymorphic status enums:
// represent as a tagged enum with explicit allowed-transition validation,
// not free-form strings.
var transitions = map[store.GroupStatus]map[Event]store.GroupStatus{
	store.GroupPending: {
		EventAutoSelect:  store.GroupAutoSelected,
		EventSetOriginal: store.GroupValidated,
	},
	store.GroupAutoSelected: {
		EventSetOriginal: store.GroupValidated,
	},
	store.GroupValidated: {
		EventQueueForDeletion: store.GroupCleaning,
	},
	store.GroupCleaning: {
		EventJobOk:   store.GroupCleaned,
		EventJobFail: store.GroupCleaningFailed,
	},
	store.GroupCleaningFailed: {
		EventRetry: store.GroupCleaning,
	},
	store.GroupCleaned: {
		EventNewDuplicateDiscovered: store.GroupPending,
	},
}

// Transition reports the resulting status for (from, event), and whether
// that transition is allowed.
func Transition(from store.GroupStatus, event Event) (to store.GroupStatus, ok bool) {
	byEvent, known := transitions[from]
	if !known {
		return "", false
	}
	to, ok = byEvent[event]
	return to, ok
}
