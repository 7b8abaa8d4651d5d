package duplicate_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gbolabs/photoindex/internal/duplicate"
	"github.com/gbolabs/photoindex/internal/store"
)

var _ = Describe("Group state machine", func() {
	It("allows validated groups to be queued for deletion", func() {
		to, ok := duplicate.Transition(store.GroupValidated, duplicate.EventQueueForDeletion)
		Expect(ok).To(BeTrue())
		Expect(to).To(Equal(store.GroupCleaning))
	})

	It("allows a cleaned group to reopen on a new duplicate discovery", func() {
		to, ok := duplicate.Transition(store.GroupCleaned, duplicate.EventNewDuplicateDiscovered)
		Expect(ok).To(BeTrue())
		Expect(to).To(Equal(store.GroupPending))
	})

	It("rejects queueing for deletion before validation", func() {
		_, ok := duplicate.Transition(store.GroupPending, duplicate.EventQueueForDeletion)
		Expect(ok).To(BeFalse())
	})

	It("allows a failed cleaning job to be retried", func() {
		to, ok := duplicate.Transition(store.GroupCleaningFailed, duplicate.EventRetry)
		Expect(ok).To(BeTrue())
		Expect(to).To(Equal(store.GroupCleaning))
	})
})

var _ = Describe("Scoring", func() {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	It("prefers the candidate under a higher-priority path prefix", func() {
		prefs := []store.SelectionPreference{
			{PathPrefix: "/photos/originals/", Priority: 100},
			{PathPrefix: "/photos/downloads/", Priority: 0},
		}
		original := duplicate.ScoreInput{Path: "/photos/originals/a.jpg", ScanRoot: "/photos", ModifiedAt: now}
		download := duplicate.ScoreInput{Path: "/photos/downloads/a.jpg", ScanRoot: "/photos", ModifiedAt: now}

		Expect(duplicate.Score(original, prefs, now)).To(BeNumerically(">", duplicate.Score(download, prefs, now)))
	})

	It("gives files carrying EXIF metadata a strict bonus over files without", func() {
		var prefs []store.SelectionPreference
		withEXIF := duplicate.ScoreInput{Path: "/a.jpg", HasEXIF: true, ModifiedAt: now}
		withoutEXIF := duplicate.ScoreInput{Path: "/a.jpg", HasEXIF: false, ModifiedAt: now}

		Expect(duplicate.Score(withEXIF, prefs, now)).To(BeNumerically(">", duplicate.Score(withoutEXIF, prefs, now)))
	})
})
