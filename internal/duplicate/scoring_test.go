package duplicate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gbolabs/photoindex/internal/store"
)

func TestPathPriorityScore(t *testing.T) {
	prefs := []store.SelectionPreference{
		{PathPrefix: "/photos/originals/", Priority: 100},
		{PathPrefix: "/photos/", Priority: 10},
	}
	assert.Equal(t, 100, pathPriorityScore("/photos/originals/a.jpg", prefs))
	assert.Equal(t, 10, pathPriorityScore("/photos/dump/a.jpg", prefs))
	assert.Equal(t, 0, pathPriorityScore("/other/a.jpg", prefs))
}

func TestDepthScoreCapped(t *testing.T) {
	assert.Equal(t, 0, depthScore("/root/a.jpg", "/root"))
	assert.Equal(t, depthBonusPerSeg, depthScore("/root/2020/a.jpg", "/root"))
	// 10 segments deep would be 50, capped at depthBonusCap.
	deep := "/root/a/b/c/d/e/f/g/h/i/j/pic.jpg"
	assert.Equal(t, depthBonusCap, depthScore(deep, "/root"))
}

func TestAgeScoreCappedAndNonNegative(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	recent := ScoreInput{ModifiedAt: now.AddDate(0, 0, -1)}
	assert.Equal(t, 0, ageScore(recent, now))

	sixMonths := ScoreInput{ModifiedAt: now.AddDate(0, -6, 0)}
	assert.Equal(t, 6, ageScore(sixMonths, now))

	veryOld := ScoreInput{ModifiedAt: now.AddDate(-5, 0, 0)}
	assert.Equal(t, ageBonusCap, ageScore(veryOld, now))

	future := ScoreInput{ModifiedAt: now.AddDate(0, 1, 0)}
	assert.Equal(t, 0, ageScore(future, now))
}

func TestAgeScorePrefersCaptureTimeOverModified(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	// Not now.AddDate(0, -3, 0): April 31 would normalize to May 1, two full months back.
	captured := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	in := ScoreInput{ModifiedAt: now, CaptureTime: &captured}
	assert.Equal(t, 3, ageScore(in, now))
}

func TestScoreCombinesAllFactors(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	prefs := []store.SelectionPreference{{PathPrefix: "/photos/originals/", Priority: 100}}
	in := ScoreInput{
		Path:       "/photos/originals/2020/a.jpg",
		ScanRoot:   "/photos/originals",
		HasEXIF:    true,
		ModifiedAt: now.AddDate(0, -2, 0),
	}
	got := Score(in, prefs, now)
	assert.Equal(t, 100+exifBonus+depthBonusPerSeg+2, got)
}

func TestFromFileDetectsEXIFPresence(t *testing.T) {
	noEXIF := &store.IndexedFile{Path: "/a.jpg", ModifiedAtFS: time.Now()}
	in := FromFile(noEXIF, "/")
	assert.False(t, in.HasEXIF)

	cameraMake := "Canon"
	withMake := &store.IndexedFile{Path: "/a.jpg", CameraMake: &cameraMake, ModifiedAtFS: time.Now()}
	in = FromFile(withMake, "/")
	assert.True(t, in.HasEXIF)
}
