// Package duplicate implements the duplicate-group lifecycle: the
// scoring-based auto-select engine (spec.md §4.4.4), the group state
// machine (§4.5), and the review-session state machine (§4.4.5). The
// teacher's "tagged enum + explicit transition table" Design Note (§9)
// drives statemachine.go; this file is the pure scoring function, kept
// free of store access so it is trivially unit-testable.
package duplicate

import (
	"strings"
	"time"

	"github.com/gbolabs/photoindex/internal/store"
)

const (
	exifBonus        = 20
	depthBonusPerSeg = 5
	depthBonusCap    = 25
	ageBonusPerMonth = 1
	ageBonusCap      = 12

	// DefaultConflictThreshold is the minimum score gap between the top two
	// candidates required to auto-pick an original (spec.md §4.4.4).
	DefaultConflictThreshold = 5
)

// ScoreInput is everything the scoring function needs for one candidate
// file, decoupled from *store.IndexedFile so tests can construct it
// directly.
type ScoreInput struct {
	Path        string
	ScanRoot    string
	HasEXIF     bool
	CaptureTime *time.Time
	ModifiedAt  time.Time
}

func FromFile(f *store.IndexedFile, scanRoot string) ScoreInput {
	return ScoreInput{
		Path:        f.Path,
		ScanRoot:    scanRoot,
		HasEXIF:     f.CaptureTime != nil || f.CameraMake != nil || f.GPSLat != nil,
		CaptureTime: f.CaptureTime,
		ModifiedAt:  f.ModifiedAtFS,
	}
}

// Score computes the integer score for one candidate per spec.md §4.4.4.
// Higher is better.
func Score(in ScoreInput, prefs []store.SelectionPreference, now time.Time) int {
	score := 0
	score += pathPriorityScore(in.Path, prefs)
	if in.HasEXIF {
		score += exifBonus
	}
	score += depthScore(in.Path, in.ScanRoot)
	score += ageScore(in, now)
	return score
}

// pathPriorityScore finds the longest matching prefix in prefs and adds
// its priority; prefs must already be sorted longest-prefix-first with
// sort_order as tie-break (store.SelectionPreferences does this).
func pathPriorityScore(path string, prefs []store.SelectionPreference) int {
	for _, p := range prefs {
		if strings.HasPrefix(path, p.PathPrefix) {
			return p.Priority
		}
	}
	return 0
}

func depthScore(path, scanRoot string) int {
	rel := strings.TrimPrefix(path, scanRoot)
	rel = strings.Trim(rel, "/\\")
	if rel == "" {
		return 0
	}
	segs := strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' })
	// The file's own basename is not a directory segment.
	depth := 0
	if len(segs) > 0 {
		depth = len(segs) - 1
	}
	bonus := depth * depthBonusPerSeg
	if bonus > depthBonusCap {
		bonus = depthBonusCap
	}
	return bonus
}

func ageScore(in ScoreInput, now time.Time) int {
	ref := in.ModifiedAt
	if in.CaptureTime != nil {
		ref = *in.CaptureTime
	}
	months := monthsBetween(ref, now)
	bonus := months * ageBonusPerMonth
	if bonus > ageBonusCap {
		bonus = ageBonusCap
	}
	if bonus < 0 {
		bonus = 0
	}
	return bonus
}

// monthsBetween counts full elapsed months from ref to now.
func monthsBetween(ref, now time.Time) int {
	ref, now = ref.UTC(), now.UTC()
	months := (now.Year()-ref.Year())*12 + int(now.Month()) - int(ref.Month())
	if now.Day() < ref.Day() {
		months--
	}
	return months
}
