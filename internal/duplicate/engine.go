package duplicate

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gbolabs/photoindex/internal/cmn"
	"github.com/gbolabs/photoindex/internal/store"
)

// DeleteFileCommand is the payload the engine hands to a Dispatcher for
// each file in a newly queued cleaner job; it mirrors the hub's
// DeleteFile command fields (spec.md §4.4.6) without the engine package
// importing the hub package.
type DeleteFileCommand struct {
	JobID    uuid.UUID
	FileID   uuid.UUID
	Path     string
	Hash     string
	Size     int64
	Category store.JobCategory
}

// Dispatcher is implemented by internal/hub; kept as an interface here so
// internal/duplicate and internal/hub do not import each other.
type Dispatcher interface {
	DispatchDeleteFiles(jobID uuid.UUID, dryRun bool, cmds []DeleteFileCommand) error
}

// GroupWithThumbnail is the listGroups row shape (spec.md §4.4.4):
// "paginated groups with the first live file's thumbnail inlined".
type GroupWithThumbnail struct {
	*store.DuplicateGroup
	ThumbnailPath *string
}

// ConflictMarker is returned by AutoSelectOriginal when the top two scores
// are within the conflict threshold.
type ConflictMarker struct {
	GroupID      uuid.UUID
	TopScore     int
	RunnerUpScore int
}

type Engine struct {
	db                *store.Store
	log               *zap.Logger
	conflictThreshold int
	dispatcher        Dispatcher
}

func NewEngine(db *store.Store, log *zap.Logger, conflictThreshold int, dispatcher Dispatcher) *Engine {
	if conflictThreshold <= 0 {
		conflictThreshold = DefaultConflictThreshold
	}
	return &Engine{db: db, log: log, conflictThreshold: conflictThreshold, dispatcher: dispatcher}
}

// ListGroups implements spec.md §4.4.4 listGroups.
func (e *Engine) ListGroups(ctx context.Context, status *store.GroupStatus, page, pageSize int) ([]GroupWithThumbnail, error) {
	groups, err := store.ListGroups(ctx, e.dbHandle(), status, page, pageSize)
	if err != nil {
		return nil, err
	}
	out := make([]GroupWithThumbnail, 0, len(groups))
	for _, g := range groups {
		members, err := store.GroupMembers(ctx, e.dbHandle(), g.ID)
		if err != nil {
			return nil, err
		}
		var thumb *string
		if len(members) > 0 {
			thumb = members[0].ThumbnailPath
		}
		out = append(out, GroupWithThumbnail{DuplicateGroup: g, ThumbnailPath: thumb})
	}
	return out, nil
}

// GetGroup implements spec.md §4.4.4 getGroup.
func (e *Engine) GetGroup(ctx context.Context, id uuid.UUID) (*store.DuplicateGroup, []*store.IndexedFile, error) {
	g, err := store.GetGroup(ctx, e.dbHandle(), id)
	if err != nil {
		return nil, nil, err
	}
	members, err := store.GroupMembers(ctx, e.dbHandle(), id)
	if err != nil {
		return nil, nil, err
	}
	return g, members, nil
}

// SetOriginal implements spec.md §4.4.4 setOriginal. Idempotent: calling it
// twice with the same arguments is indistinguishable from once.
func (e *Engine) SetOriginal(ctx context.Context, groupID, fileID uuid.UUID) error {
	return e.db.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := store.GetGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if _, ok := Transition(g.Status, EventSetOriginal); !ok && g.Status != store.GroupValidated {
			return cmn.NewConflict("invalid_transition", "group cannot accept setOriginal from its current status")
		}
		members, err := store.GroupMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}
		found := false
		for _, m := range members {
			if m.ID == fileID {
				found = true
				break
			}
		}
		if !found {
			return cmn.NewNotFound("file_not_in_group", "file is not a live member of this group")
		}
		return store.SetOriginal(ctx, tx, groupID, fileID)
	})
}

// AutoSelectOriginal implements spec.md §4.4.4 autoSelectOriginal.
func (e *Engine) AutoSelectOriginal(ctx context.Context, groupID uuid.UUID, scanRoots map[uuid.UUID]string) (*ConflictMarker, error) {
	var conflict *ConflictMarker
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := store.GetGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if _, ok := Transition(g.Status, EventAutoSelect); !ok {
			return cmn.NewConflict("invalid_transition", "group cannot be auto-selected from its current status")
		}
		members, err := store.GroupMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if len(members) == 0 {
			return cmn.NewNotFound("group_empty", "group has no live members")
		}
		prefs, err := store.SelectionPreferences(ctx, tx)
		if err != nil {
			return err
		}

		now := time.Now()
		type scored = struct {
			file  *store.IndexedFile
			score int
		}
		scoredMembers := make([]scored, 0, len(members))
		for _, m := range members {
			root := scanRoots[m.ScanDirectoryID]
			s := Score(FromFile(m, root), prefs, now)
			scoredMembers = append(scoredMembers, scored{file: m, score: s})
		}
		sortByScoreDesc(scoredMembers)

		if len(scoredMembers) >= 2 {
			gap := scoredMembers[0].score - scoredMembers[1].score
			if gap < e.conflictThreshold {
				conflict = &ConflictMarker{
					GroupID:       groupID,
					TopScore:      scoredMembers[0].score,
					RunnerUpScore: scoredMembers[1].score,
				}
				return nil // leave status as pending
			}
		}

		winner := scoredMembers[0].file
		if _, err := tx.ExecContext(ctx, `UPDATE indexed_files SET is_original = false WHERE duplicate_group_id = $1`, groupID); err != nil {
			return cmn.NewIO("clear_original_failed", "failed to clear existing original", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE indexed_files SET is_original = true WHERE id = $1`, winner.ID); err != nil {
			return cmn.NewIO("set_auto_original_failed", "failed to set auto-selected original", err)
		}
		return store.SetGroupStatus(ctx, tx, groupID, store.GroupAutoSelected)
	})
	if err != nil {
		return nil, err
	}
	return conflict, nil
}

func sortByScoreDesc(s []struct {
	file  *store.IndexedFile
	score int
}) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].score > s[j-1].score; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// AutoSelectAllResult counts outcomes of a bulk auto-select pass.
type AutoSelectAllResult struct {
	Selected  int
	Conflicts int
}

// AutoSelectAll implements spec.md §4.4.4 autoSelectAll.
func (e *Engine) AutoSelectAll(ctx context.Context, scanRoots map[uuid.UUID]string) (AutoSelectAllResult, error) {
	pending := store.GroupPending
	groups, err := store.ListGroups(ctx, e.dbHandle(), &pending, 0, 10000)
	if err != nil {
		return AutoSelectAllResult{}, err
	}
	var result AutoSelectAllResult
	for _, g := range groups {
		conflict, err := e.AutoSelectOriginal(ctx, g.ID, scanRoots)
		if err != nil {
			e.log.Warn("auto-select failed for group", zap.String("group", g.ID.String()), zap.Error(err))
			continue
		}
		if conflict != nil {
			result.Conflicts++
		} else {
			result.Selected++
		}
	}
	return result, nil
}

// QueueForDeletion implements spec.md §4.4.4 queueForDeletion. It creates
// the CleanerJob inside the transaction, then — once committed — hands the
// per-file delete commands to the Dispatcher (the hub), matching the
// "defer publish until after commit" discipline used for bus events.
func (e *Engine) QueueForDeletion(ctx context.Context, groupID uuid.UUID, dryRun bool) (*store.CleanerJob, error) {
	var job *store.CleanerJob
	var cmds []DeleteFileCommand

	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		g, err := store.GetGroup(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if _, ok := Transition(g.Status, EventQueueForDeletion); !ok {
			return cmn.NewConflict("invalid_transition", "group must be validated before queueing for deletion")
		}
		members, err := store.GroupMembers(ctx, tx, groupID)
		if err != nil {
			return err
		}

		created, err := store.CreateCleanerJob(ctx, tx, groupID, store.JobCategoryHashDuplicate, dryRun)
		if err != nil {
			return err
		}
		job = created

		files, err := store.JobFiles(ctx, tx, job.ID)
		if err != nil {
			return err
		}
		byFileID := map[uuid.UUID]*store.IndexedFile{}
		for _, m := range members {
			byFileID[m.ID] = m
		}
		for _, jf := range files {
			f := byFileID[jf.IndexedFileID]
			if f == nil {
				continue
			}
			cmds = append(cmds, DeleteFileCommand{
				JobID:    job.ID,
				FileID:   f.ID,
				Path:     f.Path,
				Hash:     f.FileHash,
				Size:     f.SizeBytes,
				Category: store.JobCategoryHashDuplicate,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if e.dispatcher != nil && len(cmds) > 0 {
		if err := e.dispatcher.DispatchDeleteFiles(job.ID, dryRun, cmds); err != nil {
			e.log.Warn("failed to dispatch delete commands", zap.Error(err))
		}
	}
	return job, nil
}

// dbHandle exposes the *sql.DB for read-only helpers that don't need a
// transaction.
func (e *Engine) dbHandle() *sql.DB { return e.db.DB() }
