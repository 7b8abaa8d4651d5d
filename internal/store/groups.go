package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// EnsureGroupForHash returns the existing group for hash, or creates one in
// status 'pending' if none exists yet. Spec.md §3: "created at first ingest
// that raises a hash's live-file count to two ... never reused".
func EnsureGroupForHash(ctx context.Context, tx *sql.Tx, hash string) (*DuplicateGroup, error) {
	g, err := getGroupByHash(ctx, tx, hash)
	if err == nil {
		return g, nil
	}
	if !cmn.Is(err, cmn.KindNotFound) {
		return nil, err
	}
	id := uuid.New()
	now := cmn.NormalizeUTC(time.Now())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO duplicate_groups (id, hash, file_count, total_size, created_at, status)
		VALUES ($1, $2, 0, 0, $3, 'pending')
	`, id, hash, now)
	if err != nil {
		return nil, cmn.NewIO("create_group_failed", "failed to create duplicate group", err)
	}
	return getGroupByHash(ctx, tx, hash)
}

func getGroupByHash(ctx context.Context, q queryRower, hash string) (*DuplicateGroup, error) {
	row := q.QueryRowContext(ctx, groupSelect+` WHERE hash = $1`, hash)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmn.NewNotFound("group_not_found", "duplicate group not found")
	}
	if err != nil {
		return nil, cmn.NewIO("get_group_failed", "failed to load duplicate group", err)
	}
	return g, nil
}

const groupSelect = `
	SELECT id, hash, file_count, total_size, created_at, resolved_at,
	       original_file_id, status, review_session_id, review_order
	FROM duplicate_groups
`

func scanGroup(row interface{ Scan(dest ...interface{}) error }) (*DuplicateGroup, error) {
	var g DuplicateGroup
	err := row.Scan(&g.ID, &g.Hash, &g.FileCount, &g.TotalSize, &g.CreatedAt, &g.ResolvedAt,
		&g.OriginalFileID, &g.Status, &g.ReviewSessionID, &g.ReviewOrder)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func GetGroup(ctx context.Context, q queryRower, id uuid.UUID) (*DuplicateGroup, error) {
	row := q.QueryRowContext(ctx, groupSelect+` WHERE id = $1`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmn.NewNotFound("group_not_found", "duplicate group not found")
	}
	if err != nil {
		return nil, cmn.NewIO("get_group_failed", "failed to load duplicate group", err)
	}
	return g, nil
}

// ListGroups returns a page of groups ordered by creation time descending.
func ListGroups(ctx context.Context, q queryRower, status *GroupStatus, page, pageSize int) ([]*DuplicateGroup, error) {
	query := groupSelect + ` WHERE file_count >= 2`
	var args []interface{}
	if status != nil {
		query += ` AND status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, pageSize, page*pageSize)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cmn.NewIO("list_groups_failed", "failed to list duplicate groups", err)
	}
	defer rows.Close()
	var out []*DuplicateGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, cmn.NewIO("list_groups_scan_failed", "failed to scan group row", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GroupMembers returns the live members of a group sorted by path ascending,
// per spec.md §4.4.4 getGroup: "stable order (sort by path ascending)".
func GroupMembers(ctx context.Context, q queryRower, groupID uuid.UUID) ([]*IndexedFile, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+fileColumns+` FROM indexed_files
		WHERE duplicate_group_id = $1 AND deletion_state = 'live' AND hidden = false
		ORDER BY path ASC
	`, groupID)
	if err != nil {
		return nil, cmn.NewIO("group_members_failed", "failed to load group members", err)
	}
	defer rows.Close()
	var out []*IndexedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, cmn.NewIO("group_members_scan_failed", "failed to scan member row", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LinkFileToGroup sets the file's duplicate_group_id and recomputes the
// group's fileCount/totalSize, per spec.md §4.4.1(b).
func LinkFileToGroup(ctx context.Context, tx *sql.Tx, fileID, groupID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `UPDATE indexed_files SET duplicate_group_id = $1 WHERE id = $2`, groupID, fileID)
	if err != nil {
		return cmn.NewIO("link_file_failed", "failed to link file to group", err)
	}
	return RecomputeGroupCounts(ctx, tx, groupID)
}

// RecomputeGroupCounts recomputes fileCount/totalSize from live, non-hidden
// members. If the count falls below 2 the group is dissolved (spec.md §3:
// "destroyed when that count falls below two"): members are unlinked and
// the group row deleted.
func RecomputeGroupCounts(ctx context.Context, tx *sql.Tx, groupID uuid.UUID) error {
	var count int
	var total int64
	err := tx.QueryRowContext(ctx, `
		SELECT count(*), coalesce(sum(size_bytes), 0) FROM indexed_files
		WHERE duplicate_group_id = $1 AND deletion_state = 'live' AND hidden = false
	`, groupID).Scan(&count, &total)
	if err != nil {
		return cmn.NewIO("recompute_group_failed", "failed to recompute group counts", err)
	}

	if count < 2 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE indexed_files SET duplicate_group_id = NULL, is_original = false
			WHERE duplicate_group_id = $1
		`, groupID); err != nil {
			return cmn.NewIO("dissolve_unlink_failed", "failed to unlink dissolved group members", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM duplicate_groups WHERE id = $1`, groupID); err != nil {
			return cmn.NewIO("dissolve_delete_failed", "failed to delete dissolved group", err)
		}
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE duplicate_groups SET file_count = $1, total_size = $2 WHERE id = $3
	`, count, total, groupID)
	if err != nil {
		return cmn.NewIO("update_group_counts_failed", "failed to update group counts", err)
	}
	return nil
}

// SetOriginal marks fileID as the group's original, clears the flag on
// siblings, and transitions the group to 'validated'. Idempotent: calling
// it twice with the same (groupID, fileID) leaves the same end state
// (spec.md §8 round-trip property).
func SetOriginal(ctx context.Context, tx *sql.Tx, groupID, fileID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE indexed_files SET is_original = false WHERE duplicate_group_id = $1
	`, groupID); err != nil {
		return cmn.NewIO("clear_original_failed", "failed to clear existing original", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE indexed_files SET is_original = true WHERE id = $1 AND duplicate_group_id = $2
	`, fileID, groupID); err != nil {
		return cmn.NewIO("set_original_failed", "failed to set original", err)
	}
	now := cmn.NormalizeUTC(time.Now())
	if _, err := tx.ExecContext(ctx, `
		UPDATE duplicate_groups SET status = 'validated', original_file_id = $1, resolved_at = $2
		WHERE id = $3
	`, fileID, now, groupID); err != nil {
		return cmn.NewIO("resolve_group_failed", "failed to resolve group", err)
	}
	return nil
}

// SetGroupStatus updates only the status column; used by the duplicate
// engine's state machine (spec.md §4.5) for transitions that don't also
// set an original (autoSelect, queueForDeletion, job completion, retry).
func SetGroupStatus(ctx context.Context, tx *sql.Tx, groupID uuid.UUID, status GroupStatus) error {
	_, err := tx.ExecContext(ctx, `UPDATE duplicate_groups SET status = $1 WHERE id = $2`, status, groupID)
	if err != nil {
		return cmn.NewIO("set_group_status_failed", "failed to set group status", err)
	}
	return nil
}
