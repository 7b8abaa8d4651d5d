package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// CreateCleanerJob creates a job containing every live, non-hidden member
// of groupID except the original, per spec.md §4.4.4 queueForDeletion.
func CreateCleanerJob(ctx context.Context, tx *sql.Tx, groupID uuid.UUID, category JobCategory, dryRun bool) (*CleanerJob, error) {
	members, err := GroupMembers(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New()
	now := cmn.NormalizeUTC(time.Now())
	var total int
	for _, m := range members {
		if m.IsOriginal {
			continue
		}
		total++
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cleaner_jobs (id, status, category, dry_run, created_at, total_count)
		VALUES ($1, 'pending', $2, $3, $4, $5)
	`, jobID, category, dryRun, now, total)
	if err != nil {
		return nil, cmn.NewIO("create_job_failed", "failed to create cleaner job", err)
	}

	for _, m := range members {
		if m.IsOriginal {
			continue
		}
		fileID := uuid.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cleaner_job_files (id, job_id, indexed_file_id, status, was_dry_run)
			VALUES ($1, $2, $3, 'pending', $4)
		`, fileID, jobID, m.ID, dryRun)
		if err != nil {
			return nil, cmn.NewIO("create_job_file_failed", "failed to create cleaner job file", err)
		}
	}

	if !dryRun {
		if err := SetGroupStatus(ctx, tx, groupID, GroupCleaning); err != nil {
			return nil, err
		}
	}

	return GetCleanerJob(ctx, tx, jobID)
}

const jobSelect = `
	SELECT id, status, category, dry_run, created_at, completed_at,
	       total_count, succeeded_count, failed_count, skipped_count
	FROM cleaner_jobs
`

func scanJob(row interface{ Scan(dest ...interface{}) error }) (*CleanerJob, error) {
	var j CleanerJob
	err := row.Scan(&j.ID, &j.Status, &j.Category, &j.DryRun, &j.CreatedAt, &j.CompletedAt,
		&j.TotalCount, &j.SucceededCount, &j.FailedCount, &j.SkippedCount)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func GetCleanerJob(ctx context.Context, q queryRower, id uuid.UUID) (*CleanerJob, error) {
	row := q.QueryRowContext(ctx, jobSelect+` WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmn.NewNotFound("job_not_found", "cleaner job not found")
	}
	if err != nil {
		return nil, cmn.NewIO("get_job_failed", "failed to load cleaner job", err)
	}
	return j, nil
}

func JobFiles(ctx context.Context, q queryRower, jobID uuid.UUID) ([]*CleanerJobFile, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, job_id, indexed_file_id, status, archive_path, error_message, was_dry_run
		FROM cleaner_job_files WHERE job_id = $1
	`, jobID)
	if err != nil {
		return nil, cmn.NewIO("job_files_failed", "failed to load cleaner job files", err)
	}
	defer rows.Close()
	var out []*CleanerJobFile
	for rows.Next() {
		var f CleanerJobFile
		if err := rows.Scan(&f.ID, &f.JobID, &f.IndexedFileID, &f.Status, &f.ArchivePath, &f.ErrorMessage, &f.WasDryRun); err != nil {
			return nil, cmn.NewIO("job_files_scan_failed", "failed to scan cleaner job file", err)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// GetJobFileByJobAndFile resolves the cleaner_job_files row id for a given
// (jobID, indexedFileID) pair, the shape the control-channel hub receives
// from a worker's ReportDeleteComplete frame.
func GetJobFileByJobAndFile(ctx context.Context, q queryRower, jobID, indexedFileID uuid.UUID) (*CleanerJobFile, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, job_id, indexed_file_id, status, archive_path, error_message, was_dry_run
		FROM cleaner_job_files WHERE job_id = $1 AND indexed_file_id = $2
	`, jobID, indexedFileID)
	var f CleanerJobFile
	err := row.Scan(&f.ID, &f.JobID, &f.IndexedFileID, &f.Status, &f.ArchivePath, &f.ErrorMessage, &f.WasDryRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmn.NewNotFound("job_file_not_found", "cleaner job file not found")
	}
	if err != nil {
		return nil, cmn.NewIO("job_file_lookup_failed", "failed to look up cleaner job file", err)
	}
	return &f, nil
}

// GroupIDForJob resolves the duplicate group a cleaner job was raised
// against, via its constituent files — CreateCleanerJob always scopes one
// job to exactly one group's non-original members, so any member file's
// duplicate_group_id identifies the job's group.
func GroupIDForJob(ctx context.Context, q queryRower, jobID uuid.UUID) (uuid.UUID, error) {
	var groupID uuid.UUID
	err := q.QueryRowContext(ctx, `
		SELECT f.duplicate_group_id
		FROM cleaner_job_files jf
		JOIN indexed_files f ON f.id = jf.indexed_file_id
		WHERE jf.job_id = $1
		LIMIT 1
	`, jobID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, cmn.NewNotFound("job_group_not_found", "no files found for cleaner job")
	}
	if err != nil {
		return uuid.Nil, cmn.NewIO("job_group_lookup_failed", "failed to resolve group for cleaner job", err)
	}
	return groupID, nil
}

// ApplyJobFileResult records a single archive-worker result (spec.md §4.7
// step 5) and recomputes the job's counters from its child rows so they
// "remain consistent with the sum of child file states" (spec.md §3).
func ApplyJobFileResult(ctx context.Context, tx *sql.Tx, jobFileID, indexedFileID uuid.UUID,
	status FileJobStatus, archivePath *string, errMsg *string, wasDryRun bool) error {

	_, err := tx.ExecContext(ctx, `
		UPDATE cleaner_job_files SET status = $1, archive_path = $2, error_message = $3, was_dry_run = $4
		WHERE id = $5
	`, status, archivePath, errMsg, wasDryRun, jobFileID)
	if err != nil {
		return cmn.NewIO("apply_job_file_failed", "failed to apply job file result", err)
	}

	if status == FileJobDeleted && !wasDryRun {
		now := cmn.NormalizeUTC(time.Now())
		_, err := tx.ExecContext(ctx, `
			UPDATE indexed_files SET deletion_state = 'archived', archive_path = $1, archived_at = $2
			WHERE id = $3
		`, archivePath, now, indexedFileID)
		if err != nil {
			return cmn.NewIO("archive_file_failed", "failed to mark file archived", err)
		}
	} else if status == FileJobDeleted && wasDryRun {
		// dry-run: success recorded on the job file only, no filesystem or
		// row change (spec.md §8 scenario 5).
	}

	return recomputeJobCounters(ctx, tx, jobFileID)
}

func recomputeJobCounters(ctx context.Context, tx *sql.Tx, jobFileID uuid.UUID) error {
	var jobID uuid.UUID
	if err := tx.QueryRowContext(ctx, `SELECT job_id FROM cleaner_job_files WHERE id = $1`, jobFileID).Scan(&jobID); err != nil {
		return cmn.NewIO("job_lookup_failed", "failed to look up job for job file", err)
	}

	var succeeded, failed, skipped int
	err := tx.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'deleted'),
			count(*) FILTER (WHERE status = 'failed'),
			count(*) FILTER (WHERE status = 'skipped')
		FROM cleaner_job_files WHERE job_id = $1
	`, jobID).Scan(&succeeded, &failed, &skipped)
	if err != nil {
		return cmn.NewIO("job_counters_failed", "failed to recompute job counters", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE cleaner_jobs SET succeeded_count = $1, failed_count = $2, skipped_count = $3 WHERE id = $4
	`, succeeded, failed, skipped, jobID)
	if err != nil {
		return cmn.NewIO("update_job_counters_failed", "failed to update job counters", err)
	}
	return nil
}

// CompleteJob finalizes job status based on its counters and transitions
// the originating duplicate group (cleaning -> cleaned on success, cleaning
// -> cleaningFailed on any failure). A dry-run job never touched disk, so
// the group stays at validated regardless of the job's counters.
func CompleteJob(ctx context.Context, tx *sql.Tx, jobID, groupID uuid.UUID) error {
	j, err := GetCleanerJob(ctx, tx, jobID)
	if err != nil {
		return err
	}

	now := cmn.NormalizeUTC(time.Now())
	status := JobCompleted
	groupStatus := GroupCleaned
	if j.FailedCount > 0 {
		status = JobFailed
		groupStatus = GroupCleaningFailed
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE cleaner_jobs SET status = $1, completed_at = $2 WHERE id = $3
	`, status, now, jobID)
	if err != nil {
		return cmn.NewIO("complete_job_failed", "failed to complete cleaner job", err)
	}

	if j.DryRun {
		return nil
	}
	return SetGroupStatus(ctx, tx, groupID, groupStatus)
}

func CancelJob(ctx context.Context, tx *sql.Tx, jobID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `UPDATE cleaner_jobs SET status = 'cancelled' WHERE id = $1`, jobID)
	if err != nil {
		return cmn.NewIO("cancel_job_failed", "failed to cancel cleaner job", err)
	}
	return nil
}
