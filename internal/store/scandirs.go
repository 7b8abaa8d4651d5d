package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gbolabs/photoindex/internal/cmn"
)

const scanDirSelect = `SELECT id, path, enabled, last_scanned_at, file_count FROM scan_directories`

func scanScanDirectory(row interface{ Scan(dest ...interface{}) error }) (*ScanDirectory, error) {
	var d ScanDirectory
	if err := row.Scan(&d.ID, &d.Path, &d.Enabled, &d.LastScannedAt, &d.FileCount); err != nil {
		return nil, err
	}
	return &d, nil
}

func ListScanDirectories(ctx context.Context, q queryRower) ([]*ScanDirectory, error) {
	rows, err := q.QueryContext(ctx, scanDirSelect+` ORDER BY path ASC`)
	if err != nil {
		return nil, cmn.NewIO("list_scan_dirs_failed", "failed to list scan directories", err)
	}
	defer rows.Close()
	var out []*ScanDirectory
	for rows.Next() {
		d, err := scanScanDirectory(rows)
		if err != nil {
			return nil, cmn.NewIO("scan_dir_scan_failed", "failed to scan scan directory row", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func GetScanDirectory(ctx context.Context, q queryRower, id uuid.UUID) (*ScanDirectory, error) {
	row := q.QueryRowContext(ctx, scanDirSelect+` WHERE id = $1`, id)
	d, err := scanScanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmn.NewNotFound("scan_dir_not_found", "scan directory not found")
	}
	if err != nil {
		return nil, cmn.NewIO("get_scan_dir_failed", "failed to load scan directory", err)
	}
	return d, nil
}

// CreateScanDirectory enforces the uniqueness of absolute path (spec.md §6.1:
// "path must be absolute", 409 on duplicate).
func CreateScanDirectory(ctx context.Context, tx *sql.Tx, path string) (*ScanDirectory, error) {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT exists(SELECT 1 FROM scan_directories WHERE path = $1)`, path).Scan(&exists); err != nil {
		return nil, cmn.NewIO("check_scan_dir_failed", "failed to check for existing scan directory", err)
	}
	if exists {
		return nil, cmn.NewConflict("scan_dir_exists", "scan directory already registered")
	}
	id := uuid.New()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO scan_directories (id, path, enabled, file_count) VALUES ($1, $2, true, 0)
	`, id, path)
	if err != nil {
		return nil, cmn.NewIO("create_scan_dir_failed", "failed to create scan directory", err)
	}
	return GetScanDirectory(ctx, tx, id)
}

func UpdateScanDirectory(ctx context.Context, tx *sql.Tx, id uuid.UUID, enabled bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE scan_directories SET enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return cmn.NewIO("update_scan_dir_failed", "failed to update scan directory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cmn.NewNotFound("scan_dir_not_found", "scan directory not found")
	}
	return nil
}

func DeleteScanDirectory(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM scan_directories WHERE id = $1`, id)
	if err != nil {
		return cmn.NewIO("delete_scan_dir_failed", "failed to delete scan directory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cmn.NewNotFound("scan_dir_not_found", "scan directory not found")
	}
	return nil
}

// TouchLastScanned is the PATCH /scan-directories/{id}/last-scanned handler's
// backing call (spec.md §6.1), also updating the denormalized file count.
func TouchLastScanned(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	now := cmn.NormalizeUTC(time.Now())
	var fileCount int
	if err := tx.QueryRowContext(ctx, `
		SELECT count(*) FROM indexed_files WHERE scan_directory_id = $1 AND deletion_state = 'live'
	`, id).Scan(&fileCount); err != nil {
		return cmn.NewIO("count_files_failed", "failed to count files for scan directory", err)
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE scan_directories SET last_scanned_at = $1, file_count = $2 WHERE id = $3
	`, now, fileCount, id)
	if err != nil {
		return cmn.NewIO("touch_scan_dir_failed", "failed to update scan directory", err)
	}
	return nil
}
