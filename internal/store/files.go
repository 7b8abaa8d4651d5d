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

// Descriptor is the scanner-produced shape a batch-ingest row starts from;
// see spec.md §4.3 "Yields file descriptors".
type Descriptor struct {
	Path         string
	Basename     string
	FileHash     string
	SizeBytes    int64
	CreatedAtFS  time.Time
	ModifiedAtFS time.Time
}

// UpsertResult reports what UpsertFile actually did, so the ingestion
// handler (spec.md §4.4.1) can decide whether to publish a FileDiscovered
// event.
type UpsertResult struct {
	File        *IndexedFile
	IsNew       bool
	HashChanged bool
}

// UpsertFile inserts or updates the row identified by (scanDirectoryID, path).
// Must run inside a transaction from the caller (spec.md §4.4.1: "a single
// serializable transaction per descriptor").
func UpsertFile(ctx context.Context, tx *sql.Tx, scanDirectoryID uuid.UUID, d Descriptor) (UpsertResult, error) {
	var existingID uuid.UUID
	var existingHash string
	err := tx.QueryRowContext(ctx, `
		SELECT id, file_hash FROM indexed_files
		WHERE scan_directory_id = $1 AND path = $2
	`, scanDirectoryID, d.Path).Scan(&existingID, &existingHash)

	now := cmn.NormalizeUTC(time.Now())

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id := uuid.New()
		_, err := tx.ExecContext(ctx, `
			INSERT INTO indexed_files
				(id, scan_directory_id, path, basename, file_hash, size_bytes,
				 created_at_fs, modified_at_fs, indexed_at, deletion_state)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'live')
		`, id, scanDirectoryID, d.Path, d.Basename, d.FileHash, d.SizeBytes,
			d.CreatedAtFS.UTC(), d.ModifiedAtFS.UTC(), now)
		if err != nil {
			return UpsertResult{}, cmn.NewIO("upsert_insert_failed", "failed to insert indexed file", err)
		}
		f, ferr := GetFile(ctx, tx, id)
		if ferr != nil {
			return UpsertResult{}, ferr
		}
		return UpsertResult{File: f, IsNew: true}, nil

	case err != nil:
		return UpsertResult{}, cmn.NewIO("upsert_lookup_failed", "failed to look up indexed file", err)

	default:
		hashChanged := existingHash != d.FileHash
		_, err := tx.ExecContext(ctx, `
			UPDATE indexed_files
			SET basename = $1, file_hash = $2, size_bytes = $3,
			    modified_at_fs = $4, indexed_at = $5
			WHERE id = $6
		`, d.Basename, d.FileHash, d.SizeBytes, d.ModifiedAtFS.UTC(), now, existingID)
		if err != nil {
			return UpsertResult{}, cmn.NewIO("upsert_update_failed", "failed to update indexed file", err)
		}
		f, ferr := GetFile(ctx, tx, existingID)
		if ferr != nil {
			return UpsertResult{}, ferr
		}
		return UpsertResult{File: f, IsNew: false, HashChanged: hashChanged}, nil
	}
}

// queryRower is satisfied by both *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

const fileColumns = `
	id, scan_directory_id, path, basename, file_hash, size_bytes,
	created_at_fs, modified_at_fs, indexed_at,
	width, height, capture_time, camera_make, camera_model,
	gps_lat, gps_long, iso, aperture, shutter_speed, orientation,
	thumbnail_path, last_error, retry_count,
	duplicate_group_id, is_original,
	hidden, hidden_category, hidden_rule_id,
	deletion_state, archive_path, archived_at
`

func scanFile(row interface {
	Scan(dest ...interface{}) error
}) (*IndexedFile, error) {
	var f IndexedFile
	var hiddenCategory sql.NullString
	err := row.Scan(
		&f.ID, &f.ScanDirectoryID, &f.Path, &f.Basename, &f.FileHash, &f.SizeBytes,
		&f.CreatedAtFS, &f.ModifiedAtFS, &f.IndexedAt,
		&f.Width, &f.Height, &f.CaptureTime, &f.CameraMake, &f.CameraModel,
		&f.GPSLat, &f.GPSLong, &f.ISO, &f.Aperture, &f.ShutterSpeed, &f.Orientation,
		&f.ThumbnailPath, &f.LastError, &f.RetryCount,
		&f.DuplicateGroupID, &f.IsOriginal,
		&f.Hidden, &hiddenCategory, &f.HiddenRuleID,
		&f.DeletionState, &f.ArchivePath, &f.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}
	if hiddenCategory.Valid {
		c := HiddenCategory(hiddenCategory.String)
		f.HiddenCategory = &c
	}
	return &f, nil
}

func GetFile(ctx context.Context, q queryRower, id uuid.UUID) (*IndexedFile, error) {
	row := q.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM indexed_files WHERE id = $1`, id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cmn.NewNotFound("file_not_found", "indexed file not found")
	}
	if err != nil {
		return nil, cmn.NewIO("get_file_failed", "failed to load indexed file", err)
	}
	return f, nil
}

// LiveHashCount returns how many live, non-hidden files currently share hash.
func LiveHashCount(ctx context.Context, q queryRower, hash string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM indexed_files
		WHERE file_hash = $1 AND deletion_state = 'live' AND hidden = false
	`, hash).Scan(&count)
	if err != nil {
		return 0, cmn.NewIO("hash_count_failed", "failed to count files by hash", err)
	}
	return count, nil
}

// ListFilesFilter covers the /files query parameters from spec.md §6.1.
type ListFilesFilter struct {
	ScanDirectoryID *uuid.UUID
	HasDuplicates   *bool
	Hidden          *bool
	Search          string
	Page, PageSize  int
}

func ListFiles(ctx context.Context, q queryRower, f ListFilesFilter) ([]*IndexedFile, error) {
	query := `SELECT ` + fileColumns + ` FROM indexed_files WHERE deletion_state = 'live'`
	var args []interface{}
	n := 0
	arg := func(v interface{}) string {
		n++
		args = append(args, v)
		return "$" + strconv.Itoa(n)
	}
	if f.ScanDirectoryID != nil {
		query += ` AND scan_directory_id = ` + arg(*f.ScanDirectoryID)
	}
	if f.HasDuplicates != nil {
		if *f.HasDuplicates {
			query += ` AND duplicate_group_id IS NOT NULL`
		} else {
			query += ` AND duplicate_group_id IS NULL`
		}
	}
	if f.Hidden != nil {
		query += ` AND hidden = ` + arg(*f.Hidden)
	}
	if f.Search != "" {
		query += ` AND basename ILIKE ` + arg("%"+f.Search+"%")
	}
	query += ` ORDER BY path ASC`
	if f.PageSize > 0 {
		query += ` LIMIT ` + arg(f.PageSize) + ` OFFSET ` + arg(f.Page*f.PageSize)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, cmn.NewIO("list_files_failed", "failed to list files", err)
	}
	defer rows.Close()

	var out []*IndexedFile
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, cmn.NewIO("list_files_scan_failed", "failed to scan file row", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ApplyMetadata is the idempotent MetadataExtracted handler (spec.md §4.4.3):
// a set of named-column updates keyed by row id, safe to re-apply.
func ApplyMetadata(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, id uuid.UUID, width, height *int, captureTime *time.Time, make_, model *string,
	gpsLat, gpsLong *float64, iso *int, aperture, shutter *string, orientation *int) error {

	var captureUTC *time.Time
	if captureTime != nil {
		t := captureTime.UTC()
		captureUTC = &t
	}
	_, err := q.ExecContext(ctx, `
		UPDATE indexed_files SET
			width = $1, height = $2, capture_time = $3,
			camera_make = $4, camera_model = $5,
			gps_lat = $6, gps_long = $7, iso = $8,
			aperture = $9, shutter_speed = $10, orientation = $11
		WHERE id = $12
	`, width, height, captureUTC, make_, model, gpsLat, gpsLong, iso, aperture, shutter, orientation, id)
	if err != nil {
		return cmn.NewIO("apply_metadata_failed", "failed to apply metadata", err)
	}
	return nil
}

// ApplyThumbnail is the idempotent ThumbnailGenerated handler (spec.md §4.4.3).
func ApplyThumbnail(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, id uuid.UUID, objectKey string) error {
	_, err := q.ExecContext(ctx, `UPDATE indexed_files SET thumbnail_path = $1 WHERE id = $2`, objectKey, id)
	if err != nil {
		return cmn.NewIO("apply_thumbnail_failed", "failed to apply thumbnail", err)
	}
	return nil
}

// RecordWorkerFailure persists a processing-worker failure per spec.md §4.6:
// "the ingestion service records this in the row's lastError and increments
// retryCount".
func RecordWorkerFailure(ctx context.Context, q interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}, id uuid.UUID, message string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE indexed_files SET last_error = $1, retry_count = retry_count + 1 WHERE id = $2
	`, message, id)
	if err != nil {
		return cmn.NewIO("record_failure_failed", "failed to record worker failure", err)
	}
	return nil
}
