// Package store is the relational-store access layer: one file per
// aggregate, hand-rolled SQL over database/sql + lib/pq (no ORM), matching
// the teacher's preference for small explicit wrappers over a driver
// (ais/cloud/*.go, dbdriver/bunt.go) rather than a framework.
package store

import (
	"time"

	"github.com/google/uuid"
)

type HiddenCategory string

const (
	HiddenCategoryFolder HiddenCategory = "folder"
	HiddenCategorySize   HiddenCategory = "size"
	HiddenCategoryManual HiddenCategory = "manual"
)

type DeletionState string

const (
	DeletionLive     DeletionState = "live"
	DeletionArchived DeletionState = "archived"
)

// IndexedFile mirrors spec.md §3's IndexedFile entity.
type IndexedFile struct {
	ID              uuid.UUID
	ScanDirectoryID uuid.UUID
	Path            string
	Basename        string
	FileHash        string
	SizeBytes       int64
	CreatedAtFS     time.Time
	ModifiedAtFS    time.Time
	IndexedAt       time.Time

	Width           *int
	Height          *int
	CaptureTime     *time.Time
	CameraMake      *string
	CameraModel     *string
	GPSLat          *float64
	GPSLong         *float64
	ISO             *int
	Aperture        *string
	ShutterSpeed    *string
	Orientation     *int

	ThumbnailPath *string

	LastError  *string
	RetryCount int

	DuplicateGroupID *uuid.UUID
	IsOriginal       bool

	Hidden         bool
	HiddenCategory *HiddenCategory
	HiddenRuleID   *uuid.UUID

	DeletionState DeletionState
	ArchivePath   *string
	ArchivedAt    *time.Time
}

func (f *IndexedFile) Live() bool { return f.DeletionState == DeletionLive }

// ScanDirectory mirrors spec.md §3's ScanDirectory entity.
type ScanDirectory struct {
	ID            uuid.UUID
	Path          string
	Enabled       bool
	LastScannedAt *time.Time
	FileCount     int
}

type GroupStatus string

const (
	GroupPending        GroupStatus = "pending"
	GroupAutoSelected   GroupStatus = "autoSelected"
	GroupValidated      GroupStatus = "validated"
	GroupCleaning       GroupStatus = "cleaning"
	GroupCleaned        GroupStatus = "cleaned"
	GroupCleaningFailed GroupStatus = "cleaningFailed"
)

// DuplicateGroup mirrors spec.md §3's DuplicateGroup entity.
type DuplicateGroup struct {
	ID              uuid.UUID
	Hash            string
	FileCount       int
	TotalSize       int64
	CreatedAt       time.Time
	ResolvedAt      *time.Time
	OriginalFileID  *uuid.UUID
	Status          GroupStatus
	ReviewSessionID *uuid.UUID
	ReviewOrder     int
}

func (g *DuplicateGroup) Resolved() bool { return g.OriginalFileID != nil }

// SelectionPreference mirrors spec.md §3's SelectionPreference entity.
type SelectionPreference struct {
	ID         uuid.UUID
	PathPrefix string
	Priority   int
	SortOrder  int
}

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
)

// SelectionSession mirrors spec.md §3's SelectionSession entity.
type SelectionSession struct {
	ID               uuid.UUID
	CreatedAt        time.Time
	ResumedAt        *time.Time
	CompletedAt      *time.Time
	Status           SessionStatus
	ProposedCount    int
	ValidatedCount   int
	SkippedCount     int
	CurrentGroupID   *uuid.UUID
	LastActivityAt   time.Time
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "inProgress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

type JobCategory string

const (
	JobCategoryHashDuplicate JobCategory = "hashDuplicate"
	JobCategoryNearDuplicate JobCategory = "nearDuplicate"
	JobCategoryManual        JobCategory = "manual"
)

// CleanerJob mirrors spec.md §3's CleanerJob entity.
type CleanerJob struct {
	ID          uuid.UUID
	Status      JobStatus
	Category    JobCategory
	DryRun      bool
	CreatedAt   time.Time
	CompletedAt *time.Time

	TotalCount     int
	SucceededCount int
	FailedCount    int
	SkippedCount   int
}

type FileJobStatus string

const (
	FileJobPending  FileJobStatus = "pending"
	FileJobUploading FileJobStatus = "uploading"
	FileJobUploaded FileJobStatus = "uploaded"
	FileJobDeleting FileJobStatus = "deleting"
	FileJobDeleted  FileJobStatus = "deleted"
	FileJobFailed   FileJobStatus = "failed"
	FileJobSkipped  FileJobStatus = "skipped"
)

// CleanerJobFile mirrors spec.md §3's CleanerJobFile entity.
type CleanerJobFile struct {
	ID            uuid.UUID
	JobID         uuid.UUID
	IndexedFileID uuid.UUID
	Status        FileJobStatus
	ArchivePath   *string
	ErrorMessage  *string
	WasDryRun     bool
}

// HiddenFolder mirrors spec.md §3's HiddenFolder rule.
type HiddenFolder struct {
	ID     uuid.UUID
	Prefix string
}

// HiddenSizeRule mirrors spec.md §3's HiddenSizeRule rule.
type HiddenSizeRule struct {
	ID       uuid.UUID
	MaxBytes int64
}
