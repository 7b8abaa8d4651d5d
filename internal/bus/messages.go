package bus

import "github.com/google/uuid"

// Envelope fields common to every message shape, per spec.md §6.3: "All
// carry correlationId, indexedFileId, objectKey".
type Envelope struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	IndexedFileID uuid.UUID `json:"indexedFileId"`
	ObjectKey     string    `json:"objectKey"`
}

// FileDiscovered is published once per new-or-hash-changed file by the
// ingestion service (spec.md §4.4.1/§4.4.2) and fanned out to both
// processing workers' queues.
type FileDiscovered struct {
	Envelope
	ScanDirectoryID uuid.UUID `json:"scanDirectoryId"`
	FilePath        string    `json:"filePath"`
	FileHash        string    `json:"fileHash"`
	FileSize        int64     `json:"fileSize"`
}

// MetadataExtracted is published by the metadata worker on completion
// (spec.md §4.6).
type MetadataExtracted struct {
	Envelope
	Success      bool    `json:"success"`
	ErrorMessage string  `json:"errorMessage,omitempty"`
	Width        *int    `json:"width,omitempty"`
	Height       *int    `json:"height,omitempty"`
	DateTaken    *string `json:"dateTaken,omitempty"` // RFC3339, UTC
	CameraMake   *string `json:"cameraMake,omitempty"`
	CameraModel  *string `json:"cameraModel,omitempty"`
	GPSLat       *float64 `json:"gpsLat,omitempty"`
	GPSLong      *float64 `json:"gpsLong,omitempty"`
	ISO          *int    `json:"iso,omitempty"`
	Aperture     *string `json:"aperture,omitempty"`
	Shutter      *string `json:"shutter,omitempty"`
	Orientation  *int    `json:"orientation,omitempty"`
}

// ThumbnailGenerated is published by the thumbnail worker on completion
// (spec.md §4.6).
type ThumbnailGenerated struct {
	Envelope
	Success           bool   `json:"success"`
	ErrorMessage      string `json:"errorMessage,omitempty"`
	ThumbnailObjectKey string `json:"thumbnailObjectKey,omitempty"`
}

// Exchange and queue names. One topic exchange fans out to two durable,
// independently-acked queues; completion topics have exactly one consumer
// each, per spec.md §4.2.
const (
	ExchangeFileDiscovered = "file.discovered"

	QueueMetadataFileDiscovered  = "metadata.file-discovered"
	QueueThumbnailFileDiscovered = "thumbnail.file-discovered"
	QueueMetadataExtracted       = "metadata.extracted"
	QueueThumbnailGenerated      = "thumbnail.generated"
)
