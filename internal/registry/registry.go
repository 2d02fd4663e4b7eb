// Package registry tracks uploaded files and their metadata.
//
// One Repository interface backs two implementations: Memory for tests and
// File for production, which persists the registry as a JSON document on
// every write.
package registry

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a file ID.
var ErrNotFound = errors.New("file not found")

// FileRecord is the metadata row for one uploaded file. Records are created
// on upload and never mutated afterward except by re-registration under the
// same ID; there is no delete operation.
type FileRecord struct {
	// ID is the unique identifier generated for the upload.
	ID string `json:"id"`

	// Filename is the original name of the uploaded file.
	Filename string `json:"filename"`

	// ContentType is the MIME type of the file.
	ContentType string `json:"content_type"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Description is the generated file description, when available.
	Description string `json:"description,omitempty"`

	// UploadedAt is the upload timestamp in UTC.
	UploadedAt time.Time `json:"upload_timestamp"`

	// Path is where the uploaded file was stored on disk.
	Path string `json:"file_path"`
}

// Repository stores and retrieves file records.
type Repository interface {
	// Register inserts or replaces the record under its ID.
	Register(ctx context.Context, rec FileRecord) error

	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (FileRecord, error)

	// List returns all records, ordered by upload time (oldest first).
	List(ctx context.Context) ([]FileRecord, error)
}
