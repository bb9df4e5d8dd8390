// Package storage provides temporary and persistent file storage capabilities.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 storage.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for file storage during and after processing.
// Downloaded inputs live in a temporary workspace and are removed once a job
// finishes; produced videos live in the output area and are served from it.
type Storage interface {
	// SaveTemp saves data to a temporary file and returns the file path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// OutputPath resolves name to an absolute path inside the output area.
	// Returns ErrInvalidName for names that would escape it.
	OutputPath(name string) (string, error)

	// RemoveOutput deletes a produced file from the output area.
	RemoveOutput(ctx context.Context, name string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
