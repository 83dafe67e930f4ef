// Package storage manages the on-disk artifacts of a pipeline run and the
// optional publication of the final video to S3.
package storage

import (
	"context"
	"fmt"
	"io"
)

// Storage defines the interface for artifact storage.
// Intermediate artifacts live in a work directory; the final artifact may
// additionally be published to S3.
type Storage interface {
	// ArtifactPath returns the path of the named artifact in the work directory.
	ArtifactPath(name string) string

	// LoadTemp opens an artifact for reading.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified artifacts.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}

// ClipName is the name of batch n's silent clip.
func ClipName(n int, ext string) string {
	return fmt.Sprintf("batch_%d.%s", n, ext)
}

// DeliverableName is the name of batch n's clip once audio is attached.
func DeliverableName(n int, ext string) string {
	return fmt.Sprintf("final_batch_%d.%s", n, ext)
}
