package port

import (
	"context"
	"io"
)

type FileStorage interface {
	// Store saves the content under a fresh name derived from originalName and returns its public path
	Store(ctx context.Context, originalName string, r io.Reader) (string, error)

	// Delete removes a previously stored file
	Delete(ctx context.Context, path string) error
}
