package imagestore

import (
	"context"
	"io"
)

// ImageStore holds captured ID images. Keys are file names relative to the
// store; Path turns a key into the location recorded on a customer.
type ImageStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (key string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	Path(key string) (string, error)
}
