package core

import (
	"context"
	"io"
)

// ImageHost stores uploaded images and returns their public URL.
type ImageHost interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}
