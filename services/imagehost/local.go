package imagehostsvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/preschool/core"
)

var (
	ErrTooLarge = core.NewFieldError("photo", "image is too large")

	extensions = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
	}
)

type localHost struct {
	dir     string
	baseURL string
	maxSize int64
}

var _ core.ImageHost = (*localHost)(nil)

// NewLocalHost stores images under conf.MediaDir. They are served at conf.MediaURL.
func NewLocalHost(conf core.ImageHostConfig) (core.ImageHost, error) {
	if err := os.MkdirAll(conf.MediaDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media dir")
	}
	return &localHost{dir: conf.MediaDir, baseURL: conf.MediaURL, maxSize: conf.MaxSize}, nil
}

func (h *localHost) Upload(_ context.Context, _, contentType string, r io.Reader) (string, error) {
	fname := uuid.NewString() + extensions[contentType]
	fp := filepath.Join(h.dir, fname)

	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating image file")
	}
	n, err := io.Copy(f, limitReader(r, h.maxSize))
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err == nil && h.maxSize > 0 && n > h.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(fp)
		return "", errors.Wrap(err, "writing image file")
	}
	return h.baseURL + "/" + fname, nil
}

// Delete removes the file behind `url`. URLs not served by this host are ignored.
func (h *localHost) Delete(_ context.Context, url string) error {
	if !strings.HasPrefix(url, h.baseURL+"/") {
		return nil
	}
	fname := path.Base(url)
	if fname == "." || fname == "/" || strings.Contains(fname, "..") {
		return nil
	}
	if err := os.Remove(filepath.Join(h.dir, fname)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing image file")
	}
	return nil
}

// limitReader reads at most one byte past `max`, so that oversized content is detected.
func limitReader(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return io.LimitReader(r, max+1)
}
