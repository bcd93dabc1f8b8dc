package imagehostsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/trezcool/preschool/core"
)

const (
	uploadTimeout = 20 * time.Second

	// the breaker opens after this many consecutive upload failures
	maxConsecutiveFailures = 3
	breakerOpenTimeout     = 30 * time.Second
)

type (
	imgbbResponse struct {
		Data struct {
			ID         string `json:"id"`
			URL        string `json:"url"`
			DisplayURL string `json:"display_url"`
			DeleteURL  string `json:"delete_url"`
		} `json:"data"`
		Success bool `json:"success"`
		Status  int  `json:"status"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
	}

	imgbbHost struct {
		apiKey    string
		uploadURL string
		maxSize   int64
		client    *http.Client
		cb        *gobreaker.CircuitBreaker
		logger    core.Logger
	}
)

// failing reports whether an upload error means ImgBB is down.
// Rejected uploads and cancelled requests do not count.
func failing(err error) bool {
	return err != nil && errors.Cause(err) == core.ErrUnavailable
}

var _ core.ImageHost = (*imgbbHost)(nil)

// NewImgbbHost uploads images to ImgBB and returns their hosted URL.
// Uploads go through a circuit breaker: while it is open, Upload fails fast with core.ErrUnavailable.
func NewImgbbHost(conf core.ImageHostConfig, logger core.Logger) core.ImageHost {
	h := &imgbbHost{
		apiKey:    conf.APIKey,
		uploadURL: conf.UploadURL,
		maxSize:   conf.MaxSize,
		client:    &http.Client{Timeout: uploadTimeout},
		logger:    logger,
	}
	h.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "imgbb",
		MaxRequests: 1,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return !failing(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
		},
	})
	return h
}

func (h *imgbbHost) Upload(ctx context.Context, name, _ string, r io.Reader) (string, error) {
	content, err := io.ReadAll(limitReader(r, h.maxSize))
	if err != nil {
		return "", errors.Wrap(err, "reading image")
	}
	if h.maxSize > 0 && int64(len(content)) > h.maxSize {
		return "", ErrTooLarge
	}

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	if name != "" {
		if err := mw.WriteField("name", name); err != nil {
			return "", errors.Wrap(err, "writing name field")
		}
	}
	fw, err := mw.CreateFormFile("image", name)
	if err != nil {
		return "", errors.Wrap(err, "creating image field")
	}
	if _, err := fw.Write(content); err != nil {
		return "", errors.Wrap(err, "writing image field")
	}
	if err := mw.Close(); err != nil {
		return "", errors.Wrap(err, "closing multipart body")
	}

	res, err := h.cb.Execute(func() (interface{}, error) {
		return h.post(ctx, mw.FormDataContentType(), body)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return "", errors.Wrap(core.ErrUnavailable, err.Error())
		}
		if failing(err) {
			h.logger.Error(fmt.Sprintf("uploading image: %v", err), err)
		}
		return "", err
	}
	return res.(string), nil
}

func (h *imgbbHost) post(ctx context.Context, contentType string, body io.Reader) (string, error) {
	u := h.uploadURL + "?" + url.Values{"key": {h.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", errors.Wrap(ctx.Err(), "uploading image")
		}
		return "", errors.Wrap(core.ErrUnavailable, err.Error())
	}
	//goland:noinspection GoUnhandledErrorResult
	defer resp.Body.Close()

	var ir imgbbResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&ir); err != nil && resp.StatusCode < http.StatusBadRequest {
		return "", errors.Wrap(err, "decoding imgbb response")
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return "", errors.Wrap(core.ErrUnavailable, fmt.Sprintf("imgbb: status %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest || !ir.Success || ir.Data.URL == "" {
		msg := http.StatusText(resp.StatusCode)
		if ir.Error != nil && ir.Error.Message != "" {
			msg = ir.Error.Message
		}
		return "", errors.Errorf("imgbb: status %d: %s", resp.StatusCode, msg)
	}
	return ir.Data.URL, nil
}

// Delete is a no-op: ImgBB only offers deletion through its web page.
func (h *imgbbHost) Delete(_ context.Context, url string) error {
	h.logger.Debug(fmt.Sprintf("imgbb: not deleting %s", url))
	return nil
}
