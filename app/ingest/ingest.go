// Package ingest uploads media to the upload/transcoding service.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"
)

const (
	pathVideo     = "/upload/video"
	pathThumbnail = "/upload/thumbnail"
	pathImage     = "/upload/image"
)

// File is a media file streamed to the service.
type File struct {
	Name   string
	Body   io.Reader
	Handle string
	// PriorURI, when set, asks the service to delete the asset being replaced.
	PriorURI string
	// DraftID keys video and thumbnail uploads to a publish.
	DraftID string
}

// Result is the service response. MetadataURI is only returned for first-time profile images.
type Result struct {
	URI         string `json:"uri"`
	MetadataURI string `json:"metadata_uri"`
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  logging.KVLogger
}

type Option func(*Client)

func WithLogger(logger logging.KVLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = timeout
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    cleanhttp.DefaultPooledClient(),
		logger:  logging.NoopKVLogger{},
	}
	c.http.Timeout = 10 * time.Minute
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadVideo sends the raw video of a draft. Processing failures are reported
// later through the publish upload error flag.
func (c *Client) UploadVideo(ctx context.Context, token string, f File) (Result, error) {
	if f.DraftID == "" {
		return Result{}, errors.Validation("draft id is required for video uploads")
	}
	return c.upload(ctx, token, pathVideo, f)
}

func (c *Client) UploadThumbnail(ctx context.Context, token string, f File) (Result, error) {
	if f.DraftID == "" {
		return Result{}, errors.Validation("draft id is required for thumbnail uploads")
	}
	return c.upload(ctx, token, pathThumbnail, f)
}

// UploadImage sends a profile image.
func (c *Client) UploadImage(ctx context.Context, token string, f File) (Result, error) {
	if f.Handle == "" {
		return Result{}, errors.Validation("handle is required for image uploads")
	}
	return c.upload(ctx, token, pathImage, f)
}

func (c *Client) upload(ctx context.Context, token, path string, f File) (Result, error) {
	var res Result
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeParts(mw, f))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		pr.Close()
		return res, errors.Err(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		pr.Close()
		c.logger.Warn("upload failed", "path", path, "draft_id", f.DraftID, "err", err)
		return res, errors.Transient(fmt.Errorf("upload %s: %w", f.Name, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return res, errors.AuthStale("upload rejected with status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return res, errors.Validation("%s is too large", f.Name)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return res, errors.Transient(fmt.Errorf("upload %s: status %d: %s", f.Name, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil && err != io.EOF {
		return res, errors.Transient(fmt.Errorf("upload %s: malformed response: %w", f.Name, err))
	}
	c.logger.Debug("upload done", "path", path, "draft_id", f.DraftID, "uri", res.URI)
	return res, nil
}

func writeParts(mw *multipart.Writer, f File) error {
	fields := [][2]string{{"handle", f.Handle}, {"prior_uri", f.PriorURI}, {"draft_id", f.DraftID}}
	for _, kv := range fields {
		if kv[1] == "" {
			continue
		}
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return err
	}
	return mw.Close()
}
