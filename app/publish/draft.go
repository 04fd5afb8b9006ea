package publish

import (
	"context"
	"io"

	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/ingest"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
)

type DraftCreator interface {
	CreateDraft(ctx context.Context, token, filename string) (string, error)
}

type VideoUploader interface {
	UploadVideo(ctx context.Context, token string, f ingest.File) (ingest.Result, error)
}

// Draft is a freshly recorded publish.
type Draft struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	// Title is the default title derived from the file name.
	Title string `json:"title"`
}

// Recorder creates draft publishes and forwards their video to ingestion.
type Recorder struct {
	creator  DraftCreator
	uploader VideoUploader
	logger   logging.KVLogger
}

func NewRecorder(c DraftCreator, up VideoUploader, logger logging.KVLogger) *Recorder {
	if logger == nil {
		logger = logging.NoopKVLogger{}
	}
	return &Recorder{creator: c, uploader: up, logger: logger}
}

// Record creates a draft for filename. No draft exists until an id is returned;
// failures other than a stale identity are retryable.
func (r *Recorder) Record(ctx context.Context, token, filename string) (Draft, error) {
	if token == "" {
		return Draft{}, errors.AuthStale("identity token missing")
	}
	id, err := r.creator.CreateDraft(ctx, token, filename)
	if err != nil {
		metrics.DraftFailures.Inc()
		if errors.KindOf(err) == errors.KindInternal {
			err = errors.Transient(err)
		}
		r.logger.Warn("draft creation failed", "filename", filename, "err", err)
		return Draft{}, err
	}
	metrics.DraftsCreated.Inc()
	r.logger.Info("draft created", "publish_id", id)
	return Draft{ID: id, Filename: filename, Title: content.TitleFromFilename(filename)}, nil
}

// Forward streams the video of a recorded draft to the ingest service.
func (r *Recorder) Forward(ctx context.Context, token string, d Draft, body io.Reader) error {
	_, err := r.uploader.UploadVideo(ctx, token, ingest.File{Name: d.Filename, Body: body, DraftID: d.ID})
	if err != nil {
		r.logger.Warn("video upload failed", "publish_id", d.ID, "err", err)
	}
	return err
}
