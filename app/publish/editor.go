package publish

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/ingest"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const thumbnailUploadTimeout = 2 * time.Minute

var (
	ErrBusy = errors.Conflict("a save is already in progress")
	// ErrNeedsConfirmation is returned by a plain save while visibility is being changed.
	ErrNeedsConfirmation = errors.Conflict("visibility change must be confirmed")
)

// Store is the part of the content service the editor persists through.
type Store interface {
	GetPublish(ctx context.Context, token, id string) (*content.Publish, error)
	UpdatePublish(ctx context.Context, token, id string, u content.PublishUpdate) error
	SetMinting(ctx context.Context, token, id string, minting bool) error
}

type ThumbnailUploader interface {
	UploadThumbnail(ctx context.Context, token string, f ingest.File) (ingest.Result, error)
}

// Metadata is the editable part of a publish.
type Metadata struct {
	Title             string                  `json:"title"`
	Description       string                  `json:"description"`
	ThumbnailSource   content.ThumbnailSource `json:"thumbnailSource"`
	ThumbnailURI      string                  `json:"thumbnailUri"`
	PrimaryCategory   content.Category        `json:"primaryCategory"`
	SecondaryCategory content.Category        `json:"secondaryCategory"`
	Visible           bool                    `json:"visible"`
}

// MetadataFrom derives the persisted metadata of p, defaulting the thumbnail source.
func MetadataFrom(p content.Publish) Metadata {
	return Metadata{
		Title:             p.Title,
		Description:       p.Description,
		ThumbnailSource:   p.EffectiveThumbnailSource(),
		ThumbnailURI:      p.ThumbnailURI,
		PrimaryCategory:   p.PrimaryCategory,
		SecondaryCategory: p.SecondaryCategory,
		Visible:           p.Visible,
	}
}

var ignoreVisibility = cmpopts.IgnoreFields(Metadata{}, "Visible")

// diff returns the fields of pending that differ from persisted.
func diff(persisted, pending Metadata, withVisibility bool) content.PublishUpdate {
	var u content.PublishUpdate
	if pending.Title != persisted.Title {
		u.Title = content.Set(pending.Title)
	}
	if pending.Description != persisted.Description {
		u.Description = content.Set(pending.Description)
	}
	if pending.ThumbnailSource != persisted.ThumbnailSource {
		u.ThumbnailSource = content.Set(pending.ThumbnailSource)
	}
	if pending.ThumbnailURI != persisted.ThumbnailURI {
		u.ThumbnailURI = content.Set(pending.ThumbnailURI)
	}
	if pending.PrimaryCategory != persisted.PrimaryCategory {
		u.PrimaryCategory = content.Set(pending.PrimaryCategory)
	}
	if pending.SecondaryCategory != persisted.SecondaryCategory {
		if pending.SecondaryCategory == "" {
			u.SecondaryCategory = content.Null[content.Category]()
		} else {
			u.SecondaryCategory = content.Set(pending.SecondaryCategory)
		}
	}
	if withVisibility && pending.Visible != persisted.Visible {
		u.Visible = content.Set(pending.Visible)
	}
	return u
}

// attachment is a custom thumbnail waiting to be uploaded on save.
type attachment struct {
	sel  Selection
	data []byte
}

// EditorState is a point-in-time view of an editor.
type EditorState struct {
	DraftID           string               `json:"draft_id"`
	Publish           content.Publish      `json:"publish"`
	State             content.PublishState `json:"state"`
	Persisted         Metadata             `json:"persisted"`
	Pending           Metadata             `json:"pending"`
	Changed           bool                 `json:"changed"`
	VisibilityChanged bool                 `json:"visibility_changed"`
	CanSave           bool                 `json:"can_save"`
	Busy              bool                 `json:"busy"`
	Thumbnail         *Selection           `json:"thumbnail,omitempty"`
}

// Editor holds pending edits of one publish against its last known persisted state.
type Editor struct {
	store    Store
	thumbs   ThumbnailUploader
	selector *Selector
	logger   logging.KVLogger

	mu        sync.Mutex
	draftID   string
	publish   content.Publish
	persisted Metadata
	pending   Metadata
	thumb     *attachment
	busy      bool
}

type EditorOption func(*Editor)

// WithDefaultTitle prefills an empty title, used for freshly recorded drafts.
func WithDefaultTitle(title string) EditorOption {
	return func(e *Editor) {
		if e.pending.Title == "" {
			e.pending.Title = title
		}
	}
}

func WithEditorLogger(logger logging.KVLogger) EditorOption {
	return func(e *Editor) {
		e.logger = logger
	}
}

// NewEditor starts editing p. selector handles custom thumbnail files.
func NewEditor(p content.Publish, store Store, thumbs ThumbnailUploader, selector *Selector, opts ...EditorOption) *Editor {
	e := &Editor{
		store:     store,
		thumbs:    thumbs,
		selector:  selector,
		logger:    logging.NoopKVLogger{},
		draftID:   p.ID,
		publish:   p,
		persisted: MetadataFrom(p),
		pending:   MetadataFrom(p),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("publish_id", p.ID)
	return e
}

func (e *Editor) DraftID() string {
	return e.draftID
}

func (e *Editor) SetTitle(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending.Title = v
}

func (e *Editor) SetDescription(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending.Description = v
}

// SetThumbnailSource switches between generated and custom thumbnails.
// Switching to generated drops a pending custom file.
func (e *Editor) SetThumbnailSource(v content.ThumbnailSource) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkThumbnailSource(v, e.pending); err != nil {
		return err
	}
	e.pending.ThumbnailSource = v
	if v == content.ThumbnailGenerated {
		e.dropThumbnail()
	}
	return nil
}

// checkThumbnailSource requires an image for a custom thumbnail and playback for a
// generated one. Going back to the persisted source is always allowed.
func (e *Editor) checkThumbnailSource(v content.ThumbnailSource, m Metadata) error {
	if !v.Valid() {
		return errors.Validation("unknown thumbnail source %q", v)
	}
	if v == e.persisted.ThumbnailSource {
		return nil
	}
	switch v {
	case content.ThumbnailCustom:
		if e.thumb == nil && m.ThumbnailURI == "" {
			return errors.Validation("attach a thumbnail image to use a custom thumbnail")
		}
	case content.ThumbnailGenerated:
		if e.publish.Playback == nil {
			return errors.Validation("a generated thumbnail is available once the video is processed")
		}
	}
	return nil
}

func checkCategory(v content.Category) error {
	if v != "" && !v.Valid() {
		return errors.Validation("unknown category %q", v)
	}
	return nil
}

func (e *Editor) SetPrimaryCategory(v content.Category) error {
	if err := checkCategory(v); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending.PrimaryCategory = v
	return nil
}

func (e *Editor) SetSecondaryCategory(v content.Category) error {
	if err := checkCategory(v); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending.SecondaryCategory = v
	return nil
}

func (e *Editor) SetVisible(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending.Visible = v
}

// Apply layers the supplied fields of u over the pending state. Null clears a field.
// Either every field is applied or, on a validation error, none is.
func (e *Editor) Apply(u content.PublishUpdate) error {
	if u.ThumbnailURI.IsSet() {
		return errors.Validation("thumbnail uri is set by uploading a thumbnail")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.pending
	if u.Title.IsSet() {
		next.Title, _ = u.Title.Get()
	}
	if u.Description.IsSet() {
		next.Description, _ = u.Description.Get()
	}
	if u.PrimaryCategory.IsSet() {
		next.PrimaryCategory, _ = u.PrimaryCategory.Get()
		if err := checkCategory(next.PrimaryCategory); err != nil {
			return err
		}
	}
	if u.SecondaryCategory.IsSet() {
		next.SecondaryCategory, _ = u.SecondaryCategory.Get()
		if err := checkCategory(next.SecondaryCategory); err != nil {
			return err
		}
	}
	if v, ok := u.Visible.Get(); ok {
		next.Visible = v
	}
	if v, ok := u.ThumbnailSource.Get(); ok {
		if err := e.checkThumbnailSource(v, next); err != nil {
			return err
		}
		next.ThumbnailSource = v
	}

	e.pending = next
	if next.ThumbnailSource == content.ThumbnailGenerated {
		e.dropThumbnail()
	}
	return nil
}

// AttachThumbnail selects a custom thumbnail file. It is uploaded on the next save.
func (e *Editor) AttachThumbnail(f File, data []byte) (Selection, error) {
	f.Kind = MediaImage
	sel, err := e.selector.Select(f)
	if err != nil {
		return Selection{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.thumb = &attachment{sel: sel, data: data}
	e.pending.ThumbnailSource = content.ThumbnailCustom
	return sel, nil
}

func (e *Editor) dropThumbnail() {
	if e.thumb != nil {
		e.selector.Close()
		e.thumb = nil
	}
}

// Changed reports whether pending differs from persisted in anything but visibility.
func (e *Editor) Changed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changed()
}

func (e *Editor) changed() bool {
	return e.thumb != nil || !cmp.Equal(e.persisted, e.pending, ignoreVisibility)
}

func (e *Editor) VisibilityChanged() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.persisted.Visible != e.pending.Visible
}

func (e *Editor) CanSave() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changed() && !e.busy
}

// ChangeSet returns the fields that differ from persisted, excluding visibility.
func (e *Editor) ChangeSet() content.PublishUpdate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return diff(e.persisted, e.pending, false)
}

// Undo resets pending to persisted and releases any pending thumbnail.
func (e *Editor) Undo() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = e.persisted
	e.dropThumbnail()
}

// Refresh rebases the editor on a newer authoritative record. Fields the user has not
// touched follow the new record; pending edits are kept. Records of another publish are ignored.
func (e *Editor) Refresh(p content.Publish) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.ID != e.draftID {
		return false
	}
	next := MetadataFrom(p)
	rebase(&e.pending, e.persisted, next)
	e.persisted = next
	e.publish = p
	return true
}

func rebase(pending *Metadata, old, next Metadata) {
	if pending.Title == old.Title {
		pending.Title = next.Title
	}
	if pending.Description == old.Description {
		pending.Description = next.Description
	}
	if pending.ThumbnailSource == old.ThumbnailSource {
		pending.ThumbnailSource = next.ThumbnailSource
	}
	if pending.ThumbnailURI == old.ThumbnailURI {
		pending.ThumbnailURI = next.ThumbnailURI
	}
	if pending.PrimaryCategory == old.PrimaryCategory {
		pending.PrimaryCategory = next.PrimaryCategory
	}
	if pending.SecondaryCategory == old.SecondaryCategory {
		pending.SecondaryCategory = next.SecondaryCategory
	}
	if pending.Visible == old.Visible {
		pending.Visible = next.Visible
	}
}

// Publish returns the last authoritative record.
func (e *Editor) Publish() content.Publish {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.publish
}

func (e *Editor) Pending() Metadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

func (e *Editor) Snapshot() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := EditorState{
		DraftID:           e.draftID,
		Publish:           e.publish,
		State:             e.publish.State(),
		Persisted:         e.persisted,
		Pending:           e.pending,
		Changed:           e.changed(),
		VisibilityChanged: e.persisted.Visible != e.pending.Visible,
		CanSave:           e.changed() && !e.busy,
		Busy:              e.busy,
	}
	if e.thumb != nil {
		sel := e.thumb.sel
		s.Thumbnail = &sel
	}
	return s
}

// Save persists pending changes. While pending visibility differs from persisted nothing
// is saved: the change goes through the visibility coordinator instead.
// A pending custom thumbnail is uploaded in the background and not awaited.
func (e *Editor) Save(ctx context.Context, token string) (content.PublishUpdate, error) {
	if e.VisibilityChanged() {
		return content.PublishUpdate{}, ErrNeedsConfirmation
	}
	return e.save(ctx, token, false)
}

func (e *Editor) save(ctx context.Context, token string, withVisibility bool) (content.PublishUpdate, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return content.PublishUpdate{}, ErrBusy
	}
	if e.pending.ThumbnailSource != e.persisted.ThumbnailSource {
		if err := e.checkThumbnailSource(e.pending.ThumbnailSource, e.pending); err != nil {
			e.mu.Unlock()
			return content.PublishUpdate{}, err
		}
	}
	e.busy = true
	cs := diff(e.persisted, e.pending, withVisibility)
	thumb := e.thumb
	e.thumb = nil
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	if thumb != nil {
		e.uploadThumbnail(ctx, token, thumb)
	}

	if !cs.IsEmpty() {
		if err := e.store.UpdatePublish(ctx, token, e.draftID, cs); err != nil {
			metrics.Saves.WithLabelValues("error").Inc()
			e.logger.Warn("save failed", "fields", cs.Keys(), "err", err)
			return cs, err
		}
		metrics.Saves.WithLabelValues("ok").Inc()
		e.logger.Info("saved", "fields", cs.Keys())
	}

	if p, err := e.store.GetPublish(ctx, token, e.draftID); err == nil {
		e.Refresh(*p)
	} else {
		e.logger.Debug("refetch after save failed", "err", err)
	}
	return cs, nil
}

func (e *Editor) uploadThumbnail(ctx context.Context, token string, a *attachment) {
	draftID := e.draftID
	go func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), thumbnailUploadTimeout)
		defer cancel()
		defer e.selector.registry.Release(a.sel.Preview)
		_, err := e.thumbs.UploadThumbnail(uctx, token, ingest.File{
			Name:    a.sel.File.Name,
			Body:    bytes.NewReader(a.data),
			DraftID: draftID,
		})
		if err != nil {
			e.logger.Warn("thumbnail upload failed", "err", err)
		}
	}()
}

func (e *Editor) markMinting(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publish.IsMinting = v
}
