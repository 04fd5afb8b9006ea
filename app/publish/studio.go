package publish

import (
	"context"
	"io"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
)

// MintBurner is the chain side of the publish lifecycle.
type MintBurner interface {
	Minter
	Burner
}

// Ingest receives video and thumbnail files.
type Ingest interface {
	VideoUploader
	ThumbnailUploader
}

// Studio runs the publish lifecycle for signed-in users, keeping one workspace per user and publish.
type Studio struct {
	content    content.Service
	ingest     Ingest
	chain      MintBurner
	scheduler  Scheduler
	recorder   *Recorder
	previews   *PreviewRegistry
	workspaces *Workspaces
	limits     Limits
	ttl        time.Duration
	logger     logging.KVLogger
}

type StudioOption func(*Studio)

func WithLimits(l Limits) StudioOption {
	return func(s *Studio) {
		s.limits = l
	}
}

func WithWorkspaceTTL(ttl time.Duration) StudioOption {
	return func(s *Studio) {
		s.ttl = ttl
	}
}

func WithLogger(logger logging.KVLogger) StudioOption {
	return func(s *Studio) {
		s.logger = logger
	}
}

func NewStudio(svc content.Service, in Ingest, chain MintBurner, scheduler Scheduler, opts ...StudioOption) (*Studio, error) {
	s := &Studio{
		content:   svc,
		ingest:    in,
		chain:     chain,
		scheduler: scheduler,
		previews:  NewPreviewRegistry(),
		limits:    DefaultLimits(),
		logger:    logging.NoopKVLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	ws, err := NewWorkspaces(s.ttl)
	if err != nil {
		return nil, err
	}
	s.workspaces = ws
	s.recorder = NewRecorder(svc, in, s.logger)
	return s, nil
}

func (s *Studio) Limits() Limits {
	return s.limits
}

func (s *Studio) Previews() *PreviewRegistry {
	return s.previews
}

func workspaceKey(a Actor, id string) string {
	return a.Subject + ":" + id
}

func (s *Studio) newWorkspace(p content.Publish, video *Selector, opts ...EditorOption) *Workspace {
	thumbs := NewSelector(s.previews, s.limits)
	opts = append(opts, WithEditorLogger(s.logger))
	e := NewEditor(p, s.content, s.ingest, thumbs, opts...)
	return &Workspace{
		Editor:     e,
		Visibility: NewCoordinator(e, s.content, s.chain, s.scheduler, WithCoordinatorLogger(s.logger)),
		thumbs:     thumbs,
		video:      video,
	}
}

// CreateDraft checks the video against the size ceiling, records a draft and forwards the
// video body to ingestion. A rejected file creates nothing. The returned state is valid
// whenever a draft was recorded, even if forwarding failed.
func (s *Studio) CreateDraft(ctx context.Context, a Actor, f File, body io.Reader) (EditorState, error) {
	f.Kind = MediaVideo
	video := NewSelector(s.previews, s.limits)
	if _, err := video.Select(f); err != nil {
		return EditorState{}, err
	}
	d, err := s.recorder.Record(ctx, a.Token, f.Name)
	if err != nil {
		video.Close()
		return EditorState{}, err
	}

	p := content.Publish{ID: d.ID, Filename: d.Filename}
	if fresh, err := s.content.GetPublish(ctx, a.Token, d.ID); err == nil {
		p = *fresh
	}
	w := s.newWorkspace(p, video, WithDefaultTitle(d.Title))
	s.workspaces.Put(workspaceKey(a, d.ID), w)

	ferr := s.recorder.Forward(ctx, a.Token, d, body)
	return w.Editor.Snapshot(), ferr
}

// Open returns the workspace for publish id, rebased on the current record.
func (s *Studio) Open(ctx context.Context, a Actor, id string) (*Workspace, error) {
	p, err := s.content.GetPublish(ctx, a.Token, id)
	if err != nil {
		return nil, err
	}
	if p.CreatorID != "" && !a.Account.Owns(p.CreatorID) {
		return nil, errors.NotFound("publish %s not found", id)
	}
	w, existed := s.workspaces.GetOrCreate(workspaceKey(a, id), func() *Workspace {
		return s.newWorkspace(*p, nil)
	})
	if existed {
		w.Editor.Refresh(*p)
	}
	return w, nil
}

func (s *Studio) State(ctx context.Context, a Actor, id string) (EditorState, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return EditorState{}, err
	}
	return w.Editor.Snapshot(), nil
}

// Refresh rebases an open workspace on the current record. Used on change notifications.
func (s *Studio) Refresh(ctx context.Context, a Actor, id string) (EditorState, error) {
	return s.State(ctx, a, id)
}

func (s *Studio) Edit(ctx context.Context, a Actor, id string, u content.PublishUpdate) (EditorState, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return EditorState{}, err
	}
	if err := w.Editor.Apply(u); err != nil {
		return w.Editor.Snapshot(), err
	}
	return w.Editor.Snapshot(), nil
}

func (s *Studio) AttachThumbnail(ctx context.Context, a Actor, id string, f File, data []byte) (EditorState, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return EditorState{}, err
	}
	if _, err := w.Editor.AttachThumbnail(f, data); err != nil {
		return w.Editor.Snapshot(), err
	}
	return w.Editor.Snapshot(), nil
}

// SaveOutcome is either the saved change set or, when the pending edits change visibility,
// the confirmation the user has to give before anything is saved.
type SaveOutcome struct {
	Saved        content.PublishUpdate
	Confirmation *Confirmation
	State        EditorState
}

// Save persists pending edits. A visibility change is never saved directly: it is
// handed to the coordinator, which waits for a confirmation.
func (s *Studio) Save(ctx context.Context, a Actor, id string) (SaveOutcome, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return SaveOutcome{}, err
	}
	if w.Editor.VisibilityChanged() {
		conf, err := w.Visibility.Request(ctx, a.Token)
		if err != nil {
			return SaveOutcome{State: w.Editor.Snapshot()}, err
		}
		return SaveOutcome{Confirmation: &conf, State: w.Editor.Snapshot()}, nil
	}
	cs, err := w.Editor.Save(ctx, a.Token)
	return SaveOutcome{Saved: cs, State: w.Editor.Snapshot()}, err
}

func (s *Studio) Undo(ctx context.Context, a Actor, id string) (EditorState, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return EditorState{}, err
	}
	w.Editor.Undo()
	return w.Editor.Snapshot(), nil
}

func (s *Studio) RequestVisibility(ctx context.Context, a Actor, id string) (Confirmation, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return Confirmation{}, err
	}
	return w.Visibility.Request(ctx, a.Token)
}

func (s *Studio) ConfirmVisibility(ctx context.Context, a Actor, id string) (Outcome, EditorState, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return Outcome{}, EditorState{}, err
	}
	out, err := w.Visibility.Confirm(ctx, a)
	return out, w.Editor.Snapshot(), err
}

func (s *Studio) CancelVisibility(ctx context.Context, a Actor, id string) (EditorState, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return EditorState{}, err
	}
	w.Visibility.Cancel()
	return w.Editor.Snapshot(), nil
}

func (s *Studio) RetryMint(ctx context.Context, a Actor, id string) (EditorState, error) {
	w, err := s.Open(ctx, a, id)
	if err != nil {
		return EditorState{}, err
	}
	err = w.Visibility.RetryMint(ctx, a)
	return w.Editor.Snapshot(), err
}

func (s *Studio) Delete(ctx context.Context, a Actor, id string) error {
	if _, err := s.Open(ctx, a, id); err != nil {
		return err
	}
	if err := Delete(ctx, s.content, s.chain, a, id); err != nil {
		return err
	}
	s.workspaces.Drop(workspaceKey(a, id))
	s.logger.Info("publish deleted", "publish_id", id, "account_id", a.Account.ID)
	return nil
}

// List returns the publishes of one of the actor's profiles.
func (s *Studio) List(ctx context.Context, a Actor, profileID string) ([]content.Publish, error) {
	if !a.Account.Owns(profileID) {
		return nil, errors.NotFound("profile %s not found", profileID)
	}
	return s.content.ListPublishes(ctx, a.Token, profileID)
}

func (s *Studio) Close() {
	s.workspaces.Close()
}
