package publish

import (
	"sync"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"

	"github.com/google/uuid"
)

const (
	DefaultMaxVideoSize int64 = 100 << 20
	DefaultMaxImageSize int64 = 10 << 20
)

type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

// File describes a selected local file.
type File struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Kind        MediaKind `json:"kind"`
}

// Limits are the size ceilings for selected media.
type Limits struct {
	MaxVideoSize int64
	MaxImageSize int64
}

func DefaultLimits() Limits {
	return Limits{MaxVideoSize: DefaultMaxVideoSize, MaxImageSize: DefaultMaxImageSize}
}

func (l Limits) Ceiling(k MediaKind) int64 {
	if k == MediaImage {
		return l.MaxImageSize
	}
	return l.MaxVideoSize
}

// Check rejects files over the ceiling for their kind.
func (l Limits) Check(f File) error {
	if c := l.Ceiling(f.Kind); f.Size > c {
		metrics.UploadSizeRejections.WithLabelValues(string(f.Kind)).Inc()
		return errors.Validation("%s is too large: %d bytes over the %d MiB limit", f.Name, f.Size-c, c>>20)
	}
	if f.Size < 0 {
		return errors.Validation("%s has an invalid size", f.Name)
	}
	return nil
}

// PreviewHandle is a revocable reference to a selected file's preview.
type PreviewHandle string

// PreviewRegistry tracks live preview handles so they can be released.
type PreviewRegistry struct {
	mu   sync.Mutex
	live map[PreviewHandle]File
}

func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{live: map[PreviewHandle]File{}}
}

func (r *PreviewRegistry) Allocate(f File) PreviewHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := PreviewHandle(uuid.NewString())
	r.live[h] = f
	return h
}

// Release revokes h and reports whether it was live.
func (r *PreviewRegistry) Release(h PreviewHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[h]
	delete(r.live, h)
	return ok
}

func (r *PreviewRegistry) Get(h PreviewHandle) (File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.live[h]
	return f, ok
}

// Live returns the number of unreleased handles.
func (r *PreviewRegistry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Selection is an accepted file and its preview.
type Selection struct {
	File    File          `json:"file"`
	Preview PreviewHandle `json:"preview"`
}

// Selector accepts one file at a time.
type Selector struct {
	limits   Limits
	registry *PreviewRegistry

	mu      sync.Mutex
	current *Selection
}

func NewSelector(registry *PreviewRegistry, limits Limits) *Selector {
	return &Selector{registry: registry, limits: limits}
}

// Select accepts f if it is within limits, replacing and releasing the previous selection.
// A rejected file leaves the previous selection in place.
func (s *Selector) Select(f File) (Selection, error) {
	if err := s.limits.Check(f); err != nil {
		return Selection{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sel := Selection{File: f, Preview: s.registry.Allocate(f)}
	if s.current != nil {
		s.registry.Release(s.current.Preview)
	}
	s.current = &sel
	return sel, nil
}

func (s *Selector) Current() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Selection{}, false
	}
	return *s.current, true
}

// Close releases the current selection.
func (s *Selector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.registry.Release(s.current.Preview)
		s.current = nil
	}
}
