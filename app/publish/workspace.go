package publish

import (
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

const defaultWorkspaceTTL = 2 * time.Hour

// Workspace is the server-side editing session of one user on one publish.
type Workspace struct {
	Editor     *Editor
	Visibility *Coordinator

	thumbs *Selector
	video  *Selector
}

// Close releases every preview the workspace holds.
func (w *Workspace) Close() {
	w.thumbs.Close()
	if w.video != nil {
		w.video.Close()
	}
}

// Workspaces keeps workspaces alive between requests and closes idle ones.
type Workspaces struct {
	cache *ristretto.Cache
	ttl   time.Duration
	mu    sync.Mutex
}

func NewWorkspaces(ttl time.Duration) (*Workspaces, error) {
	if ttl <= 0 {
		ttl = defaultWorkspaceTTL
	}
	rc, err := ristretto.NewCache(&ristretto.Config{
		MaxCost:            1 << 16,
		NumCounters:        1e6,
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict: func(item *ristretto.Item) {
			if w, ok := item.Value.(*Workspace); ok {
				w.Close()
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return &Workspaces{cache: rc, ttl: ttl}, nil
}

func (ws *Workspaces) Get(key string) (*Workspace, bool) {
	v, ok := ws.cache.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*Workspace), true
}

// GetOrCreate returns the workspace under key, calling create when there is none.
// The second return value is false when create was called.
func (ws *Workspaces) GetOrCreate(key string, create func() *Workspace) (*Workspace, bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if w, ok := ws.Get(key); ok {
		ws.cache.SetWithTTL(key, w, 1, ws.ttl)
		return w, true
	}
	w := create()
	ws.cache.SetWithTTL(key, w, 1, ws.ttl)
	ws.cache.Wait()
	return w, false
}

// Put replaces the workspace under key, closing the previous one.
func (ws *Workspaces) Put(key string, w *Workspace) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if prev, ok := ws.Get(key); ok && prev != w {
		prev.Close()
	}
	ws.cache.SetWithTTL(key, w, 1, ws.ttl)
	ws.cache.Wait()
}

func (ws *Workspaces) Drop(key string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if w, ok := ws.Get(key); ok {
		w.Close()
	}
	ws.cache.Del(key)
	ws.cache.Wait()
}

func (ws *Workspaces) Close() {
	ws.cache.Close()
}
