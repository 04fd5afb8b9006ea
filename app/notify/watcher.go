package notify

import (
	"context"
	"sync"
)

// Watcher keeps a single subscription pointed at the currently active publish.
// Changing the watched id tears down the previous subscription; deliveries from a
// superseded subscription are dropped.
type Watcher struct {
	n  *Notifier
	fn func(ctx context.Context, publishID string)

	mu  sync.Mutex
	cur *Subscription
	gen uint64
}

func NewWatcher(n *Notifier, fn func(ctx context.Context, publishID string)) *Watcher {
	return &Watcher{n: n, fn: fn}
}

// Watch subscribes to publishID, replacing any subscription to a different id.
func (w *Watcher) Watch(ctx context.Context, publishID string) error {
	w.mu.Lock()
	if w.cur != nil && w.cur.PublishID() == publishID {
		w.mu.Unlock()
		return nil
	}
	w.gen++
	gen := w.gen
	prev := w.cur
	w.cur = nil
	w.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	sub, err := w.n.Subscribe(ctx, publishID, func(ctx context.Context) {
		if !w.isCurrent(gen) {
			return
		}
		w.fn(ctx, publishID)
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.gen != gen {
		// superseded by a concurrent Watch
		w.mu.Unlock()
		return sub.Close()
	}
	w.cur = sub
	w.mu.Unlock()
	return nil
}

// Current returns the id of the watched publish, if any.
func (w *Watcher) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return ""
	}
	return w.cur.PublishID()
}

// Done is closed when the current subscription ends. It is nil while nothing is watched.
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return nil
	}
	return w.cur.Done()
}

func (w *Watcher) isCurrent(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen == gen
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.gen++
	prev := w.cur
	w.cur = nil
	w.mu.Unlock()
	if prev == nil {
		return nil
	}
	return prev.Close()
}
