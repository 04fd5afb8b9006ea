package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/notify"
	"github.com/OdyseeTeam/mintstudio/app/publish"
	kinds "github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const keepaliveInterval = 25 * time.Second

func writeEvent(w http.ResponseWriter, f http.Flusher, name string, s publish.EditorState) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", uuid.NewString(), name, b); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// Events streams the editor state of a publish as server-sent events, re-sending it
// whenever the publish record changes.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	f, ok := w.(http.Flusher)
	if !ok {
		h.fail(w, r, kinds.Base("streaming is not supported"), nil)
		return
	}
	id := chi.URLParam(r, "id")
	s, err := h.studio.State(r.Context(), a, id)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	changed := make(chan string, 1)
	watcher := notify.NewWatcher(h.notifier, func(_ context.Context, publishID string) {
		select {
		case changed <- publishID:
		default:
		}
	})
	defer watcher.Close()
	if err := watcher.Watch(ctx, id); err != nil {
		h.fail(w, r, kinds.Transient(err), nil)
		return
	}

	log := h.logger.With("publish_id", id)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := writeEvent(w, f, "state", s); err != nil {
		return
	}

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-watcher.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			f.Flush()
		case publishID := <-changed:
			s, err := h.studio.Refresh(ctx, a, publishID)
			if err != nil {
				log.Warn("refresh failed", "err", err)
				continue
			}
			if err := writeEvent(w, f, "state", s); err != nil {
				return
			}
		}
	}
}
