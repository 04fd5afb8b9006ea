// Package api exposes the studio workflow over HTTP to the server-rendered UI.
package api

import (
	"context"
	"net/http"

	"github.com/OdyseeTeam/mintstudio/app/account"
	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/identity"
	"github.com/OdyseeTeam/mintstudio/app/notify"
	"github.com/OdyseeTeam/mintstudio/app/publish"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/internal/monitor"
	"github.com/OdyseeTeam/mintstudio/pkg/iprate"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// Runner executes chain actions for an account.
type Runner interface {
	Run(ctx context.Context, req account.Request) (account.Result, error)
}

// Profiles looks up public profiles.
type Profiles interface {
	Profile(ctx context.Context, token, handle string) (*content.Profile, error)
}

type Handler struct {
	studio   *publish.Studio
	auth     *identity.Authenticator
	runner   Runner
	profiles Profiles
	notifier *notify.Notifier
	limiter  *iprate.Limiter
	logger   logging.KVLogger
}

type HandlerOption func(*Handler)

func WithLogger(logger logging.KVLogger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithSignInLimiter throttles sign-in attempts per client address.
func WithSignInLimiter(l *iprate.Limiter) HandlerOption {
	return func(h *Handler) {
		h.limiter = l
	}
}

func NewHandler(s *publish.Studio, auth *identity.Authenticator, runner Runner, profiles Profiles, n *notify.Notifier, opts ...HandlerOption) *Handler {
	h := &Handler{
		studio:   s,
		auth:     auth,
		runner:   runner,
		profiles: profiles,
		notifier: n,
		logger:   logging.NoopKVLogger{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the versioned API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(captureErrors, methodTimer, h.auth.Middleware)

	r.Route("/auth", func(r chi.Router) {
		if h.limiter != nil {
			r.With(h.limiter.Middleware(func(*http.Request) {
				metrics.SignInThrottled.Inc()
			})).Post("/sign-in", h.SignIn)
		} else {
			r.Post("/sign-in", h.SignIn)
		}
		r.Post("/sign-out", h.SignOut)
	})
	r.Get("/session", h.GetSession)
	r.Put("/session/profile", h.SwitchProfile)
	r.Get("/handles/{handle}", h.GetProfile)

	r.Route("/profiles", func(r chi.Router) {
		r.Post("/", h.CreateProfile)
		r.Get("/{profileID}/publishes", h.ListPublishes)
		r.Post("/{profileID}/image", h.UpdateProfileImage)
		r.Post("/{profileID}/follow", h.Follow)
	})

	r.Route("/publishes", func(r chi.Router) {
		r.Post("/", h.CreateDraft)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPublish)
			r.Patch("/", h.EditPublish)
			r.Delete("/", h.DeletePublish)
			r.Post("/save", h.SavePublish)
			r.Post("/undo", h.UndoPublish)
			r.Post("/thumbnail", h.AttachThumbnail)
			r.Post("/visibility", h.RequestVisibility)
			r.Post("/visibility/confirm", h.ConfirmVisibility)
			r.Post("/visibility/cancel", h.CancelVisibility)
			r.Post("/mint/retry", h.RetryMint)
			r.Get("/events", h.Events)
		})
	})
	return r
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, payload any) {
	monitor.ReportError(h.logger, err, map[string]string{
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	})
	render.Render(w, r, Fail(err, payload))
}

// fresh resolves the caller of a privileged request, rendering the failure if there is none.
func (h *Handler) fresh(w http.ResponseWriter, r *http.Request) (publish.Actor, identity.Identity, bool) {
	id, err := h.auth.Fresh(r)
	if err != nil {
		h.fail(w, r, err, nil)
		return publish.Actor{}, id, false
	}
	return actorOf(id), id, true
}

func actorOf(id identity.Identity) publish.Actor {
	return publish.Actor{Token: id.Token, Subject: id.Session.Subject, Account: id.Account}
}
