package api

import (
	"errors"
	"net/http"

	"github.com/OdyseeTeam/mintstudio/app/identity"
	kinds "github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/go-chi/render"
)

type SignInPayload struct {
	IDToken string `json:"id_token"`
}

func (p *SignInPayload) Bind(r *http.Request) error {
	if p.IDToken == "" {
		return errors.New("id_token is required")
	}
	return nil
}

type ProfilePayload struct {
	ProfileID string `json:"profile_id"`
}

func (p *ProfilePayload) Bind(r *http.Request) error {
	if p.ProfileID == "" {
		return errors.New("profile_id is required")
	}
	return nil
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	p := &SignInPayload{}
	if err := render.Bind(r, p); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	s, c, err := h.auth.SignIn(r.Context(), p.IDToken)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	http.SetCookie(w, c)
	render.Render(w, r, OK(s))
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	s, _ := identity.SessionFrom(r.Context())
	http.SetCookie(w, h.auth.SignOut(s))
	render.Render(w, r, OK(nil))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := identity.SessionFrom(r.Context())
	if !ok {
		h.fail(w, r, kinds.AuthStale("not signed in"), nil)
		return
	}
	render.Render(w, r, OK(s))
}

func (h *Handler) SwitchProfile(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.fresh(w, r)
	if !ok {
		return
	}
	p := &ProfilePayload{}
	if err := render.Bind(r, p); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	s, c, err := h.auth.SwitchProfile(id.Session, id.Account, p.ProfileID)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	http.SetCookie(w, c)
	render.Render(w, r, OK(s))
}
