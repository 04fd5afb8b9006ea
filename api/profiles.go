package api

import (
	"io"
	"net/http"

	"github.com/OdyseeTeam/mintstudio/app/account"
	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/identity"
	"github.com/OdyseeTeam/mintstudio/app/ingest"
	kinds "github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Profile(r.Context(), "", chi.URLParam(r, "handle"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	render.Render(w, r, OK(p))
}

// activeProfile is the session profile, which must belong to the account.
func activeProfile(id identity.Identity) (content.Profile, bool) {
	for _, p := range id.Account.Profiles {
		if p.ID == id.Session.ProfileID {
			return p, true
		}
	}
	return content.Profile{}, false
}

// imageUpload opens the optional "file" part of a multipart form, limited to the image ceiling.
func (h *Handler) imageUpload(w http.ResponseWriter, r *http.Request) (*ingest.File, io.Closer, error) {
	limit := h.studio.Limits().MaxImageSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		return nil, nil, kinds.Validation("invalid upload: %s", err)
	}
	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return nil, io.NopCloser(nil), nil
	}
	if err != nil {
		return nil, nil, kinds.Validation("invalid upload: %s", err)
	}
	if header.Size > limit {
		file.Close()
		return nil, nil, kinds.Validation("%s is too large: %d bytes over the %d MiB limit", header.Filename, header.Size-limit, limit>>20)
	}
	return &ingest.File{Name: header.Filename, Body: file}, file, nil
}

// CreateProfile mints a profile token with the submitted handle and optional image.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	media, closer, err := h.imageUpload(w, r)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	defer closer.Close()

	handle := r.FormValue("handle")
	if err := account.ValidateHandle(handle); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if media != nil {
		media.Handle = handle
	}
	res, err := h.runner.Run(r.Context(), account.Request{
		Token:   a.Token,
		Subject: a.Subject,
		Account: a.Account,
		Action:  chain.Action{Kind: chain.ActionCreateProfile, Handle: handle},
		Media:   media,
		Await:   true,
	})
	if err != nil {
		h.fail(w, r, err, res)
		return
	}
	render.Render(w, r, Created(res))
}

// UpdateProfileImage replaces the image of the active profile.
func (h *Handler) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	a, id, ok := h.fresh(w, r)
	if !ok {
		return
	}
	active, _ := activeProfile(id)
	if !account.CanEdit(a.Account, active, content.Profile{ID: chi.URLParam(r, "profileID")}) {
		h.fail(w, r, kinds.Conflict("only the active profile can be edited"), nil)
		return
	}
	media, closer, err := h.imageUpload(w, r)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	defer closer.Close()
	if media == nil {
		render.Render(w, r, ErrInvalidRequest(kinds.Validation("image file is missing")))
		return
	}
	media.Handle = active.Handle
	media.PriorURI = active.ImageURI

	res, err := h.runner.Run(r.Context(), account.Request{
		Token:   a.Token,
		Subject: a.Subject,
		Account: a.Account,
		Action:  chain.Action{Kind: chain.ActionUpdateProfileImage, ProfileID: active.ID},
		Media:   media,
		Await:   true,
	})
	if err != nil {
		h.fail(w, r, err, res)
		return
	}
	render.Render(w, r, OK(res))
}

// Follow makes the active profile follow the profile in the path.
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	a, id, ok := h.fresh(w, r)
	if !ok {
		return
	}
	active, ok := activeProfile(id)
	if !ok {
		h.fail(w, r, kinds.Conflict("no active profile"), nil)
		return
	}
	target := chi.URLParam(r, "profileID")
	if target == active.ID {
		h.fail(w, r, kinds.Validation("a profile cannot follow itself"), nil)
		return
	}
	res, err := h.runner.Run(r.Context(), account.Request{
		Token:   a.Token,
		Subject: a.Subject,
		Account: a.Account,
		Action:  chain.Action{Kind: chain.ActionFollow, ProfileID: active.ID, TargetProfileID: target},
		Await:   true,
	})
	if err != nil {
		h.fail(w, r, err, res)
		return
	}
	render.Render(w, r, OK(res))
}
