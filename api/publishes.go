package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"

	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/publish"
	kinds "github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Room for multipart boundaries and headers on top of the file itself.
const multipartOverhead = 1 << 20

type ConfirmResult struct {
	Outcome publish.Outcome     `json:"outcome"`
	State   publish.EditorState `json:"state"`
}

// SaveResult lists the saved fields, or carries the confirmation a visibility change needs.
type SaveResult struct {
	Saved        []string              `json:"saved"`
	Confirmation *publish.Confirmation `json:"confirmation,omitempty"`
	State        publish.EditorState   `json:"state"`
}

// stateOrNil drops the state of a publish that could not be opened.
func stateOrNil(s publish.EditorState) any {
	if s.DraftID == "" {
		return nil
	}
	return s
}

// filePart advances mr to the part named "file".
func filePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("file part is missing")
		}
		if err != nil {
			return nil, err
		}
		if p.FormName() == "file" {
			return p, nil
		}
	}
}

// declaredSize is the optional size query parameter, -1 when absent.
func declaredSize(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("size")
	if v == "" {
		return -1, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("size %q is not a byte count", v)
	}
	return n, nil
}

// spool copies at most limit+1 bytes of part to a temporary file and returns it rewound,
// along with the number of bytes copied. A count above limit means the part is oversize.
func spool(part io.Reader, limit int64) (*os.File, int64, error) {
	tmp, err := os.CreateTemp("", "studio-draft-*")
	if err != nil {
		return nil, 0, err
	}
	n, err := io.CopyN(tmp, part, limit+1)
	if err != nil && err != io.EOF {
		discard(tmp)
		return nil, 0, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		discard(tmp)
		return nil, 0, err
	}
	return tmp, n, nil
}

func discard(f *os.File) {
	f.Close()
	os.Remove(f.Name())
}

// CreateDraft records a draft and streams the video part of the request to ingestion.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	declared, err := declaredSize(r)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	limit := h.studio.Limits().MaxVideoSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	part, err := filePart(mr)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	defer part.Close()

	body, size, err := spool(part, limit)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.fail(w, r, kinds.Validation("%s is too large for the %d MiB limit", part.FileName(), limit>>20), nil)
			return
		}
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	defer discard(body)
	if size <= limit && declared >= 0 && declared != size {
		render.Render(w, r, ErrInvalidRequest(fmt.Errorf("declared size %d does not match the %d bytes sent", declared, size)))
		return
	}
	if size > limit && declared > size {
		size = declared
	}

	f := publish.File{
		Name:        part.FileName(),
		Size:        size,
		ContentType: part.Header.Get("Content-Type"),
	}
	s, err := h.studio.CreateDraft(r.Context(), a, f, body)
	if err != nil {
		h.fail(w, r, err, stateOrNil(s))
		return
	}
	render.Render(w, r, Created(s))
}

func (h *Handler) GetPublish(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	s, err := h.studio.State(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	render.Render(w, r, OK(s))
}

func (h *Handler) ListPublishes(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	ps, err := h.studio.List(r.Context(), a, chi.URLParam(r, "profileID"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	render.Render(w, r, OK(ps))
}

// EditPublish layers the supplied fields over the pending edits. Nothing is persisted.
func (h *Handler) EditPublish(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	var u content.PublishUpdate
	if err := render.DecodeJSON(r.Body, &u); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	s, err := h.studio.Edit(r.Context(), a, chi.URLParam(r, "id"), u)
	if err != nil {
		h.fail(w, r, err, stateOrNil(s))
		return
	}
	render.Render(w, r, OK(s))
}

func (h *Handler) SavePublish(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	out, err := h.studio.Save(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, stateOrNil(out.State))
		return
	}
	render.Render(w, r, OK(SaveResult{Saved: out.Saved.Keys(), Confirmation: out.Confirmation, State: out.State}))
}

func (h *Handler) UndoPublish(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	s, err := h.studio.Undo(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	render.Render(w, r, OK(s))
}

func (h *Handler) AttachThumbnail(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	limit := h.studio.Limits().MaxImageSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.fail(w, r, kinds.Validation("image exceeds the %d MiB limit", limit>>20), nil)
			return
		}
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	f := publish.File{Name: header.Filename, Size: header.Size, ContentType: header.Header.Get("Content-Type")}
	s, err := h.studio.AttachThumbnail(r.Context(), a, chi.URLParam(r, "id"), f, data)
	if err != nil {
		h.fail(w, r, err, stateOrNil(s))
		return
	}
	render.Render(w, r, OK(s))
}

func (h *Handler) RequestVisibility(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	c, err := h.studio.RequestVisibility(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	render.Render(w, r, OK(c))
}

func (h *Handler) ConfirmVisibility(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	out, s, err := h.studio.ConfirmVisibility(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, ConfirmResult{Outcome: out, State: s})
		return
	}
	render.Render(w, r, OK(ConfirmResult{Outcome: out, State: s}))
}

func (h *Handler) CancelVisibility(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	s, err := h.studio.CancelVisibility(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	render.Render(w, r, OK(s))
}

func (h *Handler) RetryMint(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	s, err := h.studio.RetryMint(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, stateOrNil(s))
		return
	}
	render.Render(w, r, OK(s))
}

func (h *Handler) DeletePublish(w http.ResponseWriter, r *http.Request) {
	a, _, ok := h.fresh(w, r)
	if !ok {
		return
	}
	if err := h.studio.Delete(r.Context(), a, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	render.Render(w, r, OK(nil))
}
