package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/publish"
	"github.com/OdyseeTeam/mintstudio/internal/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var smallLimits = publish.Limits{MaxVideoSize: 100, MaxImageSize: 50}

func TestCreateDraft(t *testing.T) {
	f := newFixture(t, smallLimits)
	body, ct := test.Multipart(t, nil, test.FilePart{Field: "file", Name: "sunset_timelapse.mp4", ContentType: "video/mp4", Data: []byte("frames")})

	res := f.do(t, http.MethodPost, "/api/v1/publishes/?size=6", body, http.StatusCreated, map[string]string{"Content-Type": ct})
	assert.Equal(t, StatusCreated, res.Status)
	s := decodeState(t, res)
	require.NotEmpty(t, s.DraftID)
	assert.Equal(t, "sunset_timelapse", s.Pending.Title)
	assert.Equal(t, []string{"frames"}, f.ingest.bodies)
	assert.Equal(t, 1, f.svc.CallCount("CreateDraft"))
}

func TestCreateDraftOversize(t *testing.T) {
	f := newFixture(t, smallLimits)
	body, ct := test.Multipart(t, nil, test.FilePart{Field: "file", Name: "long.mp4", Data: []byte(strings.Repeat("f", 200))})

	res := f.do(t, http.MethodPost, "/api/v1/publishes/?size=200", body, http.StatusBadRequest, map[string]string{"Content-Type": ct})
	assert.Equal(t, StatusInputError, res.Status)
	assert.Contains(t, res.Error, "too large")
	assert.Equal(t, 0, f.svc.CallCount("CreateDraft"))
	assert.Empty(t, f.ingest.bodies)
}

func TestCreateDraftUnderstatedSize(t *testing.T) {
	f := newFixture(t, smallLimits)
	body, ct := test.Multipart(t, nil, test.FilePart{Field: "file", Name: "long.mp4", ContentType: "video/mp4", Data: []byte(strings.Repeat("f", 5000))})

	res := f.do(t, http.MethodPost, "/api/v1/publishes/?size=6", body, http.StatusBadRequest, map[string]string{"Content-Type": ct})
	assert.Equal(t, StatusInputError, res.Status)
	assert.Contains(t, res.Error, "too large")
	assert.Equal(t, 0, f.svc.CallCount("CreateDraft"))
	assert.Empty(t, f.ingest.bodies)
}

func TestCreateDraftSizeMismatch(t *testing.T) {
	f := newFixture(t, smallLimits)
	body, ct := test.Multipart(t, nil, test.FilePart{Field: "file", Name: "short.mp4", ContentType: "video/mp4", Data: []byte("frames")})

	res := f.do(t, http.MethodPost, "/api/v1/publishes/?size=60", body, http.StatusBadRequest, map[string]string{"Content-Type": ct})
	assert.Contains(t, res.Error, "does not match")
	assert.Equal(t, 0, f.svc.CallCount("CreateDraft"))
}

func TestCreateDraftAtCeilingWithoutSize(t *testing.T) {
	f := newFixture(t, smallLimits)
	body, ct := test.Multipart(t, nil, test.FilePart{Field: "file", Name: "exact.mp4", ContentType: "video/mp4", Data: []byte(strings.Repeat("f", 100))})

	f.do(t, http.MethodPost, "/api/v1/publishes/", body, http.StatusCreated, map[string]string{"Content-Type": ct})
	assert.Equal(t, 1, f.svc.CallCount("CreateDraft"))
	require.Len(t, f.ingest.bodies, 1)
	assert.Len(t, f.ingest.bodies[0], 100)
}

func TestCreateDraftMissingFile(t *testing.T) {
	f := newFixture(t, smallLimits)
	body, ct := test.Multipart(t, map[string]string{"note": "x"})
	res := f.do(t, http.MethodPost, "/api/v1/publishes/", body, http.StatusBadRequest, map[string]string{"Content-Type": ct})
	assert.Contains(t, res.Error, "file part is missing")
}

func TestEditSaveUndo(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-1"))

	res := f.doJSON(t, http.MethodPatch, "/api/v1/publishes/pub-1/", `{"title":"Golden hour"}`, http.StatusOK)
	s := decodeState(t, res)
	assert.True(t, s.Changed)
	assert.Equal(t, "Golden hour", s.Pending.Title)
	assert.Equal(t, "Sunset timelapse", f.svc.Publish("pub-1").Title)

	res = f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/undo", "", http.StatusOK)
	s = decodeState(t, res)
	assert.False(t, s.Changed)
	assert.Equal(t, "Sunset timelapse", s.Pending.Title)

	f.doJSON(t, http.MethodPatch, "/api/v1/publishes/pub-1/", `{"title":"Golden hour","secondaryCategory":"art"}`, http.StatusOK)
	res = f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/save", "", http.StatusOK)
	var saved struct {
		Saved []string  `json:"saved"`
		State stateView `json:"state"`
	}
	require.NoError(t, res.DecodePayload(&saved))
	assert.Equal(t, []string{"title", "secondaryCategory"}, saved.Saved)
	assert.False(t, saved.State.Changed)
	assert.Equal(t, "Golden hour", f.svc.Publish("pub-1").Title)
	assert.Equal(t, content.Category("art"), f.svc.Publish("pub-1").SecondaryCategory)
}

func TestEditRejectsInvalidCategory(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-1"))
	res := f.doJSON(t, http.MethodPatch, "/api/v1/publishes/pub-1/", `{"primaryCategory":"nonsense"}`, http.StatusBadRequest)
	assert.Equal(t, StatusInputError, res.Status)
	assert.Equal(t, "pub-1", decodeState(t, res).DraftID)
}

func TestAttachThumbnail(t *testing.T) {
	f := newFixture(t, smallLimits)
	f.svc.AddPublish(mintable("pub-1"))

	body, ct := test.Multipart(t, nil, test.FilePart{Field: "file", Name: "thumb.png", ContentType: "image/png", Data: []byte("png")})
	res := f.do(t, http.MethodPost, "/api/v1/publishes/pub-1/thumbnail", body, http.StatusOK, map[string]string{"Content-Type": ct})
	s := decodeState(t, res)
	assert.Equal(t, content.ThumbnailCustom, s.Pending.ThumbnailSource)
	assert.True(t, s.Changed)

	body, ct = test.Multipart(t, nil, test.FilePart{Field: "file", Name: "huge.png", Data: make([]byte, 80)})
	res = f.do(t, http.MethodPost, "/api/v1/publishes/pub-1/thumbnail", body, http.StatusBadRequest, map[string]string{"Content-Type": ct})
	assert.Contains(t, res.Error, "too large")
}

func TestVisibilityFirstMint(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-1"))

	f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/visibility/confirm", "", http.StatusConflict)

	f.doJSON(t, http.MethodPatch, "/api/v1/publishes/pub-1/", `{"visible":true}`, http.StatusOK)
	res := f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/visibility", "", http.StatusOK)
	var c struct {
		Phase     string `json:"phase"`
		FirstMint bool   `json:"first_mint"`
		Visible   bool   `json:"visible"`
		Fee       string `json:"fee"`
	}
	require.NoError(t, res.DecodePayload(&c))
	assert.Equal(t, string(publish.PhaseConfirmPending), c.Phase)
	assert.True(t, c.FirstMint)
	assert.True(t, c.Visible)
	assert.NotEmpty(t, c.Fee)
	assert.Empty(t, f.chain.minted)

	res = f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/visibility/confirm", "", http.StatusOK)
	var out struct {
		Outcome struct {
			MintRequested bool `json:"mint_requested"`
		} `json:"outcome"`
		State stateView `json:"state"`
	}
	require.NoError(t, res.DecodePayload(&out))
	assert.True(t, out.Outcome.MintRequested)
	assert.Equal(t, []string{"pub-1"}, f.chain.minted)

	p := f.svc.Publish("pub-1")
	assert.True(t, p.Visible)
	assert.True(t, p.IsMinting)

	f.doJSON(t, http.MethodDelete, "/api/v1/publishes/pub-1/", "", http.StatusConflict)
}

func TestSaveWithVisibilityChangeNeedsConfirmation(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-1"))

	f.doJSON(t, http.MethodPatch, "/api/v1/publishes/pub-1/", `{"title":"new title","visible":true}`, http.StatusOK)
	res := f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/save", "", http.StatusOK)
	var saved struct {
		Saved        []string `json:"saved"`
		Confirmation struct {
			Phase     string `json:"phase"`
			FirstMint bool   `json:"first_mint"`
		} `json:"confirmation"`
	}
	require.NoError(t, res.DecodePayload(&saved))
	assert.Empty(t, saved.Saved)
	assert.Equal(t, string(publish.PhaseConfirmPending), saved.Confirmation.Phase)
	assert.True(t, saved.Confirmation.FirstMint)
	assert.Empty(t, f.chain.minted)
	assert.Equal(t, "Sunset timelapse", f.svc.Publish("pub-1").Title)
	assert.False(t, f.svc.Publish("pub-1").Visible)

	f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/visibility/confirm", "", http.StatusOK)
	assert.Equal(t, []string{"pub-1"}, f.chain.minted)
	assert.Equal(t, "new title", f.svc.Publish("pub-1").Title)
	assert.True(t, f.svc.Publish("pub-1").Visible)
}

func TestEditIsAllOrNothing(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-1"))

	res := f.doJSON(t, http.MethodPatch, "/api/v1/publishes/pub-1/", `{"title":"x","thumbnailUri":"y"}`, http.StatusBadRequest)
	assert.Equal(t, StatusInputError, res.Status)
	s := decodeState(t, res)
	assert.Equal(t, "Sunset timelapse", s.Pending.Title)
	assert.False(t, s.Changed)
}

func TestVisibilityCancel(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-1"))

	f.doJSON(t, http.MethodPatch, "/api/v1/publishes/pub-1/", `{"visible":true}`, http.StatusOK)
	f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/visibility", "", http.StatusOK)
	res := f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/visibility/cancel", "", http.StatusOK)
	s := decodeState(t, res)
	assert.False(t, s.Pending.Visible)
	assert.False(t, s.Changed)
	assert.Empty(t, f.chain.minted)
	assert.False(t, f.svc.Publish("pub-1").Visible)
}

func TestVisibilityRequiresMetadata(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	p := mintable("pub-1")
	p.MetadataURI = ""
	f.svc.AddPublish(p)

	f.doJSON(t, http.MethodPatch, "/api/v1/publishes/pub-1/", `{"visible":true}`, http.StatusOK)
	res := f.doJSON(t, http.MethodPost, "/api/v1/publishes/pub-1/visibility", "", http.StatusBadRequest)
	assert.Contains(t, res.Error, "processing")
}

func TestDeleteAndList(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-1"))
	f.svc.AddPublish(mintable("pub-2"))

	res := f.doJSON(t, http.MethodGet, "/api/v1/profiles/prof-main/publishes", "", http.StatusOK)
	var list []struct {
		ID string `json:"id"`
	}
	require.NoError(t, res.DecodePayload(&list))
	assert.Len(t, list, 2)

	f.doJSON(t, http.MethodGet, "/api/v1/profiles/someone-else/publishes", "", http.StatusNotFound)

	f.doJSON(t, http.MethodDelete, "/api/v1/publishes/pub-1/", "", http.StatusOK)
	_, ok := f.svc.Publishes["pub-1"]
	assert.False(t, ok)
	assert.Empty(t, f.chain.burned)

	f.svc.MarkMinted("pub-2", "42")
	f.doJSON(t, http.MethodDelete, "/api/v1/publishes/pub-2/", "", http.StatusOK)
	assert.Equal(t, []string{"pub-2"}, f.chain.burned)
}

func TestForeignPublishIsHidden(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	p := mintable("pub-1")
	p.CreatorID = "prof-stranger"
	f.svc.AddPublish(p)
	res := f.doJSON(t, http.MethodGet, "/api/v1/publishes/pub-1/", "", http.StatusNotFound)
	assert.Nil(t, res.Payload)
}

func TestEvents(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-1"))
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/publishes/pub-1/events?jwt=idt-alice", nil)
	require.NoError(t, err)
	req.AddCookie(f.cookie)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	nextData := func() string {
		for sc.Scan() {
			line := sc.Text()
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimPrefix(line, "data: ")
			}
		}
		return ""
	}
	assert.Contains(t, nextData(), `"title":"Sunset timelapse"`)

	f.svc.MarkMinted("pub-1", "42")
	require.NoError(t, f.notifier.Notify(context.Background(), "pub-1"))
	assert.Contains(t, nextData(), `"tokenId":"42"`)
}
