package api

import (
	"io"
	"net/http"
	"testing"

	"github.com/OdyseeTeam/mintstudio/app/account"
	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/app/publish"
	"github.com/OdyseeTeam/mintstudio/internal/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProfile(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	body, ct := test.Multipart(t, map[string]string{"handle": "night_owl"},
		test.FilePart{Field: "file", Name: "me.png", ContentType: "image/png", Data: []byte("png")})

	res := f.do(t, http.MethodPost, "/api/v1/profiles/", body, http.StatusCreated, map[string]string{"Content-Type": ct})
	var out account.Result
	require.NoError(t, res.DecodePayload(&out))
	assert.Equal(t, "0xtx", out.TxHash)
	assert.True(t, out.FormCleared)

	reqs := f.runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, chain.ActionCreateProfile, reqs[0].Action.Kind)
	assert.Equal(t, "night_owl", reqs[0].Action.Handle)
	assert.True(t, reqs[0].Await)
	require.NotNil(t, reqs[0].Media)
	assert.Equal(t, "me.png", reqs[0].Media.Name)
	assert.Equal(t, "night_owl", reqs[0].Media.Handle)
}

func TestCreateProfileWithoutImage(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	body, ct := test.Multipart(t, map[string]string{"handle": "night_owl"})
	f.do(t, http.MethodPost, "/api/v1/profiles/", body, http.StatusCreated, map[string]string{"Content-Type": ct})
	reqs := f.runner.requests()
	require.Len(t, reqs, 1)
	assert.Nil(t, reqs[0].Media)
}

func TestCreateProfileInvalidHandle(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	for _, h := range []string{"ab", "Night-Owl", "this_handle_is_way_too_long_for_us"} {
		body, ct := test.Multipart(t, map[string]string{"handle": h})
		res := f.do(t, http.MethodPost, "/api/v1/profiles/", body, http.StatusBadRequest, map[string]string{"Content-Type": ct})
		assert.Equal(t, StatusInputError, res.Status, h)
	}
	assert.Empty(t, f.runner.requests())
}

func TestCreateProfileBusy(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.runner.err = account.ErrBusy
	body, ct := test.Multipart(t, map[string]string{"handle": "night_owl"})
	res := f.do(t, http.MethodPost, "/api/v1/profiles/", body, http.StatusConflict, map[string]string{"Content-Type": ct})
	assert.Equal(t, StatusConflict, res.Status)
}

func TestUpdateProfileImage(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	img := func() (io.Reader, string) {
		return test.Multipart(t, nil, test.FilePart{Field: "file", Name: "new.png", ContentType: "image/png", Data: []byte("png")})
	}

	body, ct := img()
	f.do(t, http.MethodPost, "/api/v1/profiles/prof-main/image", body, http.StatusOK, map[string]string{"Content-Type": ct})
	reqs := f.runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, chain.ActionUpdateProfileImage, reqs[0].Action.Kind)
	assert.Equal(t, "prof-main", reqs[0].Action.ProfileID)
	assert.Equal(t, "https://cdn.example/old.png", reqs[0].Media.PriorURI)
	assert.Equal(t, "sunsets", reqs[0].Media.Handle)

	body, ct = img()
	f.do(t, http.MethodPost, "/api/v1/profiles/prof-alt/image", body, http.StatusConflict, map[string]string{"Content-Type": ct})
	assert.Len(t, f.runner.requests(), 1)
}

func TestFollow(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.doJSON(t, http.MethodPost, "/api/v1/profiles/prof-other/follow", "", http.StatusOK)
	reqs := f.runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, chain.Action{Kind: chain.ActionFollow, ProfileID: "prof-main", TargetProfileID: "prof-other"}, reqs[0].Action)

	f.doJSON(t, http.MethodPost, "/api/v1/profiles/prof-main/follow", "", http.StatusBadRequest)
}
