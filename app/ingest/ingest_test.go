package ingest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	path     string
	auth     string
	fields   map[string]string
	filename string
	content  string
}

func fakeIngest(t *testing.T, status int, body string) (*Client, *received) {
	t.Helper()
	rcv := &received{fields: map[string]string{}}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rcv.path = r.URL.Path
		rcv.auth = r.Header.Get("Authorization")
		mr, err := r.MultipartReader()
		if !assert.NoError(t, err) {
			return
		}
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if !assert.NoError(t, err) {
				return
			}
			b, _ := io.ReadAll(p)
			if p.FormName() == "file" {
				rcv.filename = p.FileName()
				rcv.content = string(b)
			} else {
				rcv.fields[p.FormName()] = string(b)
			}
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return New(ts.URL + "/"), rcv
}

func TestUploadImage(t *testing.T) {
	c, rcv := fakeIngest(t, http.StatusOK, `{"uri":"ipfs://img","metadata_uri":"ipfs://meta"}`)
	res, err := c.UploadImage(context.Background(), "tok", File{
		Name: "me.png", Body: strings.NewReader("png-bytes"), Handle: "kit", PriorURI: "ipfs://old",
	})
	require.NoError(t, err)
	assert.Equal(t, Result{URI: "ipfs://img", MetadataURI: "ipfs://meta"}, res)
	assert.Equal(t, "/upload/image", rcv.path)
	assert.Equal(t, "Bearer tok", rcv.auth)
	assert.Equal(t, map[string]string{"handle": "kit", "prior_uri": "ipfs://old"}, rcv.fields)
	assert.Equal(t, "me.png", rcv.filename)
	assert.Equal(t, "png-bytes", rcv.content)
}

func TestUploadVideo(t *testing.T) {
	c, rcv := fakeIngest(t, http.StatusAccepted, ``)
	_, err := c.UploadVideo(context.Background(), "tok", File{Name: "cats.mp4", Body: strings.NewReader("video"), DraftID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "/upload/video", rcv.path)
	assert.Equal(t, "d1", rcv.fields["draft_id"])

	_, err = c.UploadVideo(context.Background(), "tok", File{Name: "cats.mp4", Body: strings.NewReader("video")})
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	_, err = c.UploadThumbnail(context.Background(), "tok", File{Name: "t.jpg", Body: strings.NewReader("x")})
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	_, err = c.UploadImage(context.Background(), "tok", File{Name: "t.jpg", Body: strings.NewReader("x")})
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestUploadErrors(t *testing.T) {
	cases := map[int]errors.Kind{
		http.StatusUnauthorized:          errors.KindAuthStale,
		http.StatusRequestEntityTooLarge: errors.KindValidation,
		http.StatusBadGateway:            errors.KindTransient,
	}
	for status, kind := range cases {
		c, _ := fakeIngest(t, status, `nope`)
		_, err := c.UploadThumbnail(context.Background(), "tok", File{Name: "t.jpg", Body: strings.NewReader("x"), DraftID: "d1"})
		assert.Equal(t, kind, errors.KindOf(err), status)
	}
}
