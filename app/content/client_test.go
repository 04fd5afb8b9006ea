package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/gql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gqlRequest struct {
	OperationName string          `json:"operationName"`
	Variables     json.RawMessage `json:"variables"`
}

func fakeContentService(t *testing.T, responses map[string]string) (*Client, *[]gqlRequest) {
	t.Helper()
	reqs := &[]gqlRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		*reqs = append(*reqs, req)
		body, ok := responses[req.OperationName]
		if !ok {
			body = `{"errors":[{"message":"unknown operation"}]}`
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return NewClient(gql.New("content", ts.URL, gql.WithRetryMax(0))), reqs
}

func TestClientUpdatePublishSendsOnlyChanged(t *testing.T) {
	c, reqs := fakeContentService(t, map[string]string{
		"UpdatePublish": `{"data":{"updatePublish":{"id":"p1"}}}`,
	})
	err := c.UpdatePublish(context.Background(), "tok", "p1", PublishUpdate{Description: Set("new")})
	require.NoError(t, err)
	require.Len(t, *reqs, 1)
	assert.JSONEq(t, `{"id":"p1","input":{"description":"new"}}`, string((*reqs)[0].Variables))

	require.NoError(t, c.UpdatePublish(context.Background(), "tok", "p1", PublishUpdate{}))
	assert.Len(t, *reqs, 1)
}

func TestClientCreateDraft(t *testing.T) {
	c, reqs := fakeContentService(t, map[string]string{
		"CreateDraftPublish": `{"data":{"createDraftPublish":{"id":"d1"}}}`,
	})
	id, err := c.CreateDraft(context.Background(), "tok", "cats.mp4")
	require.NoError(t, err)
	assert.Equal(t, "d1", id)
	assert.JSONEq(t, `{"filename":"cats.mp4"}`, string((*reqs)[0].Variables))

	c, _ = fakeContentService(t, map[string]string{
		"CreateDraftPublish": `{"data":{"createDraftPublish":{"id":""}}}`,
	})
	_, err = c.CreateDraft(context.Background(), "tok", "cats.mp4")
	assert.True(t, errors.IsKind(err, errors.KindTransient))
}

func TestClientGetPublish(t *testing.T) {
	c, _ := fakeContentService(t, map[string]string{
		"GetPublish": `{"data":{"publish":{"id":"p1","title":"Cats","tokenId":null,"playback":{"hls":"h"},"createdAt":"2024-01-02T03:04:05Z"}}}`,
	})
	p, err := c.GetPublish(context.Background(), "tok", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Cats", p.Title)
	assert.Nil(t, p.TokenID)
	assert.Equal(t, StateReady, p.State())

	c, _ = fakeContentService(t, map[string]string{"GetPublish": `{"data":{"publish":null}}`})
	_, err = c.GetPublish(context.Background(), "tok", "p1")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestClientViewerAndProfile(t *testing.T) {
	c, _ := fakeContentService(t, map[string]string{
		"Viewer":     `{"data":{"viewer":{"id":"a1","type":"non_custodial","profiles":[{"id":"p1","handle":"kit","isDefault":true}]}}}`,
		"GetProfile": `{"data":{"profile":null}}`,
	})
	a, err := c.Viewer(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, NonCustodial, a.Type)
	assert.True(t, a.Owns("p1"))

	_, err = c.GetProfile(context.Background(), "tok", "nobody")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestClientSetMintingAndDelete(t *testing.T) {
	c, reqs := fakeContentService(t, map[string]string{
		"SetPublishMinting": `{"data":{"setPublishMinting":{"id":"p1","isMinting":true}}}`,
		"DeletePublish":     `{"data":{"deletePublish":{"id":"p1"}}}`,
	})
	require.NoError(t, c.SetMinting(context.Background(), "tok", "p1", true))
	require.NoError(t, c.DeletePublish(context.Background(), "tok", "p1"))
	assert.JSONEq(t, `{"id":"p1","isMinting":true}`, string((*reqs)[0].Variables))
	assert.Equal(t, "DeletePublish", (*reqs)[1].OperationName)
}
