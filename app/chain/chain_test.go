package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/gql"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeChain(t *testing.T, body string) (*Client, *map[string]any) {
	t.Helper()
	vars := &map[string]any{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		*vars = req.Variables
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return NewClient(gql.New("chain", ts.URL, gql.WithRetryMax(0))), vars
}

func TestEstimateGas(t *testing.T) {
	c, vars := fakeChain(t, `{"data":{"estimateGas":{"gas":"21000","gasPrice":"0.00000003","currency":"MATIC"}}}`)
	est, err := c.EstimateGas(context.Background(), "tok", Action{Kind: ActionMintPublish, PublishID: "p1", MetadataURI: "ipfs://m"})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("0.00063").Equal(est.Fee()))
	assert.Equal(t, "0.000630 MATIC", est.String())
	assert.Equal(t, "MINT_PUBLISH", (*vars)["action"].(map[string]any)["kind"])
}

func TestExecute(t *testing.T) {
	c, vars := fakeChain(t, `{"data":{"executeAction":{"txHash":"0xabc","state":"SUBMITTED"}}}`)
	st, err := c.Execute(context.Background(), "tok", Action{Kind: ActionFollow, ProfileID: "p1", TargetProfileID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, TxSubmitted, st.State)
	assert.Equal(t, map[string]any{"kind": "FOLLOW", "profileId": "p1", "targetProfileId": "p2"}, (*vars)["action"])

	c, _ = fakeChain(t, `{"data":{"executeAction":{"state":"FAILED","error":"insufficient funds"}}}`)
	_, err = c.Execute(context.Background(), "tok", Action{Kind: ActionBurnPublish, TokenID: "7"})
	assert.True(t, errors.IsKind(err, errors.KindTransient))
	assert.ErrorContains(t, err, "insufficient funds")
}

func TestExecuteValidates(t *testing.T) {
	c, _ := fakeChain(t, `{}`)
	for _, a := range []Action{
		{Kind: ActionMintPublish, PublishID: "p1"},
		{Kind: ActionBurnPublish},
		{Kind: ActionCreateProfile},
		{Kind: ActionUpdateProfileImage, ProfileID: "p1"},
		{Kind: ActionFollow, ProfileID: "p1"},
		{Kind: "TRANSFER"},
	} {
		_, err := c.Execute(context.Background(), "tok", a)
		assert.True(t, errors.IsKind(err, errors.KindValidation), a.Kind)
	}
}

func TestBalanceAndDefaultProfile(t *testing.T) {
	c, _ := fakeChain(t, `{"data":{"balance":"12.5","defaultProfile":{"id":"p9"}}}`)
	b, err := c.Balance(context.Background(), "", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "12.5", b.String())
	id, err := c.DefaultProfile(context.Background(), "", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "p9", id)

	c, _ = fakeChain(t, `{"data":{"defaultProfile":null}}`)
	_, err = c.DefaultProfile(context.Background(), "", "0xabc")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}
