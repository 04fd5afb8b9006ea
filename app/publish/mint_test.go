package publish

import (
	"context"
	"testing"

	"github.com/OdyseeTeam/mintstudio/app/account"
	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	requests []account.Request
	actions  []chain.Action
}

func (r *fakeRunner) Run(ctx context.Context, req account.Request) (account.Result, error) {
	r.requests = append(r.requests, req)
	return account.Result{TxHash: "0x1", FormCleared: true}, nil
}

func (r *fakeRunner) Estimate(ctx context.Context, token string, a chain.Action) (chain.Estimate, error) {
	r.actions = append(r.actions, a)
	return chain.Estimate{Gas: decimal.NewFromInt(50000), GasPrice: decimal.NewFromInt(1), Currency: "MATIC"}, nil
}

func TestBranchMinterMint(t *testing.T) {
	r := &fakeRunner{}
	m := NewBranchMinter(r)
	p := mintable("p1")

	est, err := m.EstimateMint(context.Background(), "id-token", p)
	require.NoError(t, err)
	assert.True(t, est.Gas.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, chain.ActionMintPublish, r.actions[0].Kind)

	settled := false
	require.NoError(t, m.Mint(context.Background(), testActor(), p, func(error) { settled = true }))
	require.Len(t, r.requests, 1)
	req := r.requests[0]
	assert.Equal(t, chain.ActionMintPublish, req.Action.Kind)
	assert.Equal(t, "p1", req.Action.PublishID)
	assert.Equal(t, "ipfs://meta/p1", req.Action.MetadataURI)
	assert.False(t, req.Await)
	assert.Equal(t, "acc-1", req.Account.ID)
	req.OnSettled(nil)
	assert.True(t, settled)
}

func TestBranchMinterBurn(t *testing.T) {
	r := &fakeRunner{}
	m := NewBranchMinter(r)
	p := mintable("p1")

	err := m.Burn(context.Background(), testActor(), p)
	assert.True(t, errors.IsKind(err, errors.KindConflict))
	assert.Empty(t, r.requests)

	tok := "token-5"
	p.TokenID = &tok
	require.NoError(t, m.Burn(context.Background(), testActor(), p))
	require.Len(t, r.requests, 1)
	assert.Equal(t, chain.ActionBurnPublish, r.requests[0].Action.Kind)
	assert.Equal(t, "token-5", r.requests[0].Action.TokenID)
	assert.True(t, r.requests[0].Await)
}
