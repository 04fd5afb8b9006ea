package account

import (
	"context"

	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
)

// ChainExecutor performs actions server-side.
type ChainExecutor interface {
	Execute(ctx context.Context, token string, a chain.Action) (chain.Status, error)
}

// Custodial runs actions through the chain service, which holds signing authority.
type Custodial struct {
	chain    ChainExecutor
	uploader Uploader
	logger   logging.KVLogger
}

func NewCustodial(c ChainExecutor, up Uploader, logger logging.KVLogger) *Custodial {
	if logger == nil {
		logger = logging.NoopKVLogger{}
	}
	return &Custodial{chain: c, uploader: up, logger: logger}
}

// Execute uploads media, then makes a single authenticated chain service call.
func (c *Custodial) Execute(ctx context.Context, req Request) (Result, error) {
	a, res, err := stage(ctx, c.uploader, req)
	if err != nil {
		return res, err
	}
	st, err := c.chain.Execute(ctx, req.Token, a)
	if err != nil {
		return res, err
	}
	res.TxHash = st.TxHash
	if req.OnSettled != nil {
		req.OnSettled(nil)
	}
	return res, nil
}
