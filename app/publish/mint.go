package publish

import (
	"context"

	"github.com/OdyseeTeam/mintstudio/app/account"
	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/tasks"
)

// Actor is the signed-in user performing an operation.
type Actor struct {
	Token   string
	Subject string
	Account content.Account
}

// Minter requests and prices mints of publishes.
type Minter interface {
	EstimateMint(ctx context.Context, token string, p content.Publish) (chain.Estimate, error)
	// Mint returns once the request is submitted. onSettled reports the final outcome when known.
	Mint(ctx context.Context, a Actor, p content.Publish, onSettled func(error)) error
}

// Burner destroys the token of a publish.
type Burner interface {
	Burn(ctx context.Context, a Actor, p content.Publish) error
}

// Scheduler arranges a later check on an outstanding mint.
type Scheduler interface {
	ScheduleReconcile(ctx context.Context, p tasks.ReconcileMintPayload) error
}

// ChainRunner is the account-type branch.
type ChainRunner interface {
	Run(ctx context.Context, req account.Request) (account.Result, error)
	Estimate(ctx context.Context, token string, a chain.Action) (chain.Estimate, error)
}

// BranchMinter mints and burns through the account-type branch of the actor's account.
type BranchMinter struct {
	runner ChainRunner
}

func NewBranchMinter(r ChainRunner) *BranchMinter {
	return &BranchMinter{runner: r}
}

func mintAction(p content.Publish) chain.Action {
	return chain.Action{Kind: chain.ActionMintPublish, PublishID: p.ID, MetadataURI: p.MetadataURI}
}

func (m *BranchMinter) EstimateMint(ctx context.Context, token string, p content.Publish) (chain.Estimate, error) {
	return m.runner.Estimate(ctx, token, mintAction(p))
}

func (m *BranchMinter) Mint(ctx context.Context, a Actor, p content.Publish, onSettled func(error)) error {
	_, err := m.runner.Run(ctx, account.Request{
		Token:     a.Token,
		Subject:   a.Subject,
		Account:   a.Account,
		Action:    mintAction(p),
		OnSettled: onSettled,
	})
	return err
}

func (m *BranchMinter) Burn(ctx context.Context, a Actor, p content.Publish) error {
	if !p.Minted() {
		return errors.Conflict("publish %s has no token", p.ID)
	}
	_, err := m.runner.Run(ctx, account.Request{
		Token:   a.Token,
		Subject: a.Subject,
		Account: a.Account,
		Action:  chain.Action{Kind: chain.ActionBurnPublish, PublishID: p.ID, TokenID: *p.TokenID},
		Await:   true,
	})
	return err
}
