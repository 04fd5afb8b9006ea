// Package account executes on-chain actions on behalf of an account, either server-side
// for custodial accounts or through the user's wallet for non-custodial ones.
package account

import (
	"context"
	"regexp"
	"sync"

	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/ingest"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
	"github.com/OdyseeTeam/mintstudio/pkg/redislocker"
)

var (
	ErrBusy    = errors.Conflict("another action is in progress for this account")
	ErrNoWrite = errors.Wallet(errors.Base("wallet write function is not available"))

	handleRe = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)
)

// ValidateHandle checks a profile handle: 3 to 30 characters of lowercase letters, digits and underscores.
func ValidateHandle(h string) error {
	switch {
	case len(h) < 3:
		return errors.Validation("handle must be at least 3 characters")
	case len(h) > 30:
		return errors.Validation("handle must be at most 30 characters")
	case !handleRe.MatchString(h):
		return errors.Validation("handle may only contain lowercase letters, digits and underscores")
	}
	return nil
}

// CanEdit reports whether the active profile may edit target: the account must own it
// and it must be the active profile.
func CanEdit(a content.Account, active, target content.Profile) bool {
	return a.Owns(target.ID) && active.ID == target.ID
}

// Request is a single on-chain action.
type Request struct {
	Token   string
	Subject string
	Account content.Account
	Action  chain.Action
	// Media is uploaded before the action and its URIs staged into it.
	Media *ingest.File
	// Await blocks until the transaction settles. Otherwise settlement is reported to OnSettled.
	Await     bool
	OnSettled func(error)
}

// Result of an executed action.
type Result struct {
	TxHash      string `json:"tx_hash,omitempty"`
	URI         string `json:"uri,omitempty"`
	MetadataURI string `json:"metadata_uri,omitempty"`
	// FormCleared signals the caller to reset the form that issued the action.
	FormCleared bool `json:"form_cleared"`
}

// Executor runs actions for one account type.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// Uploader stores media before a chain action references it.
type Uploader interface {
	UploadImage(ctx context.Context, token string, f ingest.File) (ingest.Result, error)
}

// Estimator prices actions.
type Estimator interface {
	EstimateGas(ctx context.Context, token string, a chain.Action) (chain.Estimate, error)
}

// Revalidator drops cached account state after a chain action.
type Revalidator interface {
	InvalidateAccount(subject string)
	InvalidateProfile(handle string)
}

// Branch routes actions to the executor matching the account type and applies the
// shared completion: revalidate, then clear the form.
type Branch struct {
	executors   map[content.AccountType]Executor
	estimator   Estimator
	revalidator Revalidator
	logger      logging.KVLogger

	mu   sync.Mutex
	busy map[string]bool
	// shared extends the busy flag across replicas.
	shared *redislocker.Locker
}

type BranchOption func(*Branch)

func WithLogger(logger logging.KVLogger) BranchOption {
	return func(b *Branch) {
		b.logger = logger
	}
}

// WithSharedLock makes the one-action-per-account rule hold across every replica
// sharing the locker's Redis.
func WithSharedLock(l *redislocker.Locker) BranchOption {
	return func(b *Branch) {
		b.shared = l
	}
}

func NewBranch(custodial, nonCustodial Executor, estimator Estimator, revalidator Revalidator, opts ...BranchOption) *Branch {
	b := &Branch{
		executors: map[content.AccountType]Executor{
			content.Custodial:    custodial,
			content.NonCustodial: nonCustodial,
		},
		estimator:   estimator,
		revalidator: revalidator,
		logger:      logging.NoopKVLogger{},
		busy:        map[string]bool{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// For returns the executor for account type t.
func (b *Branch) For(t content.AccountType) (Executor, error) {
	e, ok := b.executors[t]
	if !ok || e == nil {
		return nil, errors.Validation("unsupported account type %q", t)
	}
	return e, nil
}

// Busy reports whether an action is outstanding for the account.
func (b *Branch) Busy(accountID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.busy[accountID]
}

func (b *Branch) acquire(accountID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy[accountID] {
		return false
	}
	b.busy[accountID] = true
	return true
}

func (b *Branch) release(accountID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.busy, accountID)
}

// Run executes req with the executor for its account type. Only one action per account
// runs at a time; the busy flag clears whatever the outcome.
func (b *Branch) Run(ctx context.Context, req Request) (Result, error) {
	if req.Token == "" {
		return Result{}, errors.AuthStale("identity token missing")
	}
	if req.Action.Kind == chain.ActionCreateProfile {
		if err := ValidateHandle(req.Action.Handle); err != nil {
			return Result{}, err
		}
	}
	e, err := b.For(req.Account.Type)
	if err != nil {
		return Result{}, err
	}
	if !b.acquire(req.Account.ID) {
		return Result{}, ErrBusy
	}
	defer b.release(req.Account.ID)

	log := b.logger.With("account_id", req.Account.ID, "account_type", req.Account.Type, "action", req.Action.Kind)
	if b.shared != nil {
		lock, err := b.shared.TryLock(ctx, "account:"+req.Account.ID)
		if errors.Is(err, redislocker.ErrLocked) {
			return Result{}, ErrBusy
		} else if err != nil {
			return Result{}, errors.Transient(err)
		}
		defer func() {
			if err := lock.Unlock(context.Background()); err != nil {
				log.Warn("account lock release failed", "err", err)
			}
		}()
	}
	res, err := e.Execute(ctx, req)
	metrics.ChainActions.WithLabelValues(string(req.Account.Type), string(req.Action.Kind), metrics.Outcome(err)).Inc()
	if err != nil {
		log.Warn("chain action failed", "err", err)
		return res, err
	}
	log.Info("chain action submitted", "tx_hash", res.TxHash)
	return b.complete(req, res), nil
}

func (b *Branch) complete(req Request, res Result) Result {
	if b.revalidator != nil {
		if req.Subject != "" {
			b.revalidator.InvalidateAccount(req.Subject)
		}
		for _, p := range req.Account.Profiles {
			b.revalidator.InvalidateProfile(p.Handle)
		}
		if req.Action.Handle != "" {
			b.revalidator.InvalidateProfile(req.Action.Handle)
		}
	}
	res.FormCleared = true
	return res
}

// Estimate prices an action. Available for both account types.
func (b *Branch) Estimate(ctx context.Context, token string, a chain.Action) (chain.Estimate, error) {
	if err := a.Validate(); err != nil {
		return chain.Estimate{}, err
	}
	return b.estimator.EstimateGas(ctx, token, a)
}

// stage uploads media and merges its URIs into the action.
func stage(ctx context.Context, up Uploader, req Request) (chain.Action, Result, error) {
	a := req.Action
	var res Result
	if req.Media == nil {
		return a, res, nil
	}
	ur, err := up.UploadImage(ctx, req.Token, *req.Media)
	if err != nil {
		return a, res, err
	}
	res.URI, res.MetadataURI = ur.URI, ur.MetadataURI
	a.ImageURI = ur.URI
	if ur.MetadataURI != "" {
		a.MetadataURI = ur.MetadataURI
	}
	return a, res, nil
}
