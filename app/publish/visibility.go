package publish

import (
	"context"
	"sync"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/internal/tasks"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
)

type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseConfirmPending Phase = "confirm_pending"
	PhaseMinting        Phase = "minting"
)

const clearMintingTimeout = 30 * time.Second

// Confirmation is what the user is asked to confirm.
type Confirmation struct {
	Phase     Phase           `json:"phase"`
	FirstMint bool            `json:"first_mint"`
	Visible   bool            `json:"visible"`
	Estimate  *chain.Estimate `json:"estimate,omitempty"`
	Fee       string          `json:"fee,omitempty"`
}

// Outcome of a confirmed transition.
type Outcome struct {
	MintRequested bool                  `json:"mint_requested"`
	Saved         content.PublishUpdate `json:"saved"`
}

// Coordinator gates visibility changes behind a confirmation and mints on the first
// switch to public.
type Coordinator struct {
	editor    *Editor
	store     Store
	minter    Minter
	scheduler Scheduler
	logger    logging.KVLogger
	now       func() time.Time

	mu        sync.Mutex
	phase     Phase
	firstMint bool
	estimate  *chain.Estimate
}

type CoordinatorOption func(*Coordinator)

func WithCoordinatorLogger(logger logging.KVLogger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

func NewCoordinator(e *Editor, store Store, m Minter, s Scheduler, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		editor:    e,
		store:     store,
		minter:    m,
		scheduler: s,
		logger:    logging.NoopKVLogger{},
		now:       time.Now,
		phase:     PhaseIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("publish_id", e.DraftID())
	return c
}

func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Request moves to ConfirmPending when pending visibility differs from persisted.
// A first switch to public is validated and priced beforehand.
func (c *Coordinator) Request(ctx context.Context, token string) (Confirmation, error) {
	c.mu.Lock()
	if c.phase == PhaseMinting {
		c.mu.Unlock()
		return Confirmation{}, errors.Conflict("a mint is being requested")
	}
	c.mu.Unlock()

	if !c.editor.VisibilityChanged() {
		return Confirmation{}, errors.Conflict("visibility is unchanged")
	}
	p := c.editor.Publish()
	pending := c.editor.Pending()
	first := pending.Visible && !p.Minted()
	conf := Confirmation{Phase: PhaseConfirmPending, FirstMint: first, Visible: pending.Visible}

	if first {
		if p.IsMinting {
			return Confirmation{}, errors.Conflict("publish %s is already being minted", p.ID)
		}
		if err := validateForMint(p, pending); err != nil {
			return Confirmation{}, err
		}
		est, err := c.minter.EstimateMint(ctx, token, p)
		if err != nil {
			return Confirmation{}, err
		}
		conf.Estimate = &est
		conf.Fee = est.String()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = PhaseConfirmPending
	c.firstMint = first
	c.estimate = conf.Estimate
	return conf, nil
}

func validateForMint(p content.Publish, pending Metadata) error {
	switch {
	case pending.Title == "":
		return errors.Validation("a title is required to publish")
	case pending.PrimaryCategory == "":
		return errors.Validation("a primary category is required to publish")
	case p.State() == content.StateErrored:
		return errors.Validation("publish failed processing and cannot be minted")
	case p.MetadataURI == "":
		return errors.Validation("publish is still processing, try again shortly")
	}
	return nil
}

// Cancel abandons the transition and undoes every pending edit.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	if c.phase == PhaseMinting {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseIdle
	c.estimate = nil
	c.firstMint = false
	c.mu.Unlock()
	c.editor.Undo()
}

// Confirm performs the pending transition. A first mint marks the publish as minting,
// requests the mint and schedules its reconciliation before the remaining edits,
// visibility included, are saved. The mint outcome arrives later through change notifications.
func (c *Coordinator) Confirm(ctx context.Context, a Actor) (Outcome, error) {
	c.mu.Lock()
	if c.phase != PhaseConfirmPending {
		c.mu.Unlock()
		return Outcome{}, errors.Conflict("nothing to confirm")
	}
	first := c.firstMint
	if first && c.estimate == nil {
		c.mu.Unlock()
		return Outcome{}, errors.Conflict("gas estimate missing, request the change again")
	}
	if first {
		c.phase = PhaseMinting
	}
	c.mu.Unlock()

	var out Outcome
	if first {
		if err := c.mint(ctx, a); err != nil {
			c.setPhase(PhaseConfirmPending)
			return out, err
		}
		out.MintRequested = true
	}

	saved, err := c.editor.save(ctx, a.Token, true)
	out.Saved = saved

	c.mu.Lock()
	c.phase = PhaseIdle
	c.estimate = nil
	c.firstMint = false
	c.mu.Unlock()
	return out, err
}

// RetryMint requests the mint again for a public publish whose earlier mint was cleared.
func (c *Coordinator) RetryMint(ctx context.Context, a Actor) error {
	p := c.editor.Publish()
	switch {
	case p.Minted():
		return errors.Conflict("publish %s is already minted", p.ID)
	case p.IsMinting:
		return errors.Conflict("publish %s is already being minted", p.ID)
	case !p.Visible:
		return errors.Conflict("publish %s is not public", p.ID)
	}
	if err := validateForMint(p, MetadataFrom(p)); err != nil {
		return err
	}
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return errors.Conflict("a visibility change is pending")
	}
	c.phase = PhaseMinting
	c.mu.Unlock()
	defer c.setPhase(PhaseIdle)
	return c.mint(ctx, a)
}

func (c *Coordinator) mint(ctx context.Context, a Actor) error {
	p := c.editor.Publish()
	accType := string(a.Account.Type)

	if err := c.store.SetMinting(ctx, a.Token, p.ID, true); err != nil {
		c.logger.Warn("could not mark publish as minting", "err", err)
		return err
	}
	c.editor.markMinting(true)
	requested := c.now()

	err := c.minter.Mint(ctx, a, p, func(err error) {
		if err != nil {
			c.logger.Warn("mint did not settle", "err", err)
			c.clearMinting(ctx, a.Token, p.ID)
		}
	})
	metrics.MintRequests.WithLabelValues(accType, metrics.Outcome(err)).Inc()
	if err != nil {
		c.logger.Warn("mint request failed", "err", err)
		c.clearMinting(ctx, a.Token, p.ID)
		return err
	}
	c.logger.Info("mint requested", "account_id", a.Account.ID)

	if c.scheduler != nil {
		err := c.scheduler.ScheduleReconcile(ctx, tasks.ReconcileMintPayload{
			PublishID:   p.ID,
			AccountID:   a.Account.ID,
			RequestedAt: requested,
		})
		if err != nil {
			c.logger.Error("could not schedule mint reconciliation", "err", err)
		}
	}
	return nil
}

func (c *Coordinator) clearMinting(ctx context.Context, token, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearMintingTimeout)
	defer cancel()
	if err := c.store.SetMinting(cctx, token, id, false); err != nil {
		c.logger.Warn("could not clear minting flag, leaving it to reconciliation", "err", err)
		return
	}
	c.editor.markMinting(false)
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = p
}
