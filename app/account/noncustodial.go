package account

import (
	"context"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
)

const (
	DefaultSettleDelay        = time.Second
	DefaultMaxWriteAttempts   = 11
	DefaultWriteRetryInterval = 500 * time.Millisecond
)

// PreparedTx is a transaction prepared by the wallet provider and ready to be signed.
type PreparedTx struct {
	ID string `json:"id"`
}

type Receipt struct {
	TxHash string `json:"tx_hash"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (r Receipt) Succeeded() bool {
	return r.Status == "success"
}

// Wallet is the user's wallet connection: write availability plus the
// prepare/write/wait transaction lifecycle.
type Wallet interface {
	WriteAvailable(ctx context.Context, address string) (bool, error)
	Prepare(ctx context.Context, address string, a chain.Action) (PreparedTx, error)
	Write(ctx context.Context, address string, tx PreparedTx) (string, error)
	Wait(ctx context.Context, address, txHash string) (Receipt, error)
}

// NonCustodial runs actions through the user's wallet.
type NonCustodial struct {
	wallet        Wallet
	uploader      Uploader
	settleDelay   time.Duration
	maxAttempts   int
	retryInterval time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	logger        logging.KVLogger
}

type NonCustodialOption func(*NonCustodial)

// WithWritePolling sets the settling delay before the first availability check, the number of
// retries after it, and the spacing between retries.
func WithWritePolling(settle time.Duration, maxAttempts int, interval time.Duration) NonCustodialOption {
	return func(n *NonCustodial) {
		n.settleDelay = settle
		n.maxAttempts = maxAttempts
		n.retryInterval = interval
	}
}

func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) NonCustodialOption {
	return func(n *NonCustodial) {
		n.sleep = sleep
	}
}

func WithNonCustodialLogger(logger logging.KVLogger) NonCustodialOption {
	return func(n *NonCustodial) {
		n.logger = logger
	}
}

func NewNonCustodial(w Wallet, up Uploader, opts ...NonCustodialOption) *NonCustodial {
	n := &NonCustodial{
		wallet:        w,
		uploader:      up,
		settleDelay:   DefaultSettleDelay,
		maxAttempts:   DefaultMaxWriteAttempts,
		retryInterval: DefaultWriteRetryInterval,
		sleep:         sleepCtx,
		logger:        logging.NoopKVLogger{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Execute uploads media and stages its URI, waits for the wallet to settle, polls for the
// write function, then prepares and writes the transaction.
func (n *NonCustodial) Execute(ctx context.Context, req Request) (Result, error) {
	addr := req.Account.WalletAddress
	if addr == "" {
		return Result{}, errors.Wallet(errors.Base("account has no connected wallet"))
	}
	a, res, err := stage(ctx, n.uploader, req)
	if err != nil {
		return res, err
	}
	if err := n.sleep(ctx, n.settleDelay); err != nil {
		return res, err
	}
	if err := n.awaitWrite(ctx, addr); err != nil {
		return res, err
	}

	tx, err := n.wallet.Prepare(ctx, addr, a)
	if err != nil {
		return res, errors.Wallet(err)
	}
	hash, err := n.wallet.Write(ctx, addr, tx)
	if err != nil {
		return res, errors.Wallet(err)
	}
	res.TxHash = hash

	if req.Await {
		err := n.wait(ctx, addr, hash)
		if req.OnSettled != nil {
			req.OnSettled(err)
		}
		return res, err
	}
	go func() {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Minute)
		defer cancel()
		err := n.wait(wctx, addr, hash)
		if err != nil {
			n.logger.Warn("transaction did not settle", "tx_hash", hash, "err", err)
		}
		if req.OnSettled != nil {
			req.OnSettled(err)
		}
	}()
	return res, nil
}

// awaitWrite checks write availability once, then retries up to maxAttempts times
// spaced by retryInterval.
func (n *NonCustodial) awaitWrite(ctx context.Context, addr string) error {
	for attempt := 0; ; attempt++ {
		ok, err := n.wallet.WriteAvailable(ctx, addr)
		if err != nil {
			n.logger.Debug("write availability check failed", "attempt", attempt, "err", err)
		}
		if ok {
			metrics.WalletWriteAttempts.Observe(float64(attempt + 1))
			return nil
		}
		if attempt >= n.maxAttempts {
			n.logger.Info("wallet write never became available", "retries", attempt)
			return ErrNoWrite
		}
		if err := n.sleep(ctx, n.retryInterval); err != nil {
			return err
		}
	}
}

func (n *NonCustodial) wait(ctx context.Context, addr, hash string) error {
	r, err := n.wallet.Wait(ctx, addr, hash)
	if err != nil {
		return errors.Wallet(err)
	}
	if !r.Succeeded() {
		msg := r.Error
		if msg == "" {
			msg = "transaction " + r.Status
		}
		return errors.Wallet(errors.Base("%s", msg))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
