package account

import (
	"context"
	"sync"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/app/ingest"
)

type fakeWallet struct {
	mu sync.Mutex
	// availableFrom is the 1-based availability check from which the write function exists; 0 means never.
	availableFrom int
	checks        int
	prepared      []chain.Action
	writes        int
	receipt       Receipt
	prepareErr    error
}

func (w *fakeWallet) WriteAvailable(ctx context.Context, address string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checks++
	return w.availableFrom > 0 && w.checks >= w.availableFrom, nil
}

func (w *fakeWallet) Prepare(ctx context.Context, address string, a chain.Action) (PreparedTx, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.prepareErr != nil {
		return PreparedTx{}, w.prepareErr
	}
	w.prepared = append(w.prepared, a)
	return PreparedTx{ID: "tx-req-1"}, nil
}

func (w *fakeWallet) Write(ctx context.Context, address string, tx PreparedTx) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	return "0xhash", nil
}

func (w *fakeWallet) Wait(ctx context.Context, address, txHash string) (Receipt, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.receipt, nil
}

type fakeUploader struct {
	result ingest.Result
	files  []ingest.File
}

func (u *fakeUploader) UploadImage(ctx context.Context, token string, f ingest.File) (ingest.Result, error) {
	u.files = append(u.files, f)
	return u.result, nil
}

type fakeChain struct {
	mu      sync.Mutex
	actions []chain.Action
	block   chan struct{}
	err     error
}

func (c *fakeChain) Execute(ctx context.Context, token string, a chain.Action) (chain.Status, error) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, a)
	if c.err != nil {
		return chain.Status{}, c.err
	}
	return chain.Status{TxHash: "0xcustodial", State: chain.TxSubmitted}, nil
}

func (c *fakeChain) EstimateGas(ctx context.Context, token string, a chain.Action) (chain.Estimate, error) {
	return chain.Estimate{Currency: "MATIC"}, nil
}

type fakeRevalidator struct {
	mu  sync.Mutex
	log []string
}

func (r *fakeRevalidator) InvalidateAccount(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, "account:"+subject)
}

func (r *fakeRevalidator) InvalidateProfile(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, "profile:"+handle)
}

type recordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return ctx.Err()
}
