package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

// WalletBridge is the HTTP client of the wallet-connection provider's relay.
type WalletBridge struct {
	baseURL string
	reads   *retryablehttp.Client
	writes  *retryablehttp.Client
	logger  logging.KVLogger
}

type providerError struct {
	Error string `json:"error"`
}

func NewWalletBridge(baseURL string, timeout time.Duration, retryMax int, logger logging.KVLogger) *WalletBridge {
	if logger == nil {
		logger = logging.NoopKVLogger{}
	}
	hc := &http.Client{Transport: cleanhttp.DefaultPooledTransport(), Timeout: timeout}
	return &WalletBridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		reads: &retryablehttp.Client{
			HTTPClient:   hc,
			RetryWaitMin: 200 * time.Millisecond,
			RetryWaitMax: 2 * time.Second,
			RetryMax:     retryMax,
			Backoff:      retryablehttp.DefaultBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
		writes: &retryablehttp.Client{
			HTTPClient:   hc,
			RetryMax:     0,
			Backoff:      retryablehttp.DefaultBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
		logger: logger,
	}
}

func (w *WalletBridge) WriteAvailable(ctx context.Context, address string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	err := w.call(ctx, w.reads, http.MethodGet, "/wallets/"+url.PathEscape(address)+"/write", nil, &out)
	return out.Available, err
}

func (w *WalletBridge) Prepare(ctx context.Context, address string, a chain.Action) (PreparedTx, error) {
	var tx PreparedTx
	err := w.call(ctx, w.writes, http.MethodPost, "/wallets/"+url.PathEscape(address)+"/prepare", map[string]any{"action": a}, &tx)
	return tx, err
}

func (w *WalletBridge) Write(ctx context.Context, address string, tx PreparedTx) (string, error) {
	var out struct {
		Hash string `json:"hash"`
	}
	err := w.call(ctx, w.writes, http.MethodPost, "/wallets/"+url.PathEscape(address)+"/write", tx, &out)
	return out.Hash, err
}

func (w *WalletBridge) Wait(ctx context.Context, address, txHash string) (Receipt, error) {
	var r Receipt
	err := w.call(ctx, w.reads, http.MethodGet, "/wallets/"+url.PathEscape(address)+"/tx/"+url.PathEscape(txHash)+"?wait=1", nil, &r)
	return r, err
}

func (w *WalletBridge) call(ctx context.Context, hc *retryablehttp.Client, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Err(err)
		}
		body = bytes.NewReader(b)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, w.baseURL+path, body)
	if err != nil {
		return errors.Err(err)
	}
	req.Header.Set("Content-Type", "application/json")

	// A response that exhausted retries comes back together with an error; its body
	// may still carry the provider's message.
	resp, err := hc.Do(req)
	if resp == nil {
		w.logger.Warn("wallet bridge call failed", "path", path, "err", err)
		return errors.Transient(fmt.Errorf("wallet bridge: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var pe providerError
		json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&pe)
		if pe.Error != "" {
			return errors.Wallet(errors.Base("%s", pe.Error))
		}
		return errors.Wallet(fmt.Errorf("wallet provider returned status %d, please try again", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Transient(fmt.Errorf("wallet bridge: malformed response: %w", err))
	}
	return nil
}
