// Package gql is a minimal GraphQL-over-HTTP client for the content and chain services.
// Queries are retried at the transport level, mutations never are.
package gql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/oauth2"
)

const (
	defaultTimeout      = 20 * time.Second
	defaultRetryMax     = 3
	defaultRetryWaitMin = 500 * time.Millisecond
	defaultRetryWaitMax = 5 * time.Second

	maxResponseSize = 10 << 20
)

// Extension codes recognized in GraphQL error responses.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeBadUserInput    = "BAD_USER_INPUT"
)

type Client struct {
	name        string
	endpoint    string
	timeout     time.Duration
	retryMax    int
	serviceAuth oauth2.TokenSource
	httpClient  *http.Client
	logger      logging.KVLogger

	query  *retryablehttp.Client
	mutate *retryablehttp.Client
}

type Option func(*Client)

type request struct {
	OperationName string         `json:"operationName,omitempty"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Error is a single entry of a GraphQL "errors" array.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type Errors []Error

func (e Error) Code() string {
	c, _ := e.Extensions["code"].(string)
	return c
}

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Message
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

func WithLogger(logger logging.KVLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetryMax sets the number of retries for queries.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		c.retryMax = n
	}
}

// WithServiceToken authenticates calls made without a user token.
func WithServiceToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.serviceAuth = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a client for the GraphQL endpoint. name labels metrics and logs.
func New(name, endpoint string, opts ...Option) *Client {
	c := &Client{
		name:     name,
		endpoint: endpoint,
		timeout:  defaultTimeout,
		retryMax: defaultRetryMax,
		logger:   logging.NoopKVLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("service", name)
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: cleanhttp.DefaultPooledTransport(),
			Timeout:   c.timeout,
		}
	}

	c.query = &retryablehttp.Client{
		HTTPClient:   c.httpClient,
		RetryWaitMin: defaultRetryWaitMin,
		RetryWaitMax: defaultRetryWaitMax,
		RetryMax:     c.retryMax,
		Backoff:      retryablehttp.DefaultBackoff,
		CheckRetry:   retryPolicy(c.logger),
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	c.mutate = &retryablehttp.Client{
		HTTPClient:   c.httpClient,
		RetryMax:     0,
		Backoff:      retryablehttp.DefaultBackoff,
		CheckRetry:   retryPolicy(c.logger),
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
	return c
}

// Query runs a read-only operation. token is the caller's identity token and may be empty
// for calls that only need service credentials.
func (c *Client) Query(ctx context.Context, token, operation, query string, vars map[string]any, out any) error {
	return c.do(ctx, c.query, token, operation, query, vars, out)
}

// Mutate runs a mutation. Mutations are never retried and require either an identity token
// or configured service credentials.
func (c *Client) Mutate(ctx context.Context, token, operation, query string, vars map[string]any, out any) error {
	if token == "" && c.serviceAuth == nil {
		return errors.AuthStale("identity token missing")
	}
	return c.do(ctx, c.mutate, token, operation, query, vars, out)
}

func (c *Client) do(ctx context.Context, hc *retryablehttp.Client, token, operation, query string, vars map[string]any, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.GraphQLDurations.WithLabelValues(c.name, operation, string(errors.KindOf(err))).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(request{OperationName: operation, Query: query, Variables: vars})
	if err != nil {
		return errors.Err(err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Err(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.authorize(req.Request, token); err != nil {
		return err
	}

	resp, err := hc.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		c.logger.Warn("graphql call failed", "operation", operation, "err", err)
		return errors.Transient(fmt.Errorf("%s %s: %w", c.name, operation, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.AuthStale("%s %s: status %d", c.name, operation, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound("%s %s: status %d", c.name, operation, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return errors.Transient(fmt.Errorf("%s %s: unexpected status %d", c.name, operation, resp.StatusCode))
	}

	var gr response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&gr); err != nil {
		return errors.Transient(fmt.Errorf("%s %s: malformed response: %w", c.name, operation, err))
	}
	if len(gr.Errors) > 0 {
		return classify(gr.Errors)
	}
	if out == nil || len(gr.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return errors.Transient(fmt.Errorf("%s %s: unexpected data: %w", c.name, operation, err))
	}
	return nil
}

func (c *Client) authorize(r *http.Request, token string) error {
	var ts oauth2.TokenSource
	if token != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	} else if c.serviceAuth != nil {
		ts = c.serviceAuth
	} else {
		return nil
	}
	t, err := ts.Token()
	if err != nil {
		return errors.AuthStale("unable to obtain token: %v", err)
	}
	t.SetAuthHeader(r)
	return nil
}

// classify maps the first recognizable GraphQL error code to an error kind.
func classify(errs Errors) error {
	for _, e := range errs {
		switch e.Code() {
		case CodeUnauthenticated, CodeForbidden:
			return errors.WithKind(errors.KindAuthStale, errs)
		case CodeNotFound:
			return errors.WithKind(errors.KindNotFound, errs)
		case CodeBadUserInput:
			return errors.WithKind(errors.KindValidation, errs)
		}
	}
	return errors.Transient(errs)
}
