// Package ledger is the HTTP client for the remote kas web service.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kasbot/internal/core"
	"kasbot/internal/log"
)

const (
	DefaultTimeout = 10 * time.Second

	pathSnapshot = "/api/kas"
	pathIncome   = "/api/tambah"
	pathExpense  = "/api/keluar"

	maxBodyBytes = 1 << 20
	userAgent    = "kasbot/1.0"
)

// Client talks to the kas service. Every call is attempted exactly once;
// failures come back as *NetworkError or *DecodeError.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is left as is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentLedger) }
}

// NewClient builds a client for baseURL. A non-positive timeout means DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchSnapshot reads totals and the transaction list.
func (c *Client) FetchSnapshot(ctx context.Context) (core.LedgerSnapshot, error) {
	const op = "fetch snapshot"

	var payload kasResponse
	status, err := c.do(ctx, op, http.MethodGet, pathSnapshot, nil, &payload)
	if err != nil {
		return core.LedgerSnapshot{}, err
	}

	snap, err := payload.toSnapshot()
	if err != nil {
		return core.LedgerSnapshot{}, &DecodeError{Op: op, Status: status, Err: err}
	}

	c.logger.DebugContext(ctx, "Ledger snapshot fetched",
		log.FieldBalance, snap.Balance,
		"transactions", len(snap.Transactions))
	return snap, nil
}

// PostIncome records an income line.
func (c *Client) PostIncome(ctx context.Context, amount int64, note string) (core.MutationResult, error) {
	return c.mutate(ctx, "post income", pathIncome, amount, note)
}

// PostExpense records an expense line.
func (c *Client) PostExpense(ctx context.Context, amount int64, note string) (core.MutationResult, error) {
	return c.mutate(ctx, "post expense", pathExpense, amount, note)
}

func (c *Client) mutate(ctx context.Context, op, path string, amount int64, note string) (core.MutationResult, error) {
	if amount <= 0 {
		return core.MutationResult{}, ErrInvalidAmount
	}

	body, err := json.Marshal(mutationRequest{Nominal: amount, Keterangan: note})
	if err != nil {
		return core.MutationResult{}, fmt.Errorf("ledger %s: encode request: %w", op, err)
	}

	var payload mutationResponse
	status, err := c.do(ctx, op, http.MethodPost, path, body, &payload)
	if err != nil {
		return core.MutationResult{}, err
	}

	res, err := payload.toResult()
	if err != nil {
		return core.MutationResult{}, &DecodeError{Op: op, Status: status, Err: err}
	}

	if !res.OK {
		c.logger.WarnContext(ctx, "Ledger mutation rejected",
			log.FieldEndpoint, path,
			log.FieldAmount, amount,
			log.FieldStatusCode, status,
			log.FieldError, res.RejectionText())
	}
	return res, nil
}

// do sends one request and decodes the JSON body into out regardless of the
// status code: the service reports rejections in the body.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("ledger %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Ledger request failed",
			log.FieldEndpoint, path,
			log.FieldErrorType, log.ErrorTypeNetwork,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldError, err)
		return 0, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, &NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.DebugContext(ctx, "Ledger request completed",
		log.FieldMethod, method,
		log.FieldEndpoint, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, &DecodeError{Op: op, Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, nil
}
