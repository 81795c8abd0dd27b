// Package httpclient is the shared outbound HTTP client. Every call carries a
// fixed timeout; idempotent calls that fail with a transport error or a 5xx
// are retried a bounded number of times after a static delay.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"consentsync/internal/platform/config"
	dErrors "consentsync/pkg/domain-errors"
	"consentsync/pkg/requestcontext"
)

// HeaderTransactionID is forwarded on every outbound call.
const HeaderTransactionID = "x-cm-txn-id"

// maxBodyBytes caps how much of a response body is buffered.
const maxBodyBytes = 16 << 20

// Request describes one outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully buffered 2xx response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// HTTPError is returned for non-2xx responses. Message is taken from the body
// when the remote sent a JSON message.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Client executes requests with timeout and retry.
type Client struct {
	http       *http.Client
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New builds a client from configuration.
func New(cfg config.HTTPClient, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends req and returns the buffered response for 2xx statuses. Any other
// status yields an *HTTPError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	attempt := 0

	operation := func() error {
		attempt++
		r, err := c.once(ctx, req)
		if err == nil {
			resp = r
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if !c.retryable(req.Method, err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.WarnContext(ctx, "outbound request failed, will retry",
			"method", req.Method,
			"url", req.URL,
			"attempt", attempt,
			"error", err.Error(),
		)
		return err
	}

	retries := c.retries
	if !idempotent(req.Method) {
		retries = 0
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), uint64(retries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetJSON issues a GET and decodes the body into out.
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url, Header: header})
	if err != nil {
		return err
	}
	return decode(resp, out)
}

// PostJSON marshals in, POSTs it, and decodes the response body into out when
// out is non-nil.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, in, out any) (*Response, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/json")

	resp, err := c.Do(ctx, Request{Method: http.MethodPost, URL: url, Header: h, Body: body})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := decode(resp, out); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

func (c *Client) once(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if txn := requestcontext.TransactionID(ctx); txn != "" && httpReq.Header.Get(HeaderTransactionID) == "" {
		httpReq.Header.Set(HeaderTransactionID, txn)
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: data, Message: remoteMessage(res.StatusCode, data)}
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}, nil
}

func (c *Client) retryable(method string, err error) bool {
	if !idempotent(method) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	return true
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut:
		return true
	default:
		return false
	}
}

func decode(resp *Response, out any) error {
	if len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// remoteMessage pulls a human readable message out of an error body.
func remoteMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Msg != "":
			return payload.Msg
		case payload.Error != "":
			return payload.Error
		}
	}
	return http.StatusText(status)
}

// ToDomainError classifies an outbound failure. Remote statuses are preserved
// so the HTTP boundary can echo them; msg prefixes the remote message.
func ToDomainError(err error, msg string) error {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		full := msg + ": " + httpErr.Message
		switch {
		case httpErr.StatusCode >= 500:
			return dErrors.WithStatus(httpErr.StatusCode, dErrors.CodeUnavailable, full, err)
		case httpErr.StatusCode == http.StatusNotFound:
			return dErrors.WithStatus(httpErr.StatusCode, dErrors.CodeNotFound, full, err)
		default:
			return dErrors.WithStatus(httpErr.StatusCode, dErrors.CodeBadRequest, full, err)
		}
	}
	if isTimeout(err) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": request timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
