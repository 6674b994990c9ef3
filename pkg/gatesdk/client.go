package gatesdk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/wdb/iiifgate/pkg/idx"
	"github.com/wdb/iiifgate/pkg/iiiftoken"
	"github.com/wdb/iiifgate/pkg/slogx"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultRetryMax     = 2
	DefaultRetryWaitMin = 100 * time.Millisecond
	DefaultRetryWaitMax = time.Second

	// maxResponseBytes bounds response bodies read from the gate.
	maxResponseBytes = 1 << 20
)

// Client talks to the gate. The zero value is not usable; use NewClient.
type Client struct {
	BaseURL string

	// TokenParam is the query parameter scanned for tokens. It must match
	// the gate's GATE_TOKEN_PARAM.
	TokenParam string

	// TokenOnly omits cookies from decision requests, so only tokens can
	// authorize.
	TokenOnly bool

	http   *retryablehttp.Client
	logger *slog.Logger
}

type Option func(*Client)

// WithTokenParam sets the token query parameter name.
func WithTokenParam(name string) Option {
	return func(c *Client) { c.TokenParam = iiiftoken.ParamName(name) }
}

// WithTokenOnly enables token-only mode.
func WithTokenOnly(enabled bool) Option {
	return func(c *Client) { c.TokenOnly = enabled }
}

// WithHTTPClient replaces the underlying transport client. Its timeout is
// left untouched.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// WithRetry sets the retry count and backoff bounds.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = max
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

// WithLogger sets the logger used for retries and delegate warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for the gate at baseURL with two retries and a
// five second timeout per attempt.
func NewClient(baseURL string, opts ...Option) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = DefaultTimeout

	c := &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		TokenParam: iiiftoken.DefaultParam,
		http: &retryablehttp.Client{
			HTTPClient:   hc,
			RetryWaitMin: DefaultRetryWaitMin,
			RetryWaitMax: DefaultRetryWaitMax,
			RetryMax:     DefaultRetryMax,
			Backoff:      retryablehttp.DefaultBackoff,
			CheckRetry:   retryablehttp.DefaultRetryPolicy,
			ErrorHandler: retryablehttp.PassthroughErrorHandler,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger != nil {
		c.http.Logger = c.logger
	}
	return c
}

func (c *Client) log(ctx context.Context) *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slogx.FromContext(ctx)
}

// Decide asks the gate for a verdict. A non-2xx response is returned as an
// *APIError alongside whatever reason the body carried.
func (c *Client) Decide(ctx context.Context, req DecisionRequest) (DecisionResponse, error) {
	var out DecisionResponse

	body, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("encode decision request: %w", err)
	}

	code, raw, err := c.do(ctx, http.MethodPost, DecisionPath, body, nil)
	if err != nil {
		return out, err
	}
	if apiErr := parseErrorResponse(code, raw); apiErr != nil {
		_ = json.Unmarshal(raw, &out)
		out.Authorized = false
		return out, apiErr
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return DecisionResponse{}, fmt.Errorf("decode decision response: %w", err)
	}
	return out, nil
}

// AuthContext fetches a fresh token for pageID on behalf of the browser
// session carried in cookieHeader.
func (c *Client) AuthContext(ctx context.Context, pageID int64, cookieHeader string) (AuthContextResponse, error) {
	var out AuthContextResponse

	headers := http.Header{}
	if cookieHeader != "" {
		headers.Set("Cookie", cookieHeader)
	}

	code, raw, err := c.do(ctx, http.MethodGet, AuthContextPath+strconv.FormatInt(pageID, 10), nil, headers)
	if err != nil {
		return out, err
	}
	if apiErr := parseErrorResponse(code, raw); apiErr != nil {
		return out, apiErr
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode auth context: %w", err)
	}
	return out, nil
}

// Ready queries the readiness endpoint. An unready gate returns the health
// body together with an *APIError.
func (c *Client) Ready(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse

	code, raw, err := c.do(ctx, http.MethodGet, ReadyzPath, nil, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode health response: %w", err)
	}
	if apiErr := parseErrorResponse(code, raw); apiErr != nil {
		return out, apiErr
	}
	return out, nil
}

// do sends one request through the retrying client and returns the final
// status code and body.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	body []byte,
	headers http.Header,
) (int, []byte, error) {
	var reqBody any
	if body != nil {
		reqBody = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(slogx.RequestIDHeader, idx.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}
