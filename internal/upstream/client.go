package upstream

import (
	"context"
	"crypto/tls"
	"math"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phishgate/backend/internal/models"
)

const (
	// DefaultCallTimeout bounds each HTTP call independently of the retry budget.
	DefaultCallTimeout = 10 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultBackoffBase scales the exponential backoff: delay = 2^attempt * base.
	DefaultBackoffBase = time.Second
)

// Options shapes call behavior. Zero values fall back to the defaults above.
type Options struct {
	CallTimeout time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	Logger      *zap.Logger
}

// Client talks to the upstream phishing-simulation engine on behalf of one
// tenant. It is constructed per request from that tenant's own credentials,
// so tenant A's traffic can never ride on tenant B's API key.
//
// Retry policy: transport errors and 5xx responses are retried with
// exponential backoff; 4xx responses are definitive and returned immediately.
type Client struct {
	http     *resty.Client
	tenantID uuid.UUID
	logger   *zap.Logger
}

// New builds a client for one tenant from its immutable credentials.
func New(tenantID uuid.UUID, creds models.TenantCredentials, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	base := opts.BackoffBase
	if base <= 0 {
		base = DefaultBackoffBase
	}

	rc := resty.New().
		SetBaseURL(creds.BaseURL).
		SetTimeout(timeout).
		SetAuthToken(creds.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Gateway-Tenant", tenantID.String()).
		SetRetryCount(retries).
		SetRetryWaitTime(base).
		// resty clamps computed delays to its max wait time (2s by default),
		// which would flatten the schedule to base, base, base. Raise the
		// ceiling to the largest delay the schedule can produce.
		SetRetryMaxWaitTime(time.Duration(math.Pow(2, float64(retries))) * base).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500 && r.StatusCode() < 600
		}).
		SetRetryAfter(func(_ *resty.Client, r *resty.Response) (time.Duration, error) {
			// attempt is 1-based after the first failure: 2s, 4s, 8s with a 1s base
			attempt := 1
			if r != nil && r.Request != nil {
				attempt = r.Request.Attempt
			}
			return time.Duration(math.Pow(2, float64(attempt))) * base, nil
		})

	if !creds.VerifyTLS {
		// Per-tenant opt-in for self-signed upstream deployments. Scoped to
		// this client only, never process-global.
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
		logger.Warn("TLS verification disabled for tenant upstream calls",
			zap.String("tenant_id", tenantID.String()))
	}

	return &Client{http: rc, tenantID: tenantID, logger: logger}
}

// VerifiesTLS reports whether this client validates upstream certificates.
func (c *Client) VerifiesTLS() bool {
	tr, err := c.http.Transport()
	if err != nil {
		return true
	}
	tc := tr.TLSClientConfig
	return tc == nil || !tc.InsecureSkipVerify
}

// do executes one logical call. result, when non-nil, receives the decoded
// 2xx response body.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Warn("upstream call failed",
			zap.String("tenant_id", c.tenantID.String()),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return &UnavailableError{Err: err}
	}

	status := resp.StatusCode()
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 500:
		// Retry budget already spent inside resty; surface the last response.
		c.logger.Warn("upstream unavailable after retries",
			zap.String("tenant_id", c.tenantID.String()),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status))
		return &UnavailableError{LastStatus: status, LastBody: string(resp.Body())}
	default:
		return &RejectedError{Status: status, Body: string(resp.Body())}
	}
}

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, resty.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, resty.MethodPost, path, body, result)
}

func (c *Client) put(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, resty.MethodPut, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, resty.MethodDelete, path, nil, nil)
}
