package clerk

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	svix "github.com/svix/svix-webhooks/go"
	"golang.org/x/time/rate"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

const DefaultBase = "https://api.clerk.com/v1"

type Config struct {
	Base          string
	SecretKey     string // backend API key, sent as a bearer token
	JWTKey        string // PEM public key that signs session tokens
	WebhookSecret string // whsec_... signing secret of the webhook endpoint
	RPS           int
}

// Client talks to the identity provider: backend user lookups, session token
// verification and webhook signature checks.
type Client struct {
	base   string
	hc     *http.Client
	secret string
	rl     *rate.Limiter

	jwtKey *rsa.PublicKey
	wh     *svix.Webhook
}

func New(cfg Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("clerk secret key is required")
	}
	if cfg.Base == "" {
		cfg.Base = DefaultBase
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	c := &Client{
		base:   strings.TrimRight(cfg.Base, "/"),
		hc:     &http.Client{Timeout: 20 * time.Second},
		secret: cfg.SecretKey,
		rl:     rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
	}
	if cfg.JWTKey != "" {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTKey))
		if err != nil {
			return nil, fmt.Errorf("parse session key: %w", err)
		}
		c.jwtKey = k
	}
	if cfg.WebhookSecret != "" {
		wh, err := svix.NewWebhook(cfg.WebhookSecret)
		if err != nil {
			return nil, fmt.Errorf("webhook secret: %w", err)
		}
		c.wh = wh
	}
	return c, nil
}

var _ domain.IdentityProvider = (*Client)(nil)

func (c *Client) FetchUser(ctx context.Context, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.get(ctx, "users", c.base+"/users/"+url.PathEscape(id), &out); err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return out, nil
}

const maxAttempts = 4

// retryable reports the statuses worth another attempt.
func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// get issues a rate-limited GET and decodes the JSON answer into out. Transport
// errors and retryable statuses are attempted again, honoring Retry-After.
func (c *Client) get(ctx context.Context, endpoint, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 && !sleepCtx(ctx, backoffFor(lastErr, i-1)) {
			return ctx.Err()
		}
		lastErr = c.once(ctx, endpoint, u, out)
		var re *retryErr
		if !errors.As(lastErr, &re) {
			return lastErr
		}
	}
	return lastErr
}

// retryErr marks a failed attempt that may be repeated.
type retryErr struct {
	err  error
	wait time.Duration
}

func (e *retryErr) Error() string { return e.err.Error() }
func (e *retryErr) Unwrap() error { return e.err }

func backoffFor(err error, i int) time.Duration {
	var re *retryErr
	if errors.As(err, &re) && re.wait > 0 {
		return re.wait
	}
	return backoff(i)
}

func (c *Client) once(ctx context.Context, endpoint, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		observability.ObserveExternal("clerk", endpoint, 0, time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &retryErr{err: err}
	}
	defer resp.Body.Close()
	observability.ObserveExternal("clerk", endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return domain.ErrForbidden
	case retryable(resp.StatusCode):
		return &retryErr{err: fmt.Errorf("remote %d", resp.StatusCode), wait: retryAfter(resp)}
	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
