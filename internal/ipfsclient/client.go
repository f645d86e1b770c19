// Package ipfsclient pins canonicalized invoice JSON, fetches it back,
// and checks pin status against an HTTP gateway, wrapping each call
// with the shared retry policy and a replenishing token bucket.
package ipfsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/andrey/invoice-pipeline/internal/retry"
)

// Config controls gateway address, rate limiting, and retry behavior.
type Config struct {
	GatewayURL    string
	RatePerMinute int
	RetryBase     time.Duration
	MaxRetries    int
	Timeout       time.Duration
}

// PinResult groups a pinned CID with its name, size and timestamp.
// PinJSON does not return it: PinJSON returns the CID string only.
type PinResult struct {
	CID       string
	Name      string
	Size      int
	Timestamp time.Time
}

// Client is the gateway client. One Client is shared by all callers in a
// process; its rate limiter and HTTP client are safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	bucket  *TokenBucket
	backoff *retry.Policy
	log     lgr.L
}

// New builds a Client and starts its token-bucket replenishing goroutine.
// Call Close to stop it.
func New(cfg Config, log lgr.L) *Client {
	if log == nil {
		log = lgr.NoOp
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		bucket:  NewTokenBucket(cfg.RatePerMinute),
		backoff: retry.NewPolicy(cfg.RetryBase, cfg.MaxRetries),
		log:     log,
	}
}

// Close releases the rate limiter's background goroutine.
func (c *Client) Close() {
	c.bucket.Stop()
}

// PinJSON pins payload via the gateway's add+pin endpoint as a single
// multipart file part named name, and returns the resulting CID. No
// timestamp or size metadata is sent with the upload. Retries on
// ErrRetryable per the configured policy; a single ErrPermanent (4xx
// other than 429) aborts immediately.
func (c *Client) PinJSON(ctx context.Context, payload []byte, name string) (string, error) {
	if err := c.bucket.Acquire(ctx); err != nil {
		return "", err
	}

	var cid string
	err := c.backoff.Do(ctx, func(ctx context.Context) error {
		reqURL := fmt.Sprintf("%s/api/v0/add?pin=true&cid-version=1", c.cfg.GatewayURL)

		var body bytes.Buffer
		mw := newMultipartJSON(&body, name, payload)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &body)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Content-Type", mw.contentType)

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRetryable, err)
		}
		defer resp.Body.Close()

		if classErr := classifyStatus(resp.StatusCode); classErr != nil {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			wrapped := fmt.Errorf("%w: gateway add %d: %s", classErr, resp.StatusCode, string(b))
			if classErr == ErrPermanent {
				return retry.Permanent(wrapped)
			}
			return wrapped
		}

		var decoded struct {
			Hash string `json:"Hash"`
			Cid  struct {
				Path string `json:"/"`
			} `json:"Cid"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return retry.Permanent(fmt.Errorf("ipfsclient: decode add response: %w", err))
		}
		cid = decoded.Hash
		if cid == "" {
			cid = decoded.Cid.Path
		}
		if cid == "" {
			return retry.Permanent(fmt.Errorf("ipfsclient: gateway returned empty CID"))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.log.Logf("INFO ipfsclient: pinned %s as %s (%d bytes)", cid, name, len(payload))
	return cid, nil
}

// GetJSON fetches raw bytes for cid via {gateway}/ipfs/{cid}. Returns
// (nil, nil) on 4xx — content on 2xx, null on 4xx; returns an error
// wrapping ErrRetryable on 5xx/transport failure after retries are
// exhausted.
func (c *Client) GetJSON(ctx context.Context, cid string) ([]byte, error) {
	if err := c.bucket.Acquire(ctx); err != nil {
		return nil, err
	}

	var out []byte
	err := c.backoff.Do(ctx, func(ctx context.Context) error {
		reqURL := fmt.Sprintf("%s/ipfs/%s", c.cfg.GatewayURL, url.PathEscape(cid))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRetryable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			out = nil
			return nil
		}
		if classErr := classifyStatus(resp.StatusCode); classErr != nil {
			return classErr
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRetryable, err)
		}
		out = body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsPinned checks pin status for cid via the gateway's pin/ls endpoint.
func (c *Client) IsPinned(ctx context.Context, cid string) (bool, error) {
	if err := c.bucket.Acquire(ctx); err != nil {
		return false, err
	}

	var pinned bool
	err := c.backoff.Do(ctx, func(ctx context.Context) error {
		reqURL := fmt.Sprintf("%s/api/v0/pin/ls?arg=%s", c.cfg.GatewayURL, url.QueryEscape(cid))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
		if err != nil {
			return retry.Permanent(err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRetryable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusInternalServerError {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			if bytes.Contains(b, []byte("not pinned")) {
				pinned = false
				return nil
			}
			return ErrRetryable
		}
		if classErr := classifyStatus(resp.StatusCode); classErr != nil {
			if classErr == ErrPermanent {
				pinned = false
				return nil
			}
			return classErr
		}

		var decoded struct {
			Keys map[string]json.RawMessage `json:"Keys"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return retry.Permanent(fmt.Errorf("ipfsclient: decode pin/ls response: %w", err))
		}
		_, pinned = decoded.Keys[cid]
		return nil
	})
	if err != nil {
		return false, err
	}
	return pinned, nil
}
