// Package httpscorer calls a remote predictive scorer over HTTP.
package httpscorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/okian/flightrisk/internal/domain/model"
	"github.com/okian/flightrisk/internal/domain/scoring"
)

const maxResponseBytes = 1 << 20

var fencedJSON = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sends token as a bearer credential on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// Client is a scoring.Scorer backed by a remote endpoint. It never retries
// and keeps no state between calls.
type Client struct {
	url   string
	token string
	http  *http.Client
}

var _ scoring.Scorer = (*Client)(nil)

// New creates a client posting feature vectors to url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:  url,
		http: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// response mirrors the scorer answer. RiskScore is a pointer so a missing
// field is distinguishable from zero.
type response struct {
	RiskScore *float64 `json:"riskScore"`
	Summary   string   `json:"summary"`
}

// Score posts fv and decodes the answer. Transport failures and non-2xx
// statuses are ErrUnavailable; undecodable bodies are ErrMalformed.
func (c *Client) Score(ctx context.Context, fv model.FeatureVector) (scoring.Result, error) {
	failed := scoring.Result{RiskScore: scoring.FailureSentinel}

	body, err := json.Marshal(fv)
	if err != nil {
		return failed, fmt.Errorf("%w: encode request: %w", scoring.ErrMalformed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return failed, fmt.Errorf("%w: build request: %w", scoring.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failed, fmt.Errorf("%w: %w", scoring.ErrTimeout, err)
		}
		return failed, fmt.Errorf("%w: %w", scoring.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failed, fmt.Errorf("%w: read response: %w", scoring.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failed, fmt.Errorf("%w: status %d", scoring.ErrUnavailable, resp.StatusCode)
	}

	return decode(raw)
}

// decode parses the body directly, then from a markdown code fence.
func decode(raw []byte) (scoring.Result, error) {
	failed := scoring.Result{RiskScore: scoring.FailureSentinel}
	content := strings.TrimSpace(string(raw))

	r, err := unmarshal(content)
	if err != nil {
		m := fencedJSON.FindStringSubmatch(content)
		if len(m) < 2 {
			return failed, fmt.Errorf("%w: %w", scoring.ErrMalformed, err)
		}
		if r, err = unmarshal(strings.TrimSpace(m[1])); err != nil {
			return failed, fmt.Errorf("%w: %w", scoring.ErrMalformed, err)
		}
	}

	res := scoring.Result{RiskScore: *r.RiskScore, Summary: r.Summary}
	if err := res.Validate(); err != nil {
		return failed, err
	}
	return res, nil
}

func unmarshal(content string) (response, error) {
	var r response
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return r, fmt.Errorf("decode response: %w", err)
	}
	if r.RiskScore == nil {
		return r, errors.New("response has no riskScore")
	}
	return r, nil
}
