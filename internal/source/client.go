// Package source fetches greenhouse readings from the controller's webhook
// over HTTP, or receives them pushed over MQTT. Both paths decode into the
// same model.Reading.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ugagro/greenwatch/internal/model"
)

// DefaultEndpoint is the webhook the controller's n8n workflow exposes.
const DefaultEndpoint = "http://localhost:5678/webhook/greenhouse-data"

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 4 << 20

var (
	// ErrNetwork marks a transport failure: DNS, refused connection, timeout.
	ErrNetwork = errors.New("network error")
	// ErrHTTPStatus marks a non-2xx response. It is a network-class failure.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// IsNetwork reports whether err is a transport or HTTP status failure as
// opposed to a decode failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrHTTPStatus)
}

// Client is the webhook HTTP client.
type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool
}

// NewClient creates a Client for endpoint with the given per-request
// timeout and request rate.
func NewClient(endpoint string, timeout time.Duration, ratePerSec float64, debug bool) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	burst := int(ratePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
		debug:   debug,
	}
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Fetch performs one GET against the endpoint and decodes the body.
// hours > 0 is passed as ?hours=N so the source can include chart history.
// There is no retry: a failed fetch waits for the next poll.
func (c *Client) Fetch(ctx context.Context, hours int) (*model.Reading, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	reqURL, err := c.requestURL(hours)
	if err != nil {
		return nil, err
	}
	if c.debug {
		slog.Debug("source request", "url", reqURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "greenwatch/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}

	if c.debug {
		slog.Debug("source response", "status", resp.StatusCode, "bytes", len(body), "elapsed", time.Since(start))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrHTTPStatus, resp.StatusCode, snippet(body))
	}

	return Decode(body)
}

func (c *Client) requestURL(hours int) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", c.endpoint, err)
	}
	if hours > 0 {
		q := u.Query()
		q.Set("hours", strconv.Itoa(hours))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
