package thinger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alfacon/thermosync/pkg/log"
	"github.com/alfacon/thermosync/pkg/retry"
	"github.com/alfacon/thermosync/pkg/types"
)

// ErrNotFound marks a push against a device or resource that does not
// exist on the platform. Retrying is futile.
var ErrNotFound = errors.New("device or resource not found")

// Client talks to the device-control platform. Each device exposes an
// OutTemp resource under /v1/users/{username}/devices/{id}/OutTemp; a GET
// probes existence and a POST delivers a value.
type Client struct {
	Server   string
	Username string
	Token    string

	HTTPClient *http.Client

	// ProbeTimeout and PushTimeout bound individual calls via context.
	ProbeTimeout time.Duration
	PushTimeout  time.Duration

	// ProbeRetryDelay is the fixed pause before the single probe retry.
	ProbeRetryDelay time.Duration

	// PushRetry governs push attempts for retryable failures.
	PushRetry retry.Policy
}

// NewClient creates a platform client with the default timeouts and
// retry behavior.
func NewClient(server, username, token string) *Client {
	return &Client{
		Server:          server,
		Username:        username,
		Token:           token,
		HTTPClient:      &http.Client{},
		ProbeTimeout:    10 * time.Second,
		PushTimeout:     15 * time.Second,
		ProbeRetryDelay: 500 * time.Millisecond,
		PushRetry:       retry.Policy{MaxAttempts: 3, BaseDelay: time.Second},
	}
}

// WithPushRetry sets the push retry policy.
func (c *Client) WithPushRetry(policy retry.Policy) *Client {
	c.PushRetry = policy
	return c
}

// WithTimeouts sets the per-call probe and push timeouts.
func (c *Client) WithTimeouts(probe, push time.Duration) *Client {
	c.ProbeTimeout = probe
	c.PushTimeout = push
	return c
}

func (c *Client) resourceURL(id types.DeviceID) string {
	return fmt.Sprintf("%s/v1/users/%s/devices/%s/OutTemp", c.Server, c.Username, id)
}

// Probe reports whether the device exists on the platform. Only an exact
// 200 counts; any other status or transport error is treated as
// unreachable. Unreachable is the expected outcome for most of the
// identifier space, so it is logged at debug only.
func (c *Client) Probe(ctx context.Context, id types.DeviceID) bool {
	// One retry with a fixed pause smooths transient faults without
	// slowing the full-space sweep.
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.ProbeRetryDelay):
			case <-ctx.Done():
				return false
			}
		}
		if c.probeOnce(ctx, id) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

func (c *Client) probeOnce(ctx context.Context, id types.DeviceID) bool {
	ctx, cancel := context.WithTimeout(ctx, c.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resourceURL(id), nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")

	logger := log.WithDeviceID(string(id))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		logger.Debug().Err(err).Msg("probe failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Debug().Int("status", resp.StatusCode).Msg("probe rejected")
		return false
	}
	return true
}

// pushPayload is the fixed-shape body delivered to the device resource.
type pushPayload struct {
	ExtError int     `json:"exterror"`
	WebOut   float64 `json:"webout"`
}

// Push delivers value to the device and classifies the outcome. A 2xx is
// Delivered. A 404 is NotFound and never retried: the resource genuinely
// does not exist. Anything else is retried with backoff and reported as
// Failed on exhaustion.
func (c *Client) Push(ctx context.Context, id types.DeviceID, value float64) types.DeviceOutcome {
	logger := log.WithDeviceID(string(id))

	err := c.PushRetry.Do(ctx, func(ctx context.Context) error {
		return c.pushOnce(ctx, id, value)
	})
	switch {
	case err == nil:
		logger.Debug().Float64("value", value).Msg("value delivered")
		return types.OutcomeDelivered
	case errors.Is(err, ErrNotFound):
		logger.Debug().Msg("device not found on platform")
		return types.OutcomeNotFound
	default:
		logger.Warn().Err(err).Msg("push failed after retries")
		return types.OutcomeFailed
	}
}

func (c *Client) pushOnce(ctx context.Context, id types.DeviceID, value float64) error {
	ctx, cancel := context.WithTimeout(ctx, c.PushTimeout)
	defer cancel()

	body, err := json.Marshal(pushPayload{ExtError: 0, WebOut: value})
	if err != nil {
		return retry.Terminal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resourceURL(id), bytes.NewReader(body))
	if err != nil {
		return retry.Terminal(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return retry.Terminal(ErrNotFound)
	default:
		return fmt.Errorf("push to %s: unexpected status %s", id, resp.Status)
	}
}
