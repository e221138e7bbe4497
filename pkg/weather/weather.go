package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alfacon/thermosync/pkg/log"
	"github.com/alfacon/thermosync/pkg/retry"
	"github.com/alfacon/thermosync/pkg/types"
)

// Client fetches the current reading from the upstream weather provider.
// Callers only observe a WeatherReading or an error; the failure reason is
// logged but not distinguished structurally.
type Client struct {
	BaseURL   string
	APIKey    string
	Latitude  float64
	Longitude float64

	HTTPClient *http.Client
	Retry      retry.Policy
}

// NewClient creates a weather client with a 30s request timeout and three
// attempts with linear backoff.
func NewClient(baseURL, apiKey string, lat, lon float64) *Client {
	return &Client{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		Latitude:  lat,
		Longitude: lon,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Second},
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.HTTPClient.Timeout = timeout
	return c
}

// WithRetry sets the retry policy.
func (c *Client) WithRetry(policy retry.Policy) *Client {
	c.Retry = policy
	return c
}

// payload mirrors the provider's response; only the fields the run needs.
type payload struct {
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
}

// Fetch retrieves the current reading. Transport errors and non-2xx
// responses are retried; a well-formed 2xx response missing required
// fields is terminal.
func (c *Client) Fetch(ctx context.Context) (types.WeatherReading, error) {
	logger := log.WithComponent("weather")

	url := fmt.Sprintf("%s/data/2.5/weather?lat=%g&lon=%g&appid=%s&units=metric",
		c.BaseURL, c.Latitude, c.Longitude, c.APIKey)

	var reading types.WeatherReading
	err := c.Retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retry.Terminal(err)
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			logger.Warn().Err(err).Msg("weather fetch attempt failed")
			return fmt.Errorf("fetch weather: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			logger.Warn().Int("status", resp.StatusCode).Msg("weather provider rejected request")
			return fmt.Errorf("fetch weather: unexpected status %s", resp.Status)
		}

		var body payload
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return retry.Terminal(fmt.Errorf("decode weather payload: %w", err))
		}

		if body.Main == nil || body.Main.Temp == nil || body.Main.Humidity == nil {
			return retry.Terminal(fmt.Errorf("weather payload missing required fields"))
		}

		description := "unknown"
		if len(body.Weather) > 0 && body.Weather[0].Description != "" {
			description = body.Weather[0].Description
		}

		reading = types.WeatherReading{
			Temperature: *body.Main.Temp,
			Humidity:    *body.Main.Humidity,
			Description: description,
			ObservedAt:  time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return types.WeatherReading{}, err
	}

	logger.Info().
		Float64("temperature", reading.Temperature).
		Int("humidity", reading.Humidity).
		Str("description", reading.Description).
		Msg("weather reading fetched")

	return reading, nil
}
