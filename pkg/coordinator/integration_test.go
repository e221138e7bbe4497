package coordinator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfacon/thermosync/pkg/config"
	"github.com/alfacon/thermosync/pkg/discovery"
	"github.com/alfacon/thermosync/pkg/dispatch"
	"github.com/alfacon/thermosync/pkg/retry"
	"github.com/alfacon/thermosync/pkg/thinger"
	"github.com/alfacon/thermosync/pkg/types"
	"github.com/alfacon/thermosync/pkg/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// platformStub emulates the device platform: known devices answer probes
// and accept pushes, everything else is 404. Devices listed in broken
// exist but reject pushes.
func platformStub(t *testing.T, known map[string]bool, broken map[string]bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		// /v1/users/{user}/devices/{id}/OutTemp
		require.Len(t, parts, 7)
		id := parts[5]

		if !known[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodPost && broken[id] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func weatherStub(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
}

func e2eConfig(t *testing.T, platformURL, weatherURL string) *config.Config {
	cfg := testConfig(t)
	cfg.Server = platformURL
	cfg.WeatherBaseURL = weatherURL
	cfg.DeviceStart = 251
	cfg.DeviceEnd = 260
	cfg.DispatchDelay = 0
	return cfg
}

func buildCoordinator(cfg *config.Config) *Coordinator {
	platform := thinger.NewClient(cfg.Server, cfg.Username, cfg.Token)
	platform.ProbeRetryDelay = time.Millisecond
	platform.PushRetry = retry.Policy{MaxAttempts: cfg.MaxRetries, BaseDelay: time.Millisecond}

	weatherClient := weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, cfg.Latitude, cfg.Longitude)
	weatherClient.Retry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	disc := discovery.NewDiscoverer(platform, cfg.ProbeConcurrency)
	disp := dispatch.NewDispatcher(platform, cfg.BatchSize, cfg.BatchConcurrency, cfg.DispatchDelay)
	return New(cfg, disc, weatherClient, disp)
}

func TestEndToEnd_AllReachableDelivered(t *testing.T) {
	known := map[string]bool{"CAL251": true, "CAL253": true, "CAL255": true}
	platform := platformStub(t, known, nil)
	defer platform.Close()

	upstream := weatherStub(t, `{"main":{"temp":21.5,"humidity":60},"weather":[{"description":"clear"}]}`)
	defer upstream.Close()

	cfg := e2eConfig(t, platform.URL, upstream.URL)
	summary := buildCoordinator(cfg).Run(context.Background())

	assert.Equal(t, types.RunPassed, summary.Status)
	assert.Equal(t, 10, summary.Searched)
	assert.Equal(t, 3, summary.Reachable)
	assert.Equal(t, 3, summary.Delivered)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 0, summary.NotFound)
	assert.Equal(t, 1.0, summary.SuccessRatio)
	assert.Equal(t, 21.5, summary.Reading.Temperature)
	assert.Equal(t, "clear", summary.Reading.Description)
}

func TestEndToEnd_BrokenDeviceFailsRun(t *testing.T) {
	known := map[string]bool{"CAL251": true, "CAL253": true, "CAL255": true}
	broken := map[string]bool{"CAL253": true}
	platform := platformStub(t, known, broken)
	defer platform.Close()

	upstream := weatherStub(t, `{"main":{"temp":21.5,"humidity":60},"weather":[{"description":"clear"}]}`)
	defer upstream.Close()

	cfg := e2eConfig(t, platform.URL, upstream.URL)
	summary := buildCoordinator(cfg).Run(context.Background())

	assert.Equal(t, 2, summary.Delivered)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 0.667, summary.SuccessRatio, 0.001)
	assert.Equal(t, types.RunFailed, summary.Status)
}

func TestEndToEnd_WeatherDownAborts(t *testing.T) {
	known := map[string]bool{"CAL251": true}
	var pushes int
	platform := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		require.Len(t, parts, 7)
		if r.Method == http.MethodPost {
			pushes++
		}
		if !known[parts[5]] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer platform.Close()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	cfg := e2eConfig(t, platform.URL, upstream.URL)
	summary := buildCoordinator(cfg).Run(context.Background())

	assert.Equal(t, types.RunAborted, summary.Status)
	assert.Equal(t, 0, pushes)
}
