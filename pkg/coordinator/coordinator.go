package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/alfacon/thermosync/pkg/artifact"
	"github.com/alfacon/thermosync/pkg/config"
	"github.com/alfacon/thermosync/pkg/log"
	"github.com/alfacon/thermosync/pkg/metrics"
	"github.com/alfacon/thermosync/pkg/types"
	"github.com/google/uuid"
)

// Phase is the coordinator's position in the run state machine.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseValidatingConfig Phase = "validating_config"
	PhaseDiscovering      Phase = "discovering"
	PhaseFetchingWeather  Phase = "fetching_weather"
	PhaseDispatching      Phase = "dispatching"
	PhaseSummarizing      Phase = "summarizing"
	PhaseDone             Phase = "done"
)

// Discoverer produces the reachable subset of the candidate space.
type Discoverer interface {
	Discover(ctx context.Context, candidates []types.DeviceID) []types.DeviceID
}

// WeatherFetcher returns the single upstream reading for the run.
type WeatherFetcher interface {
	Fetch(ctx context.Context) (types.WeatherReading, error)
}

// Dispatcher fans the value out to the reachable devices.
type Dispatcher interface {
	Dispatch(ctx context.Context, devices []types.DeviceID, value float64) types.Tally
}

// Coordinator sequences discovery, the weather fetch and dispatch, and
// classifies the run. Terminal states are final; periodic re-invocation
// is the job of whatever schedules the process.
type Coordinator struct {
	cfg        *config.Config
	discoverer Discoverer
	weather    WeatherFetcher
	dispatcher Dispatcher
	sinks      []artifact.Sink

	mu    sync.RWMutex
	phase Phase
}

// New creates a coordinator over the three collaborators.
func New(cfg *config.Config, d Discoverer, w WeatherFetcher, disp Dispatcher) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		discoverer: d,
		weather:    w,
		dispatcher: disp,
		phase:      PhaseIdle,
	}
}

// AddSink registers a best-effort diagnostic sink notified after the run
// summary is finalized.
func (c *Coordinator) AddSink(sink artifact.Sink) {
	c.sinks = append(c.sinks, sink)
}

// Phase returns the coordinator's current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Run executes one full discovery-then-dispatch cycle. It always returns
// a finalized RunSummary with a terminal status; per-device failures are
// absorbed into the tally, only configuration errors, an empty reachable
// set, or a weather failure abort the run.
func (c *Coordinator) Run(ctx context.Context) types.RunSummary {
	runID := uuid.New().String()
	logger := log.WithRunID(runID)
	started := time.Now()

	summary := types.RunSummary{
		RunID:     runID,
		StartedAt: started,
	}

	c.setPhase(PhaseValidatingConfig)
	if err := c.cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("configuration invalid, aborting run")
		return c.finalize(summary, started, types.RunAborted, err.Error())
	}

	space := c.cfg.Space()
	candidates := space.Enumerate()
	summary.Searched = len(candidates)
	metrics.DevicesSearched.Set(float64(len(candidates)))

	logger.Info().
		Str("space", space.String()).
		Int("candidates", len(candidates)).
		Msg("run started")

	c.setPhase(PhaseDiscovering)
	discoveryTimer := metrics.NewTimer()
	reachable := c.discoverer.Discover(ctx, candidates)
	discoveryTimer.ObserveDuration(metrics.DiscoveryDuration)

	summary.Reachable = len(reachable)
	metrics.DevicesReachable.Set(float64(len(reachable)))

	if len(reachable) == 0 {
		logger.Warn().Msg("no reachable devices, aborting run")
		return c.finalize(summary, started, types.RunAborted, "no reachable devices")
	}

	c.setPhase(PhaseFetchingWeather)
	reading, err := c.weather.Fetch(ctx)
	if err != nil {
		metrics.WeatherFetchesTotal.WithLabelValues("failure").Inc()
		logger.Error().Err(err).Msg("weather fetch failed, aborting run")
		return c.finalize(summary, started, types.RunAborted, "weather fetch failed")
	}
	metrics.WeatherFetchesTotal.WithLabelValues("success").Inc()
	metrics.WeatherTemperature.Set(reading.Temperature)
	summary.Reading = reading

	c.setPhase(PhaseDispatching)
	dispatchTimer := metrics.NewTimer()
	tally := c.dispatcher.Dispatch(ctx, reachable, reading.Temperature)
	dispatchTimer.ObserveDuration(metrics.DispatchDuration)

	summary.Delivered = tally.Delivered
	summary.Failed = tally.Failed
	summary.NotFound = tally.NotFound
	metrics.PushOutcomesTotal.WithLabelValues(string(types.OutcomeDelivered)).Add(float64(tally.Delivered))
	metrics.PushOutcomesTotal.WithLabelValues(string(types.OutcomeFailed)).Add(float64(tally.Failed))
	metrics.PushOutcomesTotal.WithLabelValues(string(types.OutcomeNotFound)).Add(float64(tally.NotFound))

	c.setPhase(PhaseSummarizing)
	// Reachable devices are the denominator: unassigned identifiers are
	// expected and must not depress the metric.
	ratio := 0.0
	if summary.Reachable > 0 {
		ratio = float64(summary.Delivered) / float64(summary.Reachable)
	}
	summary.SuccessRatio = ratio
	metrics.RunSuccessRatio.Set(ratio)

	status := types.RunFailed
	if ratio >= c.cfg.SuccessThreshold {
		status = types.RunPassed
	}

	logger.Info().
		Int("reachable", summary.Reachable).
		Int("delivered", summary.Delivered).
		Int("failed", summary.Failed).
		Int("not_found", summary.NotFound).
		Float64("success_ratio", ratio).
		Str("status", string(status)).
		Msg("run summarized")

	return c.finalize(summary, started, status, "")
}

// finalize stamps the terminal state, records metrics and notifies sinks.
// The summary is immutable after this returns.
func (c *Coordinator) finalize(summary types.RunSummary, started time.Time, status types.RunStatus, reason string) types.RunSummary {
	summary.Duration = time.Since(started)
	summary.Status = status
	summary.AbortReason = reason

	metrics.RunsTotal.WithLabelValues(string(status)).Inc()
	metrics.RunDuration.Observe(summary.Duration.Seconds())

	c.setPhase(PhaseDone)
	c.notifySinks(summary)
	return summary
}

// notifySinks is best-effort: a failing sink never changes the
// classification.
func (c *Coordinator) notifySinks(summary types.RunSummary) {
	logger := log.WithRunID(summary.RunID)
	for _, sink := range c.sinks {
		if err := sink.Record(summary); err != nil {
			logger.Warn().Err(err).Msg("diagnostic sink failed")
		}
	}
}
