package types

import "time"

// WeatherReading is the single upstream observation pushed to devices.
// Built once per run and never mutated afterwards.
type WeatherReading struct {
	Temperature float64   `json:"temperature"`
	Humidity    int       `json:"humidity"`
	Description string    `json:"description"`
	ObservedAt  time.Time `json:"observed_at"`
}

// DeviceOutcome is the terminal result of pushing a value to one device.
type DeviceOutcome string

const (
	OutcomeDelivered DeviceOutcome = "delivered"
	OutcomeFailed    DeviceOutcome = "failed"
	OutcomeNotFound  DeviceOutcome = "not_found"
)

// RunStatus classifies a completed run.
type RunStatus string

const (
	RunPassed  RunStatus = "passed"
	RunFailed  RunStatus = "failed"
	RunAborted RunStatus = "aborted"
)

// Tally accumulates per-device outcomes. Each dispatch batch owns its own
// Tally; batch tallies are merged only after the batch has joined.
type Tally struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	NotFound  int `json:"not_found"`
}

// Add folds one outcome into the tally.
func (t *Tally) Add(outcome DeviceOutcome) {
	switch outcome {
	case OutcomeDelivered:
		t.Delivered++
	case OutcomeNotFound:
		t.NotFound++
	default:
		t.Failed++
	}
}

// Merge folds another tally into this one.
func (t *Tally) Merge(other Tally) {
	t.Delivered += other.Delivered
	t.Failed += other.Failed
	t.NotFound += other.NotFound
}

// Total returns the number of outcomes recorded.
func (t Tally) Total() int {
	return t.Delivered + t.Failed + t.NotFound
}

// RunSummary is the aggregate result of one full run. It is finalized by
// the coordinator and immutable afterwards.
type RunSummary struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
	Searched     int            `json:"searched"`
	Reachable    int            `json:"reachable"`
	Delivered    int            `json:"delivered"`
	Failed       int            `json:"failed"`
	NotFound     int            `json:"not_found"`
	SuccessRatio float64        `json:"success_ratio"`
	Status       RunStatus      `json:"status"`
	AbortReason  string         `json:"abort_reason,omitempty"`
	Reading      WeatherReading `json:"reading,omitempty"`
}
