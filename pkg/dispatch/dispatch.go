package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/alfacon/thermosync/pkg/log"
	"github.com/alfacon/thermosync/pkg/types"
)

// Pusher delivers one value to one device and classifies the outcome.
type Pusher interface {
	Push(ctx context.Context, id types.DeviceID, value float64) types.DeviceOutcome
}

// Dispatcher partitions the reachable set into contiguous batches and
// pushes the value to each device. Batches run concurrently under a cap;
// within a batch devices are processed sequentially with a small delay to
// respect rate limits on the receiving platform.
type Dispatcher struct {
	pusher      Pusher
	batchSize   int
	concurrency int
	delay       time.Duration
}

// NewDispatcher creates a dispatcher. The batch concurrency cap is kept
// narrower than discovery because pushes are rate-sensitive.
func NewDispatcher(pusher Pusher, batchSize, concurrency int, delay time.Duration) *Dispatcher {
	if batchSize < 1 {
		batchSize = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		pusher:      pusher,
		batchSize:   batchSize,
		concurrency: concurrency,
		delay:       delay,
	}
}

// partition splits devices into contiguous slices of at most batchSize.
func partition(devices []types.DeviceID, batchSize int) [][]types.DeviceID {
	var batches [][]types.DeviceID
	for start := 0; start < len(devices); start += batchSize {
		end := start + batchSize
		if end > len(devices) {
			end = len(devices)
		}
		batches = append(batches, devices[start:end])
	}
	return batches
}

// Dispatch pushes value to every device and returns the merged tally.
// Each batch owns its counters; tallies become visible to the aggregate
// only after the batch goroutine has finished, so cancellation can never
// leak partial or double counts. A batch interrupted by cancellation
// counts its unprocessed devices as Failed.
func (d *Dispatcher) Dispatch(ctx context.Context, devices []types.DeviceID, value float64) types.Tally {
	logger := log.WithComponent("dispatch")

	batches := partition(devices, d.batchSize)
	results := make(chan types.Tally, len(batches))
	sem := make(chan struct{}, d.concurrency)

	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(n int, batch []types.DeviceID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			tally := d.runBatch(ctx, batch, value)
			logger.Debug().
				Int("batch", n).
				Int("devices", len(batch)).
				Int("delivered", tally.Delivered).
				Msg("batch complete")
			results <- tally
		}(i, batch)
	}

	wg.Wait()
	close(results)

	var total types.Tally
	for tally := range results {
		total.Merge(tally)
	}

	logger.Info().
		Int("batches", len(batches)).
		Int("delivered", total.Delivered).
		Int("failed", total.Failed).
		Int("not_found", total.NotFound).
		Msg("dispatch complete")

	return total
}

// runBatch processes one batch sequentially into its own tally.
func (d *Dispatcher) runBatch(ctx context.Context, batch []types.DeviceID, value float64) types.Tally {
	var tally types.Tally
	for i, id := range batch {
		if ctx.Err() != nil {
			tally.Failed += len(batch) - i
			return tally
		}
		if i > 0 && d.delay > 0 {
			select {
			case <-time.After(d.delay):
			case <-ctx.Done():
				tally.Failed += len(batch) - i
				return tally
			}
		}
		tally.Add(d.pusher.Push(ctx, id, value))
	}
	return tally
}
