package discovery

import (
	"context"
	"sort"
	"sync"

	"github.com/alfacon/thermosync/pkg/log"
	"github.com/alfacon/thermosync/pkg/types"
)

// Prober tests reachability of a single device identifier.
type Prober interface {
	Probe(ctx context.Context, id types.DeviceID) bool
}

// Discoverer sweeps the candidate identifier space and collects the
// devices that answer. Probing is cheap and idempotent, so the pool is
// wider than the dispatch pool.
type Discoverer struct {
	prober      Prober
	concurrency int
}

// NewDiscoverer creates a discoverer with the given probe concurrency cap.
func NewDiscoverer(prober Prober, concurrency int) *Discoverer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Discoverer{prober: prober, concurrency: concurrency}
}

// Discover fans out probes over all candidates under the concurrency cap
// and returns the reachable identifiers sorted ascending. Probe errors
// count as unreachable and never abort the sweep; the result depends only
// on the reachability oracle, not on completion order. When ctx is
// cancelled the unprobed remainder is treated as unreachable.
func (d *Discoverer) Discover(ctx context.Context, candidates []types.DeviceID) []types.DeviceID {
	logger := log.WithComponent("discovery")

	jobs := make(chan types.DeviceID)
	results := make(chan types.DeviceID, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < d.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if d.prober.Probe(ctx, id) {
					results <- id
				}
			}
		}()
	}

feed:
	for _, id := range candidates {
		select {
		case jobs <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	reachable := make([]types.DeviceID, 0, len(candidates))
	for id := range results {
		reachable = append(reachable, id)
	}

	// Sorted membership keeps batch assignment deterministic regardless
	// of which probe finished first.
	sort.Slice(reachable, func(i, j int) bool { return reachable[i] < reachable[j] })

	logger.Info().
		Int("searched", len(candidates)).
		Int("reachable", len(reachable)).
		Msg("discovery sweep complete")

	return reachable
}
