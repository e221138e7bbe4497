package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfacon/thermosync/pkg/types"
	"github.com/stretchr/testify/assert"
)

// oraclePusher answers from a fixed outcome map; unknown devices deliver.
type oraclePusher struct {
	mu       sync.Mutex
	outcomes map[types.DeviceID]types.DeviceOutcome
	pushed   []types.DeviceID
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	slow     time.Duration
}

func (p *oraclePusher) Push(ctx context.Context, id types.DeviceID, value float64) types.DeviceOutcome {
	cur := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		max := p.maxSeen.Load()
		if cur <= max || p.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}
	if p.slow > 0 {
		time.Sleep(p.slow)
	}

	p.mu.Lock()
	p.pushed = append(p.pushed, id)
	p.mu.Unlock()

	if outcome, ok := p.outcomes[id]; ok {
		return outcome
	}
	return types.OutcomeDelivered
}

func devices(n int) []types.DeviceID {
	return types.IdentifierSpace{Prefix: "CAL", Start: 1, End: n}.Enumerate()
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name      string
		devices   int
		batchSize int
		batches   []int
	}{
		{"empty", 0, 8, nil},
		{"single short batch", 3, 8, []int{3}},
		{"exact multiple", 16, 8, []int{8, 8}},
		{"remainder batch", 17, 8, []int{8, 8, 1}},
		{"size five", 17, 5, []int{5, 5, 5, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := partition(devices(tt.devices), tt.batchSize)
			var sizes []int
			for _, b := range got {
				sizes = append(sizes, len(b))
			}
			assert.Equal(t, tt.batches, sizes)
		})
	}
}

func TestDispatch_TalliesOutcomes(t *testing.T) {
	pusher := &oraclePusher{outcomes: map[types.DeviceID]types.DeviceOutcome{
		"CAL2": types.OutcomeFailed,
		"CAL5": types.OutcomeNotFound,
	}}

	tally := NewDispatcher(pusher, 3, 2, 0).Dispatch(context.Background(), devices(7), 21.5)

	assert.Equal(t, types.Tally{Delivered: 5, Failed: 1, NotFound: 1}, tally)
	assert.Equal(t, 7, tally.Total())
}

func TestDispatch_BatchSizeInvariance(t *testing.T) {
	outcomes := map[types.DeviceID]types.DeviceOutcome{
		"CAL3":  types.OutcomeFailed,
		"CAL9":  types.OutcomeNotFound,
		"CAL14": types.OutcomeFailed,
	}

	var tallies []types.Tally
	for _, batchSize := range []int{8, 5} {
		pusher := &oraclePusher{outcomes: outcomes}
		tally := NewDispatcher(pusher, batchSize, 3, 0).Dispatch(context.Background(), devices(17), 21.5)
		tallies = append(tallies, tally)
		assert.Equal(t, 17, tally.Total())
	}

	assert.Equal(t, tallies[0], tallies[1])
}

func TestDispatch_EveryDevicePushedOnce(t *testing.T) {
	pusher := &oraclePusher{}

	NewDispatcher(pusher, 4, 3, 0).Dispatch(context.Background(), devices(10), 21.5)

	seen := map[types.DeviceID]int{}
	for _, id := range pusher.pushed {
		seen[id]++
	}
	assert.Len(t, seen, 10)
	for id, count := range seen {
		assert.Equal(t, 1, count, "device %s pushed %d times", id, count)
	}
}

func TestDispatch_RespectsBatchConcurrencyCap(t *testing.T) {
	pusher := &oraclePusher{slow: 2 * time.Millisecond}

	NewDispatcher(pusher, 2, 3, 0).Dispatch(context.Background(), devices(24), 21.5)

	assert.LessOrEqual(t, pusher.maxSeen.Load(), int32(3))
}

func TestDispatch_EmptyDevices(t *testing.T) {
	pusher := &oraclePusher{}

	tally := NewDispatcher(pusher, 8, 3, 0).Dispatch(context.Background(), nil, 21.5)

	assert.Equal(t, types.Tally{}, tally)
}

func TestDispatch_CancelledCountsRemainderFailed(t *testing.T) {
	pusher := &oraclePusher{slow: 2 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	tally := NewDispatcher(pusher, 10, 2, 0).Dispatch(ctx, devices(40), 21.5)

	// No device vanishes and none is double-counted, whatever the timing.
	assert.Equal(t, 40, tally.Total())
	assert.Greater(t, tally.Failed, 0)
}
