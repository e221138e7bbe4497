package discovery

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfacon/thermosync/pkg/types"
	"github.com/stretchr/testify/assert"
)

// oracleProber answers from a fixed reachability map, optionally jittering
// completion order to shake out ordering leaks.
type oracleProber struct {
	reachable map[types.DeviceID]bool
	jitter    time.Duration
	calls     atomic.Int32
	inFlight  atomic.Int32
	maxSeen   atomic.Int32
}

func (p *oracleProber) Probe(ctx context.Context, id types.DeviceID) bool {
	p.calls.Add(1)

	cur := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		max := p.maxSeen.Load()
		if cur <= max || p.maxSeen.CompareAndSwap(max, cur) {
			break
		}
	}

	if p.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(p.jitter))))
	}
	return p.reachable[id]
}

func space(prefix string, start, end int) []types.DeviceID {
	return types.IdentifierSpace{Prefix: prefix, Start: start, End: end}.Enumerate()
}

func TestDiscover_ExactlyOracleSet(t *testing.T) {
	candidates := space("CAL", 251, 260)
	oracle := &oracleProber{reachable: map[types.DeviceID]bool{
		"CAL251": true,
		"CAL253": true,
		"CAL255": true,
	}}

	got := NewDiscoverer(oracle, 10).Discover(context.Background(), candidates)

	assert.Equal(t, []types.DeviceID{"CAL251", "CAL253", "CAL255"}, got)
	assert.Equal(t, int32(len(candidates)), oracle.calls.Load())
}

func TestDiscover_DeterministicAcrossConcurrency(t *testing.T) {
	candidates := space("CAL", 1, 60)
	reachable := map[types.DeviceID]bool{}
	for i, id := range candidates {
		if i%3 == 0 {
			reachable[id] = true
		}
	}

	var first []types.DeviceID
	for _, concurrency := range []int{1, 4, 10} {
		oracle := &oracleProber{reachable: reachable, jitter: 2 * time.Millisecond}
		got := NewDiscoverer(oracle, concurrency).Discover(context.Background(), candidates)
		if first == nil {
			first = got
		} else {
			assert.Equal(t, first, got, "concurrency %d changed the result", concurrency)
		}
	}
	assert.Len(t, first, len(reachable))
}

func TestDiscover_RespectsConcurrencyCap(t *testing.T) {
	oracle := &oracleProber{reachable: map[types.DeviceID]bool{}, jitter: 3 * time.Millisecond}

	NewDiscoverer(oracle, 5).Discover(context.Background(), space("CAL", 1, 50))

	assert.LessOrEqual(t, oracle.maxSeen.Load(), int32(5))
}

func TestDiscover_NoneReachable(t *testing.T) {
	oracle := &oracleProber{reachable: map[types.DeviceID]bool{}}

	got := NewDiscoverer(oracle, 10).Discover(context.Background(), space("CAL", 251, 260))

	assert.Empty(t, got)
}

func TestDiscover_EmptyCandidates(t *testing.T) {
	oracle := &oracleProber{reachable: map[types.DeviceID]bool{}}

	got := NewDiscoverer(oracle, 10).Discover(context.Background(), nil)

	assert.Empty(t, got)
	assert.Equal(t, int32(0), oracle.calls.Load())
}

func TestDiscover_CancelledContextStopsSweep(t *testing.T) {
	candidates := space("CAL", 1, 200)
	reachable := map[types.DeviceID]bool{}
	for _, id := range candidates {
		reachable[id] = true
	}
	oracle := &oracleProber{reachable: reachable, jitter: 2 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	got := NewDiscoverer(oracle, 4).Discover(ctx, candidates)

	// Whatever was probed before cancellation is still a valid subset.
	assert.Less(t, len(got), len(candidates))
	for _, id := range got {
		assert.True(t, reachable[id])
	}
}
