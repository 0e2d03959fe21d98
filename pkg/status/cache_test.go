package status

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DashNode-Org/teranode-monitor/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func nodeInfo(height, peers int64) *rpc.NodeInfo {
	return &rpc.NodeInfo{
		BlockHeight:     height,
		PeerConnections: peers,
		MempoolSize:     height % 1000,
		Difficulty:      float64(height) * 2,
		Chain:           "main",
		Peers:           []rpc.PeerInfo{{Addr: "1.2.3.4:8333"}},
	}
}

func timeoutErr() error {
	return &rpc.FetchError{Kind: rpc.KindTimeout, Method: "getblockchaininfo"}
}

func TestNewCache_InitialState(t *testing.T) {
	c := NewCache(928100)
	rec := c.Current()

	assert.False(t, rec.Healthy)
	assert.Zero(t, rec.BlockHeight)
	assert.Zero(t, rec.PeerConnections)
	assert.Zero(t, rec.StaleSinceFailures)
	assert.EqualValues(t, 928100, rec.TargetHeight)
	require.NotNil(t, rec.SyncProgress)
	assert.Zero(t, *rec.SyncProgress)
	assert.NotNil(t, rec.Peers)
}

func TestCache_SuccessThenFailurePreservesValues(t *testing.T) {
	c := NewCache(0)

	c.RecordSuccess(nodeInfo(927500, 42), 20*time.Millisecond, t0)
	before := c.Current()
	assert.True(t, before.Healthy)

	c.RecordFailure(timeoutErr(), 8*time.Second, t0.Add(10*time.Second))
	after := c.Current()

	assert.False(t, after.Healthy)
	assert.Equal(t, 1, after.StaleSinceFailures)
	assert.Equal(t, t0.Add(10*time.Second), after.FetchedAt)

	// everything else is untouched
	after.Healthy = before.Healthy
	after.StaleSinceFailures = before.StaleSinceFailures
	after.FetchedAt = before.FetchedAt
	assert.Equal(t, before, after)
}

func TestCache_FailureCounter(t *testing.T) {
	c := NewCache(0)

	for i := 1; i <= 3; i++ {
		c.RecordFailure(timeoutErr(), 0, t0)
		assert.Equal(t, i, c.Current().StaleSinceFailures)
	}

	c.RecordSuccess(nodeInfo(10, 1), 0, t0)
	assert.Zero(t, c.Current().StaleSinceFailures)
	assert.True(t, c.Current().Healthy)

	c.RecordFailure(errors.New("plain"), 0, t0)
	assert.Equal(t, 1, c.Current().StaleSinceFailures)
}

func TestCache_RandomOutcomeSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 200; run++ {
		c := NewCache(1000)
		var lastGood *rpc.NodeInfo
		failures := 0

		for step := 0; step < 30; step++ {
			if rng.Intn(2) == 0 {
				info := nodeInfo(rng.Int63n(2000), rng.Int63n(100))
				c.RecordSuccess(info, 0, t0)
				lastGood = info
				failures = 0
			} else {
				c.RecordFailure(timeoutErr(), 0, t0)
				failures++
			}

			rec := c.Current()
			assert.Equal(t, failures == 0 && lastGood != nil, rec.Healthy)
			assert.Equal(t, failures, rec.StaleSinceFailures)
			if lastGood != nil {
				assert.Equal(t, lastGood.BlockHeight, rec.BlockHeight)
				assert.Equal(t, lastGood.PeerConnections, rec.PeerConnections)
			}
			if rec.SyncProgress != nil {
				assert.LessOrEqual(t, *rec.SyncProgress, 1.0)
			}
		}
	}
}

func TestCache_SyncProgressClamp(t *testing.T) {
	c := NewCache(928100)
	c.RecordSuccess(nodeInfo(930000, 5), 0, t0)

	rec := c.Current()
	require.NotNil(t, rec.SyncProgress)
	assert.Equal(t, 1.0, *rec.SyncProgress)
	assert.Zero(t, rec.BlocksRemaining)

	c = NewCache(0)
	c.RecordSuccess(nodeInfo(930000, 5), 0, t0)
	assert.Nil(t, c.Current().SyncProgress)
}

func TestCache_Diagnostics(t *testing.T) {
	c := NewCache(0)

	c.RecordSuccess(nodeInfo(1, 1), 10*time.Millisecond, t0)
	c.RecordFailure(&rpc.FetchError{Kind: rpc.KindUnauthorized, Method: "getblockchaininfo", Code: 401}, 30*time.Millisecond, t0)

	d := c.Snapshot().Diagnostics
	assert.Equal(t, rpc.KindUnauthorized, d.LastErrorKind)
	assert.Contains(t, d.LastError, "unauthorized")
	assert.EqualValues(t, 1, d.TotalSuccesses)
	assert.EqualValues(t, 1, d.TotalFailures)
	assert.Equal(t, 2, d.FetchLatency.Samples)
	assert.Equal(t, 20*time.Millisecond, d.FetchLatency.Avg)
	assert.Equal(t, 10*time.Millisecond, d.FetchLatency.Min)
	assert.Equal(t, 30*time.Millisecond, d.FetchLatency.Max)
}

func TestLatencyStats_Window(t *testing.T) {
	var ls LatencyStats
	for i := 0; i < LatencyWindowSize+20; i++ {
		ls = ls.withSample(time.Duration(i) * time.Millisecond)
	}

	assert.Equal(t, LatencyWindowSize, ls.Samples)
	assert.Equal(t, 20*time.Millisecond, ls.Min)
	assert.Equal(t, time.Duration(LatencyWindowSize+19)*time.Millisecond, ls.Max)

	older := ls
	_ = ls.withSample(time.Hour)
	assert.Equal(t, older.Max, ls.Max, "withSample must not mutate the receiver")
}

// Readers running during refreshes must always see a record whose fields
// come from the same cycle.
func TestCache_ConcurrentReadersSeeWholeRecords(t *testing.T) {
	c := NewCache(0)
	var stop atomic.Bool
	var wg sync.WaitGroup
	var torn atomic.Int64

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				rec := c.Current()
				if rec.BlockHeight != 0 && rec.PeerConnections != rec.BlockHeight/10 {
					torn.Add(1)
				}
				if rec.BlockHeight != 0 && rec.Difficulty != float64(rec.BlockHeight)*2 {
					torn.Add(1)
				}
			}
		}()
	}

	for h := int64(10); h < 20000; h += 10 {
		if h%70 == 0 {
			c.RecordFailure(timeoutErr(), 0, t0)
			continue
		}
		c.RecordSuccess(nodeInfo(h, h/10), 0, t0)
	}
	stop.Store(true)
	wg.Wait()

	assert.Zero(t, torn.Load())
}
