package health

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DashNode-Org/teranode-monitor/config"
	"github.com/DashNode-Org/teranode-monitor/pkg/rpc"
	"github.com/DashNode-Org/teranode-monitor/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFetcher implements rpc.StatusFetcher
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) FetchStatus(ctx context.Context) (*rpc.NodeInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rpc.NodeInfo), args.Error(1)
}

// manualTicker behaves like time.Ticker: one buffered tick, extra ticks dropped.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time, 1)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() { m.stopped.Store(true) }

func (m *manualTicker) tick() {
	select {
	case m.ch <- time.Now():
	default:
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.NodeHost = "localhost"
	cfg.RPCUser = "bitcoin"
	cfg.RPCPassword = "bitcoin"
	cfg.RefreshInterval = time.Second
	cfg.RequestTimeout = 500 * time.Millisecond
	return cfg
}

func info(height, peers int64) *rpc.NodeInfo {
	return &rpc.NodeInfo{BlockHeight: height, PeerConnections: peers, MempoolSize: 7, Difficulty: 1.5}
}

func TestCheckOnce_Scenario(t *testing.T) {
	cache := status.NewCache(0)
	fetcher := new(MockFetcher)
	timeout := &rpc.FetchError{Kind: rpc.KindTimeout, Method: "getblockchaininfo"}

	fetcher.On("FetchStatus", mock.Anything).Return(info(927500, 42), nil).Once()
	fetcher.On("FetchStatus", mock.Anything).Return(nil, timeout).Once()
	fetcher.On("FetchStatus", mock.Anything).Return(info(927510, 40), nil).Once()

	c := NewChecker(testConfig(), fetcher, cache)

	assert.False(t, cache.Current().Healthy)
	assert.Zero(t, cache.Current().BlockHeight)

	_, ok := c.CheckOnce(context.Background())
	require.True(t, ok)
	rec := cache.Current()
	assert.True(t, rec.Healthy)
	assert.EqualValues(t, 927500, rec.BlockHeight)
	assert.EqualValues(t, 42, rec.PeerConnections)

	snap, ok := c.CheckOnce(context.Background())
	require.True(t, ok)
	rec = cache.Current()
	assert.False(t, rec.Healthy)
	assert.EqualValues(t, 927500, rec.BlockHeight)
	assert.EqualValues(t, 42, rec.PeerConnections)
	assert.Equal(t, 1, rec.StaleSinceFailures)
	assert.Equal(t, rpc.KindTimeout, snap.Diagnostics.LastErrorKind)

	c.CheckOnce(context.Background())
	rec = cache.Current()
	assert.True(t, rec.Healthy)
	assert.EqualValues(t, 927510, rec.BlockHeight)
	assert.Zero(t, rec.StaleSinceFailures)

	fetcher.AssertExpectations(t)
}

func TestCheckOnce_UsesClockForFetchedAt(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	fetcher := new(MockFetcher)
	fetcher.On("FetchStatus", mock.Anything).Return(info(1, 1), nil)

	cache := status.NewCache(0)
	NewChecker(testConfig(), fetcher, cache).
		WithClock(func() time.Time { return at }).
		CheckOnce(context.Background())

	assert.Equal(t, at, cache.Current().FetchedAt)
}

func TestCheckOnce_AbandonedOnShutdown(t *testing.T) {
	cache := status.NewCache(0)
	fetcher := new(MockFetcher)
	fetcher.On("FetchStatus", mock.Anything).Return(info(100, 3), nil).Once()

	c := NewChecker(testConfig(), fetcher, cache)
	c.CheckOnce(context.Background())
	before := cache.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	fetcher.On("FetchStatus", mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(nil, context.Canceled).Once()

	_, ok := c.CheckOnce(ctx)
	assert.False(t, ok)
	assert.Equal(t, before, cache.Snapshot(), "an abandoned cycle must not touch the cache")
	assert.True(t, cache.Current().Healthy)
}

func TestCheckOnce_NotifiesSubscribers(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("FetchStatus", mock.Anything).Return(info(5, 1), nil)

	c := NewChecker(testConfig(), fetcher, status.NewCache(0))
	var got []status.Snapshot
	c.OnPublish(func(s status.Snapshot) { got = append(got, s) })

	c.CheckOnce(context.Background())
	c.CheckOnce(context.Background())

	require.Len(t, got, 2)
	assert.EqualValues(t, 5, got[1].Record.BlockHeight)
	assert.EqualValues(t, 2, got[1].Diagnostics.TotalSuccesses)
}

// blockingFetcher holds every call until the test releases it.
type blockingFetcher struct {
	started  chan struct{}
	release  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (f *blockingFetcher) FetchStatus(ctx context.Context) (*rpc.NodeInfo, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	f.calls.Add(1)
	f.started <- struct{}{}

	select {
	case <-f.release:
		return info(int64(f.calls.Load()), 1), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRun_NoOverlappingFetches(t *testing.T) {
	fetcher := &blockingFetcher{started: make(chan struct{}), release: make(chan struct{})}
	ticker := newManualTicker()

	c := NewChecker(testConfig(), fetcher, status.NewCache(0)).
		WithTickerFactory(func(time.Duration) Ticker { return ticker })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	// first cycle starts immediately and overruns several periods
	<-fetcher.started
	for i := 0; i < 5; i++ {
		ticker.tick()
	}

	fetcher.release <- struct{}{}

	// the single buffered tick starts the next cycle only after the first ended
	<-fetcher.started
	fetcher.release <- struct{}{}

	select {
	case <-fetcher.started:
		t.Fatal("unexpected cycle without a tick")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	<-done

	assert.EqualValues(t, 1, fetcher.maxSeen.Load())
	assert.EqualValues(t, 2, fetcher.calls.Load())
	assert.True(t, ticker.stopped.Load())
}

func TestCheckOnce_ConcurrentCallersSerialized(t *testing.T) {
	fetcher := &blockingFetcher{started: make(chan struct{}, 10), release: make(chan struct{}, 10)}
	c := NewChecker(testConfig(), fetcher, status.NewCache(0))

	for i := 0; i < 4; i++ {
		fetcher.release <- struct{}{}
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.CheckOnce(context.Background())
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, fetcher.maxSeen.Load())
	assert.EqualValues(t, 4, fetcher.calls.Load())
}
