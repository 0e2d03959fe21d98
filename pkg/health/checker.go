package health

import (
	"context"
	"sync"
	"time"

	"github.com/DashNode-Org/teranode-monitor/config"
	"github.com/DashNode-Org/teranode-monitor/pkg/metrics"
	"github.com/DashNode-Org/teranode-monitor/pkg/rpc"
	"github.com/DashNode-Org/teranode-monitor/pkg/status"
	"github.com/rs/zerolog/log"
)

// Checker is the refresh loop. It is the only writer of the status cache.
type Checker struct {
	cfg       *config.Config
	fetcher   rpc.StatusFetcher
	cache     *status.Cache
	newTicker TickerFactory
	now       func() time.Time

	// held for the whole fetch-and-publish cycle
	cycleMu sync.Mutex

	subMu       sync.RWMutex
	subscribers []func(status.Snapshot)
}

func NewChecker(cfg *config.Config, fetcher rpc.StatusFetcher, cache *status.Cache) *Checker {
	return &Checker{
		cfg:       cfg,
		fetcher:   fetcher,
		cache:     cache,
		newTicker: NewRealTicker,
		now:       time.Now,
	}
}

// WithTickerFactory allows injecting a manual ticker for testing
func (c *Checker) WithTickerFactory(f TickerFactory) *Checker {
	c.newTicker = f
	return c
}

func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// OnPublish registers fn to receive every snapshot the checker publishes.
// fn runs on the refresh goroutine and must not block.
func (c *Checker) OnPublish(fn func(status.Snapshot)) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

func (c *Checker) Start(ctx context.Context) {
	go c.Run(ctx)
}

// Run performs one cycle immediately and then one per tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	ticker := c.newTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	c.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Refresh loop stopped")
			return
		case <-ticker.C():
			c.CheckOnce(ctx)
		}
	}
}

// CheckOnce runs a single refresh cycle. It reports false when the cycle was
// abandoned because ctx ended during the fetch; the cache is then untouched.
func (c *Checker) CheckOnce(ctx context.Context) (status.Snapshot, bool) {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	start := time.Now()
	info, err := c.fetcher.FetchStatus(ctx)
	latency := time.Since(start)

	if ctx.Err() != nil {
		log.Debug().Err(err).Msg("Refresh cycle abandoned on shutdown")
		return c.cache.Snapshot(), false
	}

	var snap status.Snapshot
	if err != nil {
		kind := rpc.KindOf(err)
		snap = c.cache.RecordFailure(err, latency, c.now())
		metrics.ObserveFetch(string(kind), latency.Seconds())

		log.Warn().
			Err(err).
			Str("kind", string(kind)).
			Int("staleCycles", snap.Record.StaleSinceFailures).
			Dur("latency", latency).
			Msg("Node poll failed, serving last known status")
	} else {
		wasHealthy := c.cache.Current().Healthy
		snap = c.cache.RecordSuccess(info, latency, c.now())
		metrics.ObserveFetch("", latency.Seconds())

		if !wasHealthy {
			log.Info().Int64("block", snap.Record.BlockHeight).Msg("Node poll succeeded, status healthy")
		}
		log.Debug().
			Int64("block", snap.Record.BlockHeight).
			Int64("peers", snap.Record.PeerConnections).
			Int64("mempool", snap.Record.MempoolSize).
			Dur("latency", latency).
			Msg("Node poll passed")
	}

	rec := snap.Record
	metrics.SetHealthy(rec.Healthy, rec.StaleSinceFailures)
	metrics.SetNodeStatus(rec.BlockHeight, rec.PeerConnections, rec.MempoolSize, rec.Difficulty, rec.SyncProgress)

	c.publish(snap)
	return snap, true
}

func (c *Checker) publish(snap status.Snapshot) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, fn := range c.subscribers {
		fn(snap)
	}
}
