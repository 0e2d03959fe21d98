package status

import (
	"sync/atomic"
	"time"

	"github.com/DashNode-Org/teranode-monitor/pkg/rpc"
)

// Diagnostics describe the refresh loop itself rather than the node.
type Diagnostics struct {
	LastErrorKind  rpc.ErrorKind `json:"last_error_kind,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	LastErrorAt    *time.Time    `json:"last_error_at,omitempty"`
	TotalSuccesses int64         `json:"total_successes"`
	TotalFailures  int64         `json:"total_failures"`
	FetchLatency   LatencyStats  `json:"fetch_latency"`
}

type Snapshot struct {
	Record      StatusRecord `json:"record"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}

// Cache publishes snapshots through an atomic pointer swap. Readers never
// block and never see a half-written record. There must be a single writer
// calling RecordSuccess and RecordFailure.
type Cache struct {
	targetHeight int64
	current      atomic.Pointer[Snapshot]
}

func NewCache(targetHeight int64) *Cache {
	c := &Cache{targetHeight: targetHeight}
	c.current.Store(&Snapshot{Record: initialRecord(targetHeight)})
	return c
}

// Current returns the latest status record.
func (c *Cache) Current() StatusRecord {
	return c.current.Load().Record
}

// Snapshot returns the latest record together with its diagnostics.
func (c *Cache) Snapshot() Snapshot {
	return *c.current.Load()
}

// RecordSuccess replaces the record wholesale with one built from info.
func (c *Cache) RecordSuccess(info *rpc.NodeInfo, latency time.Duration, at time.Time) Snapshot {
	prev := c.current.Load()

	next := &Snapshot{
		Record:      recordFromNode(info, c.targetHeight, at),
		Diagnostics: prev.Diagnostics,
	}
	next.Diagnostics.TotalSuccesses++
	next.Diagnostics.FetchLatency = prev.Diagnostics.FetchLatency.withSample(latency)

	c.current.Store(next)
	return *next
}

// RecordFailure keeps the last known good values and only marks the record
// unhealthy, bumps its fetch time and its consecutive failure count.
func (c *Cache) RecordFailure(err error, latency time.Duration, at time.Time) Snapshot {
	prev := c.current.Load()

	next := &Snapshot{
		Record:      prev.Record,
		Diagnostics: prev.Diagnostics,
	}
	next.Record.Healthy = false
	next.Record.FetchedAt = at
	next.Record.StaleSinceFailures = prev.Record.StaleSinceFailures + 1

	failedAt := at
	next.Diagnostics.LastErrorKind = rpc.KindOf(err)
	if err != nil {
		next.Diagnostics.LastError = err.Error()
	}
	next.Diagnostics.LastErrorAt = &failedAt
	next.Diagnostics.TotalFailures++
	next.Diagnostics.FetchLatency = prev.Diagnostics.FetchLatency.withSample(latency)

	c.current.Store(next)
	return *next
}
