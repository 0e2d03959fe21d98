package status

import (
	"time"

	"github.com/DashNode-Org/teranode-monitor/pkg/progress"
	"github.com/DashNode-Org/teranode-monitor/pkg/rpc"
)

// StatusRecord is an immutable snapshot of the node. A new record replaces
// the old one wholesale on every cycle; fields are never edited in place.
type StatusRecord struct {
	BlockHeight     int64    `json:"block_height"`
	PeerConnections int64    `json:"connections"`
	MempoolSize     int64    `json:"mempool_size"`
	Difficulty      float64  `json:"difficulty"`
	TargetHeight    int64    `json:"target_height"`
	SyncProgress    *float64 `json:"sync_progress,omitempty"`

	SyncPercentage       float64        `json:"sync_percentage"`
	BlocksRemaining      int64          `json:"blocks_remaining"`
	SyncState            string         `json:"sync_state"`
	MempoolBytes         int64          `json:"mempool_bytes"`
	Chain                string         `json:"chain"`
	BestBlockHash        string         `json:"best_block_hash"`
	VerificationProgress float64        `json:"verification_progress"`
	Version              int            `json:"version"`
	ProtocolVersion      int            `json:"protocol_version"`
	Peers                []rpc.PeerInfo `json:"peers"`

	FetchedAt          time.Time  `json:"fetched_at"`
	LastSuccessAt      *time.Time `json:"last_success_at,omitempty"`
	Healthy            bool       `json:"healthy"`
	StaleSinceFailures int        `json:"stale_since_failures"`
}

func initialRecord(targetHeight int64) StatusRecord {
	sync := progress.Analyze(progress.Input{TargetHeight: targetHeight})
	return StatusRecord{
		TargetHeight:    targetHeight,
		SyncProgress:    sync.Progress,
		SyncPercentage:  sync.Percentage,
		BlocksRemaining: sync.BlocksRemaining,
		SyncState:       sync.State,
		Peers:           []rpc.PeerInfo{},
	}
}

func recordFromNode(info *rpc.NodeInfo, targetHeight int64, at time.Time) StatusRecord {
	sync := progress.Analyze(progress.Input{
		BlockHeight:          info.BlockHeight,
		TargetHeight:         targetHeight,
		VerificationProgress: info.VerificationProgress,
	})

	peers := make([]rpc.PeerInfo, len(info.Peers))
	copy(peers, info.Peers)

	success := at
	return StatusRecord{
		BlockHeight:          info.BlockHeight,
		PeerConnections:      info.PeerConnections,
		MempoolSize:          info.MempoolSize,
		Difficulty:           info.Difficulty,
		TargetHeight:         targetHeight,
		SyncProgress:         sync.Progress,
		SyncPercentage:       sync.Percentage,
		BlocksRemaining:      sync.BlocksRemaining,
		SyncState:            sync.State,
		MempoolBytes:         info.MempoolBytes,
		Chain:                info.Chain,
		BestBlockHash:        info.BestBlockHash,
		VerificationProgress: info.VerificationProgress,
		Version:              info.Version,
		ProtocolVersion:      info.ProtocolVersion,
		Peers:                peers,
		FetchedAt:            at,
		LastSuccessAt:        &success,
		Healthy:              true,
		StaleSinceFailures:   0,
	}
}
