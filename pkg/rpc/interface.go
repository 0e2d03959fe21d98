package rpc

import "context"

type RPCClient interface {
	GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error)
	GetInfo(ctx context.Context) (*Info, error)
	GetMempoolInfo(ctx context.Context) (*MempoolInfo, error)
	GetPeerInfo(ctx context.Context) ([]PeerInfo, error)
}

// StatusFetcher is what the refresh loop depends on.
type StatusFetcher interface {
	FetchStatus(ctx context.Context) (*NodeInfo, error)
}

var (
	_ RPCClient     = (*Client)(nil)
	_ StatusFetcher = (*Client)(nil)
)
