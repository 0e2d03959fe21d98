package rpc

// Reply shapes for the bitcoin-style RPC methods we call. Required fields
// are pointers so a missing key can be told apart from a zero value.

type BlockchainInfo struct {
	Chain                string   `json:"chain"`
	Blocks               *int64   `json:"blocks"`
	BestBlockHash        string   `json:"bestblockhash"`
	Difficulty           *float64 `json:"difficulty"`
	VerificationProgress float64  `json:"verificationprogress"`
}

type Info struct {
	Version         int    `json:"version"`
	ProtocolVersion int    `json:"protocolversion"`
	Connections     *int64 `json:"connections"`
}

type MempoolInfo struct {
	Size  *int64 `json:"size"`
	Bytes int64  `json:"bytes"`
}

type PeerInfo struct {
	Addr         string `json:"addr"`
	SubVer       string `json:"subver"`
	SyncedBlocks int64  `json:"synced_blocks"`
}

// NodeInfo is the normalized result of one fetch cycle.
type NodeInfo struct {
	BlockHeight          int64
	PeerConnections      int64
	MempoolSize          int64
	MempoolBytes         int64
	Difficulty           float64
	Chain                string
	BestBlockHash        string
	VerificationProgress float64
	Version              int
	ProtocolVersion      int
	Peers                []PeerInfo
}
