package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	requestID       = "monitor"
	maxResponseSize = 8 << 20
)

type Credentials struct {
	User     string
	Password string
}

type Client struct {
	url      string
	creds    Credentials
	timeout  time.Duration
	maxPeers int
	client   *http.Client
}

type JSONRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type JSONRPCResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *JSONRPCError   `json:"error,omitempty"`
	ID     interface{}     `json:"id"`
}

type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewClient(url string, creds Credentials, timeout time.Duration) *Client {
	return &Client{
		url:      url,
		creds:    creds,
		timeout:  timeout,
		maxPeers: 10,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// WithMaxPeers caps the number of peer summaries kept per fetch.
func (c *Client) WithMaxPeers(n int) *Client {
	c.maxPeers = n
	return c
}

// Call performs a single JSON-RPC request. Every failure is a *FetchError.
func (c *Client) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if params == nil {
		params = []interface{}{}
	}
	reqBody := JSONRPCRequest{
		JSONRPC: "1.0",
		ID:      requestID,
		Method:  method,
		Params:  params,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, protocolError(method, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &FetchError{Kind: KindUnreachable, Method: method, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.creds.User, c.creds.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &FetchError{Kind: KindUnauthorized, Method: method, Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransportError(method, ctx.Err())
		}
		return nil, classifyTransportError(method, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode/100 != 2 {
		fe := &FetchError{Kind: KindRemote, Method: method, Code: resp.StatusCode}
		// bitcoind-style nodes send the RPC error object along with a 500
		var rpcResp JSONRPCResponse
		if json.Unmarshal(raw, &rpcResp) == nil && rpcResp.Error != nil {
			fe.Err = fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
		}
		return nil, fe
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, protocolError(method, fmt.Errorf("decode response: %w", err))
	}

	if rpcResp.Error != nil {
		return nil, &FetchError{
			Kind:   KindRemote,
			Method: method,
			Code:   rpcResp.Error.Code,
			Err:    errors.New(rpcResp.Error.Message),
		}
	}

	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return nil, protocolError(method, errors.New("missing result"))
	}

	return rpcResp.Result, nil
}

func (c *Client) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	const method = "getblockchaininfo"
	var info BlockchainInfo
	if err := c.callInto(ctx, method, &info); err != nil {
		return nil, err
	}
	if info.Blocks == nil {
		return nil, protocolError(method, errors.New("missing field blocks"))
	}
	if info.Difficulty == nil {
		return nil, protocolError(method, errors.New("missing field difficulty"))
	}
	if *info.Blocks < 0 || *info.Difficulty < 0 {
		return nil, protocolError(method, errors.New("negative blocks or difficulty"))
	}
	return &info, nil
}

func (c *Client) GetInfo(ctx context.Context) (*Info, error) {
	const method = "getinfo"
	var info Info
	if err := c.callInto(ctx, method, &info); err != nil {
		return nil, err
	}
	if info.Connections == nil {
		return nil, protocolError(method, errors.New("missing field connections"))
	}
	if *info.Connections < 0 {
		return nil, protocolError(method, errors.New("negative connections"))
	}
	return &info, nil
}

func (c *Client) GetMempoolInfo(ctx context.Context) (*MempoolInfo, error) {
	const method = "getmempoolinfo"
	var info MempoolInfo
	if err := c.callInto(ctx, method, &info); err != nil {
		return nil, err
	}
	if info.Size == nil {
		return nil, protocolError(method, errors.New("missing field size"))
	}
	if *info.Size < 0 {
		return nil, protocolError(method, errors.New("negative size"))
	}
	return &info, nil
}

func (c *Client) GetPeerInfo(ctx context.Context) ([]PeerInfo, error) {
	var peers []PeerInfo
	if err := c.callInto(ctx, "getpeerinfo", &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// FetchStatus runs one complete cycle against the node, bounded by the
// client timeout. All four calls must succeed or the cycle fails.
func (c *Client) FetchStatus(ctx context.Context) (*NodeInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chain, err := c.GetBlockchainInfo(ctx)
	if err != nil {
		return nil, err
	}
	info, err := c.GetInfo(ctx)
	if err != nil {
		return nil, err
	}
	mempool, err := c.GetMempoolInfo(ctx)
	if err != nil {
		return nil, err
	}
	peers, err := c.GetPeerInfo(ctx)
	if err != nil {
		return nil, err
	}

	if c.maxPeers >= 0 && len(peers) > c.maxPeers {
		peers = peers[:c.maxPeers]
	}

	return &NodeInfo{
		BlockHeight:          *chain.Blocks,
		PeerConnections:      *info.Connections,
		MempoolSize:          *mempool.Size,
		MempoolBytes:         mempool.Bytes,
		Difficulty:           *chain.Difficulty,
		Chain:                chain.Chain,
		BestBlockHash:        chain.BestBlockHash,
		VerificationProgress: chain.VerificationProgress,
		Version:              info.Version,
		ProtocolVersion:      info.ProtocolVersion,
		Peers:                peers,
	}, nil
}

func (c *Client) callInto(ctx context.Context, method string, dst interface{}) error {
	res, err := c.Call(ctx, method)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res, dst); err != nil {
		return protocolError(method, fmt.Errorf("unmarshal result: %w", err))
	}
	return nil
}
