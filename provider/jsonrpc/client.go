// Package jsonrpc implements provider.Client over the line-delimited
// JSON-RPC 2.0 TCP protocol spoken by Electrum-style full-index servers:
// requests/responses correlated by numeric id, subscription push
// notifications identified by a ".subscribe" method suffix, reconnection
// with a bounded linear backoff, and per-connection request throttling.
package jsonrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/provider"
	"github.com/electrumgo/walletcore/walleterr"
)

const (
	methodHeadersSubscribe    = "blockchain.headers.subscribe"
	methodScriptHashSubscribe = "blockchain.scripthash.subscribe"
	methodGetHistory          = "blockchain.scripthash.get_history"
	methodGetMempool          = "blockchain.scripthash.get_mempool"
	methodGetBalance          = "blockchain.scripthash.get_balance"
	methodGetTransaction      = "blockchain.transaction.get"
	methodBroadcast           = "blockchain.transaction.broadcast"
	methodPing                = "server.ping"

	// maxReconnectAttempts and reconnectStep implement the 10-attempt,
	// 2s-linear-backoff reconnection policy: attempt N waits N*reconnectStep.
	maxReconnectAttempts = 10
	reconnectStep        = 2 * time.Second
)

// Config configures a Client.
type Config struct {
	Addr        string
	DialTimeout time.Duration

	// RateLimit bounds outbound requests per second; RateBurst is the
	// allowed burst above that rate.
	RateLimit rate.Limit
	RateBurst int
}

type pendingCall struct {
	result chan json.RawMessage
	err    chan error
}

// Client is the concrete Electrum-style JSON-RPC provider client.
type Client struct {
	cfg Config

	mu      sync.Mutex
	conn    net.Conn
	writer  *bufio.Writer
	nextID  int64
	pending map[int64]*pendingCall
	closed  bool

	limiter *rate.Limiter

	onScriptHashChange func(scriptHash, statusHash string)
	onNewBlock         func(header provider.BlockHeader)
}

// New builds a Client. Connect must be called before use.
func New(cfg Config) *Client {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 20
	}

	return &Client{
		cfg:     cfg,
		pending: make(map[int64]*pendingCall),
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
	}
}

// Connect dials the provider and performs the headers.subscribe handshake,
// retrying per the reconnection policy (10 attempts, linear backoff).
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := net.DialTimeout("tcp", c.cfg.Addr, c.cfg.DialTimeout)
		if err != nil {
			lastErr = err
			log.Warnf("connect attempt %d/%d to %s failed: %v", attempt, maxReconnectAttempts, c.cfg.Addr, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * reconnectStep):
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.writer = bufio.NewWriter(conn)
		c.closed = false
		c.mu.Unlock()

		go c.readLoop(conn)

		if _, err := c.call(ctx, methodHeadersSubscribe, nil); err != nil {
			c.mu.Lock()
			_ = c.conn.Close()
			c.mu.Unlock()
			lastErr = err
			continue
		}

		log.Infof("connected to provider %s", c.cfg.Addr)
		return nil
	}

	return walleterr.Wrap(walleterr.ProviderUnavailable, lastErr,
		"unable to reach provider after %d attempts", maxReconnectAttempts)
}

// Close tears down the session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) OnScriptHashChange(handler func(scriptHash, statusHash string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onScriptHashChange = handler
}

func (c *Client) OnNewBlock(handler func(header provider.BlockHeader)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNewBlock = handler
}

func (c *Client) SubscribeScriptHash(ctx context.Context, scriptHash string) (string, error) {
	raw, err := c.call(ctx, methodScriptHashSubscribe, []interface{}{scriptHash})
	if err != nil {
		return "", err
	}

	var status string
	if err := json.Unmarshal(raw, &status); err != nil {
		return "", err
	}
	return status, nil
}

func (c *Client) GetHistory(ctx context.Context, scriptHash string, cache bool) ([]provider.HistoryEntry, error) {
	raw, err := c.call(ctx, methodGetHistory, []interface{}{scriptHash})
	if err != nil {
		return nil, err
	}
	return decodeHistory(raw)
}

func (c *Client) GetMempool(ctx context.Context, scriptHash string) ([]provider.HistoryEntry, error) {
	raw, err := c.call(ctx, methodGetMempool, []interface{}{scriptHash})
	if err != nil {
		return nil, err
	}
	return decodeHistory(raw)
}

func decodeHistory(raw json.RawMessage) ([]provider.HistoryEntry, error) {
	var wire []struct {
		TxHash string `json:"tx_hash"`
		Height int64  `json:"height"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	out := make([]provider.HistoryEntry, len(wire))
	for i, w := range wire {
		out[i] = provider.HistoryEntry{Txid: w.TxHash, Height: w.Height}
	}
	return out, nil
}

func (c *Client) GetBalance(ctx context.Context, scriptHash string) (currency.Amount, currency.Amount, error) {
	raw, err := c.call(ctx, methodGetBalance, []interface{}{scriptHash})
	if err != nil {
		return 0, 0, err
	}

	var wire struct {
		Confirmed   int64 `json:"confirmed"`
		Unconfirmed int64 `json:"unconfirmed"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return 0, 0, err
	}
	return currency.Amount(wire.Confirmed), currency.Amount(wire.Unconfirmed), nil
}

func (c *Client) GetTransaction(ctx context.Context, txid string, cache bool) (*provider.Transaction, error) {
	raw, err := c.call(ctx, methodGetTransaction, []interface{}{txid, true})
	if err != nil {
		return nil, err
	}

	var wire struct {
		Txid          string `json:"txid"`
		Hex           string `json:"hex"`
		Confirmations int64  `json:"confirmations"`
		Vin           []struct {
			Txid    string `json:"txid"`
			Vout    uint32 `json:"vout"`
			Address string `json:"address"`
			Value   int64  `json:"value"`
		} `json:"vin"`
		Vout []struct {
			N       uint32 `json:"n"`
			Address string `json:"address"`
			Value   int64  `json:"value"`
		} `json:"vout"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}

	tx := &provider.Transaction{Txid: wire.Txid, Hex: wire.Hex}
	if wire.Confirmations > 0 {
		tx.Height = wire.Confirmations
	}
	for _, in := range wire.Vin {
		tx.Inputs = append(tx.Inputs, provider.TxInput{
			PrevTxid: in.Txid,
			PrevVout: in.Vout,
			Address:  in.Address,
			Value:    currency.Amount(in.Value),
		})
	}
	for _, out := range wire.Vout {
		tx.Outputs = append(tx.Outputs, provider.TxOutput{
			Index:   out.N,
			Address: out.Address,
			Value:   currency.Amount(out.Value),
		})
	}
	return tx, nil
}

func (c *Client) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	raw, err := c.call(ctx, methodBroadcast, []interface{}{rawTxHex})
	if err != nil {
		return "", walleterr.Wrap(walleterr.ProviderRpcError, err, "broadcast failed")
	}

	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return "", err
	}
	return txid, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, methodPing, nil)
	return err
}

// wireRequest is a JSON-RPC 2.0 request.
type wireRequest struct {
	ID     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// wireResponse covers both replies (ID != 0) and subscription push
// notifications (Method set, ID omitted).
type wireResponse struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.conn == nil || c.closed {
		c.mu.Unlock()
		return nil, walleterr.New(walleterr.ProviderUnavailable, "not connected")
	}
	c.nextID++
	id := c.nextID
	pc := &pendingCall{result: make(chan json.RawMessage, 1), err: make(chan error, 1)}
	c.pending[id] = pc

	req := wireRequest{ID: id, Method: method, Params: params}
	line, err := json.Marshal(req)
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}
	_, werr := c.writer.Write(append(line, '\n'))
	if werr == nil {
		werr = c.writer.Flush()
	}
	c.mu.Unlock()

	if werr != nil {
		return nil, walleterr.Wrap(walleterr.ProviderUnavailable, werr, "writing request")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-pc.err:
		return nil, err
	case result := <-pc.result:
		return result, nil
	}
}

func (c *Client) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		var resp wireResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			log.Errorf("decoding provider message: %v", err)
			continue
		}
		c.dispatch(resp)
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		log.Warnf("provider connection lost")
		c.failAllPending(fmt.Errorf("connection lost"))
	}
}

func (c *Client) dispatch(resp wireResponse) {
	switch {
	case resp.ID != 0:
		c.mu.Lock()
		pc, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if !ok {
			return
		}
		if resp.Error != nil {
			pc.err <- walleterr.New(walleterr.ProviderRpcError, "%s", resp.Error.Message)
			return
		}
		pc.result <- resp.Result

	case resp.Method == methodScriptHashSubscribe:
		var params []string
		if err := json.Unmarshal(resp.Params, &params); err != nil || len(params) < 2 {
			return
		}
		c.mu.Lock()
		handler := c.onScriptHashChange
		c.mu.Unlock()
		if handler != nil {
			handler(params[0], params[1])
		}

	case resp.Method == methodHeadersSubscribe:
		var params []struct {
			Height int64  `json:"height"`
			Hex    string `json:"hex"`
		}
		if err := json.Unmarshal(resp.Params, &params); err != nil || len(params) == 0 {
			return
		}
		c.mu.Lock()
		handler := c.onNewBlock
		c.mu.Unlock()
		if handler != nil {
			handler(provider.BlockHeader{Height: params[0].Height})
		}
	}
}

func (c *Client) failAllPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, pc := range c.pending {
		pc.err <- err
		delete(c.pending, id)
	}
}
