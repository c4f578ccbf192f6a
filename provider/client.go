// Package provider declares the contract for the external block/history
// provider: an Electrum-style JSON-RPC endpoint. Its wire framing,
// reconnection policy and caching are implementation concerns of the
// concrete client (see the jsonrpc subpackage); SyncManager and the rest
// of the wallet core depend only on this interface.
package provider

import (
	"context"

	"github.com/electrumgo/walletcore/currency"
)

// HistoryEntry is one entry returned by blockchain.scripthash.get_history
// or get_mempool: a txid and the height it was confirmed at, or 0 for a
// still-unconfirmed transaction.
type HistoryEntry struct {
	Txid   string
	Height int64
}

// TxInput is one input of a transaction as reported by the provider's
// verbose transaction.get, with the spent output's address and value
// resolved (the provider indexes by address, so this is given for free).
type TxInput struct {
	PrevTxid string
	PrevVout uint32
	Address  string
	Value    currency.Amount
}

// TxOutput is one output of a transaction.
type TxOutput struct {
	Index   uint32
	Address string
	Value   currency.Amount
}

// Transaction is the provider's verbose view of one transaction.
type Transaction struct {
	Txid   string
	Hex    string
	Height int64
	Inputs []TxInput
	Outputs []TxOutput
}

// BlockHeader is a notification payload from blockchain.headers.subscribe.
type BlockHeader struct {
	Height int64
	Hash   string
}

// Client is the contract SyncManager and TxBuilder depend on. A script
// hash is the provider's subscription/index key: sha256 of the output
// script, byte-reversed, hex-encoded (see keyderiver.Deriver.ScriptHash).
type Client interface {
	// Connect establishes the session, including the initial
	// headers.subscribe handshake.
	Connect(ctx context.Context) error

	// Close tears the session down.
	Close() error

	// SubscribeScriptHash subscribes to a script hash and returns its
	// current status hash (opaque; changes whenever history changes).
	SubscribeScriptHash(ctx context.Context, scriptHash string) (string, error)

	// GetHistory returns every confirmed-or-mempool transaction touching
	// scriptHash. cache permits a provider-side cached answer; sync's
	// per-path scan passes cache=true, while its change-notification path
	// uses GetMempool and fetches each transaction with cache=false.
	GetHistory(ctx context.Context, scriptHash string, cache bool) ([]HistoryEntry, error)

	// GetMempool returns only the unconfirmed transactions touching
	// scriptHash.
	GetMempool(ctx context.Context, scriptHash string) ([]HistoryEntry, error)

	// GetBalance returns the confirmed and unconfirmed balance the
	// provider computes for scriptHash, used only for cross-checking
	// (the wallet's own ledgers are authoritative).
	GetBalance(ctx context.Context, scriptHash string) (confirmed, unconfirmed currency.Amount, err error)

	// GetTransaction fetches the verbose transaction detail for txid.
	GetTransaction(ctx context.Context, txid string, cache bool) (*Transaction, error)

	// Broadcast submits rawTxHex and returns the resulting txid.
	Broadcast(ctx context.Context, rawTxHex string) (string, error)

	// Ping checks liveness.
	Ping(ctx context.Context) error

	// OnScriptHashChange registers the handler invoked whenever a
	// subscribed script hash's status changes.
	OnScriptHashChange(handler func(scriptHash, statusHash string))

	// OnNewBlock registers the handler invoked on every new block header.
	OnNewBlock(handler func(header BlockHeader))
}
