// Package walletstore is the pluggable key-value storage layer every other
// component persists through: HD sync cursors, address records, the live
// UTXO set, the balance and the watch rings. A "provider_cache" namespace
// name is reserved, but no package stores into it. Production code backs it with
// github.com/btcsuite/btcwallet/walletdb (the same bucket-based, MVCC store
// this module depends on); tests use the in-memory driver in
// memstore.go so no filesystem is touched.
package walletstore

// Entry is one key/value pair returned by KVStore.Entries.
type Entry struct {
	Key   []byte
	Value []byte
}

// KVStore is a single named sub-instance: get/set/delete/prefix-scan/clear,
// exactly the contract spec'd for the storage engine. Every component
// (AddressStore, UnspentStore, HdWallet's sync state, TotalBalance,
// AddressWatch) talks to one of these rather than to the backing engine
// directly.
type KVStore interface {
	Get(key []byte) ([]byte, bool, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Entries(prefix []byte) ([]Entry, error)
	Clear() error
}

// Store spawns named KVStore sub-instances ("hdwallet", "state", "address",
// "unspent", "provider_cache") backed by a single underlying engine.
type Store interface {
	Namespace(name string) (KVStore, error)
	Close() error
}

// Namespace names used across the module, kept together so every caller
// asks for storage under the same keys.
const (
	NamespaceHDWallet      = "hdwallet"
	NamespaceState         = "state"
	NamespaceAddress       = "address"
	NamespaceUnspent       = "unspent"
	NamespaceProviderCache = "provider_cache"
)
