// Package addresswatch tracks which script-hashes the wallet has
// subscribed to with the provider, in a bounded per-chain ring, and
// re-subscribes them all on reconnect or process resume.
package addresswatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/provider"
	"github.com/electrumgo/walletcore/walletstore"
)

// DefaultMaxPerChain is the default bound of the per-chain subscription
// ring (config key max_script_watch).
const DefaultMaxPerChain = 10

// Entry is one watched script-hash and the last status hash observed for
// it, used to detect whether a new-tx push actually changed anything.
type Entry struct {
	ScriptHash string
	StatusHash string
}

// Watch maintains the bounded, FIFO-evicted per-chain subscription rings
// and re-subscribes them against the provider on demand.
type Watch struct {
	ns     walletstore.KVStore
	client provider.Client
	max    int

	mu    sync.Mutex
	rings map[keyderiver.Chain][]Entry
}

// New builds a Watch backed by store's state namespace, maxPerChain
// bounding each chain's ring (0 uses DefaultMaxPerChain).
func New(store walletstore.Store, client provider.Client, maxPerChain int) (*Watch, error) {
	if maxPerChain <= 0 {
		maxPerChain = DefaultMaxPerChain
	}

	ns, err := store.Namespace(walletstore.NamespaceState)
	if err != nil {
		return nil, err
	}

	w := &Watch{
		ns:     ns,
		client: client,
		max:    maxPerChain,
		rings:  make(map[keyderiver.Chain][]Entry),
	}

	for _, chain := range []keyderiver.Chain{keyderiver.External, keyderiver.Internal} {
		ring, err := w.loadRing(chain)
		if err != nil {
			return nil, err
		}
		w.rings[chain] = ring
	}

	return w, nil
}

func ringKey(chain keyderiver.Chain) []byte {
	return []byte(fmt.Sprintf("watch/%s", chain))
}

func (w *Watch) loadRing(chain keyderiver.Chain) ([]Entry, error) {
	raw, ok, err := w.ns.Get(ringKey(chain))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var ring []Entry
	if err := json.Unmarshal(raw, &ring); err != nil {
		return nil, err
	}
	return ring, nil
}

func (w *Watch) saveRing(chain keyderiver.Chain, ring []Entry) error {
	raw, err := json.Marshal(ring)
	if err != nil {
		return err
	}
	return w.ns.Set(ringKey(chain), raw)
}

// Subscribe subscribes scriptHash on the provider and inserts it into
// chain's ring, evicting the oldest entry (FIFO) if already at capacity.
// Re-subscribing an already-watched script-hash only refreshes its status.
func (w *Watch) Subscribe(ctx context.Context, chain keyderiver.Chain, scriptHash string) error {
	status, err := w.client.SubscribeScriptHash(ctx, scriptHash)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	ring := w.rings[chain]
	for i, e := range ring {
		if e.ScriptHash == scriptHash {
			ring[i].StatusHash = status
			w.rings[chain] = ring
			return w.saveRing(chain, ring)
		}
	}

	ring = append(ring, Entry{ScriptHash: scriptHash, StatusHash: status})
	if len(ring) > w.max {
		ring = ring[len(ring)-w.max:]
	}
	w.rings[chain] = ring
	return w.saveRing(chain, ring)
}

// Resubscribe re-establishes every persisted subscription against the
// provider, refreshing each entry's status hash. Called after a
// reconnect, before SyncManager accepts new work.
func (w *Watch) Resubscribe(ctx context.Context) error {
	w.mu.Lock()
	snapshot := make(map[keyderiver.Chain][]Entry, len(w.rings))
	for chain, ring := range w.rings {
		snapshot[chain] = append([]Entry(nil), ring...)
	}
	w.mu.Unlock()

	for chain, ring := range snapshot {
		for _, e := range ring {
			if err := w.Subscribe(ctx, chain, e.ScriptHash); err != nil {
				return err
			}
		}
	}
	return nil
}

// Lookup finds the chain and entry watching scriptHash, if any.
func (w *Watch) Lookup(scriptHash string) (keyderiver.Chain, Entry, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for chain, ring := range w.rings {
		for _, e := range ring {
			if e.ScriptHash == scriptHash {
				return chain, e, true
			}
		}
	}
	return 0, Entry{}, false
}

// UpdateStatus records newStatus for scriptHash and reports whether it
// differs from the previously known value (the signal that history
// actually changed and must be re-fetched).
func (w *Watch) UpdateStatus(scriptHash, newStatus string) (changed bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for chain, ring := range w.rings {
		for i, e := range ring {
			if e.ScriptHash != scriptHash {
				continue
			}
			if e.StatusHash == newStatus {
				return false, nil
			}
			ring[i].StatusHash = newStatus
			w.rings[chain] = ring
			return true, w.saveRing(chain, ring)
		}
	}
	return false, nil
}

// DropConsumed removes an internal-chain entry once its change output is
// known spent; external-chain entries are never evicted this way since
// they may receive again.
func (w *Watch) DropConsumed(scriptHash string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ring := w.rings[keyderiver.Internal]
	for i, e := range ring {
		if e.ScriptHash != scriptHash {
			continue
		}
		ring = append(ring[:i], ring[i+1:]...)
		w.rings[keyderiver.Internal] = ring
		return w.saveRing(keyderiver.Internal, ring)
	}
	return nil
}

// Ring returns a snapshot of chain's current watch list, oldest first.
func (w *Watch) Ring(chain keyderiver.Chain) []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Entry(nil), w.rings[chain]...)
}
