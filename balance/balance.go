// Package balance maintains TotalBalance: the wallet-wide aggregate across
// the three lifecycle states, kept as a running total that processUtxo
// adjusts incrementally and that can be independently recomputed from
// AddressStore to check the additivity invariant.
package balance

import (
	"encoding/json"

	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/walletstore"
)

const balanceKey = "total"

// Balance is the three-tier aggregate.
type Balance struct {
	Mempool   currency.Amount `json:"mempool"`
	Pending   currency.Amount `json:"pending"`
	Confirmed currency.Amount `json:"confirmed"`
}

// Get returns b's amount for state.
func (b Balance) Get(state ledger.State) currency.Amount {
	switch state {
	case ledger.Mempool:
		return b.Mempool
	case ledger.Pending:
		return b.Pending
	default:
		return b.Confirmed
	}
}

func (b *Balance) adjust(state ledger.State, delta currency.Amount) {
	switch state {
	case ledger.Mempool:
		b.Mempool = b.Mempool.Add(delta)
	case ledger.Pending:
		b.Pending = b.Pending.Add(delta)
	case ledger.Confirmed:
		b.Confirmed = b.Confirmed.Add(delta)
	}
}

// Store persists the running TotalBalance.
type Store struct {
	ns walletstore.KVStore
}

// New opens (or creates) the state namespace in store.
func New(store walletstore.Store) (*Store, error) {
	ns, err := store.Namespace(walletstore.NamespaceState)
	if err != nil {
		return nil, err
	}
	return &Store{ns: ns}, nil
}

// Get returns the current balance.
func (s *Store) Get() (Balance, error) {
	raw, ok, err := s.ns.Get([]byte(balanceKey))
	if err != nil {
		return Balance{}, err
	}
	if !ok {
		return Balance{}, nil
	}

	var b Balance
	if err := json.Unmarshal(raw, &b); err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Adjust applies delta to state and persists the result. It is the
// incremental mutator processUtxo uses: once for a newly recorded ledger
// entry, and twice for a state change (reversing the old state, then
// applying the new one). Set and Clear overwrite the balance outright.
func (s *Store) Adjust(state ledger.State, delta currency.Amount) (Balance, error) {
	b, err := s.Get()
	if err != nil {
		return Balance{}, err
	}

	b.adjust(state, delta)

	raw, err := json.Marshal(b)
	if err != nil {
		return Balance{}, err
	}
	if err := s.ns.Set([]byte(balanceKey), raw); err != nil {
		return Balance{}, err
	}

	log.Debugf("balance %s adjusted by %v -> %v", state, delta, b.Get(state))
	return b, nil
}

// Set overwrites the stored balance outright, for example with the result
// of RecomputeFromAddresses to correct drift.
func (s *Store) Set(b Balance) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.ns.Set([]byte(balanceKey), raw)
}

// Clear resets the balance to zero. Used on a full SyncManager restart.
func (s *Store) Clear() error {
	return s.ns.Clear()
}

// RecomputeFromAddresses sums AddressRecord.Net(state) over every address
// in addrStore, independent of the running total. Property 2
// (TotalBalance.state == Σ AddressStore[a].net(state)) holds when this
// matches Get().
func RecomputeFromAddresses(addrStore *addressstore.Store) (Balance, error) {
	var b Balance

	err := addrStore.ForEachAddress(func(rec *addressstore.AddressRecord) error {
		for _, state := range ledger.States {
			b.adjust(state, rec.Net(state))
		}
		return nil
	})
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}
