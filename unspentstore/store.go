package unspentstore

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/walletstore"
)

const utxoPrefix = "utxo/"

// Reservation is a locked subset of the UTXO set held by an in-flight send.
type Reservation struct {
	ID     string
	Utxos  []*Utxo
	Total  currency.Amount
	Change currency.Amount
	Fee    currency.Amount
}

// Store is the live UTXO set.
type Store struct {
	ns walletstore.KVStore

	mu           sync.Mutex
	pendingSpend map[ledger.Outpoint]bool

	// locked holds the outpoints currently reserved by an in-flight send.
	// It lives only in memory, never in the persisted record: a crash
	// mid-reservation must not leave a UTXO permanently unspendable, so
	// every reservation is implicitly released on restart.
	locked map[ledger.Outpoint]bool
}

// New opens (or creates) the unspent namespace in store.
func New(store walletstore.Store) (*Store, error) {
	ns, err := store.Namespace(walletstore.NamespaceUnspent)
	if err != nil {
		return nil, err
	}
	return &Store{
		ns:           ns,
		pendingSpend: make(map[ledger.Outpoint]bool),
		locked:       make(map[ledger.Outpoint]bool),
	}, nil
}

func utxoKey(op ledger.Outpoint) []byte {
	return []byte(utxoPrefix + op.String())
}

// Add records a newly observed UTXO, or overwrites the record at the same
// outpoint (e.g. a state promotion carries the same Outpoint key).
func (s *Store) Add(u *Utxo) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	log.Debugf("adding utxo %s value=%v", u.Outpoint, u.Value)
	return s.ns.Set(utxoKey(u.Outpoint), raw)
}

// Get returns the stored UTXO at op, if any.
func (s *Store) Get(op ledger.Outpoint) (*Utxo, bool, error) {
	raw, ok, err := s.ns.Get(utxoKey(op))
	if err != nil || !ok {
		return nil, ok, err
	}

	var u Utxo
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	u.Locked = s.locked[op]
	s.mu.Unlock()

	return &u, true, nil
}

// MarkSpent records that op's spending input has been observed; the UTXO
// itself is removed on the next Process call. Splitting observation from
// removal lets an input be seen before or after its matching output
// without requiring a strict arrival order.
func (s *Store) MarkSpent(op ledger.Outpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSpend[op] = true
}

// Process reconciles the store: every outpoint marked spent via MarkSpent
// is removed if present.
func (s *Store) Process() error {
	s.mu.Lock()
	spent := s.pendingSpend
	s.pendingSpend = make(map[ledger.Outpoint]bool)
	s.mu.Unlock()

	for op := range spent {
		if err := s.ns.Delete(utxoKey(op)); err != nil {
			return err
		}
		log.Debugf("removed spent utxo %s", op)
	}
	return nil
}

// List returns every UTXO currently at the given state, excluding locked
// ones unless includeLocked is set.
func (s *Store) List(state ledger.State, includeLocked bool) ([]*Utxo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(state, includeLocked)
}

// list is List without taking s.mu; callers that already hold it (e.g.
// GetUtxoForAmount) must call this instead of List to avoid deadlocking on
// the non-reentrant mutex.
func (s *Store) list(state ledger.State, includeLocked bool) ([]*Utxo, error) {
	entries, err := s.ns.Entries([]byte(utxoPrefix))
	if err != nil {
		return nil, err
	}

	var out []*Utxo
	for _, e := range entries {
		var u Utxo
		if err := json.Unmarshal(e.Value, &u); err != nil {
			return nil, err
		}
		if u.State != state {
			continue
		}
		u.Locked = s.locked[u.Outpoint]
		if u.Locked && !includeLocked {
			continue
		}
		out = append(out, &u)
	}
	return out, nil
}

// TotalByState sums the value of every UTXO at state, locked or not.
func (s *Store) TotalByState(state ledger.State) (currency.Amount, error) {
	utxos, err := s.List(state, true)
	if err != nil {
		return 0, err
	}

	var total currency.Amount
	for _, u := range utxos {
		total = total.Add(u.Value)
	}
	return total, nil
}

// GetUtxoForAmount reserves (locks) enough confirmed UTXOs — falling back
// to pending if confirmed funds alone are insufficient, never touching
// mempool-only funds — to cover value plus the fee estimated for the
// selected input set at feeRateSatPerVByte.
func (s *Store) GetUtxoForAmount(value currency.Amount, feeRateSatPerVByte int64) (*Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	confirmed, err := s.list(ledger.Confirmed, false)
	if err != nil {
		return nil, err
	}
	pending, err := s.list(ledger.Pending, false)
	if err != nil {
		return nil, err
	}

	selected, change, fee, err := selectForAmount(value, feeRateSatPerVByte, confirmed, pending)
	if err != nil {
		return nil, err
	}

	var total currency.Amount
	for _, u := range selected {
		total = total.Add(u.Value)
		u.Locked = true
		s.locked[u.Outpoint] = true
	}

	id, err := randomID()
	if err != nil {
		return nil, err
	}

	log.Infof("reserved %d utxos totalling %v for amount %v (fee %v, change %v)",
		len(selected), total, value, fee, change)

	return &Reservation{
		ID:     id,
		Utxos:  selected,
		Total:  total,
		Change: change,
		Fee:    fee,
	}, nil
}

// Unlock releases every UTXO held by a reservation, e.g. after a failed
// broadcast.
func (s *Store) Unlock(r *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range r.Utxos {
		u.Locked = false
		delete(s.locked, u.Outpoint)
	}
	log.Infof("unlocked reservation %s", r.ID)
	return nil
}

// Clear wipes the entire UTXO set. Used on a full SyncManager restart.
func (s *Store) Clear() error {
	return s.ns.Clear()
}

func randomID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
