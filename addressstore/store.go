package addressstore

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/walletstore"
)

const (
	addrPrefix  = "addr/"
	txPrefix    = "tx/"
	sentPrefix  = "sent/"
	orderKey    = "order"
)

// PageOptions controls GetTransactions pagination.
type PageOptions struct {
	Limit   int
	Offset  int
	Reverse bool
}

// Store is the persistent address ledger and transaction log.
type Store struct {
	ns walletstore.KVStore
}

// New opens (or creates) the address namespace in store.
func New(store walletstore.Store) (*Store, error) {
	ns, err := store.Namespace(walletstore.NamespaceAddress)
	if err != nil {
		return nil, err
	}
	return &Store{ns: ns}, nil
}

func addrKey(address string) []byte { return []byte(addrPrefix + address) }
func txKey(txid string) []byte      { return []byte(txPrefix + txid) }
func sentKey(txid string) []byte    { return []byte(sentPrefix + txid) }

// GetOrCreate returns the stored record for address, or a fresh zero
// record if none exists yet.
func (s *Store) GetOrCreate(address string) (*AddressRecord, error) {
	rec, ok, err := s.Get(address)
	if err != nil {
		return nil, err
	}
	if ok {
		return rec, nil
	}
	return &AddressRecord{Address: address}, nil
}

// MarkOwn ensures a record exists for address and stamps it with its
// derivation path, public key and script-hash, marking it as one of the
// wallet's own addresses. Idempotent: safe to call on every sighting.
func (s *Store) MarkOwn(address string, path keyderiver.Path, publicKey []byte, scriptHash string) (*AddressRecord, error) {
	rec, err := s.GetOrCreate(address)
	if err != nil {
		return nil, err
	}
	rec.Own = true
	rec.Path = path
	rec.PublicKey = publicKey
	rec.ScriptHash = scriptHash
	if err := s.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the stored record for address, if any.
func (s *Store) Get(address string) (*AddressRecord, bool, error) {
	raw, ok, err := s.ns.Get(addrKey(address))
	if err != nil || !ok {
		return nil, ok, err
	}

	var rec AddressRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

// ForEachAddress calls visit once for every persisted address record, in
// no particular order. Used by the total-balance recomputation and by
// sync's lookup of an address record by script hash.
func (s *Store) ForEachAddress(visit func(*AddressRecord) error) error {
	entries, err := s.ns.Entries([]byte(addrPrefix))
	if err != nil {
		return err
	}

	for _, e := range entries {
		var rec AddressRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return err
		}
		if err := visit(&rec); err != nil {
			return err
		}
	}
	return nil
}

// Put persists rec.
func (s *Store) Put(rec *AddressRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.ns.Set(addrKey(rec.Address), raw)
}

// PutTx persists entry and records its txid in the ordering index used by
// GetTransactions.
func (s *Store) PutTx(entry *TxEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.ns.Set(txKey(entry.Txid), raw); err != nil {
		return err
	}
	return s.appendOrder(entry.Txid)
}

// GetTx returns the stored TxEntry for txid, if any.
func (s *Store) GetTx(txid string) (*TxEntry, bool, error) {
	raw, ok, err := s.ns.Get(txKey(txid))
	if err != nil || !ok {
		return nil, ok, err
	}

	var entry TxEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

// AddSentTx retains builder-side metadata for a just-broadcast transaction.
func (s *Store) AddSentTx(meta *SentTxMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.ns.Set(sentKey(meta.Txid), raw)
}

// GetSentTx returns previously retained builder-side metadata for txid.
func (s *Store) GetSentTx(txid string) (*SentTxMeta, bool, error) {
	raw, ok, err := s.ns.Get(sentKey(txid))
	if err != nil || !ok {
		return nil, ok, err
	}

	var meta SentTxMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false, err
	}
	return &meta, true, nil
}

// DropConflicting removes every other still-unconfirmed (height==0)
// transaction entry that spends any outpoint in spent, keeping keepTxid.
// Called once a transaction reaches pending/confirmed state, so a second,
// never-mined copy of the same spend doesn't linger in GetTransactions.
func (s *Store) DropConflicting(keepTxid string, spent []ledger.Outpoint) error {
	if len(spent) == 0 {
		return nil
	}

	order, err := s.order()
	if err != nil {
		return err
	}

	spentSet := make(map[ledger.Outpoint]bool, len(spent))
	for _, op := range spent {
		spentSet[op] = true
	}

	kept := make([]string, 0, len(order))
	changed := false
	for _, txid := range order {
		if txid == keepTxid {
			kept = append(kept, txid)
			continue
		}

		entry, ok, err := s.GetTx(txid)
		if err != nil {
			return err
		}
		if ok && entry.Height == 0 && conflictsWith(entry.InputOutpoints, spentSet) {
			if err := s.ns.Delete(txKey(txid)); err != nil {
				return err
			}
			changed = true
			continue
		}
		kept = append(kept, txid)
	}

	if !changed {
		return nil
	}

	raw, err := json.Marshal(kept)
	if err != nil {
		return err
	}
	return s.ns.Set([]byte(orderKey), raw)
}

func conflictsWith(inputs []ledger.Outpoint, spent map[ledger.Outpoint]bool) bool {
	for _, op := range inputs {
		if spent[op] {
			return true
		}
	}
	return false
}

// TxidsInHeightRange returns every stored txid that is either still in the
// mempool (height==0) or was mined within [from, to], for the new-block
// rescan handler.
func (s *Store) TxidsInHeightRange(from, to int64) ([]string, error) {
	order, err := s.order()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, txid := range order {
		entry, ok, err := s.GetTx(txid)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if entry.Height == 0 || (entry.Height >= from && entry.Height <= to) {
			out = append(out, txid)
		}
	}
	return out, nil
}

// GetTransactions returns a paginated slice of transactions ordered by
// block height, descending by default (mempool entries sort as newest),
// ascending when Reverse is set.
func (s *Store) GetTransactions(opts PageOptions) ([]*TxEntry, error) {
	order, err := s.order()
	if err != nil {
		return nil, err
	}

	entries := make([]*TxEntry, 0, len(order))
	for _, txid := range order {
		entry, ok, err := s.GetTx(txid)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		ki, kj := sortKey(entries[i]), sortKey(entries[j])
		if opts.Reverse {
			return ki < kj
		}
		return ki > kj
	})

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]

	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// Clear wipes every address record, transaction, and sent-tx entry. Used
// when SyncManager performs a full restart.
func (s *Store) Clear() error {
	return s.ns.Clear()
}

func sortKey(e *TxEntry) int64 {
	if e.Height == 0 {
		return math.MaxInt64
	}
	return e.Height
}

func (s *Store) order() ([]string, error) {
	raw, ok, err := s.ns.Get([]byte(orderKey))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Store) appendOrder(txid string) error {
	order, err := s.order()
	if err != nil {
		return err
	}

	for _, existing := range order {
		if existing == txid {
			return nil
		}
	}

	order = append(order, txid)
	raw, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.ns.Set([]byte(orderKey), raw)
}
