package walletstore

import (
	"bytes"
	"sync"
)

// memStore is an in-memory Store used by tests throughout this module so
// sync/address/UTXO tests never touch the filesystem. It satisfies the
// Store/KVStore contract directly rather than the walletdb interfaces,
// since those are only exercised by the real bdb-backed implementation in
// boltstore.go.
type memStore struct {
	mu         sync.Mutex
	namespaces map[string]*memNamespace
}

// NewMemStore returns a fresh in-memory Store.
func NewMemStore() Store {
	return &memStore{namespaces: make(map[string]*memNamespace)}
}

func (s *memStore) Namespace(name string) (KVStore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[name]
	if !ok {
		ns = &memNamespace{data: make(map[string][]byte)}
		s.namespaces[name] = ns
	}
	return ns, nil
}

func (s *memStore) Close() error { return nil }

type memNamespace struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (n *memNamespace) Get(key []byte) ([]byte, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	v, ok := n.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (n *memNamespace) Set(key, value []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (n *memNamespace) Delete(key []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.data, string(key))
	return nil
}

func (n *memNamespace) Entries(prefix []byte) ([]Entry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var entries []Entry
	for k, v := range n.data {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		entries = append(entries, Entry{
			Key:   []byte(k),
			Value: append([]byte(nil), v...),
		})
	}
	return entries, nil
}

func (n *memNamespace) Clear() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.data = make(map[string][]byte)
	return nil
}
