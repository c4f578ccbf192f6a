package walletstore

import (
	"bytes"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"

	"github.com/electrumgo/walletcore/walleterr"
)

// boltDBType is the walletdb driver name registered by the bdb backend
// package, imported above for its side-effecting driver registration.
const boltDBType = "bdb"

// noReset is passed to View/Update calls that never need to retry after a
// write-conflict; none of this store's operations are retried internally.
func noReset() {}

// boltStore is the production Store, backed by a single walletdb.DB file
// holding one top-level bucket per namespace.
type boltStore struct {
	db walletdb.DB
}

// OpenFileStore opens (creating if absent) a walletdb-backed store at
// dbPath, using the bdb (bbolt-derived) driver this module already
// depends on.
func OpenFileStore(dbPath string, noFreelistSync bool) (Store, error) {
	db, err := walletdb.Open(boltDBType, dbPath, noFreelistSync)
	if err != nil {
		db, err = walletdb.Create(boltDBType, dbPath, noFreelistSync)
		if err != nil {
			return nil, walleterr.Wrap(walleterr.NotReady, err, "opening wallet store at %s", dbPath)
		}
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Namespace(name string) (KVStore, error) {
	bucketName := []byte(name)
	err := s.db.Update(func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(bucketName)
		return err
	}, noReset)
	if err != nil {
		return nil, err
	}
	return &boltNamespace{db: s.db, bucket: bucketName}, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

// boltNamespace is one named sub-instance, implemented as a top-level
// bucket in the shared walletdb.DB.
type boltNamespace struct {
	db     walletdb.DB
	bucket []byte
}

func (n *boltNamespace) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := n.db.View(func(tx walletdb.ReadTx) error {
		b := tx.ReadBucket(n.bucket)
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v == nil {
			return nil
		}
		found = true
		value = append([]byte(nil), v...)
		return nil
	}, noReset)
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (n *boltNamespace) Set(key, value []byte) error {
	return n.db.Update(func(tx walletdb.ReadWriteTx) error {
		b, err := tx.CreateTopLevelBucket(n.bucket)
		if err != nil {
			return err
		}
		return b.Put(key, value)
	}, noReset)
}

func (n *boltNamespace) Delete(key []byte) error {
	return n.db.Update(func(tx walletdb.ReadWriteTx) error {
		b := tx.ReadWriteBucket(n.bucket)
		if b == nil {
			return nil
		}
		return b.Delete(key)
	}, noReset)
}

func (n *boltNamespace) Entries(prefix []byte) ([]Entry, error) {
	var entries []Entry

	err := n.db.View(func(tx walletdb.ReadTx) error {
		b := tx.ReadBucket(n.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if !bytes.HasPrefix(k, prefix) {
				return nil
			}
			entries = append(entries, Entry{
				Key:   append([]byte(nil), k...),
				Value: append([]byte(nil), v...),
			})
			return nil
		})
	}, noReset)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (n *boltNamespace) Clear() error {
	return n.db.Update(func(tx walletdb.ReadWriteTx) error {
		if err := tx.DeleteTopLevelBucket(n.bucket); err != nil && err != walletdb.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateTopLevelBucket(n.bucket)
		return err
	}, noReset)
}
