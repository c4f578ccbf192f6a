package addressstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/walletstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(walletstore.NewMemStore())
	require.NoError(t, err)
	return s
}

func TestGetOrCreateFreshRecord(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.GetOrCreate("bc1qexample")
	require.NoError(t, err)
	require.Equal(t, "bc1qexample", rec.Address)
	require.False(t, rec.HasTx)
}

func TestAddressRecordLedgerIdempotence(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.GetOrCreate("bc1qexample")
	require.NoError(t, err)

	op := ledger.Outpoint{Txid: "abc", Vout: 0}
	require.False(t, rec.HasEntry(Out, ledger.Mempool, op))

	rec.AddEntry(Out, ledger.Mempool, op, currency.Amount(100_000))
	require.True(t, rec.HasEntry(Out, ledger.Mempool, op))
	require.Equal(t, currency.Amount(100_000), rec.Net(ledger.Mempool))

	require.NoError(t, s.Put(rec))

	loaded, ok, err := s.Get("bc1qexample")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.HasEntry(Out, ledger.Mempool, op))
	require.Equal(t, currency.Amount(100_000), loaded.Net(ledger.Mempool))
}

func TestGetTransactionsOrdering(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.PutTx(&TxEntry{Txid: "t1", Height: 100}))
	require.NoError(t, s.PutTx(&TxEntry{Txid: "t2", Height: 50}))
	require.NoError(t, s.PutTx(&TxEntry{Txid: "t3", Height: 0})) // mempool

	entries, err := s.GetTransactions(PageOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "t3", entries[0].Txid) // mempool sorts newest
	require.Equal(t, "t1", entries[1].Txid)
	require.Equal(t, "t2", entries[2].Txid)

	rev, err := s.GetTransactions(PageOptions{Reverse: true})
	require.NoError(t, err)
	require.Equal(t, "t2", rev[0].Txid)
	require.Equal(t, "t1", rev[1].Txid)
	require.Equal(t, "t3", rev[2].Txid)
}

func TestGetTransactionsPagination(t *testing.T) {
	s := newTestStore(t)
	for i, h := range []int64{10, 20, 30, 40} {
		require.NoError(t, s.PutTx(&TxEntry{Txid: string(rune('a' + i)), Height: h}))
	}

	page, err := s.GetTransactions(PageOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, int64(30), page[0].Height)
	require.Equal(t, int64(20), page[1].Height)
}

func TestTxidsInHeightRange(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutTx(&TxEntry{Txid: "mempool-tx", Height: 0}))
	require.NoError(t, s.PutTx(&TxEntry{Txid: "in-range", Height: 105}))
	require.NoError(t, s.PutTx(&TxEntry{Txid: "out-of-range", Height: 1}))

	txids, err := s.TxidsInHeightRange(100, 110)
	require.NoError(t, err)
	require.Contains(t, txids, "mempool-tx")
	require.Contains(t, txids, "in-range")
	require.NotContains(t, txids, "out-of-range")
}

func TestSentTxMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)
	meta := &SentTxMeta{Txid: "abc", ChangeAddress: "bc1qchange", ChangeAmount: currency.Amount(500)}
	require.NoError(t, s.AddSentTx(meta))

	got, ok, err := s.GetSentTx("abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, meta.ChangeAddress, got.ChangeAddress)
}

func TestClearWipesEverything(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PutTx(&TxEntry{Txid: "t1", Height: 1}))

	rec, err := s.GetOrCreate("bc1qexample")
	require.NoError(t, err)
	require.NoError(t, s.Put(rec))

	require.NoError(t, s.Clear())

	_, ok, err := s.GetTx("t1")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.Get("bc1qexample")
	require.NoError(t, err)
	require.False(t, ok)
}
