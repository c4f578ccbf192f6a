package balance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/walletstore"
)

func TestAdjustAccumulates(t *testing.T) {
	store := walletstore.NewMemStore()
	s, err := New(store)
	require.NoError(t, err)

	_, err = s.Adjust(ledger.Mempool, currency.Amount(20_000_000))
	require.NoError(t, err)

	b, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, currency.Amount(20_000_000), b.Mempool)

	_, err = s.Adjust(ledger.Mempool, currency.Amount(-20_000_000))
	require.NoError(t, err)
	_, err = s.Adjust(ledger.Pending, currency.Amount(20_000_000))
	require.NoError(t, err)

	b, err = s.Get()
	require.NoError(t, err)
	require.Equal(t, currency.Amount(0), b.Mempool)
	require.Equal(t, currency.Amount(20_000_000), b.Pending)
}

func TestRecomputeFromAddressesMatchesRunningTotal(t *testing.T) {
	store := walletstore.NewMemStore()
	s, err := New(store)
	require.NoError(t, err)
	addrStore, err := addressstore.New(store)
	require.NoError(t, err)

	rec, err := addrStore.GetOrCreate("bc1qone")
	require.NoError(t, err)
	op := ledger.Outpoint{Txid: "tx1", Vout: 0}
	rec.AddEntry(addressstore.Out, ledger.Confirmed, op, currency.Amount(10_000_000))
	require.NoError(t, addrStore.Put(rec))

	_, err = s.Adjust(ledger.Confirmed, currency.Amount(10_000_000))
	require.NoError(t, err)

	running, err := s.Get()
	require.NoError(t, err)

	recomputed, err := RecomputeFromAddresses(addrStore)
	require.NoError(t, err)

	require.Equal(t, running, recomputed)
}

func TestClear(t *testing.T) {
	store := walletstore.NewMemStore()
	s, err := New(store)
	require.NoError(t, err)

	_, err = s.Adjust(ledger.Confirmed, currency.Amount(1))
	require.NoError(t, err)
	require.NoError(t, s.Clear())

	b, err := s.Get()
	require.NoError(t, err)
	require.Equal(t, Balance{}, b)
}
