package unspentstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/walleterr"
	"github.com/electrumgo/walletcore/walletstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(walletstore.NewMemStore())
	require.NoError(t, err)
	return s
}

func addConfirmed(t *testing.T, s *Store, txid string, vout uint32, value currency.Amount) {
	t.Helper()
	require.NoError(t, s.Add(&Utxo{
		Outpoint: ledger.Outpoint{Txid: txid, Vout: vout},
		Value:    value,
		Address:  "bc1qtest",
		State:    ledger.Confirmed,
	}))
}

func TestAddAndList(t *testing.T) {
	s := newTestStore(t)
	addConfirmed(t, s, "tx1", 0, currency.Amount(10_000_000))
	addConfirmed(t, s, "tx2", 0, currency.Amount(10_000_000))

	utxos, err := s.List(ledger.Confirmed, false)
	require.NoError(t, err)
	require.Len(t, utxos, 2)

	total, err := s.TotalByState(ledger.Confirmed)
	require.NoError(t, err)
	require.Equal(t, currency.Amount(20_000_000), total)
}

func TestGetUtxoForAmountSucceeds(t *testing.T) {
	s := newTestStore(t)
	addConfirmed(t, s, "tx1", 0, currency.Amount(10_000_000))
	addConfirmed(t, s, "tx2", 0, currency.Amount(10_000_000))

	res, err := s.GetUtxoForAmount(currency.Amount(5_000_000), 10)
	require.NoError(t, err)
	require.Len(t, res.Utxos, 1)
	require.True(t, res.Total >= currency.Amount(5_000_000))

	// the reserved UTXO is now locked and invisible to further selection.
	unlocked, err := s.List(ledger.Confirmed, false)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
}

// S2: spending the entire 0.2 BTC UTXO set as amount=0.2 with fee-rate 10
// cannot succeed — fees must come from somewhere, so the request exceeds
// available funds.
func TestGetUtxoForAmountInsufficientFunds(t *testing.T) {
	s := newTestStore(t)
	addConfirmed(t, s, "tx1", 0, currency.Amount(10_000_000))
	addConfirmed(t, s, "tx2", 0, currency.Amount(10_000_000))

	_, err := s.GetUtxoForAmount(currency.Amount(20_000_000), 10)
	require.Error(t, err)
	require.True(t, walleterr.Is(err, walleterr.InsufficientFunds))
}

func TestGetUtxoForAmountFallsBackToPending(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(&Utxo{
		Outpoint: ledger.Outpoint{Txid: "pend", Vout: 0},
		Value:    currency.Amount(10_000_000),
		State:    ledger.Pending,
	}))

	res, err := s.GetUtxoForAmount(currency.Amount(5_000_000), 10)
	require.NoError(t, err)
	require.Len(t, res.Utxos, 1)
}

func TestGetUtxoForAmountNeverUsesMempoolOnly(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Add(&Utxo{
		Outpoint: ledger.Outpoint{Txid: "mp", Vout: 0},
		Value:    currency.Amount(10_000_000),
		State:    ledger.Mempool,
	}))

	_, err := s.GetUtxoForAmount(currency.Amount(5_000_000), 10)
	require.Error(t, err)
	require.True(t, walleterr.Is(err, walleterr.InsufficientFunds))
}

func TestUnlockRestoresVisibility(t *testing.T) {
	s := newTestStore(t)
	addConfirmed(t, s, "tx1", 0, currency.Amount(10_000_000))

	res, err := s.GetUtxoForAmount(currency.Amount(5_000_000), 10)
	require.NoError(t, err)

	visible, err := s.List(ledger.Confirmed, false)
	require.NoError(t, err)
	require.Empty(t, visible)

	require.NoError(t, s.Unlock(res))

	visible, err = s.List(ledger.Confirmed, false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
}

func TestMarkSpentThenProcessRemoves(t *testing.T) {
	s := newTestStore(t)
	op := ledger.Outpoint{Txid: "tx1", Vout: 0}
	addConfirmed(t, s, "tx1", 0, currency.Amount(10_000_000))

	s.MarkSpent(op)
	require.NoError(t, s.Process())

	_, ok, err := s.Get(op)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClear(t *testing.T) {
	s := newTestStore(t)
	addConfirmed(t, s, "tx1", 0, currency.Amount(1))
	require.NoError(t, s.Clear())

	utxos, err := s.List(ledger.Confirmed, true)
	require.NoError(t, err)
	require.Empty(t, utxos)
}
