package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/electrumgo/walletcore/balance"
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/hdwallet"
	"github.com/electrumgo/walletcore/keyderiver"
)

func TestObserveBalanceSetsGauges(t *testing.T) {
	c := New()

	c.ObserveBalance(balance.Balance{
		Mempool:   currency.Amount(1000),
		Pending:   currency.Amount(2000),
		Confirmed: currency.Amount(3000),
	})

	require.Equal(t, float64(1000), testutil.ToFloat64(c.balanceMempool))
	require.Equal(t, float64(2000), testutil.ToFloat64(c.balancePending))
	require.Equal(t, float64(3000), testutil.ToFloat64(c.balanceConfirmed))
}

func TestOnSyncedPathIncrementsCounters(t *testing.T) {
	c := New()

	c.OnSyncedPath(keyderiver.External, keyderiver.Path{}, true, hdwallet.SyncStateSnapshot{})

	require.Equal(t, float64(1), testutil.ToFloat64(c.syncedPaths.WithLabelValues("external")))
	require.Equal(t, float64(1), testutil.ToFloat64(c.addressesScanned.WithLabelValues("external", "true")))
}

func TestIncReconnect(t *testing.T) {
	c := New()
	c.IncReconnect()
	c.IncReconnect()
	require.Equal(t, float64(2), testutil.ToFloat64(c.reconnects))
}
