package hdwallet

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/walletstore"
)

const testSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

func newTestWallet(t *testing.T) (*Wallet, walletstore.Store) {
	t.Helper()

	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)

	deriver, err := keyderiver.New(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	store := walletstore.NewMemStore()
	coinType := keyderiver.CoinType(&chaincfg.MainNetParams)

	w, err := New(deriver, store, coinType, 3)
	require.NoError(t, err)
	return w, store
}

func TestGetNewAddressAdvances(t *testing.T) {
	w, _ := newTestWallet(t)

	a0, err := w.GetNewAddress(keyderiver.External)
	require.NoError(t, err)
	require.Equal(t, uint32(0), a0.Path.Index)

	a1, err := w.GetNewAddress(keyderiver.External)
	require.NoError(t, err)
	require.Equal(t, uint32(1), a1.Path.Index)
	require.NotEqual(t, a0.Address, a1.Address)
}

func TestForEachAccountGapLimit(t *testing.T) {
	w, _ := newTestWallet(t)

	var visited []uint32
	err := w.ForEachAccount(context.Background(), func(path keyderiver.Path) (Signal, error) {
		if path.Chain == keyderiver.External {
			visited = append(visited, path.Index)
		}
		return SignalNoTx, nil
	})
	require.NoError(t, err)

	// gap limit of 3: indices 0,1,2 visited then scan stops.
	require.Equal(t, []uint32{0, 1, 2}, visited)
}

func TestForEachAccountMonotonic(t *testing.T) {
	w, _ := newTestWallet(t)

	var indices []uint32
	err := w.ForEachAccount(context.Background(), func(path keyderiver.Path) (Signal, error) {
		if path.Chain != keyderiver.External {
			return SignalNoTx, nil
		}
		indices = append(indices, path.Index)
		if path.Index == 0 {
			return SignalHasTx, nil
		}
		return SignalNoTx, nil
	})
	require.NoError(t, err)

	for i := 1; i < len(indices); i++ {
		require.Equal(t, indices[i-1]+1, indices[i])
	}
}

func TestReuseGuardSurvivesFreshInstance(t *testing.T) {
	w, store := newTestWallet(t)

	err := w.ForEachAccount(context.Background(), func(path keyderiver.Path) (Signal, error) {
		if path.Chain == keyderiver.External && path.Index == 2 {
			return SignalHasTx, nil
		}
		return SignalNoTx, nil
	})
	require.NoError(t, err)

	seed, _ := hex.DecodeString(testSeedHex)
	deriver, err := keyderiver.New(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	fresh, err := New(deriver, store, keyderiver.CoinType(&chaincfg.MainNetParams), 3)
	require.NoError(t, err)

	addr, err := fresh.GetNewAddress(keyderiver.External)
	require.NoError(t, err)
	require.Equal(t, uint32(3), addr.Path.Index)
}

func TestGetLastExtPath(t *testing.T) {
	w, _ := newTestWallet(t)

	_, ok, err := w.GetLastExtPath()
	require.NoError(t, err)
	require.False(t, ok)

	err = w.ForEachAccount(context.Background(), func(path keyderiver.Path) (Signal, error) {
		if path.Chain == keyderiver.External && path.Index == 1 {
			return SignalHasTx, nil
		}
		return SignalNoTx, nil
	})
	require.NoError(t, err)

	path, ok, err := w.GetLastExtPath()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(1), path.Index)
}

func TestResetSyncStatePreservesReuseGuard(t *testing.T) {
	w, _ := newTestWallet(t)

	err := w.ForEachAccount(context.Background(), func(path keyderiver.Path) (Signal, error) {
		if path.Chain == keyderiver.External && path.Index == 0 {
			return SignalHasTx, nil
		}
		return SignalNoTx, nil
	})
	require.NoError(t, err)

	require.NoError(t, w.ResetSyncState())

	addr, err := w.GetNewAddress(keyderiver.External)
	require.NoError(t, err)
	require.Equal(t, uint32(1), addr.Path.Index)
}
