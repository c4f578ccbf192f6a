package txbuilder

import (
	"bytes"
	"context"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/addresswatch"
	"github.com/electrumgo/walletcore/balance"
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/hdwallet"
	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/provider"
	"github.com/electrumgo/walletcore/sync"
	"github.com/electrumgo/walletcore/unspentstore"
	"github.com/electrumgo/walletcore/walleterr"
	"github.com/electrumgo/walletcore/walletstore"
)

const testSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

// destAddress is a well-known mainnet P2WPKH address (BIP173 test vector),
// used so destination validation doesn't depend on this wallet's own keys.
const destAddress = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"

type fakeClient struct {
	broadcastHex   string
	broadcastTxid  string
	broadcastCalls int
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }
func (f *fakeClient) Close() error                      { return nil }
func (f *fakeClient) SubscribeScriptHash(ctx context.Context, scriptHash string) (string, error) {
	return "status", nil
}
func (f *fakeClient) GetHistory(ctx context.Context, scriptHash string, cache bool) ([]provider.HistoryEntry, error) {
	return nil, nil
}
func (f *fakeClient) GetMempool(ctx context.Context, scriptHash string) ([]provider.HistoryEntry, error) {
	return nil, nil
}
func (f *fakeClient) GetBalance(ctx context.Context, scriptHash string) (currency.Amount, currency.Amount, error) {
	return 0, 0, nil
}
func (f *fakeClient) GetTransaction(ctx context.Context, txid string, cache bool) (*provider.Transaction, error) {
	return nil, walleterr.New(walleterr.ProviderRpcError, "unknown tx %s", txid)
}
func (f *fakeClient) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	f.broadcastCalls++
	f.broadcastHex = rawTxHex
	if f.broadcastTxid == "" {
		f.broadcastTxid = "broadcast-txid"
	}
	return f.broadcastTxid, nil
}
func (f *fakeClient) Ping(ctx context.Context) error { return nil }
func (f *fakeClient) OnScriptHashChange(handler func(scriptHash, statusHash string)) {}
func (f *fakeClient) OnNewBlock(handler func(header provider.BlockHeader))           {}

type testSetup struct {
	builder *Builder
	unspent *unspentstore.Store
	deriver *keyderiver.Deriver
	client  *fakeClient
}

func newTestSetup(t *testing.T) *testSetup {
	t.Helper()

	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)

	deriver, err := keyderiver.New(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	store := walletstore.NewMemStore()
	hd, err := hdwallet.New(deriver, store, keyderiver.CoinType(&chaincfg.MainNetParams), 3)
	require.NoError(t, err)

	addrStore, err := addressstore.New(store)
	require.NoError(t, err)
	unspentStore, err := unspentstore.New(store)
	require.NoError(t, err)
	balStore, err := balance.New(store)
	require.NoError(t, err)

	client := &fakeClient{}
	watch, err := addresswatch.New(store, client, 10)
	require.NoError(t, err)

	mgr, err := sync.New(sync.Deps{
		Deriver:      deriver,
		HdWallet:     hd,
		AddressStore: addrStore,
		UnspentStore: unspentStore,
		Balance:      balStore,
		Watch:        watch,
		Client:       client,
	})
	require.NoError(t, err)

	builder := New(&chaincfg.MainNetParams, deriver, hd, addrStore, unspentStore, mgr, client)

	return &testSetup{builder: builder, unspent: unspentStore, deriver: deriver, client: client}
}

// fundUtxo adds a confirmed UTXO at the external address path/index to the
// unspent store, returning the path it was funded at.
func fundUtxo(t *testing.T, ts *testSetup, txid string, index uint32, value currency.Amount) keyderiver.Path {
	t.Helper()

	path := keyderiver.NewPath(keyderiver.CoinType(&chaincfg.MainNetParams), keyderiver.External, index)
	key, err := ts.deriver.Derive(path)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(key.Address)
	require.NoError(t, err)

	require.NoError(t, ts.unspent.Add(&unspentstore.Utxo{
		Outpoint:  ledger.Outpoint{Txid: txid, Vout: 0},
		Value:     value,
		Address:   key.Address.EncodeAddress(),
		PublicKey: key.PublicKey.SerializeCompressed(),
		Path:      path,
		PkScript:  hex.EncodeToString(script),
		State:     ledger.Confirmed,
	}))

	return path
}

// fundTxid is a hex txid string (62 digits, which chainhash.NewHashFromStr
// zero-pads to 32 bytes) that is not a real transaction; the builder parses
// it through chainhash.NewHashFromStr when assembling inputs.
const fundTxid = "1111111111111111111111111111111111111111111111111111111111111a"

func TestSendInsufficientFundsScenario(t *testing.T) {
	ts := newTestSetup(t)
	fundUtxo(t, ts, fundTxid, 0, 10_000)

	_, _, err := ts.builder.Send(context.Background(), SendRequest{
		Address:            destAddress,
		Amount:             1_000_000,
		FeeRateSatPerVByte: 10,
	})
	require.Error(t, err)
	require.True(t, walleterr.Is(err, walleterr.InsufficientFunds))
	require.Equal(t, 0, ts.client.broadcastCalls)
}

func TestSendBuildsValidWitnessTransaction(t *testing.T) {
	ts := newTestSetup(t)
	fundUtxo(t, ts, fundTxid, 0, 10_000_000)

	result, mempoolSeen, err := ts.builder.Send(context.Background(), SendRequest{
		Address:            destAddress,
		Amount:             1_000_000,
		FeeRateSatPerVByte: 10,
	})
	require.NoError(t, err)
	require.NotNil(t, mempoolSeen)
	require.Equal(t, 1, ts.client.broadcastCalls)
	require.Equal(t, result.Hex, ts.client.broadcastHex)
	require.Equal(t, "broadcast-txid", result.Txid)

	select {
	case <-mempoolSeen:
		t.Fatal("mempoolSeen must not fire before the provider observes the broadcast tx")
	default:
	}

	rawTx, err := hex.DecodeString(result.Hex)
	require.NoError(t, err)

	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(rawTx)))

	require.Len(t, tx.TxIn, 1)
	require.Equal(t, uint32(0), tx.TxIn[0].PreviousOutPoint.Index)
	require.Len(t, tx.TxIn[0].Witness, 2, "P2WPKH witness carries a signature and a public key")

	require.GreaterOrEqual(t, len(tx.TxOut), 1)
	require.Equal(t, int64(1_000_000), tx.TxOut[0].Value)

	if result.ChangeVout >= 0 {
		require.Equal(t, result.ChangeAmount.Sat(), tx.TxOut[result.ChangeVout].Value)
	} else {
		require.Equal(t, currency.Amount(0), result.ChangeAmount)
	}
}

func TestSendOmitsDustChange(t *testing.T) {
	ts := newTestSetup(t)
	// Fund exactly amount + fee + a change remainder under the dust
	// threshold so the selection's leftover change is swept into fee
	// rather than creating an uneconomical output.
	fundUtxo(t, ts, fundTxid, 0, 1_000_200)

	result, _, err := ts.builder.Send(context.Background(), SendRequest{
		Address:            destAddress,
		Amount:             1_000_000,
		FeeRateSatPerVByte: 1,
	})
	require.NoError(t, err)

	if result.ChangeAmount < DustThreshold {
		require.Equal(t, int32(-1), result.ChangeVout)
	}
}
