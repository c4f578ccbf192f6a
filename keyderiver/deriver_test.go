package keyderiver

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// bip39Seed is the standard BIP39 test-vector seed for the mnemonic
// "abandon abandon abandon abandon abandon abandon abandon abandon abandon
// abandon abandon about" with an empty passphrase.
const bip39Seed = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

func testDeriver(t *testing.T) *Deriver {
	t.Helper()
	seed, err := hex.DecodeString(bip39Seed)
	require.NoError(t, err)

	d, err := New(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return d
}

func TestBIP84Vectors(t *testing.T) {
	d := testDeriver(t)

	tests := []struct {
		chain Chain
		index uint32
		want  string
	}{
		{External, 0, "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"},
		{External, 1, "bc1qnjg0jd8228aq7egyzacy8cys3knf9xvrerkf9g"},
		{Internal, 0, "bc1q8c6fshw2dlwun7ekn9qwf37cu2rn755upcp6el"},
		{Internal, 1, "bc1qggnasd834t54yulsep6fta8lpjekv4zj6gv5rf"},
	}

	for _, tc := range tests {
		path := NewPath(CoinType(&chaincfg.MainNetParams), tc.chain, tc.index)
		addr, err := d.Address(path)
		require.NoError(t, err)
		require.Equal(t, tc.want, addr.EncodeAddress())
	}
}

func TestPathString(t *testing.T) {
	p := NewPath(0, Internal, 7)
	require.Equal(t, "m/84'/0'/0'/1/7", p.String())
	require.Equal(t, "m/84'/0'/0'/1/8", p.Next().String())
}

func TestScriptHashDeterministic(t *testing.T) {
	d := testDeriver(t)
	path := NewPath(0, External, 0)

	h1, err := d.ScriptHash(path)
	require.NoError(t, err)
	h2, err := d.ScriptHash(path)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
}

func TestDerivePrivateKeyMatchesPublic(t *testing.T) {
	d := testDeriver(t)
	path := NewPath(0, External, 3)

	key, err := d.Derive(path)
	require.NoError(t, err)
	require.Equal(t, key.PrivateKey.PubKey().SerializeCompressed(), key.PublicKey.SerializeCompressed())
}

func TestCoinType(t *testing.T) {
	require.Equal(t, uint32(0), CoinType(&chaincfg.MainNetParams))
	require.Equal(t, uint32(1), CoinType(&chaincfg.TestNet3Params))
	require.Equal(t, uint32(1), CoinType(&chaincfg.RegressionNetParams))
	require.Equal(t, uint32(1), CoinType(&chaincfg.SigNetParams))
}
