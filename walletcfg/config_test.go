package walletcfg

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestLoadResolvesNetworkAndSeed(t *testing.T) {
	dataDir := t.TempDir()
	seedHex := "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

	cfg, err := Load([]string{
		"--datadir", dataDir,
		"--network", "testnet",
		"--seedhex", seedHex,
		"--rpchost", "127.0.0.1:50001",
	})
	require.NoError(t, err)
	require.Equal(t, chaincfg.TestNet3Params.Name, cfg.NetParams.Name)
	require.Equal(t, seedHex, hex.EncodeToString(cfg.Seed))
	require.Equal(t, "127.0.0.1:50001", cfg.RPCHost)
}

func TestLoadGeneratesAndPersistsSeedOnFirstRun(t *testing.T) {
	dataDir := t.TempDir()

	first, err := Load([]string{"--datadir", dataDir})
	require.NoError(t, err)
	require.Len(t, first.Seed, seedLength)

	second, err := Load([]string{"--datadir", dataDir})
	require.NoError(t, err)
	require.Equal(t, first.Seed, second.Seed)

	persisted, err := os.ReadFile(filepath.Join(dataDir, "seed.hex"))
	require.NoError(t, err)
	raw, err := hex.DecodeString(string(persisted))
	require.NoError(t, err)
	require.Equal(t, first.Seed, raw)
}

func TestLoadRejectsUnknownNetwork(t *testing.T) {
	_, err := Load([]string{"--datadir", t.TempDir(), "--network", "fakenet"})
	require.Error(t, err)
}
