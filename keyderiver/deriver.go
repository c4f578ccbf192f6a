package keyderiver

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/electrumgo/walletcore/walleterr"
)

// CoinType returns the BIP44/BIP84 coin_type field for params: 0' for
// mainnet, 1' for every test network (testnet3, regtest, signet), matching
// the convention fixed by SLIP-44 and followed by every BIP84 wallet.
func CoinType(params *chaincfg.Params) uint32 {
	if params == &chaincfg.MainNetParams {
		return 0
	}
	return 1
}

// DerivedKey bundles everything a single HD path resolves to.
type DerivedKey struct {
	Path       Path
	PrivateKey *btcec.PrivateKey
	PublicKey  *btcec.PublicKey
	Address    *btcutil.AddressWitnessPubKeyHash
	ScriptHash string
}

// Deriver derives BIP84 keys from a single BIP32 seed. It caches the
// account-level extended keys (m/84'/c'/0') and the per-chain branch keys,
// since re-deriving them on every call would otherwise mean re-walking the
// same three hardened levels for every address in a gap-limit scan.
type Deriver struct {
	params *chaincfg.Params

	mu       sync.Mutex
	account  *hdkeychain.ExtendedKey
	branches map[Chain]*hdkeychain.ExtendedKey
}

// New builds a Deriver from a BIP32 master seed (the output of BIP39
// mnemonic-to-seed conversion, which this package takes as given).
func New(seed []byte, params *chaincfg.Params) (*Deriver, error) {
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, walleterr.Wrap(walleterr.InvalidNetwork, err, "deriving master key")
	}
	defer master.Zero()

	coinType := CoinType(params)

	purposeKey, err := master.Derive(hdkeychain.HardenedKeyStart + Purpose)
	if err != nil {
		return nil, err
	}
	defer purposeKey.Zero()

	coinKey, err := purposeKey.Derive(hdkeychain.HardenedKeyStart + coinType)
	if err != nil {
		return nil, err
	}
	defer coinKey.Zero()

	account, err := coinKey.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}

	return &Deriver{
		params:   params,
		account:  account,
		branches: make(map[Chain]*hdkeychain.ExtendedKey),
	}, nil
}

func (d *Deriver) branch(chain Chain) (*hdkeychain.ExtendedKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if k, ok := d.branches[chain]; ok {
		return k, nil
	}

	k, err := d.account.Derive(uint32(chain))
	if err != nil {
		return nil, err
	}
	d.branches[chain] = k
	return k, nil
}

// Derive resolves path to its full key material and P2WPKH address.
func (d *Deriver) Derive(path Path) (*DerivedKey, error) {
	branch, err := d.branch(path.Chain)
	if err != nil {
		return nil, err
	}

	child, err := branch.Derive(path.Index)
	if err != nil {
		return nil, err
	}

	priv, err := child.ECPrivKey()
	if err != nil {
		return nil, err
	}

	pub := priv.PubKey()
	pubKeyHash := btcutil.Hash160(pub.SerializeCompressed())

	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, d.params)
	if err != nil {
		return nil, err
	}

	scriptHash, err := outputScriptHash(addr)
	if err != nil {
		return nil, err
	}

	return &DerivedKey{
		Path:       path,
		PrivateKey: priv,
		PublicKey:  pub,
		Address:    addr,
		ScriptHash: scriptHash,
	}, nil
}

// Address is a convenience wrapper returning just the derived address.
func (d *Deriver) Address(path Path) (*btcutil.AddressWitnessPubKeyHash, error) {
	k, err := d.Derive(path)
	if err != nil {
		return nil, err
	}
	return k.Address, nil
}

// ScriptHash resolves path directly to the provider's subscription key,
// without handing back the private key material.
func (d *Deriver) ScriptHash(path Path) (string, error) {
	k, err := d.Derive(path)
	if err != nil {
		return "", err
	}
	return k.ScriptHash, nil
}

// PrivateKey resolves path to the signing key for that output, used by the
// transaction builder at sign time. Callers must not retain it past the
// signing operation.
func (d *Deriver) PrivateKey(path Path) (*btcec.PrivateKey, error) {
	k, err := d.Derive(path)
	if err != nil {
		return nil, err
	}
	return k.PrivateKey, nil
}

// outputScriptHash computes the provider's script-hash index key: sha256 of
// the output script, byte-reversed, hex-encoded.
func outputScriptHash(addr btcutil.Address) (string, error) {
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(script)
	reversed := reverseBytes(sum[:])
	return hex.EncodeToString(reversed), nil
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
