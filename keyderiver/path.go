// Package keyderiver implements BIP32 hierarchical key derivation along
// BIP84 (native SegWit, P2WPKH) paths, and the pure functions that turn a
// derived key into the address/script-hash/pubkey triple the rest of the
// wallet consumes. Seed generation (BIP39) and elliptic-curve primitives
// are taken as given: a Deriver is built from an already-computed BIP32
// seed.
package keyderiver

import (
	"fmt"
)

// Purpose is the BIP43 purpose field this module always derives under.
const Purpose = 84

// Chain selects the external (receive) or internal (change) branch of an
// account, per BIP44/BIP84 convention.
type Chain uint32

const (
	// External is the receive chain (change=0).
	External Chain = 0
	// Internal is the change chain (change=1).
	Internal Chain = 1
)

// String renders the chain name for logging.
func (c Chain) String() string {
	if c == Internal {
		return "internal"
	}
	return "external"
}

// Path is a single-account BIP84 derivation path: m/84'/coin_type'/account'/change/index.
// Account is fixed at 0 for the lifetime of this module; multi-account
// wallets are out of scope.
type Path struct {
	CoinType uint32
	Account  uint32
	Chain    Chain
	Index    uint32
}

// NewPath builds a Path on the default account (0) for the given coin type.
func NewPath(coinType uint32, chain Chain, index uint32) Path {
	return Path{
		CoinType: coinType,
		Account:  0,
		Chain:    chain,
		Index:    index,
	}
}

// String renders the path in standard notation, e.g. "m/84'/0'/0'/0/12".
func (p Path) String() string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", Purpose, p.CoinType, p.Account, uint32(p.Chain), p.Index)
}

// Next returns the path for the following index on the same chain.
func (p Path) Next() Path {
	return Path{CoinType: p.CoinType, Account: p.Account, Chain: p.Chain, Index: p.Index + 1}
}
