// Package unspentstore holds the wallet's live UTXO set and implements
// coin selection: atomic reservation of inputs for a spend, descending-
// value accumulation against an iteratively re-estimated fee, and
// reconciliation once a spending input is observed.
package unspentstore

import (
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/ledger"
)

// Utxo is one unspent output credited to an address this wallet controls.
type Utxo struct {
	Outpoint   ledger.Outpoint `json:"outpoint"`
	Value      currency.Amount `json:"value"`
	Address    string          `json:"address"`
	PublicKey  []byte          `json:"address_public_key"`
	Path       keyderiver.Path `json:"address_path"`
	PkScript   string          `json:"witness_hex"`
	State      ledger.State    `json:"state"`

	// Locked is never persisted: reservations live only in Store's
	// in-memory map, so a crash mid-reservation releases them on restart.
	Locked bool `json:"-"`
}
