// Package addressstore persists the per-address balance ledger and the
// wallet's transaction log, keyed by outpoint and by txid respectively.
package addressstore

import (
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/ledger"
)

// LedgerKind selects one of the three ledgers an AddressRecord keeps.
type LedgerKind int

const (
	// In is debited for every input spending from this address.
	In LedgerKind = iota
	// Out is credited for every output paid to this address.
	Out
	// Fee records the miner fee attributable to a spend from this address.
	Fee
)

// LedgerEntry is one outpoint's amount at one lifecycle state, within one
// of an address's three ledgers.
type LedgerEntry struct {
	State    ledger.State    `json:"state"`
	Outpoint ledger.Outpoint `json:"outpoint"`
	Amount   currency.Amount `json:"amount"`
}

// AddressRecord is the persisted state of a single address: its derivation
// path and key material, whether it has ever carried a transaction, and
// the in/out/fee ledgers tracking every outpoint that has touched it.
type AddressRecord struct {
	Address    string          `json:"address"`
	Path       keyderiver.Path `json:"path"`
	PublicKey  []byte          `json:"public_key"`
	ScriptHash string          `json:"script_hash"`
	HasTx      bool            `json:"has_tx"`

	// Own marks this as one of the wallet's own derived addresses, as
	// opposed to a counterparty address recorded only to carry the other
	// side of a ledger entry for direction classification.
	Own bool `json:"own"`

	InLedger  []LedgerEntry `json:"in_ledger"`
	OutLedger []LedgerEntry `json:"out_ledger"`
	FeeLedger []LedgerEntry `json:"fee_ledger"`
}

func (r *AddressRecord) ledgerOf(kind LedgerKind) []LedgerEntry {
	switch kind {
	case In:
		return r.InLedger
	case Out:
		return r.OutLedger
	default:
		return r.FeeLedger
	}
}

func (r *AddressRecord) setLedger(kind LedgerKind, entries []LedgerEntry) {
	switch kind {
	case In:
		r.InLedger = entries
	case Out:
		r.OutLedger = entries
	case Fee:
		r.FeeLedger = entries
	}
}

// HasEntry reports whether op is already recorded in ledger kind at state,
// regardless of amount. processUtxo's idempotence check uses FindEntry
// instead, so that it also sees entries recorded at another state.
func (r *AddressRecord) HasEntry(kind LedgerKind, state ledger.State, op ledger.Outpoint) bool {
	for _, e := range r.ledgerOf(kind) {
		if e.State == state && e.Outpoint == op {
			return true
		}
	}
	return false
}

// FindEntry returns op's entry in ledger kind, regardless of state, so a
// caller can detect a state change (promotion/demotion) and reverse the
// prior state's effect before recording the new one.
func (r *AddressRecord) FindEntry(kind LedgerKind, op ledger.Outpoint) (LedgerEntry, bool) {
	for _, e := range r.ledgerOf(kind) {
		if e.Outpoint == op {
			return e, true
		}
	}
	return LedgerEntry{}, false
}

// AddEntry records op's amount in ledger kind at state. Callers must check
// for an existing entry first (FindEntry or HasEntry); AddEntry does not
// itself deduplicate.
func (r *AddressRecord) AddEntry(kind LedgerKind, state ledger.State, op ledger.Outpoint, amount currency.Amount) {
	r.setLedger(kind, append(r.ledgerOf(kind), LedgerEntry{State: state, Outpoint: op, Amount: amount}))
}

// RemoveEntry deletes op's entry (if any) from ledger kind at state. Used
// when an outpoint moves to a new lifecycle state: the caller removes the
// prior state's entry (and reverses its balance effect) before adding the
// entry at the new state.
func (r *AddressRecord) RemoveEntry(kind LedgerKind, state ledger.State, op ledger.Outpoint) {
	entries := r.ledgerOf(kind)
	out := entries[:0]
	for _, e := range entries {
		if e.State == state && e.Outpoint == op {
			continue
		}
		out = append(out, e)
	}
	r.setLedger(kind, out)
}

// Net returns Σout[state] - Σin[state] for this address, matching the
// TotalBalance additivity invariant.
func (r *AddressRecord) Net(state ledger.State) currency.Amount {
	var net currency.Amount
	for _, e := range r.OutLedger {
		if e.State == state {
			net = net.Add(e.Amount)
		}
	}
	for _, e := range r.InLedger {
		if e.State == state {
			net = net.Sub(e.Amount)
		}
	}
	return net
}
