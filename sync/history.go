package sync

import (
	"context"
	"encoding/hex"
	"math"
	"sort"

	"github.com/btcsuite/btcd/txscript"

	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/provider"
	"github.com/electrumgo/walletcore/unspentstore"
)

// utxoItem unifies a transaction's inputs and outputs for processUtxo:
// both carry a counterparty address, a value, and the outpoint identity
// tracked across the output's lifecycle.
type utxoItem struct {
	Address  string
	Value    currency.Amount
	Outpoint ledger.Outpoint
}

func inputItems(inputs []provider.TxInput) []utxoItem {
	items := make([]utxoItem, len(inputs))
	for i, in := range inputs {
		items[i] = utxoItem{
			Address:  in.Address,
			Value:    in.Value,
			Outpoint: ledger.Outpoint{Txid: in.PrevTxid, Vout: in.PrevVout},
		}
	}
	return items
}

func outputItems(txid string, outputs []provider.TxOutput) []utxoItem {
	items := make([]utxoItem, len(outputs))
	for i, out := range outputs {
		items[i] = utxoItem{
			Address:  out.Address,
			Value:    out.Value,
			Outpoint: ledger.Outpoint{Txid: txid, Vout: out.Index},
		}
	}
	return items
}

// getTxState classifies height against the last observed block: mempool
// iff height==0, confirmed once depth reaches minBlockConfirm, pending in
// between.
func (m *Manager) getTxState(height int64) ledger.State {
	if height == 0 {
		return ledger.Mempool
	}

	current := m.blockHeight()
	if current == 0 || current-height < m.minBlockConfirm {
		return ledger.Pending
	}
	return ledger.Confirmed
}

func (m *Manager) blockHeight() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentHeight
}

// processHistory orders entries by height ascending (mempool last) and
// feeds each through processTransaction. path, when non-nil, is the
// address currently being scanned so its ownership can be stamped even
// before any output/input item iteration would otherwise discover it.
func (m *Manager) processHistory(ctx context.Context, entries []provider.HistoryEntry, path *keyderiver.Path, cache bool) error {
	ordered := append([]provider.HistoryEntry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return sortHeight(ordered[i].Height) < sortHeight(ordered[j].Height)
	})

	for _, e := range ordered {
		tx, err := m.client.GetTransaction(ctx, e.Txid, cache)
		if err != nil {
			log.Warnf("fetching transaction %s: %v", e.Txid, err)
			continue
		}

		if err := m.processTransaction(tx, path); err != nil {
			return err
		}
	}
	return nil
}

func sortHeight(height int64) int64 {
	if height == 0 {
		return math.MaxInt64
	}
	return height
}

// processTransaction is processHistory's per-tx body: state
// classification, processUtxo over inputs then outputs, direction
// classification, and persistence of the resulting TxEntry.
func (m *Manager) processTransaction(tx *provider.Transaction, path *keyderiver.Path) error {
	state := m.getTxState(tx.Height)

	var inTotal, outTotal currency.Amount
	for _, in := range tx.Inputs {
		inTotal = inTotal.Add(in.Value)
	}
	for _, out := range tx.Outputs {
		outTotal = outTotal.Add(out.Value)
	}
	fee := inTotal.Sub(outTotal)
	if fee < 0 {
		fee = 0
	}

	inOwn, err := m.processUtxo(inputItems(tx.Inputs), addressstore.In, state, fee, path, tx.Txid)
	if err != nil {
		return err
	}
	outOwn, err := m.processUtxo(outputItems(tx.Txid, tx.Outputs), addressstore.Out, state, 0, path, tx.Txid)
	if err != nil {
		return err
	}

	direction := classifyDirection(inOwn, outOwn)
	entry := &addressstore.TxEntry{
		Txid:      tx.Txid,
		Fee:       fee,
		Height:    tx.Height,
		Direction: direction,
	}

	for _, in := range tx.Inputs {
		entry.FromAddresses = append(entry.FromAddresses, in.Address)
		entry.InputOutpoints = append(entry.InputOutpoints, ledger.Outpoint{Txid: in.PrevTxid, Vout: in.PrevVout})
	}
	for i, out := range tx.Outputs {
		own := outOwn[i]
		entry.ToAddresses = append(entry.ToAddresses, out.Address)
		entry.ToAddressMeta = append(entry.ToAddressMeta, addressstore.ToAddressMeta{
			Address:   out.Address,
			Amount:    out.Value,
			OwnOutput: own,
		})

		switch {
		case (direction == ledger.Incoming || direction == ledger.Internal) && own:
			entry.Amount = entry.Amount.Add(out.Value)
		case direction == ledger.Outgoing && !own:
			entry.Amount = entry.Amount.Add(out.Value)
		}
	}

	_, seen, err := m.addr.GetTx(tx.Txid)
	if err != nil {
		return err
	}

	if err := m.addr.PutTx(entry); err != nil {
		return err
	}

	if state != ledger.Mempool {
		if err := m.addr.DropConflicting(entry.Txid, entry.InputOutpoints); err != nil {
			log.Warnf("dropping conflicting mempool entries for %s: %v", entry.Txid, err)
		}
	}

	if tx.Height == 0 && !seen && m.onNewTx != nil {
		m.onNewTx(entry)
	}
	m.fireMempoolSeen(tx.Txid)

	return nil
}

// classifyDirection derives a transaction's direction from the per-item
// ownership flags processUtxo returned.
func classifyDirection(inOwn, outOwn []bool) ledger.Direction {
	allInputsOwn := len(inOwn) > 0 && allTrue(inOwn)
	anyInputOwn := anyTrue(inOwn)
	allOutputsOwn := len(outOwn) > 0 && allTrue(outOwn)

	switch {
	case allInputsOwn && allOutputsOwn:
		return ledger.Internal
	case !anyInputOwn:
		return ledger.Incoming
	case anyInputOwn && len(outOwn) > 0:
		return ledger.Outgoing
	default:
		return ledger.Unknown
	}
}

func allTrue(bs []bool) bool {
	for _, b := range bs {
		if !b {
			return false
		}
	}
	return true
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}

// processUtxo is the sole mutator of monetary state: for each item it
// ensures an AddressStore record exists and stamps ownership when path
// identifies the address currently being scanned. Ledger entries and
// TotalBalance are only ever touched for the wallet's own addresses;
// counterparty addresses are recorded solely for the caller's direction
// classification (own[i]), never in the balance. For an own address,
// unless the outpoint is already recorded at this exact state (idempotent
// replay), any entry at a different state is removed and its balance
// effect reversed before the new state's entry and balance delta are
// recorded (mempool -> pending -> confirmed promotion, without
// double-counting). UnspentStore is updated last (adding a new output,
// marking a spent input). It returns, in order, each item's resolved
// ownership flag for the caller's direction classification. Malformed
// entries are skipped, never fatal.
func (m *Manager) processUtxo(items []utxoItem, kind addressstore.LedgerKind, state ledger.State,
	fee currency.Amount, path *keyderiver.Path, txid string) ([]bool, error) {

	var ownAddress string
	if path != nil {
		if key, err := m.deriver.Derive(*path); err == nil {
			ownAddress = key.Address.EncodeAddress()
		}
	}

	own := make([]bool, len(items))
	feeRecorded := false

	for i, item := range items {
		rec, err := m.addr.GetOrCreate(item.Address)
		if err != nil {
			log.Warnf("address record for %s: %v", item.Address, err)
			continue
		}

		if path != nil && item.Address == ownAddress && !rec.Own {
			key, derr := m.deriver.Derive(*path)
			if derr != nil {
				log.Warnf("deriving own address %s: %v", item.Address, derr)
			} else {
				rec, err = m.addr.MarkOwn(item.Address, *path, key.PublicKey.SerializeCompressed(), key.ScriptHash)
				if err != nil {
					log.Warnf("marking %s own: %v", item.Address, err)
					continue
				}
			}
		}

		own[i] = rec.Own
		if rec.Own {
			rec.HasTx = true
		}

		if rec.Own {
			if prev, ok := rec.FindEntry(kind, item.Outpoint); ok {
				if prev.State == state {
					continue
				}

				rec.RemoveEntry(kind, prev.State, item.Outpoint)
				prevDelta := prev.Amount
				if kind == addressstore.In {
					prevDelta = -prevDelta
				}
				if _, err := m.bal.Adjust(prev.State, -prevDelta); err != nil {
					return own, err
				}
			}

			rec.AddEntry(kind, state, item.Outpoint, item.Value)
			if err := m.addr.Put(rec); err != nil {
				return own, err
			}

			delta := item.Value
			if kind == addressstore.In {
				delta = -item.Value
			}
			if _, err := m.bal.Adjust(state, delta); err != nil {
				return own, err
			}

			if kind == addressstore.In && fee > 0 && !feeRecorded {
				if err := m.recordFee(item.Address, state, txid, fee); err != nil {
					return own, err
				}
				feeRecorded = true
			}
		}

		switch {
		case kind == addressstore.Out && rec.Own:
			pkScript, err := m.outputScriptHex(rec.Path)
			if err != nil {
				return own, err
			}
			u := &unspentstore.Utxo{
				Outpoint:  item.Outpoint,
				Value:     item.Value,
				Address:   item.Address,
				PublicKey: rec.PublicKey,
				Path:      rec.Path,
				PkScript:  pkScript,
				State:     state,
			}
			if err := m.unspent.Add(u); err != nil {
				return own, err
			}
		case kind == addressstore.In && rec.Own:
			m.unspent.MarkSpent(item.Outpoint)
		}
	}

	return own, nil
}

// outputScriptHex resolves path's P2WPKH output script, hex-encoded, for
// storage on the UTXO record so the builder can sign without re-deriving.
func (m *Manager) outputScriptHex(path keyderiver.Path) (string, error) {
	key, err := m.deriver.Derive(path)
	if err != nil {
		return "", err
	}
	script, err := txscript.PayToAddrScript(key.Address)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(script), nil
}

func (m *Manager) recordFee(address string, state ledger.State, txid string, fee currency.Amount) error {
	rec, err := m.addr.GetOrCreate(address)
	if err != nil {
		return err
	}

	op := ledger.Outpoint{Txid: txid, Vout: 0}
	if rec.HasEntry(addressstore.Fee, state, op) {
		return nil
	}

	rec.AddEntry(addressstore.Fee, state, op, fee)
	return m.addr.Put(rec)
}

// handleNewBlock is the provider's headers.subscribe callback. It
// re-fetches every still-mempool or recently-mined TxEntry and re-runs
// processTransaction, promoting mempool -> pending/confirmed as depth
// grows. Re-orgs deeper than one block are not handled: a transaction that
// disappears from the chain after being marked pending/confirmed is left
// as-is until the next history resync observes its removal.
func (m *Manager) handleNewBlock(header provider.BlockHeader) {
	m.mu.Lock()
	last := m.currentHeight
	m.currentHeight = header.Height
	m.mu.Unlock()

	if last == 0 || header.Height <= last {
		return
	}

	ctx := context.Background()
	txids, err := m.addr.TxidsInHeightRange(last, header.Height)
	if err != nil {
		log.Errorf("listing txids for block %d rescan: %v", header.Height, err)
		return
	}

	for _, txid := range txids {
		tx, err := m.client.GetTransaction(ctx, txid, false)
		if err != nil {
			log.Warnf("refetching %s for block rescan: %v", txid, err)
			continue
		}
		if err := m.processTransaction(tx, nil); err != nil {
			log.Errorf("reprocessing %s after block %d: %v", txid, header.Height, err)
		}
	}

	if err := m.unspent.Process(); err != nil {
		log.Errorf("reconciling utxo set after block %d: %v", header.Height, err)
	}
}

// handleScriptHashChange is the provider's scripthash.subscribe callback.
// A changed status hash means new mempool history exists for that
// script-hash; it is fetched (bypassing cache) and fed to
// processHistory, then internal-chain entries whose balance is now
// consumed are dropped from the watch ring.
func (m *Manager) handleScriptHashChange(scriptHash, statusHash string) {
	chain, _, ok := m.watch.Lookup(scriptHash)
	if !ok {
		return
	}

	changed, err := m.watch.UpdateStatus(scriptHash, statusHash)
	if err != nil {
		log.Errorf("updating watch status for %s: %v", scriptHash, err)
		return
	}
	if !changed {
		return
	}

	ctx := context.Background()
	history, err := m.client.GetMempool(ctx, scriptHash)
	if err != nil {
		log.Warnf("fetching mempool history for %s: %v", scriptHash, err)
		return
	}

	if err := m.processHistory(ctx, history, nil, false); err != nil {
		log.Errorf("processing history for %s: %v", scriptHash, err)
		return
	}

	if chain == keyderiver.Internal {
		consumed, err := m.isScriptHashConsumed(scriptHash)
		if err != nil {
			log.Warnf("checking consumption for %s: %v", scriptHash, err)
		} else if consumed {
			if err := m.watch.DropConsumed(scriptHash); err != nil {
				log.Errorf("dropping consumed watch entry %s: %v", scriptHash, err)
			}
		}
	}

	if err := m.unspent.Process(); err != nil {
		log.Errorf("reconciling utxo set after script-hash change: %v", err)
	}
}

func (m *Manager) isScriptHashConsumed(scriptHash string) (bool, error) {
	var address string
	err := m.addr.ForEachAddress(func(rec *addressstore.AddressRecord) error {
		if rec.ScriptHash == scriptHash {
			address = rec.Address
		}
		return nil
	})
	if err != nil || address == "" {
		return false, err
	}

	for _, state := range ledger.States {
		utxos, err := m.unspent.List(state, true)
		if err != nil {
			return false, err
		}
		for _, u := range utxos {
			if u.Address == address {
				return false, nil
			}
		}
	}
	return true, nil
}
