// Package hdwallet implements the gap-limit-aware path iterator over the
// external/internal chains of a single BIP84 account, and the
// address-reuse guard that keeps a restarted wallet from handing out an
// index it has already used.
package hdwallet

import (
	"context"

	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/walletstore"
)

// DefaultGapLimit is the number of consecutive unused addresses scanned
// before a chain is considered exhausted.
const DefaultGapLimit = 20

// Signal is returned by a ScanVisitor for each path it's asked to examine.
type Signal int

const (
	// SignalNoTx means the path has never carried a transaction.
	SignalNoTx Signal = iota
	// SignalHasTx means the path has at least one transaction.
	SignalHasTx
	// SignalStop asks the scan to abort cooperatively.
	SignalStop
)

// ScanVisitor is invoked once per path during ForEachAccount. It is
// responsible for checking the path's transaction history (against the
// provider, via the sync manager) and returning the outcome.
type ScanVisitor func(path keyderiver.Path) (Signal, error)

// AddressInfo is everything callers need about one derived address.
type AddressInfo struct {
	Address    string
	Path       keyderiver.Path
	ScriptHash string
	PublicKey  []byte
}

// Wallet is the HD address space for a single BIP84 account (account 0, the
// only account this module supports).
type Wallet struct {
	deriver  *keyderiver.Deriver
	ns       walletstore.KVStore
	coinType uint32
	gapLimit uint32
}

// New builds a Wallet backed by deriver for key material and store's
// "hdwallet" namespace for cursor persistence.
func New(deriver *keyderiver.Deriver, store walletstore.Store, coinType uint32, gapLimit uint32) (*Wallet, error) {
	if gapLimit == 0 {
		gapLimit = DefaultGapLimit
	}

	ns, err := store.Namespace(walletstore.NamespaceHDWallet)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		deriver:  deriver,
		ns:       ns,
		coinType: coinType,
		gapLimit: gapLimit,
	}, nil
}

func (w *Wallet) addressInfo(path keyderiver.Path) (*AddressInfo, error) {
	key, err := w.deriver.Derive(path)
	if err != nil {
		return nil, err
	}

	return &AddressInfo{
		Address:    key.Address.EncodeAddress(),
		Path:       path,
		ScriptHash: key.ScriptHash,
		PublicKey:  key.PublicKey.SerializeCompressed(),
	}, nil
}

// GetNewAddress returns the lowest-index path on chain that has never been
// observed to carry a transaction and has not been handed out before. This
// holds even across fresh Wallet instances built from the same seed and
// store, since the reuse guard is persisted.
func (w *Wallet) GetNewAddress(chain keyderiver.Chain) (*AddressInfo, error) {
	state, err := loadChainState(w.ns, chain)
	if err != nil {
		return nil, err
	}

	idx := state.NextHandOut
	if reuse := nextAfterHasTx(state); reuse > idx {
		idx = reuse
	}

	path := keyderiver.NewPath(w.coinType, chain, idx)
	info, err := w.addressInfo(path)
	if err != nil {
		return nil, err
	}

	state.NextHandOut = idx + 1
	if err := saveChainState(w.ns, chain, state); err != nil {
		return nil, err
	}

	log.Debugf("handed out new %s address at index %d", chain, idx)
	return info, nil
}

// GetAllAddresses returns every address this wallet has derived so far:
// every index up to the high-water mark of hand-outs and observed
// transactions, on both chains.
func (w *Wallet) GetAllAddresses() ([]*AddressInfo, error) {
	var out []*AddressInfo

	for _, chain := range []keyderiver.Chain{keyderiver.External, keyderiver.Internal} {
		state, err := loadChainState(w.ns, chain)
		if err != nil {
			return nil, err
		}

		count := state.NextHandOut
		if reuse := nextAfterHasTx(state); reuse > count {
			count = reuse
		}

		for i := uint32(0); i < count; i++ {
			info, err := w.addressInfo(keyderiver.NewPath(w.coinType, chain, i))
			if err != nil {
				return nil, err
			}
			out = append(out, info)
		}
	}

	return out, nil
}

// SyncStateSnapshot is the persisted cursor state for one chain, exposed
// for the synced-path event payload.
type SyncStateSnapshot struct {
	NextScanIndex  uint32
	GapCount       uint32
	LastHasTxIndex int64
	NextHandOut    uint32
}

// SyncStateSnapshot returns chain's current persisted cursor state.
func (w *Wallet) SyncStateSnapshot(chain keyderiver.Chain) (SyncStateSnapshot, error) {
	state, err := loadChainState(w.ns, chain)
	if err != nil {
		return SyncStateSnapshot{}, err
	}
	return SyncStateSnapshot{
		NextScanIndex:  state.NextScanIndex,
		GapCount:       state.GapCount,
		LastHasTxIndex: state.LastHasTxIndex,
		NextHandOut:    state.NextHandOut,
	}, nil
}

// GetLastExtPath returns the highest-index external path observed to carry
// a transaction. ok is false if no external address has ever had one.
func (w *Wallet) GetLastExtPath() (path keyderiver.Path, ok bool, err error) {
	state, err := loadChainState(w.ns, keyderiver.External)
	if err != nil {
		return keyderiver.Path{}, false, err
	}
	if state.LastHasTxIndex < 0 {
		return keyderiver.Path{}, false, nil
	}
	return keyderiver.NewPath(w.coinType, keyderiver.External, uint32(state.LastHasTxIndex)), true, nil
}

// ResetSyncState rewinds both chains' scan cursors to the start. The
// address-reuse guard (NextHandOut/LastHasTxIndex) is left untouched:
// history replay during the following scan recomputes it from scratch as
// each path is re-observed to have a transaction.
func (w *Wallet) ResetSyncState() error {
	for _, chain := range []keyderiver.Chain{keyderiver.External, keyderiver.Internal} {
		state, err := loadChainState(w.ns, chain)
		if err != nil {
			return err
		}
		state.NextScanIndex = 0
		state.GapCount = 0
		if err := saveChainState(w.ns, chain, state); err != nil {
			return err
		}
	}
	return nil
}

// ForEachAccount drives the gap-limit scan: external chain to completion,
// then internal. visit is asked about each path in strictly ascending
// index order; its answer governs the gap counter and the persisted
// resume cursor.
func (w *Wallet) ForEachAccount(ctx context.Context, visit ScanVisitor) error {
	for _, chain := range []keyderiver.Chain{keyderiver.External, keyderiver.Internal} {
		if err := w.scanChain(ctx, chain, visit); err != nil {
			return err
		}
	}
	return nil
}

func (w *Wallet) scanChain(ctx context.Context, chain keyderiver.Chain, visit ScanVisitor) error {
	state, err := loadChainState(w.ns, chain)
	if err != nil {
		return err
	}

	for state.GapCount < w.gapLimit {
		select {
		case <-ctx.Done():
			return saveChainState(w.ns, chain, state)
		default:
		}

		path := keyderiver.NewPath(w.coinType, chain, state.NextScanIndex)
		log.Tracef("scanning %s", path)

		signal, err := visit(path)
		if err != nil {
			return err
		}

		switch signal {
		case SignalStop:
			return saveChainState(w.ns, chain, state)
		case SignalHasTx:
			state.LastHasTxIndex = int64(state.NextScanIndex)
			if state.NextScanIndex+1 > state.NextHandOut {
				state.NextHandOut = state.NextScanIndex + 1
			}
			state.GapCount = 0
		case SignalNoTx:
			state.GapCount++
		}

		state.NextScanIndex++
		if err := saveChainState(w.ns, chain, state); err != nil {
			return err
		}
	}

	return nil
}

func nextAfterHasTx(s chainState) uint32 {
	if s.LastHasTxIndex < 0 {
		return 0
	}
	return uint32(s.LastHasTxIndex) + 1
}
