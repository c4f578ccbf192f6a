// Package sync implements the SyncManager: the coordinator that drives
// HdWallet's gap-limit scan, classifies each observed transaction, and
// keeps AddressStore, UnspentStore and TotalBalance consistent under
// concurrent provider notifications. It is the accounting core the rest
// of the wallet depends on; every other component is a passive store this
// package reads and mutates.
package sync

import (
	"context"
	"sync"

	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/addresswatch"
	"github.com/electrumgo/walletcore/balance"
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/hdwallet"
	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/provider"
	"github.com/electrumgo/walletcore/unspentstore"
	"github.com/electrumgo/walletcore/walleterr"
)

// DefaultMinBlockConfirm is the default depth at which a mined output is
// considered confirmed rather than merely pending.
const DefaultMinBlockConfirm = 1

// OnSyncedPath fires once per path visited during a scan, in strictly
// ascending index order per chain.
type OnSyncedPath func(chain keyderiver.Chain, path keyderiver.Path, hasTx bool, snapshot hdwallet.SyncStateSnapshot)

// OnNewTx fires the first time a still-unconfirmed (mempool) transaction
// is observed.
type OnNewTx func(entry *addressstore.TxEntry)

// OnSyncEnd fires when a syncAccount invocation completes or is paused.
type OnSyncEnd func()

// Deps are the sub-components Manager coordinates. Manager holds each by
// reference but never hands a back-reference to itself: stores return
// results, Manager alone drives notifications.
type Deps struct {
	Deriver      *keyderiver.Deriver
	HdWallet     *hdwallet.Wallet
	AddressStore *addressstore.Store
	UnspentStore *unspentstore.Store
	Balance      *balance.Store
	Watch        *addresswatch.Watch
	Client       provider.Client

	// MinBlockConfirm is the depth at which a mined tx is considered
	// confirmed. Zero uses DefaultMinBlockConfirm.
	MinBlockConfirm int64
}

// Manager is the sync and accounting coordinator.
type Manager struct {
	deriver *keyderiver.Deriver
	hd      *hdwallet.Wallet
	addr    *addressstore.Store
	unspent *unspentstore.Store
	bal     *balance.Store
	watch   *addresswatch.Watch
	client  provider.Client

	minBlockConfirm int64

	mu            sync.Mutex
	syncing       bool
	halt          bool
	haltDone      chan struct{}
	currentHeight int64

	onSyncedPath OnSyncedPath
	onNewTx      OnNewTx
	onSyncEnd    OnSyncEnd

	mempoolMu       sync.Mutex
	mempoolWatchers map[string][]chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
}

// New builds a Manager and installs its provider callbacks. The caller
// must still call Deps.Client.Connect (and AddressWatch.Resubscribe on
// first start) before SyncAccount is meaningful.
func New(deps Deps) (*Manager, error) {
	if deps.Deriver == nil || deps.HdWallet == nil || deps.AddressStore == nil ||
		deps.UnspentStore == nil || deps.Balance == nil || deps.Watch == nil || deps.Client == nil {
		return nil, walleterr.New(walleterr.NotReady, "sync.Manager requires every dependency set")
	}

	minBlockConfirm := deps.MinBlockConfirm
	if minBlockConfirm <= 0 {
		minBlockConfirm = DefaultMinBlockConfirm
	}

	m := &Manager{
		deriver:         deps.Deriver,
		hd:              deps.HdWallet,
		addr:            deps.AddressStore,
		unspent:         deps.UnspentStore,
		bal:             deps.Balance,
		watch:           deps.Watch,
		client:          deps.Client,
		minBlockConfirm: minBlockConfirm,
		mempoolWatchers: make(map[string][]chan struct{}),
		ready:           make(chan struct{}),
	}

	deps.Client.OnScriptHashChange(m.handleScriptHashChange)
	deps.Client.OnNewBlock(m.handleNewBlock)

	return m, nil
}

// SetOnSyncedPath registers the synced-path event handler.
func (m *Manager) SetOnSyncedPath(fn OnSyncedPath) { m.onSyncedPath = fn }

// SetOnNewTx registers the new-tx event handler.
func (m *Manager) SetOnNewTx(fn OnNewTx) { m.onNewTx = fn }

// SetOnSyncEnd registers the sync-end event handler.
func (m *Manager) SetOnSyncEnd(fn OnSyncEnd) { m.onSyncEnd = fn }

// SyncOptions controls one SyncAccount invocation.
type SyncOptions struct {
	// Reset rewinds the HD scan cursor to the start of both chains
	// without discarding previously accumulated ledger state.
	Reset bool

	// Restart additionally wipes AddressStore, UnspentStore and
	// TotalBalance (a full resync from genesis of the wallet's view).
	Restart bool
}

// SyncAccount drives HdWallet.ForEachAccount, fetching and classifying
// history for every visited path. It refuses to run if a scan is already
// in progress (SyncInProgress).
func (m *Manager) SyncAccount(ctx context.Context, opts SyncOptions) error {
	m.mu.Lock()
	if m.syncing {
		m.mu.Unlock()
		return walleterr.New(walleterr.SyncInProgress, "sync already in progress")
	}
	m.syncing = true
	m.halt = false
	m.mu.Unlock()

	defer m.endSync()

	if opts.Restart {
		if err := m.hd.ResetSyncState(); err != nil {
			return err
		}
		if err := m.addr.Clear(); err != nil {
			return err
		}
		if err := m.unspent.Clear(); err != nil {
			return err
		}
		if err := m.bal.Clear(); err != nil {
			return err
		}
	} else if opts.Reset {
		if err := m.hd.ResetSyncState(); err != nil {
			return err
		}
	}

	err := m.hd.ForEachAccount(ctx, func(path keyderiver.Path) (hdwallet.Signal, error) {
		if m.haltRequested() {
			return hdwallet.SignalStop, nil
		}
		return m.syncPath(ctx, path)
	})
	if err != nil {
		return err
	}

	if err := m.unspent.Process(); err != nil {
		return err
	}

	if !m.haltRequested() {
		m.readyOnce.Do(func() { close(m.ready) })
	}
	return nil
}

// Ready returns a channel closed once the first full, uninterrupted
// SyncAccount call completes, for callers that want to wait out initial
// sync before exposing balance/transaction queries.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

func (m *Manager) syncPath(ctx context.Context, path keyderiver.Path) (hdwallet.Signal, error) {
	scriptHash, err := m.deriver.ScriptHash(path)
	if err != nil {
		return hdwallet.SignalNoTx, err
	}

	history, err := m.client.GetHistory(ctx, scriptHash, true)
	if err != nil {
		log.Warnf("fetching history for %s: %v", path, err)
		m.emitSyncedPath(path, false)
		return hdwallet.SignalNoTx, nil
	}

	hasTx := len(history) > 0
	if hasTx {
		if err := m.processHistory(ctx, history, &path, true); err != nil {
			return hdwallet.SignalNoTx, err
		}
	}

	m.emitSyncedPath(path, hasTx)

	if hasTx {
		return hdwallet.SignalHasTx, nil
	}
	return hdwallet.SignalNoTx, nil
}

func (m *Manager) emitSyncedPath(path keyderiver.Path, hasTx bool) {
	if m.onSyncedPath == nil {
		return
	}
	snapshot, err := m.hd.SyncStateSnapshot(path.Chain)
	if err != nil {
		log.Warnf("snapshotting %s state: %v", path.Chain, err)
	}
	m.onSyncedPath(path.Chain, path, hasTx, snapshot)
}

func (m *Manager) haltRequested() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.halt
}

func (m *Manager) endSync() {
	m.mu.Lock()
	m.syncing = false
	done := m.haltDone
	m.haltDone = nil
	m.mu.Unlock()

	if m.onSyncEnd != nil {
		m.onSyncEnd()
	}
	if done != nil {
		close(done)
	}
}

// PauseSync cooperatively halts an in-progress scan: the in-flight path
// completes, then sync-end fires and this call returns. If no scan is
// running it resolves immediately. The next SyncAccount resumes from the
// persisted HD cursor.
func (m *Manager) PauseSync(ctx context.Context) error {
	m.mu.Lock()
	if !m.syncing {
		m.mu.Unlock()
		return nil
	}
	if m.haltDone == nil {
		m.haltDone = make(chan struct{})
	}
	done := m.haltDone
	m.halt = true
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetBalance returns the wallet-wide TotalBalance, or a single address's
// per-state net if address is non-empty.
func (m *Manager) GetBalance(address string) (balance.Balance, error) {
	if address == "" {
		return m.bal.Get()
	}

	rec, ok, err := m.addr.Get(address)
	if err != nil {
		return balance.Balance{}, err
	}
	if !ok {
		return balance.Balance{}, walleterr.New(walleterr.AddressUnknown, "no record for %s", address)
	}

	return balance.Balance{
		Mempool:   rec.Net(ledger.Mempool),
		Pending:   rec.Net(ledger.Pending),
		Confirmed: rec.Net(ledger.Confirmed),
	}, nil
}

// GetTransactions returns a paginated slice of the wallet's transaction
// log.
func (m *Manager) GetTransactions(opts addressstore.PageOptions) ([]*addressstore.TxEntry, error) {
	return m.addr.GetTransactions(opts)
}

// WatchAddress subscribes scriptHash on chain through AddressWatch.
func (m *Manager) WatchAddress(ctx context.Context, scriptHash string, chain keyderiver.Chain) error {
	return m.watch.Subscribe(ctx, chain, scriptHash)
}

// UtxoForAmount reserves UTXOs covering value at the given fee rate.
func (m *Manager) UtxoForAmount(value currency.Amount, feeRateSatPerVByte int64) (*unspentstore.Reservation, error) {
	return m.unspent.GetUtxoForAmount(value, feeRateSatPerVByte)
}

// WatchTxMempool registers a one-shot channel fired the first time txid is
// processed from provider data after registration, whatever its height
// (a broadcast that is already mined when first seen also fires it).
// Fires at most once per registration.
func (m *Manager) WatchTxMempool(txid string) <-chan struct{} {
	ch := make(chan struct{}, 1)

	m.mempoolMu.Lock()
	m.mempoolWatchers[txid] = append(m.mempoolWatchers[txid], ch)
	m.mempoolMu.Unlock()

	return ch
}

func (m *Manager) fireMempoolSeen(txid string) {
	m.mempoolMu.Lock()
	watchers := m.mempoolWatchers[txid]
	delete(m.mempoolWatchers, txid)
	m.mempoolMu.Unlock()

	for _, ch := range watchers {
		ch <- struct{}{}
		close(ch)
	}
}
