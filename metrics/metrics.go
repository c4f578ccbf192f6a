// Package metrics exposes walletd's internal counters and gauges as
// Prometheus collectors: sync progress, provider reconnect activity, and
// the three-tier balance snapshot. It wires sync.Manager's event callbacks
// into a single registry a caller serves over HTTP; provider.Client has no
// reconnect callback, so the reconnect counter moves only through explicit
// IncReconnect calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/balance"
	"github.com/electrumgo/walletcore/hdwallet"
	"github.com/electrumgo/walletcore/keyderiver"
)

// Collectors bundles every metric walletd reports. Registry is exposed so
// a caller can register additional collectors before serving it.
type Collectors struct {
	Registry *prometheus.Registry

	addressesScanned *prometheus.CounterVec
	syncedPaths      *prometheus.CounterVec
	newTxSeen        prometheus.Counter
	reconnects       prometheus.Counter
	balanceMempool   prometheus.Gauge
	balancePending   prometheus.Gauge
	balanceConfirmed prometheus.Gauge
}

// New builds a Collectors with every metric registered against a fresh
// registry.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		addressesScanned: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletd",
			Name:      "addresses_scanned_total",
			Help:      "Addresses visited during gap-limit scanning, by chain and whether they had history.",
		}, []string{"chain", "has_tx"}),
		syncedPaths: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletd",
			Name:      "synced_paths_total",
			Help:      "Derivation paths whose history has been fetched and classified, by chain.",
		}, []string{"chain"}),
		newTxSeen: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "walletd",
			Name:      "new_transactions_total",
			Help:      "Transactions observed for the first time in mempool state.",
		}),
		reconnects: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "walletd",
			Name:      "provider_reconnects_total",
			Help:      "Times the provider connection was dropped and re-established.",
		}),
		balanceMempool: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "walletd",
			Name:      "balance_mempool_sat",
			Help:      "Wallet-wide mempool-tier balance, in satoshis.",
		}),
		balancePending: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "walletd",
			Name:      "balance_pending_sat",
			Help:      "Wallet-wide pending-tier balance, in satoshis.",
		}),
		balanceConfirmed: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "walletd",
			Name:      "balance_confirmed_sat",
			Help:      "Wallet-wide confirmed-tier balance, in satoshis.",
		}),
	}

	return c
}

// OnSyncedPath is wired into sync.Manager.SetOnSyncedPath.
func (c *Collectors) OnSyncedPath(chain keyderiver.Chain, path keyderiver.Path, hasTx bool, _ hdwallet.SyncStateSnapshot) {
	c.syncedPaths.WithLabelValues(chain.String()).Inc()
	c.addressesScanned.WithLabelValues(chain.String(), boolLabel(hasTx)).Inc()
}

// OnNewTx is wired into sync.Manager.SetOnNewTx.
func (c *Collectors) OnNewTx(_ *addressstore.TxEntry) {
	c.newTxSeen.Inc()
}

// ObserveBalance snapshots bal into the three balance gauges. Callers
// typically invoke this after every SyncAccount completes.
func (c *Collectors) ObserveBalance(bal balance.Balance) {
	c.balanceMempool.Set(float64(bal.Mempool.Sat()))
	c.balancePending.Set(float64(bal.Pending.Sat()))
	c.balanceConfirmed.Set(float64(bal.Confirmed.Sat()))
}

// IncReconnect records one provider reconnect attempt.
func (c *Collectors) IncReconnect() {
	c.reconnects.Inc()
}

// Handler returns the HTTP handler serving c's registry in the standard
// Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
