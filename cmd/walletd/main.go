// Command walletd wires every package in this module into a single running
// wallet: it loads configuration, opens the on-disk store, connects to the
// configured Electrum-style provider, runs one synchronization pass, and
// prints the resulting balance and transaction history. It is a thin
// assembly point, not a long-running daemon loop: repeated invocations
// resume from the persisted HD scan cursor and ledger state.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/jedib0t/go-pretty/table"
	flags "github.com/jessevdk/go-flags"
	"golang.org/x/time/rate"

	"github.com/electrumgo/walletcore"
	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/addresswatch"
	"github.com/electrumgo/walletcore/balance"
	"github.com/electrumgo/walletcore/build"
	"github.com/electrumgo/walletcore/hdwallet"
	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/metrics"
	"github.com/electrumgo/walletcore/provider/jsonrpc"
	"github.com/electrumgo/walletcore/sync"
	"github.com/electrumgo/walletcore/unspentstore"
	"github.com/electrumgo/walletcore/walletcfg"
	"github.com/electrumgo/walletcore/walletstore"
)

func main() {
	if err := run(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "walletd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := walletcfg.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logWriter := build.NewRotatingLogWriter()
	if err := logWriter.InitLogRotator(filepath.Join(cfg.LogDir, "walletd.log"), 10); err != nil {
		return err
	}
	walletcore.SetupLoggers(logWriter)

	store, err := walletstore.OpenFileStore(filepath.Join(cfg.DataDir, "wallet.db"), false)
	if err != nil {
		return err
	}
	defer store.Close()

	deriver, err := keyderiver.New(cfg.Seed, cfg.NetParams)
	if err != nil {
		return err
	}

	coinType := keyderiver.CoinType(cfg.NetParams)
	hd, err := hdwallet.New(deriver, store, coinType, cfg.GapLimit)
	if err != nil {
		return err
	}

	addrStore, err := addressstore.New(store)
	if err != nil {
		return err
	}
	unspentStore, err := unspentstore.New(store)
	if err != nil {
		return err
	}
	balanceStore, err := balance.New(store)
	if err != nil {
		return err
	}

	client := jsonrpc.New(jsonrpc.Config{
		Addr:        cfg.RPCHost,
		DialTimeout: cfg.RPCDialTimeout,
		RateLimit:   rate.Limit(cfg.RateLimit),
		RateBurst:   cfg.RateBurst,
	})

	watch, err := addresswatch.New(store, client, cfg.MaxWatchPerAcct)
	if err != nil {
		return err
	}

	mgr, err := sync.New(sync.Deps{
		Deriver:         deriver,
		HdWallet:        hd,
		AddressStore:    addrStore,
		UnspentStore:    unspentStore,
		Balance:         balanceStore,
		Watch:           watch,
		Client:          client,
		MinBlockConfirm: cfg.MinBlockConfirm,
	})
	if err != nil {
		return err
	}

	collectors := metrics.New()
	mgr.SetOnSyncedPath(collectors.OnSyncedPath)
	mgr.SetOnNewTx(collectors.OnNewTx)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, collectors)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	if err := watch.Resubscribe(ctx); err != nil {
		return err
	}

	if err := mgr.SyncAccount(ctx, sync.SyncOptions{}); err != nil {
		return err
	}

	bal, err := mgr.GetBalance("")
	if err != nil {
		return err
	}
	collectors.ObserveBalance(bal)

	printBalance(bal)

	txs, err := mgr.GetTransactions(addressstore.PageOptions{Limit: 20, Reverse: true})
	if err != nil {
		return err
	}
	printTransactions(txs)

	if cfg.DebugLevel == "trace" {
		spew.Dump(bal)
	}

	return nil
}

func serveMetrics(addr string, c *metrics.Collectors) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	_ = http.ListenAndServe(addr, mux)
}

func printBalance(bal balance.Balance) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Tier", "Amount (sat)"})
	t.AppendRow(table.Row{"Mempool", bal.Mempool.Sat()})
	t.AppendRow(table.Row{"Pending", bal.Pending.Sat()})
	t.AppendRow(table.Row{"Confirmed", bal.Confirmed.Sat()})
	t.Render()
}

func printTransactions(txs []*addressstore.TxEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Txid", "Direction", "Amount (sat)", "Fee (sat)", "Height"})
	for _, tx := range txs {
		t.AppendRow(table.Row{tx.Txid, tx.Direction.String(), tx.Amount.Sat(), tx.Fee.Sat(), tx.Height})
	}
	t.Render()
}
