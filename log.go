package walletcore

import (
	"github.com/btcsuite/btclog"
	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/addresswatch"
	"github.com/electrumgo/walletcore/balance"
	"github.com/electrumgo/walletcore/build"
	"github.com/electrumgo/walletcore/hdwallet"
	"github.com/electrumgo/walletcore/provider/jsonrpc"
	"github.com/electrumgo/walletcore/sync"
	"github.com/electrumgo/walletcore/txbuilder"
	"github.com/electrumgo/walletcore/unspentstore"
)

// replaceableLogger is a thin wrapper around a logger that is used so the
// logger can be replaced easily without some black pointer magic.
type replaceableLogger struct {
	btclog.Logger
	subsystem string
}

// Loggers can not be used before the log rotator has been initialized with a
// log file. This must be performed early during application startup by
// calling InitLogRotator() on the main log writer instance in the config.
var (
	// pkgLoggers is a list of all package level loggers that are
	// registered. They are tracked here so they can be replaced once the
	// SetupLoggers function is called with the final root logger.
	pkgLoggers []*replaceableLogger

	// addPkgLogger creates a new replaceable package level logger and
	// adds it to the list of loggers that are replaced again later, once
	// the final root logger is ready.
	addPkgLogger = func(subsystem string) *replaceableLogger {
		l := &replaceableLogger{
			Logger:    build.NewSubLogger(subsystem, nil),
			subsystem: subsystem,
		}
		pkgLoggers = append(pkgLoggers, l)
		return l
	}

	// walletLog is the top-level logger used directly by this package.
	walletLog = addPkgLogger("WLCR")
)

// SetupLoggers initializes all package-global logger variables using root
// as the backing rotating writer. Sub-packages register their own loggers
// through AddSubLogger calls appended here as they're wired up.
func SetupLoggers(root *build.RotatingLogWriter) {
	for _, l := range pkgLoggers {
		l.Logger = build.NewSubLogger(l.subsystem, root.GenSubLogger)
		SetSubLogger(root, l.subsystem, l.Logger)
	}

	AddSubLogger(root, "HDWL", hdwallet.UseLogger)
	AddSubLogger(root, "ADST", addressstore.UseLogger)
	AddSubLogger(root, "UTXO", unspentstore.UseLogger)
	AddSubLogger(root, "BLNC", balance.UseLogger)
	AddSubLogger(root, "JRPC", jsonrpc.UseLogger)
	AddSubLogger(root, "ADWA", addresswatch.UseLogger)
	AddSubLogger(root, "SYNC", sync.UseLogger)
	AddSubLogger(root, "TXBD", txbuilder.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.RotatingLogWriter, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// sub system.
func SetSubLogger(root *build.RotatingLogWriter, subsystem string,
	logger btclog.Logger, useLoggers ...func(btclog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure is used to provide a closure over expensive logging operations
// so they don't have to be performed when the logging level doesn't warrant
// it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// newLogClosure returns a new closure over a function that returns a string
// which itself provides a Stringer interface so that it can be used with
// the logging system.
func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
