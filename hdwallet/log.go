package hdwallet

import "github.com/btcsuite/btclog"

// log is the package-level logger, disabled until UseLogger is called by
// the application's SetupLoggers.
var log = btclog.Disabled

// UseLogger wires logger as the hdwallet package's logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
