package addresswatch

import "github.com/btcsuite/btclog"

var log = btclog.Disabled

// UseLogger wires logger as the addresswatch package's logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}
