// Package ledger declares the small vocabulary shared by every accounting
// component: the three-tier lifecycle state of an output, the outpoint
// identity that's tracked across that lifecycle, and the direction a
// transaction is classified under relative to the wallet.
package ledger

import "fmt"

// State is where an outpoint sits in its mempool/pending/confirmed
// lifecycle. Promotion is mempool -> pending -> confirmed; demotion is not
// observed in normal operation.
type State int

const (
	// Mempool means the transaction has height==0 (unconfirmed).
	Mempool State = iota
	// Pending means the transaction is mined but shallower than
	// min_block_confirm.
	Pending
	// Confirmed means the transaction has reached min_block_confirm depth.
	Confirmed
)

// String renders the state name for logging.
func (s State) String() string {
	switch s {
	case Mempool:
		return "mempool"
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// States lists every lifecycle state, in promotion order.
var States = []State{Mempool, Pending, Confirmed}

// Direction classifies a transaction relative to the wallet.
type Direction int

const (
	// Unknown is assigned when at least one input belongs to the wallet
	// but the transaction has no outputs.
	Unknown Direction = iota
	// Incoming means no input belongs to the wallet.
	Incoming
	// Outgoing means at least one input belongs to the wallet and at
	// least one output exists.
	Outgoing
	// Internal means every input and every output belongs to the wallet.
	Internal
)

// String renders the direction name for logging and TxEntry display.
func (d Direction) String() string {
	switch d {
	case Incoming:
		return "INCOMING"
	case Outgoing:
		return "OUTGOING"
	case Internal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Outpoint is the txid:vout pair uniquely identifying a UTXO across its
// lifecycle, or the prev_txid:prev_vout of an input spending one.
type Outpoint struct {
	Txid string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// String renders the outpoint as "txid:vout".
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.Txid, o.Vout)
}
