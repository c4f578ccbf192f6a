package addressstore

import (
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/ledger"
)

// ToAddressMeta describes one output of a transaction: its value and
// whether it pays one of our own addresses.
type ToAddressMeta struct {
	Address   string          `json:"address"`
	Amount    currency.Amount `json:"amount"`
	OwnOutput bool            `json:"own_output"`
}

// TxEntry is the wallet-facing summary of one observed transaction.
type TxEntry struct {
	Txid           string           `json:"txid"`
	FromAddresses  []string         `json:"from_addresses"`
	ToAddresses    []string         `json:"to_addresses"`
	ToAddressMeta  []ToAddressMeta  `json:"to_address_meta"`
	Fee            currency.Amount  `json:"fee"`
	Amount         currency.Amount `json:"amount"`
	Height         int64            `json:"height"`
	Direction      ledger.Direction `json:"direction"`
	InputOutpoints []ledger.Outpoint `json:"input_outpoints"`
}

// SentTxMeta is builder-side metadata retained for a transaction this
// wallet broadcast, before the provider's own history confirms it. It lets
// a second send reuse the first's change output without waiting on the
// provider round-trip.
type SentTxMeta struct {
	Txid           string            `json:"txid"`
	Hex            string            `json:"hex"`
	Label          string            `json:"label"`
	SelectedInputs []ledger.Outpoint `json:"selected_inputs"`
	ChangeAddress  string            `json:"change_address"`
	ChangeVout     uint32            `json:"change_vout"`
	ChangeAmount   currency.Amount   `json:"change_amount"`
}
