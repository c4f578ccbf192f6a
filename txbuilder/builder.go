// Package txbuilder assembles, signs, and broadcasts a change-returning
// native SegWit (P2WPKH) transaction: it reserves inputs from
// UnspentStore, derives a fresh internal change address via HdWallet,
// signs each input with the per-address key from KeyDeriver (BIP143
// sighash), broadcasts via the provider, and returns a channel that the
// sync manager fires once it observes the broadcast transaction.
package txbuilder

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"

	"github.com/electrumgo/walletcore/addressstore"
	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/hdwallet"
	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/ledger"
	"github.com/electrumgo/walletcore/provider"
	"github.com/electrumgo/walletcore/sync"
	"github.com/electrumgo/walletcore/unspentstore"
	"github.com/electrumgo/walletcore/walleterr"
)

// DustThreshold is the minimum output value; a change output
// below this is omitted rather than created.
const DustThreshold currency.Amount = 546

// defaultRelayFeePerKb backs the secondary, defense-in-depth dust check
// via txrules.IsDustAmount; the primary gate is DustThreshold above.
var defaultRelayFeePerKb = btcutil.Amount(1000)

// SendRequest parameterizes one Send call.
type SendRequest struct {
	Address            string
	Amount             currency.Amount
	FeeRateSatPerVByte int64
	DeductFee          bool
	Label              string
}

// SendResult mirrors the on-chain transaction the provider will echo back:
// vSize, input/output counts and values must agree with it byte-for-byte.
type SendResult struct {
	Txid          string
	Hex           string
	VSize         int64
	FeeRate       int64
	Fee           currency.Amount
	Utxo          []ledger.Outpoint
	ChangeAddress string
	ChangeVout    int32
	ChangeAmount  currency.Amount
	TotalSpent    currency.Amount
	ToAddresses   []string
	FromAddresses []string
	Amount        currency.Amount
}

// Builder is the transaction construction, signing and broadcast
// coordinator.
type Builder struct {
	params  *chaincfg.Params
	deriver *keyderiver.Deriver
	hd      *hdwallet.Wallet
	addr    *addressstore.Store
	unspent *unspentstore.Store
	sync    *sync.Manager
	client  provider.Client
}

// New builds a Builder.
func New(params *chaincfg.Params, deriver *keyderiver.Deriver, hd *hdwallet.Wallet,
	addr *addressstore.Store, unspent *unspentstore.Store, syncMgr *sync.Manager, client provider.Client) *Builder {

	return &Builder{
		params:  params,
		deriver: deriver,
		hd:      hd,
		addr:    addr,
		unspent: unspent,
		sync:    syncMgr,
		client:  client,
	}
}

// Send performs the full send pipeline: validate
// destination, reserve inputs, derive change, build and sign the witness
// transaction, broadcast it, and subscribe to its mempool arrival.
// Mempool arrival is signalled on the returned channel, not awaited by
// this call: Send itself returns once the signed transaction has been
// accepted by the provider (or reservation unlocked on failure).
func (b *Builder) Send(ctx context.Context, req SendRequest) (*SendResult, <-chan struct{}, error) {
	destAddr, err := btcutil.DecodeAddress(req.Address, b.params)
	if err != nil || !destAddr.IsForNet(b.params) {
		return nil, nil, walleterr.Wrap(walleterr.InvalidAddress, err, "invalid destination address %q", req.Address)
	}

	reservation, err := b.unspent.GetUtxoForAmount(req.Amount, req.FeeRateSatPerVByte)
	if err != nil {
		return nil, nil, err
	}

	result, err := b.buildAndSign(destAddr, req, reservation)
	if err != nil {
		_ = b.unspent.Unlock(reservation)
		return nil, nil, err
	}

	txid, err := b.client.Broadcast(ctx, result.Hex)
	if err != nil {
		_ = b.unspent.Unlock(reservation)
		return nil, nil, walleterr.Wrap(walleterr.ProviderRpcError, err, "broadcasting transaction")
	}
	result.Txid = txid

	meta := &addressstore.SentTxMeta{
		Txid:          txid,
		Hex:           result.Hex,
		Label:         req.Label,
		ChangeAddress: result.ChangeAddress,
		ChangeVout:    uint32(result.ChangeVout),
		ChangeAmount:  result.ChangeAmount,
	}
	for _, u := range reservation.Utxos {
		meta.SelectedInputs = append(meta.SelectedInputs, u.Outpoint)
	}
	if err := b.addr.AddSentTx(meta); err != nil {
		log.Warnf("retaining sent-tx metadata for %s: %v", txid, err)
	}

	mempoolSeen := b.sync.WatchTxMempool(txid)
	return result, mempoolSeen, nil
}

func (b *Builder) buildAndSign(destAddr btcutil.Address, req SendRequest, reservation *unspentstore.Reservation) (*SendResult, error) {
	destScript, err := txscript.PayToAddrScript(destAddr)
	if err != nil {
		return nil, err
	}

	changeInfo, err := b.hd.GetNewAddress(keyderiver.Internal)
	if err != nil {
		return nil, err
	}
	changeAddr, err := btcutil.DecodeAddress(changeInfo.Address, b.params)
	if err != nil {
		return nil, err
	}
	changeScript, err := txscript.PayToAddrScript(changeAddr)
	if err != nil {
		return nil, err
	}

	fee := reservation.Fee
	destAmount := req.Amount
	changeAmount := reservation.Change

	if req.DeductFee {
		if destAmount <= fee {
			return nil, walleterr.New(walleterr.InsufficientFunds, "amount does not cover fee")
		}
		destAmount = destAmount.Sub(fee)
		changeAmount = changeAmount.Add(fee)
	} else if changeAmount < 0 {
		return nil, walleterr.New(walleterr.InsufficientFunds, "insufficient funds for amount plus fee")
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(reservation.Utxos))
	for _, u := range reservation.Utxos {
		hash, err := chainhash.NewHashFromStr(u.Outpoint.Txid)
		if err != nil {
			return nil, err
		}
		op := wire.NewOutPoint(hash, u.Outpoint.Vout)
		tx.AddTxIn(wire.NewTxIn(op, nil, nil))

		pkScript, err := hex.DecodeString(u.PkScript)
		if err != nil {
			return nil, err
		}
		prevOuts[*op] = wire.NewTxOut(u.Value.Sat(), pkScript)
	}

	tx.AddTxOut(wire.NewTxOut(destAmount.Sat(), destScript))

	changeVout := int32(-1)
	if changeAmount >= DustThreshold && !txrules.IsDustAmount(btcutil.Amount(changeAmount.Sat()), len(changeScript), defaultRelayFeePerKb) {
		tx.AddTxOut(wire.NewTxOut(changeAmount.Sat(), changeScript))
		changeVout = int32(len(tx.TxOut) - 1)
	} else {
		changeAmount = 0
	}

	if err := b.signAllInputs(tx, reservation.Utxos, prevOuts); err != nil {
		return nil, err
	}

	vsize := mempoolVSize(tx)
	rawHex, err := serializeTx(tx)
	if err != nil {
		return nil, err
	}

	result := &SendResult{
		Hex:           rawHex,
		VSize:         vsize,
		FeeRate:       req.FeeRateSatPerVByte,
		Fee:           fee,
		ChangeAddress: changeInfo.Address,
		ChangeVout:    changeVout,
		ChangeAmount:  changeAmount,
		TotalSpent:    reservation.Total,
		ToAddresses:   []string{req.Address},
		Amount:        destAmount,
	}
	for _, u := range reservation.Utxos {
		result.Utxo = append(result.Utxo, u.Outpoint)
		result.FromAddresses = append(result.FromAddresses, u.Address)
	}

	return result, nil
}

func (b *Builder) signAllInputs(tx *wire.MsgTx, utxos []*unspentstore.Utxo, prevOuts map[wire.OutPoint]*wire.TxOut) error {
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, u := range utxos {
		privKey, err := b.deriver.PrivateKey(u.Path)
		if err != nil {
			return err
		}

		prevOut := prevOuts[tx.TxIn[i].PreviousOutPoint]
		witness, err := txscript.WitnessSignature(tx, sigHashes, i, prevOut.Value, prevOut.PkScript,
			txscript.SigHashAll, privKey, true)
		privKey.Zero()
		if err != nil {
			return err
		}
		tx.TxIn[i].Witness = witness
	}
	return nil
}

// mempoolVSize computes the transaction's virtual size per BIP141:
// ceil((3*baseSize + totalSize) / 4).
func mempoolVSize(tx *wire.MsgTx) int64 {
	baseSize := tx.SerializeSizeStripped()
	totalSize := tx.SerializeSize()
	weight := baseSize*3 + totalSize
	return int64((weight + 3) / 4)
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf []byte
	w := byteSliceWriter{&buf}
	if err := tx.Serialize(w); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// byteSliceWriter adapts a []byte pointer to io.Writer without pulling in
// bytes.Buffer just for one append loop.
type byteSliceWriter struct {
	buf *[]byte
}

func (w byteSliceWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}
