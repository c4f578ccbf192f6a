package unspentstore

import (
	"sort"

	"github.com/electrumgo/walletcore/currency"
	"github.com/electrumgo/walletcore/walleterr"
)

// selectDescending accumulates coins in descending value order until their
// sum reaches amt. Returns the selected subset and its total.
func selectDescending(amt currency.Amount, coins []*Utxo) (currency.Amount, []*Utxo, error) {
	sorted := make([]*Utxo, len(coins))
	copy(sorted, coins)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})

	var total currency.Amount
	for i, coin := range sorted {
		total = total.Add(coin.Value)
		if total >= amt {
			return total, sorted[:i+1], nil
		}
	}

	return 0, nil, walleterr.New(walleterr.InsufficientFunds,
		"need %v, only %v available", amt, total)
}

// selectForAmount runs the iterative fee-feedback coin selection: select
// enough coins for amt, estimate the vsize of a 2-output (destination +
// change) transaction with those inputs, compute the required fee at
// feeRateSatPerVByte, and if the overshoot from selection doesn't cover the
// fee, re-select for a larger amount. Repeats until stable.
//
// confirmed is tried first; if it alone cannot cover amt, pending is added
// to the pool (mempool-only funds are never selected, per policy).
func selectForAmount(amt currency.Amount, feeRateSatPerVByte int64, confirmed, pending []*Utxo) ([]*Utxo, currency.Amount, currency.Amount, error) {
	pools := [][]*Utxo{confirmed, append(append([]*Utxo{}, confirmed...), pending...)}

	var lastErr error
	for _, pool := range pools {
		selected, change, fee, err := coinSelect(amt, feeRateSatPerVByte, pool)
		if err == nil {
			return selected, change, fee, nil
		}
		lastErr = err
	}

	return nil, 0, 0, lastErr
}

func coinSelect(amt currency.Amount, feeRateSatPerVByte int64, coins []*Utxo) ([]*Utxo, currency.Amount, currency.Amount, error) {
	amtNeeded := amt

	for {
		total, selected, err := selectDescending(amtNeeded, coins)
		if err != nil {
			return nil, 0, 0, err
		}

		var est TxSizeEstimator
		for range selected {
			est.AddP2WKHInput()
		}
		est.AddP2WKHOutput() // destination
		est.AddP2WKHOutput() // change

		fee := currency.Amount(est.VSize() * feeRateSatPerVByte)
		overshoot := total.Sub(amt)

		if overshoot < fee {
			amtNeeded = amt.Add(fee)
			continue
		}

		change := overshoot.Sub(fee)
		return selected, change, fee, nil
	}
}
