package hdwallet

import (
	"encoding/json"

	"github.com/electrumgo/walletcore/keyderiver"
	"github.com/electrumgo/walletcore/walletstore"
)

// chainState is the persisted cursor for one chain (external or internal):
// where the next gap-limit scan resumes, how many consecutive empty paths
// have been seen, the highest index observed to carry a transaction, and
// the next index available to hand out via GetNewAddress.
type chainState struct {
	NextScanIndex  uint32 `json:"next_scan_index"`
	GapCount       uint32 `json:"gap_count"`
	LastHasTxIndex int64  `json:"last_has_tx_index"`
	NextHandOut    uint32 `json:"next_hand_out"`
}

func freshChainState() chainState {
	return chainState{LastHasTxIndex: -1}
}

func stateKey(chain keyderiver.Chain) []byte {
	return []byte("cursor/" + chain.String())
}

func loadChainState(ns walletstore.KVStore, chain keyderiver.Chain) (chainState, error) {
	raw, ok, err := ns.Get(stateKey(chain))
	if err != nil {
		return chainState{}, err
	}
	if !ok {
		return freshChainState(), nil
	}

	var s chainState
	if err := json.Unmarshal(raw, &s); err != nil {
		return chainState{}, err
	}
	return s, nil
}

func saveChainState(ns walletstore.KVStore, chain keyderiver.Chain, s chainState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return ns.Set(stateKey(chain), raw)
}
