package unspentstore

// TxSizeEstimator accumulates the virtual size of a transaction made
// exclusively of native P2WPKH inputs and outputs, the only script type
// this wallet produces (BIP84, non-goals exclude every other address
// type). Figures are the standard BIP141 weight-unit constants for a
// P2WPKH input (41 base bytes + 108 weight units of witness data, vsize
// 68) and output (31 bytes), plus fixed overhead for version, locktime,
// varints and the segwit marker/flag.
type TxSizeEstimator struct {
	numInputs  int
	numOutputs int
}

const (
	baseTxOverheadVBytes = 11
	p2wkhInputVBytes     = 68
	p2wkhOutputVBytes    = 31
)

// AddP2WKHInput accounts for one more native-segwit input.
func (e *TxSizeEstimator) AddP2WKHInput() {
	e.numInputs++
}

// AddP2WKHOutput accounts for one more native-segwit output.
func (e *TxSizeEstimator) AddP2WKHOutput() {
	e.numOutputs++
}

// VSize returns the estimated virtual size, in vbytes.
func (e *TxSizeEstimator) VSize() int64 {
	return int64(baseTxOverheadVBytes + e.numInputs*p2wkhInputVBytes + e.numOutputs*p2wkhOutputVBytes)
}
