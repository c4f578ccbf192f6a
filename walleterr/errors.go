// Package walleterr declares the error-kind taxonomy the wallet core
// surfaces to callers.
package walleterr

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind is a sentinel error identifying one of the nine error classes the
// core can raise. Callers should compare with errors.Is against the
// package-level Kind values, not against the wrapped message text.
type Kind struct {
	name string
}

func (k *Kind) Error() string { return k.name }

var (
	// InvalidNetwork is returned when the configured network name does
	// not match a known chaincfg.Params.
	InvalidNetwork = &Kind{"invalid network"}

	// ProviderUnavailable is returned when the history provider cannot
	// be reached after exhausting reconnection attempts.
	ProviderUnavailable = &Kind{"provider unavailable"}

	// ProviderRpcError wraps a provider-reported JSON-RPC error.
	ProviderRpcError = &Kind{"provider rpc error"}

	// InsufficientFunds is returned when coin selection cannot meet the
	// requested amount plus fee from the available UTXO set.
	InsufficientFunds = &Kind{"insufficient funds"}

	// InvalidAddress is returned when a destination address fails
	// bech32 decoding or does not match the configured network.
	InvalidAddress = &Kind{"invalid address"}

	// DustOutput is returned when an output would fall below the dust
	// threshold.
	DustOutput = &Kind{"dust output"}

	// SyncInProgress is returned when SyncAccount is called while a
	// scan is already running.
	SyncInProgress = &Kind{"sync in progress"}

	// NotReady is returned when a component cannot be set up: a missing
	// dependency, an unusable data directory or seed, or a store that
	// fails to open.
	NotReady = &Kind{"wallet not ready"}

	// AddressUnknown is returned when an operation references an
	// address the wallet has no record of.
	AddressUnknown = &Kind{"address unknown"}
)

// kindedError carries both the Kind taxonomy (for errors.Is) and a captured
// stack trace (via go-errors) for diagnostic logging at the point an error
// is first raised.
type kindedError struct {
	kind  *Kind
	msg   string
	cause error
	stack *goerrors.Error
}

func (e *kindedError) Error() string {
	if e.msg == "" {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.msg
}

func (e *kindedError) Unwrap() error {
	return e.cause
}

func (e *kindedError) Is(target error) bool {
	k, ok := target.(*Kind)
	return ok && k == e.kind
}

// ErrorStack returns the stack trace captured when this error was raised,
// for inclusion in error-level log lines.
func (e *kindedError) ErrorStack() string {
	return e.stack.ErrorStack()
}

// Wrap builds a kinded error wrapping cause (which may be nil), capturing a
// stack trace at the call site.
func Wrap(kind *Kind, cause error, format string, args ...interface{}) error {
	return &kindedError{
		kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		cause: cause,
		stack: goerrors.Wrap(errOrKind(cause, kind), 2),
	}
}

// New builds a kinded error with no underlying cause.
func New(kind *Kind, format string, args ...interface{}) error {
	return Wrap(kind, nil, format, args...)
}

func errOrKind(cause error, kind *Kind) error {
	if cause != nil {
		return cause
	}
	return kind
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind *Kind) bool {
	return stderrors.Is(err, kind)
}
