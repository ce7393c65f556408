// Package relayerr defines the error taxonomy used across the relayer
// core: ConfigError, NetworkError, ChainExecutionError, ProtocolError,
// InvariantViolation, and the shutdown sentinel. Callers classify an error
// by errors.Is/As against the sentinels below rather than string matching.
package relayerr

import (
	"errors"
	"fmt"
)

// Sentinel categories. Wrapped errors carry one of these via errors.Is.
var (
	// ErrConfig marks a fatal startup configuration problem.
	ErrConfig = errors.New("config error")

	// ErrNetwork marks a transport/gateway failure eligible for retry.
	ErrNetwork = errors.New("network error")

	// ErrChainExecution marks a non-retryable on-chain execution failure
	// (deliver-tx non-zero code, missing event attribute, proof op shape
	// mismatch). The packet reappears next iteration if still pending.
	ErrChainExecution = errors.New("chain execution error")

	// ErrProtocol marks a proof/consensus mismatch: proof key mismatch,
	// unexpected client-state type URL, header mismatch. May indicate a
	// buggy counterparty or an attack; never retried automatically.
	ErrProtocol = errors.New("protocol error")

	// ErrInvariant marks a programmer error (batch-length mismatch,
	// negative height, unknown chain kind). Aborts the current operation.
	ErrInvariant = errors.New("invariant violation")

	// ErrShutdown is returned by in-flight operations after Supervisor.stop
	// requests cancellation; callers unwind without logging it as a failure.
	ErrShutdown = errors.New("shutdown")
)

// ConfigError wraps ErrConfig with the offending field/value.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
}

// NetworkError wraps ErrNetwork, preserving the underlying transport error.
func NetworkError(cause error) error {
	return fmt.Errorf("%w: %v", ErrNetwork, cause)
}

// ChainExecutionError wraps ErrChainExecution with the raw deliver_tx log
// from a failed transaction.
func ChainExecutionError(rawLog string) error {
	return fmt.Errorf("%w: %s", ErrChainExecution, rawLog)
}

// ProtocolError wraps ErrProtocol with diagnostic context (e.g. tx hash).
func ProtocolError(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrProtocol}, args...)...)
}

// InvariantViolation wraps ErrInvariant with the violated invariant.
func InvariantViolation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...)
}

// IsRetryable reports whether err belongs to a category the retry policy
// is allowed to retry. Only network-class errors qualify; ChainExecutionError,
// ProtocolError, and InvariantViolation are not retried at their origin.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
