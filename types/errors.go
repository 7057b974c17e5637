package types

import "errors"

// Error kinds surfaced by the bridge. Every one of them aborts the call with
// no state change.
var (
	ErrUnauthorized       = errors.New("bridge: caller is not the sequencer")
	ErrInvalidProof       = errors.New("bridge: proof rejected")
	ErrAlreadyInitialized = errors.New("bridge: already initialized")
	ErrSequenceOverflow   = errors.New("bridge: batch sequence at capacity")
	ErrAmountOverflow     = errors.New("bridge: amount overflows ledger")
	ErrInsufficientEscrow = errors.New("bridge: insufficient escrow balance")
	ErrTransferFailed     = errors.New("bridge: custody transfer failed")
	ErrNotInitialized     = errors.New("bridge: not initialized")
	ErrZeroAmount         = errors.New("bridge: amount must be positive")
	ErrInvalidSequencer   = errors.New("bridge: sequencer identity must be set")
	ErrNonceOverflow      = errors.New("bridge: record nonce at capacity")
)

// Stable numeric codes reported over RPC. The first three match the user
// error codes of the deployed contract.
const (
	CodeUnauthorized       = 1
	CodeInvalidProof       = 2
	CodeAlreadyInitialized = 3
	CodeSequenceOverflow   = 4
	CodeAmountOverflow     = 5
	CodeInsufficientEscrow = 6
	CodeTransferFailed     = 7
	CodeNotInitialized     = 8
	CodeZeroAmount         = 9
	CodeInvalidSequencer   = 10
	CodeNonceOverflow      = 11
	CodeInternal           = 100
)

var errorCodes = []struct {
	err  error
	code int
	kind string
}{
	{ErrUnauthorized, CodeUnauthorized, "unauthorized"},
	{ErrInvalidProof, CodeInvalidProof, "invalid_proof"},
	{ErrAlreadyInitialized, CodeAlreadyInitialized, "already_initialized"},
	{ErrSequenceOverflow, CodeSequenceOverflow, "sequence_overflow"},
	{ErrAmountOverflow, CodeAmountOverflow, "amount_overflow"},
	{ErrInsufficientEscrow, CodeInsufficientEscrow, "insufficient_escrow"},
	{ErrTransferFailed, CodeTransferFailed, "transfer_failed"},
	{ErrNotInitialized, CodeNotInitialized, "not_initialized"},
	{ErrZeroAmount, CodeZeroAmount, "zero_amount"},
	{ErrInvalidSequencer, CodeInvalidSequencer, "invalid_sequencer"},
	{ErrNonceOverflow, CodeNonceOverflow, "nonce_overflow"},
}

// Code maps err to its stable code. Errors outside the taxonomy are
// CodeInternal; a nil error is 0.
func Code(err error) int {
	if err == nil {
		return 0
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Kind names the error kind of err for logs and metric labels.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.kind
		}
	}
	return "internal"
}
