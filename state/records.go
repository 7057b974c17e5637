package state

import (
	"github.com/airchains-network/settlement-bridge/custody"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DepositRecord is the on-chain trace of a deposit. The sequencer watches
// these and credits L2Address in a later batch.
type DepositRecord struct {
	Nonce     uint64             `json:"nonce"`
	ID        common.Hash        `json:"id"`
	Caller    identity.Identity  `json:"caller"`
	Source    custody.AccountRef `json:"source"`
	L2Address string             `json:"l2_address"`
	Amount    *uint256.Int       `json:"amount"`
	Timestamp int64              `json:"timestamp"`
}

// WithdrawalRecord is the trace of a completed withdrawal.
type WithdrawalRecord struct {
	Nonce     uint64             `json:"nonce"`
	ID        common.Hash        `json:"id"`
	Caller    identity.Identity  `json:"caller"`
	Recipient custody.AccountRef `json:"recipient"`
	Amount    *uint256.Int       `json:"amount"`
	ProofHash common.Hash        `json:"proof_hash"`
	Timestamp int64              `json:"timestamp"`
}
