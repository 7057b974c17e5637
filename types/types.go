package types

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// Root is the opaque commitment summarizing the L2 ledger at a given batch.
type Root []byte

// ParseRoot decodes a 0x-prefixed hex string into a Root.
func ParseRoot(s string) (Root, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	return Root(b), nil
}

func (r Root) String() string {
	return hexutil.Encode(r)
}

// Copy returns a root that shares no memory with r.
func (r Root) Copy() Root {
	if r == nil {
		return nil
	}
	out := make(Root, len(r))
	copy(out, r)
	return out
}

func (r Root) Equal(other Root) bool {
	return bytes.Equal(r, other)
}

func (r Root) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Root) UnmarshalText(input []byte) error {
	b, err := hexutil.Decode(string(input))
	if err != nil {
		return err
	}
	*r = Root(b)
	return nil
}

// BridgeState is the read-only view returned by the state query.
type BridgeState struct {
	Initialized     bool         `json:"initialized"`
	CurrentRoot     Root         `json:"current_root"`
	BatchSequence   uint64       `json:"batch_sequence"`
	Sequencer       string       `json:"sequencer"`
	EscrowBalance   *uint256.Int `json:"escrow_balance"`
	TotalDeposited  *uint256.Int `json:"total_deposited"`
	TotalWithdrawn  *uint256.Int `json:"total_withdrawn"`
	DepositCount    uint64       `json:"deposit_count"`
	WithdrawalCount uint64       `json:"withdrawal_count"`
}
