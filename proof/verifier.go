// Package proof decides whether a state transition is backed by a valid
// proof. The bridge treats every implementation as a black box.
package proof

import (
	"context"
	"fmt"

	"github.com/airchains-network/settlement-bridge/types"
	"github.com/holiman/uint256"
)

// Kind tells a verifier which operation a transition belongs to.
type Kind uint8

const (
	KindBatch Kind = iota + 1
	KindWithdrawal
)

func (k Kind) String() string {
	switch k {
	case KindBatch:
		return "batch"
	case KindWithdrawal:
		return "withdrawal"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Transition is the claim a proof must support. For a batch PreviousRoot
// and NewRoot are the roots before and after, and Sequence is the number
// the batch will get. For a withdrawal PreviousRoot is the live root and
// Amount, Recipient and Nonce describe the payout.
type Transition struct {
	Kind         Kind
	PreviousRoot types.Root
	NewRoot      types.Root
	Sequence     uint64
	Amount       *uint256.Int
	Recipient    string
	Nonce        uint64
}

// Verifier is the pluggable validity check. A false result or an error
// both reject the transition.
type Verifier interface {
	Verify(ctx context.Context, t Transition, proof []byte) (bool, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, t Transition, proof []byte) (bool, error)

func (f VerifierFunc) Verify(ctx context.Context, t Transition, proof []byte) (bool, error) {
	return f(ctx, t, proof)
}

// Policy names accepted by New.
const (
	PolicyNonEmpty = "nonempty"
	PolicyAccept   = "accept"
	PolicyReject   = "reject"
	PolicyExpr     = "expr"
	PolicyMerkle   = "merkle"
	PolicyRemote   = "remote"
)

// New builds the local verifier named by policy. The merkle policy checks
// batches with expression when one is given, and with NonEmpty otherwise.
// PolicyRemote needs a network client and is built by the prover package.
func New(policy, expression string) (Verifier, error) {
	switch policy {
	case "", PolicyNonEmpty:
		return NonEmpty{}, nil
	case PolicyAccept:
		return AcceptAll{}, nil
	case PolicyReject:
		return RejectAll{}, nil
	case PolicyExpr:
		return NewExprPolicy(expression)
	case PolicyMerkle:
		var inner Verifier = NonEmpty{}
		if expression != "" {
			p, err := NewExprPolicy(expression)
			if err != nil {
				return nil, err
			}
			inner = p
		}
		return NewMerkleVerifier(inner), nil
	case PolicyRemote:
		return nil, fmt.Errorf("policy %q is built by the prover client", policy)
	default:
		return nil, fmt.Errorf("unknown proof policy %q", policy)
	}
}
