package proof

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// WithdrawalProof is the RLP payload MerkleVerifier expects for a
// withdrawal: the leaf position and the sibling hashes from the leaf up.
type WithdrawalProof struct {
	Index    uint64
	Siblings []common.Hash
}

// Encode serializes p with RLP.
func (p *WithdrawalProof) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

// DecodeWithdrawalProof parses an RLP encoded WithdrawalProof.
func DecodeWithdrawalProof(data []byte) (*WithdrawalProof, error) {
	var p WithdrawalProof
	if err := rlp.DecodeBytes(data, &p); err != nil {
		return nil, fmt.Errorf("invalid withdrawal proof: %w", err)
	}
	return &p, nil
}

type withdrawalLeaf struct {
	Nonce     uint64
	Recipient string
	Amount    *big.Int
}

// WithdrawalLeaf hashes a withdrawal entry of the L2 exit tree:
// keccak256(rlp([nonce, recipient, amount])).
func WithdrawalLeaf(nonce uint64, recipient string, amount *uint256.Int) common.Hash {
	leaf := withdrawalLeaf{Nonce: nonce, Recipient: recipient, Amount: new(big.Int)}
	if amount != nil {
		leaf.Amount = amount.ToBig()
	}
	enc, err := rlp.EncodeToBytes(&leaf)
	if err != nil {
		panic(fmt.Sprintf("failed to encode withdrawal leaf: %v", err))
	}
	return crypto.Keccak256Hash(enc)
}

// MerkleRoot computes the keccak256 binary Merkle root of leaves. An odd
// node at any level is paired with itself.
func MerkleRoot(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return common.Hash{}
	}
	level := append([]common.Hash(nil), leaves...)
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0]
}

// BuildWithdrawalProof returns the inclusion proof for leaves[index].
func BuildWithdrawalProof(leaves []common.Hash, index uint64) (*WithdrawalProof, error) {
	if index >= uint64(len(leaves)) {
		return nil, fmt.Errorf("leaf index %d out of range (%d leaves)", index, len(leaves))
	}
	p := &WithdrawalProof{Index: index}
	level := append([]common.Hash(nil), leaves...)
	pos := index
	for len(level) > 1 {
		sibling := pos ^ 1
		if sibling >= uint64(len(level)) {
			sibling = pos
		}
		p.Siblings = append(p.Siblings, level[sibling])
		level = nextLevel(level)
		pos /= 2
	}
	return p, nil
}

func nextLevel(level []common.Hash) []common.Hash {
	out := make([]common.Hash, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		right := level[i]
		if i+1 < len(level) {
			right = level[i+1]
		}
		out = append(out, hashPair(level[i], right))
	}
	return out
}

func hashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left[:], right[:])
}

// MerkleVerifier accepts a withdrawal when its proof shows the withdrawal
// leaf under the live state root. Batch transitions go to Batches.
type MerkleVerifier struct {
	Batches Verifier
}

func NewMerkleVerifier(batches Verifier) *MerkleVerifier {
	if batches == nil {
		batches = NonEmpty{}
	}
	return &MerkleVerifier{Batches: batches}
}

func (v *MerkleVerifier) Verify(ctx context.Context, t Transition, proof []byte) (bool, error) {
	if t.Kind != KindWithdrawal {
		return v.Batches.Verify(ctx, t, proof)
	}
	if len(t.PreviousRoot) != common.HashLength {
		return false, nil
	}
	p, err := DecodeWithdrawalProof(proof)
	if err != nil {
		return false, err
	}
	if len(p.Siblings) < 64 && p.Index>>uint(len(p.Siblings)) != 0 {
		return false, nil
	}
	node := WithdrawalLeaf(t.Nonce, t.Recipient, t.Amount)
	for i, sibling := range p.Siblings {
		if i < 64 && (p.Index>>uint(i))&1 == 1 {
			node = hashPair(sibling, node)
		} else {
			node = hashPair(node, sibling)
		}
	}
	return node == common.BytesToHash(t.PreviousRoot), nil
}
