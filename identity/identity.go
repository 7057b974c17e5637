// Package identity derives and carries the account hashes that identify
// callers of the bridge.
package identity

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

const textPrefix = "account-hash-"

// Key algorithm tags used in the hex encoding of public keys.
const (
	TagEd25519   byte = 0x01
	TagSecp256k1 byte = 0x02
)

// Identity is the 32-byte account hash of a caller.
type Identity [32]byte

// Zero is the identity of an unauthenticated caller.
var Zero Identity

func (id Identity) IsZero() bool {
	return id == Zero
}

func (id Identity) String() string {
	return textPrefix + hex.EncodeToString(id[:])
}

func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *Identity) UnmarshalText(input []byte) error {
	parsed, err := Parse(string(input))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Parse accepts "account-hash-<hex>", "0x<hex>" or bare hex.
func Parse(s string) (Identity, error) {
	var id Identity
	s = strings.TrimPrefix(strings.TrimSpace(s), textPrefix)
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid account hash: %v", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("invalid account hash length: %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// FromPublicKey derives the account hash of a tagged public key given in hex:
// 01 followed by a 32-byte ed25519 key, or 02 followed by a 33-byte
// compressed secp256k1 key.
func FromPublicKey(tagged string) (Identity, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(tagged, "0x"))
	if err != nil {
		return Zero, fmt.Errorf("invalid public key hex: %v", err)
	}
	if len(raw) < 1 {
		return Zero, fmt.Errorf("empty public key")
	}
	tag, key := raw[0], raw[1:]
	switch tag {
	case TagEd25519:
		if len(key) != 32 {
			return Zero, fmt.Errorf("invalid Ed25519 key length: %d", len(key))
		}
		return accountHash("ed25519", key), nil
	case TagSecp256k1:
		if len(key) != 33 {
			return Zero, fmt.Errorf("invalid Secp256k1 key length: %d", len(key))
		}
		return accountHash("secp256k1", key), nil
	default:
		return Zero, fmt.Errorf("unknown key tag %02x", tag)
	}
}

// FromSecp256k1 derives the account hash of an ECDSA public key.
func FromSecp256k1(pub *ecdsa.PublicKey) Identity {
	return accountHash("secp256k1", crypto.CompressPubkey(pub))
}

// accountHash is blake2b-256(algorithm || 0x00 || key).
func accountHash(algorithm string, key []byte) Identity {
	preimage := make([]byte, 0, len(algorithm)+1+len(key))
	preimage = append(preimage, algorithm...)
	preimage = append(preimage, 0)
	preimage = append(preimage, key...)
	return Identity(blake2b.Sum256(preimage))
}

// Oracle reports who is invoking the in-flight call.
type Oracle interface {
	CurrentCaller(ctx context.Context) (Identity, error)
}

type callerKey struct{}

// WithCaller returns a context carrying id as the caller.
func WithCaller(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

// ContextOracle reads the caller placed on the context by WithCaller. A
// context without a caller yields Zero.
type ContextOracle struct{}

func (ContextOracle) CurrentCaller(ctx context.Context) (Identity, error) {
	id, _ := ctx.Value(callerKey{}).(Identity)
	return id, nil
}
