package proxy

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// SignatureHeader carries the caller's signature over RequestHash.
	SignatureHeader = "X-Bridge-Signature"
	// NonceHeader carries the signer's request nonce in decimal.
	NonceHeader = "X-Bridge-Nonce"
)

// RequestHash is keccak256(chainID || 0x00 || method || 0x00 || be64(nonce) || params),
// where params are the raw JSON bytes of the request's params member.
func RequestHash(chainID, method string, params []byte, nonce uint64) common.Hash {
	return crypto.Keccak256Hash(
		[]byte(chainID), []byte{0},
		[]byte(method), []byte{0},
		binary.BigEndian.AppendUint64(nil, nonce),
		params,
	)
}

// Sign returns the header value that authenticates a call as key's identity.
func Sign(key *ecdsa.PrivateKey, chainID, method string, params []byte, nonce uint64) (string, error) {
	hash := RequestHash(chainID, method, params, nonce)
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// recoverCaller maps a signature header to the signer's identity.
func recoverCaller(header, chainID, method string, params []byte, nonce uint64) (identity.Identity, error) {
	sig, err := hexutil.Decode(header)
	if err != nil {
		return identity.Zero, fmt.Errorf("invalid signature encoding: %v", err)
	}
	if len(sig) != crypto.SignatureLength {
		return identity.Zero, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	hash := RequestHash(chainID, method, params, nonce)
	pub, err := crypto.SigToPub(hash[:], sig)
	if err != nil {
		return identity.Zero, fmt.Errorf("failed to recover signer: %v", err)
	}
	return identity.FromSecp256k1(pub), nil
}
