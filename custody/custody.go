// Package custody moves the bridged asset between holding accounts
// ("purses"). The bridge only sees the Custodian interface.
package custody

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/holiman/uint256"
)

// AccountRef names a purse.
type AccountRef string

var (
	ErrInsufficientFunds = errors.New("custody: insufficient funds")
	ErrSamePurse         = errors.New("custody: source and target purse are the same")
	ErrInvalidPurse      = errors.New("custody: empty purse reference")
	ErrBalanceOverflow   = errors.New("custody: balance overflow")
)

// Custodian moves amount from one purse to another, entirely or not at all.
type Custodian interface {
	Transfer(ctx context.Context, from, to AccountRef, amount *uint256.Int) error
}

// PurseOf returns the main purse owned by id.
func PurseOf(id identity.Identity) AccountRef {
	return AccountRef("main-purse-" + hex.EncodeToString(id[:]))
}
