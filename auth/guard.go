package auth

import (
	"crypto/subtle"

	"github.com/airchains-network/settlement-bridge/identity"
)

// Guard decides whether a caller is the designated sequencer.
type Guard struct {
	sequencer identity.Identity
}

func NewGuard(sequencer identity.Identity) *Guard {
	return &Guard{sequencer: sequencer}
}

// IsAuthorizedSequencer compares caller against the recorded sequencer by
// exact equality. The zero identity is never authorized.
func (g *Guard) IsAuthorizedSequencer(caller identity.Identity) bool {
	if g == nil || caller.IsZero() || g.sequencer.IsZero() {
		return false
	}
	return subtle.ConstantTimeCompare(caller[:], g.sequencer[:]) == 1
}
