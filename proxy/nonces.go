package proxy

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/airchains-network/settlement-bridge/db"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/pkg/errors"
)

const noncePrefix = "rpc_nonce:"

// ErrStaleNonce is returned when a signed request does not carry the
// signer's next nonce.
var ErrStaleNonce = errors.New("request nonce already used or out of order")

// NonceStore tracks the next request nonce of every signer. A nonce is
// consumed when its signature is accepted, whatever the call then returns.
type NonceStore struct {
	mu sync.Mutex
	db db.DB
}

func NewNonceStore(database db.DB) *NonceStore {
	return &NonceStore{db: database}
}

// Next returns the nonce id must sign its next request with.
func (n *NonceStore) Next(id identity.Identity) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next(id)
}

// Use consumes nonce for id. It must equal Next(id).
func (n *NonceStore) Use(id identity.Identity, nonce uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	want, err := n.next(id)
	if err != nil {
		return err
	}
	if nonce != want || want == math.MaxUint64 {
		return errors.Wrapf(ErrStaleNonce, "got %d, want %d", nonce, want)
	}
	if err := n.db.Put(nonceKey(id), binary.BigEndian.AppendUint64(nil, want+1)); err != nil {
		return errors.Wrap(err, "failed to store request nonce")
	}
	return nil
}

func (n *NonceStore) next(id identity.Identity) (uint64, error) {
	data, err := n.db.Get(nonceKey(id))
	if err != nil {
		return 0, errors.Wrap(err, "failed to read request nonce")
	}
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt request nonce for %s", id)
	}
	return binary.BigEndian.Uint64(data), nil
}

func nonceKey(id identity.Identity) []byte {
	return append([]byte(noncePrefix), id[:]...)
}
