// Package batch keeps the record of every state transition accepted by the
// bridge.
package batch

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/airchains-network/settlement-bridge/db"
	"github.com/airchains-network/settlement-bridge/identity"
	"github.com/airchains-network/settlement-bridge/state"
	"github.com/airchains-network/settlement-bridge/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/syndtr/goleveldb/leveldb"
)

const batchPrefix = "batch:"

// Record represents one accepted batch
type Record struct {
	BatchNo           uint64            `json:"batch_no"`
	PreviousStateRoot types.Root        `json:"previous_state_root"`
	CurrentStateRoot  types.Root        `json:"current_state_root"`
	ProofHash         common.Hash       `json:"proof_hash"`
	Commitment        common.Hash       `json:"commitment"`
	Submitter         identity.Identity `json:"submitter"`
	Timestamp         int64             `json:"timestamp"`
}

// NewRecord builds the record for the transition prev -> next at batchNo.
func NewRecord(batchNo uint64, prev, next types.Root, proof []byte, submitter identity.Identity, timestamp int64) *Record {
	return &Record{
		BatchNo:           batchNo,
		PreviousStateRoot: prev.Copy(),
		CurrentStateRoot:  next.Copy(),
		ProofHash:         ProofHash(proof),
		Commitment:        ComputeCommitment(prev, next, batchNo),
		Submitter:         submitter,
		Timestamp:         timestamp,
	}
}

// ComputeCommitment computes keccak256(prev || next || batchNo) with the
// batch number as 8 big-endian bytes
func ComputeCommitment(prev, next types.Root, batchNo uint64) common.Hash {
	return crypto.Keccak256Hash(prev, next, binary.BigEndian.AppendUint64(nil, batchNo))
}

// ProofHash is the keccak256 digest of a proof blob.
func ProofHash(proof []byte) common.Hash {
	return crypto.Keccak256Hash(proof)
}

// Stage adds rec to the atomic write of a state commit.
func Stage(rec *Record) state.Stage {
	return func(b *leveldb.Batch) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal batch #%d: %v", rec.BatchNo, err)
		}
		b.Put(state.RecordKey(batchPrefix, rec.BatchNo), data)
		return nil
	}
}

// Load returns batch n, or nil if it was never accepted.
func Load(database db.DB, n uint64) (*Record, error) {
	data, err := database.Get(state.RecordKey(batchPrefix, n))
	if err != nil {
		return nil, fmt.Errorf("failed to get batch #%d: %v", n, err)
	}
	if data == nil {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch #%d: %v", n, err)
	}
	return &rec, nil
}

// Latest returns the highest numbered batch, or nil before the first one.
func Latest(database db.DB) (*Record, error) {
	it := database.NewIterator([]byte(batchPrefix))
	defer it.Release()
	if !it.Last() {
		if err := it.Error(); err != nil {
			return nil, fmt.Errorf("failed to iterate batches: %v", err)
		}
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal(it.Value(), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal batch %x: %v", it.Key(), err)
	}
	return &rec, nil
}
