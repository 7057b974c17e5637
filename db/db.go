package db

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
)

// DB defines the interface for database operations
type DB interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Write(batch *leveldb.Batch) error
	NewIterator(prefix []byte) iterator.Iterator
	Close() error
}

// NewLevelDBs opens the bridge state database and the custody database
func NewLevelDBs(statePath, custodyPath string) (DB, DB, error) {
	stateDB, err := NewLevelDB(statePath)
	if err != nil {
		return nil, nil, err
	}
	custodyDB, err := NewLevelDB(custodyPath)
	if err != nil {
		stateDB.Close()
		return nil, nil, err
	}
	return stateDB, custodyDB, nil
}
