package db

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB wraps a LevelDB instance
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates a new LevelDB instance
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ErrorIfMissing: false})
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMemLevelDB creates a LevelDB instance backed by memory storage
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Put stores a key-value pair in the database
func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, &opt.WriteOptions{Sync: true})
}

// Get retrieves a value by key from the database. A missing key yields nil, nil.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	data, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	return data, err
}

// Has reports whether key is present
func (l *LevelDB) Has(key []byte) (bool, error) {
	return l.db.Has(key, nil)
}

// Write applies all operations of batch atomically
func (l *LevelDB) Write(batch *leveldb.Batch) error {
	return l.db.Write(batch, &opt.WriteOptions{Sync: true})
}

// NewIterator iterates over the keys starting with prefix, in key order
func (l *LevelDB) NewIterator(prefix []byte) iterator.Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

// Close shuts down the database connection
func (l *LevelDB) Close() error {
	return l.db.Close()
}
