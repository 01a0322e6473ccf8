// Package idempotency maps checkout Idempotency-Key headers to the
// transaction they produced, so a replayed request returns the original
// record instead of charging the card twice. Keys live in an embedded
// BoltDB file; no external process is required.
package idempotency

import (
	"encoding/binary"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "checkout_keys"

type Store struct {
	db *bolt.DB
}

// New opens (or creates) the key database at the given path.
func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the transaction id stored for the key, if any.
func (s *Store) Get(key string) (int64, bool, error) {
	var id int64
	var found bool

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return nil
		}
		id = int64(binary.BigEndian.Uint64(v))
		found = true
		return nil
	})
	return id, found, err
}

// Put records the transaction produced for the key. An existing entry is
// left untouched so the first outcome always wins.
func (s *Store) Put(key string, transactionID int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get([]byte(key)) != nil {
			return nil
		}
		var v [8]byte
		binary.BigEndian.PutUint64(v[:], uint64(transactionID))
		return b.Put([]byte(key), v[:])
	})
}
