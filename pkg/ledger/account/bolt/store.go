package bolt

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/code-payments/donation-ledger/pkg/ledger/account"
)

var (
	bucketAccounts = []byte("accounts")

	// owner || address -> nil
	bucketOwnerIndex = []byte("owner_index")
)

// Encoded record layout: owner | lamports | slot | executable | data
const recordHeaderSize = ed25519.PublicKeySize + 8 + 8 + 1

type store struct {
	db *bolt.DB
}

// Open opens, or creates, a bbolt database at path and returns an
// account.Store backed by it together with a function that closes the
// database.
func Open(path string) (account.Store, func() error, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open bolt db")
	}

	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, db.Close, nil
}

// New returns an account.Store using the provided bbolt database.
func New(db *bolt.DB) (account.Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAccounts, bucketOwnerIndex} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create buckets")
	}

	return &store{db: db}, nil
}

func (s *store) reset() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAccounts, bucketOwnerIndex} {
			if err := tx.DeleteBucket(bucket); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(bucket); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *store) Get(_ context.Context, address ed25519.PublicKey) (*account.Record, error) {
	var res *account.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAccounts).Get(address)
		if raw == nil {
			return account.ErrAccountNotFound
		}

		var err error
		res, err = decodeRecord(address, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *store) GetMany(_ context.Context, addresses ...ed25519.PublicKey) ([]*account.Record, error) {
	res := make([]*account.Record, len(addresses))
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAccounts)
		for i, address := range addresses {
			raw := bucket.Get(address)
			if raw == nil {
				continue
			}

			record, err := decodeRecord(address, raw)
			if err != nil {
				return err
			}
			res[i] = record
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *store) GetProgramAccounts(_ context.Context, owner ed25519.PublicKey) ([]*account.Record, error) {
	var res []*account.Record
	err := s.db.View(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(bucketAccounts)

		// Index keys sort by owner then address, so the seek yields the
		// program's accounts in address order.
		c := tx.Bucket(bucketOwnerIndex).Cursor()
		for k, _ := c.Seek(owner); k != nil && bytes.HasPrefix(k, owner); k, _ = c.Next() {
			address := k[len(owner):]

			raw := accounts.Get(address)
			if raw == nil {
				return errors.Errorf("dangling owner index entry for %x", address)
			}

			record, err := decodeRecord(address, raw)
			if err != nil {
				return err
			}
			res = append(res, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, account.ErrAccountNotFound
	}
	return res, nil
}

func (s *store) Commit(_ context.Context, slot uint64, records ...*account.Record) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(bucketAccounts)
		index := tx.Bucket(bucketOwnerIndex)

		for _, record := range records {
			if existing := accounts.Get(record.Address); existing != nil {
				previousOwner := existing[:ed25519.PublicKeySize]
				if err := index.Delete(indexKey(previousOwner, record.Address)); err != nil {
					return err
				}
			}

			if record.IsEmpty() {
				if err := accounts.Delete(record.Address); err != nil {
					return err
				}
				continue
			}

			if err := accounts.Put(record.Address, encodeRecord(record, slot)); err != nil {
				return err
			}
			if err := index.Put(indexKey(record.Owner, record.Address), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to commit accounts")
	}

	for _, record := range records {
		record.Slot = slot
	}
	return nil
}

func indexKey(owner, address []byte) []byte {
	key := make([]byte, 0, len(owner)+len(address))
	key = append(key, owner...)
	return append(key, address...)
}

func encodeRecord(record *account.Record, slot uint64) []byte {
	b := make([]byte, recordHeaderSize+len(record.Data))

	var offset int
	offset += copy(b, record.Owner)
	binary.LittleEndian.PutUint64(b[offset:], record.Lamports)
	offset += 8
	binary.LittleEndian.PutUint64(b[offset:], slot)
	offset += 8
	if record.Executable {
		b[offset] = 1
	}
	offset++
	copy(b[offset:], record.Data)

	return b
}

// decodeRecord copies out of raw, since bbolt values are only valid for the
// life of the transaction.
func decodeRecord(address, raw []byte) (*account.Record, error) {
	if len(raw) < recordHeaderSize {
		return nil, errors.Errorf("invalid record size: %d", len(raw))
	}

	var offset int
	record := &account.Record{
		Address: append(ed25519.PublicKey{}, address...),
		Owner:   append(ed25519.PublicKey{}, raw[:ed25519.PublicKeySize]...),
	}
	offset += ed25519.PublicKeySize
	record.Lamports = binary.LittleEndian.Uint64(raw[offset:])
	offset += 8
	record.Slot = binary.LittleEndian.Uint64(raw[offset:])
	offset += 8
	record.Executable = raw[offset] == 1
	offset++
	record.Data = append([]byte{}, raw[offset:]...)

	return record, nil
}
