package keystore

import (
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const connectTimeout = 5 * time.Second

var identityBucket = []byte("identities")

// Store keeps sealed Records in a single-file bbolt database keyed by suid.
// The database is opened per operation so several processes can share it.
type Store struct {
	dbpath string
}

// NewStore creates the database schema at dbpath if needed.
func NewStore(dbpath string) (*Store, error) {
	s := &Store{dbpath: dbpath}
	err := s.update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(identityBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("keystore: init %s: %w", dbpath, err)
	}
	return s, nil
}

// Put stores rec, replacing any record with the same suid.
func (s *Store) Put(rec Record) error {
	if strings.TrimSpace(rec.SUID) == "" {
		return ErrSUIDRequired
	}
	b, err := rec.Marshal()
	if err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		return tx.Bucket(identityBucket).Put([]byte(rec.SUID), b)
	})
}

// Get returns the record for suid and whether it exists.
func (s *Store) Get(suid string) (Record, bool, error) {
	var rec Record
	var found bool
	err := s.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(identityBucket).Get([]byte(suid))
		if v == nil {
			return nil
		}
		found = true
		var err error
		rec, err = UnmarshalRecord(v)
		return err
	})
	return rec, found, err
}

// List returns every record ordered by suid.
func (s *Store) List() ([]Record, error) {
	var out []Record
	err := s.view(func(tx *bolt.Tx) error {
		return tx.Bucket(identityBucket).ForEach(func(_, v []byte) error {
			rec, err := UnmarshalRecord(v)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Delete removes suid and reports whether it was present.
func (s *Store) Delete(suid string) (bool, error) {
	var found bool
	err := s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(identityBucket)
		if b.Get([]byte(suid)) == nil {
			return nil
		}
		found = true
		return b.Delete([]byte(suid))
	})
	return found, err
}

// Unlock loads and opens the identity for suid.
func (s *Store) Unlock(suid, passphrase string) (Identity, error) {
	rec, found, err := s.Get(suid)
	if err != nil {
		return Identity{}, err
	}
	if !found {
		return Identity{}, fmt.Errorf("keystore: no identity for suid %q", suid)
	}
	return Open(rec, passphrase)
}

func (s *Store) update(fn func(tx *bolt.Tx) error) error {
	db, err := bolt.Open(s.dbpath, 0o600, &bolt.Options{Timeout: connectTimeout})
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (s *Store) view(fn func(tx *bolt.Tx) error) error {
	db, err := bolt.Open(s.dbpath, 0o600, &bolt.Options{Timeout: connectTimeout, ReadOnly: true})
	if err != nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}
