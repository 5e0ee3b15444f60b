// Package reject implements the bounded, TTL'd recent-reject cache
// (spec.md 2, 6): an opaque key/value store of recently rejected
// transaction hashes used to short-circuit repeated submissions.
//
// Adapted from the teacher's utxo/BlockTreeDB.go, which opens a
// bolt-shaped key/value database and a single bucket for an index; this
// package keeps that same open/bucket shape (via go.etcd.io/bbolt
// directly rather than copernicus's own orm indirection layer, since that
// layer isn't part of the retrieved pack) and adds the TTL and capacity
// bound the reject cache needs that a block index never did.
package reject

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
	"github.com/xiaolou86/ckb/log"
	"github.com/xiaolou86/ckb/util"
)

var bucketName = []byte("recent_reject")

// Store is a bounded, TTL-expiring persistent set of rejected transaction
// hashes plus the human-readable reason each was rejected for.
type Store struct {
	db       *bolt.DB
	ttl      time.Duration
	capacity int
}

// New opens (creating if necessary) a Store at path, matching
// BlockTreeDB.NewBlockTreeDB's "open or create, panic only on genuine I/O
// failure" shape but returning the error instead of panicking: the pool
// treats a failed open as "disable the cache" (spec.md pool.rs
// build_recent_reject), not a fatal condition.
func New(path string, capacity int, ttl time.Duration) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "reject: open %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "reject: create bucket")
	}
	return &Store{db: db, ttl: ttl, capacity: capacity}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

type record struct {
	reason    string
	expiresAt int64
}

// Insert records hash as rejected for reason, expiring after the store's
// configured TTL.
func (s *Store) Insert(hash util.Hash, reason string) error {
	expiresAt := time.Now().Add(s.ttl).UnixMilli()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Put(hash[:], encodeRecord(reason, expiresAt)); err != nil {
			return err
		}
		return s.evictOverCapacityLocked(b)
	})
}

// Contains reports whether hash is a live (non-expired) rejection.
func (s *Store) Contains(hash util.Hash) bool {
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get(hash[:])
		if v == nil {
			return nil
		}
		_, expiresAt := decodeRecord(v)
		found = time.Now().UnixMilli() < expiresAt
		return nil
	})
	return found
}

// Reason returns the recorded rejection reason for hash, if present and
// unexpired.
func (s *Store) Reason(hash util.Hash) (string, bool) {
	var reason string
	var ok bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get(hash[:])
		if v == nil {
			return nil
		}
		r, expiresAt := decodeRecord(v)
		if time.Now().UnixMilli() >= expiresAt {
			return nil
		}
		reason, ok = r, true
		return nil
	})
	return reason, ok
}

// Sweep deletes every expired entry. Callers run this periodically
// alongside the pool's own remove_expired loop.
func (s *Store) Sweep() (removed int, err error) {
	now := time.Now().UnixMilli()
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			_, expiresAt := decodeRecord(v)
			if now >= expiresAt {
				key := make([]byte, len(k))
				copy(key, k)
				stale = append(stale, key)
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// evictOverCapacityLocked drops the oldest-expiring entries once the
// bucket holds more than s.capacity records. Must run inside an existing
// write transaction.
func (s *Store) evictOverCapacityLocked(b *bolt.Bucket) error {
	if s.capacity <= 0 {
		return nil
	}
	n := b.Stats().KeyN
	if n <= s.capacity {
		return nil
	}
	type kv struct {
		key       []byte
		expiresAt int64
	}
	entries := make([]kv, 0, n)
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		_, expiresAt := decodeRecord(v)
		key := make([]byte, len(k))
		copy(key, k)
		entries = append(entries, kv{key: key, expiresAt: expiresAt})
	}
	for i := 0; i < len(entries)-1; i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].expiresAt < entries[i].expiresAt {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	overflow := len(entries) - s.capacity
	for i := 0; i < overflow; i++ {
		if err := b.Delete(entries[i].key); err != nil {
			return err
		}
	}
	log.Debug("reject: evicted %d entries over capacity %d", overflow, s.capacity)
	return nil
}

func encodeRecord(reason string, expiresAt int64) []byte {
	buf := make([]byte, 8+len(reason))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], reason)
	return buf
}

func decodeRecord(buf []byte) (reason string, expiresAt int64) {
	if len(buf) < 8 {
		return "", 0
	}
	expiresAt = int64(binary.BigEndian.Uint64(buf[:8]))
	reason = string(buf[8:])
	return reason, expiresAt
}
