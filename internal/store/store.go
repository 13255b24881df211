// Package store persists collected records in a bbolt database. Records
// live in one bucket per kind, keyed by record ID with JSON values;
// scalar metadata lives in its own bucket. Every write is a synchronous
// committed transaction, so a process killed mid-run reopens cleanly.
package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"fleahist/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketSold   = []byte("sold")
	bucketBought = []byte("bought")
	bucketMeta   = []byte("meta")
)

// soldEntry wraps a sold record with its insertion sequence, the
// tiebreak for equal completion times.
type soldEntry struct {
	Seq    uint64             `json:"seq"`
	Record *domain.SoldRecord `json:"record"`
}

type boughtEntry struct {
	Seq    uint64               `json:"seq"`
	Record *domain.BoughtRecord `json:"record"`
}

// Store implements domain.Cache on bbolt.
type Store struct {
	mu     sync.Mutex
	db     *bolt.DB
	closed bool
}

// Open opens (creating if absent) a record store at path. Callers that
// may hold a legacy snapshot should use OpenOrMigrate instead.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSold, bucketBought, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database. Calling Close twice is a no-op; every
// other method fails with domain.ErrStoreClosed afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) handle() (*bolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}
	return s.db, nil
}

func recordBucket(kind domain.Kind) []byte {
	if kind == domain.KindBought {
		return bucketBought
	}
	return bucketSold
}

// UpsertSold inserts or overwrites a sold record by ID. Re-inserting the
// same ID replaces field values without creating a duplicate entry; the
// original insertion sequence is preserved.
func (s *Store) UpsertSold(rec *domain.SoldRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert sold record: missing id")
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSold)
		seq, err := nextSeq(b, rec.ID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(soldEntry{Seq: seq, Record: rec})
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("upsert sold record %s: %w", rec.ID, err)
	}
	return nil
}

// UpsertBought inserts or overwrites a bought record by ID.
func (s *Store) UpsertBought(rec *domain.BoughtRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("upsert bought record: missing id")
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBought)
		seq, err := nextSeq(b, rec.ID)
		if err != nil {
			return err
		}
		data, err := json.Marshal(boughtEntry{Seq: seq, Record: rec})
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("upsert bought record %s: %w", rec.ID, err)
	}
	return nil
}

// nextSeq returns the stored sequence for an existing key, or allocates
// a fresh one for a first insert.
func nextSeq(b *bolt.Bucket, id string) (uint64, error) {
	if v := b.Get([]byte(id)); v != nil {
		var prior struct {
			Seq uint64 `json:"seq"`
		}
		if err := json.Unmarshal(v, &prior); err == nil {
			return prior.Seq, nil
		}
	}
	return b.NextSequence()
}

// Exists reports whether a record of the given kind is already stored.
func (s *Store) Exists(kind domain.Kind, id string) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}
	var found bool
	err = db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(recordBucket(kind)).Get([]byte(id)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("lookup %s record %s: %w", kind, id, err)
	}
	return found, nil
}

// Count returns the number of distinct stored records of a kind.
func (s *Store) Count(kind domain.Kind) (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	var n int
	err = db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(recordBucket(kind)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s records: %w", kind, err)
	}
	return n, nil
}

// ListSold returns all sold records ordered by completion time
// ascending, ties broken by insertion order. The report writer depends
// on this ordering being stable.
func (s *Store) ListSold() ([]*domain.SoldRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var entries []soldEntry
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSold).ForEach(func(_, v []byte) error {
			var e soldEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list sold records: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Record.CompletedAt.Equal(b.Record.CompletedAt) {
			return a.Record.CompletedAt.Before(b.Record.CompletedAt)
		}
		return a.Seq < b.Seq
	})
	recs := make([]*domain.SoldRecord, len(entries))
	for i, e := range entries {
		recs[i] = e.Record
	}
	return recs, nil
}

// ListBought returns all bought records ordered by purchase time
// ascending, ties broken by insertion order.
func (s *Store) ListBought() ([]*domain.BoughtRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var entries []boughtEntry
	err = db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBought).ForEach(func(_, v []byte) error {
			var e boughtEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list bought records: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Record.OccurredAt.Equal(b.Record.OccurredAt) {
			return a.Record.OccurredAt.Before(b.Record.OccurredAt)
		}
		return a.Seq < b.Seq
	})
	recs := make([]*domain.BoughtRecord, len(entries))
	for i, e := range entries {
		recs[i] = e.Record
	}
	return recs, nil
}

// Metadata returns the stored value for key, or def when absent.
func (s *Store) Metadata(key, def string) (string, error) {
	db, err := s.handle()
	if err != nil {
		return "", err
	}
	value := def
	err = db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get([]byte(key)); v != nil {
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("read metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores a scalar metadata value.
func (s *Store) SetMetadata(key, value string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("write metadata %s: %w", key, err)
	}
	return nil
}

// MetadataInt returns a metadata value as an int. A missing key or a
// value that does not parse yields def rather than an error.
func (s *Store) MetadataInt(key string, def int) (int, error) {
	v, err := s.Metadata(key, strconv.Itoa(def))
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, nil
	}
	return n, nil
}

// SetMetadataInt stores an int metadata value.
func (s *Store) SetMetadataInt(key string, value int) error {
	return s.SetMetadata(key, strconv.Itoa(value))
}
