package offset

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	bucketName = "offsets"
)

// BoltDBStore implements OffsetStore using BoltDB
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore creates a new BoltDB offset store
func NewBoltDBStore(dbPath string) (*BoltDBStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		// A stale lock means another forwarder still holds the file
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Info().
		Str("db_path", dbPath).
		Msg("BoltDB offset store initialized")

	return &BoltDBStore{db: db}, nil
}

// Get retrieves the offset for a given file
func (s *BoltDBStore) Get(ctx context.Context, filePath string) (int64, error) {
	var offset int64

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		val := b.Get([]byte(filePath))
		if val == nil {
			return nil
		}

		v, err := decodeOffset(val)
		if err != nil {
			return err
		}
		offset = v
		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("failed to get offset for %s: %w", filePath, err)
	}

	return offset, nil
}

// Set stores the offset for a given file
func (s *BoltDBStore) Set(ctx context.Context, filePath string, offset int64) error {
	return s.SetMany(ctx, map[string]int64{filePath: offset})
}

// SetMany stores all offsets in a single transaction
func (s *BoltDBStore) SetMany(ctx context.Context, offsets map[string]int64) error {
	if len(offsets) == 0 {
		return nil
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		for filePath, offset := range offsets {
			if offset < 0 {
				return fmt.Errorf("negative offset %d for %s", offset, filePath)
			}
			if err := b.Put([]byte(filePath), encodeOffset(offset)); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to set offsets: %w", err)
	}

	log.Debug().
		Int("files", len(offsets)).
		Msg("Offsets updated")

	return nil
}

// Delete removes the offset for a given file
func (s *BoltDBStore) Delete(ctx context.Context, filePath string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		return b.Delete([]byte(filePath))
	})

	if err != nil {
		return fmt.Errorf("failed to delete offset for %s: %w", filePath, err)
	}

	return nil
}

// List returns all stored offsets
func (s *BoltDBStore) List(ctx context.Context) (map[string]int64, error) {
	result := make(map[string]int64)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		return b.ForEach(func(k, v []byte) error {
			offset, err := decodeOffset(v)
			if err != nil {
				log.Warn().
					Err(err).
					Str("file_path", string(k)).
					Msg("Skipping corrupt offset entry")
				return nil
			}
			result[string(k)] = offset
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list offsets: %w", err)
	}

	return result, nil
}

// Close closes the BoltDB database
func (s *BoltDBStore) Close() error {
	log.Info().Msg("Closing BoltDB offset store")
	return s.db.Close()
}

func encodeOffset(offset int64) []byte {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(offset))
	return val
}

func decodeOffset(val []byte) (int64, error) {
	if len(val) < 8 {
		return 0, fmt.Errorf("invalid offset value")
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}
