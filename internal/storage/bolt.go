package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"
)

const (
	bucketImages = "images"
	bucketMeta   = "image_meta"
)

// ErrNotFound is returned when a requested object does not exist.
var ErrNotFound = errors.New("object not found")

// BoltStore is an embedded object store. Objects are written once under a
// random key and served back through GET /images/:key, so PublicBaseURL must
// point at this service.
type BoltStore struct {
	db            *bolt.DB
	PublicBaseURL string
}

// OpenBolt opens (or creates) the store file and ensures its buckets exist.
func OpenBolt(path, publicBaseURL string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketImages, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Close releases the database file lock.
func (s *BoltStore) Close() error { return s.db.Close() }

// Put stores data under a new key and returns its public URL.
func (s *BoltStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := uuid.NewString() + extensionFor(contentType)
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketImages)).Put([]byte(key), data); err != nil {
			return err
		}
		return tx.Bucket([]byte(bucketMeta)).Put([]byte(key), []byte(contentType))
	})
	if err != nil {
		return "", err
	}
	return s.URLFor(key), nil
}

// Get returns the bytes and content type stored under key.
func (s *BoltStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	var data []byte
	var ct string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketImages)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// Bolt memory is only valid inside the transaction.
		data = append([]byte(nil), v...)
		ct = string(tx.Bucket([]byte(bucketMeta)).Get([]byte(key)))
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	return data, ct, nil
}

// URLFor builds the public URL of key.
func (s *BoltStore) URLFor(key string) string {
	return s.PublicBaseURL + "/images/" + key
}
