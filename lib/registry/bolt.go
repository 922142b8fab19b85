package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var volumeBucketName = []byte("volumes")

const openTimeout = time.Second

type boltRegistry struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) a registry database at path.
func OpenBolt(path string) (Registry, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open registry %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(volumeBucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create volume bucket: %w", err)
	}

	return &boltRegistry{db: db}, nil
}

func (r *boltRegistry) Get(ctx context.Context, name string) (*Entry, error) {
	var entry Entry
	err := r.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(volumeBucketName).Get([]byte(name))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *boltRegistry) Put(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", entry.Name, err)
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(volumeBucketName).Put([]byte(entry.Name), raw)
	})
}

func (r *boltRegistry) Delete(ctx context.Context, name string) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(volumeBucketName).Delete([]byte(name))
	})
}

func (r *boltRegistry) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := r.db.View(func(tx *bolt.Tx) error {
		// bolt iterates keys in byte order
		return tx.Bucket(volumeBucketName).ForEach(func(k, v []byte) error {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("unmarshal entry %s: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *boltRegistry) Close() error {
	return r.db.Close()
}
