package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v3"
)

type diskKV struct {
	db  *badger.DB
	ttl time.Duration
}

// NewDiskStore opens a badger-backed handoff store under path. A positive
// ttl expires slots that were not rewritten in time.
func NewDiskStore(path string, ttl time.Duration) (HandoffStore, error) {
	kv, err := NewDiskKV(path, ttl)
	if err != nil {
		return nil, err
	}
	return NewHandoffStore(kv), nil
}

func NewDiskKV(path string, ttl time.Duration) (KV, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return &diskKV{db: db, ttl: ttl}, nil
}

func (d *diskKV) Set(key string, value []byte) error {
	return d.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if d.ttl > 0 {
			e = e.WithTTL(d.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (d *diskKV) Get(key string) ([]byte, error) {
	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

func (d *diskKV) Delete(key string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (d *diskKV) Close() error {
	return d.db.Close()
}
