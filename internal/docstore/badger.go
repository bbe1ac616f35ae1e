// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package docstore

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// keySeparator splits collection and document ID in badger keys. It cannot
// appear in a collection path, so "users" never prefix-matches "users/u1/readings".
const keySeparator = "\x00"

// BadgerConfig configures the durable store.
type BadgerConfig struct {
	// Path is the badger data directory.
	Path string

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// InMemory runs badger without touching disk (tests).
	InMemory bool
}

// BadgerStore is a durable document store backed by BadgerDB. Documents are
// stored as JSON under "<collection>\x00<id>".
type BadgerStore struct {
	*base
	db *badger.DB
}

// OpenBadgerStore opens or creates a badger-backed store.
func OpenBadgerStore(cfg BadgerConfig, opts ...Option) (*BadgerStore, error) {
	bopts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = cfg.SyncWrites
	// Badger's own logger is noisy; errors surface through return values.
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{
		base: newBase(&badgerBackend{db: db}, buildOptions(opts)),
		db:   db,
	}, nil
}

type badgerBackend struct {
	db *badger.DB
}

func documentKey(collection, id string) []byte {
	return []byte(collection + keySeparator + id)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + keySeparator)
}

func (b *badgerBackend) load(collection, id string) (Document, bool, error) {
	var doc Document
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(collection, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	if doc.Fields == nil {
		doc.Fields = Fields{}
	}
	return doc, true, nil
}

func (b *badgerBackend) scan(collection string) ([]Document, error) {
	var docs []Document
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := collectionPrefix(collection)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var doc Document
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &doc)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			if doc.Fields == nil {
				doc.Fields = Fields{}
			}
			docs = append(docs, doc)
		}
		return nil
	})
	return docs, err
}

func (b *badgerBackend) apply(muts []mutation) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, m := range muts {
			key := documentKey(m.key.collection, m.key.id)
			if m.delete {
				if err := txn.Delete(key); err != nil {
					return err
				}
				continue
			}
			data, err := json.Marshal(m.doc)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", m.key.collection, m.key.id, err)
			}
			if err := txn.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *badgerBackend) close() error {
	return b.db.Close()
}
