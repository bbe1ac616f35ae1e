// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package docstore

// MemoryStore is an in-process document store. It is the default backend and
// the one used by tests.
type MemoryStore struct {
	*base
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{base: newBase(newMemoryBackend(), buildOptions(opts))}
}

type memoryBackend struct {
	collections map[string]map[string]Document
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{collections: make(map[string]map[string]Document)}
}

func (m *memoryBackend) load(collection, id string) (Document, bool, error) {
	doc, ok := m.collections[collection][id]
	return doc, ok, nil
}

func (m *memoryBackend) scan(collection string) ([]Document, error) {
	docs := m.collections[collection]
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d)
	}
	return out, nil
}

func (m *memoryBackend) apply(muts []mutation) error {
	for _, mu := range muts {
		if mu.delete {
			if docs, ok := m.collections[mu.key.collection]; ok {
				delete(docs, mu.key.id)
				if len(docs) == 0 {
					delete(m.collections, mu.key.collection)
				}
			}
			continue
		}
		docs, ok := m.collections[mu.key.collection]
		if !ok {
			docs = make(map[string]Document)
			m.collections[mu.key.collection] = docs
		}
		docs[mu.key.id] = mu.doc.Clone()
	}
	return nil
}

func (m *memoryBackend) close() error {
	return nil
}
