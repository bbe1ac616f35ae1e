// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/tomtom215/tideline/internal/logging"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("document store closed")

// Store is the document store collaborator consumed by the engine.
type Store interface {
	// Get returns a single document or an error wrapping ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Query returns the documents of collection matching q.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)

	// Subscribe opens a change feed on collection. The first delivery is an
	// Initial batch holding the current documents as Added. Deliveries to one
	// subscription are ordered; the returned CancelFunc is idempotent.
	Subscribe(ctx context.Context, collection string, fn func(ChangeBatch)) (CancelFunc, error)

	// Batch starts a write batch.
	Batch() WriteBatch
}

// Replica is a Store that can take part in cross-process replication.
type Replica interface {
	Store

	// Origin identifies this store instance in the ChangeBatch.Origin field.
	Origin() string

	// ApplyRemote applies a batch committed by another instance and re-emits
	// it on the local change feed with its original Origin.
	ApplyRemote(ctx context.Context, batch ChangeBatch) error
}

// WriteBatch groups writes that are applied atomically on Commit.
type WriteBatch interface {
	// Set creates or overwrites a document.
	Set(collection, id string, fields Fields) WriteBatch

	// Update merges fields into an existing document. Committing an update of
	// a missing document fails the whole batch with ErrNotFound.
	Update(collection, id string, fields Fields) WriteBatch

	// Delete removes a document. Deleting a missing document is a no-op.
	Delete(collection, id string) WriteBatch

	// Commit applies every queued write or none of them.
	Commit(ctx context.Context) error
}

// Option configures a store.
type Option func(*options)

type options struct {
	clock  quartz.Clock
	origin string
}

// WithClock sets the clock used for server timestamps.
func WithClock(c quartz.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithOrigin sets the instance identifier stamped on locally committed batches.
func WithOrigin(origin string) Option {
	return func(o *options) { o.origin = origin }
}

func buildOptions(opts []Option) options {
	o := options{clock: quartz.NewReal(), origin: uuid.NewString()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type docKey struct {
	collection string
	id         string
}

type mutation struct {
	key    docKey
	doc    Document
	delete bool
}

// backend is the persistence layer under base. Implementations need no
// locking of their own: base serializes writers and excludes them from reads.
type backend interface {
	load(collection, id string) (Document, bool, error)
	scan(collection string) ([]Document, error)
	apply(muts []mutation) error
	close() error
}

// base implements Replica on top of a backend.
type base struct {
	mu     sync.RWMutex
	be     backend
	hub    *feedHub
	clock  quartz.Clock
	origin string
	closed bool
}

func newBase(be backend, o options) *base {
	return &base{
		be:     be,
		hub:    newFeedHub(),
		clock:  o.clock,
		origin: o.origin,
	}
}

// Origin implements Replica.
func (s *base) Origin() string {
	return s.origin
}

// Get implements Store.
func (s *base) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if collection == "" || id == "" {
		return Document{}, fmt.Errorf("get %q/%q: empty collection or id", collection, id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Document{}, ErrClosed
	}

	doc, ok, err := s.be.load(collection, id)
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if !ok {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	return doc.Clone(), nil
}

// Query implements Store.
func (s *base) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	docs, err := s.be.scan(collection)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs = q.apply(docs)
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out, nil
}

// Subscribe implements Store.
func (s *base) Subscribe(ctx context.Context, collection string, fn func(ChangeBatch)) (CancelFunc, error) {
	if fn == nil {
		return nil, errors.New("subscribe: nil callback")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Holding the read lock across snapshot and registration keeps commits
	// out, so the subscriber sees every later change exactly once.
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	docs, err := s.be.scan(collection)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}
	docs = Query{}.apply(docs)
	initial := ChangeBatch{Collection: collection, Origin: s.origin, Initial: true}
	for _, d := range docs {
		initial.Added = append(initial.Added, d.Clone())
	}

	return s.hub.add(ctx, collection, initial, fn), nil
}

// Batch implements Store.
func (s *base) Batch() WriteBatch {
	return &writeBatch{store: s}
}

// Close stops every subscription and releases the backend.
func (s *base) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.hub.closeAll()
	return s.be.close()
}

type opKind int

const (
	opSet opKind = iota
	opUpdate
	opDelete
)

type writeOp struct {
	kind       opKind
	collection string
	id         string
	fields     Fields
}

type writeBatch struct {
	store *base
	ops   []writeOp
}

func (b *writeBatch) Set(collection, id string, fields Fields) WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opSet, collection: collection, id: id, fields: fields.Clone()})
	return b
}

func (b *writeBatch) Update(collection, id string, fields Fields) WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opUpdate, collection: collection, id: id, fields: fields.Clone()})
	return b
}

func (b *writeBatch) Delete(collection, id string) WriteBatch {
	b.ops = append(b.ops, writeOp{kind: opDelete, collection: collection, id: id})
	return b
}

func (b *writeBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.ops) == 0 {
		return nil
	}
	return b.store.commit(b.ops)
}

type stagedDoc struct {
	before       Document
	beforeExists bool
	after        Document
	afterExists  bool
}

func (s *base) commit(ops []writeOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	now := s.clock.Now()
	staged := make(map[docKey]*stagedDoc)
	var order []docKey

	for _, op := range ops {
		if op.collection == "" || op.id == "" {
			return fmt.Errorf("commit: empty collection or id")
		}
		key := docKey{op.collection, op.id}
		st, ok := staged[key]
		if !ok {
			doc, exists, err := s.be.load(op.collection, op.id)
			if err != nil {
				return fmt.Errorf("commit: load %s/%s: %w", op.collection, op.id, err)
			}
			st = &stagedDoc{before: doc, beforeExists: exists, after: doc.Clone(), afterExists: exists}
			staged[key] = st
			order = append(order, key)
		}

		switch op.kind {
		case opSet:
			created := now
			if st.afterExists {
				created = st.after.CreateTime
			}
			st.after = Document{
				ID:         op.id,
				Collection: op.collection,
				Fields:     resolveServerTimestamps(op.fields.Clone(), now),
				CreateTime: created,
				UpdateTime: now,
			}
			st.afterExists = true
		case opUpdate:
			if !st.afterExists {
				return fmt.Errorf("commit: update %s/%s: %w", op.collection, op.id, ErrNotFound)
			}
			merged := st.after.Fields.Clone()
			for k, v := range resolveServerTimestamps(op.fields.Clone(), now) {
				merged[k] = v
			}
			st.after.Fields = merged
			st.after.UpdateTime = now
		case opDelete:
			st.afterExists = false
		}
	}

	muts, batches := s.diff(staged, order, s.origin)
	if len(muts) == 0 {
		return nil
	}
	if err := s.be.apply(muts); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.hub.publish(batches)

	logging.Debug().
		Str("component", "docstore").
		Int("writes", len(muts)).
		Int("collections", len(batches)).
		Msg("Batch committed")
	return nil
}

// diff turns staged before/after states into backend mutations and one change
// batch per collection, in first-touched order.
func (s *base) diff(staged map[docKey]*stagedDoc, order []docKey, origin string) ([]mutation, []ChangeBatch) {
	var muts []mutation
	var batches []ChangeBatch
	index := make(map[string]int)

	batchFor := func(collection string) *ChangeBatch {
		i, ok := index[collection]
		if !ok {
			i = len(batches)
			index[collection] = i
			batches = append(batches, ChangeBatch{Collection: collection, Origin: origin})
		}
		return &batches[i]
	}

	for _, key := range order {
		st := staged[key]
		switch {
		case st.afterExists && st.beforeExists:
			muts = append(muts, mutation{key: key, doc: st.after})
			b := batchFor(key.collection)
			b.Modified = append(b.Modified, st.after.Clone())
		case st.afterExists:
			muts = append(muts, mutation{key: key, doc: st.after})
			b := batchFor(key.collection)
			b.Added = append(b.Added, st.after.Clone())
		case st.beforeExists:
			muts = append(muts, mutation{key: key, delete: true})
			b := batchFor(key.collection)
			b.Removed = append(b.Removed, st.before.Clone())
		}
	}
	return muts, batches
}

// ApplyRemote implements Replica. Batches carrying this store's own origin are
// ignored. A remote document older than the local copy is skipped
// (last writer wins on UpdateTime).
func (s *base) ApplyRemote(ctx context.Context, batch ChangeBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Origin == "" || batch.Origin == s.origin || batch.Collection == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	staged := make(map[docKey]*stagedDoc)
	var order []docKey
	stage := func(doc Document, remove bool) error {
		key := docKey{batch.Collection, doc.ID}
		if doc.ID == "" {
			return nil
		}
		local, exists, err := s.be.load(key.collection, key.id)
		if err != nil {
			return err
		}
		if exists && local.UpdateTime.After(doc.UpdateTime) {
			return nil
		}
		st := &stagedDoc{before: local, beforeExists: exists}
		if !remove {
			doc.Collection = batch.Collection
			st.after = doc.Clone()
			st.afterExists = true
		}
		if _, seen := staged[key]; !seen {
			order = append(order, key)
		}
		staged[key] = st
		return nil
	}

	for _, d := range batch.Added {
		if err := stage(d, false); err != nil {
			return fmt.Errorf("apply remote: %w", err)
		}
	}
	for _, d := range batch.Modified {
		if err := stage(d, false); err != nil {
			return fmt.Errorf("apply remote: %w", err)
		}
	}
	for _, d := range batch.Removed {
		if err := stage(d, true); err != nil {
			return fmt.Errorf("apply remote: %w", err)
		}
	}

	muts, batches := s.diff(staged, order, batch.Origin)
	if len(muts) == 0 {
		return nil
	}
	if err := s.be.apply(muts); err != nil {
		return fmt.Errorf("apply remote: %w", err)
	}
	s.hub.publish(batches)
	return nil
}

var _ Replica = (*base)(nil)
