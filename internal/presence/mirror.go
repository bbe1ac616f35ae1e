// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package presence

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/tideline/internal/breaker"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
)

// mirrorJob is the newest record waiting to be written for one identity.
type mirrorJob struct {
	ctx context.Context
	rec models.PresenceRecord
}

// mirrorQueue serializes mirror writes per identity. At most one writer runs
// per identity; records arriving while it writes replace each other, so only
// the newest one is written next.
type mirrorQueue struct {
	mu      sync.Mutex
	pending map[string]mirrorJob
	active  map[string]bool
	newest  map[string]time.Time
}

func newMirrorQueue() *mirrorQueue {
	return &mirrorQueue{
		pending: make(map[string]mirrorJob),
		active:  make(map[string]bool),
		newest:  make(map[string]time.Time),
	}
}

// offer queues rec and reports whether the caller must start a writer for
// it. A record older than one already queued or written for the same identity
// is dropped.
func (q *mirrorQueue) offer(ctx context.Context, rec models.PresenceRecord) (start, accepted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := rec.IdentityID
	if last, ok := q.newest[id]; ok && rec.LastHeartbeat.Before(last) {
		return false, false
	}
	q.newest[id] = rec.LastHeartbeat
	q.pending[id] = mirrorJob{ctx: ctx, rec: rec}
	if q.active[id] {
		return false, true
	}
	q.active[id] = true
	return true, true
}

// next hands the writer of id its next job. It returns false, retiring the
// writer, when nothing is pending.
func (q *mirrorQueue) next(id string) (mirrorJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.pending[id]
	if !ok {
		delete(q.active, id)
		return mirrorJob{}, false
	}
	delete(q.pending, id)
	return job, true
}

// written forgets the ordering mark of an evicted identity once its offline
// record is stored and nothing newer is queued.
func (q *mirrorQueue) written(rec models.PresenceRecord) {
	if rec.Online {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, queued := q.pending[rec.IdentityID]; !queued && q.newest[rec.IdentityID].Equal(rec.LastHeartbeat) {
		delete(q.newest, rec.IdentityID)
	}
}

// mirror writes rec to the presence collection in the background. Writes for
// one identity land in heartbeat order and superseded records are skipped,
// so the stored document converges on the registry.
func (t *Tracker) mirror(ctx context.Context, rec models.PresenceRecord) {
	if t.store == nil {
		return
	}
	start, accepted := t.queue.offer(ctx, rec)
	if !accepted {
		metrics.RecordMirrorWrite("superseded")
		return
	}
	if !start {
		return
	}

	t.mirrors.Add(1)
	go func() {
		defer t.mirrors.Done()
		for {
			job, ok := t.queue.next(rec.IdentityID)
			if !ok {
				return
			}
			t.writeMirror(job.ctx, job.rec)
		}
	}()
}

func (t *Tracker) writeMirror(ctx context.Context, rec models.PresenceRecord) {
	fields := docstore.Fields{
		models.FieldIdentityID:    rec.IdentityID,
		models.FieldLastHeartbeat: rec.LastHeartbeat,
		models.FieldOnline:        rec.Online,
		models.FieldInstance:      rec.Instance,
		models.FieldUpdatedAt:     docstore.ServerTimestamp,
	}
	if !rec.Metadata.IsZero() {
		fields[models.FieldMetadata] = rec.Metadata.Fields()
	}

	_, err := t.cb.Execute(func() (interface{}, error) {
		return nil, t.store.Batch().Set(t.cfg.Collection, rec.IdentityID, fields).Commit(ctx)
	})
	if err != nil {
		result := "error"
		if breaker.IsRejected(err) {
			result = "rejected"
		}
		metrics.RecordMirrorWrite(result)
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("component", "presence").
			Str("identity_id", rec.IdentityID).
			Bool("online", rec.Online).
			Msg("Presence mirror write failed")
		return
	}
	t.queue.written(rec)
	metrics.RecordMirrorWrite("ok")
}

// merge folds presence records mirrored by other instances into the local
// registry. Records written by this instance and records already idle are
// ignored; an older heartbeat never replaces a newer one.
func (t *Tracker) merge(batch docstore.ChangeBatch) {
	docs := make([]docstore.Document, 0, len(batch.Added)+len(batch.Modified))
	docs = append(docs, batch.Added...)
	docs = append(docs, batch.Modified...)

	now := t.clock.Now()
	for _, doc := range docs {
		remote := models.PresenceFromDocument(doc)
		if remote.IdentityID == "" || remote.Instance == t.cfg.Instance {
			continue
		}
		if remote.LastHeartbeat.IsZero() || now.Sub(remote.LastHeartbeat) > t.cfg.IdleThreshold {
			continue
		}

		t.mu.Lock()
		local, ok := t.records[remote.IdentityID]
		if ok && !remote.LastHeartbeat.After(local.LastHeartbeat) {
			t.mu.Unlock()
			continue
		}
		if remote.Metadata.IsZero() && ok {
			remote.Metadata = local.Metadata
		}
		t.records[remote.IdentityID] = remote
		tracked := len(t.records)
		t.mu.Unlock()

		metrics.PresenceTracked.Set(float64(tracked))

		remote.Online = remote.OnlineAt(now, t.cfg.OnlineThreshold)
		t.notify(models.PresenceEvent{Record: remote, Source: models.PresenceSourceRemote})
	}
}
