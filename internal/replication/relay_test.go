// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package replication

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/models"
	"github.com/tomtom215/tideline/internal/presence"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// startRelay runs a relay until the test ends and waits for it to subscribe.
func startRelay(t *testing.T, store docstore.Replica, transport Transport, collections ...string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	relay := NewRelay(store, transport, Config{Collections: collections})

	done := make(chan error, 1)
	go func() { done <- relay.RunWithContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("relay returned %v", err)
		}
	})

	select {
	case <-relay.Ready():
	case err := <-done:
		t.Fatalf("relay exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay not ready")
	}
}

func eventually(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRelayConvergesStores(t *testing.T) {
	ctx := context.Background()
	transport := NewGoChannelTransport(watermill.NopLogger{})
	t.Cleanup(func() { _ = transport.Close() })

	a := docstore.NewMemoryStore(docstore.WithOrigin("instance-a"))
	b := docstore.NewMemoryStore(docstore.WithOrigin("instance-b"))
	startRelay(t, a, transport, "users")
	startRelay(t, b, transport, "users")

	if err := a.Batch().Set("users", "u1", docstore.Fields{"displayName": "Ada"}).Commit(ctx); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		doc, err := b.Get(ctx, "users", "u1")
		return err == nil && doc.Fields.String("displayName") == "Ada"
	}, "create to reach instance-b")

	if err := b.Batch().Update("users", "u1", docstore.Fields{"displayName": "Grace"}).Commit(ctx); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		doc, err := a.Get(ctx, "users", "u1")
		return err == nil && doc.Fields.String("displayName") == "Grace"
	}, "update to reach instance-a")

	if err := a.Batch().Delete("users", "u1").Commit(ctx); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, err := b.Get(ctx, "users", "u1")
		return errors.Is(err, docstore.ErrNotFound)
	}, "delete to reach instance-b")
}

func TestRelayIgnoresUnreplicatedCollections(t *testing.T) {
	ctx := context.Background()
	transport := NewGoChannelTransport(watermill.NopLogger{})
	t.Cleanup(func() { _ = transport.Close() })

	a := docstore.NewMemoryStore(docstore.WithOrigin("instance-a"))
	b := docstore.NewMemoryStore(docstore.WithOrigin("instance-b"))
	startRelay(t, a, transport, "presence", "users")
	startRelay(t, b, transport, "presence", "users")

	if err := a.Batch().Set("admins", "x", docstore.Fields{}).Commit(ctx); err != nil {
		t.Fatal(err)
	}
	// A later replicated write proves the earlier one had its chance to travel.
	if err := a.Batch().Set("users", "marker", docstore.Fields{}).Commit(ctx); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, err := b.Get(ctx, "users", "marker")
		return err == nil
	}, "marker to replicate")

	if _, err := b.Get(ctx, "admins", "x"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("admins document replicated: %v", err)
	}
}

func TestRelayDropsUndecodablePayload(t *testing.T) {
	ctx := context.Background()
	transport := NewGoChannelTransport(watermill.NopLogger{})
	t.Cleanup(func() { _ = transport.Close() })

	b := docstore.NewMemoryStore(docstore.WithOrigin("instance-b"))
	startRelay(t, b, transport, "users")

	garbage := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	garbage.Metadata.Set(MetadataOrigin, "instance-x")
	if err := transport.Publisher.Publish(DefaultTopic, garbage); err != nil {
		t.Fatal(err)
	}

	// The relay must keep consuming after the bad message.
	a := docstore.NewMemoryStore(docstore.WithOrigin("instance-a"))
	startRelay(t, a, transport, "users")
	if err := a.Batch().Set("users", "u2", docstore.Fields{}).Commit(ctx); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, err := b.Get(ctx, "users", "u2")
		return err == nil
	}, "write after bad message")
}

// A heartbeat recorded by the tracker of one instance reaches presence
// subscribers of another instance through the mirrored collection.
func TestPresenceConvergesAcrossInstances(t *testing.T) {
	ctx := context.Background()
	transport := NewGoChannelTransport(watermill.NopLogger{})
	t.Cleanup(func() { _ = transport.Close() })

	storeA := docstore.NewMemoryStore(docstore.WithOrigin("instance-a"))
	storeB := docstore.NewMemoryStore(docstore.WithOrigin("instance-b"))
	startRelay(t, storeA, transport, "presence")
	startRelay(t, storeB, transport, "presence")

	cfgA := presence.DefaultConfig()
	cfgA.Instance = "instance-a"
	cfgB := presence.DefaultConfig()
	cfgB.Instance = "instance-b"
	trackerA := presence.New(cfgA, storeA)
	trackerB := presence.New(cfgB, storeB)

	events := make(chan models.PresenceEvent, 8)
	cancelSub := trackerB.Subscribe(func(ev models.PresenceEvent) { events <- ev })
	defer cancelSub()

	if err := trackerA.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer trackerA.Stop()
	if err := trackerB.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer trackerB.Stop()

	if err := trackerA.Heartbeat(ctx, "admin-7", models.DeviceMetadata{}); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-events:
		if ev.Source != models.PresenceSourceRemote || ev.Record.IdentityID != "admin-7" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat did not reach instance-b")
	}
	if !trackerB.IsOnline("admin-7") {
		t.Error("instance-b does not consider admin-7 online")
	}
}
